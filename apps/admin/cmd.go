package main

import (
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"syscall"

	"golang.org/x/term"

	"github.com/trezcool/orbit/core"
	"github.com/trezcool/orbit/core/collection"
)

var (
	readPasswordFunc = term.ReadPassword // mockable

	errHelp = errors.New("help provided")
)

type commandLine struct {
	conf        *core.Config
	db          *sql.DB // nil with the inmem engine
	collections collection.Repository
	out         io.Writer
}

func (cli *commandLine) printUsage() {
	fmt.Println("Usage:")
	fmt.Println("  migrate COMMAND [ARGS] - run a goose command (up, down, status...) against the database")
	fmt.Println("  token -email EMAIL -role faculty|student [-name NAME] [-prompt-secret] - print a signed API token")
	fmt.Println("  collection -code CODE -owner EMAIL [-name NAME] [-students N] - create a collection")
}

func (cli *commandLine) output() io.Writer {
	if cli.out == nil {
		return os.Stdout
	}
	return cli.out
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	tokenCmd := flag.NewFlagSet("token", flag.ContinueOnError)
	tokenEmail := tokenCmd.String("email", "", "The owner's email.")
	tokenRole := tokenCmd.String("role", "faculty", "faculty or student.")
	tokenName := tokenCmd.String("name", "", "The display name.")
	tokenPrompt := tokenCmd.Bool("prompt-secret", false, "Prompt for the secret key instead of using the configured one.")

	collCmd := flag.NewFlagSet("collection", flag.ContinueOnError)
	collCode := collCmd.String("code", "", "The collection code, e.g. MATH101.")
	collName := collCmd.String("name", "", "The collection name.")
	collOwner := collCmd.String("owner", "", "The owner's email.")
	collStudents := collCmd.Int("students", -1, "The number of enrolled students, if known.")

	switch args[1] {
	case "migrate":
		if len(args) < 3 {
			cli.printUsage()
			return errHelp
		}
		return cli.migrate(args[2:])
	case "token":
		if err := tokenCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *tokenEmail == "" {
			tokenCmd.Usage()
			return errHelp
		}
		secret := cli.conf.SecretKey
		if *tokenPrompt {
			fmt.Print("Enter secret key:")
			s, err := readPasswordFunc(int(syscall.Stdin))
			fmt.Println()
			if err != nil {
				return err
			}
			if len(s) == 0 {
				tokenCmd.Usage()
				return errHelp
			}
			secret = string(s)
		}
		return cli.token(secret, *tokenEmail, *tokenName, *tokenRole)
	case "collection":
		if err := collCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *collCode == "" || *collOwner == "" {
			collCmd.Usage()
			return errHelp
		}
		return cli.addCollection(*collCode, *collName, *collOwner, *collStudents)
	default:
		cli.printUsage()
		return errHelp
	}
}
