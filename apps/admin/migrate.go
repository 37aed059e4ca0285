package main

import (
	"errors"

	"github.com/trezcool/orbit/storage/database"
)

var migrateFunc = database.Migrate // mockable

var errNoDatabase = errors.New("migrations need the postgres engine")

func (cli *commandLine) migrate(args []string) error {
	if cli.db == nil {
		return errNoDatabase
	}
	return migrateFunc(cli.db, args[0], args[1:]...)
}
