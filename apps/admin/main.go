package main

import (
	"log"
	"os"

	"github.com/trezcool/orbit/core"
	"github.com/trezcool/orbit/storage/database"
	inmemdb "github.com/trezcool/orbit/storage/database/inmem"
	sqlxrepos "github.com/trezcool/orbit/storage/database/sqlx"
)

var logger *log.Logger

func main() {
	logger = log.New(os.Stdout, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)
	conf := core.NewConfig()

	cli := commandLine{conf: conf}
	if conf.Database.Engine == "inmem" {
		cli.collections = inmemdb.NewCollectionRepository(inmemdb.Open())
	} else {
		db, err := database.Open(conf)
		errAndDie(err)
		defer db.Close()
		cli.db = db.DB
		cli.collections = sqlxrepos.NewCollectionRepository(db)
	}

	// start CLI
	if err := cli.run(os.Args); err != nil {
		if err != errHelp {
			logger.Printf("\nerror: %s\n", err)
		}
		os.Exit(1)
	}
}

func errAndDie(err error) {
	if err != nil {
		logger.Fatal(err)
	}
}
