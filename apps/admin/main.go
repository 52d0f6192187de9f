package main

import (
	"context"
	"log"
	"os"

	"github.com/trezcool/pinkconnect/core"
	logsvc "github.com/trezcool/pinkconnect/services/logger"
	"github.com/trezcool/pinkconnect/storage/database"
	sqlxrepos "github.com/trezcool/pinkconnect/storage/database/sqlx"
)

func main() {
	conf := core.NewConfig()
	stdLogger := log.New(os.Stdout, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)
	logger := logsvc.NewRollbarLogger(stdLogger, conf)

	// set up DB
	db, err := database.Open(conf)
	if err != nil {
		logger.Fatal("opening database", err)
	}
	if err = database.Ping(context.Background(), db); err != nil {
		_ = db.Close()
		logger.Fatal("pinging database", err)
	}

	// start CLI
	cli := commandLine{
		db:      db.DB,
		usrRepo: sqlxrepos.NewUserRepository(db),
		prfRepo: sqlxrepos.NewProfileRepository(db),
		out:     os.Stdout,
	}
	err = cli.run(os.Args)
	_ = db.Close()
	if err != nil {
		if err != errHelp {
			logger.Error("admin command failed", err)
		}
		os.Exit(1)
	}
}
