package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/pkg/errors"

	"github.com/trezcool/pinkconnect/core"
	"github.com/trezcool/pinkconnect/core/session"
	logsvc "github.com/trezcool/pinkconnect/services/logger"
	"github.com/trezcool/pinkconnect/storage/local"
)

func main() {
	conf := core.NewConfig()
	stdLogger := log.New(os.Stderr, "PORTAL : ", log.LstdFlags)
	logger := logsvc.NewRollbarLogger(stdLogger, conf)

	storage, err := local.OpenSQLite(conf.Client.SessionPath)
	if err != nil {
		logger.Fatal("opening session storage", err)
	}

	p := &portal{conf: conf, logger: logger, storage: storage}
	err = p.newRootCmd().ExecuteContext(context.Background())
	_ = storage.Close()
	if err != nil {
		if !errors.Is(err, errFailed) && !session.IsOpError(err) {
			var vErr *core.ValidationError
			if errors.As(err, &vErr) {
				for field, msg := range vErr.FieldMap() {
					fmt.Fprintf(os.Stderr, "%s: %s\n", field, msg)
				}
			} else {
				fmt.Fprintf(os.Stderr, "error: %v\n", err)
			}
		}
		os.Exit(1)
	}
}
