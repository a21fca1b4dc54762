package main

import (
	"context"
	"fmt"
	"os"

	"github.com/nbkrcse/labtrack/apps/shared"
	"github.com/nbkrcse/labtrack/core"
	"github.com/nbkrcse/labtrack/core/session"
	"github.com/nbkrcse/labtrack/core/snapshot"
	"github.com/nbkrcse/labtrack/core/user"
	"github.com/nbkrcse/labtrack/storage/repos"
)

func main() {
	conf := core.NewConfig()
	logger := shared.NewLogger(conf, "ADMIN")
	logger.Enable(false) // errors are printed to the operator

	if err := start(conf, logger); err != nil {
		if err != errHelp {
			fmt.Fprintf(os.Stderr, "\nerror: %s\n", err)
		}
		os.Exit(1)
	}
}

func start(conf *core.Config, logger core.Logger) error {
	// every invocation is a new process, the memory store would lose sessions and users on exit
	if conf.Storage.Driver == core.StorageMemory || conf.Storage.Driver == "" {
		return errEphemeralStore
	}

	ctx := context.Background()

	// migrations are run explicitly through `migrate`
	storage, err := shared.OpenStorage(ctx, conf, false)
	if err != nil {
		return err
	}
	defer storage.Close()

	db := repos.NewDB(storage.Store)
	userRepo := repos.NewUserRepository(db)
	validate, _ := shared.NewValidator()
	mailer := shared.NewMailer(conf, logger)
	usrSvc := user.NewService(userRepo, validate, mailer, logger, conf)

	sess, err := session.Open(ctx, storage.Store, usrSvc)
	if err != nil {
		return err
	}

	cli := commandLine{
		db:      storage.DB,
		conf:    conf,
		usrSvc:  usrSvc,
		session: sess,
		snap:    snapshot.New(userRepo, repos.NewLabRepository(db), logger),
		mailer:  mailer,
		out:     os.Stdout,
	}
	return cli.run(os.Args)
}
