package main

import (
	"context"
	"expvar"
	"fmt"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"syscall"

	"github.com/nbkrcse/labtrack/apps/api/echo"
	"github.com/nbkrcse/labtrack/apps/shared"
	"github.com/nbkrcse/labtrack/core"
	"github.com/nbkrcse/labtrack/core/lab"
	"github.com/nbkrcse/labtrack/core/snapshot"
	"github.com/nbkrcse/labtrack/core/stats"
	"github.com/nbkrcse/labtrack/core/user"
	"github.com/nbkrcse/labtrack/services/files"
	"github.com/nbkrcse/labtrack/storage/repos"
)

func main() {
	// =========================================================================
	// Set up Dependencies

	conf := core.NewConfig()

	logger := shared.NewLogger(conf, "API")
	defer logger.Close()
	storeLogger := shared.NewLogger(conf, "STORE")

	ctx := context.Background()
	storage, err := shared.OpenStorage(ctx, conf, true)
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up storage %q: %v", conf.Storage.Driver, err), err)
	}
	defer func() {
		if err := storage.Close(); err != nil {
			storeLogger.Error("failed to close", err)
		}
	}()

	db := repos.NewDB(storage.Store)
	userRepo := repos.NewUserRepository(db)
	labRepo := repos.NewLabRepository(db)

	fileStore, err := filesvc.NewDiskStore(conf)
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up uploads: %v", err), err)
	}

	validate, translator := shared.NewValidator()
	mailer := shared.NewMailer(conf, logger)
	defer mailer.Wait()
	usrSvc := user.NewService(userRepo, validate, mailer, logger, conf)
	labSvc := lab.NewService(labRepo, validate, stats.GradeViva)

	snap := snapshot.New(userRepo, labRepo, storeLogger)
	if err := snap.Refresh(ctx); err != nil {
		logger.Fatal(fmt.Sprintf("loading snapshot: %v", err), err)
	}

	// =========================================================================
	// Initialize App

	logger.Info(fmt.Sprintf("Application initializing : version %q, storage %q", conf.Build, conf.Storage.Driver))
	defer logger.Info("Application stopped")

	// =========================================================================
	// Start Debug Service
	//
	// /debug/pprof - Added to the default mux by importing the net/http/pprof package.
	// /debug/vars - Added to the default mux by importing the expvar package.

	expvar.NewString("build").Set(conf.Build)
	expvar.NewString("env").Set(conf.Env)
	expvar.NewString("storage").Set(conf.Storage.Driver)

	go func() {
		if err := http.ListenAndServe(conf.Server.DebugHost, http.DefaultServeMux); err != nil {
			logger.Error(fmt.Sprintf("debug server closed: %v", err), err)
		}
	}()

	// =========================================================================
	// Start API Service

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	server := echoapi.NewServer(
		&echoapi.Options{
			Address:  conf.Server.Address,
			Shutdown: shutdown,
		},
		&echoapi.Deps{
			Conf:       conf,
			Logger:     logger,
			Validate:   validate,
			Translator: translator,
			Mailer:     mailer,
			UserSvc:    usrSvc,
			LabSvc:     labSvc,
			Snapshot:   snap,
			Files:      fileStore,
		},
	)
	go server.Start()

	// =========================================================================
	// Shutdown

	sig := <-shutdown
	logger.Info(fmt.Sprintf("%v: Start shutdown...", sig))

	// give outstanding requests a deadline for completion
	ctx, cancel := context.WithTimeout(ctx, conf.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Stop(ctx); err != nil {
		logger.Error(fmt.Sprintf("could not stop server gracefully: %v", err), err)
	}
}
