package main

import (
	"github.com/pkg/errors"
	"github.com/trezcool/goose"

	"github.com/nbkrcse/labtrack/fs"
)

var gooseRunFunc = goose.RunFS // mockable

var errNoDatabase = errors.New("migrate requires the postgres storage driver")

func (cli *commandLine) migrate(args []string) error {
	if cli.db == nil {
		return errNoDatabase
	}
	arguments := make([]string, 0)
	if len(args) > 1 {
		arguments = append(arguments, args[1:]...)
	}
	return gooseRunFunc(args[0], cli.db, appfs.FS, "migrations", arguments...)
}
