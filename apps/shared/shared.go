// Package shared wires the dependencies common to the API server and the admin CLI.
package shared

import (
	"context"
	"database/sql"
	"log"
	"os"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/nbkrcse/labtrack/core"
	"github.com/nbkrcse/labtrack/core/lab"
	"github.com/nbkrcse/labtrack/core/user"
	"github.com/nbkrcse/labtrack/services/email"
	"github.com/nbkrcse/labtrack/services/logger"
	"github.com/nbkrcse/labtrack/storage/database"
	"github.com/nbkrcse/labtrack/storage/kv/memkv"
	"github.com/nbkrcse/labtrack/storage/kv/pgkv"
	"github.com/nbkrcse/labtrack/storage/kv/rediskv"
)

// NewLogger returns a logger writing to stdout with prefix, and reporting to Rollbar in production.
func NewLogger(conf *core.Config, prefix string) *logsvc.RollbarLogger {
	return logsvc.NewRollbarLogger(
		log.New(os.Stdout, prefix+" : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile),
		conf,
	)
}

// NewValidator returns a validator with every validation registered, and its translator.
func NewValidator() (*validator.Validate, ut.Translator) {
	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)
	lab.InitValidators(validate, translator)
	return validate, translator
}

// NewMailer prints emails in debug mode and sends them through SendGrid otherwise.
func NewMailer(conf *core.Config, logger core.Logger) core.EmailService {
	if conf.Debug || conf.SendgridAPIKey == "" {
		return emailsvc.NewConsoleService(conf, logger)
	}
	return emailsvc.NewSendgridService(conf, logger)
}

// Storage is the opened persistence adapter.
type Storage struct {
	Store core.Store
	DB    *sql.DB // postgres driver only

	close func() error
}

func (s *Storage) Close() error {
	if s.close == nil {
		return nil
	}
	return s.close()
}

// OpenStorage opens the store selected by conf.Storage.Driver. With the postgres driver the
// database is created if needed, and migrated up when migrate is set.
func OpenStorage(ctx context.Context, conf *core.Config, migrate bool) (*Storage, error) {
	switch conf.Storage.Driver {
	case core.StorageMemory, "":
		return &Storage{Store: memkv.Open()}, nil

	case core.StoragePostgres:
		if err := database.CreateIfNotExist(ctx, conf); err != nil {
			return nil, errors.Wrap(err, "creating database")
		}
		db, err := database.Open(ctx, conf)
		if err != nil {
			return nil, err
		}
		if migrate {
			if err := database.Migrate(db, "up"); err != nil {
				_ = db.Close()
				return nil, err
			}
		}
		return &Storage{Store: pgkv.New(db), DB: db, close: db.Close}, nil

	case core.StorageRedis:
		client, err := rediskv.NewClient(ctx, conf.Redis)
		if err != nil {
			return nil, err
		}
		return &Storage{Store: rediskv.New(client, conf.Storage.KeyPrefix), close: client.Close}, nil

	default:
		return nil, errors.Errorf("unknown storage driver %q", conf.Storage.Driver)
	}
}
