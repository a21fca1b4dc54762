package testutil

import (
	"context"
	"io"
	"log"
	"testing"
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nbkrcse/labtrack/apps/shared"
	"github.com/nbkrcse/labtrack/core"
	"github.com/nbkrcse/labtrack/core/lab"
	"github.com/nbkrcse/labtrack/core/stats"
	"github.com/nbkrcse/labtrack/core/user"
	"github.com/nbkrcse/labtrack/services/email"
	"github.com/nbkrcse/labtrack/services/logger"
	"github.com/nbkrcse/labtrack/storage/kv/memkv"
	"github.com/nbkrcse/labtrack/storage/repos"
)

const DefaultStudentPassword = "cse@nbkr"

// NewConfig returns a configuration suitable for tests; nothing is read from the environment.
func NewConfig(t *testing.T) *core.Config {
	return &core.Config{
		Debug:            true,
		TestMode:         true,
		AppName:          "LabTrack",
		Env:              "TEST",
		Build:            "test",
		SecretKey:        "test-secret",
		DefaultFromEmail: "noreply@labtrack.test",
		Server: core.ServerConfig{
			Host:                      "localhost",
			ShutdownTimeout:           time.Second,
			JWTExpirationDelta:        time.Hour,
			JWTRefreshExpirationDelta: time.Hour,
		},
		Storage: core.StorageConfig{Driver: core.StorageMemory, KeyPrefix: "labtrack-test"},
		Lab: core.LabConfig{
			DefaultStudentPassword: DefaultStudentPassword,
			UploadDir:              t.TempDir(),
			MaxUploadSize:          1 << 20,
		},
	}
}

func NewLogger(conf *core.Config) core.Logger {
	return logsvc.NewRollbarLogger(log.New(io.Discard, "", 0), conf)
}

// Env wires the domain services over an in-memory store.
type Env struct {
	Conf       *core.Config
	Store      *memkv.DB
	DB         *repos.DB
	UserRepo   user.Repository
	LabRepo    lab.Repository
	UserSvc    *user.Service
	LabSvc     *lab.Service
	Mailer     *emailsvc.ConsoleService
	Logger     core.Logger
	Validate   *validator.Validate
	Translator ut.Translator
}

// Setup wires a fresh Env. An optional store replaces the in-memory one in the repositories.
func Setup(t *testing.T, store ...core.Store) *Env {
	conf := NewConfig(t)
	logger := NewLogger(conf)
	mem := memkv.Open()

	var backing core.Store = mem
	if len(store) > 0 {
		backing = store[0]
	}
	db := repos.NewDB(backing)
	validate, translator := shared.NewValidator()
	mailer := emailsvc.NewConsoleServiceMock(conf, logger)

	env := &Env{
		Conf:       conf,
		Store:      mem,
		DB:         db,
		UserRepo:   repos.NewUserRepository(db),
		LabRepo:    repos.NewLabRepository(db),
		Mailer:     mailer,
		Logger:     logger,
		Validate:   validate,
		Translator: translator,
	}
	env.UserSvc = user.NewService(env.UserRepo, validate, mailer, logger, conf)
	env.LabSvc = lab.NewService(env.LabRepo, validate, stats.GradeViva)
	return env
}

func CreateFaculty(t *testing.T, repo user.Repository, name, email, pwd string) user.User {
	return createUser(t, repo, user.User{Name: name, Email: email, Role: user.RoleFaculty}, pwd)
}

func CreateStudent(t *testing.T, repo user.Repository, name, email, rollNumber, sectionID, pwd string, firstLogin bool) user.User {
	usr := user.User{
		Name:         name,
		Email:        email,
		Role:         user.RoleStudent,
		IsFirstLogin: firstLogin,
		Student:      &user.StudentInfo{RollNumber: rollNumber, SectionID: sectionID},
	}
	return createUser(t, repo, usr, pwd)
}

func createUser(t *testing.T, repo user.Repository, usr user.User, pwd string) user.User {
	tstamp := time.Now().UTC()
	usr.CreatedAt = tstamp
	usr.UpdatedAt = tstamp
	if pwd != "" {
		if err := usr.SetPassword(pwd); err != nil {
			t.Fatalf("createUser() failed: %v", err)
		}
	}
	usr, err := repo.CreateUser(context.Background(), usr)
	if err != nil {
		t.Fatalf("createUser() failed: %v", err)
	}
	return usr
}

func CreateSection(t *testing.T, repo lab.Repository, name, facultyID string) lab.Section {
	sec, err := repo.CreateSection(context.Background(), lab.Section{Name: name, FacultyID: facultyID})
	if err != nil {
		t.Fatalf("CreateSection() failed: %v", err)
	}
	return sec
}

func CreateExperiment(t *testing.T, repo lab.Repository, title, facultyID string) lab.Experiment {
	exp, err := repo.CreateExperiment(context.Background(), lab.Experiment{
		Title:       title,
		Description: title + " description",
		FacultyID:   facultyID,
		CreatedAt:   time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("CreateExperiment() failed: %v", err)
	}
	return exp
}

// CreateQuestion creates a question with options "a".."d".
func CreateQuestion(t *testing.T, repo lab.Repository, experimentID, text string, correct int) lab.VivaQuestion {
	q, err := repo.CreateVivaQuestion(context.Background(), lab.VivaQuestion{
		ExperimentID:       experimentID,
		Question:           text,
		Options:            []string{"a", "b", "c", "d"},
		CorrectOptionIndex: correct,
	})
	if err != nil {
		t.Fatalf("CreateQuestion() failed: %v", err)
	}
	return q
}

func UpsertStatus(t *testing.T, repo lab.Repository, st lab.Status) lab.Status {
	st, err := repo.UpsertStatus(context.Background(), st)
	if err != nil {
		t.Fatalf("UpsertStatus() failed: %v", err)
	}
	return st
}

// StoreConformance checks the core.BatchStore contract against store, using collection names
// prefixed with ns.
func StoreConformance(t *testing.T, store core.BatchStore, ns string) {
	ctx := context.Background()
	a, b := ns+"-a", ns+"-b"
	t.Cleanup(func() {
		_ = store.Delete(ctx, a)
		_ = store.Delete(ctx, b)
	})

	data, err := store.Get(ctx, a)
	require.NoError(t, err)
	assert.Nil(t, data, "never written collection")

	require.NoError(t, store.Set(ctx, a, []byte(`[{"id":"1"}]`)))
	data, err = store.Get(ctx, a)
	require.NoError(t, err)
	assert.JSONEq(t, `[{"id":"1"}]`, string(data))

	require.NoError(t, store.Set(ctx, a, []byte(`[]`)))
	data, err = store.Get(ctx, a)
	require.NoError(t, err)
	assert.JSONEq(t, `[]`, string(data))

	require.NoError(t, store.SetMany(ctx, map[string][]byte{a: []byte(`[1]`), b: []byte(`[2]`)}))
	data, err = store.Get(ctx, a)
	require.NoError(t, err)
	assert.JSONEq(t, `[1]`, string(data))
	data, err = store.Get(ctx, b)
	require.NoError(t, err)
	assert.JSONEq(t, `[2]`, string(data))

	require.NoError(t, store.Delete(ctx, a))
	data, err = store.Get(ctx, a)
	require.NoError(t, err)
	assert.Nil(t, data)
}
