package echoapi

import (
	"context"
	"net/http"
	"os"
	"syscall"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/bytes"
	"github.com/labstack/gommon/log"

	"github.com/nbkrcse/labtrack/core"
	"github.com/nbkrcse/labtrack/core/lab"
	"github.com/nbkrcse/labtrack/core/snapshot"
	"github.com/nbkrcse/labtrack/core/user"
	"github.com/nbkrcse/labtrack/services/files"
)

type (
	Options struct {
		Address        string
		DisableReqLogs bool
		Shutdown       chan os.Signal
	}

	Deps struct {
		Conf       *core.Config
		Logger     core.Logger
		Validate   *validator.Validate
		Translator ut.Translator
		Mailer     core.EmailService
		UserSvc    *user.Service
		LabSvc     *lab.Service
		Snapshot   *snapshot.Snapshot
		Files      *filesvc.DiskStore
	}

	Server interface {
		http.Handler
		Start()
		Stop(context.Context) error
	}

	server struct {
		opts *Options
		deps *Deps
		app  *echo.Echo
	}
)

var _ Server = (*server)(nil)

func NewServer(opts *Options, deps *Deps) Server {
	s := &server{
		opts: opts,
		deps: deps,
		app:  echo.New(),
	}
	s.setup()
	return s
}

func (s *server) setup() {
	conf := s.deps.Conf

	s.app.Pre(middleware.RemoveTrailingSlash())
	if !s.opts.DisableReqLogs {
		s.app.Use(middleware.Logger())
	}
	// do not recover in DEV|TEST mode
	if !(conf.Debug || conf.TestMode) {
		s.app.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{LogLevel: log.ERROR}))
	}
	// room for the multipart envelope around the largest accepted upload
	s.app.Use(middleware.BodyLimit(bytes.Format(conf.Lab.MaxUploadSize + 1<<20)))

	s.app.HTTPErrorHandler = newAppHTTPErrorHandler(s.deps.Logger, s.deps.Translator, s.signalShutdown)
	s.app.Debug = conf.Debug
	s.app.HideBanner = true

	s.app.GET("/", home)

	v1 := s.app.Group("/v1")
	authed := v1.Group("", middleware.JWTWithConfig(jwtConfig(conf)), loadUserMiddleware(s.deps.UserSvc))
	gated := authed.Group("", passwordChangedMiddleware)

	registerUserAPI(v1, authed, s.deps)
	registerStudentAPI(gated.Group("/students", facultyMiddleware), s.deps)
	registerLabAPI(gated, s.deps)
	registerStatsAPI(gated.Group("/stats", facultyMiddleware), s.deps)
	registerMeAPI(gated.Group("/me", studentMiddleware), s.deps)
	registerFileAPI(gated.Group("/files"), s.deps)
}

func (s *server) signalShutdown() {
	if s.opts.Shutdown != nil {
		s.opts.Shutdown <- syscall.SIGTERM
	}
}

func (s *server) Start() {
	s.app.Logger.Fatal(s.app.Start(s.opts.Address))
}

func (s *server) Stop(ctx context.Context) error {
	return s.app.Shutdown(ctx)
}

func (s *server) ServeHTTP(w http.ResponseWriter, r *http.Request) { // for tests
	s.app.ServeHTTP(w, r)
}

func home(ctx echo.Context) error {
	return ctx.String(http.StatusOK, "Welcome to LabTrack API!")
}
