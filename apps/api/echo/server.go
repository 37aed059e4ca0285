package echoapi

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"

	"github.com/trezcool/orbit/core"
	"github.com/trezcool/orbit/core/attendance"
	"github.com/trezcool/orbit/core/collection"
	"github.com/trezcool/orbit/core/material"
	"github.com/trezcool/orbit/core/upload"
	"github.com/trezcool/orbit/services/realtime"
)

type (
	ServerDeps struct {
		Conf       *core.Config
		Logger     core.Logger
		Validate   *validator.Validate
		Translator ut.Translator

		Collections   collection.Repository
		Sessions      attendance.Repository
		UploadSvc     upload.ServiceInterface
		MaterialSvc   material.ServiceInterface
		AttendanceSvc attendance.ServiceInterface
		Hub           *realtime.Hub
	}

	Server struct {
		deps     ServerDeps
		app      *echo.Echo
		errors   chan error
		shutdown chan os.Signal
	}
)

func NewServer(deps ServerDeps) *Server {
	s := &Server{
		deps:     deps,
		app:      echo.New(),
		errors:   make(chan error, 1),
		shutdown: make(chan os.Signal, 1),
	}
	signal.Notify(s.shutdown, os.Interrupt, syscall.SIGTERM)
	s.setup()
	return s
}

func (s *Server) setup() {
	conf := s.deps.Conf

	s.app.HideBanner = true
	s.app.Pre(middleware.RemoveTrailingSlash())
	if !conf.Server.DisableReqLogs {
		s.app.Use(middleware.Logger())
	}
	// do not recover in DEV|TEST mode
	if !(conf.Debug || conf.TestMode) {
		s.app.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{LogLevel: log.ERROR}))
	}

	s.app.HTTPErrorHandler = newAppHTTPErrorHandler(s.deps.Logger, s.deps.Translator, s.signalShutdown)
	s.app.Debug = conf.Debug

	s.app.GET("/", s.home)

	v1 := s.app.Group("/v1")
	jwt := middleware.JWTWithConfig(jwtConfig(conf, "header:"+echo.HeaderAuthorization))

	registerCollectionAPI(v1, jwt, s.deps)
	registerUploadAPI(v1, jwt, s.deps)
	registerMaterialAPI(v1, jwt, s.deps)
	registerAnalyticsAPI(v1, jwt, s.deps)

	// browsers cannot set headers on websocket handshakes
	registerRealtimeAPI(v1, middleware.JWTWithConfig(jwtConfig(conf, "query:token")), s.deps)
}

// Start blocks until the server stops; unexpected errors are sent to Errors.
func (s *Server) Start() {
	if err := s.app.Start(s.deps.Conf.Server.Addr); err != nil && err != http.ErrServerClosed {
		s.errors <- err
	}
}

func (s *Server) Errors() <-chan error { return s.errors }

func (s *Server) ShutdownSignal() <-chan os.Signal { return s.shutdown }

func (s *Server) Shutdown(ctx context.Context) error {
	signal.Stop(s.shutdown)
	return s.app.Shutdown(ctx)
}

func (s *Server) Close() error { return s.app.Close() }

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { // for tests
	s.app.ServeHTTP(w, r)
}

func (s *Server) signalShutdown() {
	select {
	case s.shutdown <- syscall.SIGTERM:
	default:
	}
}

func (s *Server) home(ctx echo.Context) error {
	return ctx.String(http.StatusOK, "Welcome to "+s.deps.Conf.AppName+" API!")
}
