package dig_container

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"go.uber.org/dig"

	echoapi "github.com/trezcool/orbit/apps/api/echo"
	"github.com/trezcool/orbit/core"
	"github.com/trezcool/orbit/core/attendance"
	"github.com/trezcool/orbit/core/collection"
	"github.com/trezcool/orbit/core/material"
	"github.com/trezcool/orbit/core/upload"
	emailsvc "github.com/trezcool/orbit/services/email"
	logsvc "github.com/trezcool/orbit/services/logger"
	"github.com/trezcool/orbit/services/realtime"
	"github.com/trezcool/orbit/services/scheduler"
	"github.com/trezcool/orbit/services/transport"
	"github.com/trezcool/orbit/storage/database"
	inmemdb "github.com/trezcool/orbit/storage/database/inmem"
	sqlxrepos "github.com/trezcool/orbit/storage/database/sqlx"
	"github.com/trezcool/orbit/storage/objectstore"
)

type (
	DBLoggerParam struct {
		dig.In
		Logger core.Logger `name:"dbLogger"`
	}

	// DBCloser releases the database, a no-op for the inmem engine.
	DBCloser func() error

	serverParams struct {
		dig.In
		Conf          *core.Config
		Logger        core.Logger
		Validate      *validator.Validate
		Translator    ut.Translator
		Collections   collection.Repository
		Sessions      attendance.Repository
		UploadSvc     *upload.Service
		MaterialSvc   *material.Service
		AttendanceSvc *attendance.Service
		Hub           *realtime.Hub
	}
)

func newLogger(conf *core.Config) core.Logger {
	stdLogger := log.New(os.Stdout, "API : ", log.LstdFlags)
	logger := logsvc.NewRollbarLogger(stdLogger, conf)
	logger.Enable(!conf.Debug)
	return logger
}

func newDBLogger(conf *core.Config) core.Logger {
	stdLogger := log.New(os.Stdout, "DB : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)
	logger := logsvc.NewRollbarLogger(stdLogger, conf)
	logger.Enable(!conf.Debug)
	return logger
}

func newRepositories(conf *core.Config, loggerParam DBLoggerParam) (
	collection.Repository, material.Repository, attendance.Repository, DBCloser,
) {
	if conf.Database.Engine == "inmem" {
		db := inmemdb.Open()
		loggerParam.Logger.Info("using the in-memory database; data is lost on exit")
		return inmemdb.NewCollectionRepository(db),
			inmemdb.NewMaterialRepository(db),
			inmemdb.NewSessionRepository(db),
			func() error { return nil }
	}

	setUp := func() (*sqlx.DB, error) {
		if err := database.CreateIfNotExist(conf); err != nil {
			return nil, err
		}
		db, err := database.Open(conf)
		if err != nil {
			return nil, err
		}
		if err = database.Migrate(db.DB, "up"); err != nil {
			return nil, err
		}
		return db, nil
	}

	db, err := setUp()
	if err != nil {
		loggerParam.Logger.Fatal(fmt.Sprintf("setting up database: %v", err), err)
	}
	return sqlxrepos.NewCollectionRepository(db),
		sqlxrepos.NewMaterialRepository(db),
		sqlxrepos.NewSessionRepository(db),
		db.Close
}

func newObjectStore(conf *core.Config, logger core.Logger) objectstore.Store {
	if conf.Storage.Driver != "s3" {
		return objectstore.NewMemoryStore(conf.Storage.PublicBaseURL)
	}
	store, err := objectstore.NewS3Store(context.Background(), conf)
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up object store: %v", err), err)
	}
	return store
}

func newEmailService(conf *core.Config, logger core.Logger) core.EmailService {
	if conf.Debug {
		return emailsvc.NewConsoleService(conf)
	}
	return emailsvc.NewSendgridService(conf, logger)
}

func newTranslator() ut.Translator {
	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ := uni.GetTranslator("en")
	return translator
}

func newMaterialService(
	colls collection.Repository, repo material.Repository, logger core.Logger, conf *core.Config, hub *realtime.Hub,
) *material.Service {
	return material.NewService(colls, repo, logger, conf, func(owner string) material.Sink {
		return hub.Sink(owner)
	})
}

func newAttendanceService(
	colls collection.Repository, repo attendance.Repository, logger core.Logger, conf *core.Config, hub *realtime.Hub,
) *attendance.Service {
	return attendance.NewService(colls, repo, logger, conf, func(owner string) attendance.Sink {
		return hub.Sink(owner)
	})
}

// newUploadService pushes progress to the uploader's dashboards, and refreshes their catalog once a batch is done.
func newUploadService(
	store objectstore.Store,
	repo material.Repository,
	mailSvc core.EmailService,
	logger core.Logger,
	conf *core.Config,
	hub *realtime.Hub,
	materials *material.Service,
) *upload.Service {
	tr := transport.NewMaterialTransport(store, repo, logger, conf)
	return upload.NewService(tr, mailSvc, logger, conf, func(owner string) upload.Sink {
		return upload.MultiSink(hub.Sink(owner), upload.CompletionFunc(func(upload.Result) {
			materials.Invalidate(context.Background(), owner)
		}))
	})
}

func newScheduler(
	conf *core.Config,
	logger core.Logger,
	uploads *upload.Service,
	materials *material.Service,
	sessions *attendance.Service,
) (*scheduler.Scheduler, error) {
	return scheduler.New(conf, logger, uploads, map[string]scheduler.Refresher{
		"catalogs":  materials,
		"analytics": sessions,
	})
}

func newServer(p serverParams) *echoapi.Server {
	return echoapi.NewServer(echoapi.ServerDeps{
		Conf:          p.Conf,
		Logger:        p.Logger,
		Validate:      p.Validate,
		Translator:    p.Translator,
		Collections:   p.Collections,
		Sessions:      p.Sessions,
		UploadSvc:     p.UploadSvc,
		MaterialSvc:   p.MaterialSvc,
		AttendanceSvc: p.AttendanceSvc,
		Hub:           p.Hub,
	})
}

// New returns a new dependency injection dig.Container
func New() *dig.Container {
	c := dig.New()

	must(c.Provide(core.NewConfig))
	must(c.Provide(newLogger))
	must(c.Provide(newDBLogger, dig.Name("dbLogger")))
	must(c.Provide(newRepositories))
	must(c.Provide(newObjectStore))
	must(c.Provide(newEmailService))
	must(c.Provide(validator.New))
	must(c.Provide(newTranslator))
	must(c.Provide(realtime.NewHub))
	must(c.Provide(newMaterialService))
	must(c.Provide(newAttendanceService))
	must(c.Provide(newUploadService))
	must(c.Provide(newScheduler))
	must(c.Provide(newServer))

	return c
}

// must exits program if err happened
func must(err error) {
	if err != nil {
		log.Fatal(errors.Wrap(err, "failed to provide dependency").Error())
	}
}
