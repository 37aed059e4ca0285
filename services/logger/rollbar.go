package logsvc

import (
	"context"
	"io"
	"log"
	"sync"

	"github.com/rollbar/rollbar-go"
	"github.com/rollbar/rollbar-go/errors"

	"github.com/trezcool/orbit/core"
)

type RollbarLogger struct {
	std *log.Logger
}

var _ core.Logger = (*RollbarLogger)(nil)

func NewRollbarLogger(std *log.Logger, conf *core.Config) *RollbarLogger {
	rollbar.SetToken(conf.RollbarToken)
	rollbar.SetEnvironment(conf.Env)
	rollbar.SetServerHost(conf.Server.Host)
	rollbar.SetCodeVersion(conf.Build)
	rollbar.SetStackTracer(errors.StackTracer)
	return &RollbarLogger{std: std}
}

var disableOnce sync.Once

// NewDiscardLogger returns a logger that reports nothing, for tests.
func NewDiscardLogger() *RollbarLogger {
	disableOnce.Do(func() { rollbar.SetEnabled(false) })
	return &RollbarLogger{std: log.New(io.Discard, "", 0)}
}

func (l RollbarLogger) Enable(enabled bool) {
	rollbar.SetEnabled(enabled)
}

// expected fmt: msg | error, map[string]interface{}, core.Person
// A core.Person is handed to rollbar as a per-entry context, the client wide person stays unset.
func (l RollbarLogger) prepare(msg string, args []interface{}) []interface{} {
	var personSet bool
	newArgs := make([]interface{}, 0, len(args)+1)
	newArgs = append(newArgs, msg)
	for _, arg := range args {
		// set the authenticated owner
		if p, ok := arg.(core.Person); ok {
			if !personSet { // only set one Person
				person := &rollbar.Person{Id: p.ID, Username: p.Name, Email: p.Email}
				newArgs = append(newArgs, rollbar.NewPersonContext(context.Background(), person))
				personSet = true
			}
		} else {
			newArgs = append(newArgs, arg)
		}
	}
	return newArgs
}

func (l RollbarLogger) print(msg string, args []interface{}) {
	l.std.Println(msg)
	for _, arg := range args {
		l.std.Printf("%+v\n", arg)
	}
}

func (l RollbarLogger) Debug(msg string, args ...interface{}) {
	rollbar.Debug(l.prepare(msg, args)...)
	l.print(msg, args)
}

func (l RollbarLogger) Info(msg string, args ...interface{}) {
	rollbar.Info(l.prepare(msg, args)...)
	l.print(msg, args)
}

func (l RollbarLogger) Warn(msg string, args ...interface{}) {
	rollbar.Warning(l.prepare(msg, args)...)
	l.print(msg, args)
}

func (l RollbarLogger) Error(msg string, args ...interface{}) {
	rollbar.Error(l.prepare(msg, args)...)
	l.print(msg, args)
}

func (l RollbarLogger) Fatal(msg string, args ...interface{}) {
	rollbar.Critical(l.prepare(msg, args)...)
	l.print(msg, args)
	l.std.Fatal(msg)
}
