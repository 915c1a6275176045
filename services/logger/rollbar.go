package logsvc

import (
	"io"

	"github.com/rollbar/rollbar-go"
	"github.com/rollbar/rollbar-go/errors"
	"github.com/sirupsen/logrus"

	"github.com/trezcool/mahudhurio/core"
	"github.com/trezcool/mahudhurio/core/user"
)

// RollbarLogger reports events to rollbar and writes them as JSON lines.
type RollbarLogger struct {
	std    *logrus.Logger
	report bool
}

var _ core.Logger = (*RollbarLogger)(nil)

func NewRollbarLogger(out io.Writer, conf *core.Config) *RollbarLogger {
	rollbar.SetToken(conf.RollbarToken)
	rollbar.SetEnvironment(conf.Env)
	rollbar.SetServerHost(conf.Server.Host)
	rollbar.SetCodeVersion(conf.Build)
	rollbar.SetStackTracer(errors.StackTracer)

	std := logrus.New()
	std.SetOutput(out)
	std.SetFormatter(&logrus.JSONFormatter{})
	std.SetLevel(logrus.InfoLevel)
	if conf.Debug {
		std.SetLevel(logrus.DebugLevel)
	}
	l := &RollbarLogger{std: std, report: conf.RollbarToken != ""}
	l.Enable(l.report && !conf.TestMode)
	return l
}

// NewNopLogger discards everything.
func NewNopLogger() *RollbarLogger {
	std := logrus.New()
	std.SetOutput(io.Discard)
	return &RollbarLogger{std: std}
}

func (l *RollbarLogger) Enable(enabled bool) {
	l.report = enabled
	rollbar.SetEnabled(enabled)
}

// expected fmt: msg | error, map[string]interface{}, user.User
func (l *RollbarLogger) prepare(msg string, args []interface{}) ([]interface{}, *logrus.Entry) {
	var usrSet bool
	entry := logrus.NewEntry(l.std)
	newArgs := make([]interface{}, 0, len(args)+1)
	newArgs = append(newArgs, msg)
	for _, arg := range args {
		switch v := arg.(type) {
		case user.User:
			if !usrSet { // only set one User
				if l.report {
					rollbar.SetPerson(v.ID, v.Username, v.Email)
				}
				entry = entry.WithField("user_id", v.ID)
				usrSet = true
			}
			continue
		case error:
			entry = entry.WithError(v)
		case map[string]interface{}:
			entry = entry.WithFields(v)
		}
		newArgs = append(newArgs, arg)
	}
	if !usrSet && l.report {
		rollbar.ClearPerson()
	}
	return newArgs, entry
}

func (l *RollbarLogger) Debug(msg string, args ...interface{}) {
	rbArgs, entry := l.prepare(msg, args)
	if l.report {
		rollbar.Debug(rbArgs...)
	}
	entry.Debug(msg)
}

func (l *RollbarLogger) Info(msg string, args ...interface{}) {
	rbArgs, entry := l.prepare(msg, args)
	if l.report {
		rollbar.Info(rbArgs...)
	}
	entry.Info(msg)
}

func (l *RollbarLogger) Warn(msg string, args ...interface{}) {
	rbArgs, entry := l.prepare(msg, args)
	if l.report {
		rollbar.Warning(rbArgs...)
	}
	entry.Warn(msg)
}

func (l *RollbarLogger) Error(msg string, args ...interface{}) {
	rbArgs, entry := l.prepare(msg, args)
	if l.report {
		rollbar.Error(rbArgs...)
	}
	entry.Error(msg)
}

func (l *RollbarLogger) Fatal(msg string, args ...interface{}) {
	rbArgs, entry := l.prepare(msg, args)
	if l.report {
		rollbar.Critical(rbArgs...)
		rollbar.Wait()
	}
	entry.Fatal(msg)
}
