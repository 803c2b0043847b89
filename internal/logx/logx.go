// Package logx configures logrus and routes the gin and gorm loggers into it.
package logx

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	glogger "gorm.io/gorm/logger"
)

// Setup configures the standard logrus logger. Unknown levels fall back to info.
func Setup(level string, json bool) {
	SetupWriter(os.Stderr, level, json)
}

func SetupWriter(w io.Writer, level string, json bool) {
	logrus.SetOutput(w)
	if json {
		logrus.SetFormatter(&logrus.JSONFormatter{TimestampFormat: time.RFC3339})
	} else {
		logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true, TimestampFormat: "2006/01/02 15:04:05.000"})
	}

	lvl, err := logrus.ParseLevel(strings.TrimSpace(level))
	if err != nil {
		lvl = logrus.InfoLevel
	}
	logrus.SetLevel(lvl)

	if lvl >= logrus.DebugLevel {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	gin.DefaultWriter = logrus.WithField("component", "gin").WriterLevel(logrus.DebugLevel)
	gin.DefaultErrorWriter = logrus.WithField("component", "gin").WriterLevel(logrus.ErrorLevel)
}

type gormLogger struct {
	level glogger.LogLevel
	slow  time.Duration
	entry *logrus.Entry
}

// GormLogger maps gorm's log calls onto logrus. SQL text is only logged at
// debug level; slow statements are warnings.
func GormLogger(slow time.Duration) glogger.Interface {
	return &gormLogger{
		level: gormLevel(logrus.GetLevel()),
		slow:  slow,
		entry: logrus.WithField("component", "gorm"),
	}
}

func gormLevel(l logrus.Level) glogger.LogLevel {
	switch {
	case l >= logrus.DebugLevel:
		return glogger.Info
	case l >= logrus.WarnLevel:
		return glogger.Warn
	case l >= logrus.ErrorLevel:
		return glogger.Error
	default:
		return glogger.Silent
	}
}

func (l *gormLogger) LogMode(level glogger.LogLevel) glogger.Interface {
	cp := *l
	cp.level = level
	return &cp
}

func (l *gormLogger) Info(ctx context.Context, s string, args ...any) {
	if l.level >= glogger.Info {
		l.entry.Infof(s, args...)
	}
}

func (l *gormLogger) Warn(ctx context.Context, s string, args ...any) {
	if l.level >= glogger.Warn {
		l.entry.Warnf(s, args...)
	}
}

func (l *gormLogger) Error(ctx context.Context, s string, args ...any) {
	if l.level >= glogger.Error {
		l.entry.Errorf(s, args...)
	}
}

func (l *gormLogger) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	if l.level == glogger.Silent {
		return
	}
	elapsed := time.Since(begin)
	sql, rows := fc()
	e := l.entry.WithFields(logrus.Fields{"elapsed": elapsed, "rows": rows})
	switch {
	case err != nil && !errors.Is(err, glogger.ErrRecordNotFound) && l.level >= glogger.Error:
		e.WithError(err).Error(sql)
	case l.slow > 0 && elapsed > l.slow && l.level >= glogger.Warn:
		e.Warn(fmt.Sprintf("slow sql >= %s: %s", l.slow, sql))
	case l.level >= glogger.Info:
		e.Debug(sql)
	}
}
