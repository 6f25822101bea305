package logging

import (
	"io"
	"os"
	"path/filepath"
	"time"

	"prdash/internal/errcodes"

	"github.com/mattn/go-isatty"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

type Options struct {
	Level string
	// File enables a rotated log file next to the console output.
	File string
	// Out replaces stderr, mostly for tests.
	Out io.Writer
}

var fileWriter *lumberjack.Logger

// Setup configures the global zerolog logger and the standard logrus logger
// used by the HTTP client to share the same level and destination.
func Setup(o Options) (zerolog.Logger, error) {
	lvl, err := zerolog.ParseLevel(o.Level)
	if err != nil || o.Level == "" {
		return zerolog.Nop(), errors.Wrapf(errcodes.ErrInvalidSetting, "unknown log level %q", o.Level)
	}

	var w io.Writer = o.Out
	if w == nil {
		w = os.Stderr
		if isatty.IsTerminal(os.Stderr.Fd()) {
			w = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}
		}
	}

	if o.File != "" {
		if dir := filepath.Dir(o.File); dir != "" && dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return zerolog.Nop(), errors.Wrap(err, "create log dir")
			}
		}
		fileWriter = &lumberjack.Logger{
			Filename:   o.File,
			MaxSize:    100, // MB
			MaxBackups: 5,
			MaxAge:     28, // days
		}
		w = zerolog.MultiLevelWriter(w, fileWriter)
	}

	zerolog.SetGlobalLevel(lvl)
	logger := zerolog.New(w).Level(lvl).With().Timestamp().Logger()
	log.Logger = logger

	logrus.SetOutput(w)
	logrus.SetLevel(logrusLevel(lvl))
	logrus.SetFormatter(&logrus.JSONFormatter{})

	return logger, nil
}

// Component returns a child logger tagged with the component name.
func Component(l zerolog.Logger, name string) zerolog.Logger {
	return l.With().Str("component", name).Logger()
}

func logrusLevel(l zerolog.Level) logrus.Level {
	switch l {
	case zerolog.TraceLevel:
		return logrus.TraceLevel
	case zerolog.DebugLevel:
		return logrus.DebugLevel
	case zerolog.WarnLevel:
		return logrus.WarnLevel
	case zerolog.ErrorLevel:
		return logrus.ErrorLevel
	case zerolog.FatalLevel:
		return logrus.FatalLevel
	case zerolog.PanicLevel:
		return logrus.PanicLevel
	default:
		return logrus.InfoLevel
	}
}

// Close flushes the log file, if any.
func Close() error {
	if fileWriter != nil {
		return fileWriter.Close()
	}

	return nil
}
