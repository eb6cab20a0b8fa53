package logger

import (
	"os"
	"sync"

	"github.com/rs/zerolog"
)

var (
	defaultLogger zerolog.Logger
	once          sync.Once
)

// Init initializes the default logger with a console writer on stderr.
// It ensures that the logger is initialized only once.
func Init() {
	once.Do(func() {
		level := zerolog.InfoLevel
		if lv, err := zerolog.ParseLevel(os.Getenv("PAPERS_LOG_LEVEL")); err == nil && lv != zerolog.NoLevel {
			level = lv
		}
		defaultLogger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
			Level(level).
			With().
			Timestamp().
			Logger()
	})
}

// Get returns the initialized default logger.
func Get() zerolog.Logger {
	Init()
	return defaultLogger
}

// Info starts an info-level event on the default logger.
func Info() *zerolog.Event {
	l := Get()
	return l.Info()
}

// Warn starts a warn-level event on the default logger.
func Warn() *zerolog.Event {
	l := Get()
	return l.Warn()
}

// Error starts an error-level event on the default logger.
func Error() *zerolog.Event {
	l := Get()
	return l.Error()
}

// Debug starts a debug-level event on the default logger.
func Debug() *zerolog.Event {
	l := Get()
	return l.Debug()
}
