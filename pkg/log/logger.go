// Package log provides structured logging for machine learning operations.
//
// The package exposes a small Logger facade with leveled, key-value logging
// and a LoggerProvider abstraction so the backing implementation can be
// swapped. The default provider is backed by rs/zerolog.
//
// Loggers are cheap to derive: With returns a child logger carrying
// additional context fields, typically the model name and component:
//
//	logger := log.GetLoggerWithName("metalearner").With(
//		log.ModelNameKey, "TLearner",
//		log.ComponentKey, "metalearner",
//	)
//	logger.Info("Training started", log.SamplesKey, n)
package log

import "sync"

// Level represents a logging level.
type Level int

// Supported logging levels, ordered from most to least verbose.
const (
	DebugLevel Level = iota
	InfoLevel
	WarnLevel
	ErrorLevel
	Disabled
)

// ToLogLevel converts a level name ("debug", "info", "warn", "error",
// "disabled") to a Level. Unknown names map to InfoLevel.
func ToLogLevel(name string) Level {
	switch name {
	case "debug":
		return DebugLevel
	case "info":
		return InfoLevel
	case "warn", "warning":
		return WarnLevel
	case "error":
		return ErrorLevel
	case "disabled", "off":
		return Disabled
	default:
		return InfoLevel
	}
}

// Logger is the leveled, structured logging interface used throughout the
// library. Fields are passed as alternating key-value pairs.
type Logger interface {
	Debug(msg string, keysAndValues ...interface{})
	Info(msg string, keysAndValues ...interface{})
	Warn(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})

	// With returns a child logger that always carries the given fields.
	With(keysAndValues ...interface{}) Logger
}

// LoggerProvider constructs Logger instances. Implementations decide the
// backend, formatting and sink.
type LoggerProvider interface {
	GetLogger() Logger
	GetLoggerWithName(name string) Logger
}

var (
	providerMu      sync.RWMutex
	defaultProvider LoggerProvider
)

// SetProvider installs the provider used by the package-level GetLogger
// helpers. Passing nil restores the default zerolog provider.
func SetProvider(p LoggerProvider) {
	providerMu.Lock()
	defer providerMu.Unlock()
	defaultProvider = p
}

func provider() LoggerProvider {
	providerMu.RLock()
	p := defaultProvider
	providerMu.RUnlock()
	if p != nil {
		return p
	}

	providerMu.Lock()
	defer providerMu.Unlock()
	if defaultProvider == nil {
		defaultProvider = NewZerologProvider(InfoLevel)
	}
	return defaultProvider
}

// GetLogger returns an unnamed logger from the default provider.
func GetLogger() Logger {
	return provider().GetLogger()
}

// GetLoggerWithName returns a named logger from the default provider. The
// name is attached under the "logger" field.
func GetLoggerWithName(name string) Logger {
	return provider().GetLoggerWithName(name)
}
