// Package preinit provides a logger for the application before the Discord session is initialized.
package preinit

import (
	"go.uber.org/zap"
)

// Logger writes to stderr through zap's development encoder.
type Logger struct {
	zl *zap.Logger
}

// NewLogger creates a new preinit logger.
func NewLogger() *Logger {
	zl, err := zap.NewDevelopment(zap.AddCallerSkip(1))
	if err != nil {
		zl = zap.NewNop()
	}
	return &Logger{zl: zl}
}

// Info logs a boot step.
func (l *Logger) Info(msg string) {
	l.zl.Info(msg)
}

// Error logs an error to stderr.
func (l *Logger) Error(context string, err error) {
	l.zl.Error(context, zap.Error(err))
}

// Fatal logs an error to stderr and exits the program.
func (l *Logger) Fatal(context string, err error) {
	l.zl.Fatal(context, zap.Error(err))
}
