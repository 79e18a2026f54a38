// Package logger
package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

type Logger interface {
	Info(msg string)
	Warn(msg string)
	Error(msg string)
	Debug(msg string)

	WithStr(key, value string) Logger
	WithInt(key string, value int) Logger
}

type logger struct {
	base zerolog.Logger
}

// New returns a Logger writing to a rotating file at path.
func New(path string) Logger {
	return &logger{base: zerolog.New(rotatingWriter(path)).
		With().
		Timestamp().
		Logger()}
}

// NewMultiWriter returns a Logger writing to both stderr and a rotating
// file at path.
func NewMultiWriter(path string) Logger {
	multi := io.MultiWriter(os.Stderr, rotatingWriter(path))

	return &logger{base: zerolog.New(multi).
		With().
		Timestamp().
		Logger()}
}

// Discard returns a Logger that drops everything.
func Discard() Logger {
	return &logger{base: zerolog.Nop()}
}

func rotatingWriter(path string) io.Writer {
	return &lumberjack.Logger{
		Filename:   path,
		MaxSize:    5,
		MaxBackups: 5,
		MaxAge:     30,
		Compress:   true,
	}
}

func (l *logger) Info(msg string) {
	l.base.Info().Msg(msg)
}

func (l *logger) Warn(msg string) {
	l.base.Warn().Msg(msg)
}

func (l *logger) Error(msg string) {
	l.base.Error().Msg(msg)
}

func (l *logger) Debug(msg string) {
	l.base.Debug().Msg(msg)
}

func (l *logger) WithStr(key, value string) Logger {
	return &logger{base: l.base.With().Str(key, value).Logger()}
}

func (l *logger) WithInt(key string, value int) Logger {
	return &logger{base: l.base.With().Int(key, value).Logger()}
}

// LogPath resolves the default log file under the user's home directory,
// creating the directory if needed.
func LogPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}

	logDir := filepath.Join(homeDir, "gotftp")

	if err := os.MkdirAll(logDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create log directory: %w", err)
	}

	return filepath.Join(logDir, "gotftp.log"), nil
}
