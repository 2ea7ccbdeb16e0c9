// Package slogx contains small helpers for building log/slog attributes.
package slogx

import (
	"fmt"
	"log/slog"
)

// KeyLoggerName is the attribute key used to tag log records with the
// component that emitted them.
const KeyLoggerName = "logger"

// Error returns an attribute with the key "error" and the error's message.
func Error(err error) slog.Attr {
	return slog.String("error", err.Error())
}

// ByteString returns a string attribute for a byte slice value.
func ByteString(key string, value []byte) slog.Attr {
	return slog.String(key, string(value))
}

// Stringer returns a string attribute for a fmt.Stringer value.
func Stringer(key string, value fmt.Stringer) slog.Attr {
	return slog.String(key, value.String())
}

// LoggerName returns the logger-name attribute for the given component.
func LoggerName(name string) slog.Attr {
	return slog.String(KeyLoggerName, name)
}
