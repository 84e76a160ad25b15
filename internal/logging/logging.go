// Package logging wraps logrus with the two extra sub-debug levels
// se/logutils.py defines (DATA, RAW) for dumping decoded fields and raw
// wire bytes without drowning ordinary -v output.
package logging

import (
	"encoding/hex"
	"strings"

	"github.com/sirupsen/logrus"
)

// Data and Raw sit below logrus.TraceLevel: Data logs one decoded field
// at a time (se/logutils.py's logger.data), Raw logs a hex dump of a
// whole wire message (logger.raw). logrus has no native level below
// Trace, so these are driven off the logger's level field directly
// rather than through logrus.Level.
type Level int

const (
	LevelError Level = iota
	LevelInfo
	LevelDebug
	LevelData
	LevelRaw
)

// Logger is the façade the rest of the module logs through.
type Logger struct {
	entry *logrus.Entry
	level Level
}

// New builds a Logger at the given sub-debug level, writing through base
// (already configured with its output/formatter by the CLI layer).
func New(base *logrus.Logger, level Level) *Logger {
	switch level {
	case LevelData, LevelRaw:
		base.SetLevel(logrus.TraceLevel)
	case LevelDebug:
		base.SetLevel(logrus.DebugLevel)
	case LevelInfo:
		base.SetLevel(logrus.InfoLevel)
	default:
		base.SetLevel(logrus.ErrorLevel)
	}
	return &Logger{entry: logrus.NewEntry(base), level: level}
}

func (l *Logger) With(fields logrus.Fields) *Logger {
	return &Logger{entry: l.entry.WithFields(fields), level: l.level}
}

func (l *Logger) Error(args ...any) { l.entry.Error(args...) }
func (l *Logger) Info(args ...any)  { l.entry.Info(args...) }
func (l *Logger) Debug(args ...any) { l.entry.Debug(args...) }

// Data logs one decoded field, visible only at LevelData or LevelRaw.
func (l *Logger) Data(args ...any) {
	if l.level >= LevelData {
		l.entry.Trace(args...)
	}
}

// Raw logs a hex dump of a wire message, formatted like
// se/logutils.py.format_data: 16 bytes per line, space separated.
func (l *Logger) Raw(direction string, seq uint16, msg []byte) {
	if l.level < LevelRaw {
		return
	}
	l.entry.Tracef("%s message: seq=%d length=%d", direction, seq, len(msg))
	const lineWidth = 16
	for i := 0; i < len(msg); i += lineWidth {
		end := i + lineWidth
		if end > len(msg) {
			end = len(msg)
		}
		l.entry.Trace("data:       " + hexLine(msg[i:end]))
	}
}

func hexLine(b []byte) string {
	parts := make([]string, len(b))
	for i, c := range b {
		parts[i] = hex.EncodeToString([]byte{c})
	}
	return strings.Join(parts, " ")
}
