package repositories

import (
	"fmt"
	"log/slog"
	"strings"
)

// BadgerLogger redirects BadgerDB's printf-style output to slog, tagged
// with the component it comes from.
type BadgerLogger struct {
	log *slog.Logger
}

func NewBadgerLogger(log *slog.Logger) *BadgerLogger {
	return &BadgerLogger{log: log.With("component", "badger")}
}

func (l *BadgerLogger) Errorf(format string, args ...any) {
	l.log.Error(message(format, args))
}

func (l *BadgerLogger) Warningf(format string, args ...any) {
	l.log.Warn(message(format, args))
}

func (l *BadgerLogger) Infof(format string, args ...any) {
	l.log.Info(message(format, args))
}

func (l *BadgerLogger) Debugf(format string, args ...any) {
	l.log.Debug(message(format, args))
}

// message drops the trailing newline badger appends to every line.
func message(format string, args []any) string {
	return strings.TrimRight(fmt.Sprintf(format, args...), "\n")
}
