// Package debuglog provides structured, human-readable progress output for
// --debug runs. It is disabled by default (when its writer is nil) and all
// methods become no-ops.
package debuglog

import (
	"fmt"
	"io"

	"github.com/google/uuid"
)

// Logger outputs planning/mount/init progress. A nil-writer Logger is safe
// to call and simply discards output, so callers never need a separate
// "debug enabled" branch.
type Logger struct {
	output  io.Writer
	session uuid.UUID
}

// New creates a Logger. If output is nil, the logger is disabled.
func New(output io.Writer) *Logger {
	return &Logger{output: output, session: uuid.New()}
}

// Enabled reports whether this Logger actually writes anywhere.
func (l *Logger) Enabled() bool {
	return l != nil && l.output != nil
}

// SessionID returns the session-correlation id. Section headers include it;
// the other output methods do not.
func (l *Logger) SessionID() string {
	if l == nil {
		return ""
	}

	return l.session.String()
}

// Section outputs a section header.
func (l *Logger) Section(name string) {
	if !l.Enabled() {
		return
	}

	_, _ = fmt.Fprintf(l.output, "\n=== [%s] %s ===\n", l.session, name)
}

// Logf outputs a formatted debug message.
func (l *Logger) Logf(format string, args ...any) {
	if !l.Enabled() {
		return
	}

	_, _ = fmt.Fprintf(l.output, format+"\n", args...)
}

// Bulletf outputs an indented bullet point item.
func (l *Logger) Bulletf(format string, args ...any) {
	if !l.Enabled() {
		return
	}

	_, _ = fmt.Fprintf(l.output, "  • "+format+"\n", args...)
}

// Path outputs a labeled path entry, e.g. a placeholder creation or a mount
// source/destination pair.
func (l *Logger) Path(label, path string) {
	if !l.Enabled() {
		return
	}

	_, _ = fmt.Fprintf(l.output, "  %s: %s\n", label, path)
}

// Mount outputs one planned or executed mount step.
func (l *Logger) Mount(src, dst string, ro bool) {
	if !l.Enabled() {
		return
	}

	mode := "rw"
	if ro {
		mode = "ro"
	}

	_, _ = fmt.Fprintf(l.output, "  %s -> %s [%s]\n", src, dst, mode)
}
