// Copyright (c) 2017-2020 The qitmeer developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package log provides the leveled, structured logger every component of
// the consensus core takes at construction instead of reaching for a
// process-wide global.
package log

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/btcsuite/btclog"
	"github.com/go-stack/stack"
	"github.com/jrick/logrotate/rotator"
	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
)

// Logger is the structured, leveled logging surface every component (C1-C7)
// accepts. Key-value pairs follow the variadic (key, value, key, value...)
// convention used throughout the pack.
type Logger interface {
	Trace(msg string, ctx ...interface{})
	Debug(msg string, ctx ...interface{})
	Info(msg string, ctx ...interface{})
	Warn(msg string, ctx ...interface{})
	Error(msg string, ctx ...interface{})
}

// Level is the logging severity level.
type Level int

const (
	LevelTrace Level = iota
	LevelDebug
	LevelInfo
	LevelWarn
	LevelError
	LevelOff
)

var levelNames = map[Level]string{
	LevelTrace: "TRC",
	LevelDebug: "DBG",
	LevelInfo:  "INF",
	LevelWarn:  "WRN",
	LevelError: "ERR",
}

// logWriter multiplexes log output to standard error (colorized when
// attached to a terminal) and, when configured, a rotating on-disk file.
type logWriter struct {
	mu         sync.Mutex
	out        io.Writer
	rotator    *rotator.Rotator
	colorWrite io.Writer
}

func newLogWriter() *logWriter {
	lw := &logWriter{out: os.Stderr}
	if isatty.IsTerminal(os.Stderr.Fd()) && os.Getenv("TERM") != "dumb" {
		lw.colorWrite = colorable.NewColorableStderr()
	}
	return lw
}

// EnableRotation attaches an on-disk rotating log file of the given max
// size (in bytes) and number of rolled files kept, matching the teacher's
// jrick/logrotate wiring in log/log.go.
func (lw *logWriter) EnableRotation(path string, maxSize int64, maxRolls int) error {
	r, err := rotator.New(path, maxSize, false, maxRolls)
	if err != nil {
		return err
	}
	lw.mu.Lock()
	lw.rotator = r
	lw.mu.Unlock()
	return nil
}

func (lw *logWriter) Write(p []byte) (int, error) {
	lw.mu.Lock()
	defer lw.mu.Unlock()

	if lw.colorWrite != nil {
		lw.colorWrite.Write(p)
	} else {
		lw.out.Write(p)
	}
	if lw.rotator != nil {
		lw.rotator.Write(p)
	}
	return len(p), nil
}

// backendLogger is the concrete Logger implementation. It is not exported;
// callers obtain one from New or use Disabled.
type backendLogger struct {
	subsystem string
	level     Level
	writer    *logWriter
}

// New returns a Logger tagged with the given subsystem name (e.g.
// "BLCH", "MPOL", "ORGZ") writing at the given minimum level.
func New(subsystem string, level Level, w *logWriter) Logger {
	if w == nil {
		w = newLogWriter()
	}
	return &backendLogger{subsystem: subsystem, level: level, writer: w}
}

// NewWriter constructs the shared writer backing one or more subsystem
// loggers created via New, so multiple components can share one rotating
// file.
func NewWriter() *logWriter {
	return newLogWriter()
}

func (b *backendLogger) log(lvl Level, msg string, ctx []interface{}) {
	if lvl < b.level {
		return
	}
	var sb strings.Builder
	sb.WriteString(time.Now().UTC().Format("2006-01-02T15:04:05.000Z"))
	sb.WriteByte(' ')
	sb.WriteString(levelNames[lvl])
	sb.WriteByte(' ')
	sb.WriteString("[" + b.subsystem + "] ")
	sb.WriteString(msg)
	for i := 0; i+1 < len(ctx); i += 2 {
		fmt.Fprintf(&sb, " %v=%v", ctx[i], ctx[i+1])
	}
	if lvl >= LevelError {
		sb.WriteString(" caller=" + callerFrame())
	}
	sb.WriteByte('\n')
	b.writer.Write([]byte(sb.String()))
}

// callerFrame resolves the first frame outside of this package, matching
// the teacher's use of go-stack/stack for call-site provenance on error-
// level log entries.
func callerFrame() string {
	trace := stack.Trace().TrimRuntime()
	for _, c := range trace {
		s := fmt.Sprintf("%+v", c)
		if !strings.Contains(s, "libbitcoin-blockchain/log") {
			return s
		}
	}
	if len(trace) > 0 {
		return fmt.Sprintf("%+v", trace[0])
	}
	return "unknown"
}

func (b *backendLogger) Trace(msg string, ctx ...interface{}) { b.log(LevelTrace, msg, ctx) }
func (b *backendLogger) Debug(msg string, ctx ...interface{}) { b.log(LevelDebug, msg, ctx) }
func (b *backendLogger) Info(msg string, ctx ...interface{})  { b.log(LevelInfo, msg, ctx) }
func (b *backendLogger) Warn(msg string, ctx ...interface{})  { b.log(LevelWarn, msg, ctx) }
func (b *backendLogger) Error(msg string, ctx ...interface{}) { b.log(LevelError, msg, ctx) }

type disabledLogger struct{}

func (disabledLogger) Trace(string, ...interface{}) {}
func (disabledLogger) Debug(string, ...interface{}) {}
func (disabledLogger) Info(string, ...interface{})  {}
func (disabledLogger) Warn(string, ...interface{})  {}
func (disabledLogger) Error(string, ...interface{}) {}

// Disabled is a Logger that discards everything; it is the default used by
// tests and by constructors that receive a nil Logger.
var Disabled Logger = disabledLogger{}

// btclogLevel maps a Level onto the btclog severity of the same name, kept
// so callers that plug in a btclog.Logger-based backend (as lnd's
// subsystems do) can translate between the two without a bespoke table.
func btclogLevel(l Level) btclog.Level {
	switch l {
	case LevelTrace:
		return btclog.LevelTrace
	case LevelDebug:
		return btclog.LevelDebug
	case LevelInfo:
		return btclog.LevelInfo
	case LevelWarn:
		return btclog.LevelWarn
	case LevelError:
		return btclog.LevelError
	default:
		return btclog.LevelOff
	}
}
