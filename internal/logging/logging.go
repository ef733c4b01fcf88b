// Package logging provides the zerolog-backed engine.Logger the agent
// binary wires into every worker in pkg/engine.
package logging

import (
	"io"
	"os"

	"github.com/rs/zerolog"

	"github.com/kata-ai/meeting-assistant/pkg/engine"
)

// Logger adapts a zerolog.Logger to engine.Logger's (msg, key, value, ...)
// signature.
type Logger struct {
	zl zerolog.Logger
}

// New builds a Logger writing a human-readable console format to stdout
// and, if logFile is non-empty, appending the same events as JSON lines to
// that file. level is parsed with zerolog.ParseLevel, falling back to info
// on an unrecognized value.
func New(level string, logFile string) (*Logger, error) {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}

	writers := []io.Writer{zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: "15:04:05"}}
	if logFile != "" {
		f, err := os.OpenFile(logFile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, err
		}
		writers = append(writers, f)
	}

	zl := zerolog.New(zerolog.MultiLevelWriter(writers...)).Level(lvl).With().Timestamp().Logger()
	return &Logger{zl: zl}, nil
}

var _ engine.Logger = (*Logger)(nil)

func (l *Logger) Debug(msg string, args ...interface{}) { l.log(l.zl.Debug(), msg, args...) }
func (l *Logger) Info(msg string, args ...interface{})  { l.log(l.zl.Info(), msg, args...) }
func (l *Logger) Warn(msg string, args ...interface{})  { l.log(l.zl.Warn(), msg, args...) }
func (l *Logger) Error(msg string, args ...interface{}) { l.log(l.zl.Error(), msg, args...) }

// log attaches args as key/value pairs, matching the slog-style convention
// every caller in pkg/engine already uses.
func (l *Logger) log(ev *zerolog.Event, msg string, args ...interface{}) {
	for i := 0; i+1 < len(args); i += 2 {
		key, ok := args[i].(string)
		if !ok {
			continue
		}
		ev = ev.Interface(key, args[i+1])
	}
	ev.Msg(msg)
}
