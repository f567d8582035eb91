package logger

import (
	"errors"
	"time"

	"github.com/getsentry/sentry-go"
	"go.uber.org/zap/zapcore"
)

const flushTimeout = 2 * time.Second

// InitSentry configures the global Sentry client. An empty dsn leaves Sentry
// disabled and reports false.
func InitSentry(dsn, environment, release string) (bool, error) {
	if dsn == "" {
		return false, nil
	}
	err := sentry.Init(sentry.ClientOptions{
		Dsn:              dsn,
		Environment:      environment,
		Release:          release,
		EnableTracing:    true,
		TracesSampleRate: 0.2,
	})
	if err != nil {
		return false, err
	}
	return true, nil
}

// FlushSentry waits for queued events to be delivered.
func FlushSentry() {
	sentry.Flush(flushTimeout)
}

// SentryCore forwards error-level entries to Sentry. Entries carrying an
// error field are captured as exceptions, the rest as messages.
type SentryCore struct {
	zapcore.LevelEnabler
	hub    *sentry.Hub
	fields []zapcore.Field
}

// NewSentryCore returns a core reporting entries at or above level to hub.
// A nil hub uses the current global hub.
func NewSentryCore(hub *sentry.Hub, level zapcore.Level) *SentryCore {
	if hub == nil {
		hub = sentry.CurrentHub()
	}
	return &SentryCore{LevelEnabler: level, hub: hub}
}

func (c *SentryCore) With(fields []zapcore.Field) zapcore.Core {
	clone := *c
	clone.fields = append(append([]zapcore.Field{}, c.fields...), fields...)
	return &clone
}

func (c *SentryCore) Check(entry zapcore.Entry, checked *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if c.Enabled(entry.Level) {
		return checked.AddCore(entry, c)
	}
	return checked
}

func (c *SentryCore) Write(entry zapcore.Entry, fields []zapcore.Field) error {
	enc := zapcore.NewMapObjectEncoder()
	var captured error
	for _, f := range append(append([]zapcore.Field{}, c.fields...), fields...) {
		if f.Type == zapcore.ErrorType {
			if err, ok := f.Interface.(error); ok && captured == nil {
				captured = err
			}
		}
		f.AddTo(enc)
	}

	c.hub.WithScope(func(scope *sentry.Scope) {
		scope.SetLevel(sentryLevel(entry.Level))
		scope.SetTag("logger", entry.LoggerName)
		scope.SetContext("log", sentry.Context(enc.Fields))
		if captured != nil {
			c.hub.CaptureException(errors.Join(errors.New(entry.Message), captured))
			return
		}
		c.hub.CaptureMessage(entry.Message)
	})
	return nil
}

func (c *SentryCore) Sync() error {
	c.hub.Flush(flushTimeout)
	return nil
}

func sentryLevel(level zapcore.Level) sentry.Level {
	switch level {
	case zapcore.DebugLevel:
		return sentry.LevelDebug
	case zapcore.InfoLevel:
		return sentry.LevelInfo
	case zapcore.WarnLevel:
		return sentry.LevelWarning
	case zapcore.ErrorLevel:
		return sentry.LevelError
	default:
		return sentry.LevelFatal
	}
}
