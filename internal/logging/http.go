package logging

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
)

// RequestFormatter feeds chi's RequestLogger into zerolog.
type RequestFormatter struct {
	Logger zerolog.Logger
}

func (f *RequestFormatter) NewLogEntry(r *http.Request) middleware.LogEntry {
	l := f.Logger.With().
		Str("request_id", middleware.GetReqID(r.Context())).
		Str("method", r.Method).
		Str("path", r.URL.Path).
		Str("remote", r.RemoteAddr).
		Logger()
	return &requestEntry{logger: l}
}

type requestEntry struct {
	logger zerolog.Logger
}

func (e *requestEntry) Write(status, bytes int, _ http.Header, elapsed time.Duration, _ interface{}) {
	var ev *zerolog.Event
	switch {
	case status >= 500:
		ev = e.logger.Error()
	case status >= 400:
		ev = e.logger.Warn()
	default:
		ev = e.logger.Info()
	}
	ev.Int("status", status).
		Int("bytes", bytes).
		Dur("elapsed", elapsed).
		Msg("request")
}

func (e *requestEntry) Panic(v interface{}, stack []byte) {
	e.logger.Error().
		Interface("panic", v).
		Bytes("stack", stack).
		Msg("request panicked")
}
