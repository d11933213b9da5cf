package middlewares

import (
	"net/http"
	"time"

	"github.com/5w1tchy/book-thrift/internal/logging"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
)

// Logger attaches a request-scoped logger carrying the request id and logs
// one line per request. It also reports the handler time in X-Response-Time.
// It must run after RequestID.
func Logger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		l := logging.Logger().With().Str("request_id", GetRequestID(r)).Logger()
		r = r.WithContext(logging.Into(r.Context(), l))

		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(&stampWriter{WrapResponseWriter: ww, start: start}, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		var ev *zerolog.Event
		switch {
		case status >= 500:
			ev = l.Error()
		case status >= 400:
			ev = l.Warn()
		default:
			ev = l.Info()
		}
		ev.Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", status).
			Int("bytes", ww.BytesWritten()).
			Dur("duration", time.Since(start)).
			Str("remote", r.RemoteAddr).
			Msg("request")
	})
}

type stampWriter struct {
	chimiddleware.WrapResponseWriter
	start   time.Time
	stamped bool
}

func (w *stampWriter) stamp() {
	if !w.stamped {
		w.stamped = true
		w.Header().Set("X-Response-Time", time.Since(w.start).String())
	}
}

func (w *stampWriter) WriteHeader(code int) {
	w.stamp()
	w.WrapResponseWriter.WriteHeader(code)
}

func (w *stampWriter) Write(b []byte) (int, error) {
	w.stamp()
	return w.WrapResponseWriter.Write(b)
}
