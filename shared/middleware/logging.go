package middleware

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/itchan-dev/bbs/shared/logger"
	"github.com/itchan-dev/bbs/shared/utils"
)

// RequestLogger attaches a request-scoped logger to the context and logs one
// line per request once it completes.
func RequestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ip, _ := utils.GetIP(r)
		l := logger.Log.With(
			"request_id", middleware.GetReqID(r.Context()),
			"method", r.Method,
			"path", r.URL.Path,
			"ip", ip,
		)
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r.WithContext(logger.WithContext(r.Context(), l)))

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		attrs := []any{"status", status, "bytes", ww.BytesWritten(), "duration", time.Since(start)}
		if status >= http.StatusInternalServerError {
			l.Error("request failed", attrs...)
		} else {
			l.Info("request handled", attrs...)
		}
	})
}
