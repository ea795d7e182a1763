package log

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
)

// ChiMiddleware installs an http middleware that copies the base logger into every request
// context, tagged with the request id, and logs the request once it is served.
func ChiMiddleware(ctx context.Context) func(handler http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		fn := func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			reqCtx := With(CopyFromContext(ctx, r.Context()), "req-id", middleware.GetReqID(r.Context()))
			t1 := time.Now()
			defer func() {
				Info(reqCtx,
					"http req",
					"method", r.Method,
					"uri", r.RequestURI,
					"status", ww.Status(),
					"bytes", ww.BytesWritten(),
					"ua", r.Header.Get("User-Agent"),
					"d", time.Since(t1))
			}()
			next.ServeHTTP(ww, r.WithContext(reqCtx))
		}
		return http.HandlerFunc(fn)
	}
}
