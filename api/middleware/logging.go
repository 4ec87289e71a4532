package middleware

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/persiashop/storefront-backend/pkg/logger"
)

// requestTrace is filled in by Auth and CartSession further down the chain so
// the completion line names the shopper even though their context is gone.
type requestTrace struct {
	userID      int64
	cartSession string
}

func traceFromContext(ctx context.Context) *requestTrace {
	if ctx == nil {
		return nil
	}
	trace, _ := ctx.Value(ctxTrace).(*requestTrace)
	return trace
}

func noteUser(ctx context.Context, userID int64) {
	if trace := traceFromContext(ctx); trace != nil {
		trace.userID = userID
	}
}

func noteCartSession(ctx context.Context, sessionID string) {
	if trace := traceFromContext(ctx); trace != nil {
		trace.cartSession = sessionID
	}
}

// Logging writes one line per request with the matched route, the outcome and
// whichever of user and cart session the request carried. Health and metrics
// scrapes log at debug.
func Logging(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if logg == nil {
				next.ServeHTTP(w, r)
				return
			}
			trace := &requestTrace{}
			ctx := context.WithValue(r.Context(), ctxTrace, trace)
			ctx = logg.WithFields(ctx, map[string]any{
				"method": r.Method,
				"path":   r.URL.Path,
			})
			logg.Debug(ctx, "request.start")

			rec := &statusRecorder{ResponseWriter: w}
			start := time.Now()
			next.ServeHTTP(rec, r.WithContext(ctx))

			fields := map[string]any{
				"status":      rec.statusCode(),
				"bytes":       rec.bytes,
				"duration_ms": time.Since(start).Milliseconds(),
			}
			if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
				fields["route"] = rctx.RoutePattern()
			}
			if trace.userID > 0 {
				fields["user_id"] = trace.userID
			}
			if trace.cartSession != "" {
				fields["cart_session"] = trace.cartSession
			}
			ctx = logg.WithFields(ctx, fields)

			switch {
			case rec.statusCode() >= http.StatusInternalServerError:
				logg.Warn(ctx, "request.complete")
			case isHealthTraffic(r.URL.Path):
				logg.Debug(ctx, "request.complete")
			default:
				logg.Info(ctx, "request.complete")
			}
		})
	}
}

func isHealthTraffic(path string) bool {
	return strings.HasPrefix(path, "/health/") || path == "/metrics"
}

type statusRecorder struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (s *statusRecorder) WriteHeader(code int) {
	if s.status == 0 {
		s.status = code
	}
	s.ResponseWriter.WriteHeader(code)
}

func (s *statusRecorder) Write(b []byte) (int, error) {
	if s.status == 0 {
		s.status = http.StatusOK
	}
	n, err := s.ResponseWriter.Write(b)
	s.bytes += n
	return n, err
}

func (s *statusRecorder) statusCode() int {
	if s.status == 0 {
		return http.StatusOK
	}
	return s.status
}
