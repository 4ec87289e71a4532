package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/persiashop/storefront-backend/api/responses"
	pkgerrors "github.com/persiashop/storefront-backend/pkg/errors"
	"github.com/persiashop/storefront-backend/pkg/logger"
	"github.com/persiashop/storefront-backend/pkg/types"
)

type rateLimiterStore interface {
	FixedWindowAllow(ctx context.Context, scope string, limit int64, window time.Duration) (bool, int64, error)
}

// AuthRateLimitPolicy throttles one auth endpoint per client IP and per phone
// number. A zero limit disables that dimension.
type AuthRateLimitPolicy struct {
	Name       string
	Window     time.Duration
	IPLimit    int
	PhoneLimit int
}

func (p AuthRateLimitPolicy) name() string {
	if n := strings.ToLower(strings.TrimSpace(p.Name)); n != "" {
		return n
	}
	return "auth"
}

type rateCheck struct {
	dimension string
	subject   string
	limit     int
}

// AuthRateLimit applies the policy to the OTP endpoints. The phone number is
// read from the JSON body and normalized first, so "+98 912..." and "0912..."
// share a counter. Phones are hashed before they reach Redis or the logs.
func AuthRateLimit(policy AuthRateLimitPolicy, store rateLimiterStore, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if store == nil || policy.Window <= 0 || (policy.IPLimit <= 0 && policy.PhoneLimit <= 0) {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			var checks []rateCheck
			if ip := clientIP(r); policy.IPLimit > 0 && ip != "" {
				checks = append(checks, rateCheck{dimension: "ip", subject: ip, limit: policy.IPLimit})
			}
			if policy.PhoneLimit > 0 {
				body, err := io.ReadAll(r.Body)
				if err != nil {
					responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read request"))
					return
				}
				r.Body = io.NopCloser(bytes.NewReader(body))
				if phone, ok := types.NormalizePhone(phoneFromBody(body)); ok {
					sum := sha256.Sum256([]byte(phone))
					checks = append(checks, rateCheck{dimension: "phone", subject: hex.EncodeToString(sum[:]), limit: policy.PhoneLimit})
				}
			}

			for _, c := range checks {
				scope := c.dimension + ":" + policy.name() + ":" + c.subject
				allowed, count, err := store.FixedWindowAllow(ctx, scope, int64(c.limit), policy.Window)
				if err != nil {
					responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "rate limiting"))
					return
				}
				if !allowed {
					rejectRateLimited(ctx, logg, w, policy, c, count)
					return
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

func rejectRateLimited(ctx context.Context, logg *logger.Logger, w http.ResponseWriter, policy AuthRateLimitPolicy, c rateCheck, count int64) {
	retryAfter := int(policy.Window.Seconds())
	if logg != nil {
		logg.Warn(logg.WithFields(ctx, map[string]any{
			"policy":         policy.name(),
			"dimension":      c.dimension,
			"subject":        c.subject,
			"attempts":       count,
			"limit":          c.limit,
			"window_seconds": retryAfter,
		}), "auth.rate_limit.blocked")
	}
	w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
	responses.WriteError(ctx, nil, w, pkgerrors.New(pkgerrors.CodeRateLimit, "too many attempts, try again later"))
}

// clientIP prefers the first X-Forwarded-For hop, then X-Real-IP, then the peer.
func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); ip != "" {
		return ip
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

func phoneFromBody(payload []byte) string {
	var body struct {
		PhoneNumber string `json:"phone_number"`
	}
	_ = json.Unmarshal(payload, &body)
	return body.PhoneNumber
}
