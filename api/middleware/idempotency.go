package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/persiashop/storefront-backend/api/responses"
	pkgerrors "github.com/persiashop/storefront-backend/pkg/errors"
	"github.com/persiashop/storefront-backend/pkg/logger"
	pkgredis "github.com/persiashop/storefront-backend/pkg/redis"
)

const (
	IdempotencyKeyHeader  = "Idempotency-Key"
	maxIdempotencyKeyLen  = 255
	defaultIdempotencyTTL = 24 * time.Hour
	defaultPendingTTL     = time.Minute
)

// IdempotencyPolicy configures one protected route. Scope separates keys of
// different routes; TTL is how long a finished response is replayed.
type IdempotencyPolicy struct {
	Scope      string
	TTL        time.Duration
	PendingTTL time.Duration
}

type idempotencyState string

const (
	statePending idempotencyState = "pending"
	stateDone    idempotencyState = "done"
)

type storedResponse struct {
	State       idempotencyState `json:"state"`
	Fingerprint string           `json:"fingerprint"`
	Status      int              `json:"status,omitempty"`
	ContentType string           `json:"content_type,omitempty"`
	Body        []byte           `json:"body,omitempty"`
}

// Idempotency requires an Idempotency-Key header and guarantees the wrapped
// handler runs at most once per key and caller. The key is reserved before the
// handler runs. A concurrent duplicate gets CONFLICT and a later duplicate gets
// the stored response replayed. Reusing a key with a different body is
// rejected as IDEMPOTENCY_KEY_REUSED. 5xx responses release the key so the
// client may retry.
func Idempotency(store pkgredis.IdempotencyStore, policy IdempotencyPolicy, logg *logger.Logger) func(http.Handler) http.Handler {
	if policy.TTL <= 0 {
		policy.TTL = defaultIdempotencyTTL
	}
	if policy.PendingTTL <= 0 {
		policy.PendingTTL = defaultPendingTTL
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			clientKey := strings.TrimSpace(r.Header.Get(IdempotencyKeyHeader))
			if clientKey == "" || len(clientKey) > maxIdempotencyKeyLen {
				responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "Idempotency-Key header required (max 255 characters)"))
				return
			}

			body, err := io.ReadAll(r.Body)
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read request body"))
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(body))

			fingerprint := requestFingerprint(r, body)
			key := store.IdempotencyKey(policy.Scope+":"+callerScope(ctx), clientKey)

			reservation, _ := json.Marshal(storedResponse{State: statePending, Fingerprint: fingerprint})
			reserved, err := store.SetNX(ctx, key, string(reservation), policy.PendingTTL)
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reserve idempotency key"))
				return
			}
			if !reserved {
				replayStored(ctx, store, key, fingerprint, w, logg)
				return
			}

			// The outcome must be recorded even if the client hangs up mid-request.
			saveCtx := context.WithoutCancel(ctx)
			defer func() {
				if p := recover(); p != nil {
					_ = store.Del(saveCtx, key)
					panic(p)
				}
			}()

			capture := &responseCapture{ResponseWriter: w}
			next.ServeHTTP(capture, r)

			status := capture.statusCode()
			if status >= http.StatusInternalServerError {
				if err := store.Del(saveCtx, key); err != nil && logg != nil {
					logg.Error(saveCtx, "failed to release idempotency key", err)
				}
				return
			}
			done, _ := json.Marshal(storedResponse{
				State:       stateDone,
				Fingerprint: fingerprint,
				Status:      status,
				ContentType: capture.Header().Get("Content-Type"),
				Body:        capture.body.Bytes(),
			})
			if err := store.Set(saveCtx, key, string(done), policy.TTL); err != nil && logg != nil {
				logg.Error(saveCtx, "failed to store idempotent response", err)
			}
		})
	}
}

func replayStored(ctx context.Context, store pkgredis.IdempotencyStore, key, fingerprint string, w http.ResponseWriter, logg *logger.Logger) {
	raw, err := store.Get(ctx, key)
	if err != nil {
		if pkgredis.IsNil(err) {
			// Reservation expired between SetNX and Get.
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeConflict, "request with this Idempotency-Key is in progress, retry shortly"))
			return
		}
		responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load idempotent response"))
		return
	}

	var stored storedResponse
	if err := json.Unmarshal([]byte(raw), &stored); err != nil {
		responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "decode idempotent response"))
		return
	}
	switch {
	case stored.Fingerprint != fingerprint:
		responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeIdempotency, "Idempotency-Key reused with a different request"))
	case stored.State != stateDone:
		responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeConflict, "request with this Idempotency-Key is in progress, retry shortly"))
	default:
		if stored.ContentType != "" {
			w.Header().Set("Content-Type", stored.ContentType)
		}
		w.Header().Set("Idempotent-Replayed", "true")
		w.WriteHeader(stored.Status)
		_, _ = w.Write(stored.Body)
	}
}

// callerScope keeps keys from different users and guest sessions apart.
func callerScope(ctx context.Context) string {
	return strconv.FormatInt(UserIDFromContext(ctx), 10) + ":" + CartSessionFromContext(ctx)
}

func requestFingerprint(r *http.Request, body []byte) string {
	h := sha256.New()
	h.Write([]byte(r.Method))
	h.Write([]byte{0})
	h.Write([]byte(r.URL.Path))
	h.Write([]byte{0})
	h.Write(body)
	return hex.EncodeToString(h.Sum(nil))
}

type responseCapture struct {
	http.ResponseWriter
	body   bytes.Buffer
	status int
}

func (c *responseCapture) WriteHeader(code int) {
	if c.status == 0 {
		c.status = code
	}
	c.ResponseWriter.WriteHeader(code)
}

func (c *responseCapture) Write(b []byte) (int, error) {
	if c.status == 0 {
		c.status = http.StatusOK
	}
	c.body.Write(b)
	return c.ResponseWriter.Write(b)
}

func (c *responseCapture) statusCode() int {
	if c.status == 0 {
		return http.StatusOK
	}
	return c.status
}
