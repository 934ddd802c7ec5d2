package middleware

import (
	"bytes"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"

	"github.com/dfrestrepo/mercaflow-backend/api/responses"
	pkgerrors "github.com/dfrestrepo/mercaflow-backend/pkg/errors"
	"github.com/dfrestrepo/mercaflow-backend/pkg/logger"
	pkgredis "github.com/dfrestrepo/mercaflow-backend/pkg/redis"
)

const (
	defaultIdempotencyTTL  = 24 * time.Hour
	criticalIdempotencyTTL = 7 * 24 * time.Hour
)

// guardedRoute names one endpoint that demands an Idempotency-Key. Exact
// routes match on the chi pattern; prefix+suffix covers patterns with a
// path parameter in the middle.
type guardedRoute struct {
	method string
	exact  string
	prefix string
	suffix string
	ttl    time.Duration
}

func (g guardedRoute) match(method, pattern string) bool {
	if method != g.method {
		return false
	}
	if g.exact != "" {
		return pattern == g.exact
	}
	return strings.HasPrefix(pattern, g.prefix) && strings.HasSuffix(pattern, g.suffix)
}

// Money-moving endpoints keep their fence for a week; cart merge replays are
// cheap but noisy, a day is plenty.
var guardedRoutes = []guardedRoute{
	{method: http.MethodPost, exact: "/api/v1/checkout/order", ttl: criticalIdempotencyTTL},
	{method: http.MethodPost, exact: "/api/v1/payments", ttl: criticalIdempotencyTTL},
	{method: http.MethodPost, prefix: "/api/v1/orders/", suffix: "/cancel", ttl: criticalIdempotencyTTL},
	{method: http.MethodPost, exact: "/api/v1/cart/merge", ttl: defaultIdempotencyTTL},
}

func ttlFor(method, pattern string) (time.Duration, bool) {
	if pattern == "" {
		return 0, false
	}
	for _, route := range guardedRoutes {
		if route.match(method, pattern) {
			return route.ttl, true
		}
	}
	return 0, false
}

// storedResponse is the record persisted per idempotency key. The body is
// base64 so the record survives JSON encoding regardless of what the handler
// wrote.
type storedResponse struct {
	Status      int    `json:"status"`
	BodyB64     string `json:"body_b64"`
	ContentType string `json:"content_type,omitempty"`
	RequestSHA  string `json:"request_sha"`
}

// Idempotency fences the money-moving POST routes behind an Idempotency-Key
// header. A repeated key replays the stored response; the same key with a
// different body is rejected so a client bug cannot silently place two
// distinct orders.
func Idempotency(store pkgredis.IdempotencyStore, logg *logger.Logger) func(http.Handler) http.Handler {
	guard := &idempotencyGuard{store: store, logg: logg}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			guard.serve(w, r, next)
		})
	}
}

type idempotencyGuard struct {
	store pkgredis.IdempotencyStore
	logg  *logger.Logger
}

func (g *idempotencyGuard) serve(w http.ResponseWriter, r *http.Request, next http.Handler) {
	ttl, guarded := ttlFor(r.Method, chiPattern(r))
	if !guarded || g.store == nil {
		next.ServeHTTP(w, r)
		return
	}

	idempotencyKey := strings.TrimSpace(r.Header.Get("Idempotency-Key"))
	if idempotencyKey == "" {
		responses.WriteError(r.Context(), g.logg, w, pkgerrors.New(pkgerrors.CodeValidation, "Idempotency-Key header required"))
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		responses.WriteError(r.Context(), g.logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read request"))
		return
	}
	r.Body = io.NopCloser(bytes.NewReader(body))

	digest := sha256.Sum256(body)
	requestSHA := hex.EncodeToString(digest[:])
	key := g.store.IdempotencyKey(requestScope(r), idempotencyKey)

	prior, err := g.lookup(r, key)
	if err != nil {
		responses.WriteError(r.Context(), g.logg, w, err)
		return
	}
	if prior != nil {
		if prior.RequestSHA != requestSHA {
			responses.WriteError(r.Context(), g.logg, w, pkgerrors.New(pkgerrors.CodeIdempotency, "idempotency key reused with different request body"))
			return
		}
		g.replay(w, prior)
		return
	}

	buf := &bufferedWriter{ResponseWriter: w}
	next.ServeHTTP(buf, r)
	g.persist(r, key, ttl, requestSHA, buf)
}

func (g *idempotencyGuard) lookup(r *http.Request, key string) (*storedResponse, error) {
	raw, err := g.store.Get(r.Context(), key)
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check idempotency")
	}
	if raw == "" {
		return nil, nil
	}
	var record storedResponse
	if err := json.Unmarshal([]byte(raw), &record); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode idempotency record")
	}
	return &record, nil
}

func (g *idempotencyGuard) replay(w http.ResponseWriter, record *storedResponse) {
	if record.ContentType != "" {
		w.Header().Set("Content-Type", record.ContentType)
	}
	w.WriteHeader(record.Status)
	if decoded, err := base64.StdEncoding.DecodeString(record.BodyB64); err == nil {
		_, _ = w.Write(decoded)
	}
}

func (g *idempotencyGuard) persist(r *http.Request, key string, ttl time.Duration, requestSHA string, buf *bufferedWriter) {
	record := storedResponse{
		Status:      buf.statusOr(http.StatusOK),
		BodyB64:     base64.StdEncoding.EncodeToString(buf.body.Bytes()),
		ContentType: buf.Header().Get("Content-Type"),
		RequestSHA:  requestSHA,
	}
	payload, err := json.Marshal(record)
	if err != nil {
		if g.logg != nil {
			g.logg.Error(r.Context(), "marshal idempotency record", err)
		}
		return
	}
	if _, err := g.store.SetNX(r.Context(), key, string(payload), ttl); err != nil && g.logg != nil {
		g.logg.Error(r.Context(), "persist idempotency record", err)
	}
}

// requestScope ties a key to the caller and the route, so two users reusing
// the same key value never collide.
func requestScope(r *http.Request) string {
	parts := []string{
		UserIDFromContext(r.Context()),
		CartSessionFromContext(r.Context()),
		r.Method,
		r.URL.Path,
	}
	return strings.Join(parts, "|")
}

func chiPattern(r *http.Request) string {
	if rc := chi.RouteContext(r.Context()); rc != nil {
		if pattern := rc.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return r.URL.Path
}

type bufferedWriter struct {
	http.ResponseWriter
	body   bytes.Buffer
	status int
}

func (b *bufferedWriter) WriteHeader(code int) {
	b.status = code
	b.ResponseWriter.WriteHeader(code)
}

func (b *bufferedWriter) Write(p []byte) (int, error) {
	if b.status == 0 {
		b.status = http.StatusOK
	}
	b.body.Write(p)
	return b.ResponseWriter.Write(p)
}

func (b *bufferedWriter) statusOr(fallback int) int {
	if b.status == 0 {
		return fallback
	}
	return b.status
}
