package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"

	"stockline/internal/core/apperror"
	appctx "stockline/internal/core/context"
	"stockline/internal/core/id"
	"stockline/internal/infrastructure/idempotency"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func TestErrorHandler_AppError(t *testing.T) {
	r := gin.New()
	r.Use(ErrorHandler(false))
	r.GET("/", func(c *gin.Context) {
		_ = c.Error(apperror.NewValidation("name is required").WithField("name"))
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusBadRequest, w.Code)
	body := decode(t, w)
	assert.Equal(t, apperror.CodeValidation, body["code"])
	assert.Equal(t, "name", body["details"].(map[string]any)["field"])
}

func TestErrorHandler_UnknownErrorHidesCause(t *testing.T) {
	for _, debug := range []bool{false, true} {
		r := gin.New()
		r.Use(Trace(), ErrorHandler(debug))
		r.GET("/", func(c *gin.Context) { _ = c.Error(errors.New("pq: relation missing")) })

		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

		assert.Equal(t, http.StatusInternalServerError, w.Code)
		body := decode(t, w)
		assert.Equal(t, apperror.CodeInternal, body["code"])
		details := body["details"].(map[string]any)
		assert.NotEmpty(t, details["request_id"])
		if debug {
			assert.Equal(t, "pq: relation missing", details["cause"])
		} else {
			assert.NotContains(t, w.Body.String(), "relation missing")
		}
	}
}

func TestRecovery(t *testing.T) {
	r := gin.New()
	r.Use(ErrorHandler(false), Recovery())
	r.GET("/", func(*gin.Context) { panic("boom") })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "boom")
}

func TestTrace_ReusesRequestID(t *testing.T) {
	r := gin.New()
	r.Use(Trace())
	var seen string
	r.GET("/", func(c *gin.Context) { seen = appctx.GetRequestID(c.Request.Context()) })

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(HeaderRequestID, "req-1")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, "req-1", seen)
	assert.Equal(t, "req-1", w.Header().Get(HeaderRequestID))
	assert.NotEmpty(t, w.Header().Get(HeaderTraceID))
}

func TestTrace_PrefersSpanTraceID(t *testing.T) {
	traceID, err := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	require.NoError(t, err)
	spanID, err := trace.SpanIDFromHex("00f067aa0ba902b7")
	require.NoError(t, err)
	sc := trace.NewSpanContext(trace.SpanContextConfig{TraceID: traceID, SpanID: spanID})

	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Request = c.Request.WithContext(trace.ContextWithSpanContext(c.Request.Context(), sc))
		c.Next()
	})
	r.Use(Trace())
	r.GET("/", func(c *gin.Context) {})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(HeaderTraceID, "ignored")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, traceID.String(), w.Header().Get(HeaderTraceID))
}

type fakeValidator struct {
	actor *appctx.Actor
}

func (v fakeValidator) ValidateToken(token string) (*appctx.Actor, error) {
	if token != "good" {
		return nil, errors.New("bad token")
	}
	return v.actor, nil
}

func TestAuth(t *testing.T) {
	actor := &appctx.Actor{ID: id.New(), Roles: []string{appctx.RoleDealer}}
	r := gin.New()
	r.Use(ErrorHandler(false), Auth(fakeValidator{actor: actor}))
	r.GET("/any", func(c *gin.Context) {
		c.String(http.StatusOK, appctx.GetActorID(c.Request.Context()))
	})
	r.GET("/admin", RequireRole(appctx.RoleAdmin), func(c *gin.Context) { c.Status(http.StatusOK) })

	tests := []struct {
		name   string
		path   string
		header string
		want   int
	}{
		{"missing header", "/any", "", http.StatusUnauthorized},
		{"wrong scheme", "/any", "Basic good", http.StatusUnauthorized},
		{"invalid token", "/any", "Bearer bad", http.StatusUnauthorized},
		{"valid", "/any", "Bearer good", http.StatusOK},
		{"role missing", "/admin", "Bearer good", http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			assert.Equal(t, tt.want, w.Code)
			if tt.want == http.StatusOK && tt.path == "/any" {
				assert.Equal(t, actor.ID.String(), w.Body.String())
			}
		})
	}
}

// memoryStore is a minimal idempotency.Store.
type memoryStore struct {
	mu      sync.Mutex
	hashes  map[string]string
	replays map[string]*idempotency.Replay
}

func newMemoryStore() *memoryStore {
	return &memoryStore{hashes: map[string]string{}, replays: map[string]*idempotency.Replay{}}
}

func (s *memoryStore) Acquire(_ context.Context, key, actorID, operation, hash string) (*idempotency.Replay, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fingerprint := actorID + operation + hash
	if prev, ok := s.hashes[key]; ok {
		if prev != fingerprint {
			return nil, apperror.NewIdempotencyMismatch(key)
		}
		if r, ok := s.replays[key]; ok {
			return r, nil
		}
		return nil, apperror.NewIdempotencyConflict(key)
	}
	s.hashes[key] = fingerprint
	return nil, nil
}

func (s *memoryStore) finish(key string, status int, contentType string, response any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.replays[key] = idempotency.NormalizeReplay(&idempotency.Replay{
		StatusCode:  status,
		ContentType: contentType,
		Body:        idempotency.EncodeResponse(response),
	})
	return nil
}

func (s *memoryStore) Complete(_ context.Context, key string, status int, contentType string, response any) error {
	return s.finish(key, status, contentType, response)
}

func (s *memoryStore) Fail(_ context.Context, key string, status int, contentType string, response any) error {
	return s.finish(key, status, contentType, response)
}

func TestIdempotency_ReplaysSuccess(t *testing.T) {
	store := newMemoryStore()
	calls := 0
	r := gin.New()
	r.Use(ErrorHandler(false), Idempotency(store))
	r.POST("/sales", func(c *gin.Context) {
		calls++
		resp := gin.H{"number": "SL-2026-00001"}
		CompleteIdempotency(c, http.StatusCreated, "application/json", resp)
		c.JSON(http.StatusCreated, resp)
	})

	send := func(body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/sales", strings.NewReader(body))
		req.Header.Set(HeaderIdempotencyKey, "k1")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w
	}

	first := send(`{"a":1}`)
	second := send(`{"a":1}`)
	mismatch := send(`{"a":2}`)

	assert.Equal(t, 1, calls)
	assert.Equal(t, http.StatusCreated, first.Code)
	assert.Equal(t, http.StatusCreated, second.Code)
	assert.Equal(t, "true", second.Header().Get(HeaderIdempotentReplay))
	assert.JSONEq(t, first.Body.String(), second.Body.String())
	assert.Equal(t, http.StatusConflict, mismatch.Code)
}

func TestIdempotency_ReplaysFailure(t *testing.T) {
	store := newMemoryStore()
	calls := 0
	r := gin.New()
	r.Use(ErrorHandler(false), Idempotency(store))
	r.POST("/sales", func(c *gin.Context) {
		calls++
		_ = c.Error(apperror.NewBusinessRule(apperror.CodeEmptyCart, "cart is empty"))
	})

	for range 2 {
		req := httptest.NewRequest(http.MethodPost, "/sales", strings.NewReader(`{}`))
		req.Header.Set(HeaderIdempotencyKey, "k2")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
		assert.Equal(t, apperror.CodeEmptyCart, decode(t, w)["code"])
	}
	assert.Equal(t, 1, calls)
}

func TestIdempotency_SkipsWithoutKeyOrOnGet(t *testing.T) {
	store := newMemoryStore()
	calls := 0
	r := gin.New()
	r.Use(Idempotency(store))
	handler := func(c *gin.Context) { calls++; c.Status(http.StatusOK) }
	r.POST("/x", handler)
	r.GET("/x", handler)

	for range 2 {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/x", strings.NewReader("{}")))
		req := httptest.NewRequest(http.MethodGet, "/x", nil)
		req.Header.Set(HeaderIdempotencyKey, "k3")
		r.ServeHTTP(httptest.NewRecorder(), req)
	}
	assert.Equal(t, 4, calls)
}
