package httpmiddleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-faster/sdk/zctx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestWrap_Order(t *testing.T) {
	var trace []string
	mark := func(name string) Middleware {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				trace = append(trace, name)
				next.ServeHTTP(w, r)
			})
		}
	}

	h := Wrap(okHandler(), mark("outer"), mark("inner"))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, []string{"outer", "inner"}, trace)
}

func TestCORS(t *testing.T) {
	for _, tt := range []struct {
		name       string
		cfg        CORSConfig
		method     string
		origin     string
		wantOrigin string
		wantCreds  string
		wantMaxAge string
		wantVary   bool
	}{
		{
			name:       "WildcardNoOrigin",
			cfg:        CORSConfig{AllowOrigins: []string{"*"}, AllowCredentials: true},
			method:     http.MethodGet,
			wantOrigin: "*",
			wantCreds:  "true",
			wantVary:   true,
		},
		{
			name:       "WildcardEchoWithCredentials",
			cfg:        CORSConfig{AllowCredentials: true, MaxAge: 600},
			method:     http.MethodOptions,
			origin:     "https://shop.example",
			wantOrigin: "https://shop.example",
			wantCreds:  "true",
			wantMaxAge: "600",
			wantVary:   true,
		},
		{
			name:       "WildcardWithoutCredentials",
			cfg:        CORSConfig{MaxAge: 600},
			method:     http.MethodGet,
			origin:     "https://shop.example",
			wantOrigin: "*",
		},
		{
			name:       "ListedOrigin",
			cfg:        CORSConfig{AllowOrigins: []string{"https://Shop.example"}},
			method:     http.MethodGet,
			origin:     "https://shop.example",
			wantOrigin: "https://Shop.example",
			wantVary:   true,
		},
		{
			name:     "UnlistedOrigin",
			cfg:      CORSConfig{AllowOrigins: []string{"https://shop.example"}},
			method:   http.MethodGet,
			origin:   "https://evil.example",
			wantVary: true,
		},
	} {
		t.Run(tt.name, func(t *testing.T) {
			called := false
			h := CORS(tt.cfg)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				called = true
				w.WriteHeader(http.StatusOK)
			}))

			req := httptest.NewRequest(tt.method, "/api/goods", nil)
			if tt.origin != "" {
				req.Header.Set("Origin", tt.origin)
			}
			w := httptest.NewRecorder()
			h.ServeHTTP(w, req)

			require.True(t, called, "handler must always run")
			hdr := w.Header()
			assert.Equal(t, tt.wantOrigin, hdr.Get("Access-Control-Allow-Origin"))
			assert.Equal(t, tt.wantCreds, hdr.Get("Access-Control-Allow-Credentials"))
			assert.Equal(t, tt.wantMaxAge, hdr.Get("Access-Control-Max-Age"))
			assert.Equal(t, tt.wantVary, hdr.Get("Vary") == "Origin")
			if tt.wantOrigin != "" {
				assert.Equal(t, "POST, PATCH, GET, PUT, DELETE, OPTIONS", hdr.Get("Access-Control-Allow-Methods"))
				assert.Equal(t, "Origin, Content-Type, X-Auth-Token", hdr.Get("Access-Control-Allow-Headers"))
			}
		})
	}
}

func TestRequestID(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)

	var seen string
	h := Wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = RequestIDFromContext(r.Context())
		zctx.From(r.Context()).Info("inside")
	}), InjectLogger(zap.New(core)), RequestID())

	t.Run("Incoming", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("X-Request-ID", "abc-123")
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)

		assert.Equal(t, "abc-123", seen)
		assert.Equal(t, "abc-123", w.Header().Get("X-Request-ID"))

		entries := logs.TakeAll()
		require.Len(t, entries, 1)
		assert.Equal(t, "abc-123", entries[0].ContextMap()["request_id"])
	})
	t.Run("Generated", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("X-Request-ID", strings.Repeat("x", 129))
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)

		assert.Len(t, seen, 36)
		assert.Equal(t, seen, w.Header().Get("X-Request-ID"))
		logs.TakeAll()
	})
}

func TestRecovery(t *testing.T) {
	core, logs := observer.New(zapcore.ErrorLevel)
	h := Wrap(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}), InjectLogger(zap.New(core)), Recovery("Внутренняя ошибка сервера"))

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"message":"Внутренняя ошибка сервера"}`, w.Body.String())
	assert.Equal(t, 1, logs.FilterMessage("Panic recovered").Len())
}

func TestLogRequests(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	find := func(*http.Request) string { return "GetGoods" }

	h := Wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/fail" {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_, _ = w.Write([]byte("hello"))
	}), InjectLogger(zap.New(core)), LogRequests(find))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/ok", nil))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/fail", nil))

	entries := logs.TakeAll()
	require.Len(t, entries, 2)

	ok := entries[0].ContextMap()
	assert.Equal(t, zapcore.InfoLevel, entries[0].Level)
	assert.Equal(t, "GetGoods", ok["route"])
	assert.Equal(t, int64(http.StatusOK), ok["status"])
	assert.Equal(t, int64(5), ok["bytes"])

	assert.Equal(t, zapcore.WarnLevel, entries[1].Level)
	assert.Equal(t, int64(http.StatusInternalServerError), entries[1].ContextMap()["status"])
}
