package slogx

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNew_JSONOutput(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Service: "invites", Version: "test", Env: "test", Level: "warn", Output: &buf})

	logger.Info("dropped")
	logger.Warn("kept", Err(context.Canceled))

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	require.Equal(t, "kept", line["msg"])
	require.Equal(t, "invites", line["service"])
	require.Equal(t, "context canceled", line["err"])
}

func TestFromContext_Default(t *testing.T) {
	require.NotNil(t, FromContext(context.Background()))

	logger := Discard()
	ctx := WithContext(context.Background(), logger)
	require.Same(t, logger, FromContext(ctx))
}

func TestHTTPMiddleware(t *testing.T) {
	var buf bytes.Buffer
	base := New(Config{Service: "invites", Output: &buf})

	var seen bool
	h := HTTPMiddleware(base, "/livez")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = FromContext(r.Context()) != base
		w.WriteHeader(http.StatusTeapot)
	}))

	req := httptest.NewRequest(http.MethodGet, "/v1/invites", nil)
	req.Header.Set(RequestIDHeader, "req-123")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.True(t, seen, "handler should get a request scoped logger")
	require.Equal(t, "req-123", rec.Header().Get(RequestIDHeader))
	require.Contains(t, buf.String(), `"status":418`)
	require.Contains(t, buf.String(), `"req_id":"req-123"`)

	buf.Reset()
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/livez", nil))
	require.Empty(t, buf.String())
	require.NotEmpty(t, rec.Header().Get(RequestIDHeader))
}
