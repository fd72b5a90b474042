package app

import (
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	cfg := validConfig(t)

	application, err := New(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = application.Close() })

	// The hash key is generated on first start and kept for the next one.
	_, err = os.Stat(cfg.HMACSecretFile)
	require.NoError(t, err)

	for _, path := range []string{"/livez", "/readyz", "/metrics"} {
		rec := httptest.NewRecorder()
		application.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		require.Equal(t, http.StatusOK, rec.Code, path)
	}

	rec := httptest.NewRecorder()
	application.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/invites", nil))
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	cfg := validConfig(t)
	cfg.IDPBaseURL = ""

	_, err := New(cfg)
	require.ErrorContains(t, err, "invalid configuration")
}

func TestNewRejectsBadAlgorithm(t *testing.T) {
	cfg := validConfig(t)
	cfg.HMACAlgorithm = "HmacMD5"

	_, err := New(cfg)
	require.ErrorContains(t, err, "token codec")
}
