package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/accountd/internal/server/config"
	"github.com/iudanet/accountd/internal/server/handlers"
)

func testConfig(t *testing.T) *config.Config {
	dir := t.TempDir()
	return &config.Config{
		Addr:          "127.0.0.1:0",
		DatabasePath:  filepath.Join(dir, "test.db"),
		ImageDir:      filepath.Join(dir, "images"),
		BaseURL:       "http://localhost:8080",
		TokenTTL:      7 * 24 * time.Hour,
		SweepInterval: time.Hour,
		RateLimit:     100,
		RateWindow:    time.Minute,
	}
}

func TestServer_New(t *testing.T) {
	srv, err := New(context.Background(), testConfig(t), slog.Default(), "test")
	require.NoError(t, err)
	defer func() {
		_ = srv.Close()
	}()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	req.RemoteAddr = "10.0.0.1:1234"
	rec := httptest.NewRecorder()

	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp handlers.HealthResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "test", resp.Version)
}

func TestServer_RoutesRequireAuth(t *testing.T) {
	srv, err := New(context.Background(), testConfig(t), slog.Default(), "test")
	require.NoError(t, err)
	defer func() {
		_ = srv.Close()
	}()

	// Без Authorization шлюз не добавляет principal,
	// и защищенные endpoints отвечают 403
	paths := []struct {
		method string
		path   string
	}{
		{http.MethodGet, "/api/v1/users"},
		{http.MethodGet, "/api/v1/users/1"},
		{http.MethodDelete, "/api/v1/users/1"},
	}

	for _, p := range paths {
		req := httptest.NewRequest(p.method, p.path, nil)
		req.RemoteAddr = "10.0.0.1:1234"
		rec := httptest.NewRecorder()

		srv.Handler().ServeHTTP(rec, req)

		assert.Equal(t, http.StatusForbidden, rec.Code, "%s %s", p.method, p.path)
	}
}

func TestServer_RunAndShutdown(t *testing.T) {
	srv, err := New(context.Background(), testConfig(t), slog.Default(), "test")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		done <- srv.Run(ctx)
	}()

	// Даем серверу подняться, затем останавливаем
	time.Sleep(100 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}
