//go:build integration

package integration

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/hopeana/dispatcher/internal/app"
	"github.com/hopeana/dispatcher/internal/config"
	"github.com/hopeana/dispatcher/internal/metrics"
)

// fakeBulkAPI records every bulk request and answers with a configurable
// verdict.
type fakeBulkAPI struct {
	mu       sync.Mutex
	requests []map[string]any
	status   int
	body     string
}

func (f *fakeBulkAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var payload map[string]any
	_ = json.NewDecoder(r.Body).Decode(&payload)

	f.mu.Lock()
	f.requests = append(f.requests, payload)
	status, body := f.status, f.body
	f.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}

func (f *fakeBulkAPI) respond(status int, body string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.status, f.body = status, body
}

func (f *fakeBulkAPI) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

type env struct {
	api       *fakeBulkAPI
	server    *httptest.Server
	container app.ServiceContainer
}

func setup(t *testing.T) *env {
	t.Helper()

	api := &fakeBulkAPI{status: http.StatusOK, body: `{"success":true}`}
	apiSrv := httptest.NewServer(api)
	t.Cleanup(apiSrv.Close)

	dir := t.TempDir()
	t.Setenv("DB_NAME", filepath.Join(dir, "dispatcher.db"))
	t.Setenv("EMAIL_API_URL", apiSrv.URL)
	t.Setenv("EMAIL_API_KEY", "test-key")
	t.Setenv("EMAIL_TEMPLATE_ID", "tpl-daily")
	t.Setenv("EMAIL_FROM", "hello@hopeana.app")
	t.Setenv("EMAIL_RATE_PER_SEC", "100")
	t.Setenv("DISPATCH_PROVIDER", "http")
	t.Setenv("DISPATCH_CRON", "")
	t.Setenv("HTTP_LOG_FILE", filepath.Join(dir, "http.log"))
	t.Setenv("REDIS_ADDR", "")
	t.Setenv("TRIGGER_SECRET", "")

	cfg, err := config.NewConfig()
	require.NoError(t, err)

	logger := zerolog.New(os.Stderr).Level(zerolog.WarnLevel)
	application := app.New(*cfg, logger, metrics.NewMetrics("integration"))
	container, err := application.Init(context.Background())
	require.NoError(t, err)

	srv := httptest.NewServer(container.Router)
	t.Cleanup(func() {
		srv.Close()
		_ = application.Stop(container)
	})

	return &env{api: api, server: srv, container: container}
}
