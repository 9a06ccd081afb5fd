package server

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/msy-int/msy-api/internal/observability"
	"github.com/msy-int/msy-api/internal/status"
)

func TestRun_ServesAPIAndMetrics(t *testing.T) {
	ts := startTestServer(t, testConfig())

	resp := ts.get(t, "/health")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var health status.StatusResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&health))
	assert.Equal(t, "MSY API Core", health.Service)

	resp = ts.get(t, "/unknown")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	metricsAddr := ts.server.MetricsAddr()
	require.NotNil(t, metricsAddr)
	metricsResp, err := ts.client.Get(fmt.Sprintf("http://%s/metrics", metricsAddr))
	require.NoError(t, err)
	defer metricsResp.Body.Close()

	body, err := io.ReadAll(metricsResp.Body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, metricsResp.StatusCode)
	assert.Contains(t, string(body), `http_requests_total{endpoint="/health",method="GET",status_code="200"} 1`)
	assert.Contains(t, string(body), "go_goroutines")
}

func TestRun_MetricsDisabled(t *testing.T) {
	cfg := testConfig()
	cfg.Observability.Metrics.Enabled = false
	ts := startTestServer(t, cfg)

	assert.Nil(t, ts.server.MetricsAddr())
	assert.Equal(t, http.StatusOK, ts.get(t, "/api").StatusCode)
}

func TestRun_LogsStartup(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	ts := startTestServer(t, testConfig(), WithLogger(&observability.Logger{Logger: zap.New(core)}))

	entries := logs.FilterMessage("MSY API started").All()
	require.Len(t, entries, 1)

	_, port, err := net.SplitHostPort(ts.server.Addr().String())
	require.NoError(t, err)
	assert.Equal(t, port, entries[0].ContextMap()["port"])
	assert.Equal(t, []interface{}{"accepting"}, entries[0].ContextMap()["checks"])
}

func TestRun_PortInUse(t *testing.T) {
	occupied, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer occupied.Close()

	cfg := testConfig()
	_, cfg.Server.Port, err = net.SplitHostPort(occupied.Addr().String())
	require.NoError(t, err)

	srv := newTestServer(t, cfg)

	done := make(chan error, 1)
	go func() { done <- srv.Run(context.Background()) }()

	select {
	case err := <-done:
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to listen")
	case <-time.After(5 * time.Second):
		t.Fatal("Run should fail immediately when the port is taken")
	}

	select {
	case <-srv.Started():
		t.Error("Started must not be closed when binding fails")
	default:
	}
}

func TestRun_GracefulShutdown(t *testing.T) {
	srv := newTestServer(t, testConfig())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Run(ctx) }()

	select {
	case <-srv.Started():
	case err := <-done:
		t.Fatalf("Server failed to start: %v", err)
	}
	addr := srv.Addr().String()

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("Server did not stop")
	}

	assert.False(t, srv.accepting.Load())
	_, err := net.DialTimeout("tcp", addr, time.Second)
	assert.Error(t, err, "listener should be closed after shutdown")
}

func TestRun_TLS(t *testing.T) {
	cfg := testConfig()
	cfg.TLS.Enabled = true
	ts := startTestServer(t, cfg)

	resp := ts.get(t, "/health")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NotNil(t, resp.TLS)
	assert.Equal(t, "max-age=31536000; includeSubDomains", resp.Header.Get("Strict-Transport-Security"))
}

func TestRun_HotReloadManifest(t *testing.T) {
	dir := t.TempDir()
	configFile := filepath.Join(dir, "msy-api.yaml")
	writeConfig := func(name, version string) {
		t.Helper()
		content := fmt.Sprintf("service:\n  name: %q\n  version: %q\n", name, version)
		require.NoError(t, os.WriteFile(configFile, []byte(content), 0o644))
	}
	writeConfig("MSY API Core", "1.0.0")

	t.Setenv("MSY_API_SERVICE_NAME", "")
	t.Setenv("MSY_API_SERVICE_VERSION", "")

	cfg := testConfig()
	cfg.ConfigFile = configFile
	cfg.HotReload.Enabled = true
	cfg.HotReload.Debounce = 20 * time.Millisecond
	ts := startTestServer(t, cfg)

	versionOf := func() string {
		resp, err := ts.client.Get(ts.baseURL + "/health")
		if err != nil {
			return ""
		}
		defer resp.Body.Close()
		var health status.StatusResponse
		if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
			return ""
		}
		return health.Version
	}

	reportOf := func() status.Report {
		var report status.Report
		resp, err := ts.client.Get(ts.baseURL + "/api/status")
		if err != nil {
			return report
		}
		defer resp.Body.Close()
		_ = json.NewDecoder(resp.Body).Decode(&report)
		return report
	}

	require.Equal(t, "1.0.0", versionOf())
	assert.Equal(t, map[string]bool{"accepting": true, "config_reload": true}, reportOf().Checks)

	writeConfig("MSY API Core", "1.1.0")
	assert.Eventually(t, func() bool { return versionOf() == "1.1.0" }, 5*time.Second, 20*time.Millisecond)

	// An invalid manifest keeps the previous one.
	writeConfig("", "")
	assert.Eventually(t, func() bool {
		report := reportOf()
		return report.Status == status.StatusDegraded && !report.Checks["config_reload"]
	}, 5*time.Second, 20*time.Millisecond)
	assert.Equal(t, "1.1.0", versionOf())
	assert.Equal(t, "MSY API Core", ts.server.Reporter().Manifest().Service)

	writeConfig("MSY API Core", "1.2.0")
	assert.Eventually(t, func() bool {
		report := reportOf()
		return report.Status == status.StatusOK && report.Version == "1.2.0"
	}, 5*time.Second, 20*time.Millisecond)
}
