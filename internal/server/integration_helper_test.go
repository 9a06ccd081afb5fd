package server

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"fmt"
	"math/big"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/msy-int/msy-api/internal/config"
	"github.com/msy-int/msy-api/internal/observability"
)

// testServer holds information about a running test server.
type testServer struct {
	server  *Server
	baseURL string
	client  *http.Client
}

// testConfig returns defaults bound to dynamic loopback ports.
func testConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.Server.Host = "127.0.0.1"
	cfg.Server.Port = "0"
	cfg.Server.MetricsPort = "0"
	cfg.Server.ShutdownTimeout = 5 * time.Second
	return cfg
}

// newTestServer builds a server with a silent logger.
func newTestServer(t *testing.T, cfg *config.Config, opts ...Option) *Server {
	t.Helper()
	opts = append([]Option{WithLogger(observability.NewNopLogger())}, opts...)
	srv, err := New(cfg, opts...)
	if err != nil {
		t.Fatalf("Failed to create server: %v", err)
	}
	return srv
}

// startTestServer runs a server (HTTP or HTTPS) on dynamic ports until the
// test ends.
func startTestServer(t *testing.T, cfg *config.Config, opts ...Option) *testServer {
	t.Helper()

	if cfg.TLS.Enabled && (cfg.TLS.CertFile == "" || cfg.TLS.KeyFile == "") {
		certFile, keyFile, err := generateTestCertificates(t.TempDir())
		if err != nil {
			t.Fatalf("Failed to generate test certificates: %v", err)
		}
		cfg.TLS.CertFile = certFile
		cfg.TLS.KeyFile = keyFile
	}

	srv := newTestServer(t, cfg, opts...)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Run(ctx)
	}()

	select {
	case <-srv.Started():
	case err := <-errCh:
		cancel()
		t.Fatalf("Server failed to start: %v", err)
	case <-time.After(10 * time.Second):
		cancel()
		t.Fatal("Server failed to start within timeout")
	}

	t.Cleanup(func() {
		cancel()
		select {
		case err := <-errCh:
			if err != nil {
				t.Errorf("Server returned an error: %v", err)
			}
		case <-time.After(10 * time.Second):
			t.Error("Server did not stop within timeout")
		}
	})

	client := &http.Client{Timeout: 5 * time.Second}
	protocol := "http"
	if cfg.TLS.Enabled {
		protocol = "https"
		client.Transport = &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
		}
	}

	return &testServer{
		server:  srv,
		baseURL: fmt.Sprintf("%s://%s", protocol, srv.Addr().String()),
		client:  client,
	}
}

func (ts *testServer) get(t *testing.T, path string) *http.Response {
	t.Helper()
	resp, err := ts.client.Get(ts.baseURL + path)
	if err != nil {
		t.Fatalf("GET %s failed: %v", path, err)
	}
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func generateTestCertificates(tmpDir string) (string, string, error) {
	privKey, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		return "", "", err
	}

	template := x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: "localhost"},
		NotBefore:    time.Now().Add(-time.Minute),
		NotAfter:     time.Now().Add(time.Hour),
		KeyUsage:     x509.KeyUsageKeyEncipherment | x509.KeyUsageDigitalSignature,
		ExtKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		DNSNames:     []string{"localhost"},
	}

	certDER, err := x509.CreateCertificate(rand.Reader, &template, &template, &privKey.PublicKey, privKey)
	if err != nil {
		return "", "", err
	}

	certFile := filepath.Join(tmpDir, "test-cert.pem")
	certPEM := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: certDER})
	if err := os.WriteFile(certFile, certPEM, 0o600); err != nil {
		return "", "", err
	}

	privKeyBytes, err := x509.MarshalPKCS8PrivateKey(privKey)
	if err != nil {
		return "", "", err
	}
	keyFile := filepath.Join(tmpDir, "test-key.pem")
	keyPEM := pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: privKeyBytes})
	if err := os.WriteFile(keyFile, keyPEM, 0o600); err != nil {
		return "", "", err
	}

	return certFile, keyFile, nil
}
