package apidoc

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	doc, err := Load("1.2.3")
	require.NoError(t, err)
	assert.Equal(t, "1.2.3", doc.doc.Info.Version)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(doc.JSON(), &decoded))
	info := decoded["info"].(map[string]interface{})
	assert.Equal(t, "1.2.3", info["version"])
	assert.Equal(t, "MSY API Core", info["title"])
}

func TestRoutes(t *testing.T) {
	doc, err := Load("1.0.0")
	require.NoError(t, err)

	assert.Equal(t, []Route{
		{Method: "GET", Path: "/api"},
		{Method: "GET", Path: "/api/status"},
		{Method: "GET", Path: "/health"},
		{Method: "GET", Path: "/openapi.json"},
		{Method: "GET", Path: "/ready"},
	}, doc.Routes())

	assert.True(t, doc.HasOperation("GET", "/health"))
	assert.False(t, doc.HasOperation("POST", "/health"))
	assert.False(t, doc.HasOperation("GET", "/unknown"))
}

func TestValidateResponse(t *testing.T) {
	doc, err := Load("1.0.0")
	require.NoError(t, err)

	tests := []struct {
		name    string
		method  string
		path    string
		status  int
		body    string
		wantErr bool
	}{
		{
			name:   "valid health",
			method: "GET", path: "/health", status: 200,
			body: `{"status":"OK","service":"MSY API Core","timestamp":"2026-10-18T08:30:15.123Z","version":"1.0.0"}`,
		},
		{
			name:   "unknown liveness value",
			method: "GET", path: "/health", status: 200,
			body:    `{"status":"FINE","service":"MSY API Core","timestamp":"2026-10-18T08:30:15.123Z","version":"1.0.0"}`,
			wantErr: true,
		},
		{
			name:   "empty service",
			method: "GET", path: "/health", status: 200,
			body:    `{"status":"OK","service":"","timestamp":"2026-10-18T08:30:15.123Z","version":"1.0.0"}`,
			wantErr: true,
		},
		{
			name:   "extra field on welcome",
			method: "GET", path: "/api", status: 200,
			body:    `{"message":"m","philosophy":"p","hierarchy":"h","extra":1}`,
			wantErr: true,
		},
		{
			name:   "not ready",
			method: "GET", path: "/ready", status: 503,
			body: `{"status":"not ready"}`,
		},
		{
			name:   "undocumented status",
			method: "GET", path: "/api", status: 500,
			body:    `{}`,
			wantErr: true,
		},
		{
			name:   "undocumented path",
			method: "GET", path: "/nope", status: 200,
			body:    `{}`,
			wantErr: true,
		},
		{
			name:   "not json",
			method: "GET", path: "/api", status: 200,
			body:    `<html>`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := doc.ValidateResponse(tt.method, tt.path, tt.status, []byte(tt.body))
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestHandler(t *testing.T) {
	doc, err := Load("1.0.0")
	require.NoError(t, err)

	rr := httptest.NewRecorder()
	doc.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/openapi.json", nil))

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))
	assert.JSONEq(t, string(doc.JSON()), rr.Body.String())
}
