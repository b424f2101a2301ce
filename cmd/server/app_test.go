package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phrazzld/docstream/internal/api"
	"github.com/phrazzld/docstream/internal/config"
	"github.com/phrazzld/docstream/internal/domain"
	"github.com/phrazzld/docstream/internal/service/auth"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func testAppConfig(t *testing.T, jwtSecret string) *config.Config {
	t.Helper()

	cfg, err := config.Load()
	require.NoError(t, err)
	cfg.Auth.JWTSecret = jwtSecret
	cfg.Parser.APIKey = "mineru-test-key-1234"
	cfg.Parser.BaseURL = "https://mineru.example/api/v4"
	cfg.LLM.GeminiAPIKey = ""
	cfg.Server.ShutdownTimeoutSeconds = 2
	return cfg
}

func testApp(t *testing.T, jwtSecret string) *application {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	app, err := newApplication(testAppConfig(t, jwtSecret), logger)
	require.NoError(t, err)
	t.Cleanup(app.registry.Stop)
	return app
}

func get(t *testing.T, h http.Handler, path, token string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(http.MethodGet, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestRouter_PublicEndpoints(t *testing.T) {
	app := testApp(t, "")
	router := app.setupRouter()

	rec := get(t, router, "/health", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var health api.HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &health))
	assert.True(t, health.ParserConfigured)

	rec = get(t, router, apiPrefix+"/status", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var status api.ServiceStatusResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.True(t, status.Configured)
	assert.Equal(t, "https://mineru.example/api/v4", status.APIBase)
	assert.False(t, status.AnalyzerConfigured)
	assert.NotContains(t, rec.Body.String(), "mineru-test-key-1234")

	rec = get(t, router, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "docstream_analysis_tasks_active")
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestRouter_NoAuthWithoutSecret(t *testing.T) {
	app := testApp(t, "")
	assert.Nil(t, app.jwtService)

	rec := get(t, app.setupRouter(), apiPrefix+"/task/unknown", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRouter_AuthRequiredWithSecret(t *testing.T) {
	app := testApp(t, testSecret)
	require.NotNil(t, app.jwtService)
	router := app.setupRouter()

	rec := get(t, router, apiPrefix+"/task/unknown", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = get(t, router, apiPrefix+"/task/unknown", "not-a-jwt")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	token, err := app.jwtService.GenerateToken(context.Background(), "alice")
	require.NoError(t, err)
	rec = get(t, router, apiPrefix+"/task/unknown", token)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	// Images are fetched by <img> tags and stay public.
	rec = get(t, router, apiPrefix+"/image/unknown", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRouter_RemovingTaskDropsArtifacts(t *testing.T) {
	app := testApp(t, "")

	tk, err := app.registry.Create()
	require.NoError(t, err)
	require.NoError(t, app.artifacts.Put(tk.ID(), testArtifact("img_0")))

	rec := get(t, app.setupRouter(), apiPrefix+"/image/img_0", "")
	require.Equal(t, http.StatusOK, rec.Code)

	app.registry.Remove(tk.ID())
	rec = get(t, app.setupRouter(), apiPrefix+"/image/img_0", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServe_GracefulShutdown(t *testing.T) {
	app := testApp(t, "")

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- app.Serve(ctx, ln) }()

	url := "http://" + ln.Addr().String() + "/health"
	require.Eventually(t, func() bool {
		resp, err := http.Get(url)
		if err != nil {
			return false
		}
		defer resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 10*time.Millisecond)

	tk, err := app.registry.Create()
	require.NoError(t, err)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
	assert.True(t, tk.IsCancelled(), "shutdown cancels live tasks")
}

func TestTokenCommand(t *testing.T) {
	path := writeConfig(t, "auth:\n  jwt_secret: "+testSecret+"\n")

	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"token", "--config", path, "--subject", "bob"})
	require.NoError(t, cmd.ExecuteContext(context.Background()))

	cfg, err := config.LoadFromFile(path)
	require.NoError(t, err)
	svc, err := auth.NewJWTService(cfg.Auth)
	require.NoError(t, err)

	claims, err := svc.ValidateToken(context.Background(), strings.TrimSpace(out.String()))
	require.NoError(t, err)
	assert.Equal(t, "bob", claims.Subject)
}

func TestTokenCommand_Errors(t *testing.T) {
	tests := []struct {
		name string
		args func(path string) []string
	}{
		{
			name: "no secret configured",
			args: func(path string) []string { return []string{"token", "--config", path, "--subject", "bob"} },
		},
		{
			name: "missing subject",
			args: func(path string) []string { return []string{"token", "--config", path} },
		},
		{
			name: "missing config file",
			args: func(path string) []string {
				return []string{"token", "--config", filepath.Join(filepath.Dir(path), "absent.yaml"), "--subject", "bob"}
			},
		},
	}

	path := writeConfig(t, "server:\n  port: 9090\n")
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cmd := newRootCommand()
			cmd.SetOut(io.Discard)
			cmd.SetErr(io.Discard)
			cmd.SetArgs(tc.args(path))
			assert.Error(t, cmd.ExecuteContext(context.Background()))
		})
	}
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "docstream.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func testArtifact(id string) domain.Artifact {
	return domain.Artifact{ID: id, Format: "png", Data: []byte("png-bytes")}
}
