package main

import (
	"bytes"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"postflow/internal/testsupport"
)

type fakeGraph struct {
	mu        sync.Mutex
	published []string
}

func (f *fakeGraph) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	switch r.URL.Path {
	case "/test-account/media":
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			_ = r.ParseForm()
		}
		f.mu.Lock()
		f.published = append(f.published, r.FormValue("caption"))
		n := len(f.published)
		f.mu.Unlock()
		fmt.Fprintf(w, `{"id":"container-%d"}`, n)
	case "/test-account/media_publish":
		fmt.Fprintf(w, `{"id":"1789%s"}`, strings.TrimPrefix(r.FormValue("creation_id"), "container-"))
	default:
		http.NotFound(w, r)
	}
}

func (f *fakeGraph) captions() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.published...)
}

type cliTestEnv struct {
	configPath string
	mediaDir   string
	logDir     string
	graph      *fakeGraph
}

func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()

	graph := &fakeGraph{}
	srv := httptest.NewServer(graph)
	t.Cleanup(srv.Close)

	base := t.TempDir()
	t.Setenv("HOME", filepath.Join(base, "home"))
	for _, key := range []string{"POSTFLOW_PLATFORM_TOKEN", "POSTFLOW_API_TOKEN", "POSTFLOW_JWT_SECRET"} {
		t.Setenv(key, "")
	}
	cfg := testsupport.NewConfig(t, testsupport.WithPlatformURL(srv.URL))
	testsupport.WriteMedia(t, cfg.Paths.MediaDir, "photo.jpg")

	configPath := filepath.Join(base, "postflow.toml")
	content := fmt.Sprintf(`[paths]
data_dir = %q
log_dir = %q
media_dir = %q
api_bind = "127.0.0.1:1"

[platform]
base_url = %q
account_id = %q
access_token = %q
requests_per_minute = 600

[auth]
jwt_secret = %q

[metrics]
enabled = false

[logging]
level = "error"
`,
		cfg.Paths.DataDir,
		cfg.Paths.LogDir,
		cfg.Paths.MediaDir,
		cfg.Platform.BaseURL,
		cfg.Platform.AccountID,
		cfg.Platform.AccessToken,
		cfg.Auth.JWTSecret,
	)
	if err := os.WriteFile(configPath, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	return &cliTestEnv{configPath: configPath, mediaDir: cfg.Paths.MediaDir, logDir: cfg.Paths.LogDir, graph: graph}
}

func runCLI(t *testing.T, args []string, configPath string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	var flags []string
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func (e *cliTestEnv) run(t *testing.T, args ...string) string {
	t.Helper()
	out, _, err := runCLI(t, args, e.configPath)
	if err != nil {
		t.Fatalf("postflow %s: %v", strings.Join(args, " "), err)
	}
	return out
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}
