package cmd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/require"

	"github.com/telekom/azure-vminfo/pkg/vminfo/config"
)

const (
	testTenant   = "contoso"
	testSPClient = "sp-client"
	testSPSecret = "sp-secret"
)

// testEnv is an isolated set of files plus fake identity and Resource Graph servers.
type testEnv struct {
	t      *testing.T
	dir    string
	paths  config.Paths
	idp    *httptest.Server
	graph  *httptest.Server
	tokens atomic.Int32

	mu          sync.Mutex
	graphCalls  int
	lastAuth    string
	vmNames     []string
	issuedToken string
	// rejectTokens answers that many Resource Graph calls with 401.
	rejectTokens int
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	for _, key := range []string{"VMINFO_OUTPUT", "VMINFO_TOKEN_STORAGE", "VMINFO_NON_INTERACTIVE", "VMINFO_VERBOSE",
		"VMINFO_METRICS_FILE", "VMINFO_TENANT_ID", "VMINFO_CLIENT_ID", "VMINFO_CLIENT_SECRET", "VMINFO_AUTH_METHOD"} {
		t.Setenv(key, "")
	}
	dir := t.TempDir()
	env := &testEnv{
		t:   t,
		dir: dir,
		paths: config.Paths{
			ConfigFile: filepath.Join(dir, "config.yaml"),
			TokenFile:  filepath.Join(dir, "token.json"),
			CacheFile:  filepath.Join(dir, "results.json"),
		},
		vmNames: []string{"web-01", "web-02", "db-01"},
	}
	env.idp = httptest.NewServer(http.HandlerFunc(env.handleToken))
	env.graph = httptest.NewServer(http.HandlerFunc(env.handleGraph))
	t.Cleanup(env.idp.Close)
	t.Cleanup(env.graph.Close)
	return env
}

func (e *testEnv) handleToken(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if r.URL.Path != "/"+testTenant+"/oauth2/v2.0/token" || r.ParseForm() != nil {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"not_found"}`))
		return
	}
	if r.PostForm.Get("grant_type") != "client_credentials" ||
		r.PostForm.Get("client_id") != testSPClient || r.PostForm.Get("client_secret") != testSPSecret {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":"invalid_client","error_description":"bad secret"}`))
		return
	}
	n := e.tokens.Add(1)
	claims := jwt.MapClaims{
		"appid": testSPClient,
		"tid":   testTenant,
		"exp":   time.Now().Add(time.Hour).Unix(),
		"n":     n,
	}
	signed, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-signing-key"))
	e.mu.Lock()
	e.issuedToken = signed
	e.mu.Unlock()
	_ = json.NewEncoder(w).Encode(map[string]any{
		"access_token": signed,
		"token_type":   "Bearer",
		"expires_in":   3600,
	})
}

func (e *testEnv) handleGraph(w http.ResponseWriter, r *http.Request) {
	e.mu.Lock()
	e.graphCalls++
	e.lastAuth = r.Header.Get("Authorization")
	names := append([]string(nil), e.vmNames...)
	reject := e.rejectTokens > 0
	if reject {
		e.rejectTokens--
	}
	e.mu.Unlock()

	if reject {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"code":"InvalidAuthenticationToken","message":"token revoked"}}`))
		return
	}

	data := make([]map[string]any, 0, len(names))
	for i, name := range names {
		data = append(data, map[string]any{
			"vmId":           "/subscriptions/sub-1/resourceGroups/rg/providers/Microsoft.Compute/virtualMachines/" + name,
			"vmName":         name,
			"subscriptionId": "sub-1",
			"sub":            "Production",
			"rg":             "rg",
			"location":       "westeurope",
			"powerstate":     "PowerState/running",
			"privateIp":      fmt.Sprintf("10.0.0.%d", i+4),
		})
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"totalRecords": len(data),
		"count":        len(data),
		"data":         data,
	})
}

func (e *testEnv) graphCallCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.graphCalls
}

// writeConfig saves a service principal config pointed at the fake servers.
func (e *testEnv) writeConfig(mutate func(*config.Config)) {
	e.t.Helper()
	cfg := config.DefaultConfig()
	cfg.TenantID = testTenant
	cfg.ClientID = testSPClient
	cfg.ClientSecret = testSPSecret
	cfg.AuthMethod = "service-principal"
	cfg.Authority = e.idp.URL
	cfg.Endpoint = e.graph.URL + "/providers/Microsoft.ResourceGraph/resources?api-version=2021-03-01"
	cfg.Settings.RequestsPerSecond = 100
	if mutate != nil {
		mutate(&cfg)
	}
	require.NoError(e.t, config.Save(e.paths.ConfigFile, &cfg))
}

type runResult struct {
	stdout string
	stderr string
	err    error
}

func (e *testEnv) run(input string, args ...string) runResult {
	e.t.Helper()
	var stdout, stderr bytes.Buffer
	root := NewRootCommand(Config{
		ConfigPath:   e.paths.ConfigFile,
		OutputWriter: &stdout,
		ErrWriter:    &stderr,
		Input:        strings.NewReader(input),
		Paths:        e.paths,
		SkipDotEnv:   true,
	})
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	root.SetArgs(args)
	err := root.Execute()
	return runResult{stdout: stdout.String(), stderr: stderr.String(), err: err}
}
