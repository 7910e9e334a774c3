package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/telekom/azure-vminfo/pkg/ratelimit"
)

type staticToken string

func (s staticToken) AccessToken(context.Context) (string, error) {
	return string(s), nil
}

type failingToken struct{ err error }

func (f failingToken) AccessToken(context.Context) (string, error) {
	return "", f.err
}

// rotatingToken hands out "token-1", "token-2", ... and advances only after
// the current token was invalidated.
type rotatingToken struct {
	mu          sync.Mutex
	current     int
	invalidated []string
}

func (r *rotatingToken) AccessToken(context.Context) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return fmt.Sprintf("token-%d", r.current+1), nil
}

func (r *rotatingToken) InvalidateToken(_ context.Context, token string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.invalidated = append(r.invalidated, token)
	r.current++
	return nil
}

// graphServer serves a fixed record set with $skip/$top paging.
type graphServer struct {
	*httptest.Server

	mu       sync.Mutex
	records  []map[string]any
	requests []queryRequest
	headers  []http.Header
	// failOn makes the n-th request (1-based) fail with failStatus.
	failOn     int
	failStatus int
	failBody   string
	// failFirst makes the first n requests fail with failStatus.
	failFirst int
	// useSkipToken answers with a continuation token instead of relying on $skip.
	useSkipToken bool
	// overlap repeats the last record of the previous page at the start of the next.
	overlap bool
}

func newGraphServer(t *testing.T, records []map[string]any) *graphServer {
	t.Helper()
	gs := &graphServer{records: records}
	gs.Server = httptest.NewServer(http.HandlerFunc(gs.handle))
	t.Cleanup(gs.Close)
	return gs
}

func (gs *graphServer) handle(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	gs.mu.Lock()
	gs.requests = append(gs.requests, req)
	gs.headers = append(gs.headers, r.Header.Clone())
	n := len(gs.requests)
	gs.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	if gs.failOn == n || n <= gs.failFirst {
		w.WriteHeader(gs.failStatus)
		_, _ = w.Write([]byte(gs.failBody))
		return
	}

	start := req.Options.Skip
	if req.Options.SkipToken != "" {
		start, _ = strconv.Atoi(req.Options.SkipToken)
	}
	if gs.overlap && start > 0 {
		start--
	}
	top := req.Options.Top
	if top == 0 {
		top = 1000
	}
	end := min(start+top, len(gs.records))
	if start > end {
		start = end
	}
	page := gs.records[start:end]

	resp := map[string]any{
		"totalRecords": len(gs.records),
		"count":        len(page),
		"data":         page,
	}
	if gs.useSkipToken && end < len(gs.records) {
		resp["$skipToken"] = strconv.Itoa(end)
	}
	_ = json.NewEncoder(w).Encode(resp)
}

func (gs *graphServer) requestCount() int {
	gs.mu.Lock()
	defer gs.mu.Unlock()
	return len(gs.requests)
}

func (gs *graphServer) request(i int) queryRequest {
	gs.mu.Lock()
	defer gs.mu.Unlock()
	return gs.requests[i]
}

func (gs *graphServer) header(i int) http.Header {
	gs.mu.Lock()
	defer gs.mu.Unlock()
	return gs.headers[i]
}

func vmRecords(prefix string, n int) []map[string]any {
	records := make([]map[string]any, 0, n)
	for i := 0; i < n; i++ {
		name := fmt.Sprintf("%s%03d", prefix, i)
		records = append(records, map[string]any{
			"vmId":           "/subscriptions/sub-1/resourceGroups/rg/providers/Microsoft.Compute/virtualMachines/" + name,
			"vmName":         name,
			"subscriptionId": "sub-1",
			"sub":            "Production",
			"rg":             "rg",
			"location":       "westeurope",
			"privateIp":      fmt.Sprintf("10.0.%d.%d", i/250, i%250+1),
			"publicIp":       nil,
		})
	}
	return records
}

func newTestClient(t *testing.T, gs *graphServer, opts ...Option) *Client {
	t.Helper()
	base := []Option{
		WithEndpoint(gs.URL + "/providers/Microsoft.ResourceGraph/resources?api-version=2021-03-01"),
		WithRateLimit(ratelimit.Config{}),
	}
	c, err := New(staticToken("test-token"), append(base, opts...)...)
	require.NoError(t, err)
	return c
}
