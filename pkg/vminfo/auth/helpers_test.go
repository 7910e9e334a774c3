package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"
)

const testTenant = "contoso"

var (
	testDevicePath = "/" + testTenant + "/oauth2/v2.0/devicecode"
	testTokenPath  = "/" + testTenant + "/oauth2/v2.0/token"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// fakeClock advances instantly on sleep and records every wait.
type fakeClock struct {
	mu     sync.Mutex
	t      time.Time
	sleeps []time.Duration
}

func newFakeClock(t time.Time) *fakeClock {
	return &fakeClock{t: t}
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.t
}

func (f *fakeClock) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.t = f.t.Add(d)
	f.sleeps = append(f.sleeps, d)
	return nil
}

func (f *fakeClock) Sleeps() []time.Duration {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]time.Duration(nil), f.sleeps...)
}

func (f *fakeClock) clock() clock {
	return clock{now: f.Now, sleep: f.Sleep}
}

func testDeviceCredential(authority string) Credential {
	cred := NewDeviceCodeCredential(testTenant, "vminfo-client")
	cred.Authority = authority
	return cred
}

func testSPCredential(authority string) Credential {
	cred := NewServicePrincipalCredential(testTenant, "sp-client", "sp-secret")
	cred.Authority = authority
	return cred
}
