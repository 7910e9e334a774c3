package cmd

import (
	"fmt"
	"io"
	"time"

	"github.com/golang-jwt/jwt/v4"

	"github.com/telekom/azure-vminfo/pkg/vminfo/auth"
)

type tokenStatus struct {
	Method      string    `json:"method" yaml:"method"`
	TenantID    string    `json:"tenantId,omitempty" yaml:"tenantId,omitempty"`
	ClientID    string    `json:"clientId" yaml:"clientId"`
	Identity    string    `json:"identity,omitempty" yaml:"identity,omitempty"`
	ExpiresAt   time.Time `json:"expiresAt" yaml:"expiresAt"`
	Valid       bool      `json:"valid" yaml:"valid"`
	Refreshable bool      `json:"refreshable" yaml:"refreshable"`
	SavedAt     time.Time `json:"savedAt" yaml:"savedAt"`
}

func newTokenStatus(rec auth.Record, now time.Time) tokenStatus {
	return tokenStatus{
		Method:      string(rec.Kind),
		TenantID:    rec.TenantID,
		ClientID:    rec.ClientID,
		Identity:    identityFromToken(rec.Token),
		ExpiresAt:   rec.Token.ExpiresAt.UTC(),
		Valid:       rec.Token.Usable(now, auth.DefaultSafetyMargin),
		Refreshable: rec.Token.CanRefresh(),
		SavedAt:     rec.SavedAt.UTC(),
	}
}

func (s tokenStatus) write(w io.Writer) {
	state := "expired"
	if s.Valid {
		state = "valid"
	}
	_, _ = fmt.Fprintf(w, "Authenticated via %s (client %s)\n", s.Method, s.ClientID)
	if s.TenantID != "" {
		_, _ = fmt.Fprintf(w, "Tenant:     %s\n", s.TenantID)
	}
	if s.Identity != "" {
		_, _ = fmt.Fprintf(w, "Identity:   %s\n", s.Identity)
	}
	_, _ = fmt.Fprintf(w, "Token:      %s, expires at %s\n", state, s.ExpiresAt.Format(time.RFC3339))
	if !s.Valid && s.Refreshable {
		_, _ = fmt.Fprintln(w, "            a refresh token is stored and will be used on the next query")
	}
}

// identityFromToken reads the caller's name from the ID token, or the access
// token when there is none. Signatures are not verified; the claims are only displayed.
func identityFromToken(tok auth.Token) string {
	raw := tok.IDToken
	if raw == "" {
		raw = tok.AccessToken
	}
	if raw == "" {
		return ""
	}
	parser := jwt.Parser{}
	claims := jwt.MapClaims{}
	if _, _, err := parser.ParseUnverified(raw, claims); err != nil {
		return ""
	}
	for _, key := range []string{"preferred_username", "upn", "email", "unique_name", "appid", "sub"} {
		if v, ok := claims[key].(string); ok && v != "" {
			return v
		}
	}
	return ""
}
