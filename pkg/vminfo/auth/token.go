package auth

import (
	"time"

	"golang.org/x/oauth2"
)

// DefaultSafetyMargin is subtracted from the expiry so a token is never used
// while it is about to lapse in flight.
const DefaultSafetyMargin = 2 * time.Minute

type Token struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	TokenType    string    `json:"token_type,omitempty"`
	ExpiresAt    time.Time `json:"expires_at"`
	IDToken      string    `json:"id_token,omitempty"`
}

// Usable reports whether now is strictly before ExpiresAt minus margin. A token
// without an expiry or access token is never usable.
func (t Token) Usable(now time.Time, margin time.Duration) bool {
	if t.AccessToken == "" || t.ExpiresAt.IsZero() {
		return false
	}
	return now.Before(t.ExpiresAt.Add(-margin))
}

// CanRefresh reports whether a refresh grant can be attempted.
func (t Token) CanRefresh() bool {
	return t.RefreshToken != ""
}

func tokenFromOAuth2(tok *oauth2.Token) Token {
	out := Token{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		TokenType:    tok.TokenType,
		ExpiresAt:    tok.Expiry,
	}
	if idToken, ok := tok.Extra("id_token").(string); ok {
		out.IDToken = idToken
	}
	return out
}

// Record is the single persisted token together with the credential that produced it.
type Record struct {
	Kind     CredentialKind `json:"kind"`
	TenantID string         `json:"tenant_id,omitempty"`
	ClientID string         `json:"client_id"`
	Token    Token          `json:"token"`
	SavedAt  time.Time      `json:"saved_at"`
}

func newRecord(cred Credential, tok Token, now time.Time) Record {
	return Record{
		Kind:     cred.Kind,
		TenantID: cred.TenantID,
		ClientID: cred.ClientID,
		Token:    tok,
		SavedAt:  now.UTC(),
	}
}

// Matches reports whether the record was issued for cred.
func (r Record) Matches(cred Credential) bool {
	return r.Kind == cred.Kind && r.TenantID == cred.TenantID && r.ClientID == cred.ClientID
}
