package auth

import (
	"context"
	"errors"
	"net/http"

	"golang.org/x/oauth2"
)

// RefreshToken redeems tok's refresh token for a new token. When the response
// carries no refresh token the previous one is kept.
func RefreshToken(ctx context.Context, httpClient *http.Client, cred Credential, tok Token) (Token, error) {
	if !tok.CanRefresh() {
		return Token{}, errors.New("token has no refresh token")
	}
	oauthCfg := oauth2.Config{
		ClientID:     cred.ClientID,
		ClientSecret: cred.ClientSecret,
		Endpoint:     cred.Endpoint(),
		Scopes:       cred.scopes(),
	}
	// Only the refresh token is handed over so the token source always hits the
	// endpoint instead of reusing an access token it considers still valid.
	src := oauthCfg.TokenSource(withHTTPClient(ctx, httpClient), &oauth2.Token{RefreshToken: tok.RefreshToken})
	refreshed, err := src.Token()
	if err != nil {
		return Token{}, classifyOAuthError(ctx, "failed to refresh token", err)
	}
	out := tokenFromOAuth2(refreshed)
	if out.RefreshToken == "" {
		out.RefreshToken = tok.RefreshToken
	}
	if out.IDToken == "" {
		out.IDToken = tok.IDToken
	}
	return out, nil
}
