package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

// ClientCredentialsLogin exchanges the service principal secret for a token in
// a single request. No refresh token is issued for this grant.
func ClientCredentialsLogin(ctx context.Context, httpClient *http.Client, cred Credential) (Token, error) {
	if err := cred.Validate(); err != nil {
		return Token{}, err
	}
	cc := &clientcredentials.Config{
		ClientID:     cred.ClientID,
		ClientSecret: cred.ClientSecret,
		TokenURL:     cred.Endpoint().TokenURL,
		Scopes:       cred.scopes(),
		AuthStyle:    oauth2.AuthStyleInParams,
	}
	token, err := cc.Token(withHTTPClient(ctx, httpClient))
	if err != nil {
		return Token{}, classifyOAuthError(ctx, "client credentials token failed", err)
	}
	return tokenFromOAuth2(token), nil
}

func withHTTPClient(ctx context.Context, httpClient *http.Client) context.Context {
	if httpClient == nil {
		return ctx
	}
	return context.WithValue(ctx, oauth2.HTTPClient, httpClient)
}

// classifyOAuthError maps token endpoint failures reported by x/oauth2 onto the package sentinels.
func classifyOAuthError(ctx context.Context, msg string, err error) error {
	var retrieveErr *oauth2.RetrieveError
	if errors.As(err, &retrieveErr) {
		if retrieveErr.Response != nil && retrieveErr.Response.StatusCode >= http.StatusInternalServerError {
			return fmt.Errorf("%s: %w: %w", msg, ErrNetworkFailure, err)
		}
		switch retrieveErr.ErrorCode {
		case "invalid_grant", "interaction_required", "expired_token":
			return fmt.Errorf("%s: %w: %w", msg, ErrAuthExpired, err)
		}
		return fmt.Errorf("%s: %w: %w", msg, ErrAuthDenied, err)
	}
	return transportError(ctx, msg, err)
}
