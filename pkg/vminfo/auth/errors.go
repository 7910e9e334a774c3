package auth

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrAuthExpired means the token is unusable and could not be renewed.
	ErrAuthExpired = errors.New("authentication expired")
	// ErrAuthDenied means the identity platform rejected the credential or the user declined.
	ErrAuthDenied = errors.New("authentication denied")
	// ErrAuthFlowTimedOut means a user-driven flow was not completed in time.
	ErrAuthFlowTimedOut = errors.New("authentication flow timed out")
	// ErrNetworkFailure means a remote endpoint could not be reached or answered with a server error.
	ErrNetworkFailure = errors.New("network failure")
	// ErrStoreCorrupt means the persisted token record could not be read.
	ErrStoreCorrupt = errors.New("token store corrupt")
	// ErrLoginRequired is returned in non-interactive mode when only a user flow could produce a token.
	ErrLoginRequired = fmt.Errorf("%w: login required, re-run with --login", ErrAuthExpired)
)

// NeedsLogin reports whether err can only be resolved by the user logging in again.
func NeedsLogin(err error) bool {
	return errors.Is(err, ErrAuthExpired) || errors.Is(err, ErrAuthDenied) || errors.Is(err, ErrAuthFlowTimedOut)
}

// abortError converts a done context into the matching flow error.
func abortError(flow string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w: %w", flow, ErrAuthFlowTimedOut, err)
	}
	return fmt.Errorf("%s aborted: %w", flow, err)
}

// transportError wraps a failed HTTP round trip, preferring the context error when ctx is done.
func transportError(ctx context.Context, flow string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return abortError(flow, ctxErr)
	}
	return fmt.Errorf("%s: %w: %w", flow, ErrNetworkFailure, err)
}
