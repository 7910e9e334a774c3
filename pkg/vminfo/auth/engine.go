package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/telekom/azure-vminfo/pkg/metrics"
	"github.com/telekom/azure-vminfo/pkg/system"
)

// Engine decides between reusing, refreshing and re-acquiring tokens and
// persists every token it obtains.
type Engine struct {
	Store      TokenStore
	HTTPClient *http.Client
	Log        *zap.SugaredLogger
	// Prompt shows the device code. Required for device code logins.
	Prompt PromptFunc
	// OpenBrowser starts the interactive flow. Defaults to OpenBrowser.
	OpenBrowser BrowserFunc
	// InteractiveTimeout bounds the wait for the browser callback. Zero means DefaultInteractiveTimeout.
	InteractiveTimeout time.Duration
	SafetyMargin       time.Duration
	// NonInteractive refuses flows that need a user and returns ErrLoginRequired instead.
	NonInteractive bool

	clock clock
}

// NewEngine returns an engine persisting into store.
func NewEngine(store TokenStore, log *zap.SugaredLogger) *Engine {
	return &Engine{
		Store:        store,
		HTTPClient:   &http.Client{Timeout: 30 * time.Second},
		Log:          system.OrNop(log),
		SafetyMargin: DefaultSafetyMargin,
		clock:        realClock(),
	}
}

func (e *Engine) log() *zap.SugaredLogger {
	return system.OrNop(e.Log)
}

func (e *Engine) now() time.Time {
	if e.clock.now == nil {
		return time.Now()
	}
	return e.clock.now()
}

func (e *Engine) flowClock() clock {
	if e.clock.now == nil || e.clock.sleep == nil {
		return realClock()
	}
	return e.clock
}

func (e *Engine) httpClient() *http.Client {
	if e.HTTPClient == nil {
		return http.DefaultClient
	}
	return e.HTTPClient
}

// GetValidToken returns a token for cred that is usable right now. A stored
// usable token is returned without any network call; otherwise the engine
// refreshes, and if that fails runs the credential's flow.
func (e *Engine) GetValidToken(ctx context.Context, cred Credential) (Token, error) {
	if err := cred.Validate(); err != nil {
		return Token{}, err
	}
	log := e.log().With("credential", cred.String())

	rec, found, err := e.Store.Load(ctx)
	if err != nil {
		log.Warnw("Ignoring unreadable token store", "error", err)
		found = false
	}
	if found && !rec.Matches(cred) {
		log.Debugw("Stored token belongs to a different credential", "storedKind", rec.Kind, "storedClient", rec.ClientID)
		found = false
	}

	if found {
		if rec.Token.Usable(e.now(), e.SafetyMargin) {
			log.Debugw("Using stored token", "expiresAt", rec.Token.ExpiresAt)
			return rec.Token, nil
		}
		if rec.Token.CanRefresh() {
			refreshed, err := RefreshToken(ctx, e.httpClient(), cred, rec.Token)
			metrics.TokenAcquisitions.WithLabelValues("refresh", metrics.Outcome(err)).Inc()
			if err == nil {
				log.Infow("Refreshed token", "expiresAt", refreshed.ExpiresAt)
				if err := e.persist(ctx, cred, refreshed); err != nil {
					return Token{}, err
				}
				return refreshed, nil
			}
			if ctx.Err() != nil {
				return Token{}, err
			}
			log.Infow("Token refresh failed, falling back to login", "error", err)
		}
	}

	tok, err := e.acquire(ctx, cred)
	if err != nil {
		if found && ctx.Err() == nil && !errors.Is(err, ErrAuthExpired) {
			return Token{}, fmt.Errorf("%w: %w", ErrAuthExpired, err)
		}
		return Token{}, err
	}
	if err := e.persist(ctx, cred, tok); err != nil {
		return Token{}, err
	}
	return tok, nil
}

// AcquireToken always runs the credential's flow and persists the result.
func (e *Engine) AcquireToken(ctx context.Context, cred Credential) (Token, error) {
	if err := cred.Validate(); err != nil {
		return Token{}, err
	}
	tok, err := e.acquire(ctx, cred)
	if err != nil {
		return Token{}, err
	}
	if err := e.persist(ctx, cred, tok); err != nil {
		return Token{}, err
	}
	return tok, nil
}

// InvalidateToken marks the stored access token for cred as unusable when it
// is still the one that was rejected, keeping any refresh token. The next
// GetValidToken then refreshes or runs the credential's flow.
func (e *Engine) InvalidateToken(ctx context.Context, cred Credential, rejected string) error {
	rec, found, err := e.Store.Load(ctx)
	if err != nil || !found || !rec.Matches(cred) || rec.Token.AccessToken != rejected {
		return nil
	}
	rec.Token.AccessToken = ""
	rec.Token.ExpiresAt = time.Time{}
	if err := e.Store.Save(ctx, rec); err != nil {
		return fmt.Errorf("failed to invalidate stored token: %w", err)
	}
	e.log().Infow("Discarded rejected access token", "credential", cred.String())
	return nil
}

// Logout removes the stored token. It succeeds when none is stored.
func (e *Engine) Logout(ctx context.Context) error {
	if err := e.Store.Clear(ctx); err != nil {
		return err
	}
	e.log().Infow("Removed stored token")
	return nil
}

// Status returns the stored record without validating or refreshing it.
func (e *Engine) Status(ctx context.Context) (Record, bool, error) {
	return e.Store.Load(ctx)
}

func (e *Engine) acquire(ctx context.Context, cred Credential) (Token, error) {
	if e.NonInteractive && cred.Kind != KindServicePrincipal {
		return Token{}, ErrLoginRequired
	}
	var (
		tok Token
		err error
	)
	switch cred.Kind {
	case KindDeviceCode:
		tok, err = deviceCodeLogin(ctx, e.httpClient(), cred, e.Prompt, e.flowClock())
	case KindServicePrincipal:
		tok, err = ClientCredentialsLogin(ctx, e.httpClient(), cred)
	case KindInteractive:
		tok, err = interactiveLogin(ctx, e.httpClient(), cred, e.OpenBrowser, e.InteractiveTimeout)
	default:
		err = fmt.Errorf("unsupported credential kind: %q", cred.Kind)
	}
	metrics.TokenAcquisitions.WithLabelValues(string(cred.Kind), metrics.Outcome(err)).Inc()
	if err != nil {
		e.log().Debugw("Token acquisition failed", "credential", cred.String(), "error", err)
		return Token{}, err
	}
	e.log().Infow("Acquired token", "credential", cred.String(), "expiresAt", tok.ExpiresAt)
	return tok, nil
}

// persist saves tok. A token that cannot be stored is not handed out.
func (e *Engine) persist(ctx context.Context, cred Credential, tok Token) error {
	if err := e.Store.Save(ctx, newRecord(cred, tok, e.now())); err != nil {
		return fmt.Errorf("failed to persist token: %w", err)
	}
	return nil
}

// TokenSource binds the engine to one credential.
func (e *Engine) TokenSource(cred Credential) *CredentialTokenSource {
	return &CredentialTokenSource{engine: e, cred: cred}
}

// CredentialTokenSource hands out bearer tokens for a fixed credential.
type CredentialTokenSource struct {
	engine *Engine
	cred   Credential
}

func (s *CredentialTokenSource) AccessToken(ctx context.Context) (string, error) {
	tok, err := s.engine.GetValidToken(ctx, s.cred)
	if err != nil {
		return "", err
	}
	return tok.AccessToken, nil
}

// InvalidateToken discards token if it is the one stored for this credential.
func (s *CredentialTokenSource) InvalidateToken(ctx context.Context, token string) error {
	return s.engine.InvalidateToken(ctx, s.cred, token)
}
