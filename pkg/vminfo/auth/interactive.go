package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/exec"
	"runtime"
	"strings"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"
)

// DefaultInteractiveTimeout bounds the wait for the browser callback.
const DefaultInteractiveTimeout = 5 * time.Minute

// BrowserFunc sends the user to the authorization URL.
type BrowserFunc func(authURL string) error

// InteractiveLogin runs the authorization code flow with PKCE against a
// loopback redirect. The flow ends when the browser hits the callback, the
// user declines, ctx is done, or DefaultInteractiveTimeout passes without a
// callback (ErrAuthFlowTimedOut).
func InteractiveLogin(ctx context.Context, httpClient *http.Client, cred Credential, open BrowserFunc) (Token, error) {
	return interactiveLogin(ctx, httpClient, cred, open, DefaultInteractiveTimeout)
}

func interactiveLogin(ctx context.Context, httpClient *http.Client, cred Credential, open BrowserFunc, timeout time.Duration) (Token, error) {
	if timeout <= 0 {
		timeout = DefaultInteractiveTimeout
	}
	if cred.ClientID == "" {
		return Token{}, errors.New("client-id is required")
	}
	if open == nil {
		open = OpenBrowser
	}

	codeVerifier, codeChallenge, err := newPKCEPair()
	if err != nil {
		return Token{}, err
	}

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return Token{}, fmt.Errorf("failed to start callback listener: %w", err)
	}
	defer func() {
		_ = listener.Close()
	}()

	redirectURL := fmt.Sprintf("http://%s/callback", listener.Addr().String())
	endpoint, err := discoverEndpoint(ctx, httpClient, cred)
	if err != nil {
		return Token{}, err
	}
	oauthCfg := oauth2.Config{
		ClientID:     cred.ClientID,
		ClientSecret: cred.ClientSecret,
		Endpoint:     endpoint,
		RedirectURL:  redirectURL,
		Scopes:       cred.scopes(),
	}

	state, err := randomToken(24)
	if err != nil {
		return Token{}, err
	}
	authURL := oauthCfg.AuthCodeURL(state,
		oauth2.SetAuthURLParam("code_challenge", codeChallenge),
		oauth2.SetAuthURLParam("code_challenge_method", "S256"),
	)

	resultCh := make(chan Token, 1)
	errCh := make(chan error, 1)
	exchangeCtx := withHTTPClient(ctx, httpClient)

	server := &http.Server{
		ReadHeaderTimeout: 10 * time.Second,
		Handler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/callback" {
				http.NotFound(w, r)
				return
			}
			query := r.URL.Query()
			if query.Get("state") != state {
				sendErr(errCh, errors.New("invalid state in callback"))
				http.Error(w, "invalid state", http.StatusBadRequest)
				return
			}
			if callbackErr := query.Get("error"); callbackErr != "" {
				sendErr(errCh, fmt.Errorf("interactive login: %w: %s: %s", ErrAuthDenied, callbackErr, query.Get("error_description")))
				http.Error(w, "authentication was not completed", http.StatusForbidden)
				return
			}
			code := query.Get("code")
			if code == "" {
				sendErr(errCh, errors.New("missing code in callback"))
				http.Error(w, "missing code", http.StatusBadRequest)
				return
			}
			token, err := oauthCfg.Exchange(exchangeCtx, code, oauth2.SetAuthURLParam("code_verifier", codeVerifier))
			if err != nil {
				sendErr(errCh, classifyOAuthError(ctx, "token exchange failed", err))
				http.Error(w, "token exchange failed", http.StatusInternalServerError)
				return
			}
			_, _ = fmt.Fprintln(w, "Authentication complete. You can close this window.")
			select {
			case resultCh <- tokenFromOAuth2(token):
			default:
			}
		}),
	}

	go func() {
		_ = server.Serve(listener)
	}()
	defer func() {
		_ = server.Close()
	}()

	if err := open(authURL); err != nil {
		return Token{}, fmt.Errorf("failed to open browser: %w", err)
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return Token{}, abortError("interactive login", ctx.Err())
	case <-timer.C:
		return Token{}, fmt.Errorf("interactive login: %w: no callback within %s", ErrAuthFlowTimedOut, timeout)
	case err := <-errCh:
		return Token{}, err
	case result := <-resultCh:
		return result, nil
	}
}

// discoverEndpoint reads the tenant's OIDC discovery document. The multi-tenant
// aliases (organizations, common) advertise a templated issuer, so the issuer
// check is relaxed to the discovery URL.
func discoverEndpoint(ctx context.Context, httpClient *http.Client, cred Credential) (oauth2.Endpoint, error) {
	if httpClient != nil {
		ctx = oidc.ClientContext(ctx, httpClient)
	}
	issuer := cred.issuer()
	ctx = oidc.InsecureIssuerURLContext(ctx, issuer)
	provider, err := oidc.NewProvider(ctx, issuer)
	if err != nil {
		return oauth2.Endpoint{}, transportError(ctx, "failed to discover OIDC provider", err)
	}
	endpoint := provider.Endpoint()
	endpoint.AuthStyle = oauth2.AuthStyleInParams
	return endpoint, nil
}

func sendErr(ch chan<- error, err error) {
	select {
	case ch <- err:
	default:
	}
}

func newPKCEPair() (string, string, error) {
	verifier, err := randomToken(32)
	if err != nil {
		return "", "", err
	}
	sum := sha256.Sum256([]byte(verifier))
	challenge := base64.RawURLEncoding.EncodeToString(sum[:])
	return verifier, challenge, nil
}

func randomToken(length int) (string, error) {
	bytes := make([]byte, length)
	if _, err := rand.Read(bytes); err != nil {
		return "", fmt.Errorf("failed to generate random token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(bytes), nil
}

// OpenBrowser launches the platform URL handler. Setting VMINFO_NO_BROWSER=true
// only prints the URL.
func OpenBrowser(url string) error {
	_, _ = fmt.Fprintf(os.Stderr, "Open the following URL in your browser:\n%s\n", url)
	if strings.EqualFold(os.Getenv("VMINFO_NO_BROWSER"), "true") {
		return nil
	}
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	default:
		cmd = exec.Command("xdg-open", url)
	}
	// A missing handler is not fatal; the URL is already printed.
	_ = cmd.Start()
	return nil
}
