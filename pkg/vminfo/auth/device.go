package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/telekom/azure-vminfo/pkg/version"
)

const (
	defaultPollInterval       = 5 * time.Second
	slowDownIncrement         = 5 * time.Second
	defaultDeviceCodeLifetime = 15 * time.Minute
	deviceCodeGrantType       = "urn:ietf:params:oauth:grant-type:device_code"
)

// DeviceCode is shown to the user while the flow polls.
type DeviceCode struct {
	UserCode        string
	VerificationURI string
	// Message is the ready-made instruction text returned by the identity platform.
	Message   string
	ExpiresAt time.Time
}

// PromptFunc displays the device code. It must not block.
type PromptFunc func(DeviceCode)

type deviceCodeResponse struct {
	DeviceCode              string `json:"device_code"`
	UserCode                string `json:"user_code"`
	VerificationURI         string `json:"verification_uri"`
	VerificationURL         string `json:"verification_url"`
	VerificationURIComplete string `json:"verification_uri_complete"`
	Message                 string `json:"message"`
	ExpiresIn               int    `json:"expires_in"`
	Interval                int    `json:"interval"`
	Error                   string `json:"error,omitempty"`
	ErrorDesc               string `json:"error_description,omitempty"`
}

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
	TokenType    string `json:"token_type,omitempty"`
	ExpiresIn    int    `json:"expires_in,omitempty"`
	IDToken      string `json:"id_token,omitempty"`
	Error        string `json:"error,omitempty"`
	ErrorDesc    string `json:"error_description,omitempty"`
}

var (
	errAuthorizationPending = errors.New("authorization pending")
	errSlowDown             = errors.New("slow down")
)

// DeviceCodeLogin runs the device authorization grant: it requests a code,
// hands it to prompt and polls the token endpoint until the user completes,
// declines or lets the code expire.
func DeviceCodeLogin(ctx context.Context, httpClient *http.Client, cred Credential, prompt PromptFunc) (Token, error) {
	return deviceCodeLogin(ctx, httpClient, cred, prompt, realClock())
}

func deviceCodeLogin(ctx context.Context, httpClient *http.Client, cred Credential, prompt PromptFunc, clk clock) (Token, error) {
	if cred.ClientID == "" {
		return Token{}, errors.New("client-id is required")
	}
	endpoint := cred.Endpoint()

	deviceResp, err := requestDeviceCode(ctx, httpClient, endpoint.DeviceAuthURL, cred)
	if err != nil {
		return Token{}, err
	}

	interval := time.Duration(deviceResp.Interval) * time.Second
	if interval <= 0 {
		interval = defaultPollInterval
	}
	lifetime := time.Duration(deviceResp.ExpiresIn) * time.Second
	if lifetime <= 0 {
		lifetime = defaultDeviceCodeLifetime
	}
	deadline := clk.now().Add(lifetime)

	verificationURI := deviceResp.VerificationURI
	if verificationURI == "" {
		verificationURI = deviceResp.VerificationURL
	}
	message := deviceResp.Message
	if message == "" {
		message = fmt.Sprintf("Visit %s and enter code: %s", verificationURI, deviceResp.UserCode)
	}
	if prompt != nil {
		prompt(DeviceCode{
			UserCode:        deviceResp.UserCode,
			VerificationURI: verificationURI,
			Message:         message,
			ExpiresAt:       deadline,
		})
	}

	for {
		if !clk.now().Before(deadline) {
			return Token{}, fmt.Errorf("device code login: %w: device code expired", ErrAuthFlowTimedOut)
		}
		if err := clk.sleep(ctx, interval); err != nil {
			return Token{}, abortError("device code login", err)
		}
		tok, err := pollDeviceToken(ctx, httpClient, endpoint.TokenURL, cred, deviceResp.DeviceCode, clk.now())
		if err != nil {
			if errors.Is(err, errAuthorizationPending) {
				continue
			}
			if errors.Is(err, errSlowDown) {
				interval += slowDownIncrement
				continue
			}
			return Token{}, err
		}
		return tok, nil
	}
}

func requestDeviceCode(ctx context.Context, client *http.Client, endpoint string, cred Credential) (*deviceCodeResponse, error) {
	values := url.Values{}
	values.Set("client_id", cred.ClientID)
	values.Set("scope", strings.Join(cred.scopes(), " "))
	resp, err := postForm(ctx, client, endpoint, values)
	if err != nil {
		return nil, transportError(ctx, "device authorization", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	body, _ := io.ReadAll(resp.Body)
	var payload deviceCodeResponse
	decodeErr := json.Unmarshal(body, &payload)
	if resp.StatusCode >= 500 {
		return nil, fmt.Errorf("device authorization: %w: %s", ErrNetworkFailure, strings.TrimSpace(string(body)))
	}
	if resp.StatusCode >= 400 {
		if payload.Error != "" {
			return nil, fmt.Errorf("device authorization failed: %w: %s: %s", ErrAuthDenied, payload.Error, payload.ErrorDesc)
		}
		return nil, fmt.Errorf("device authorization failed: %w: %s", ErrAuthDenied, strings.TrimSpace(string(body)))
	}
	if decodeErr != nil {
		return nil, fmt.Errorf("failed to decode device authorization response: %w", decodeErr)
	}
	if payload.DeviceCode == "" || payload.UserCode == "" {
		return nil, errors.New("device authorization response is missing the device or user code")
	}
	return &payload, nil
}

func pollDeviceToken(ctx context.Context, client *http.Client, endpoint string, cred Credential, deviceCode string, now time.Time) (Token, error) {
	values := url.Values{}
	values.Set("grant_type", deviceCodeGrantType)
	values.Set("device_code", deviceCode)
	values.Set("client_id", cred.ClientID)
	resp, err := postForm(ctx, client, endpoint, values)
	if err != nil {
		return Token{}, transportError(ctx, "device token poll", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	var payload tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		if resp.StatusCode >= 500 {
			return Token{}, fmt.Errorf("device token poll: %w: %s", ErrNetworkFailure, resp.Status)
		}
		return Token{}, fmt.Errorf("failed to decode device token response: %w", err)
	}
	if payload.Error != "" {
		switch payload.Error {
		case "authorization_pending":
			return Token{}, errAuthorizationPending
		case "slow_down":
			return Token{}, errSlowDown
		case "access_denied", "authorization_declined":
			return Token{}, fmt.Errorf("device code login: %w: %s", ErrAuthDenied, payload.Error)
		case "expired_token", "code_expired":
			return Token{}, fmt.Errorf("device code login: %w: %s", ErrAuthFlowTimedOut, payload.Error)
		default:
			return Token{}, fmt.Errorf("device token error: %s: %s", payload.Error, payload.ErrorDesc)
		}
	}
	if resp.StatusCode >= 400 {
		return Token{}, fmt.Errorf("device token poll failed: %s", resp.Status)
	}
	if payload.AccessToken == "" {
		return Token{}, errors.New("device token response has no access token")
	}
	return Token{
		AccessToken:  payload.AccessToken,
		RefreshToken: payload.RefreshToken,
		TokenType:    payload.TokenType,
		ExpiresAt:    now.Add(time.Duration(payload.ExpiresIn) * time.Second),
		IDToken:      payload.IDToken,
	}, nil
}

func postForm(ctx context.Context, client *http.Client, endpoint string, values url.Values) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(values.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", version.UserAgent())
	return client.Do(req)
}
