package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/telekom/azure-vminfo/pkg/vminfo/auth"
	"github.com/telekom/azure-vminfo/pkg/vminfo/inventory"
)

var (
	// ErrNetworkFailure is shared with the auth package so callers test one sentinel.
	ErrNetworkFailure = auth.ErrNetworkFailure
	// ErrPartialFetchAborted means a page after the first failed. Nothing was cached.
	ErrPartialFetchAborted = errors.New("partial fetch aborted")
)

// HTTPError is a non-success answer from Resource Graph.
type HTTPError struct {
	StatusCode int
	// Code is the Azure error code, e.g. ExpiredAuthenticationToken.
	Code    string
	Message string
}

func (e *HTTPError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("request failed (%d %s): %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("request failed (%d): %s", e.StatusCode, e.Message)
}

type azureError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func decodeError(resp *http.Response) error {
	var body struct {
		Error *azureError `json:"error"`
	}
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if len(raw) > 0 {
		_ = json.Unmarshal(raw, &body)
	}
	httpErr := &HTTPError{StatusCode: resp.StatusCode}
	if body.Error != nil {
		httpErr.Code = body.Error.Code
		httpErr.Message = strings.TrimSpace(body.Error.Message)
	}
	if httpErr.Message == "" {
		httpErr.Message = strings.TrimSpace(string(raw))
	}
	if httpErr.Message == "" {
		httpErr.Message = resp.Status
	}
	return classify(httpErr)
}

// classify wraps httpErr with the sentinel matching its status and code.
func classify(httpErr *HTTPError) error {
	switch {
	case httpErr.StatusCode == http.StatusUnauthorized,
		strings.EqualFold(httpErr.Code, "ExpiredAuthenticationToken"),
		strings.EqualFold(httpErr.Code, "InvalidAuthenticationToken"):
		return fmt.Errorf("%w: %w", auth.ErrAuthExpired, httpErr)
	case httpErr.StatusCode == http.StatusForbidden,
		strings.EqualFold(httpErr.Code, "AccessDenied"),
		strings.EqualFold(httpErr.Code, "AuthorizationFailed"):
		return fmt.Errorf("%w: %w", auth.ErrAuthDenied, httpErr)
	case httpErr.StatusCode == http.StatusTooManyRequests,
		httpErr.StatusCode >= http.StatusInternalServerError:
		return fmt.Errorf("%w: %w", ErrNetworkFailure, httpErr)
	case httpErr.StatusCode == http.StatusBadRequest:
		return fmt.Errorf("%w: %w", inventory.ErrInvalidQuery, httpErr)
	default:
		return httpErr
	}
}

// IsTransient reports whether err may succeed on a later attempt without
// user action, i.e. throttling, server errors and transport failures.
func IsTransient(err error) bool {
	if err == nil || auth.NeedsLogin(err) {
		return false
	}
	return errors.Is(err, ErrNetworkFailure)
}
