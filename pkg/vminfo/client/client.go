package client

import (
	"bytes"
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/telekom/azure-vminfo/pkg/ratelimit"
	"github.com/telekom/azure-vminfo/pkg/system"
	"github.com/telekom/azure-vminfo/pkg/version"
	"github.com/telekom/azure-vminfo/pkg/vminfo/cache"
	"github.com/telekom/azure-vminfo/pkg/vminfo/inventory"
)

// DefaultEndpoint is the public-cloud Resource Graph resources API.
const DefaultEndpoint = "https://management.azure.com/providers/Microsoft.ResourceGraph/resources?api-version=2021-03-01"

const correlationHeader = "x-ms-correlation-request-id"

// TokenSource yields a bearer token for the management API.
type TokenSource interface {
	AccessToken(ctx context.Context) (string, error)
}

// TokenInvalidator is implemented by token sources that can discard a token
// Resource Graph rejected, so that the next AccessToken call renews it.
type TokenInvalidator interface {
	InvalidateToken(ctx context.Context, token string) error
}

type Client struct {
	endpoint  *url.URL
	tokens    TokenSource
	http      *http.Client
	userAgent string
	cache     cache.ResultCache
	limiter   *ratelimit.Limiter
	log       *zap.SugaredLogger
}

type Option func(*Client) error

func New(tokens TokenSource, opts ...Option) (*Client, error) {
	if tokens == nil {
		return nil, errors.New("token source is required")
	}
	endpoint, _ := url.Parse(DefaultEndpoint)
	c := &Client{
		endpoint:  endpoint,
		tokens:    tokens,
		http:      &http.Client{Timeout: 60 * time.Second},
		userAgent: version.UserAgent(),
		limiter:   ratelimit.New(ratelimit.DefaultQueryConfig()),
		log:       zap.NewNop().Sugar(),
	}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}
	return c, nil
}

func WithEndpoint(endpoint string) Option {
	return func(c *Client) error {
		if endpoint == "" {
			return nil
		}
		parsed, err := url.Parse(endpoint)
		if err != nil {
			return fmt.Errorf("invalid endpoint: %w", err)
		}
		if parsed.Scheme == "" || parsed.Host == "" {
			return fmt.Errorf("invalid endpoint %q: scheme and host required", endpoint)
		}
		c.endpoint = parsed
		return nil
	}
}

func WithUserAgent(userAgent string) Option {
	return func(c *Client) error {
		c.userAgent = userAgent
		return nil
	}
}

func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) error {
		if httpClient != nil {
			c.http = httpClient
		}
		return nil
	}
}

func WithTLSConfig(caFile string, insecureSkipTLSVerify bool) Option {
	return func(c *Client) error {
		tlsConfig, err := loadTLSConfig(caFile, insecureSkipTLSVerify)
		if err != nil {
			return err
		}
		transport := &http.Transport{TLSClientConfig: tlsConfig, Proxy: http.ProxyFromEnvironment}
		c.http = &http.Client{Transport: transport, Timeout: c.http.Timeout}
		return nil
	}
}

// WithCache enables result caching. A nil cache disables it.
func WithCache(rc cache.ResultCache) Option {
	return func(c *Client) error {
		c.cache = rc
		return nil
	}
}

func WithLogger(log *zap.SugaredLogger) Option {
	return func(c *Client) error {
		c.log = system.OrNop(log)
		return nil
	}
}

func WithRateLimit(cfg ratelimit.Config) Option {
	return func(c *Client) error {
		c.limiter = ratelimit.New(cfg)
		return nil
	}
}

func loadTLSConfig(caFile string, insecure bool) (*tls.Config, error) {
	tlsConfig := &tls.Config{MinVersion: tls.VersionTLS12, InsecureSkipVerify: insecure} //nolint:gosec // opt-in for proxies with private CAs
	if caFile == "" {
		return tlsConfig, nil
	}
	data, err := os.ReadFile(caFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read CA file: %w", err)
	}
	pool := x509.NewCertPool()
	if ok := pool.AppendCertsFromPEM(data); !ok {
		return nil, errors.New("failed to parse CA file")
	}
	tlsConfig.RootCAs = pool
	return tlsConfig, nil
}

type queryRequest struct {
	Query         string         `json:"query"`
	Options       requestOptions `json:"options"`
	Subscriptions []string       `json:"subscriptions,omitempty"`
}

type requestOptions struct {
	Skip         int    `json:"$skip,omitempty"`
	Top          int    `json:"$top"`
	SkipToken    string `json:"$skipToken,omitempty"`
	ResultFormat string `json:"resultFormat"`
}

type queryResponse struct {
	TotalRecords int                        `json:"totalRecords"`
	Count        int                        `json:"count"`
	Data         []inventory.VirtualMachine `json:"data"`
	SkipToken    string                     `json:"$skipToken"`
	Error        *azureError                `json:"error"`
}

func (c *Client) fetchPage(ctx context.Context, token, correlationID string, body queryRequest) (*queryResponse, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint.String(), bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set(correlationHeader, correlationID)
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("%w: %w", ErrNetworkFailure, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode >= 400 {
		return nil, decodeError(resp)
	}
	var out queryResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("%w: failed to decode response: %w", ErrNetworkFailure, err)
	}
	if out.Error != nil {
		return nil, classify(&HTTPError{StatusCode: resp.StatusCode, Code: out.Error.Code, Message: out.Error.Message})
	}
	return &out, nil
}
