package auth

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/microsoft"
)

// CredentialKind selects the flow used to obtain a token.
type CredentialKind string

const (
	KindDeviceCode       CredentialKind = "device-code"
	KindServicePrincipal CredentialKind = "service-principal"
	KindInteractive      CredentialKind = "interactive"
)

const (
	DefaultAuthority = "https://login.microsoftonline.com"
	// DefaultTenant lets work and school accounts from any tenant sign in.
	DefaultTenant = "organizations"
)

var (
	// DelegatedScopes are requested by the user flows. offline_access yields a refresh token.
	DelegatedScopes = []string{"https://management.core.windows.net//user_impersonation", "offline_access"}
	// ApplicationScopes are requested by the service principal flow.
	ApplicationScopes = []string{"https://management.core.windows.net//.default"}
)

// ParseKind accepts the config and flag spellings of a credential kind.
func ParseKind(s string) (CredentialKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "device-code", "device":
		return KindDeviceCode, nil
	case "service-principal", "client-credentials", "sp":
		return KindServicePrincipal, nil
	case "interactive", "authorization-code", "browser":
		return KindInteractive, nil
	default:
		return "", fmt.Errorf("unsupported auth method: %s", s)
	}
}

// Credential identifies how to authenticate. Exactly one flow applies per Kind.
type Credential struct {
	Kind         CredentialKind
	TenantID     string
	ClientID     string
	ClientSecret string
	// Authority overrides the identity platform host, mainly for sovereign clouds and tests.
	Authority string
	Scopes    []string
}

func NewDeviceCodeCredential(tenantID, clientID string) Credential {
	return Credential{Kind: KindDeviceCode, TenantID: tenantID, ClientID: clientID}
}

func NewServicePrincipalCredential(tenantID, clientID, clientSecret string) Credential {
	return Credential{Kind: KindServicePrincipal, TenantID: tenantID, ClientID: clientID, ClientSecret: clientSecret}
}

func NewInteractiveCredential(tenantID, clientID string) Credential {
	return Credential{Kind: KindInteractive, TenantID: tenantID, ClientID: clientID}
}

// Validate checks that the fields the selected flow needs are present.
func (c Credential) Validate() error {
	if c.ClientID == "" {
		return errors.New("client-id is required")
	}
	switch c.Kind {
	case KindDeviceCode, KindInteractive:
		return nil
	case KindServicePrincipal:
		if c.TenantID == "" {
			return errors.New("tenant-id is required for service principal login")
		}
		if c.ClientSecret == "" {
			return errors.New("client secret is required for service principal login")
		}
		return nil
	default:
		return fmt.Errorf("unsupported credential kind: %q", c.Kind)
	}
}

// String never includes the client secret.
func (c Credential) String() string {
	return fmt.Sprintf("%s(tenant=%s, client=%s)", c.Kind, c.tenant(), c.ClientID)
}

func (c Credential) tenant() string {
	if c.TenantID == "" {
		return DefaultTenant
	}
	return c.TenantID
}

func (c Credential) authority() string {
	if c.Authority == "" {
		return DefaultAuthority
	}
	return strings.TrimRight(c.Authority, "/")
}

func (c Credential) scopes() []string {
	if len(c.Scopes) > 0 {
		return c.Scopes
	}
	if c.Kind == KindServicePrincipal {
		return ApplicationScopes
	}
	return DelegatedScopes
}

// Endpoint returns the v2.0 endpoints of the credential's tenant.
func (c Credential) Endpoint() oauth2.Endpoint {
	var ep oauth2.Endpoint
	if c.authority() == DefaultAuthority {
		ep = microsoft.AzureADEndpoint(c.tenant())
	} else {
		base := c.authority() + "/" + c.tenant() + "/oauth2/v2.0"
		ep = oauth2.Endpoint{AuthURL: base + "/authorize", TokenURL: base + "/token"}
	}
	ep.DeviceAuthURL = strings.TrimSuffix(ep.TokenURL, "/token") + "/devicecode"
	ep.AuthStyle = oauth2.AuthStyleInParams
	return ep
}

// issuer is the OIDC discovery base of the tenant.
func (c Credential) issuer() string {
	return c.authority() + "/" + c.tenant() + "/v2.0"
}

// ResolveClientSecret picks the secret from an inline value, an environment
// variable or a file, in that order.
func ResolveClientSecret(secret, secretEnv, secretFile string) (string, error) {
	if secret != "" {
		return secret, nil
	}
	if secretEnv != "" {
		value := strings.TrimSpace(os.Getenv(secretEnv))
		if value == "" {
			return "", fmt.Errorf("client secret env var not set: %s", secretEnv)
		}
		return value, nil
	}
	if secretFile != "" {
		bytes, err := os.ReadFile(secretFile)
		if err != nil {
			return "", fmt.Errorf("failed to read client secret file: %w", err)
		}
		return strings.TrimSpace(string(bytes)), nil
	}
	return "", nil
}
