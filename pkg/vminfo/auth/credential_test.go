package auth

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCredentialValidate(t *testing.T) {
	assert.NoError(t, NewDeviceCodeCredential("", "client").Validate())
	assert.NoError(t, NewInteractiveCredential("tenant", "client").Validate())
	assert.NoError(t, NewServicePrincipalCredential("tenant", "client", "secret").Validate())

	assert.Error(t, NewDeviceCodeCredential("tenant", "").Validate())
	assert.Error(t, NewServicePrincipalCredential("", "client", "secret").Validate())
	assert.Error(t, NewServicePrincipalCredential("tenant", "client", "").Validate())
	assert.Error(t, Credential{Kind: "magic", ClientID: "client"}.Validate())
}

func TestCredentialStringRedactsSecret(t *testing.T) {
	cred := NewServicePrincipalCredential("tenant", "client", "super-secret")
	assert.NotContains(t, cred.String(), "super-secret")
	assert.Contains(t, cred.String(), "service-principal")
}

func TestCredentialEndpoint(t *testing.T) {
	t.Run("default authority", func(t *testing.T) {
		ep := NewDeviceCodeCredential("", "client").Endpoint()
		assert.Equal(t, "https://login.microsoftonline.com/organizations/oauth2/v2.0/token", ep.TokenURL)
		assert.Equal(t, "https://login.microsoftonline.com/organizations/oauth2/v2.0/devicecode", ep.DeviceAuthURL)
		assert.Equal(t, "https://login.microsoftonline.com/organizations/oauth2/v2.0/authorize", ep.AuthURL)
	})

	t.Run("custom authority", func(t *testing.T) {
		cred := NewDeviceCodeCredential("contoso", "client")
		cred.Authority = "https://login.example.test/"
		ep := cred.Endpoint()
		assert.Equal(t, "https://login.example.test/contoso/oauth2/v2.0/token", ep.TokenURL)
		assert.Equal(t, "https://login.example.test/contoso/oauth2/v2.0/devicecode", ep.DeviceAuthURL)
		assert.Equal(t, "https://login.example.test/contoso/v2.0", cred.issuer())
	})
}

func TestCredentialScopes(t *testing.T) {
	assert.Equal(t, DelegatedScopes, NewDeviceCodeCredential("t", "c").scopes())
	assert.Equal(t, ApplicationScopes, NewServicePrincipalCredential("t", "c", "s").scopes())

	cred := NewInteractiveCredential("t", "c")
	cred.Scopes = []string{"custom"}
	assert.Equal(t, []string{"custom"}, cred.scopes())
}

func TestParseKind(t *testing.T) {
	for input, want := range map[string]CredentialKind{
		"":                   KindDeviceCode,
		"device-code":        KindDeviceCode,
		"Service-Principal":  KindServicePrincipal,
		"client-credentials": KindServicePrincipal,
		"interactive":        KindInteractive,
		"browser":            KindInteractive,
	} {
		got, err := ParseKind(input)
		require.NoError(t, err, input)
		assert.Equal(t, want, got, input)
	}
	_, err := ParseKind("password")
	assert.Error(t, err)
}

func TestResolveClientSecret(t *testing.T) {
	got, err := ResolveClientSecret("inline", "IGNORED", "")
	require.NoError(t, err)
	assert.Equal(t, "inline", got)

	t.Setenv("VMINFO_TEST_SECRET", " from-env \n")
	got, err = ResolveClientSecret("", "VMINFO_TEST_SECRET", "")
	require.NoError(t, err)
	assert.Equal(t, "from-env", got)

	_, err = ResolveClientSecret("", "VMINFO_TEST_SECRET_MISSING", "")
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "secret")
	require.NoError(t, os.WriteFile(path, []byte("from-file\n"), 0o600))
	got, err = ResolveClientSecret("", "", path)
	require.NoError(t, err)
	assert.Equal(t, "from-file", got)

	got, err = ResolveClientSecret("", "", "")
	require.NoError(t, err)
	assert.Empty(t, got)
}
