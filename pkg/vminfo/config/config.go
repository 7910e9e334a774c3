package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"

	"gopkg.in/yaml.v2"

	"github.com/telekom/azure-vminfo/pkg/utils"
	"github.com/telekom/azure-vminfo/pkg/vminfo/auth"
)

const (
	VersionV1 = "v1"

	CacheBackendFile  = "file"
	CacheBackendRedis = "redis"
)

type Config struct {
	Version          string   `yaml:"version"`
	TenantID         string   `yaml:"tenant-id,omitempty"`
	ClientID         string   `yaml:"client-id,omitempty"`
	ClientSecret     string   `yaml:"client-secret,omitempty"`
	ClientSecretEnv  string   `yaml:"client-secret-env,omitempty"`
	ClientSecretFile string   `yaml:"client-secret-file,omitempty"`
	AuthMethod       string   `yaml:"auth-method,omitempty"`
	Authority        string   `yaml:"authority,omitempty"`
	Endpoint         string   `yaml:"endpoint,omitempty"`
	Subscriptions    []string `yaml:"subscriptions,omitempty"`
	TokenStorage     string   `yaml:"token-storage,omitempty"`
	TokenFile        string   `yaml:"token-file,omitempty"`
	Cache            Cache    `yaml:"cache,omitempty"`
	Settings         Settings `yaml:"settings,omitempty"`
}

type Cache struct {
	Backend string `yaml:"backend,omitempty"`
	Path    string `yaml:"path,omitempty"`
	Redis   Redis  `yaml:"redis,omitempty"`
}

type Redis struct {
	Addr     string `yaml:"addr,omitempty"`
	Username string `yaml:"username,omitempty"`
	Password string `yaml:"password,omitempty"`
	DB       int    `yaml:"db,omitempty"`
	Prefix   string `yaml:"prefix,omitempty"`
	TLS      bool   `yaml:"tls,omitempty"`
}

type Settings struct {
	OutputFormat      string  `yaml:"output-format,omitempty"`
	PageSize          int     `yaml:"page-size,omitempty"`
	RequestsPerSecond float64 `yaml:"requests-per-second,omitempty"`
}

func DefaultConfig() Config {
	return Config{
		Version:      VersionV1,
		AuthMethod:   string(auth.KindDeviceCode),
		TokenStorage: auth.StorageFile,
		Cache: Cache{
			Backend: CacheBackendFile,
		},
		Settings: Settings{
			OutputFormat:      "json",
			PageSize:          1000,
			RequestsPerSecond: 3,
		},
	}
}

func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is required")
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal(content, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if cfg.Version == "" {
		cfg.Version = VersionV1
	}
	return &cfg, nil
}

// LoadOrDefault returns DefaultConfig when path does not exist.
func LoadOrDefault(path string) (*Config, error) {
	cfg, err := Load(path)
	if errors.Is(err, os.ErrNotExist) {
		def := DefaultConfig()
		return &def, nil
	}
	return cfg, err
}

// Save writes cfg with 0600 permissions since it may hold a client secret.
func Save(path string, cfg *Config) error {
	if cfg == nil {
		return errors.New("config is nil")
	}
	if cfg.Version == "" {
		cfg.Version = VersionV1
	}
	content, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	return utils.WriteFileAtomic(path, content, 0o600)
}

func (c *Config) Validate() error {
	if c.Version == "" {
		return errors.New("config version missing")
	}
	if c.Version != VersionV1 {
		return fmt.Errorf("unsupported config version: %s", c.Version)
	}
	if _, err := auth.ParseKind(c.AuthMethod); err != nil {
		return err
	}
	switch strings.ToLower(c.TokenStorage) {
	case "", auth.StorageFile, auth.StorageKeychain, "keyring":
	default:
		return fmt.Errorf("unsupported token storage: %s", c.TokenStorage)
	}
	switch c.CacheBackend() {
	case CacheBackendFile:
	case CacheBackendRedis:
		if strings.TrimSpace(c.Cache.Redis.Addr) == "" {
			return errors.New("cache.redis.addr is required for the redis backend")
		}
	default:
		return fmt.Errorf("unsupported cache backend: %s", c.Cache.Backend)
	}
	if c.Endpoint != "" {
		parsed, err := url.Parse(c.Endpoint)
		if err != nil || parsed.Scheme == "" || parsed.Host == "" {
			return fmt.Errorf("invalid endpoint: %s", c.Endpoint)
		}
	}
	if c.Settings.PageSize < 0 || c.Settings.PageSize > 1000 {
		return fmt.Errorf("settings.page-size must be between 1 and 1000")
	}
	if c.Settings.RequestsPerSecond < 0 {
		return errors.New("settings.requests-per-second must not be negative")
	}
	return nil
}

func (c *Config) CacheBackend() string {
	if c.Cache.Backend == "" {
		return CacheBackendFile
	}
	return strings.ToLower(c.Cache.Backend)
}

// Credential builds the credential for kind, or for the configured auth
// method when kind is empty. The client secret is only resolved for service
// principals.
func (c *Config) Credential(kind auth.CredentialKind) (auth.Credential, error) {
	if kind == "" {
		parsed, err := auth.ParseKind(c.AuthMethod)
		if err != nil {
			return auth.Credential{}, err
		}
		kind = parsed
	}
	cred := auth.Credential{
		Kind:      kind,
		TenantID:  strings.TrimSpace(c.TenantID),
		ClientID:  strings.TrimSpace(c.ClientID),
		Authority: c.Authority,
	}
	if kind == auth.KindServicePrincipal {
		secret, err := auth.ResolveClientSecret(c.ClientSecret, c.ClientSecretEnv, c.ClientSecretFile)
		if err != nil {
			return auth.Credential{}, err
		}
		cred.ClientSecret = secret
	}
	return cred, nil
}

// Redacted returns a copy safe for display.
func (c Config) Redacted() Config {
	if c.ClientSecret != "" {
		c.ClientSecret = "********"
	}
	if c.Cache.Redis.Password != "" {
		c.Cache.Redis.Password = "********"
	}
	return c
}
