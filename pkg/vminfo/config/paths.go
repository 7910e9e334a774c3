package config

import (
	"os"
	"path/filepath"
)

const (
	defaultConfigDirName = "vminfo"
	defaultConfigFile    = "config.yaml"
	defaultTokenFile     = "token.json"
	defaultCacheFile     = "results.json"
)

// Paths holds every file vminfo reads or writes. Tests point it at a temp dir.
type Paths struct {
	ConfigFile string
	TokenFile  string
	CacheFile  string
}

// DefaultPaths resolves the per-user locations, honouring VMINFO_CONFIG.
func DefaultPaths() Paths {
	return Paths{
		ConfigFile: DefaultConfigPath(),
		TokenFile:  DefaultTokenPath(),
		CacheFile:  DefaultCachePath(),
	}
}

// WithOverrides replaces the token and cache files where cfg names one.
func (p Paths) WithOverrides(cfg *Config) Paths {
	if cfg == nil {
		return p
	}
	if cfg.TokenFile != "" {
		p.TokenFile = expandHome(cfg.TokenFile)
	}
	if cfg.Cache.Path != "" {
		p.CacheFile = expandHome(cfg.Cache.Path)
	}
	return p
}

func DefaultConfigPath() string {
	if env := os.Getenv("VMINFO_CONFIG"); env != "" {
		return env
	}
	base, err := os.UserConfigDir()
	if err == nil {
		return filepath.Join(base, defaultConfigDirName, defaultConfigFile)
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".vminfo", defaultConfigFile)
}

func DefaultTokenPath() string {
	base, err := os.UserConfigDir()
	if err == nil {
		return filepath.Join(base, defaultConfigDirName, defaultTokenFile)
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".vminfo", defaultTokenFile)
}

func DefaultCachePath() string {
	base, err := os.UserCacheDir()
	if err == nil {
		return filepath.Join(base, defaultConfigDirName, defaultCacheFile)
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".vminfo", defaultCacheFile)
}

func expandHome(path string) string {
	if len(path) < 2 || path[:2] != "~/" {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[2:])
}
