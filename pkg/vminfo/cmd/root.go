package cmd

import (
	"bufio"
	"context"
	"errors"
	"io"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/telekom/azure-vminfo/pkg/metrics"
	"github.com/telekom/azure-vminfo/pkg/system"
	"github.com/telekom/azure-vminfo/pkg/vminfo/config"
)

type Config struct {
	ConfigPath   string
	OutputWriter io.Writer
	ErrWriter    io.Writer
	Input        io.Reader
	// Paths overrides the token and cache locations. Zero fields use the defaults.
	Paths config.Paths
	// SkipDotEnv disables loading .env from the working directory.
	SkipDotEnv bool
}

type runtimeState struct {
	configPath           string
	cfg                  *config.Config
	paths                config.Paths
	outputFormat         string
	tokenStorageOverride string
	metricsFile          string
	nonInteractive       bool
	verbose              bool
	writer               io.Writer
	errWriter            io.Writer
	input                io.Reader
	reader               *bufio.Reader
	log                  *zap.SugaredLogger
}

type runtimeKey struct{}

func DefaultConfig() Config {
	return Config{
		ConfigPath:   config.DefaultConfigPath(),
		OutputWriter: os.Stdout,
		ErrWriter:    os.Stderr,
		Input:        os.Stdin,
	}
}

func NewRootCommand(cfg Config) *cobra.Command {
	rt := &runtimeState{
		configPath: cfg.ConfigPath,
		paths:      cfg.Paths,
		writer:     cfg.OutputWriter,
		errWriter:  cfg.ErrWriter,
		input:      cfg.Input,
	}
	opts := &queryOptions{}

	root := &cobra.Command{
		Use:   "vminfo [flags] <vm-name|regexp>...",
		Short: "Look up Azure virtual machines by name",
		Long: "vminfo queries Azure Resource Graph for virtual machines matching the given names\n" +
			"or regular expressions. Results are cached locally; use --no-cache to force a fresh query.",
		Args:         cobra.ArbitraryArgs,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if !cfg.SkipDotEnv {
				// a missing .env is the normal case
				_ = godotenv.Load()
			}
			rt.applyEnv()

			log, err := system.NewLogger(rt.verbose)
			if err != nil {
				return err
			}
			rt.log = log

			if cmd.Name() == "init" && cmd.Parent() != nil && cmd.Parent().Name() == "config" {
				return nil
			}
			if cmd.Name() == "version" || cmd.Name() == "completion" {
				return nil
			}
			return rt.EnsureConfigLoaded()
		},
		PersistentPostRunE: func(_ *cobra.Command, _ []string) error {
			return rt.flushMetrics()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRoot(cmd, rt, opts, args)
		},
	}

	root.PersistentFlags().StringVar(&rt.configPath, "config", rt.configPath, "Path to config file")
	root.PersistentFlags().StringVarP(&rt.outputFormat, "output", "o", "", "Output format: json, yaml, table, wide or template=<go template>")
	root.PersistentFlags().StringVar(&rt.tokenStorageOverride, "token-storage", "", "Token storage backend: file or keychain")
	root.PersistentFlags().BoolVar(&rt.nonInteractive, "non-interactive", false, "Fail instead of prompting or starting a login flow")
	root.PersistentFlags().BoolVarP(&rt.verbose, "verbose", "v", false, "Enable debug logging")
	root.PersistentFlags().StringVar(&rt.metricsFile, "metrics-file", "", "Write Prometheus metrics to this file on exit")
	opts.bindFlags(root)

	root.SetContext(context.WithValue(context.Background(), runtimeKey{}, rt))

	root.AddCommand(
		NewAuthCommand(),
		NewCacheCommand(),
		NewConfigCommand(),
		NewCompletionCommand(),
		NewVersionCommand(),
	)

	return root
}

func getRuntime(cmd *cobra.Command) (*runtimeState, error) {
	rt, ok := cmd.Context().Value(runtimeKey{}).(*runtimeState)
	if !ok || rt == nil {
		return nil, errors.New("runtime not initialized")
	}
	return rt, nil
}

// applyEnv fills options not given as flags from VMINFO_* variables.
func (rt *runtimeState) applyEnv() {
	if rt.outputFormat == "" {
		rt.outputFormat = os.Getenv("VMINFO_OUTPUT")
	}
	if rt.tokenStorageOverride == "" {
		rt.tokenStorageOverride = os.Getenv("VMINFO_TOKEN_STORAGE")
	}
	if rt.metricsFile == "" {
		rt.metricsFile = os.Getenv("VMINFO_METRICS_FILE")
	}
	if !rt.nonInteractive {
		rt.nonInteractive = strings.EqualFold(os.Getenv("VMINFO_NON_INTERACTIVE"), "true")
	}
	if !rt.verbose {
		rt.verbose = strings.EqualFold(os.Getenv("VMINFO_VERBOSE"), "true")
	}
}

// EnsureConfigLoaded reads the config file, falling back to defaults when it
// does not exist, and applies credential overrides from the environment.
func (rt *runtimeState) EnsureConfigLoaded() error {
	if rt.cfg != nil {
		return nil
	}
	cfg, err := config.LoadOrDefault(rt.configPathValue())
	if err != nil {
		return err
	}
	if v := os.Getenv("VMINFO_TENANT_ID"); v != "" {
		cfg.TenantID = v
	}
	if v := os.Getenv("VMINFO_CLIENT_ID"); v != "" {
		cfg.ClientID = v
	}
	if v := os.Getenv("VMINFO_CLIENT_SECRET"); v != "" {
		cfg.ClientSecret = v
	}
	if v := os.Getenv("VMINFO_AUTH_METHOD"); v != "" {
		cfg.AuthMethod = v
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	rt.cfg = cfg
	return nil
}

func (rt *runtimeState) OutputFormat() string {
	if rt.outputFormat != "" {
		return rt.outputFormat
	}
	if rt.cfg != nil && rt.cfg.Settings.OutputFormat != "" {
		return rt.cfg.Settings.OutputFormat
	}
	return "json"
}

func (rt *runtimeState) TokenStorage() string {
	if rt.tokenStorageOverride != "" {
		return rt.tokenStorageOverride
	}
	if rt.cfg != nil && rt.cfg.TokenStorage != "" {
		return rt.cfg.TokenStorage
	}
	return ""
}

// Paths merges the injected paths, the defaults and config overrides.
func (rt *runtimeState) Paths() config.Paths {
	def := config.DefaultPaths()
	p := def.WithOverrides(rt.cfg)
	p.ConfigFile = rt.configPathValue()
	if rt.paths.TokenFile != "" {
		p.TokenFile = rt.paths.TokenFile
	}
	if rt.paths.CacheFile != "" {
		p.CacheFile = rt.paths.CacheFile
	}
	return p
}

func (rt *runtimeState) Writer() io.Writer {
	if rt.writer != nil {
		return rt.writer
	}
	return os.Stdout
}

func (rt *runtimeState) ErrWriter() io.Writer {
	if rt.errWriter != nil {
		return rt.errWriter
	}
	return os.Stderr
}

func (rt *runtimeState) Input() io.Reader {
	if rt.input != nil {
		return rt.input
	}
	return os.Stdin
}

func (rt *runtimeState) Log() *zap.SugaredLogger {
	return system.OrNop(rt.log)
}

func (rt *runtimeState) configPathValue() string {
	if rt.configPath == "" {
		if rt.paths.ConfigFile != "" {
			return rt.paths.ConfigFile
		}
		return config.DefaultConfigPath()
	}
	return rt.configPath
}

func (rt *runtimeState) flushMetrics() error {
	if rt.metricsFile == "" {
		return nil
	}
	return metrics.WriteTextfile(rt.metricsFile)
}
