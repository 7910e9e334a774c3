package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/telekom/azure-vminfo/pkg/vminfo/auth"
	"github.com/telekom/azure-vminfo/pkg/vminfo/config"
	"github.com/telekom/azure-vminfo/pkg/vminfo/output"
)

func NewConfigCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage vminfo configuration",
	}

	cmd.AddCommand(
		newConfigInitCommand(),
		newConfigViewCommand(),
	)

	return cmd
}

func newConfigInitCommand() *cobra.Command {
	var (
		tenantID     string
		clientID     string
		authMethod   string
		cacheBackend string
		redisAddr    string
		subs         []string
		force        bool
	)

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize a vminfo config file",
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := getRuntime(cmd)
			if err != nil {
				return err
			}
			path := rt.configPathValue()
			if !force {
				if _, err := os.Stat(path); err == nil {
					return fmt.Errorf("config already exists: %s", path)
				}
			}
			kind, err := auth.ParseKind(authMethod)
			if err != nil {
				return err
			}
			cfg := config.DefaultConfig()
			cfg.TenantID = tenantID
			cfg.ClientID = clientID
			cfg.AuthMethod = string(kind)
			cfg.Subscriptions = subs
			if cacheBackend != "" {
				cfg.Cache.Backend = cacheBackend
			}
			cfg.Cache.Redis.Addr = redisAddr
			if err := cfg.Validate(); err != nil {
				return err
			}
			if err := config.Save(path, &cfg); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(rt.Writer(), "Initialized config at %s\n", path)
			return nil
		},
	}

	cmd.Flags().StringVar(&tenantID, "tenant-id", "", "Azure AD tenant ID")
	cmd.Flags().StringVar(&clientID, "client-id", "", "Application (client) ID")
	cmd.Flags().StringVar(&authMethod, "auth-method", string(auth.KindDeviceCode), "Auth method: device-code, interactive or service-principal")
	cmd.Flags().StringVar(&cacheBackend, "cache-backend", "", "Result cache backend: file or redis")
	cmd.Flags().StringVar(&redisAddr, "redis-addr", "", "Redis address for the redis cache backend")
	cmd.Flags().StringSliceVar(&subs, "subscription", nil, "Default subscription IDs (repeatable)")
	cmd.Flags().BoolVar(&force, "force", false, "Overwrite existing config")

	_ = cmd.MarkFlagRequired("client-id")
	return cmd
}

func newConfigViewCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "view",
		Short: "Show the effective configuration with secrets redacted",
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := getRuntime(cmd)
			if err != nil {
				return err
			}
			if err := rt.EnsureConfigLoaded(); err != nil {
				return err
			}
			format := output.Format(rt.outputFormat)
			if format != output.FormatJSON {
				format = output.FormatYAML
			}
			return output.WriteObject(rt.Writer(), format, rt.cfg.Redacted())
		},
	}
}
