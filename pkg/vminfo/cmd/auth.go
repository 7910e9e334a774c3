package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"

	"github.com/telekom/azure-vminfo/pkg/vminfo/auth"
	"github.com/telekom/azure-vminfo/pkg/vminfo/config"
	"github.com/telekom/azure-vminfo/pkg/vminfo/output"
)

func NewAuthCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Manage the Azure login",
	}
	cmd.AddCommand(
		newAuthLoginCommand(),
		newAuthStatusCommand(),
		newAuthLogoutCommand(),
	)
	return cmd
}

func newAuthLoginCommand() *cobra.Command {
	var servicePrincipal, interactive bool
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Login with device code, browser or service principal",
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := getRuntime(cmd)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()
			opts := queryOptions{servicePrincipal: servicePrincipal, interactive: interactive}
			return rt.login(ctx, opts.kind())
		},
	}
	cmd.Flags().BoolVar(&servicePrincipal, "service-principal", false, "Authenticate as a service principal")
	cmd.Flags().BoolVar(&interactive, "interactive", false, "Authenticate in the browser")
	cmd.MarkFlagsMutuallyExclusive("service-principal", "interactive")
	return cmd
}

func newAuthStatusCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the stored token",
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := getRuntime(cmd)
			if err != nil {
				return err
			}
			store, err := rt.tokenStore()
			if err != nil {
				return err
			}
			rec, ok, err := store.Load(cmd.Context())
			if err != nil {
				return err
			}
			if !ok {
				_, _ = fmt.Fprintln(rt.Writer(), "Not authenticated")
				return nil
			}
			status := newTokenStatus(rec, time.Now())
			switch format := output.Format(rt.outputFormat); format {
			case output.FormatJSON, output.FormatYAML:
				return output.WriteObject(rt.Writer(), format, status)
			default:
				status.write(rt.Writer())
				return nil
			}
		},
	}
}

func newAuthLogoutCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Remove the stored token",
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := getRuntime(cmd)
			if err != nil {
				return err
			}
			return rt.logout(cmd.Context())
		},
	}
}

func (rt *runtimeState) logout(ctx context.Context) error {
	engine, err := rt.engine()
	if err != nil {
		return err
	}
	if err := engine.Logout(ctx); err != nil {
		return err
	}
	_, _ = fmt.Fprintln(rt.Writer(), "Logged out")
	return nil
}

// login runs the flow for kind, prompting for identifiers the config lacks.
// Prompted values and the chosen auth method are written back to the config file.
func (rt *runtimeState) login(ctx context.Context, kind auth.CredentialKind) error {
	if kind == "" {
		parsed, err := auth.ParseKind(rt.cfg.AuthMethod)
		if err != nil {
			return err
		}
		kind = parsed
	}

	updates := map[string]string{}
	if rt.cfg.ClientID == "" {
		v, err := rt.promptLine("Client ID")
		if err != nil {
			return err
		}
		rt.cfg.ClientID, updates["client-id"] = v, v
	}
	if kind == auth.KindServicePrincipal && rt.cfg.TenantID == "" {
		v, err := rt.promptLine("Tenant ID")
		if err != nil {
			return err
		}
		rt.cfg.TenantID, updates["tenant-id"] = v, v
	}

	cred, err := rt.cfg.Credential(kind)
	if err != nil {
		return err
	}
	if kind == auth.KindServicePrincipal && cred.ClientSecret == "" {
		v, err := rt.promptSecret("Client secret")
		if err != nil {
			return err
		}
		cred.ClientSecret = v
		rt.cfg.ClientSecret, updates["client-secret"] = v, v
	}

	engine, err := rt.engine()
	if err != nil {
		return err
	}
	// the user explicitly asked to log in
	engine.NonInteractive = false
	tok, err := engine.AcquireToken(ctx, cred)
	if err != nil {
		return err
	}
	if rt.cfg.AuthMethod != string(kind) {
		updates["auth-method"] = string(kind)
		rt.cfg.AuthMethod = string(kind)
	}
	if err := rt.persistConfigUpdates(updates); err != nil {
		rt.Log().Warnw("Failed to save login settings", "path", rt.configPathValue(), "error", err)
	}
	_, _ = fmt.Fprintf(rt.Writer(), "Login successful. Token expires at %s\n", tok.ExpiresAt.UTC().Format(time.RFC3339))
	return nil
}

// persistConfigUpdates applies updates to the file on disk, leaving values
// that came from the environment out of it.
func (rt *runtimeState) persistConfigUpdates(updates map[string]string) error {
	if len(updates) == 0 {
		return nil
	}
	path := rt.configPathValue()
	onDisk, err := config.LoadOrDefault(path)
	if err != nil {
		return err
	}
	for key, value := range updates {
		switch key {
		case "client-id":
			onDisk.ClientID = value
		case "tenant-id":
			onDisk.TenantID = value
		case "client-secret":
			onDisk.ClientSecret = value
		case "auth-method":
			onDisk.AuthMethod = value
		}
	}
	return config.Save(path, onDisk)
}
