package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/telekom/azure-vminfo/pkg/vminfo/auth"
	"github.com/telekom/azure-vminfo/pkg/vminfo/inventory"
	"github.com/telekom/azure-vminfo/pkg/vminfo/output"
)

type queryOptions struct {
	login            bool
	logout           bool
	servicePrincipal bool
	interactive      bool
	noCache          bool
	matchRegexp      bool
	extensions       bool
	tags             bool
	subscriptions    []string
	skip             int
	top              int
}

func (o *queryOptions) bindFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.BoolVar(&o.login, "login", false, "Authenticate and store the token, then exit")
	f.BoolVar(&o.logout, "logout", false, "Remove the stored token, then exit")
	f.BoolVar(&o.servicePrincipal, "service-principal", false, "Authenticate as a service principal (client credentials)")
	f.BoolVar(&o.interactive, "interactive", false, "Authenticate in the browser (authorization code with PKCE)")
	f.BoolVarP(&o.noCache, "no-cache", "c", false, "Ignore cached results and query Azure")
	f.BoolVarP(&o.matchRegexp, "match-regexp", "r", false, "Treat arguments as regular expressions")
	f.BoolVarP(&o.extensions, "extensions", "e", false, "Include VM extensions")
	f.BoolVarP(&o.tags, "tags", "t", false, "Include VM tags")
	f.StringSliceVar(&o.subscriptions, "subscription", nil, "Limit the query to these subscription IDs (repeatable)")
	f.IntVar(&o.skip, "skip", 0, "Number of records to skip")
	f.IntVar(&o.top, "top", 0, "Page size used while paging (1-1000)")
	cmd.MarkFlagsMutuallyExclusive("login", "logout")
	cmd.MarkFlagsMutuallyExclusive("service-principal", "interactive")
}

// kind returns the flow selected by flags, or "" to use the configured one.
func (o *queryOptions) kind() auth.CredentialKind {
	switch {
	case o.servicePrincipal:
		return auth.KindServicePrincipal
	case o.interactive:
		return auth.KindInteractive
	default:
		return ""
	}
}

func runRoot(cmd *cobra.Command, rt *runtimeState, opts *queryOptions, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	switch {
	case opts.logout:
		return rt.logout(ctx)
	case opts.login:
		return rt.login(ctx, opts.kind())
	case len(args) == 0:
		return errors.New("at least one VM name or pattern is required")
	}
	return rt.query(ctx, opts, args)
}

func (rt *runtimeState) query(ctx context.Context, opts *queryOptions, terms []string) error {
	spec, err := output.ParseFormat(rt.OutputFormat())
	if err != nil {
		return err
	}
	cred, err := rt.cfg.Credential(opts.kind())
	if err != nil {
		return err
	}
	if cred.ClientID == "" {
		return fmt.Errorf("%w: no client-id configured", auth.ErrLoginRequired)
	}

	d := inventory.Descriptor{
		Terms:             terms,
		RegexpMode:        opts.matchRegexp,
		IncludeExtensions: opts.extensions,
		IncludeTags:       opts.tags,
		Subscriptions:     opts.subscriptions,
		Skip:              opts.skip,
		Top:               opts.top,
	}
	if len(d.Subscriptions) == 0 {
		d.Subscriptions = rt.cfg.Subscriptions
	}
	if d.Top == 0 {
		d.Top = rt.cfg.Settings.PageSize
	}
	if err := d.Validate(); err != nil {
		return err
	}

	engine, err := rt.engine()
	if err != nil {
		return err
	}
	rc, closeCache, err := rt.resultCache(ctx)
	if err != nil {
		rt.Log().Warnw("Result cache unavailable, querying without it", "backend", rt.cfg.CacheBackend(), "error", err)
		rc, closeCache = nil, func() {}
	}
	defer closeCache()

	qc, err := rt.queryClient(engine.TokenSource(cred), rc)
	if err != nil {
		return err
	}
	vms, err := qc.Query(ctx, d, !opts.noCache)
	if err != nil {
		return err
	}
	return output.WriteVMs(rt.Writer(), spec, vms)
}
