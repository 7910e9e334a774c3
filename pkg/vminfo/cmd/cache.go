package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/telekom/azure-vminfo/pkg/vminfo/output"
)

func NewCacheCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect or clear the result cache",
	}
	cmd.AddCommand(
		newCacheListCommand(),
		newCacheClearCommand(),
	)
	return cmd
}

func newCacheListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List cached query results",
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := getRuntime(cmd)
			if err != nil {
				return err
			}
			rc, closeCache, err := rt.resultCache(cmd.Context())
			if err != nil {
				return err
			}
			defer closeCache()
			summaries, err := rc.List(cmd.Context())
			if err != nil {
				return err
			}
			switch format := output.Format(rt.outputFormat); format {
			case output.FormatJSON, output.FormatYAML:
				return output.WriteObject(rt.Writer(), format, summaries)
			default:
				output.WriteCacheSummaries(rt.Writer(), summaries, time.Now())
				return nil
			}
		},
	}
}

func newCacheClearCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Remove all cached query results",
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := getRuntime(cmd)
			if err != nil {
				return err
			}
			rc, closeCache, err := rt.resultCache(cmd.Context())
			if err != nil {
				return err
			}
			defer closeCache()
			if err := rc.Clear(cmd.Context()); err != nil {
				return err
			}
			_, _ = fmt.Fprintln(rt.Writer(), "Result cache cleared")
			return nil
		},
	}
}
