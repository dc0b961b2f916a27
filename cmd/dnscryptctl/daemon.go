package main

import (
	"context"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ZebulonRouseFrantzich/dnscryptctl/internal/daemonconf"
)

func newValidateCmd(env *environment, opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Check that the dnscrypt-proxy configuration has a server_names field",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), env, opts)
			if err != nil {
				return err
			}
			path, err := a.daemonConfig()
			if err != nil {
				return err
			}
			if err := daemonconf.Validate(path); err != nil {
				return err
			}
			a.printf("%s: ok\n", path)
			return nil
		},
	}
}

func newShowCmd(env *environment, opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the servers currently configured for dnscrypt-proxy",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runShow(cmd.Context(), env, opts)
		},
	}
}

func runShow(ctx context.Context, env *environment, opts *globalOptions) error {
	a, err := newApp(ctx, env, opts)
	if err != nil {
		return err
	}
	path, err := a.daemonConfig()
	if err != nil {
		return err
	}
	summary, err := daemonconf.ReadSummary(path)
	if err != nil {
		return err
	}

	a.printf("config:   %s\n", summary.Path)
	a.printf("servers:  %s\n", listOrNone(summary.ServerNames))
	a.printf("listen:   %s\n", listOrNone(summary.ListenAddresses))
	return nil
}

func listOrNone(values []string) string {
	if len(values) == 0 {
		return "(none)"
	}
	return strings.Join(values, ", ")
}
