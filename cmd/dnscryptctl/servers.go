package main

import (
	"context"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/ZebulonRouseFrantzich/dnscryptctl/internal/model"
	"github.com/ZebulonRouseFrantzich/dnscryptctl/internal/session"
	"github.com/ZebulonRouseFrantzich/dnscryptctl/internal/source"
)

func newServersCmd(env *environment, opts *globalOptions) *cobra.Command {
	var namesOnly bool
	cmd := &cobra.Command{
		Use:   "servers",
		Short: "List resolver servers from the configured mirrors",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServers(cmd.Context(), env, opts, namesOnly)
		},
	}
	cmd.Flags().BoolVar(&namesOnly, "names", false, "print server names only")
	return cmd
}

// fetchServers selects a front and downloads the resolver list, falling
// back to the built-in list.
func (a *app) fetchServers(ctx context.Context) ([]model.ServerEntry, error) {
	var entries []model.ServerEntry
	err := a.run(ctx, func(ctx context.Context, sess *session.Session) error {
		if _, err := a.selectFront(ctx, sess); err != nil {
			return err
		}
		fetcher := source.NewFetcher(sess, source.Config{
			ListField: a.settings.ListField,
			Timeout:   a.settings.Timeouts.Fetch,
			Fallback:  a.settings.FallbackServers,
		})
		var err error
		entries, _, err = fetcher.FetchWithFallback(ctx, a.settings.MirrorURLs)
		return err
	})
	return entries, err
}

func runServers(ctx context.Context, env *environment, opts *globalOptions, namesOnly bool) error {
	a, err := newApp(ctx, env, opts)
	if err != nil {
		return err
	}

	entries, err := a.fetchServers(ctx)
	if err != nil {
		return err
	}

	if namesOnly {
		for _, e := range entries {
			a.printf("%s\n", e.Name)
		}
		return nil
	}

	tw := tabwriter.NewWriter(env.stdout, 0, 4, 2, ' ', 0)
	for _, e := range entries {
		region := e.Region
		if region == "" {
			region = "-"
		}
		tw.Write([]byte(e.Name + "\t" + e.Address + "\t" + region + "\n"))
	}
	return tw.Flush()
}
