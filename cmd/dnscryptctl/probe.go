package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/ZebulonRouseFrantzich/dnscryptctl/internal/model"
	"github.com/ZebulonRouseFrantzich/dnscryptctl/internal/session"
)

func newProbeCmd(env *environment, opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "probe",
		Short: "Find the first reachable network front",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runProbe(cmd.Context(), env, opts)
		},
	}
}

func runProbe(ctx context.Context, env *environment, opts *globalOptions) error {
	a, err := newApp(ctx, env, opts)
	if err != nil {
		return err
	}

	var selected *model.Front
	err = a.run(ctx, func(ctx context.Context, sess *session.Session) error {
		f, err := a.selectFront(ctx, sess)
		selected = f
		return err
	})
	if err != nil {
		return err
	}

	if selected.IsDirect() {
		a.printf("direct\n")
		return nil
	}
	a.printf("%s\t%s\n", selected.Name, selected.Prefix)
	return nil
}
