package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/AlecAivazis/survey/v2"
	"github.com/spf13/cobra"

	"github.com/ZebulonRouseFrantzich/dnscryptctl/internal/daemonconf"
	"github.com/ZebulonRouseFrantzich/dnscryptctl/internal/model"
	"github.com/ZebulonRouseFrantzich/dnscryptctl/internal/source"
)

var errNoServersSelected = errors.New("select at least one server")

type applyOptions struct {
	manual  string
	restart bool
}

func newApplyCmd(env *environment, opts *globalOptions) *cobra.Command {
	aopts := &applyOptions{}
	cmd := &cobra.Command{
		Use:   "apply [server-name...]",
		Short: "Write server names into the dnscrypt-proxy configuration",
		Long: `Write server names into the server_names field of the dnscrypt-proxy
configuration. A timestamped backup is written next to the file first.

With no names, the resolver list is fetched and, on a terminal, offered for
selection; otherwise every listed server is written. --manual writes a single
host:port entry instead.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runApply(cmd.Context(), env, opts, aopts, args)
		},
	}
	cmd.Flags().StringVar(&aopts.manual, "manual", "", "write a single host:port server")
	cmd.Flags().BoolVar(&aopts.restart, "restart", false, "restart the service after writing")
	return cmd
}

func runApply(ctx context.Context, env *environment, opts *globalOptions, aopts *applyOptions, args []string) error {
	if aopts.manual != "" && len(args) > 0 {
		return fmt.Errorf("--manual cannot be combined with server names")
	}

	a, err := newApp(ctx, env, opts)
	if err != nil {
		return err
	}

	path, err := a.daemonConfig()
	if err != nil {
		return err
	}
	if _, err := os.Stat(path); err != nil {
		return &daemonconf.IOError{Path: path, Op: "stat", Err: err}
	}

	names, err := a.resolveNames(ctx, aopts, args)
	if err != nil {
		return err
	}

	backupPath, err := daemonconf.Apply(ctx, path, names, daemonconf.RealClock{})
	if backupPath != "" {
		fmt.Fprintf(env.stderr, "Backup written to %s\n", backupPath)
	}
	if err != nil {
		return err
	}
	a.printf("%s\n", daemonconf.RenderField(names))

	if aopts.restart {
		return a.runService(ctx, "restart")
	}
	return nil
}

// resolveNames decides which server names to write.
func (a *app) resolveNames(ctx context.Context, aopts *applyOptions, args []string) ([]string, error) {
	if aopts.manual != "" {
		addr := strings.TrimSpace(aopts.manual)
		if err := source.ValidateAddress(addr); err != nil {
			return nil, err
		}
		return []string{addr}, nil
	}
	if len(args) > 0 {
		return args, nil
	}

	entries, err := a.fetchServers(ctx)
	if err != nil {
		return nil, err
	}
	if !a.env.interactive || a.opts.yes {
		return serverNames(entries), nil
	}
	return a.chooseServers(entries)
}

func serverNames(entries []model.ServerEntry) []string {
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name)
	}
	return names
}

// chooseServers offers entries for selection, all selected by default.
func (a *app) chooseServers(entries []model.ServerEntry) ([]string, error) {
	in, okIn := a.env.stdin.(*os.File)
	out, okOut := a.env.stderr.(*os.File)
	if !okIn || !okOut {
		return serverNames(entries), nil
	}

	options := make([]string, 0, len(entries))
	for _, e := range entries {
		options = append(options, e.Name+" - "+e.Address)
	}
	prompt := &survey.MultiSelect{
		Message:  "Servers to use:",
		Options:  options,
		Default:  options,
		PageSize: 15,
	}

	var picked []int
	if err := survey.AskOne(prompt, &picked, survey.WithStdio(in, out, out)); err != nil {
		return nil, err
	}
	if len(picked) == 0 {
		return nil, errNoServersSelected
	}

	names := make([]string, 0, len(picked))
	for _, i := range picked {
		names = append(names, entries[i].Name)
	}
	return names, nil
}
