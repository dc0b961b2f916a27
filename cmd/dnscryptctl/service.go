package main

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ZebulonRouseFrantzich/dnscryptctl/internal/binary"
	"github.com/ZebulonRouseFrantzich/dnscryptctl/internal/service"
)

func newServiceCmd(env *environment, opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "service",
		Short: "Start, stop or restart the dnscrypt-proxy service",
	}
	for _, verb := range service.Verbs {
		cmd.AddCommand(&cobra.Command{
			Use:   string(verb),
			Short: strings.ToUpper(string(verb[:1])) + string(verb[1:]) + " the service",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				a, err := newApp(cmd.Context(), env, opts)
				if err != nil {
					return err
				}
				return a.runService(cmd.Context(), string(verb))
			},
		})
	}
	return cmd
}

// installedBinary locates the daemon binary under the install directory.
func (a *app) installedBinary() string {
	path, err := binary.FindBinary(a.settings.InstallDir, a.info.OS)
	if err != nil {
		name := binary.BinaryName
		if a.info.IsWindows() {
			name += ".exe"
		}
		return filepath.Join(a.settings.InstallDir, name)
	}
	return path
}

func (a *app) runService(ctx context.Context, verbName string) error {
	verb, err := service.ParseVerb(verbName)
	if err != nil {
		return err
	}

	ctl := service.NewController(service.Config{
		Command: a.settings.ServiceCommand,
		Binary:  a.installedBinary(),
		Timeout: a.settings.Timeouts.Service,
		Logger:  a.logger,
	})
	out, err := ctl.Run(ctx, verb)
	if err != nil {
		return err
	}
	if s := strings.TrimSpace(out); s != "" {
		a.printf("%s\n", s)
	}
	a.printf("%s %s\n", colorOK.Sprint("✓"), verb)
	return nil
}
