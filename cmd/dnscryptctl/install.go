package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/ZebulonRouseFrantzich/dnscryptctl/internal/model"
	"github.com/ZebulonRouseFrantzich/dnscryptctl/internal/session"
)

func newInstallCmd(env *environment, opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "install",
		Short: "Download and install the newest dnscrypt-proxy release for this host",
		Long: `Download and install the newest dnscrypt-proxy release for this host.

Releases are tried newest first. A release without an archive for this
platform, or whose archive fails to download, verify or extract, is skipped
in favour of the next older one. The install directory is only replaced
once a release has been fully extracted.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInstall(cmd.Context(), env, opts)
		},
	}
}

func runInstall(ctx context.Context, env *environment, opts *globalOptions) error {
	a, err := newApp(ctx, env, opts)
	if err != nil {
		return err
	}

	var result *model.InstallResult
	err = a.run(ctx, func(ctx context.Context, sess *session.Session) error {
		if _, err := a.selectFront(ctx, sess); err != nil {
			return err
		}
		installer, err := a.newInstaller(sess)
		if err != nil {
			return err
		}
		result, err = installer.Install(ctx)
		return err
	})
	if err != nil {
		return err
	}

	a.printf("%s\t%s\n", result.Tag, result.BinaryPath)
	return nil
}
