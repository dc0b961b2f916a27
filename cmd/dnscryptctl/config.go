package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/ZebulonRouseFrantzich/dnscryptctl/internal/config"
)

func newConfigCmd(env *environment, opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage the dnscryptctl settings file",
	}

	var force bool
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write a settings file populated with the current values",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), env, opts)
			if err != nil {
				return err
			}
			path := settingsPath(env, opts)
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", path)
			}

			content, err := config.NewGenerator().Generate(a.settings)
			if err != nil {
				return err
			}
			if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
				return fmt.Errorf("create settings directory: %w", err)
			}
			if err := os.WriteFile(path, []byte(content), 0644); err != nil {
				return fmt.Errorf("write settings: %w", err)
			}
			a.printf("%s\n", path)
			return nil
		},
	}
	initCmd.Flags().BoolVar(&force, "force", false, "overwrite an existing settings file")

	pathCmd := &cobra.Command{
		Use:   "path",
		Short: "Print the settings file location",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), settingsPath(env, opts))
		},
	}

	cmd.AddCommand(initCmd, pathCmd)
	return cmd
}
