package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/ZebulonRouseFrantzich/dnscryptctl/internal/config"
	"github.com/ZebulonRouseFrantzich/dnscryptctl/internal/platform"
)

// Version will be set at build time via -ldflags
var Version = "v0.1.0"

// environment carries the process-level dependencies of the CLI so tests
// can run commands against temporary directories and fake servers.
type environment struct {
	stdin       io.Reader
	stdout      io.Writer
	stderr      io.Writer
	home        string
	detector    platform.Detector
	interactive bool
}

func defaultEnvironment() (*environment, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("get home directory: %w", err)
	}
	return &environment{
		stdin:       os.Stdin,
		stdout:      os.Stdout,
		stderr:      os.Stderr,
		home:        home,
		detector:    platform.NewDetector(),
		interactive: term.IsTerminal(int(os.Stdin.Fd())) && term.IsTerminal(int(os.Stderr.Fd())),
	}, nil
}

// globalOptions holds the persistent flags.
type globalOptions struct {
	settingsPath string
	verbose      bool
	front        string
	direct       bool
	configFile   string
	yes          bool
}

func newRootCmd(env *environment) (*cobra.Command, *globalOptions) {
	opts := &globalOptions{}

	root := &cobra.Command{
		Use:           "dnscryptctl",
		Short:         "Configure and install dnscrypt-proxy through fallback network fronts",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetIn(env.stdin)
	root.SetOut(env.stdout)
	root.SetErr(env.stderr)

	flags := root.PersistentFlags()
	flags.StringVar(&opts.settingsPath, "settings", "", "settings file (default: "+defaultSettingsHint+")")
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "enable debug logging")
	flags.StringVar(&opts.front, "front", "", "use this URL prefix as the front without probing")
	flags.BoolVar(&opts.direct, "direct", false, "skip front selection and connect directly")
	flags.StringVar(&opts.configFile, "config-file", "", "dnscrypt-proxy configuration file (default: detected)")
	flags.BoolVarP(&opts.yes, "yes", "y", false, "never prompt")
	root.MarkFlagsMutuallyExclusive("front", "direct")

	root.AddCommand(
		newProbeCmd(env, opts),
		newServersCmd(env, opts),
		newInstallCmd(env, opts),
		newApplyCmd(env, opts),
		newValidateCmd(env, opts),
		newShowCmd(env, opts),
		newServiceCmd(env, opts),
		newConfigCmd(env, opts),
		newVersionCmd(env),
	)
	return root, opts
}

func newVersionCmd(env *environment) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "dnscryptctl %s\n", Version)
		},
	}
}

func main() {
	env, err := defaultEnvironment()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	code := execute(ctx, env, os.Args[1:])
	stop()
	os.Exit(code)
}

// execute runs the command line args and returns the process exit code.
func execute(ctx context.Context, env *environment, args []string) int {
	root, opts := newRootCmd(env)
	root.SetArgs(args)
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(env.stderr, "Error: %s\n", formatError(err, opts.verbose))
		return 1
	}
	return 0
}

// formatError renders err for the terminal. Settings errors get their
// friendly form unless verbose is set.
func formatError(err error, verbose bool) string {
	var parseErr *config.ParseError
	if errors.As(err, &parseErr) {
		return config.FormatError(err, verbose)
	}
	return err.Error()
}
