package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/apex/log"

	"github.com/ZebulonRouseFrantzich/dnscryptctl/internal/binary"
	"github.com/ZebulonRouseFrantzich/dnscryptctl/internal/config"
	"github.com/ZebulonRouseFrantzich/dnscryptctl/internal/daemonconf"
	"github.com/ZebulonRouseFrantzich/dnscryptctl/internal/front"
	"github.com/ZebulonRouseFrantzich/dnscryptctl/internal/model"
	"github.com/ZebulonRouseFrantzich/dnscryptctl/internal/platform"
	"github.com/ZebulonRouseFrantzich/dnscryptctl/internal/session"
	"github.com/ZebulonRouseFrantzich/dnscryptctl/internal/worker"
)

// configDirEnv overrides the directory holding the settings file.
const configDirEnv = "DNSCRYPTCTL_CONFIG_DIR"

const defaultSettingsHint = "~/.config/dnscryptctl/" + config.SettingsFileName

// app is the per-invocation state shared by all commands.
type app struct {
	env      *environment
	opts     *globalOptions
	logger   *log.Logger
	info     *platform.Info
	settings *config.Settings
}

// settingsPath resolves the settings file location.
func settingsPath(env *environment, opts *globalOptions) string {
	if opts.settingsPath != "" {
		return config.ExpandHome(opts.settingsPath, env.home)
	}
	if dir := os.Getenv(configDirEnv); dir != "" {
		return filepath.Join(dir, config.SettingsFileName)
	}
	return filepath.Join(env.home, ".config", "dnscryptctl", config.SettingsFileName)
}

// newApp detects the platform and loads the settings.
func newApp(ctx context.Context, env *environment, opts *globalOptions) (*app, error) {
	logger := newLogger(env.stderr, opts.verbose)

	info, err := env.detector.Detect(ctx)
	if err != nil {
		return nil, fmt.Errorf("detect platform: %w", err)
	}
	logger.Debugf("platform: %s/%s (%s)", info.OS, info.Machine, info.Platform)

	parser := config.NewParser(&platform.StaticDetector{Info: info}, env.home).WithLogger(logger)
	settings, err := parser.Load(ctx, settingsPath(env, opts))
	if err != nil {
		return nil, err
	}

	return &app{
		env:      env,
		opts:     opts,
		logger:   logger,
		info:     info,
		settings: settings,
	}, nil
}

// sessionConfig returns the session settings for pipeline jobs.
func (a *app) sessionConfig() session.Config {
	return session.Config{
		Logger:    a.logger,
		UserAgent: a.settings.UserAgent,
	}
}

// run executes job on the background worker and renders its events.
func (a *app) run(ctx context.Context, job worker.Job) error {
	r := newRenderer(a.env.stderr, a.opts.verbose, a.env.interactive)
	var w worker.Worker
	return w.Run(ctx, a.sessionConfig(), job, r.Handle)
}

// selectFront establishes the active front on sess, honouring --front and
// --direct.
func (a *app) selectFront(ctx context.Context, sess *session.Session) (*model.Front, error) {
	selector := front.NewSelector(sess, front.Config{
		Fronts:   a.settings.Fronts,
		ProbeURL: a.settings.ProbeURL,
		Timeout:  a.settings.Timeouts.Probe,
		Prompter: selectPrompter(a.env, a.opts),
	})

	switch {
	case a.opts.direct:
		return selector.Use(ctx, nil)
	case strings.TrimSpace(a.opts.front) != "":
		return selector.Use(ctx, &model.Front{Name: front.ManualFrontName, Prefix: strings.TrimSpace(a.opts.front)})
	default:
		return selector.Select(ctx)
	}
}

// newInstaller builds the release installer for sess.
func (a *app) newInstaller(sess *session.Session) (*binary.Installer, error) {
	var verifier *binary.Verifier
	if a.settings.Keyring != "" {
		v, err := binary.NewVerifier(config.ExpandHome(a.settings.Keyring, a.env.home))
		if err != nil {
			return nil, fmt.Errorf("load keyring: %w", err)
		}
		verifier = v
	}
	return binary.NewInstaller(sess, binary.Config{
		ReleasesURL:     a.settings.ReleasesURL,
		CacheDir:        a.settings.CacheDir,
		InstallDir:      a.settings.InstallDir,
		Platform:        a.info,
		Verifier:        verifier,
		ReleasesTimeout: a.settings.Timeouts.Releases,
		DownloadTimeout: a.settings.Timeouts.Download,
	}), nil
}

// daemonConfig returns --config-file or the first detected candidate.
func (a *app) daemonConfig() (string, error) {
	if a.opts.configFile != "" {
		return config.ExpandHome(a.opts.configFile, a.env.home), nil
	}
	return daemonconf.Detect(a.settings.DaemonConfigCandidates)
}

func (a *app) printf(format string, v ...interface{}) {
	fmt.Fprintf(a.env.stdout, format, v...)
}
