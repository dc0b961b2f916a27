// Package service starts, stops and restarts the dnscrypt-proxy daemon by
// running an external command.
//
// The command is either a template such as "sudo systemctl {verb}
// dnscrypt-proxy", split with shell quoting rules, or, when no template is
// configured, the installed binary's own service mode:
// "<binary> -service <verb>". Zero exit status is success; anything else is
// reported with the command's combined output.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/shlex"
	"golang.org/x/sys/execabs"

	"github.com/ZebulonRouseFrantzich/dnscryptctl/internal/model"
)

// DefaultTimeout bounds a single service command.
const DefaultTimeout = 20 * time.Second

// VerbPlaceholder is replaced by the verb in each template argument.
const VerbPlaceholder = "{verb}"

// Verb is a service action understood by the daemon and by service managers.
type Verb string

const (
	VerbStart   Verb = "start"
	VerbStop    Verb = "stop"
	VerbRestart Verb = "restart"
)

// Verbs lists the accepted verbs in display order.
var Verbs = []Verb{VerbStart, VerbStop, VerbRestart}

var (
	ErrUnknownVerb = errors.New("unknown service verb")
	ErrNoCommand   = errors.New("no service command configured")
)

// ParseVerb validates a verb given on the command line.
func ParseVerb(s string) (Verb, error) {
	for _, v := range Verbs {
		if string(v) == s {
			return v, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownVerb, s)
}

// CommandError reports a service command that could not be run or exited
// with a non-zero status.
type CommandError struct {
	Argv   []string
	Output string
	Err    error
}

func (e *CommandError) Error() string {
	msg := fmt.Sprintf("%s: %v", strings.Join(e.Argv, " "), e.Err)
	if out := strings.TrimSpace(e.Output); out != "" {
		msg += "\n" + out
	}
	return msg
}

func (e *CommandError) Unwrap() error {
	return e.Err
}

// Runner executes argv and returns its combined stdout and stderr.
type Runner interface {
	Run(ctx context.Context, argv []string) ([]byte, error)
}

// ExecRunner runs commands as child processes.
type ExecRunner struct{}

// Run implements Runner.
func (ExecRunner) Run(ctx context.Context, argv []string) ([]byte, error) {
	cmd := execabs.CommandContext(ctx, argv[0], argv[1:]...)
	return cmd.CombinedOutput()
}

// Config configures a Controller.
type Config struct {
	// Command is the OPTIONAL template. Empty means run Binary directly.
	Command string

	// Binary is the installed daemon, used when Command is empty.
	Binary string

	// Timeout is OPTIONAL and defaults to DefaultTimeout.
	Timeout time.Duration

	// Runner is OPTIONAL and defaults to ExecRunner.
	Runner Runner

	// Logger is OPTIONAL.
	Logger model.Logger
}

// Controller runs service commands.
type Controller struct {
	config Config
}

// NewController creates a Controller.
func NewController(config Config) *Controller {
	if config.Timeout <= 0 {
		config.Timeout = DefaultTimeout
	}
	if config.Runner == nil {
		config.Runner = ExecRunner{}
	}
	config.Logger = model.ValidLoggerOrDefault(config.Logger)
	return &Controller{config: config}
}

// Argv renders the command for verb.
func (c *Controller) Argv(verb Verb) ([]string, error) {
	if strings.TrimSpace(c.config.Command) == "" {
		if c.config.Binary == "" {
			return nil, ErrNoCommand
		}
		return []string{c.config.Binary, "-service", string(verb)}, nil
	}

	args, err := shlex.Split(c.config.Command)
	if err != nil {
		return nil, fmt.Errorf("parse service command: %w", err)
	}
	if len(args) == 0 {
		return nil, ErrNoCommand
	}
	for i, arg := range args {
		args[i] = strings.ReplaceAll(arg, VerbPlaceholder, string(verb))
	}
	return args, nil
}

// Run executes the command for verb and returns its combined output.
func (c *Controller) Run(ctx context.Context, verb Verb) (string, error) {
	argv, err := c.Argv(verb)
	if err != nil {
		return "", err
	}

	ctx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	c.config.Logger.Infof("service: + %s", strings.Join(argv, " "))
	out, err := c.config.Runner.Run(ctx, argv)
	if err != nil {
		if ctxErr := ctx.Err(); errors.Is(ctxErr, context.DeadlineExceeded) {
			err = fmt.Errorf("timed out after %s: %w", c.config.Timeout, ctxErr)
		}
		c.config.Logger.Warnf("service: %s failed: %s", verb, err.Error())
		return string(out), &CommandError{Argv: argv, Output: string(out), Err: err}
	}
	return string(out), nil
}
