package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/AlecAivazis/survey/v2"
	"github.com/AlecAivazis/survey/v2/terminal"

	"github.com/ZebulonRouseFrantzich/dnscryptctl/internal/front"
)

// surveyPrompter asks for a front prefix on the terminal.
type surveyPrompter struct {
	stdio survey.AskOpt
	out   io.Writer
}

func newSurveyPrompter(env *environment) front.Prompter {
	in, okIn := env.stdin.(*os.File)
	out, okOut := env.stderr.(*os.File)
	if !okIn || !okOut {
		return front.NoPrompt
	}
	return &surveyPrompter{
		stdio: survey.WithStdio(in, out, out),
		out:   out,
	}
}

// PromptForFront implements front.Prompter. An interrupt or an empty
// answer cancels.
func (p *surveyPrompter) PromptForFront(ctx context.Context, lastErr error) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if lastErr != nil {
		fmt.Fprintf(p.out, "%s %v\n", colorWarn.Sprint("No front is reachable:"), lastErr)
	}

	var prefix string
	prompt := &survey.Input{
		Message: "Front URL prefix (empty to connect directly):",
		Help:    "A URL prefix such as https://mirror.example.org/ that is prepended to every GitHub URL.",
	}
	err := survey.AskOne(prompt, &prefix, p.stdio)
	if errors.Is(err, terminal.InterruptErr) {
		return "", front.ErrCancelled
	}
	if err != nil {
		return "", err
	}
	return prefix, nil
}

// selectPrompter picks the interactive prompter when a terminal is attached
// and prompting is allowed.
func selectPrompter(env *environment, opts *globalOptions) front.Prompter {
	if opts.yes || !env.interactive {
		return front.NoPrompt
	}
	return newSurveyPrompter(env)
}
