package main

import (
	"fmt"
	"io"
	"os"
	"path"
	"time"

	"github.com/fatih/color"
	colorable "github.com/mattn/go-colorable"
	"github.com/schollz/progressbar/v3"

	"github.com/ZebulonRouseFrantzich/dnscryptctl/internal/model"
)

var (
	colorOK   = color.New(color.FgGreen)
	colorWarn = color.New(color.FgYellow)
	colorFail = color.New(color.FgRed)
	colorDim  = color.New(color.Faint)
)

// renderer turns pipeline events into terminal output. It runs on the
// CLI goroutine only.
type renderer struct {
	out      io.Writer
	verbose  bool
	progress bool
	bar      *progressbar.ProgressBar
}

func newRenderer(out io.Writer, verbose, progress bool) *renderer {
	if f, ok := out.(*os.File); ok {
		out = colorable.NewColorable(f)
	}
	return &renderer{out: out, verbose: verbose, progress: progress}
}

// Handle renders one event.
func (r *renderer) Handle(ev model.Event) {
	switch ev.Kind {
	case model.EventProbe:
		if ev.Err != nil {
			r.printf("%s %s: %v\n", colorFail.Sprint("✗"), ev.Front.String(), ev.Err)
		} else if r.verbose {
			r.printf("%s %s reachable\n", colorOK.Sprint("✓"), ev.Front.String())
		}
	case model.EventFrontSelected:
		r.printf("Using %s\n", bold.Sprint(ev.Front.String()))
	case model.EventSourceFetched:
		r.printf("Fetched %s from %s\n", ev.Message, ev.URL)
	case model.EventSourceFallback:
		r.printf("%s %s\n", colorWarn.Sprint("!"), ev.Message)
	case model.EventReleaseAttempt:
		r.printf("Trying release %s\n", bold.Sprint(ev.Tag))
	case model.EventReleaseSkipped:
		r.printf("%s %s: %s\n", colorDim.Sprint("-"), ev.Tag, ev.Message)
	case model.EventReleaseFailed:
		r.printf("%s %s: %v\n", colorFail.Sprint("✗"), ev.Tag, ev.Err)
	case model.EventDownloadStart:
		r.startBar(ev)
	case model.EventDownloadProgress:
		if r.bar != nil {
			_ = r.bar.Set64(ev.Bytes)
		}
	case model.EventDownloadDone:
		r.finishBar(ev)
	case model.EventInstalled:
		r.printf("%s Installed %s at %s\n", colorOK.Sprint("✓"), ev.Tag, ev.Message)
	case model.EventDone:
		r.finishBar(ev)
	}
}

func (r *renderer) startBar(ev model.Event) {
	name := path.Base(ev.URL)
	if !r.progress {
		r.printf("Downloading %s\n", name)
		return
	}
	r.bar = progressbar.NewOptions64(
		ev.Total,
		progressbar.OptionSetWriter(r.out),
		progressbar.OptionSetDescription(name),
		progressbar.OptionShowBytes(true),
		progressbar.OptionSetWidth(40),
		progressbar.OptionThrottle(65*time.Millisecond),
		progressbar.OptionOnCompletion(func() {
			fmt.Fprintln(r.out)
		}),
	)
}

func (r *renderer) finishBar(ev model.Event) {
	if r.bar == nil {
		return
	}
	if ev.Kind == model.EventDownloadDone {
		_ = r.bar.Set64(ev.Bytes)
	}
	_ = r.bar.Finish()
	r.bar = nil
}

func (r *renderer) printf(format string, v ...interface{}) {
	if r.bar != nil {
		_ = r.bar.Clear()
	}
	fmt.Fprintf(r.out, format, v...)
}
