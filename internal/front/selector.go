// Package front picks the network front through which the pipeline reaches
// GitHub and the resolver-list mirrors.
//
// Fronts are probed in rank order and the first one answering the probe URL
// with HTTP 200 wins, even if a lower-ranked front would have been faster.
// When every front fails, the user is asked for a prefix until one probes
// successfully or they give up, in which case the session runs direct.
package front

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ZebulonRouseFrantzich/dnscryptctl/internal/fallback"
	"github.com/ZebulonRouseFrantzich/dnscryptctl/internal/model"
	"github.com/ZebulonRouseFrantzich/dnscryptctl/internal/session"
)

// DefaultProbeTimeout bounds a single probe request.
const DefaultProbeTimeout = 7 * time.Second

// ManualFrontName names fronts entered interactively.
const ManualFrontName = "manual"

// ErrCancelled is returned by a Prompter when the user declines to enter a
// front. Select then proceeds without a front.
var ErrCancelled = errors.New("front selection cancelled")

// ErrProbeStatus indicates the probe reached a server that did not answer
// with 200 OK.
var ErrProbeStatus = errors.New("probe returned non-200 status")

// Prompter asks the user for a front prefix after automatic selection
// failed. lastErr is the most recent probe failure.
type Prompter interface {
	PromptForFront(ctx context.Context, lastErr error) (string, error)
}

// PrompterFunc adapts a function to Prompter.
type PrompterFunc func(ctx context.Context, lastErr error) (string, error)

// PromptForFront calls f.
func (f PrompterFunc) PromptForFront(ctx context.Context, lastErr error) (string, error) {
	return f(ctx, lastErr)
}

// NoPrompt always cancels. Non-interactive runs use it.
var NoPrompt Prompter = PrompterFunc(func(context.Context, error) (string, error) {
	return "", ErrCancelled
})

// Config configures a Selector.
type Config struct {
	// Fronts is the ranked candidate list.
	Fronts []model.Front

	// ProbeURL is requested through each front.
	ProbeURL string

	// Timeout is the OPTIONAL per-probe timeout. Defaults to
	// DefaultProbeTimeout.
	Timeout time.Duration

	// Prompter is the OPTIONAL interactive fallback. Defaults to NoPrompt.
	Prompter Prompter
}

// Selector chooses the active front for a session.
type Selector struct {
	sess   *session.Session
	config Config
}

// NewSelector creates a selector bound to sess.
func NewSelector(sess *session.Session, config Config) *Selector {
	if config.Timeout <= 0 {
		config.Timeout = DefaultProbeTimeout
	}
	if config.Prompter == nil {
		config.Prompter = NoPrompt
	}
	return &Selector{sess: sess, config: config}
}

// Probe reports whether front can reach the probe URL. Only an exact 200
// counts as success.
func (s *Selector) Probe(ctx context.Context, front model.Front) error {
	target := front.Apply(s.config.ProbeURL)
	resp, cancel, err := s.sess.Get(ctx, target, s.config.Timeout)
	if err != nil {
		return err
	}
	defer cancel()
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: %s", ErrProbeStatus, resp.Status)
	}
	return nil
}

// Select probes the configured fronts in rank order, then falls back to the
// prompter. The chosen front is recorded on the session. A nil front with a
// nil error means the user cancelled and requests go direct.
func (s *Selector) Select(ctx context.Context) (*model.Front, error) {
	logger := s.sess.Logger()

	chosen, _, err := fallback.First(ctx, s.config.Fronts, func(ctx context.Context, idx int, f model.Front) (model.Front, error) {
		err := s.probeAndReport(ctx, f)
		return f, err
	})
	if err == nil {
		return s.commit(ctx, &chosen)
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, ctxErr
	}
	if !errors.Is(err, fallback.ErrNoCandidates) {
		logger.Warnf("front: no ranked front reachable")
	}

	lastErr := err
	for {
		prefix, perr := s.config.Prompter.PromptForFront(ctx, lastErr)
		if errors.Is(perr, ErrCancelled) {
			logger.Warnf("front: no front configured, requests go direct")
			return s.commit(ctx, nil)
		}
		if perr != nil {
			return nil, fmt.Errorf("prompt for front: %w", perr)
		}

		prefix = strings.TrimSpace(prefix)
		if prefix == "" {
			logger.Warnf("front: no front configured, requests go direct")
			return s.commit(ctx, nil)
		}

		manual := model.Front{Name: ManualFrontName, Prefix: prefix}
		if lastErr = s.probeAndReport(ctx, manual); lastErr == nil {
			return s.commit(ctx, &manual)
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
	}
}

func (s *Selector) probeAndReport(ctx context.Context, f model.Front) error {
	logger := s.sess.Logger()
	logger.Debugf("front: probing %s (%s)", f.Name, f.Prefix)

	start := time.Now()
	err := s.Probe(ctx, f)
	elapsed := time.Since(start)

	front := f
	ev := model.Event{Kind: model.EventProbe, Front: &front, URL: f.Apply(s.config.ProbeURL), Err: err}
	if err != nil {
		logger.Infof("front: %s failed: %s", f.Name, err.Error())
		ev.Message = fmt.Sprintf("%s unreachable", f.Name)
	} else {
		logger.Infof("front: %s ok in %s", f.Name, elapsed.Round(time.Millisecond))
		ev.Message = fmt.Sprintf("%s reachable", f.Name)
	}
	s.sess.Emit(ctx, ev)
	return err
}

func (s *Selector) commit(ctx context.Context, f *model.Front) (*model.Front, error) {
	if err := s.sess.SetFront(f); err != nil {
		return nil, err
	}
	s.sess.Logger().Infof("front: using %s", f.String())
	s.sess.Emit(ctx, model.Event{
		Kind:    model.EventFrontSelected,
		Front:   f,
		Message: fmt.Sprintf("using %s", f.String()),
	})
	return f, nil
}

// Use records f as the active front without probing. A nil f selects
// direct access.
func (s *Selector) Use(ctx context.Context, f *model.Front) (*model.Front, error) {
	return s.commit(ctx, f)
}
