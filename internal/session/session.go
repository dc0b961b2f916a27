// Package session holds the per-run state shared by the acquisition
// pipeline: the active front, the logger, the HTTP client and the event
// sink. Components receive a *Session explicitly instead of reading
// package-level globals.
package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ZebulonRouseFrantzich/dnscryptctl/internal/model"
)

// DefaultUserAgent is the User-Agent header sent with requests.
const DefaultUserAgent = "dnscryptctl/1.0"

// ErrFrontAlreadySet is returned by SetFront after the front was chosen.
var ErrFrontAlreadySet = errors.New("active front already selected")

// ErrStalled is returned when a streamed exchange makes no progress for
// the idle timeout.
var ErrStalled = errors.New("connection stalled")

// HTTPClient is the subset of *http.Client used by the pipeline.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Config configures a new Session.
type Config struct {
	// Logger is the OPTIONAL logger. Defaults to model.DiscardLogger.
	Logger model.Logger

	// Client is the OPTIONAL HTTP client. Defaults to a client with a
	// bounded redirect policy; per-call timeouts come from contexts.
	Client HTTPClient

	// UserAgent is the OPTIONAL User-Agent. Defaults to DefaultUserAgent.
	UserAgent string

	// Events is the OPTIONAL event sink. When set, the consumer must keep
	// draining it or Emit blocks until the emitting context is done.
	Events chan<- model.Event
}

// Session is the explicit context passed to every pipeline component.
type Session struct {
	id        string
	logger    model.Logger
	client    HTTPClient
	userAgent string
	events    chan<- model.Event

	mu       sync.Mutex
	front    *model.Front
	frontSet bool
}

// New creates a Session with a fresh identifier.
func New(config Config) *Session {
	client := config.Client
	if client == nil {
		client = newDefaultClient()
	}
	userAgent := config.UserAgent
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}
	return &Session{
		id:        uuid.New().String(),
		logger:    model.ValidLoggerOrDefault(config.Logger),
		client:    client,
		userAgent: userAgent,
		events:    config.Events,
	}
}

func newDefaultClient() *http.Client {
	return &http.Client{
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= 10 {
				return fmt.Errorf("too many redirects")
			}
			return nil
		},
	}
}

// ID returns the session identifier attached to every event.
func (s *Session) ID() string {
	return s.id
}

// Logger returns the session logger.
func (s *Session) Logger() model.Logger {
	return s.logger
}

// SetFront records the active front. It may be called once; a nil front
// records a direct (unproxied) session.
func (s *Session) SetFront(front *model.Front) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.frontSet {
		return ErrFrontAlreadySet
	}
	s.front = front
	s.frontSet = true
	return nil
}

// Front returns the active front, or nil when requests go direct.
func (s *Session) Front() *model.Front {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.front
}

// URL returns target routed through the active front.
func (s *Session) URL(target string) string {
	return s.Front().Apply(target)
}

// Get issues a GET for rawURL with the given timeout. The timeout covers the
// whole exchange, including reading the body, so callers must finish with
// the response before calling the returned cancel function.
func (s *Session) Get(ctx context.Context, rawURL string, timeout time.Duration) (*http.Response, context.CancelFunc, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		cancel()
		return nil, nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", s.userAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		cancel()
		return nil, nil, fmt.Errorf("execute request: %w", err)
	}
	return resp, cancel, nil
}

// Stream issues a GET for rawURL whose body may take any amount of time to
// arrive. The exchange fails with ErrStalled when connecting, receiving
// headers or any single body read goes idle for longer than idle. Callers
// close the body and then call the returned cancel function.
func (s *Session) Stream(ctx context.Context, rawURL string, idle time.Duration) (*http.Response, context.CancelFunc, error) {
	ctx, cancelCause := context.WithCancelCause(ctx)
	timer := time.AfterFunc(idle, func() { cancelCause(ErrStalled) })
	cancel := func() {
		timer.Stop()
		cancelCause(context.Canceled)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		cancel()
		return nil, nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", s.userAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		err = stallError(ctx, err, idle)
		cancel()
		return nil, nil, fmt.Errorf("execute request: %w", err)
	}

	timer.Reset(idle)
	resp.Body = &idleBody{ReadCloser: resp.Body, ctx: ctx, timer: timer, idle: idle}
	return resp, cancel, nil
}

// idleBody re-arms the stall timer whenever data arrives.
type idleBody struct {
	io.ReadCloser
	ctx   context.Context
	timer *time.Timer
	idle  time.Duration
}

func (b *idleBody) Read(p []byte) (int, error) {
	n, err := b.ReadCloser.Read(p)
	if n > 0 {
		b.timer.Reset(b.idle)
	}
	if err != nil && err != io.EOF {
		err = stallError(b.ctx, err, b.idle)
	}
	return n, err
}

func stallError(ctx context.Context, err error, idle time.Duration) error {
	if errors.Is(context.Cause(ctx), ErrStalled) {
		return fmt.Errorf("%w: no data for %s", ErrStalled, idle)
	}
	return err
}

// Emit sends ev to the event sink, if any. It stamps the time and session
// identifier. Emit gives up when ctx is done.
func (s *Session) Emit(ctx context.Context, ev model.Event) {
	if s.events == nil {
		return
	}
	if ev.Time.IsZero() {
		ev.Time = time.Now()
	}
	ev.SessionID = s.id
	select {
	case s.events <- ev:
	case <-ctx.Done():
	}
}
