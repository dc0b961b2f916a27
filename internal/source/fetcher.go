// Package source downloads the public resolver list from an ordered set of
// mirrors, routing each request through the session's active front.
package source

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/tailscale/hujson"

	"github.com/ZebulonRouseFrantzich/dnscryptctl/internal/fallback"
	"github.com/ZebulonRouseFrantzich/dnscryptctl/internal/model"
	"github.com/ZebulonRouseFrantzich/dnscryptctl/internal/session"
)

// DefaultTimeout bounds a single mirror request.
const DefaultTimeout = 10 * time.Second

// DefaultListField is the JSON field holding the resolver entries.
const DefaultListField = "resolvers"

// maxBodySize caps the resolver list download.
const maxBodySize = 16 << 20

var (
	// ErrNoUsableSource indicates that no mirror produced a non-empty list.
	ErrNoUsableSource = errors.New("no usable resolver source")

	// ErrEmptyList indicates a mirror answered with no usable entries.
	ErrEmptyList = errors.New("resolver list is empty")

	// ErrHTTPStatus indicates a mirror answered with a non-200 status.
	ErrHTTPStatus = errors.New("unexpected HTTP status")
)

// DefaultFallback returns the built-in server list used when every mirror
// fails.
func DefaultFallback() []model.ServerEntry {
	return []model.ServerEntry{
		{Name: "cloudflare", Address: "one.one.one.one:53"},
		{Name: "dnscrypt.eu-nl", Address: "dnscrypt-eu.privacydns.org:443"},
		{Name: "quad9", Address: "dns.quad9.net:443"},
	}
}

// Config configures a Fetcher.
type Config struct {
	// ListField is the OPTIONAL JSON field to extract. Defaults to
	// DefaultListField.
	ListField string

	// Timeout is the OPTIONAL per-request timeout. Defaults to
	// DefaultTimeout.
	Timeout time.Duration

	// Fallback is the OPTIONAL list returned by FetchWithFallback when every
	// mirror fails. Defaults to DefaultFallback().
	Fallback []model.ServerEntry
}

// Fetcher downloads resolver lists.
type Fetcher struct {
	sess   *session.Session
	config Config
}

// NewFetcher creates a Fetcher bound to sess.
func NewFetcher(sess *session.Session, config Config) *Fetcher {
	if config.ListField == "" {
		config.ListField = DefaultListField
	}
	if config.Timeout <= 0 {
		config.Timeout = DefaultTimeout
	}
	if config.Fallback == nil {
		config.Fallback = DefaultFallback()
	}
	return &Fetcher{sess: sess, config: config}
}

// Fetch tries each URL in order and returns the first non-empty list.
// Mirrors after the first success are not contacted. When every mirror
// fails Fetch returns an empty slice and an error wrapping
// ErrNoUsableSource.
func (f *Fetcher) Fetch(ctx context.Context, urls []string) ([]model.ServerEntry, error) {
	logger := f.sess.Logger()

	entries, idx, err := fallback.First(ctx, urls, func(ctx context.Context, idx int, url string) ([]model.ServerEntry, error) {
		entries, err := f.fetchOne(ctx, url)
		if err != nil {
			logger.Warnf("source: %s: %s", url, err.Error())
			return nil, err
		}
		return entries, nil
	})
	if err != nil {
		return []model.ServerEntry{}, fmt.Errorf("%w: %w", ErrNoUsableSource, err)
	}

	logger.Infof("source: %d servers from %s", len(entries), urls[idx])
	f.sess.Emit(ctx, model.Event{
		Kind:    model.EventSourceFetched,
		URL:     urls[idx],
		Message: fmt.Sprintf("%d servers", len(entries)),
	})
	return entries, nil
}

// FetchWithFallback behaves like Fetch but substitutes the configured
// fallback list when every mirror fails. The boolean reports whether the
// fallback was used. Only context cancellation produces an error.
func (f *Fetcher) FetchWithFallback(ctx context.Context, urls []string) ([]model.ServerEntry, bool, error) {
	entries, err := f.Fetch(ctx, urls)
	if err == nil {
		return entries, false, nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, false, ctxErr
	}

	f.sess.Logger().Warnf("source: all mirrors failed, using %d built-in servers", len(f.config.Fallback))
	f.sess.Emit(ctx, model.Event{
		Kind:    model.EventSourceFallback,
		Message: "all mirrors failed, using built-in servers",
		Err:     err,
	})
	return append([]model.ServerEntry(nil), f.config.Fallback...), true, nil
}

func (f *Fetcher) fetchOne(ctx context.Context, url string) ([]model.ServerEntry, error) {
	target := f.sess.URL(url)
	f.sess.Logger().Debugf("source: GET %s", target)

	resp, cancel, err := f.sess.Get(ctx, target, f.config.Timeout)
	if err != nil {
		return nil, err
	}
	defer cancel()
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: %s", ErrHTTPStatus, resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	return Decode(body, f.config.ListField)
}

// Decode extracts the server entries stored under field in a JSON document.
// Comments and trailing commas are accepted. Entries without a name are
// dropped and duplicate names keep their first occurrence.
func Decode(data []byte, field string) ([]model.ServerEntry, error) {
	std, err := hujson.Standardize(data)
	if err != nil {
		return nil, fmt.Errorf("decode resolver list: %w", err)
	}

	var doc map[string]json.RawMessage
	if err := json.Unmarshal(std, &doc); err != nil {
		return nil, fmt.Errorf("decode resolver list: %w", err)
	}
	raw, ok := doc[field]
	if !ok {
		return nil, fmt.Errorf("%w: no %q field", ErrEmptyList, field)
	}

	var entries []model.ServerEntry
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, fmt.Errorf("decode %q: %w", field, err)
	}

	seen := make(map[string]bool, len(entries))
	out := make([]model.ServerEntry, 0, len(entries))
	for _, e := range entries {
		if e.Name == "" || seen[e.Name] {
			continue
		}
		seen[e.Name] = true
		out = append(out, e)
	}
	if len(out) == 0 {
		return nil, ErrEmptyList
	}
	return out, nil
}
