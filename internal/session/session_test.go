package session

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/ZebulonRouseFrantzich/dnscryptctl/internal/model"
)

func TestNewDefaults(t *testing.T) {
	s := New(Config{})
	if s.ID() == "" {
		t.Error("expected a session ID")
	}
	if s.Logger() != model.DiscardLogger {
		t.Error("expected DiscardLogger by default")
	}
	if s.Front() != nil {
		t.Error("expected no front by default")
	}
	if other := New(Config{}); other.ID() == s.ID() {
		t.Error("expected distinct session IDs")
	}
}

func TestSetFrontOnce(t *testing.T) {
	s := New(Config{})
	front := &model.Front{Name: "gh", Prefix: "https://gh-proxy.com/"}

	if err := s.SetFront(front); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := s.SetFront(nil); !errors.Is(err, ErrFrontAlreadySet) {
		t.Errorf("expected ErrFrontAlreadySet, got %v", err)
	}
	if got := s.URL("https://x/y"); got != "https://gh-proxy.com/https://x/y" {
		t.Errorf("URL() = %q", got)
	}
}

func TestGetSetsUserAgent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("User-Agent") != "test-agent" {
			t.Errorf("unexpected User-Agent: %s", r.Header.Get("User-Agent"))
		}
		w.WriteHeader(http.StatusTeapot)
	}))
	defer server.Close()

	s := New(Config{UserAgent: "test-agent"})
	resp, cancel, err := s.Get(context.Background(), server.URL, 5*time.Second)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer cancel()
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusTeapot {
		t.Errorf("status = %d", resp.StatusCode)
	}
}

func TestGetTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer server.Close()

	s := New(Config{})
	_, _, err := s.Get(context.Background(), server.URL, 20*time.Millisecond)
	if err == nil {
		t.Fatal("expected timeout error")
	}
}

// trickle writes n bytes, one every interval.
func trickle(n int, interval time.Duration) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", strconv.Itoa(n))
		w.WriteHeader(http.StatusOK)
		for i := 0; i < n; i++ {
			_, _ = w.Write([]byte("x"))
			w.(http.Flusher).Flush()
			select {
			case <-r.Context().Done():
				return
			case <-time.After(interval):
			}
		}
	}
}

func TestStreamSlowBody(t *testing.T) {
	server := httptest.NewServer(trickle(20, 50*time.Millisecond))
	defer server.Close()

	s := New(Config{})
	resp, cancel, err := s.Stream(context.Background(), server.URL, 500*time.Millisecond)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer cancel()
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	if len(body) != 20 {
		t.Errorf("read %d bytes, want 20", len(body))
	}
}

func TestStreamStalled(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{
			name: "headers",
			handler: func(w http.ResponseWriter, r *http.Request) {
				select {
				case <-r.Context().Done():
				case <-time.After(2 * time.Second):
				}
			},
		},
		{
			name:    "body",
			handler: trickle(5, 2*time.Second),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(tt.handler)
			defer server.Close()

			s := New(Config{})
			resp, cancel, err := s.Stream(context.Background(), server.URL, 100*time.Millisecond)
			if err == nil {
				defer cancel()
				defer resp.Body.Close()
				_, err = io.ReadAll(resp.Body)
			}
			if !errors.Is(err, ErrStalled) {
				t.Errorf("error = %v, want ErrStalled", err)
			}
		})
	}
}

func TestStreamParentCancelled(t *testing.T) {
	server := httptest.NewServer(trickle(5, time.Second))
	defer server.Close()

	ctx, cancelParent := context.WithCancel(context.Background())
	s := New(Config{})
	resp, cancel, err := s.Stream(ctx, server.URL, 5*time.Second)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer cancel()
	defer resp.Body.Close()

	cancelParent()
	_, err = io.ReadAll(resp.Body)
	if err == nil || errors.Is(err, ErrStalled) {
		t.Errorf("error = %v, want cancellation", err)
	}
}

func TestEmit(t *testing.T) {
	events := make(chan model.Event, 1)
	s := New(Config{Events: events})

	s.Emit(context.Background(), model.Event{Kind: model.EventProbe, Message: "hi"})

	ev := <-events
	if ev.SessionID != s.ID() {
		t.Errorf("SessionID = %q, want %q", ev.SessionID, s.ID())
	}
	if ev.Time.IsZero() {
		t.Error("expected timestamp")
	}

	// A full sink must not block once the context is done.
	events <- model.Event{}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s.Emit(ctx, model.Event{Kind: model.EventDone})
}
