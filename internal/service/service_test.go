package service

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

type recordingRunner struct {
	argv [][]string
	out  []byte
	err  error
	wait bool
}

func (r *recordingRunner) Run(ctx context.Context, argv []string) ([]byte, error) {
	r.argv = append(r.argv, argv)
	if r.wait {
		<-ctx.Done()
		return r.out, ctx.Err()
	}
	return r.out, r.err
}

func TestParseVerb(t *testing.T) {
	for _, v := range Verbs {
		got, err := ParseVerb(string(v))
		if err != nil || got != v {
			t.Errorf("ParseVerb(%q) = %q, %v", v, got, err)
		}
	}
	if _, err := ParseVerb("reload"); !errors.Is(err, ErrUnknownVerb) {
		t.Errorf("ParseVerb(reload) error = %v, want ErrUnknownVerb", err)
	}
}

func TestController_Argv(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		verb    Verb
		want    []string
		wantErr error
	}{
		{
			name:   "systemctl template",
			config: Config{Command: "sudo systemctl {verb} dnscrypt-proxy"},
			verb:   VerbRestart,
			want:   []string{"sudo", "systemctl", "restart", "dnscrypt-proxy"},
		},
		{
			name:   "quoted arguments",
			config: Config{Command: `"/opt/dns proxy/dnscrypt-proxy" -service {verb}`},
			verb:   VerbStop,
			want:   []string{"/opt/dns proxy/dnscrypt-proxy", "-service", "stop"},
		},
		{
			name:   "placeholder inside argument",
			config: Config{Command: "launchctl kickstart --action={verb}"},
			verb:   VerbStart,
			want:   []string{"launchctl", "kickstart", "--action=start"},
		},
		{
			name:   "binary service mode",
			config: Config{Binary: `C:\dnscrypt-proxy\win64\dnscrypt-proxy.exe`},
			verb:   VerbStart,
			want:   []string{`C:\dnscrypt-proxy\win64\dnscrypt-proxy.exe`, "-service", "start"},
		},
		{
			name:    "nothing configured",
			config:  Config{},
			verb:    VerbStart,
			wantErr: ErrNoCommand,
		},
		{
			name:    "blank template without binary",
			config:  Config{Command: "   "},
			verb:    VerbStart,
			wantErr: ErrNoCommand,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NewController(tt.config).Argv(tt.verb)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("Argv() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Argv() error = %v", err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Argv() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestController_Run(t *testing.T) {
	runner := &recordingRunner{out: []byte("ok\n")}
	c := NewController(Config{Command: "systemctl {verb} dnscrypt-proxy", Runner: runner})

	out, err := c.Run(context.Background(), VerbRestart)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if out != "ok\n" {
		t.Errorf("output = %q", out)
	}
	if diff := cmp.Diff([][]string{{"systemctl", "restart", "dnscrypt-proxy"}}, runner.argv); diff != "" {
		t.Errorf("argv mismatch (-want +got):\n%s", diff)
	}
}

func TestController_RunFailure(t *testing.T) {
	cause := errors.New("exit status 5")
	runner := &recordingRunner{out: []byte("Unit dnscrypt-proxy.service not found.\n"), err: cause}
	c := NewController(Config{Command: "systemctl {verb} dnscrypt-proxy", Runner: runner})

	out, err := c.Run(context.Background(), VerbStart)
	var cmdErr *CommandError
	if !errors.As(err, &cmdErr) {
		t.Fatalf("Run() error = %v, want *CommandError", err)
	}
	if !errors.Is(err, cause) {
		t.Error("CommandError does not wrap the cause")
	}
	if !strings.Contains(err.Error(), "Unit dnscrypt-proxy.service not found.") {
		t.Errorf("error lacks command output: %v", err)
	}
	if !strings.HasPrefix(err.Error(), "systemctl start dnscrypt-proxy: ") {
		t.Errorf("error lacks command line: %v", err)
	}
	if out != string(runner.out) {
		t.Errorf("output = %q", out)
	}
}

func TestController_RunTimeout(t *testing.T) {
	runner := &recordingRunner{wait: true}
	c := NewController(Config{Command: "systemctl {verb} x", Runner: runner, Timeout: 20 * time.Millisecond})

	_, err := c.Run(context.Background(), VerbStop)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Run() error = %v, want DeadlineExceeded", err)
	}
}

func TestExecRunner(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("uses a POSIX shell script")
	}
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}

	script := filepath.Join(t.TempDir(), "fake-daemon")
	body := "#!/bin/sh\necho \"service $2\"\necho oops >&2\n[ \"$2\" = start ]\n"
	if err := os.WriteFile(script, []byte(body), 0755); err != nil {
		t.Fatal(err)
	}
	c := NewController(Config{Binary: script})

	out, err := c.Run(context.Background(), VerbStart)
	if err != nil {
		t.Fatalf("Run(start) error = %v", err)
	}
	if !strings.Contains(out, "service start") || !strings.Contains(out, "oops") {
		t.Errorf("combined output = %q", out)
	}

	_, err = c.Run(context.Background(), VerbStop)
	var cmdErr *CommandError
	if !errors.As(err, &cmdErr) {
		t.Fatalf("Run(stop) error = %v, want *CommandError", err)
	}
	var exitErr *exec.ExitError
	if !errors.As(err, &exitErr) {
		t.Errorf("Run(stop) error does not wrap *exec.ExitError: %v", err)
	}
}
