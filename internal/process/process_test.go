package process

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"reflect"
	"strings"
	"testing"
	"time"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newTestRunner creates a Runner with short timeouts for testing.
func newTestRunner(logger *slog.Logger) *Runner {
	return NewRunner(logger,
		WithGracefulTimeout(100*time.Millisecond),
		WithKillTimeout(100*time.Millisecond))
}

// runAsync runs command in a goroutine and returns the result channel.
func runAsync(ctx context.Context, r *Runner, command string) <-chan error {
	done := make(chan error, 1)
	go func() {
		done <- r.Run(ctx, command)
	}()
	return done
}

func waitForResult(t *testing.T, done <-chan error, timeout time.Duration) error {
	t.Helper()
	select {
	case err := <-done:
		return err
	case <-time.After(timeout):
		t.Fatal("timeout waiting for helper to exit")
		return nil
	}
}

func TestRunSuccess(t *testing.T) {
	if err := newTestRunner(testLogger()).Run(context.Background(), "true"); err != nil {
		t.Fatalf("Run returned %v", err)
	}
}

func TestRunExitCode(t *testing.T) {
	err := newTestRunner(testLogger()).Run(context.Background(), `sh -c "exit 3"`)

	var exitErr *ExitError
	if !errors.As(err, &exitErr) {
		t.Fatalf("error = %v, want *ExitError", err)
	}
	if exitErr.Code != 3 || exitErr.Command != "sh" {
		t.Errorf("got %+v, want sh exited with 3", exitErr)
	}
}

func TestRunEmptyCommand(t *testing.T) {
	if err := newTestRunner(testLogger()).Run(context.Background(), "   "); !errors.Is(err, ErrEmptyCommand) {
		t.Errorf("error = %v, want ErrEmptyCommand", err)
	}
}

func TestRunMissingBinary(t *testing.T) {
	err := newTestRunner(testLogger()).Run(context.Background(), "/nonexistent/awss-helper")
	if err == nil {
		t.Fatal("expected an error for a missing binary")
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		t.Errorf("start failure reported as exit: %v", err)
	}
}

func TestResolve(t *testing.T) {
	args, err := Resolve(`sh -c "exit 0"`)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if len(args) != 3 || !strings.HasSuffix(args[0], "/sh") || args[2] != "exit 0" {
		t.Errorf("args = %q", args)
	}

	if _, err := Resolve("/nonexistent/awss-helper --start"); err == nil {
		t.Error("expected an error for a missing binary")
	}
	if _, err := Resolve("  "); !errors.Is(err, ErrEmptyCommand) {
		t.Errorf("error = %v, want ErrEmptyCommand", err)
	}
	if _, err := Resolve(`helper "unterminated`); err == nil {
		t.Error("expected an error for an unterminated quote")
	}
}

func TestRunStreamsOutput(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	err := newTestRunner(logger).Run(context.Background(), `sh -c "echo soft-ap up; echo pairing failed >&2"`)
	if err != nil {
		t.Fatalf("Run returned %v", err)
	}

	out := buf.String()
	if !strings.Contains(out, "soft-ap up") || !strings.Contains(out, "source=stdout") {
		t.Errorf("stdout line missing from log: %s", out)
	}
	if !strings.Contains(out, "pairing failed") || !strings.Contains(out, "level=WARN") {
		t.Errorf("stderr line not logged at warn: %s", out)
	}
}

func TestGracefulShutdown(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	r := newTestRunner(testLogger())
	r.gracefulTimeout = 500 * time.Millisecond

	done := runAsync(ctx, r, `sh -c "trap 'exit 0' INT TERM; while :; do sleep 0.1; done"`)
	time.Sleep(100 * time.Millisecond)
	cancel()

	if err := waitForResult(t, done, time.Second); !errors.Is(err, context.Canceled) {
		t.Errorf("error = %v, want context.Canceled", err)
	}
}

func TestForceKillOnTimeout(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	r := newTestRunner(testLogger())

	start := time.Now()
	done := runAsync(ctx, r, `sh -c "trap '' INT; sleep 10"`)
	time.Sleep(50 * time.Millisecond)
	cancel()

	if err := waitForResult(t, done, time.Second); !errors.Is(err, context.Canceled) {
		t.Errorf("error = %v, want context.Canceled", err)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("helper was not killed, took %v", elapsed)
	}
}

func TestRunDeadline(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err := newTestRunner(testLogger()).Run(ctx, "sleep 5")
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("error = %v, want context.DeadlineExceeded", err)
	}
}

func TestParseCommand(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    []string
		wantErr bool
	}{
		{"simple", "awss-helper start", []string{"awss-helper", "start"}, false},
		{"extra spaces", "  awss-helper   start  ", []string{"awss-helper", "start"}, false},
		{"double quotes", `helper --ssid "my home"`, []string{"helper", "--ssid", "my home"}, false},
		{"single quotes", `sh -c 'echo "hi"'`, []string{"sh", "-c", `echo "hi"`}, false},
		{"escaped space", `helper a\ b`, []string{"helper", "a b"}, false},
		{"empty quoted arg", `helper ""`, []string{"helper", ""}, false},
		{"empty", "", nil, false},
		{"unclosed", `helper "oops`, nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseCommand(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("error = %v, wantErr %v", err, tt.wantErr)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}
