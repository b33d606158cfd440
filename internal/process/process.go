package process

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"strings"
	"sync"
	"syscall"
	"time"
)

// ErrEmptyCommand is returned when the command line has no program.
var ErrEmptyCommand = errors.New("empty command")

// ExitError reports a helper that exited with a non-zero status.
type ExitError struct {
	Command string
	Code    int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("%s exited with code %d", e.Command, e.Code)
}

// Runner runs helper commands to completion.
type Runner struct {
	logger          *slog.Logger
	gracefulTimeout time.Duration
	killTimeout     time.Duration
}

// Option configures a Runner.
type Option func(*Runner)

// WithGracefulTimeout sets how long a helper gets to exit after SIGINT.
func WithGracefulTimeout(d time.Duration) Option {
	return func(r *Runner) {
		r.gracefulTimeout = d
	}
}

// WithKillTimeout sets how long to wait for exit after SIGKILL.
func WithKillTimeout(d time.Duration) Option {
	return func(r *Runner) {
		r.killTimeout = d
	}
}

// NewRunner creates a Runner that logs helper output to logger.
func NewRunner(logger *slog.Logger, opts ...Option) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Runner{
		logger:          logger,
		gracefulTimeout: 5 * time.Second,
		killTimeout:     5 * time.Second,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run parses command, runs it and waits for it to exit. A non-zero exit
// returns *ExitError. When ctx ends first the helper's process group is
// stopped and ctx.Err() is returned.
func (r *Runner) Run(ctx context.Context, command string) error {
	args, err := ParseCommand(command)
	if err != nil {
		return err
	}
	if len(args) == 0 {
		return ErrEmptyCommand
	}
	name := args[0]

	cmd := exec.Command(name, args[1:]...)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start %s: %w", name, err)
	}
	pid := cmd.Process.Pid
	r.logger.Debug("Helper started", "command", name, "pid", pid)

	var streams sync.WaitGroup
	streams.Add(2)
	go func() {
		defer streams.Done()
		r.stream(stdout, "stdout", slog.LevelDebug)
	}()
	go func() {
		defer streams.Done()
		r.stream(stderr, "stderr", slog.LevelWarn)
	}()

	// Wait may only run once both pipes are drained.
	done := make(chan error, 1)
	go func() {
		streams.Wait()
		done <- cmd.Wait()
	}()

	select {
	case err := <-done:
		return exitError(name, err)
	case <-ctx.Done():
	}

	r.logger.Info("Stopping helper", "command", name, "pid", pid)
	r.signalGroup(pid, syscall.SIGINT)
	select {
	case <-done:
		return ctx.Err()
	case <-time.After(r.gracefulTimeout):
	}

	r.logger.Warn("Helper ignored SIGINT, killing", "command", name, "pid", pid, "timeout", r.gracefulTimeout)
	r.signalGroup(pid, syscall.SIGKILL)
	select {
	case <-done:
	case <-time.After(r.killTimeout):
		r.logger.Error("Helper did not exit after SIGKILL", "command", name, "pid", pid)
	}
	return ctx.Err()
}

func (r *Runner) signalGroup(pid int, sig syscall.Signal) {
	if err := syscall.Kill(-pid, sig); err != nil && !errors.Is(err, syscall.ESRCH) {
		r.logger.Warn("Failed to signal helper", "pid", pid, "signal", sig.String(), "error", err)
	}
}

func (r *Runner) stream(reader io.Reader, source string, level slog.Level) {
	scanner := bufio.NewScanner(reader)
	for scanner.Scan() {
		r.logger.Log(context.Background(), level, scanner.Text(), "source", source)
	}
	if err := scanner.Err(); err != nil {
		r.logger.Warn("Error reading helper output", "source", source, "error", err)
	}
}

func exitError(name string, err error) error {
	if err == nil {
		return nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return &ExitError{Command: name, Code: exitErr.ExitCode()}
	}
	return fmt.Errorf("wait %s: %w", name, err)
}

// Resolve parses command and checks that its executable can be found,
// returning the arguments with the executable's resolved path first.
func Resolve(command string) ([]string, error) {
	args, err := ParseCommand(command)
	if err != nil {
		return nil, err
	}
	if len(args) == 0 {
		return nil, ErrEmptyCommand
	}
	path, err := exec.LookPath(args[0])
	if err != nil {
		return nil, err
	}
	args[0] = path
	return args, nil
}

// ParseCommand splits a command line into arguments. Single and double
// quotes group words and a backslash escapes the next character.
func ParseCommand(command string) ([]string, error) {
	var (
		args    []string
		current strings.Builder
		quote   rune
		inArg   bool
		escaped bool
	)

	for _, c := range strings.TrimSpace(command) {
		switch {
		case escaped:
			current.WriteRune(c)
			escaped = false
		case c == '\\':
			escaped = true
			inArg = true
		case quote != 0:
			if c == quote {
				quote = 0
			} else {
				current.WriteRune(c)
			}
		case c == '"' || c == '\'':
			quote = c
			inArg = true
		case c == ' ' || c == '\t':
			if inArg {
				args = append(args, current.String())
				current.Reset()
				inArg = false
			}
		default:
			current.WriteRune(c)
			inArg = true
		}
	}

	if quote != 0 {
		return nil, errors.New("unclosed quote in command")
	}
	if inArg {
		args = append(args, current.String())
	}
	return args, nil
}
