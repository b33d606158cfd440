package awss

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/smazurov/smartlight/internal/events"
	"github.com/smazurov/smartlight/internal/process"
)

const defaultCommandTimeout = 30 * time.Second

// CommandProvisioner starts provisioning by running an external helper,
// typically a script that brings up the soft-AP and the pairing listener.
// Start returns once the helper is launched; the helper runs in the
// background until it exits or its timeout ends.
type CommandProvisioner struct {
	command string
	timeout time.Duration
	runner  *process.Runner
	bus     events.Publisher
	logger  *slog.Logger
	onExit  func(error)

	helpers sync.WaitGroup
}

// ProvisionerOption configures a CommandProvisioner.
type ProvisionerOption func(*CommandProvisioner)

// WithExitHandler receives the result of every helper run.
func WithExitHandler(fn func(error)) ProvisionerOption {
	return func(p *CommandProvisioner) {
		p.onExit = fn
	}
}

// NewCommandProvisioner creates a provisioner for command. An empty command
// only reports the lifecycle events.
func NewCommandProvisioner(command string, timeout time.Duration, bus events.Publisher, logger *slog.Logger, opts ...ProvisionerOption) *CommandProvisioner {
	if logger == nil {
		logger = slog.Default()
	}
	if timeout <= 0 {
		timeout = defaultCommandTimeout
	}
	p := &CommandProvisioner{
		command: command,
		timeout: timeout,
		runner:  process.NewRunner(logger),
		bus:     bus,
		logger:  logger,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Start launches the helper. Only a command that cannot be parsed or whose
// executable is missing is reported here; the helper's exit is reported to
// the log, the exit handler and, on success, as AWSSEnable.
func (p *CommandProvisioner) Start(ctx context.Context) error {
	p.publish(events.AWSSStart)

	if strings.TrimSpace(p.command) == "" {
		p.logger.Info("No provisioning command configured")
		p.publish(events.AWSSEnable)
		return nil
	}

	if _, err := process.Resolve(p.command); err != nil {
		return fmt.Errorf("invalid provisioning command: %w", err)
	}

	p.helpers.Add(1)
	go func() {
		defer p.helpers.Done()
		p.run(ctx)
	}()
	return nil
}

// Wait blocks until every launched helper has exited.
func (p *CommandProvisioner) Wait() {
	p.helpers.Wait()
}

func (p *CommandProvisioner) run(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	err := p.runner.Run(ctx, p.command)
	if err == nil {
		p.logger.Info("Provisioning enabled")
		p.publish(events.AWSSEnable)
	} else {
		var exitErr *process.ExitError
		if errors.As(err, &exitErr) {
			err = fmt.Errorf("provisioning command failed: %w", exitErr)
		} else {
			err = fmt.Errorf("provisioning command: %w", err)
		}
		p.logger.Warn("Provisioning helper failed", "error", newError(OpStart, err))
	}

	if p.onExit != nil {
		p.onExit(err)
	}
}

func (p *CommandProvisioner) publish(code events.LinkkitCode) {
	p.bus.Publish(events.LinkkitEvent{Code: code, Timestamp: events.Now()})
}
