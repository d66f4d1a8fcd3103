// Package process supervises an upstream server the gateway launches
// itself. The supervisor starts the command, polls a health URL until
// the upstream answers, and stops it gracefully on shutdown
// (SIGTERM first, SIGKILL after the grace period).
package process

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/exec"
	"syscall"
	"time"
)

// Config holds the supervised process settings.
type Config struct {
	Command string
	Args    []string

	// HealthURL is polled with GET until it answers with any status
	// below 500.
	HealthURL string

	// StartupTimeout bounds the health polling. Default: 60s.
	StartupTimeout time.Duration

	// StopGracePeriod is how long to wait after SIGTERM before SIGKILL.
	// Default: 10s.
	StopGracePeriod time.Duration

	Logger *slog.Logger
}

// Supervisor manages one child process.
type Supervisor struct {
	cfg    Config
	cmd    *exec.Cmd
	exited chan error
	logger *slog.Logger
}

// New creates a Supervisor. The process is not started yet.
func New(cfg Config) (*Supervisor, error) {
	if cfg.Command == "" {
		return nil, fmt.Errorf("process: command must not be empty")
	}
	if cfg.StartupTimeout <= 0 {
		cfg.StartupTimeout = 60 * time.Second
	}
	if cfg.StopGracePeriod <= 0 {
		cfg.StopGracePeriod = 10 * time.Second
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Supervisor{cfg: cfg, logger: logger}, nil
}

// Start launches the process and blocks until the health URL answers or
// the startup timeout expires. On timeout the process is stopped again.
func (s *Supervisor) Start(ctx context.Context) error {
	cmd := exec.Command(s.cfg.Command, s.cfg.Args...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	// Own process group so a signal hits the child and its children.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("starting %s: %w", s.cfg.Command, err)
	}
	s.cmd = cmd
	s.exited = make(chan error, 1)
	go func() {
		s.exited <- cmd.Wait()
		// Closing lets every waiter observe the exit, not just the first.
		close(s.exited)
	}()

	s.logger.Info("upstream process started",
		slog.String("command", s.cfg.Command),
		slog.Int("pid", cmd.Process.Pid))

	if s.cfg.HealthURL == "" {
		return nil
	}
	if err := s.waitHealthy(ctx); err != nil {
		s.Stop()
		return err
	}
	return nil
}

// waitHealthy polls the health URL until it responds or the deadline hits.
func (s *Supervisor) waitHealthy(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.StartupTimeout)
	defer cancel()

	client := &http.Client{Timeout: 2 * time.Second}
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case err := <-s.exited:
			return fmt.Errorf("upstream process exited during startup: %v", err)
		case <-ctx.Done():
			return fmt.Errorf("upstream not healthy after %s: %w", s.cfg.StartupTimeout, ctx.Err())
		case <-ticker.C:
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.cfg.HealthURL, nil)
			if err != nil {
				return err
			}
			resp, err := client.Do(req)
			if err != nil {
				continue
			}
			resp.Body.Close()
			if resp.StatusCode < 500 {
				s.logger.Info("upstream healthy", slog.String("url", s.cfg.HealthURL))
				return nil
			}
		}
	}
}

// Stop terminates the process: SIGTERM to the process group, then
// SIGKILL after the grace period. Safe to call when never started.
func (s *Supervisor) Stop() {
	if s.cmd == nil || s.cmd.Process == nil {
		return
	}

	pid := s.cmd.Process.Pid
	s.logger.Info("stopping upstream process", slog.Int("pid", pid))

	// Negative pid signals the whole group.
	_ = syscall.Kill(-pid, syscall.SIGTERM)

	select {
	case <-s.exited:
	case <-time.After(s.cfg.StopGracePeriod):
		s.logger.Warn("upstream did not exit, killing", slog.Int("pid", pid))
		_ = syscall.Kill(-pid, syscall.SIGKILL)
		<-s.exited
	}
	s.cmd = nil
}
