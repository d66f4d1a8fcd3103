package process

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNewRequiresCommand(t *testing.T) {
	_, err := New(Config{})
	if err == nil {
		t.Fatal("expected error for empty command")
	}
}

func TestNewDefaults(t *testing.T) {
	s, err := New(Config{Command: "sleep"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if s.cfg.StartupTimeout != 60*time.Second {
		t.Errorf("StartupTimeout = %v, want 60s", s.cfg.StartupTimeout)
	}
	if s.cfg.StopGracePeriod != 10*time.Second {
		t.Errorf("StopGracePeriod = %v, want 10s", s.cfg.StopGracePeriod)
	}
	if s.logger == nil {
		t.Error("logger should default to slog.Default")
	}
}

func TestStartBecomesHealthy(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	s, err := New(Config{
		Command:         "sleep",
		Args:            []string{"30"},
		HealthURL:       srv.URL,
		StartupTimeout:  5 * time.Second,
		StopGracePeriod: 2 * time.Second,
		Logger:          discardLogger(),
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	s.Stop()
}

func TestStartWithoutHealthURL(t *testing.T) {
	s, err := New(Config{
		Command:         "sleep",
		Args:            []string{"30"},
		StopGracePeriod: 2 * time.Second,
		Logger:          discardLogger(),
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	// Without a health URL Start returns as soon as the process is running.
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	s.Stop()
}

func TestStartHealthTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	s, err := New(Config{
		Command:         "sleep",
		Args:            []string{"30"},
		HealthURL:       srv.URL,
		StartupTimeout:  1200 * time.Millisecond,
		StopGracePeriod: 2 * time.Second,
		Logger:          discardLogger(),
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	err = s.Start(context.Background())
	if err == nil {
		s.Stop()
		t.Fatal("expected timeout error when upstream never turns healthy")
	}
	if !strings.Contains(err.Error(), "not healthy") {
		t.Errorf("error = %q, want health timeout", err)
	}
}

func TestStartProcessExitsDuringStartup(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	s, err := New(Config{
		Command:         "true",
		HealthURL:       srv.URL,
		StartupTimeout:  5 * time.Second,
		StopGracePeriod: time.Second,
		Logger:          discardLogger(),
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	err = s.Start(context.Background())
	if err == nil {
		s.Stop()
		t.Fatal("expected error when process exits before becoming healthy")
	}
	if !strings.Contains(err.Error(), "exited during startup") {
		t.Errorf("error = %q, want startup exit error", err)
	}
}

func TestStartUnknownCommand(t *testing.T) {
	s, err := New(Config{
		Command: "/nonexistent/binary",
		Logger:  discardLogger(),
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := s.Start(context.Background()); err == nil {
		t.Fatal("expected error for unknown command")
	}
}

func TestStopWithoutStart(t *testing.T) {
	s, err := New(Config{Command: "sleep", Logger: discardLogger()})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	// Must not panic.
	s.Stop()
	s.Stop()
}
