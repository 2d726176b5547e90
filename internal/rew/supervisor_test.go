package rew

import (
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"
)

func TestFindExecutablePrefersConfiguredPath(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "roomeqwizard")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"), 0o755); err != nil {
		t.Fatal(err)
	}

	got, err := FindExecutable(path, testLogger())
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if got != path {
		t.Fatalf("got %q want %q", got, path)
	}
}

func TestFindExecutableMissingConfiguredFallsThrough(t *testing.T) {
	if runtime.GOOS != "linux" {
		t.Skip("platform-specific fallthrough check")
	}
	_, err := FindExecutable(filepath.Join(t.TempDir(), "nope"), testLogger())
	if !errors.Is(err, ErrUnsupportedPlatform) {
		t.Fatalf("expected ErrUnsupportedPlatform, got %v", err)
	}
}

func TestTerminateWithoutHandleIsNoop(t *testing.T) {
	s := NewSupervisor("", testLogger())
	done := make(chan struct{})
	go func() {
		s.Terminate(time.Second)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("terminate without handle blocked")
	}
}

func TestLaunchFailsWithoutExecutable(t *testing.T) {
	if runtime.GOOS != "linux" {
		t.Skip("relies on linux having no conventional install path")
	}
	s := NewSupervisor("", testLogger())
	if err := s.Launch(); !errors.Is(err, ErrUnsupportedPlatform) {
		t.Fatalf("expected ErrUnsupportedPlatform, got %v", err)
	}
	if s.Running() {
		t.Fatal("failed launch must not report running")
	}
}

func TestLaunchAndTerminate(t *testing.T) {
	if runtime.GOOS == "windows" || runtime.GOOS == "darwin" {
		t.Skip("direct-exec launch path")
	}
	dir := t.TempDir()
	path := filepath.Join(dir, "fakerew")
	if err := os.WriteFile(path, []byte("#!/bin/sh\nexec sleep 60\n"), 0o755); err != nil {
		t.Fatal(err)
	}

	s := NewSupervisor(path, testLogger())
	if err := s.Launch(); err != nil {
		t.Fatalf("launch: %v", err)
	}
	if !s.Running() {
		t.Fatal("expected running after launch")
	}
	// Launching twice reuses the existing handle.
	if err := s.Launch(); err != nil {
		t.Fatalf("second launch: %v", err)
	}

	start := time.Now()
	s.Terminate(2 * time.Second)
	if elapsed := time.Since(start); elapsed > 3*time.Second {
		t.Fatalf("terminate took too long: %v", elapsed)
	}
	if s.Running() {
		t.Fatal("expected stopped after terminate")
	}
}
