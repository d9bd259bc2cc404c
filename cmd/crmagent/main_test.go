package main

import (
	"errors"
	"fmt"
	"testing"

	"crmagent/internal/runner"
)

func TestExitCode(t *testing.T) {
	cmdErr := &runner.ExternalCommandError{Command: []string{"affinity"}, ExitCode: 3}
	if got := exitCode(fmt.Errorf("wrapped: %w", cmdErr)); got != 3 {
		t.Fatalf("exit code = %d, want 3", got)
	}
	if got := exitCode(errors.New("plain")); got != 1 {
		t.Fatalf("exit code = %d, want 1", got)
	}
}

func TestBuildVersion(t *testing.T) {
	version, commit, date = "1.0.0", "abc123", "2026-01-02"
	t.Cleanup(func() { version, commit, date = "dev", "", "" })
	if got := buildVersion(); got != "1.0.0 (abc123) 2026-01-02" {
		t.Fatalf("version = %q", got)
	}
}
