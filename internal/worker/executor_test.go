package worker

import (
	"context"
	"testing"

	"github.com/hochfrequenz/taskcluster/internal/protocol"
)

func TestExecutorRunSuccess(t *testing.T) {
	e := NewExecutor(t.TempDir())
	job := &protocol.Job{JobID: "1", ScriptPath: "/bin/echo", Args: []string{"hi"}}

	result := e.Run(context.Background(), job)
	if !result.Success {
		t.Fatalf("expected success, got %+v", result)
	}
	if result.Output == nil || *result.Output != "hi\n" {
		t.Fatalf("output = %v, want %q", result.Output, "hi\n")
	}
	if result.Error != nil {
		t.Fatalf("expected no error, got %v", *result.Error)
	}
}

func TestExecutorRunNonZeroExit(t *testing.T) {
	e := NewExecutor(t.TempDir())
	job := &protocol.Job{JobID: "2", ScriptPath: "/bin/sh", Args: []string{"-c", "echo oops 1>&2; exit 2"}}

	result := e.Run(context.Background(), job)
	if result.Success {
		t.Fatal("expected failure for non-zero exit")
	}
	if result.Error == nil || *result.Error == "" {
		t.Fatal("expected stderr captured as error")
	}
}

func TestExecutorRunSpawnFailure(t *testing.T) {
	e := NewExecutor(t.TempDir())
	job := &protocol.Job{JobID: "3", ScriptPath: "/no/such/binary"}

	result := e.Run(context.Background(), job)
	if result.Success {
		t.Fatal("expected failure for missing binary")
	}
	if result.Error == nil {
		t.Fatal("expected error message for spawn failure")
	}
}

func TestExecutorRunScriptContentMaterialized(t *testing.T) {
	e := NewExecutor(t.TempDir())
	job := &protocol.Job{JobID: "4", ScriptContent: "#!/bin/sh\necho from-content\n"}

	result := e.Run(context.Background(), job)
	if !result.Success {
		t.Fatalf("expected success, got %+v", result)
	}
	if result.Output == nil || *result.Output != "from-content\n" {
		t.Fatalf("output = %v, want %q", result.Output, "from-content\n")
	}
}

func TestExecutorRunTimeout(t *testing.T) {
	e := NewExecutor(t.TempDir())
	job := &protocol.Job{JobID: "5", ScriptPath: "/bin/sleep", Args: []string{"120"}}

	// Run with an already-tight parent context to avoid waiting out the
	// full 60s JobTimeout in this test.
	ctx, cancel := context.WithTimeout(context.Background(), 0)
	defer cancel()

	result := e.Run(ctx, job)
	if result.Success {
		t.Fatal("expected timeout failure")
	}
	if result.Error == nil || *result.Error != "timeout" {
		t.Fatalf("error = %v, want \"timeout\"", result.Error)
	}
}
