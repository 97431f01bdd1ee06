// Package worker implements the worker half of the cluster: it
// registers with a coordinator, listens for dispatched jobs, runs them
// as subprocesses, and reports results back.
package worker

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hochfrequenz/taskcluster/internal/protocol"
)

// JobTimeout is the wall-clock budget for a single job's subprocess.
const JobTimeout = 60 * time.Second

// Executor runs one job at a time as a subprocess.
type Executor struct {
	TempDir string // defaults to os.TempDir() when empty
}

func NewExecutor(tempDir string) *Executor {
	return &Executor{TempDir: tempDir}
}

// Run executes job and always returns a JobResult: spawn failures,
// non-zero exits, and timeouts are all encoded into the result rather
// than returned as a Go error.
func (e *Executor) Run(ctx context.Context, job *protocol.Job) *protocol.JobResult {
	scriptPath := job.ScriptPath
	var cleanup func()

	if job.ScriptContent != "" {
		path, rm, err := e.materialize(job.JobID, job.ScriptContent)
		if err != nil {
			return failResult(job.JobID, fmt.Sprintf("materializing script: %v", err))
		}
		scriptPath = path
		cleanup = rm
	}
	if cleanup != nil {
		defer cleanup()
	}

	runCtx, cancel := context.WithTimeout(ctx, JobTimeout)
	defer cancel()

	args := append([]string{scriptPath}, job.Args...)
	cmd := exec.CommandContext(runCtx, args[0], args[1:]...)

	var stdout, stderr strings.Builder
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Start(); err != nil {
		if runCtx.Err() == context.DeadlineExceeded {
			return failResult(job.JobID, "timeout")
		}
		return failResult(job.JobID, err.Error())
	}

	err := cmd.Wait()
	if runCtx.Err() == context.DeadlineExceeded {
		return failResult(job.JobID, "timeout")
	}
	if err != nil {
		if _, ok := err.(*exec.ExitError); ok {
			return failResult(job.JobID, stderr.String())
		}
		return failResult(job.JobID, err.Error())
	}

	out := stdout.String()
	return &protocol.JobResult{JobID: job.JobID, Success: true, Output: &out}
}

func (e *Executor) materialize(jobID, content string) (path string, cleanup func(), err error) {
	dir := e.TempDir
	if dir == "" {
		dir = os.TempDir()
	}
	name := filepath.Join(dir, fmt.Sprintf("job-%s-%s", jobID, uuid.NewString()[:8]))
	if err := os.WriteFile(name, []byte(content), 0o755); err != nil {
		return "", nil, err
	}
	return name, func() { os.Remove(name) }, nil
}

func failResult(jobID, errMsg string) *protocol.JobResult {
	return &protocol.JobResult{JobID: jobID, Success: false, Error: &errMsg}
}
