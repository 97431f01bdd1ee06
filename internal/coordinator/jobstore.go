// Package coordinator implements the job queue, worker registry,
// dispatch loop, and liveness scan that make up the coordinator half of
// the cluster.
package coordinator

import (
	"sync"
	"time"

	"github.com/hochfrequenz/taskcluster/internal/protocol"
)

// JobStore holds every job the coordinator has ever accepted, keyed by
// jobId, plus the monotonic counter used to mint new ids. It is the
// coordinator's "state" map in the queue -> registry -> state ->
// results lock ordering.
type JobStore struct {
	mu      sync.Mutex
	jobs    map[string]*protocol.Job
	counter uint64
}

func NewJobStore() *JobStore {
	return &JobStore{jobs: make(map[string]*protocol.Job)}
}

// Create mints the next jobId and records a new PENDING job. ID
// assignment and insertion happen under the same lock so job ids are
// handed out in submission order with no gaps.
func (s *JobStore) Create(scriptPath, scriptContent string, args []string) *protocol.Job {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.counter++
	id := uitoa(s.counter)
	job := &protocol.Job{
		JobID:         id,
		ScriptPath:    scriptPath,
		ScriptContent: scriptContent,
		Args:          args,
		State:         protocol.Pending,
		SubmitTime:    time.Now(),
	}
	s.jobs[id] = job
	return cloneJob(job)
}

// Get returns a copy of the job, so callers never mutate shared state
// without going through one of the transition methods below.
func (s *JobStore) Get(id string) (*protocol.Job, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	if !ok {
		return nil, false
	}
	return cloneJob(j), true
}

// MarkRunning transitions a PENDING job to RUNNING and stamps
// startTime. Returns false if the job is missing or not PENDING.
func (s *JobStore) MarkRunning(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	if !ok || j.State != protocol.Pending {
		return false
	}
	now := time.Now()
	j.State = protocol.Running
	j.StartTime = &now
	return true
}

// Requeue resets a job to PENDING, clearing startTime, per the
// requeue-on-dispatch-failure and requeue-on-eviction rules.
func (s *JobStore) Requeue(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	if !ok {
		return false
	}
	j.State = protocol.Pending
	j.StartTime = nil
	return true
}

// Finish transitions a RUNNING job to COMPLETED or FAILED and stamps
// endTime. Returns the finished job (or nil if the id is unknown or
// the job was already terminal, e.g. cancelled before the result
// arrived).
func (s *JobStore) Finish(id string, success bool) *protocol.Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	if !ok || j.State != protocol.Running {
		return nil
	}
	now := time.Now()
	if success {
		j.State = protocol.Completed
	} else {
		j.State = protocol.Failed
	}
	j.EndTime = &now
	return cloneJob(j)
}

// Cancel transitions a job to CANCELLED. Valid from PENDING or
// RUNNING. Returns false if the job is missing or already terminal.
func (s *JobStore) Cancel(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	if !ok {
		return false
	}
	switch j.State {
	case protocol.Pending, protocol.Running:
		now := time.Now()
		j.State = protocol.Cancelled
		j.EndTime = &now
		return true
	default:
		return false
	}
}

// StateOf returns the state of a job, or PENDING if unknown, per the
// documented get_job_state quirk.
func (s *JobStore) StateOf(id string) protocol.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	if !ok {
		return protocol.Pending
	}
	return j.State
}

// Counts returns the number of jobs in each terminal/in-flight state,
// used by get_stats.
func (s *JobStore) Counts() (running, completed, failed, cancelled int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, j := range s.jobs {
		switch j.State {
		case protocol.Running:
			running++
		case protocol.Completed:
			completed++
		case protocol.Failed:
			failed++
		case protocol.Cancelled:
			cancelled++
		}
	}
	return
}

func cloneJob(j *protocol.Job) *protocol.Job {
	cp := *j
	cp.Args = append([]string(nil), j.Args...)
	if j.StartTime != nil {
		t := *j.StartTime
		cp.StartTime = &t
	}
	if j.EndTime != nil {
		t := *j.EndTime
		cp.EndTime = &t
	}
	return &cp
}

// uitoa avoids pulling in strconv at call sites scattered across the
// package; jobIds are always small positive decimal integers.
func uitoa(n uint64) string {
	if n == 0 {
		return "0"
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	return string(buf[i:])
}

// ResultStore holds JobResults keyed by jobId. Reads do not consume
// (see SPEC_FULL.md's read-and-keep decision).
type ResultStore struct {
	mu      sync.RWMutex
	results map[string]protocol.JobResult
}

func NewResultStore() *ResultStore {
	return &ResultStore{results: make(map[string]protocol.JobResult)}
}

func (s *ResultStore) Put(r protocol.JobResult) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results[r.JobID] = r
}

func (s *ResultStore) Get(id string) (protocol.JobResult, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.results[id]
	return r, ok
}
