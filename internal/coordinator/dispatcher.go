package coordinator

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/hochfrequenz/taskcluster/internal/protocol"
)

// SendFunc delivers a job to a worker over a fresh outbound connection
// and returns an error if the send did not succeed.
type SendFunc func(w WorkerInfo, job *protocol.Job) error

// FinishHook is invoked whenever a job reaches a terminal state, after
// the state transition and before the dispatcher continues. Used to
// wire the optional audit log and Slack/desktop notifiers without the
// dispatcher knowing about any of them.
type FinishHook func(jobID string, state protocol.State)

// Dispatcher pairs queued jobs with live, non-busy workers and runs
// the liveness scan that evicts stale ones.
type Dispatcher struct {
	Queue    *Queue
	Registry *Registry
	Jobs     *JobStore
	Results  *ResultStore

	Send SendFunc

	DispatchPoll     time.Duration
	LivenessInterval time.Duration
	StaleAfter       time.Duration

	onFinish []FinishHook

	assignMu sync.Mutex
	assigned map[string]string // jobID -> workerID, only while RUNNING
}

func NewDispatcher(q *Queue, r *Registry, js *JobStore, rs *ResultStore, send SendFunc) *Dispatcher {
	return &Dispatcher{
		Queue:            q,
		Registry:         r,
		Jobs:             js,
		Results:          rs,
		Send:             send,
		DispatchPoll:     100 * time.Millisecond,
		LivenessInterval: 10 * time.Second,
		StaleAfter:       60 * time.Second,
		assigned:         make(map[string]string),
	}
}

// OnFinish registers a hook run after a job transitions to COMPLETED,
// FAILED, or CANCELLED.
func (d *Dispatcher) OnFinish(hook FinishHook) {
	d.onFinish = append(d.onFinish, hook)
}

func (d *Dispatcher) notifyFinish(jobID string, state protocol.State) {
	for _, h := range d.onFinish {
		h(jobID, state)
	}
}

// Run drives the dispatch loop until ctx is cancelled. It waits until
// the queue is non-empty and at least one live worker exists, then
// tries to hand off the head job.
func (d *Dispatcher) Run(ctx context.Context) {
	ticker := time.NewTicker(d.DispatchPoll)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.tryDispatchOne()
		}
	}
}

func (d *Dispatcher) tryDispatchOne() {
	if d.Queue.Len() == 0 || d.Registry.Count() == 0 {
		return
	}

	jobID, ok := d.Queue.PopFront()
	if !ok {
		return
	}

	job, ok := d.Jobs.Get(jobID)
	if !ok || job.State != protocol.Pending {
		// Cancelled, or raced with another dequeue; drop silently,
		// it is not eligible for dispatch anymore.
		return
	}

	worker := d.Registry.FindReady()
	if worker == nil {
		// All live workers are busy; give this job another shot next
		// tick rather than letting later jobs jump ahead of it.
		d.Queue.PushFront(jobID)
		return
	}

	if !d.Jobs.MarkRunning(jobID) {
		return
	}
	d.Registry.SetBusy(worker.WorkerID, true)
	d.setAssignment(jobID, worker.WorkerID)

	job, _ = d.Jobs.Get(jobID)
	if err := d.Send(*worker, job); err != nil {
		log.Printf("[dispatcher] send to %s failed: %v, evicting and requeueing job %s", worker.WorkerID, err, jobID)
		d.clearAssignment(jobID)
		d.Registry.Unregister(worker.WorkerID)
		d.Jobs.Requeue(jobID)
		d.Queue.PushBack(jobID)
		return
	}

	log.Printf("[dispatcher] dispatched job %s to %s", jobID, worker.WorkerID)
}

// RunLiveness drives the liveness-scan loop until ctx is cancelled.
func (d *Dispatcher) RunLiveness(ctx context.Context) {
	ticker := time.NewTicker(d.LivenessInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.scanOnce()
		}
	}
}

func (d *Dispatcher) scanOnce() {
	evicted := d.Registry.EvictStale(d.StaleAfter)
	for _, workerID := range evicted {
		log.Printf("[liveness] evicting stale worker %s", workerID)
		for _, jobID := range d.takeByWorker(workerID) {
			job, ok := d.Jobs.Get(jobID)
			if !ok || job.State != protocol.Running {
				continue
			}
			d.Jobs.Requeue(jobID)
			d.Queue.PushBack(jobID)
			log.Printf("[liveness] requeued job %s from evicted worker %s", jobID, workerID)
		}
	}
}

// HandleResult records a job_result arriving from a worker: it
// transitions the job to its terminal state, stores the result, frees
// the worker, and fires finish hooks. It discards results for jobs
// that are no longer RUNNING (e.g. already cancelled).
func (d *Dispatcher) HandleResult(result protocol.JobResult) {
	workerID := d.clearAssignment(result.JobID)
	if workerID != "" {
		d.Registry.SetBusy(workerID, false)
	}

	job := d.Jobs.Finish(result.JobID, result.Success)
	if job == nil {
		return
	}
	d.Results.Put(result)
	d.notifyFinish(result.JobID, job.State)
}

// CancelJob removes a PENDING job from the queue or marks a RUNNING
// one CANCELLED. Returns true if the job existed and was cancellable.
func (d *Dispatcher) CancelJob(jobID string) bool {
	job, ok := d.Jobs.Get(jobID)
	if !ok {
		return false
	}
	switch job.State {
	case protocol.Pending:
		d.Queue.Remove(jobID)
	case protocol.Running:
		if workerID := d.clearAssignment(jobID); workerID != "" {
			d.Registry.SetBusy(workerID, false)
		}
	default:
		return false
	}
	if !d.Jobs.Cancel(jobID) {
		return false
	}
	d.notifyFinish(jobID, protocol.Cancelled)
	return true
}

func (d *Dispatcher) setAssignment(jobID, workerID string) {
	d.assignMu.Lock()
	defer d.assignMu.Unlock()
	d.assigned[jobID] = workerID
}

// clearAssignment removes and returns the worker a job was assigned
// to, or "" if it had none.
func (d *Dispatcher) clearAssignment(jobID string) string {
	d.assignMu.Lock()
	defer d.assignMu.Unlock()
	workerID := d.assigned[jobID]
	delete(d.assigned, jobID)
	return workerID
}

func (d *Dispatcher) takeByWorker(workerID string) []string {
	d.assignMu.Lock()
	defer d.assignMu.Unlock()
	var jobIDs []string
	for jobID, w := range d.assigned {
		if w == workerID {
			jobIDs = append(jobIDs, jobID)
			delete(d.assigned, jobID)
		}
	}
	return jobIDs
}

// Stats returns a point-in-time snapshot for get_stats and the
// dashboard/HTTP monitoring surfaces.
func (d *Dispatcher) Stats() protocol.Stats {
	running, completed, failed, cancelled := d.Jobs.Counts()
	workers := d.Registry.Snapshot()
	ws := make([]protocol.WorkerStatus, 0, len(workers))
	for _, w := range workers {
		ws = append(ws, protocol.WorkerStatus{
			WorkerID:      w.WorkerID,
			Busy:          w.Busy,
			LastHeartbeat: w.LastHeartbeat,
		})
	}
	return protocol.Stats{
		Queued:    d.Queue.Len(),
		Running:   running,
		Completed: completed,
		Failed:    failed,
		Cancelled: cancelled,
		Workers:   ws,
	}
}
