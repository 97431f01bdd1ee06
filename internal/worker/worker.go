package worker

import (
	"context"
	"log"
	"net"
	"time"

	"github.com/hochfrequenz/taskcluster/internal/protocol"
)

// HeartbeatInterval is how often a worker refreshes its liveness with
// the coordinator.
const HeartbeatInterval = 30 * time.Second

// Config configures a Worker instance.
type Config struct {
	CoordinatorAddr   string
	ListenAddr        string // e.g. "0.0.0.0:6001"
	AdvertiseAddress  string // address the coordinator should dial back to
	TempDir           string
	HeartbeatInterval time.Duration
}

// Worker registers with a coordinator, accepts dispatched jobs one at
// a time on its own listener, executes them, and reports results.
type Worker struct {
	cfg      Config
	executor *Executor
	listener net.Listener
	port     int
}

func New(cfg Config) *Worker {
	if cfg.HeartbeatInterval == 0 {
		cfg.HeartbeatInterval = HeartbeatInterval
	}
	return &Worker{cfg: cfg, executor: NewExecutor(cfg.TempDir)}
}

// Start binds the worker's job listener and registers with the
// coordinator. It must be called before Run.
func (w *Worker) Start() error {
	ln, err := net.Listen("tcp", w.cfg.ListenAddr)
	if err != nil {
		return err
	}
	w.listener = ln
	w.port = ln.Addr().(*net.TCPAddr).Port

	if err := Register(w.cfg.CoordinatorAddr, w.cfg.AdvertiseAddress, w.port); err != nil {
		ln.Close()
		return err
	}
	log.Printf("[worker] registered with coordinator at %s, listening on %s (advertised port %d)",
		w.cfg.CoordinatorAddr, ln.Addr(), w.port)
	return nil
}

// Port returns the bound listen port, valid after Start.
func (w *Worker) Port() int { return w.port }

// Run accepts and executes jobs, one at a time, until ctx is
// cancelled. It also drives the heartbeat loop. Run blocks until the
// accept loop exits, which happens once ctx is done and any in-flight
// job has completed.
func (w *Worker) Run(ctx context.Context) error {
	go w.heartbeatLoop(ctx)

	go func() {
		<-ctx.Done()
		w.listener.Close()
	}()

	for {
		conn, err := w.listener.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
				return err
			}
		}
		w.handleDispatch(conn)
	}
}

func (w *Worker) heartbeatLoop(ctx context.Context) {
	ticker := time.NewTicker(w.cfg.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := SendHeartbeat(w.cfg.CoordinatorAddr, w.port); err != nil {
				log.Printf("[worker] heartbeat failed: %v", err)
			}
		}
	}
}

// handleDispatch reads exactly one Job from a freshly accepted
// connection, runs it, and reports the result back to the
// coordinator on a new outbound connection. Only one job runs at a
// time because the accept loop is synchronous.
//
// The job runs against context.Background() rather than Run's ctx: a
// shutdown signal must let an in-flight job finish, bounded only by
// its own JobTimeout, rather than killing the subprocess outright.
func (w *Worker) handleDispatch(conn net.Conn) {
	defer conn.Close()

	var job protocol.Job
	if err := protocol.NewFrameReader(conn).ReadJSON(&job); err != nil {
		log.Printf("[worker] invalid job message: %v", err)
		return
	}

	log.Printf("[worker] running job %s", job.JobID)
	result := w.executor.Run(context.Background(), &job)

	if err := SendResult(w.cfg.CoordinatorAddr, *result); err != nil {
		log.Printf("[worker] failed to report result for job %s: %v", job.JobID, err)
		return
	}
	log.Printf("[worker] reported result for job %s (success=%v)", job.JobID, result.Success)
}
