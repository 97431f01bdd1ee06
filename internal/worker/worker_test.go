package worker

import (
	"context"
	"encoding/json"
	"net"
	"testing"
	"time"

	"github.com/hochfrequenz/taskcluster/internal/protocol"
)

// fakeCoordinator accepts connections and records the first decoded
// message type/payload from each, so tests can assert on what a
// worker sent without standing up the real coordinator package.
type fakeCoordinator struct {
	ln       net.Listener
	messages chan map[string]interface{}
}

func newFakeCoordinator(t *testing.T) *fakeCoordinator {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	fc := &fakeCoordinator{ln: ln, messages: make(chan map[string]interface{}, 16)}
	go fc.acceptLoop()
	return fc
}

func (fc *fakeCoordinator) acceptLoop() {
	for {
		conn, err := fc.ln.Accept()
		if err != nil {
			return
		}
		go func() {
			defer conn.Close()
			var msg map[string]interface{}
			if err := protocol.NewFrameReader(conn).ReadJSON(&msg); err == nil {
				fc.messages <- msg
			}
		}()
	}
}

func (fc *fakeCoordinator) addr() string { return fc.ln.Addr().String() }
func (fc *fakeCoordinator) close()       { fc.ln.Close() }

func TestWorkerRegistersOnStart(t *testing.T) {
	fc := newFakeCoordinator(t)
	defer fc.close()

	w := New(Config{CoordinatorAddr: fc.addr(), ListenAddr: "127.0.0.1:0", AdvertiseAddress: "127.0.0.1"})
	if err := w.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer w.listener.Close()

	select {
	case msg := <-fc.messages:
		if msg["type"] != protocol.TypeWorkerRegister {
			t.Fatalf("message type = %v, want worker_register", msg["type"])
		}
		if msg["port"].(float64) != float64(w.Port()) {
			t.Fatalf("registered port = %v, want %d", msg["port"], w.Port())
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for registration")
	}
}

func TestWorkerExecutesDispatchedJobAndReportsResult(t *testing.T) {
	fc := newFakeCoordinator(t)
	defer fc.close()

	w := New(Config{CoordinatorAddr: fc.addr(), ListenAddr: "127.0.0.1:0", AdvertiseAddress: "127.0.0.1", HeartbeatInterval: time.Hour})
	if err := w.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	<-fc.messages // drain the register message

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)

	conn, err := net.Dial("tcp", w.listener.Addr().String())
	if err != nil {
		t.Fatalf("dial worker: %v", err)
	}
	job := protocol.Job{JobID: "7", ScriptPath: "/bin/echo", Args: []string{"ok"}}
	if err := protocol.WriteJSON(conn, job); err != nil {
		t.Fatalf("send job: %v", err)
	}
	conn.Close()

	select {
	case msg := <-fc.messages:
		if msg["type"] != protocol.TypeJobResult {
			t.Fatalf("message type = %v, want job_result", msg["type"])
		}
		resultRaw, _ := json.Marshal(msg["result"])
		var result protocol.JobResult
		json.Unmarshal(resultRaw, &result)
		if !result.Success || result.JobID != "7" {
			t.Fatalf("result = %+v", result)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for job result")
	}
}

// TestWorkerShutdownDoesNotKillInFlightJob proves a cancelled Run
// context stops the accept loop without tearing down a job already
// being executed: the dispatched sleep must finish and report success,
// not get killed and reported as a timeout.
func TestWorkerShutdownDoesNotKillInFlightJob(t *testing.T) {
	fc := newFakeCoordinator(t)
	defer fc.close()

	w := New(Config{CoordinatorAddr: fc.addr(), ListenAddr: "127.0.0.1:0", AdvertiseAddress: "127.0.0.1", HeartbeatInterval: time.Hour})
	if err := w.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	<-fc.messages // drain the register message

	ctx, cancel := context.WithCancel(context.Background())
	runDone := make(chan error, 1)
	go func() { runDone <- w.Run(ctx) }()

	conn, err := net.Dial("tcp", w.listener.Addr().String())
	if err != nil {
		t.Fatalf("dial worker: %v", err)
	}
	job := protocol.Job{JobID: "8", ScriptPath: "/bin/sleep", Args: []string{"1"}}
	if err := protocol.WriteJSON(conn, job); err != nil {
		t.Fatalf("send job: %v", err)
	}
	conn.Close()

	// Cancel almost immediately, well before the 1s sleep finishes, to
	// simulate a shutdown signal arriving mid-job.
	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-runDone:
		if err != nil {
			t.Fatalf("Run returned %v, want nil", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for Run to exit")
	}

	select {
	case msg := <-fc.messages:
		if msg["type"] != protocol.TypeJobResult {
			t.Fatalf("message type = %v, want job_result", msg["type"])
		}
		resultRaw, _ := json.Marshal(msg["result"])
		var result protocol.JobResult
		json.Unmarshal(resultRaw, &result)
		if !result.Success {
			t.Fatalf("expected the in-flight job to finish successfully despite shutdown, got %+v", result)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for job result")
	}
}
