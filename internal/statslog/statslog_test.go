package statslog

import (
	"testing"
	"time"

	"github.com/hochfrequenz/taskcluster/internal/protocol"
)

func TestLoggerRunsOnSchedule(t *testing.T) {
	calls := make(chan protocol.Stats, 4)
	l, err := New("@every 50ms", func() protocol.Stats {
		s := protocol.Stats{Queued: 2, Running: 1}
		calls <- s
		return s
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	l.Start()
	defer l.Stop()

	select {
	case got := <-calls:
		if got.Queued != 2 {
			t.Fatalf("Queued = %d, want 2", got.Queued)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for scheduled stats call")
	}
}
