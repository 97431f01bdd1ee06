package notify

import (
	"testing"

	"github.com/hochfrequenz/taskcluster/internal/protocol"
)

type recordingNotifier struct {
	sent []Notification
}

func (r *recordingNotifier) Send(n Notification) error {
	r.sent = append(r.sent, n)
	return nil
}

func TestJobFinishHookReportsCompletedAndFailed(t *testing.T) {
	rec := &recordingNotifier{}
	hook := JobFinishHook(rec)

	hook("1", protocol.Completed)
	hook("2", protocol.Failed)
	hook("3", protocol.Pending) // non-terminal, ignored

	if len(rec.sent) != 2 {
		t.Fatalf("sent = %d notifications, want 2", len(rec.sent))
	}
	if rec.sent[0].Type != NotifySuccess || rec.sent[0].JobID != "1" {
		t.Errorf("first notification = %+v", rec.sent[0])
	}
	if rec.sent[1].Type != NotifyError || rec.sent[1].JobID != "2" {
		t.Errorf("second notification = %+v", rec.sent[1])
	}
}
