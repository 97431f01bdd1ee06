package notify

import (
	"fmt"

	"github.com/hochfrequenz/taskcluster/internal/coordinator"
	"github.com/hochfrequenz/taskcluster/internal/protocol"
)

// JobFinishHook adapts a Notifier into a coordinator.FinishHook so job
// completions are reported without the dispatcher knowing about Slack.
func JobFinishHook(n Notifier) coordinator.FinishHook {
	return func(jobID string, state protocol.State) {
		switch state {
		case protocol.Completed:
			n.Send(Notification{
				Title:   fmt.Sprintf("Job %s completed", jobID),
				Message: "job finished successfully",
				Type:    NotifySuccess,
				JobID:   jobID,
			})
		case protocol.Failed:
			n.Send(Notification{
				Title:   fmt.Sprintf("Job %s failed", jobID),
				Message: "job finished with an error",
				Type:    NotifyError,
				JobID:   jobID,
			})
		case protocol.Cancelled:
			n.Send(Notification{
				Title:   fmt.Sprintf("Job %s cancelled", jobID),
				Message: "job was cancelled",
				Type:    NotifyWarning,
				JobID:   jobID,
			})
		}
	}
}
