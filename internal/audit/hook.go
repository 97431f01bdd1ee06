package audit

import (
	"github.com/hochfrequenz/taskcluster/internal/coordinator"
	"github.com/hochfrequenz/taskcluster/internal/protocol"
)

// FinishHook adapts a Store into a coordinator.FinishHook, recording
// every terminal job-state transition.
func (s *Store) FinishHook() coordinator.FinishHook {
	return func(jobID string, state protocol.State) {
		s.Record(jobID, state, "")
	}
}
