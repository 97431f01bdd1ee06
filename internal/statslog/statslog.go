// Package statslog periodically logs a one-line summary of cluster
// state (queue depth, worker count, job counts) on a cron schedule.
package statslog

import (
	"log"

	"github.com/robfig/cron/v3"

	"github.com/hochfrequenz/taskcluster/internal/protocol"
)

// StatsFunc returns a current snapshot of cluster state.
type StatsFunc func() protocol.Stats

// Logger drives a cron.Cron to periodically log cluster stats.
type Logger struct {
	cron  *cron.Cron
	stats StatsFunc
}

// New builds a Logger that invokes stats and logs the result on the
// given cron schedule (e.g. "@every 1m" or "*/5 * * * *").
func New(schedule string, stats StatsFunc) (*Logger, error) {
	c := cron.New()
	l := &Logger{cron: c, stats: stats}
	if _, err := c.AddFunc(schedule, l.logOnce); err != nil {
		return nil, err
	}
	return l, nil
}

// Start begins running the cron schedule in the background.
func (l *Logger) Start() {
	l.cron.Start()
}

// Stop stops the cron schedule, waiting for any in-flight run to finish.
func (l *Logger) Stop() {
	<-l.cron.Stop().Done()
}

func (l *Logger) logOnce() {
	s := l.stats()
	log.Printf("[statslog] queued=%d running=%d completed=%d failed=%d cancelled=%d workers=%d",
		s.Queued, s.Running, s.Completed, s.Failed, s.Cancelled, len(s.Workers))
}
