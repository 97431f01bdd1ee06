// Package config loads TOML configuration for the coordinator and
// worker binaries.
package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// CoordinatorConfig holds the coordinator binary's settings.
type CoordinatorConfig struct {
	ListenAddr string         `toml:"listen_addr"`
	Timeouts   TimeoutsConfig `toml:"timeouts"`
	HTTP       HTTPConfig     `toml:"http"`
	Audit      AuditConfig    `toml:"audit"`
	Notify     NotifyConfig   `toml:"notify"`
	StatsLog   StatsLogConfig `toml:"stats_log"`
}

// TimeoutsConfig configures the dispatch poll interval and liveness
// scan.
type TimeoutsConfig struct {
	DispatchPollMs     int `toml:"dispatch_poll_ms"`
	LivenessIntervalS  int `toml:"liveness_interval_secs"`
	HeartbeatStaleS    int `toml:"heartbeat_stale_secs"`
}

// HTTPConfig configures the optional monitoring HTTP API.
type HTTPConfig struct {
	Enabled bool   `toml:"enabled"`
	Addr    string `toml:"addr"`
}

// AuditConfig configures the optional SQLite audit trail.
type AuditConfig struct {
	Enabled bool   `toml:"enabled"`
	Path    string `toml:"path"`
}

// NotifyConfig configures the optional Slack and desktop job-outcome
// notifiers.
type NotifyConfig struct {
	SlackWebhookURL string `toml:"slack_webhook_url"`
	Desktop         bool   `toml:"desktop"`
}

// StatsLogConfig configures the periodic cluster-summary logger.
type StatsLogConfig struct {
	Enabled bool   `toml:"enabled"`
	Cron    string `toml:"cron"`
}

// WorkerConfig holds the worker binary's settings.
type WorkerConfig struct {
	CoordinatorAddr   string `toml:"coordinator_addr"`
	ListenAddr        string `toml:"listen_addr"`
	AdvertiseAddress  string `toml:"advertise_address"`
	TempDir           string `toml:"temp_dir"`
	HeartbeatSecs     int    `toml:"heartbeat_secs"`
}

func (t TimeoutsConfig) DispatchPoll() time.Duration {
	return time.Duration(t.DispatchPollMs) * time.Millisecond
}

func (t TimeoutsConfig) LivenessInterval() time.Duration {
	return time.Duration(t.LivenessIntervalS) * time.Second
}

func (t TimeoutsConfig) HeartbeatStale() time.Duration {
	return time.Duration(t.HeartbeatStaleS) * time.Second
}

func (w WorkerConfig) Heartbeat() time.Duration {
	return time.Duration(w.HeartbeatSecs) * time.Second
}

// DefaultCoordinator returns a CoordinatorConfig with the baseline
// defaults (port 5000, 100ms dispatch poll, 10s liveness scan, 60s
// heartbeat staleness).
func DefaultCoordinator() *CoordinatorConfig {
	return &CoordinatorConfig{
		ListenAddr: ":5000",
		Timeouts: TimeoutsConfig{
			DispatchPollMs:    100,
			LivenessIntervalS: 10,
			HeartbeatStaleS:   60,
		},
		HTTP: HTTPConfig{Enabled: false, Addr: ":5001"},
		StatsLog: StatsLogConfig{
			Enabled: true,
			Cron:    "@every 1m",
		},
	}
}

// DefaultWorker returns a WorkerConfig with the baseline defaults
// (30s heartbeat interval).
func DefaultWorker() *WorkerConfig {
	home, _ := os.UserHomeDir()
	return &WorkerConfig{
		CoordinatorAddr:  "127.0.0.1:5000",
		ListenAddr:       ":0",
		AdvertiseAddress: "127.0.0.1",
		TempDir:          filepath.Join(home, ".cache", "cluster-worker"),
		HeartbeatSecs:    30,
	}
}

// LoadCoordinator reads a coordinator config file, falling back to
// defaults for any field the file doesn't set and for the file not
// existing at all.
func LoadCoordinator(path string) (*CoordinatorConfig, error) {
	cfg := DefaultCoordinator()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, err
	}
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	cfg.Audit.Path = ExpandPath(cfg.Audit.Path)
	return cfg, nil
}

// LoadWorker reads a worker config file, falling back to defaults for
// any field the file doesn't set and for the file not existing at all.
func LoadWorker(path string) (*WorkerConfig, error) {
	cfg := DefaultWorker()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, err
	}
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	cfg.TempDir = ExpandPath(cfg.TempDir)
	return cfg, nil
}

// ExpandPath expands a leading ~/ to the user's home directory.
func ExpandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, _ := os.UserHomeDir()
		return filepath.Join(home, path[2:])
	}
	return path
}
