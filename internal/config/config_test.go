package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultCoordinator(t *testing.T) {
	cfg := DefaultCoordinator()

	if cfg.ListenAddr != ":5000" {
		t.Errorf("ListenAddr = %q, want :5000", cfg.ListenAddr)
	}
	if cfg.Timeouts.DispatchPollMs != 100 {
		t.Errorf("DispatchPollMs = %d, want 100", cfg.Timeouts.DispatchPollMs)
	}
	if cfg.Timeouts.LivenessInterval() != 10_000_000_000 {
		t.Errorf("LivenessInterval = %v, want 10s", cfg.Timeouts.LivenessInterval())
	}
	if cfg.Timeouts.HeartbeatStale().Seconds() != 60 {
		t.Errorf("HeartbeatStale = %v, want 60s", cfg.Timeouts.HeartbeatStale())
	}
}

func TestLoadCoordinatorFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "coordinator.toml")

	content := `
listen_addr = ":6000"

[timeouts]
dispatch_poll_ms = 50
liveness_interval_secs = 5
heartbeat_stale_secs = 30

[http]
enabled = true
addr = ":6100"
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadCoordinator(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.ListenAddr != ":6000" {
		t.Errorf("ListenAddr = %q, want :6000", cfg.ListenAddr)
	}
	if cfg.Timeouts.DispatchPollMs != 50 {
		t.Errorf("DispatchPollMs = %d, want 50", cfg.Timeouts.DispatchPollMs)
	}
	if !cfg.HTTP.Enabled || cfg.HTTP.Addr != ":6100" {
		t.Errorf("HTTP = %+v, want enabled on :6100", cfg.HTTP)
	}
}

func TestLoadCoordinatorMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := LoadCoordinator(filepath.Join(t.TempDir(), "missing.toml"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.ListenAddr != ":5000" {
		t.Errorf("ListenAddr = %q, want default :5000", cfg.ListenAddr)
	}
}

func TestDefaultWorker(t *testing.T) {
	cfg := DefaultWorker()

	if cfg.CoordinatorAddr != "127.0.0.1:5000" {
		t.Errorf("CoordinatorAddr = %q, want 127.0.0.1:5000", cfg.CoordinatorAddr)
	}
	if cfg.HeartbeatSecs != 30 {
		t.Errorf("HeartbeatSecs = %d, want 30", cfg.HeartbeatSecs)
	}
}

func TestLoadWorkerFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "worker.toml")

	content := `
coordinator_addr = "10.0.0.1:5000"
listen_addr = ":6001"
advertise_address = "10.0.0.2"
heartbeat_secs = 15
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadWorker(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.CoordinatorAddr != "10.0.0.1:5000" {
		t.Errorf("CoordinatorAddr = %q, want 10.0.0.1:5000", cfg.CoordinatorAddr)
	}
	if cfg.HeartbeatSecs != 15 {
		t.Errorf("HeartbeatSecs = %d, want 15", cfg.HeartbeatSecs)
	}
}

func TestExpandPath(t *testing.T) {
	home, _ := os.UserHomeDir()

	tests := []struct {
		input string
		want  string
	}{
		{"~/test", filepath.Join(home, "test")},
		{"/absolute/path", "/absolute/path"},
		{"relative", "relative"},
	}

	for _, tt := range tests {
		got := ExpandPath(tt.input)
		if got != tt.want {
			t.Errorf("ExpandPath(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}
