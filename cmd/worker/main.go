// cmd/worker/main.go
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/hochfrequenz/taskcluster/internal/config"
	"github.com/hochfrequenz/taskcluster/internal/worker"
)

var (
	configPath      string
	coordinatorAddr string
	listenAddr      string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "worker",
		Short: "Worker that registers with a coordinator and executes dispatched jobs",
		RunE:  run,
	}
	rootCmd.Flags().StringVar(&configPath, "config", "", "Path to worker.toml")
	rootCmd.Flags().StringVar(&coordinatorAddr, "coordinator", "", "Coordinator address (overrides config)")
	rootCmd.Flags().StringVar(&listenAddr, "listen", "", "Address to listen on for dispatched jobs (overrides config)")

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	path := configPath
	if path == "" {
		path = "worker.toml"
	}
	cfg, err := config.LoadWorker(path)
	if err != nil {
		return fmt.Errorf("loading config %s: %w", path, err)
	}
	if cmd.Flags().Changed("coordinator") {
		cfg.CoordinatorAddr = coordinatorAddr
	}
	if cmd.Flags().Changed("listen") {
		cfg.ListenAddr = listenAddr
	}
	if err := os.MkdirAll(cfg.TempDir, 0o755); err != nil {
		return fmt.Errorf("creating temp dir %s: %w", cfg.TempDir, err)
	}

	w := worker.New(worker.Config{
		CoordinatorAddr:   cfg.CoordinatorAddr,
		ListenAddr:        cfg.ListenAddr,
		AdvertiseAddress:  cfg.AdvertiseAddress,
		TempDir:           cfg.TempDir,
		HeartbeatInterval: cfg.Heartbeat(),
	})

	if err := w.Start(); err != nil {
		return fmt.Errorf("starting worker: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Println("[worker] shutting down after in-flight job completes...")
		cancel()
	}()

	return w.Run(ctx)
}
