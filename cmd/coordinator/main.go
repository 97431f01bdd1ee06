// cmd/coordinator/main.go
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/hochfrequenz/taskcluster/internal/audit"
	"github.com/hochfrequenz/taskcluster/internal/config"
	"github.com/hochfrequenz/taskcluster/internal/confwatch"
	"github.com/hochfrequenz/taskcluster/internal/coordinator"
	"github.com/hochfrequenz/taskcluster/internal/httpapi"
	"github.com/hochfrequenz/taskcluster/internal/notify"
	"github.com/hochfrequenz/taskcluster/internal/statslog"
)

var (
	configPath string
	listenAddr string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "coordinator",
		Short: "Coordinator for a distributed job-execution cluster",
		RunE:  run,
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to coordinator.toml")
	rootCmd.Flags().StringVar(&listenAddr, "listen", "", "TCP address to listen on (overrides config)")

	rootCmd.AddCommand(newMonitorCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func loadConfig(cmd *cobra.Command) (*config.CoordinatorConfig, error) {
	path := configPath
	if path == "" {
		path = "coordinator.toml"
	}
	cfg, err := config.LoadCoordinator(path)
	if err != nil {
		return nil, fmt.Errorf("loading config %s: %w", path, err)
	}
	if cmd.Flags().Changed("listen") {
		cfg.ListenAddr = listenAddr
	}
	return cfg, nil
}

func run(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	jobs := coordinator.NewJobStore()
	results := coordinator.NewResultStore()
	registry := coordinator.NewRegistry()
	queue := coordinator.NewQueue()

	dispatcher := coordinator.NewDispatcher(queue, registry, jobs, results, coordinator.DialSend)
	dispatcher.DispatchPoll = cfg.Timeouts.DispatchPoll()
	dispatcher.LivenessInterval = cfg.Timeouts.LivenessInterval()
	dispatcher.StaleAfter = cfg.Timeouts.HeartbeatStale()

	var notifiers []notify.Notifier
	if cfg.Notify.SlackWebhookURL != "" {
		notifiers = append(notifiers, notify.NewSlackNotifier(cfg.Notify.SlackWebhookURL))
	}
	if cfg.Notify.Desktop {
		notifiers = append(notifiers, notify.NewDesktopNotifier(true))
	}
	if len(notifiers) > 0 {
		dispatcher.OnFinish(notify.JobFinishHook(notify.NewMultiNotifier(notifiers...)))
	}

	var auditStore *audit.Store
	if cfg.Audit.Enabled {
		auditStore, err = audit.Open(cfg.Audit.Path)
		if err != nil {
			return fmt.Errorf("opening audit db: %w", err)
		}
		defer auditStore.Close()
		dispatcher.OnFinish(auditStore.FinishHook())
	}

	server := coordinator.NewServer(cfg.ListenAddr, queue, registry, jobs, results, dispatcher)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go dispatcher.Run(ctx)
	go dispatcher.RunLiveness(ctx)

	if cfg.HTTP.Enabled {
		httpSrv := httpapi.NewServer(cfg.HTTP.Addr, dispatcher.Stats)
		go func() {
			if err := httpSrv.ListenAndServe(); err != nil {
				log.Printf("[coordinator] http api stopped: %v", err)
			}
		}()
	}

	if cfg.StatsLog.Enabled {
		logger, err := statslog.New(cfg.StatsLog.Cron, dispatcher.Stats)
		if err != nil {
			return fmt.Errorf("configuring stats log: %w", err)
		}
		logger.Start()
		defer logger.Stop()
	}

	if configPath != "" {
		watcher, err := confwatch.New(configPath, func(path string) {
			log.Printf("[coordinator] config file %s changed; restart to apply", path)
		})
		if err == nil {
			watcher.Start(ctx)
			defer watcher.Stop()
		}
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigCh
		log.Println("[coordinator] shutting down...")
		server.Stop()
		cancel()
	}()

	log.Printf("[coordinator] listening on %s", cfg.ListenAddr)
	return server.ListenAndServe()
}
