package main

import (
	"fmt"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/hochfrequenz/taskcluster/internal/dashboard"
	"github.com/hochfrequenz/taskcluster/internal/protocol"
)

func newMonitorCmd() *cobra.Command {
	var coordinatorAddr string
	cmd := &cobra.Command{
		Use:   "monitor",
		Short: "Launch a live terminal dashboard of cluster state",
		RunE: func(cmd *cobra.Command, args []string) error {
			fetch := func() (protocol.Stats, error) {
				return dashboard.FetchStats(coordinatorAddr)
			}
			m := dashboard.New(fetch, time.Second)
			if _, err := tea.NewProgram(m).Run(); err != nil {
				fmt.Fprintln(os.Stderr, err)
				os.Exit(1)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&coordinatorAddr, "coordinator", "127.0.0.1:5000", "Coordinator address to monitor")
	return cmd
}
