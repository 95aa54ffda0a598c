package cmd

import (
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/ratkov/kasa/internal/tui/monitor"
)

var monitorCmd = &cobra.Command{
	Use:     "monitor",
	Aliases: []string{"mon"},
	Short:   "Live dashboard for cache contents and sync health",
	GroupID: "sync",
	Args:    cobra.NoArgs,
	RunE:    runMonitor,
}

func init() {
	monitorCmd.Flags().Duration("refresh", 5*time.Second, "dashboard refresh interval")
	rootCmd.AddCommand(monitorCmd)
}

func runMonitor(cmd *cobra.Command, args []string) error {
	store, cleanup, err := openStore()
	if err != nil {
		return err
	}
	defer cleanup()

	refresh, _ := cmd.Flags().GetDuration("refresh")
	m := monitor.NewModel(store, refresh)

	p := tea.NewProgram(m, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("monitor: %w", err)
	}
	return nil
}
