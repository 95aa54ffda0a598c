package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/ratkov/kasa/internal/models"
	"github.com/ratkov/kasa/internal/output"
)

var sessionsCmd = &cobra.Command{
	Use:     "sessions",
	Aliases: []string{"session"},
	Short:   "Manage manually entered table sessions",
	GroupID: "data",
}

var sessionsListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List manual sessions",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, cleanup, err := openStore()
		if err != nil {
			return err
		}
		defer cleanup()

		sessions, err := store.GetAllManualSessions(cmd.Context())
		if err != nil {
			return err
		}
		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			return output.JSON(sessions)
		}
		for _, m := range sessions {
			output.Info("%4d  table %-3d %-10s %s -> %s  %s",
				m.ID, m.TableID, m.Type,
				output.When(m.OpenTime), output.When(m.CloseTime),
				output.Money(m.Amount))
		}
		output.Subtle("%d sessions", len(sessions))
		return nil
	},
}

var sessionsAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Backfill a table session",
	Long: `Backfill a table session that the system missed: a power cut,
pre-system history, or a cash adjustment.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, cleanup, err := openStore()
		if err != nil {
			return err
		}
		defer cleanup()

		tableID, _ := cmd.Flags().GetInt64("table")
		sessionType, _ := cmd.Flags().GetString("type")
		amount, _ := cmd.Flags().GetFloat64("amount")
		note, _ := cmd.Flags().GetString("note")
		openAt, _ := cmd.Flags().GetString("open")
		closeAt, _ := cmd.Flags().GetString("close")

		switch sessionType {
		case models.SessionTypeTable, models.SessionTypeTimed, models.SessionTypeAdjustment:
		default:
			return fmt.Errorf("--type must be %s, %s or %s",
				models.SessionTypeTable, models.SessionTypeTimed, models.SessionTypeAdjustment)
		}

		openTime, err := parseWhen(openAt)
		if err != nil {
			return fmt.Errorf("--open: %w", err)
		}
		closeTime, err := parseWhen(closeAt)
		if err != nil {
			return fmt.Errorf("--close: %w", err)
		}

		m := &models.ManualSession{
			TableID:   tableID,
			Type:      sessionType,
			Amount:    amount,
			OpenTime:  openTime,
			CloseTime: closeTime,
			Note:      note,
		}
		id, err := store.AddManualSession(cmd.Context(), m)
		if err != nil {
			return err
		}
		output.Success("Added session #%d (%s, %s)", id, m.Type, output.Money(m.Amount))
		return nil
	},
}

var sessionsClosedCmd = &cobra.Command{
	Use:   "closed",
	Short: "List sessions closed in a time window (from the cache)",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, cleanup, err := openStore()
		if err != nil {
			return err
		}
		defer cleanup()

		fromArg, _ := cmd.Flags().GetString("from")
		toArg, _ := cmd.Flags().GetString("to")
		from, err := parseWhen(fromArg)
		if err != nil {
			return fmt.Errorf("--from: %w", err)
		}
		to, err := parseWhen(toArg)
		if err != nil {
			return fmt.Errorf("--to: %w", err)
		}

		sessions, err := store.GetManualSessionsClosedBetween(from, to)
		if err != nil {
			return err
		}
		var total float64
		for _, m := range sessions {
			output.Info("%4d  table %-3d %-10s closed %s  %s",
				m.ID, m.TableID, m.Type, output.When(m.CloseTime), output.Money(m.Amount))
			total += m.Amount
		}
		output.Info("%d sessions, %s total", len(sessions), output.Money(total))
		return nil
	},
}

var sessionsRmCmd = &cobra.Command{
	Use:     "rm <id>",
	Aliases: []string{"delete"},
	Short:   "Delete a manual session",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, cleanup, err := openStore()
		if err != nil {
			return err
		}
		defer cleanup()

		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		if err := store.DeleteManualSession(cmd.Context(), id); err != nil {
			return err
		}
		output.Success("Deleted session #%d", id)
		return nil
	},
}

// parseWhen accepts "2006-01-02 15:04" or RFC 3339; empty means now.
func parseWhen(s string) (time.Time, error) {
	if s == "" {
		return time.Now().UTC(), nil
	}
	if t, err := time.ParseInLocation("2006-01-02 15:04", s, time.Local); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("unrecognized time %q", s)
	}
	return t.UTC(), nil
}

func init() {
	sessionsListCmd.Flags().Bool("json", false, "output as JSON")
	sessionsAddCmd.Flags().Int64("table", 0, "table id (required)")
	sessionsAddCmd.Flags().String("type", models.SessionTypeTable, "session type (table, timed, adjustment)")
	sessionsAddCmd.Flags().Float64("amount", 0, "session amount")
	sessionsAddCmd.Flags().String("note", "", "free-form note")
	sessionsAddCmd.Flags().String("open", "", `open time ("2006-01-02 15:04", default now)`)
	sessionsAddCmd.Flags().String("close", "", `close time ("2006-01-02 15:04", default now)`)
	sessionsAddCmd.MarkFlagRequired("table")
	sessionsClosedCmd.Flags().String("from", "", `window start ("2006-01-02 15:04")`)
	sessionsClosedCmd.Flags().String("to", "", `window end, exclusive (default now)`)
	sessionsClosedCmd.MarkFlagRequired("from")

	sessionsCmd.AddCommand(sessionsListCmd, sessionsAddCmd, sessionsClosedCmd, sessionsRmCmd)
	rootCmd.AddCommand(sessionsCmd)
}
