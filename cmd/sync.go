package cmd

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/ratkov/kasa/internal/hybrid"
	"github.com/ratkov/kasa/internal/models"
	"github.com/ratkov/kasa/internal/output"
)

var syncCmd = &cobra.Command{
	Use:     "sync",
	Short:   "Reconcile the local cache with the remote store",
	GroupID: "sync",
	Args:    cobra.NoArgs,
	RunE:    runSync,
}

func init() {
	syncCmd.Flags().Bool("full", false, "force a full sync (replaces the whole cache, picks up deletions)")
	syncCmd.Flags().Bool("status", false, "show cursor ages without syncing")
	syncCmd.Flags().Bool("json", false, "print the sync report as JSON")
	rootCmd.AddCommand(syncCmd)
}

func runSync(cmd *cobra.Command, args []string) error {
	store, cleanup, err := openStore()
	if err != nil {
		return err
	}
	defer cleanup()

	asJSON, _ := cmd.Flags().GetBool("json")

	if status, _ := cmd.Flags().GetBool("status"); status {
		return printSyncStatus(store, asJSON)
	}

	full, _ := cmd.Flags().GetBool("full")
	ran, err := store.SyncNow(cmd.Context(), hybrid.Options{Force: true, ForceFull: full})
	if err != nil {
		return err
	}
	if !ran {
		output.Warning("A sync is already running")
		return nil
	}

	report := store.LastReport()
	if asJSON {
		return output.JSON(report)
	}
	printReport(report)
	return nil
}

func printReport(r *hybrid.Report) {
	if r == nil {
		output.Subtle("No sync has run yet")
		return
	}
	mode := "delta"
	if r.Full {
		mode = "full"
	}
	took := r.FinishedAt.Sub(r.StartedAt).Round(time.Millisecond)
	output.Info("Sync (%s) finished in %s", mode, took)
	for _, e := range r.Entities {
		if e.Err != "" {
			output.Error("%-16s %s: %s", e.Entity, e.Mode, e.Err)
			continue
		}
		output.Info("  %-16s %-5s %d fetched", e.Entity, e.Mode, e.Fetched)
	}
	if n := r.Failed(); n > 0 {
		output.Warning("%d of %d entities failed; they retry on the next pass", n, len(r.Entities))
	}
}

func printSyncStatus(store *hybrid.Store, asJSON bool) error {
	ages := store.CursorAges()
	if asJSON {
		out := make(map[models.EntityType]string, len(ages))
		for entity, age := range ages {
			if age < 0 {
				out[entity] = "never"
			} else {
				out[entity] = age.Round(time.Second).String()
			}
		}
		return output.JSON(out)
	}
	for _, entity := range models.EntityTypes {
		age := ages[entity]
		if age < 0 {
			output.Warning("%-16s never synced", entity)
			continue
		}
		output.Info("%-16s cursor %s behind", entity, age.Round(time.Second))
	}
	if lf := store.LastFullSync(); lf.IsZero() {
		output.Warning("no full sync has completed yet")
	} else {
		output.Subtle("last full sync: %s ago", output.Age(lf))
	}
	return nil
}
