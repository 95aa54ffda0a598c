package cmd

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/ratkov/kasa/internal/cache"
	"github.com/ratkov/kasa/internal/config"
	"github.com/ratkov/kasa/internal/output"
)

var initCmd = &cobra.Command{
	Use:     "init",
	Short:   "Configure the remote store and build the local cache",
	GroupID: "system",
	Args:    cobra.NoArgs,
	RunE:    runInit,
}

func init() {
	initCmd.Flags().String("url", "", "remote store base URL (skips the prompt)")
	initCmd.Flags().String("api-key", "", "remote store API key (skips the prompt)")
	rootCmd.AddCommand(initCmd)
}

func runInit(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	remoteURL, _ := cmd.Flags().GetString("url")
	apiKey, _ := cmd.Flags().GetString("api-key")

	if remoteURL == "" || apiKey == "" {
		if remoteURL == "" {
			remoteURL = cfg.RemoteURL
		}
		if apiKey == "" {
			apiKey = cfg.APIKey
		}
		form := huh.NewForm(huh.NewGroup(
			huh.NewInput().
				Title("Remote store URL").
				Description("Base URL of the venue's remote store, e.g. https://db.example.com").
				Value(&remoteURL).
				Validate(validateURL),
			huh.NewInput().
				Title("API key").
				Description("Service key for the remote store").
				EchoMode(huh.EchoModePassword).
				Value(&apiKey).
				Validate(func(s string) error {
					if strings.TrimSpace(s) == "" {
						return fmt.Errorf("API key is required")
					}
					return nil
				}),
		))
		if err := form.Run(); err != nil {
			return err
		}
	}

	cfg.RemoteURL = strings.TrimRight(strings.TrimSpace(remoteURL), "/")
	cfg.APIKey = strings.TrimSpace(apiKey)
	if err := config.Save(cfg); err != nil {
		return err
	}

	deviceID, err := config.DeviceID()
	if err != nil {
		return err
	}

	dataDir, err := config.DataDir()
	if err != nil {
		return err
	}
	cs, err := cache.Initialize(dataDir)
	if err != nil {
		return err
	}
	cs.Close()

	output.Success("Cache initialized at %s (device %s)", dataDir, deviceID)

	store, cleanup, err := openStore()
	if err != nil {
		return err
	}
	defer cleanup()

	if err := store.Remote().Ping(cmd.Context()); err != nil {
		return fmt.Errorf("remote store not reachable with this URL/key: %w", err)
	}

	output.Info("Running first full sync...")
	if err := store.Init(cmd.Context()); err != nil {
		return err
	}
	report := store.LastReport()
	if report != nil && report.Failed() > 0 {
		output.Warning("Sync finished with %d failed entities; run 'kasa sync --status' for details", report.Failed())
	} else {
		output.Success("Initial sync complete")
	}
	return nil
}

func validateURL(s string) error {
	u, err := url.Parse(strings.TrimSpace(s))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("enter a full URL including scheme")
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("URL must be http or https")
	}
	return nil
}
