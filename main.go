package main

import (
	"fmt"
	"os"

	"github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func newRootCmd() *cobra.Command {
	var debug bool

	cmd := &cobra.Command{
		Use:          "melscale",
		Short:        "Terminal music player for the MELSCALE catalog",
		SilenceUsage: true,
		Args:         cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return bindFlags(cmd)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			// Inverted flag, so it cannot be bound directly
			if noArt, _ := cmd.Flags().GetBool("no-artwork"); noArt {
				viper.Set("artwork.enabled", false)
			}
			return run(debug)
		},
	}

	flags := cmd.Flags()
	flags.StringP("color", "c", "2", "Set the desired color (ANSI code or hex)")
	flags.Bool("no-artwork", false, "Disable album artwork display")
	flags.String("catalog", "", "Load tracks from a YAML catalog file instead of the built-in one")
	flags.Float64("volume", 0.7, "Initial volume between 0 and 1")
	flags.BoolVar(&debug, "debug", false, "Log at debug level")

	return cmd
}

// Config keys backed by command line flags, which only take precedence when given explicitly
var flagBindings = []struct{ key, flag string }{
	{"ui.color", "color"},
	{"catalog.path", "catalog"},
	{"player.volume", "volume"},
}

func bindFlags(cmd *cobra.Command) error {
	for _, b := range flagBindings {
		if err := viper.BindPFlag(b.key, cmd.Flags().Lookup(b.flag)); err != nil {
			return fmt.Errorf("bind flag --%s: %w", b.flag, err)
		}
	}
	return nil
}

func run(debug bool) error {
	initConfig()
	cfg := config.Get()

	logger, logFile, err := setupLogging(cfg, debug)
	if err != nil {
		return err
	}
	defer logFile.Close()

	catalog, err := loadCatalog(cfg.Catalog.Path, cfg.Media.BaseDir)
	if err != nil {
		return err
	}
	logger.Info("catalog loaded", "tracks", catalog.Len(), "path", cfg.Catalog.Path)

	media, tone := newMediaResource(cfg, logger)
	defer media.Close()

	player := NewController(catalog, media, tone, logger, controllerOptionsFromConfig(cfg))
	player.Init()

	initialModel := newModel(player, media, supportsKittyGraphics())
	if _, err := tea.NewProgram(initialModel, tea.WithAltScreen()).Run(); err != nil {
		return fmt.Errorf("ui: %w", err)
	}
	return nil
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
