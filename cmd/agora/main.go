package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/alienxp03/agora/internal/config"
	"github.com/alienxp03/agora/internal/engine"
	"github.com/alienxp03/agora/internal/generation"
	"github.com/alienxp03/agora/internal/storage"
)

var (
	dbPath    string
	cfgPath   string
	debugFlag bool
	appConfig *config.Config
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "agora",
	Short: "Multi-participant AI debates",
	Long: `agora runs discussions between AI participants that take turns on a
shared transcript, following a rotation plan you control. You can
interject at any point, reorder who speaks next, and export the result.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		setupLogging(cmd)

		var err error
		if cfgPath != "" {
			appConfig, err = config.LoadFrom(cfgPath)
		} else {
			appConfig, err = config.Load()
		}
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		if dbPath != "" {
			appConfig.Storage.Driver = config.DriverSQLite
			appConfig.Storage.Path = dbPath
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "SQLite database path (default: ~/.agora/agora.db)")
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "", "Config file path (default: ~/.agora/config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&debugFlag, "debug", false, "Enable debug logging")

	rootCmd.AddCommand(participantsCmd)
	rootCmd.AddCommand(newCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(showCmd)
	rootCmd.AddCommand(nextCmd)
	rootCmd.AddCommand(sayCmd)
	rootCmd.AddCommand(reorderCmd)
	rootCmd.AddCommand(deleteCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(providersCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(serveCmd)
}

// setupLogging installs a text handler on stderr. serve replaces it with a
// JSON handler on stdout.
func setupLogging(cmd *cobra.Command) {
	opts := &slog.HandlerOptions{Level: slog.LevelWarn}
	if debugFlag {
		opts.Level = slog.LevelDebug
	}
	if cmd.Name() == serveCmd.Name() {
		if !debugFlag {
			opts.Level = slog.LevelInfo
		}
		slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, opts)))
		return
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, opts)))
}

// app bundles the store and engine built from the loaded config.
type app struct {
	store    storage.Storage
	registry *generation.Registry
	engine   *engine.Engine
}

func openApp(opts ...engine.Option) (*app, error) {
	store, err := appConfig.OpenStorage()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	registry, err := appConfig.CreateRegistry()
	if err != nil {
		store.Close()
		return nil, err
	}
	client := appConfig.CreateClient(registry)

	opts = append([]engine.Option{
		engine.WithModeratorTemperature(appConfig.Generation.ModeratorTemperature),
		engine.WithDefaults(appConfig.DebateDefaults(), appConfig.Defaults.Rounds),
	}, opts...)

	return &app{
		store:    store,
		registry: registry,
		engine:   engine.New(store, client, opts...),
	}, nil
}

func (a *app) Close() {
	if err := a.store.Close(); err != nil {
		slog.Warn("Failed to close storage", "error", err)
	}
}
