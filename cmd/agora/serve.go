package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/alienxp03/agora/internal/config"
	"github.com/alienxp03/agora/internal/engine"
	"github.com/alienxp03/agora/internal/generation"
	"github.com/alienxp03/agora/web/handlers"
)

// ============================================================================
// SERVE COMMAND
// ============================================================================

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		if !cmd.Flags().Changed("port") && appConfig.Server.Port != 0 {
			servePort = appConfig.Server.Port
		}

		hub := handlers.NewHub()
		a, err := openApp(engine.WithNotifier(hub))
		if err != nil {
			return err
		}
		defer a.Close()

		h := handlers.New(a.engine, a.registry, hub,
			handlers.WithDefaultProvider(appConfig.Generation.Provider),
		)
		return startWebServer(cmd.Context(), h, servePort)
	},
}

func init() {
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 8182, "Server port")
}

func startWebServer(ctx context.Context, h *handlers.Handler, port int) error {
	addr := fmt.Sprintf(":%d", port)
	server := &http.Server{
		Addr:              addr,
		Handler:           h.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		slog.Info("Starting agora API server", "url", fmt.Sprintf("http://localhost%s", addr))
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	slog.Info("Shutting down...")
	// Streams stay open until their clients leave, so wait briefly and
	// then close whatever is left.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Warn("Graceful shutdown incomplete", "error", err)
		return server.Close()
	}
	return nil
}

// ============================================================================
// PROVIDERS COMMAND
// ============================================================================

var providersCmd = &cobra.Command{
	Use:   "providers",
	Short: "List configured generation providers",
	RunE: func(cmd *cobra.Command, args []string) error {
		registry, err := appConfig.CreateRegistry()
		if err != nil {
			return err
		}
		check, _ := cmd.Flags().GetBool("check")

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "NAME\tKIND\tMODEL\tDEFAULT\tHEALTH")
		for _, b := range registry.List() {
			p, _ := appConfig.GetProvider(b.Name())
			def := ""
			if b.Name() == appConfig.Generation.Provider {
				def = "*"
			}
			health := "-"
			if check {
				status := generation.HealthCheck(cmd.Context(), b, p.DefaultModel)
				health = fmt.Sprintf("ok (%s)", status.ResponseTime.Round(time.Millisecond))
				if !status.Available {
					health = "unavailable: " + truncate(status.Error, 60)
				}
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", b.Name(), p.Kind, p.DefaultModel, def, health)
		}
		return w.Flush()
	},
}

func init() {
	providersCmd.Flags().Bool("check", false, "Probe each provider with a health check")
}

// ============================================================================
// CONFIG COMMAND
// ============================================================================

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		path := cfgPath
		if path == "" {
			path = config.DefaultConfigPath()
		}
		fmt.Printf("Config file: %s\n\n", path)

		fmt.Println("Current settings:")
		fmt.Printf("  Storage: %s\n", appConfig.Storage.Driver)
		fmt.Printf("  Default provider: %s\n", appConfig.Generation.Provider)
		fmt.Printf("  Retries: %d (base delay %s, attempt timeout %s)\n",
			appConfig.Generation.MaxRetries, appConfig.Generation.BaseDelay, appConfig.Generation.AttemptTimeout)
		fmt.Printf("  Default rounds: %d\n", appConfig.Defaults.Rounds)
		fmt.Println("\nProviders:")
		for _, name := range appConfig.EnabledProviders() {
			p := appConfig.Providers[name]
			key := "no api key"
			if p.ResolveAPIKey() != "" {
				key = "api key set"
			}
			fmt.Printf("  %s: %s, %s\n", name, p.Kind, key)
		}
		return nil
	},
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create example config file",
	RunE: func(cmd *cobra.Command, args []string) error {
		path := cfgPath
		if path == "" {
			path = config.DefaultConfigPath()
		}
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config already exists at %s", path)
		}

		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return err
		}
		if err := os.WriteFile(path, []byte(config.GenerateExample()), 0644); err != nil {
			return err
		}

		fmt.Printf("Created config at: %s\n", path)
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configInitCmd)
}
