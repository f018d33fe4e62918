package cmd

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	app "device-reservation/internal"
	"device-reservation/internal/access"
	"device-reservation/internal/config"
	"device-reservation/internal/routes"
	"device-reservation/internal/storage"

	"github.com/spf13/cobra"
)

var serverCmd = &cobra.Command{
	Use:         "server",
	Short:       "Start the reservation dashboard",
	Annotations: map[string]string{"logger": "server"},
	Run: func(cmd *cobra.Command, args []string) {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		if err := ServerMain(ctx, provider); err != nil {
			slog.Error("Server stopped", "error", err)
			os.Exit(1)
		}
	},
}

func ServerMain(ctx context.Context, storageProvider storage.Provider) error {
	if config.Cfg == nil {
		panic("Config not initialized.")
	}

	// Use the provider passed from cobra command (already initialized)
	if storageProvider == nil {
		return errors.New("storage provider is nil")
	}

	core := newCore()

	// Privileged addresses are resolved once
	policy := access.NewPolicyFromConfig(&cfg.Access)

	// Write the export once so the file exists before the first change
	if core.exporter != nil {
		if err := core.exporter.Sync(ctx); err != nil {
			slog.Error("Initial log export failed", "error", err)
		}
	}

	server, err := app.HTTPServer(&routes.Services{
		Engine:       core.engine,
		Ledger:       core.ledger,
		Policy:       policy,
		BaseURL:      cfg.BaseURL,
		HistoryLimit: cfg.HistoryLimit,
		RefreshMS:    cfg.RefreshMS,
	})
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           server,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("Listening", "addr", cfg.ListenAddr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		slog.Info("Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func init() {
	rootCmd.AddCommand(serverCmd)
}
