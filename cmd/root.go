package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"device-reservation/internal/config"
	"device-reservation/internal/ledger"
	"device-reservation/internal/reservation"
	"device-reservation/internal/storage"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var (
	cfgFile  string
	cfg      *config.Config
	provider storage.Provider
)

var rootCmd = &cobra.Command{
	Use:   "device-reservation",
	Short: "Shared device reservation dashboard",
	Long:  `Reserve and release shared devices, keep a usage log and export it as CSV.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		// Optional .env next to the binary
		if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
			slog.Warn("Failed to load .env", "error", err)
		}

		var err error
		cfg, err = config.LoadConfig(cfgFile)
		if err != nil {
			slog.Error("Failed to load configuration", "error", err)
			os.Exit(1)
		}
		if cmd.Annotations["logger"] == "server" {
			initLogger(cfg)
		} else {
			initCLILogger()
		}

		if cmd.Annotations["storage"] == "none" {
			return
		}

		// Initialize storage provider
		provider, err = storage.NewProvider(&cfg.Storage, cfg.Location())
		if err != nil {
			slog.Error("Failed to initialize storage provider", "error", err)
			os.Exit(1)
		}
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		// Cleanup
		if provider != nil {
			provider.Close()
		}
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// Initialize logger
func initLogger(cfg *config.Config) *slog.Logger {
	// Determine level from config and set it on the handler options.
	var level slog.Level
	switch strings.ToUpper(cfg.LogLevel) {
	case "DEBUG":
		level = slog.LevelDebug
	case "INFO":
		level = slog.LevelInfo
	case "WARN", "WARNING":
		level = slog.LevelWarn
	case "ERROR":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
		println("Invalid log level in config, defaulting to INFO")
	}
	handlerOpts := &slog.HandlerOptions{
		Level: level,
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, handlerOpts))
	slog.SetDefault(logger)

	slog.Debug("Logger initialized", "level", level.String())
	return logger
}

// Initialize logger with minimal output for CLI commands
func initCLILogger() {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelError,
	}))
	slog.SetDefault(logger)
}

// core is the reservation stack the server runs. CLI commands build the same
// one, so their changes also refresh the exported file.
type core struct {
	ledger   *ledger.Ledger
	exporter *ledger.FileExporter // nil when export.path is empty
	engine   *reservation.Engine
}

func newCore() *core {
	c := &core{
		ledger: ledger.New(provider, ledger.CSVOptions{BOM: cfg.Export.BOM}),
	}

	opts := reservation.Options{
		MaxReservation: cfg.MaxReservation(),
		Location:       cfg.Location(),
	}
	if cfg.Export.Path != "" {
		c.exporter = ledger.NewFileExporter(cfg.Export.Path, c.ledger)
		opts.Exporter = c.exporter
	}
	c.engine = reservation.NewEngine(provider, opts)
	return c
}

func fail(msg string, err error, args ...any) {
	slog.Error(msg, append(args, "error", err)...)
	fmt.Fprintf(os.Stderr, "%s: %v\n", msg, err)
	os.Exit(1)
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./instance/config.yaml)")
}
