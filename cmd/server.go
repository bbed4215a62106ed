package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mattn/go-colorable"
	"github.com/spf13/cobra"
	"github.com/topi314/tint"

	"github.com/topi314/gosign/docsign"
	"github.com/topi314/gosign/docsign/database"
	"github.com/topi314/gosign/internal/blob"
	"github.com/topi314/gosign/internal/ver"
	"github.com/topi314/gosign/server"
)

func NewServerCmd(parent *cobra.Command, version ver.Version) {
	cmd := &cobra.Command{
		Use:     "server",
		GroupID: "server",
		Short:   "Runs the gosign server",
		Example: `gosign server --config gosign.toml

Will start the server with the settings from gosign.toml`,
		Args:              cobra.NoArgs,
		ValidArgsFunction: cobra.NoFileCompletions,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := server.LoadConfig(configPath(cmd))
			if err != nil {
				return err
			}
			setupLogger(cfg.Log)

			slog.Info("Starting gosign...", slog.String("version", version.Version), slog.String("commit", version.Commit()))
			slog.Info("Config", slog.String("config", cfg.String()))

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runServer(ctx, version, cfg)
		},
	}

	parent.AddCommand(cmd)
}

func runServer(ctx context.Context, version ver.Version, cfg server.Config) error {
	shutdownOtel, err := server.SetupOtel(version.Version, cfg.Otel)
	if err != nil {
		return fmt.Errorf("failed to setup otel: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if shutdownErr := shutdownOtel(shutdownCtx); shutdownErr != nil {
			slog.Error("Error while shutting down otel", tint.Err(shutdownErr))
		}
	}()

	dbCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	db, err := database.New(dbCtx, cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			slog.Error("Error while closing database", tint.Err(closeErr))
		}
	}()

	blobs, err := blob.New(cfg.Storage.Path)
	if err != nil {
		return err
	}

	service, err := docsign.New(db, blobs, docsign.Config{
		MaxDocumentSize: cfg.MaxDocumentSize,
		Timezone:        cfg.Signing.Timezone,
	})
	if err != nil {
		return err
	}

	signer, err := server.NewSigner(cfg.JWTSecret)
	if err != nil {
		return fmt.Errorf("failed to create token signer: %w", err)
	}

	s := server.NewServer(version, cfg, service, signer)
	go s.Start()
	defer s.Close()

	slog.Info("gosign listening", slog.String("listen_addr", cfg.ListenAddr))
	<-ctx.Done()
	slog.Info("Shutting down gosign...")
	return nil
}

func setupLogger(cfg server.LogConfig) {
	var handler slog.Handler
	switch cfg.Format {
	case server.LogFormatJSON:
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			AddSource: cfg.AddSource,
			Level:     cfg.Level,
		})
	default:
		handler = tint.NewHandler(colorable.NewColorable(os.Stdout), &tint.Options{
			AddSource: cfg.AddSource,
			Level:     cfg.Level,
			NoColor:   cfg.NoColor,
		})
	}
	slog.SetDefault(slog.New(handler))
}
