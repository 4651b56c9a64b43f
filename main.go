package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/atx-oem/sesdrop/cmd"
	"github.com/atx-oem/sesdrop/config"
	"github.com/atx-oem/sesdrop/model"
	"github.com/atx-oem/sesdrop/runner"
	"github.com/atx-oem/sesdrop/storage"
)

func main() {
	outcome := model.OutcomeProcessed

	rootCmd := &cobra.Command{
		Use:   "sesdrop",
		Short: "Republish attachments from the most recent inbound SES email",
		Long: `sesdrop fetches the most recently received email object from the bucket,
checks the SES spam/virus verdicts and sender provenance headers, extracts any
file attachments, and republishes them under a timestamped folder. The first
.csv/.xlsx attachment is additionally promoted to the most_recent_data key.

Exit codes:
  0  attachments processed and published
  1  error (storage, parsing, or I/O failure)
  2  message rejected by the provenance gate
  3  duplicate content hash, nothing to do`,
		RunE: func(c *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig(c)
			if err != nil {
				return err
			}

			logger, cleanup, err := setupLogger(cfg)
			if err != nil {
				return err
			}
			defer func() {
				_ = cleanup()
			}()

			slog.SetDefault(logger)
			logger.Info("starting sesdrop",
				"bucket", cfg.Bucket, "readPrefix", cfg.ReadPrefix, "writePrefix", cfg.WritePrefix,
				"dedupMode", cfg.DedupMode, "dryRun", cfg.DryRun)

			store, err := storage.NewS3(c.Context())
			if err != nil {
				return err
			}

			r, err := runner.New(cfg, store, logger)
			if err != nil {
				return fmt.Errorf("runner.New: %w", err)
			}

			outcome, err = r.Run(c.Context())
			return err
		},
	}

	config.RegisterFlags(rootCmd)
	rootCmd.AddCommand(cmd.NewAuditCommand())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	os.Exit(outcome.ExitCode())
}

func setupLogger(cfg config.Config) (*slog.Logger, func() error, error) {
	level := new(slog.LevelVar)
	level.Set(slog.LevelInfo)

	switch cfg.LogLevel {
	case "debug":
		level.Set(slog.LevelDebug)
	case "info":
		level.Set(slog.LevelInfo)
	case "warn":
		level.Set(slog.LevelWarn)
	case "error":
		level.Set(slog.LevelError)
	}

	opts := &slog.HandlerOptions{Level: level}
	cleanup := func() error { return nil }

	if cfg.LogDir != "" {
		if err := os.MkdirAll(cfg.LogDir, 0o755); err != nil {
			return nil, cleanup, err
		}

		logFilePath := filepath.Join(cfg.LogDir, fmt.Sprintf("sesdrop-%s.log", time.Now().Format("20060102T150405")))
		file, err := os.OpenFile(logFilePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, cleanup, err
		}

		handler := slog.NewTextHandler(io.MultiWriter(os.Stdout, file), opts)
		cleanup = func() error {
			return file.Close()
		}
		return slog.New(handler), cleanup, nil
	}

	handler := slog.NewTextHandler(os.Stdout, opts)
	return slog.New(handler), cleanup, nil
}
