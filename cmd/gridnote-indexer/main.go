// Package main provides the gridnote-indexer binary: a workspace entity
// indexer that watches structured-data files and serves a live in-memory
// entity graph.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sort"
	"syscall"

	"github.com/gridnote/indexer/events"
	"github.com/gridnote/indexer/indexer"
	"github.com/spf13/cobra"
)

const (
	Version = "0.1.0"
	appName = "gridnote-indexer"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var configPath string
	var logLevel string

	root := &cobra.Command{
		Use:           appName,
		Short:         "Index workspace data files into a live entity graph",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to YAML config file")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(serveCmd(&configPath, &logLevel))
	root.AddCommand(scanCmd(&configPath, &logLevel))
	root.AddCommand(versionCmd())
	return root
}

func serveCmd(configPath, logLevel *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve [roots...]",
		Short: "Scan the workspace, then watch for changes until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger(*logLevel)
			cfg, err := loadConfig(*configPath, args)
			if err != nil {
				return err
			}

			svc := indexer.NewDefault(cfg, logger)
			defer svc.Close()

			svc.Bus().On(events.FileChanged, func(_ context.Context, payload any) error {
				p, ok := payload.(events.FileChangedPayload)
				if !ok {
					return nil
				}
				logger.Info("file changed",
					"path", p.FilePath,
					"event", string(p.EventType),
					"entities", len(p.AffectedEntities))
				return nil
			})

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			if err := svc.Start(ctx); err != nil {
				return fmt.Errorf("start indexer: %w", err)
			}
			logger.Info("indexer serving", "entities", svc.Store().Len())

			<-ctx.Done()
			logger.Info("shutting down")
			return nil
		},
	}
}

func scanCmd(configPath, logLevel *string) *cobra.Command {
	return &cobra.Command{
		Use:   "scan [roots...]",
		Short: "Index the workspace once and print a summary",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger(*logLevel)
			cfg, err := loadConfig(*configPath, args)
			if err != nil {
				return err
			}

			svc := indexer.NewDefault(cfg, logger)
			defer svc.Close()

			if err := svc.Scan(cmd.Context()); err != nil {
				return fmt.Errorf("scan workspace: %w", err)
			}

			entities := svc.Store().All()
			sort.Slice(entities, func(i, j int) bool { return entities[i].ID < entities[j].ID })
			for _, e := range entities {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\n", e.ID, e.Source, e.SourcePath)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d entities\n", len(entities))
			return nil
		},
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", appName, Version)
		},
	}
}

// loadConfig loads the YAML config when given, else defaults; positional
// roots override the configured roots.
func loadConfig(path string, roots []string) (*indexer.Config, error) {
	cfg := indexer.DefaultConfig()
	if path != "" {
		loaded, err := indexer.LoadConfig(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	if len(roots) > 0 {
		cfg.Roots = roots
	}
	return cfg, cfg.Validate()
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
