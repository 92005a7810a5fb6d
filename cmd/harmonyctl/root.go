package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"harmony/internal/orchestrator"
	"harmony/internal/platform/logger"
)

var rootCmd = &cobra.Command{
	Use:   "harmonyctl",
	Short: "Inspect the Harmony catalog and run headless simulations",
	Long: `harmonyctl works against a Harmony event catalog without starting the
server. It lists events, prints a feed's multi-angle playlist, and runs the
pulse simulator headless, printing every bus event as a JSON line.`,
	SilenceUsage: true,
}

var (
	catalogPath string
	logLevel    string
)

func init() {
	rootCmd.PersistentFlags().StringVar(&catalogPath, "catalog", "", "catalog YAML file (default is the built-in catalog)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "log level written to stderr")
}

// Execute runs the root command with ctx.
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func commandLogger(cmd *cobra.Command) *slog.Logger {
	return logger.NewWithWriter(cmd.ErrOrStderr(), logLevel, "text")
}

func loadCatalog() (*orchestrator.InMemoryRepository, error) {
	events, err := orchestrator.Load(catalogPath)
	if err != nil {
		return nil, err
	}
	return orchestrator.NewRepositoryFromEvents(events)
}

// resolveEvent returns the named event, or the first one when id is empty.
func resolveEvent(repo orchestrator.Repository, id string) (orchestrator.Event, error) {
	if id == "" {
		events := repo.List()
		if len(events) == 0 {
			return orchestrator.Event{}, fmt.Errorf("catalog is empty")
		}
		return events[0], nil
	}
	e, ok := repo.Get(orchestrator.EventID(id))
	if !ok {
		return orchestrator.Event{}, fmt.Errorf("event %q: %w", id, orchestrator.ErrEventNotFound)
	}
	return e, nil
}
