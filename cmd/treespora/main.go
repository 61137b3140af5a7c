// Package main provides the treespora binary entry point.
// Treespora turns a user's goal into an AI plan summary and a day-by-day
// task plan, stored in a relational database and served over HTTP.
package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"runtime"
	"strings"

	"github.com/spf13/cobra"

	// Register LLM providers via init()
	_ "github.com/treespora/planner/llm/providers"

	"github.com/treespora/planner/config"
)

const (
	Version   = "0.1.0"
	BuildTime = "dev"
	appName   = "treespora"
)

func main() {
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			_, _ = fmt.Fprintf(os.Stderr, "PANIC: %v\nStack trace:\n%s\n", r, string(buf[:n]))
			os.Exit(2)
		}
	}()

	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// globalOptions are the persistent flags shared by every subcommand.
type globalOptions struct {
	configPath string
	logLevel   string
}

func rootCmd() *cobra.Command {
	opts := &globalOptions{}

	cmd := &cobra.Command{
		Use:   appName,
		Short: "Goal planning backend",
		Long: `Treespora turns a goal into an AI-generated plan summary and a
day-by-day task plan.

It provides:
- GET  /goals/{goal_id}/plan/summary   (cached, generated on first read)
- POST /goals/{goal_id}/task_plan      (regenerates the day-by-day tasks)
- GET  /goals/{goal_id}/tasks          (tasks of one day)

Configuration is read from treespora.yaml, ~/.config/treespora/config.yaml
and TREESPORA_* / DATABASE_URL / DEEPSEEK_* environment variables.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "Config file path (YAML)")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "Log level (debug, info, warn, error); overrides log.level")

	cmd.AddCommand(
		serveCmd(opts),
		migrateCmd(opts),
		summaryCmd(opts),
		taskPlanCmd(opts),
		tasksCmd(opts),
		goalCmd(opts),
		llmStatsCmd(opts),
		configCmd(),
		&cobra.Command{
			Use:   "version",
			Short: "Print version information",
			Run: func(cmd *cobra.Command, args []string) {
				fmt.Fprintf(cmd.OutOrStdout(), "%s version %s (build: %s)\n", appName, Version, BuildTime)
			},
		},
	)

	return cmd
}

// setup loads the configuration and installs the process logger.
func (o *globalOptions) setup(stderr io.Writer) (*config.Config, *slog.Logger, error) {
	bootstrap := newLogger(stderr, o.logLevel, "text")

	cfg, err := config.NewLoader(bootstrap).Load(o.configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}

	level := cfg.Log.Level
	if o.logLevel != "" {
		level = o.logLevel
	}
	logger := newLogger(stderr, level, cfg.Log.Format)
	slog.SetDefault(logger)
	return cfg, logger, nil
}

func newLogger(w io.Writer, level, format string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(level)}
	if format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
