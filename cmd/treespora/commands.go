package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"cloud.google.com/go/civil"
	"github.com/spf13/cobra"

	"github.com/treespora/planner/config"
	"github.com/treespora/planner/planning"
)

// withApp loads the configuration, builds the App and runs fn with a
// context cancelled on SIGINT/SIGTERM.
func withApp(cmd *cobra.Command, opts *globalOptions, fn func(ctx context.Context, app *App) error) error {
	cfg, logger, err := opts.setup(cmd.ErrOrStderr())
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := NewApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer app.Close()
	return fn(ctx, app)
}

func serveCmd(opts *globalOptions) *cobra.Command {
	var migrate bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, app *App) error {
				if migrate {
					if _, err := app.store.Migrate(ctx, 0); err != nil {
						return fmt.Errorf("migrate: %w", err)
					}
				}
				version, err := app.store.SchemaVersion(ctx)
				if err != nil {
					return fmt.Errorf("database is not migrated, run `%s migrate`: %w", appName, err)
				}
				app.logger.Info("Database schema", "version", version, "dialect", app.store.Dialect())
				return app.Serve(ctx)
			})
		},
	}
	cmd.Flags().BoolVar(&migrate, "migrate", false, "Apply pending migrations before serving")
	return cmd
}

func migrateCmd(opts *globalOptions) *cobra.Command {
	var target int
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, app *App) error {
				applied, err := app.store.Migrate(ctx, target)
				if err != nil {
					return err
				}
				version, err := app.store.SchemaVersion(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "applied %d migration(s), schema version %d\n", len(applied), version)
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&target, "target", 0, "Highest migration to apply (0 = latest)")
	return cmd
}

func summaryCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "summary <goal-id>",
		Short: "Print the plan summary of a goal, generating it if needed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, app *App) error {
				summary, err := app.summarizer.GetOrGenerate(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), summary)
			})
		},
	}
}

func taskPlanCmd(opts *globalOptions) *cobra.Command {
	var startDate string
	cmd := &cobra.Command{
		Use:   "task-plan <goal-id>",
		Short: "Regenerate the day-by-day task plan of a goal",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var start civil.Date
			if startDate != "" {
				d, err := civil.ParseDate(startDate)
				if err != nil {
					return fmt.Errorf("invalid --start-date %q: %w", startDate, err)
				}
				start = d
			}
			return withApp(cmd, opts, func(ctx context.Context, app *App) error {
				plan, err := app.generator.Generate(ctx, args[0], start)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), plan)
			})
		},
	}
	cmd.Flags().StringVar(&startDate, "start-date", "", "First day of the plan (YYYY-MM-DD)")
	return cmd
}

func tasksCmd(opts *globalOptions) *cobra.Command {
	var day int
	cmd := &cobra.Command{
		Use:   "tasks <goal-id>",
		Short: "Print the tasks of one day",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, app *App) error {
				tasks, err := app.reader.TasksForDay(ctx, args[0], day)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), tasks)
			})
		},
	}
	cmd.Flags().IntVar(&day, "day", 0, "Day index, 0 is the first day")

	cmd.AddCommand(&cobra.Command{
		Use:   "complete <task-id>",
		Short: "Mark a task as completed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, app *App) error {
				if err := app.store.CompleteTask(ctx, args[0]); err != nil {
					return fmt.Errorf("complete task %s: %w", args[0], err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "completed %s\n", args[0])
				return nil
			})
		},
	})
	return cmd
}

func goalCmd(opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "goal",
		Short: "Manage goals",
	}

	var (
		goal       planning.Goal
		targetDate string
		startDate  string
		age        int
		language   string
	)
	create := &cobra.Command{
		Use:   "create",
		Short: "Create a goal (and optionally its owner's profile)",
		RunE: func(cmd *cobra.Command, args []string) error {
			if goal.Title == "" {
				return fmt.Errorf("--title is required")
			}
			var err error
			if goal.TargetDate, err = parseDateFlag("target-date", targetDate); err != nil {
				return err
			}
			if goal.StartDate, err = parseDateFlag("start-date", startDate); err != nil {
				return err
			}
			return withApp(cmd, opts, func(ctx context.Context, app *App) error {
				if goal.UserID != "" && (age > 0 || language != "") {
					profile := &planning.Profile{ID: goal.UserID, LanguageCode: language}
					if age > 0 {
						profile.Age = &age
					}
					if err := app.store.UpsertProfile(ctx, profile); err != nil {
						return err
					}
				}
				if err := app.store.CreateGoal(ctx, &goal); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), goal.ID)
				return nil
			})
		},
	}
	create.Flags().StringVar(&goal.Title, "title", "", "Goal title")
	create.Flags().StringVar(&goal.Description, "description", "", "Goal description")
	create.Flags().StringVar(&goal.Category, "category", "", "Goal category")
	create.Flags().StringVar(&goal.UserID, "user", "", "Owning user id")
	create.Flags().StringVar(&targetDate, "target-date", "", "Target date (YYYY-MM-DD)")
	create.Flags().StringVar(&startDate, "start-date", "", "Start date (YYYY-MM-DD)")
	create.Flags().IntVar(&age, "age", 0, "Owner age, stored on the profile")
	create.Flags().StringVar(&language, "language", "", "Owner language code, stored on the profile")

	cmd.AddCommand(create)
	return cmd
}

func llmStatsCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "llm-stats",
		Short: "Summarize recorded LLM calls per capability",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, app *App) error {
				stats, err := app.store.LLMCallStats(ctx)
				if err != nil {
					return err
				}
				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
				fmt.Fprintln(w, "CAPABILITY\tCALLS\tFAILURES\tTOKENS")
				for _, s := range stats {
					fmt.Fprintf(w, "%s\t%d\t%d\t%d\n", s.Capability, s.Calls, s.Failures, s.Tokens)
				}
				return w.Flush()
			})
		},
	}
}

func configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage configuration files",
	}

	var force, user bool
	initCmd := &cobra.Command{
		Use:   "init [path]",
		Short: "Write the default configuration",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if user {
				if len(args) == 1 {
					return fmt.Errorf("--user does not take a path")
				}
				path, err := config.NewLoader(nil).EnsureUserConfig()
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "user config at %s\n", path)
				return nil
			}

			path := config.ProjectConfigFile
			if len(args) == 1 {
				path = args[0]
			}
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", path)
			}
			if err := config.DefaultConfig().SaveToFile(path); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", path)
			return nil
		},
	}
	initCmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing file")
	initCmd.Flags().BoolVar(&user, "user", false, "Create ~/.config/treespora/config.yaml if it does not exist")

	cmd.AddCommand(initCmd)
	return cmd
}

func parseDateFlag(name, value string) (civil.Date, error) {
	if value == "" {
		return civil.Date{}, nil
	}
	d, err := civil.ParseDate(value)
	if err != nil {
		return civil.Date{}, fmt.Errorf("invalid --%s %q: %w", name, value, err)
	}
	return d, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
