package main

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/speakloop/backend/internal/domain/calendar"
	"github.com/speakloop/backend/internal/domain/level"
	"github.com/speakloop/backend/internal/domain/ranking"
	"github.com/speakloop/backend/internal/domain/rules"
	"github.com/speakloop/backend/internal/logger"
	"github.com/speakloop/backend/internal/service"
	"github.com/speakloop/backend/internal/simulation"
	"github.com/speakloop/backend/internal/store"
)

type rootOptions struct {
	dbPath    string
	rulesFile string
	rankingTZ string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:           "progressctl",
		Short:         "Inspect levels, streaks and leaderboards",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&opts.dbPath, "db", "speakloop.db", "SQLite database path")
	root.PersistentFlags().StringVar(&opts.rulesFile, "rules", "", "YAML rules overrides")
	root.PersistentFlags().StringVar(&opts.rankingTZ, "ranking-tz", "UTC", "reference timezone for leaderboard periods")

	root.AddCommand(
		newLevelCmd(),
		newCanResetCmd(opts),
		newSchemaCmd(opts),
		newStreakCmd(opts),
		newLeaderboardCmd(opts),
		newSimulateCmd(opts),
	)
	return root
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// openService opens the store and a service over it. The caller runs the
// returned cleanup.
func openService(opts *rootOptions) (*service.ProgressService, *store.SQLiteStore, func(), error) {
	table, err := rules.LoadFile(opts.rulesFile)
	if err != nil {
		return nil, nil, nil, err
	}
	db, err := store.NewSQLite(opts.dbPath)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("open %s: %w", opts.dbPath, err)
	}

	zone := calendar.ResolveTimezone(opts.rankingTZ)
	svc := service.NewProgressService(db, logger.Discard(),
		service.WithRules(table),
		service.WithRankingZone(zone.Location),
	)
	return svc, db, func() {
		svc.Close()
		db.Close()
	}, nil
}

func newLevelCmd() *cobra.Command {
	var all bool
	cmd := &cobra.Command{
		Use:   "level [correct-count]",
		Short: "Show the level for a correct-answer count",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if all || len(args) == 0 {
				return printJSON(cmd, level.Ladder())
			}
			n, err := strconv.Atoi(args[0])
			if err != nil || n < 0 {
				return fmt.Errorf("correct count must be a non-negative integer, got %q", args[0])
			}
			return printJSON(cmd, level.Classify(n))
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "print the whole ladder")
	return cmd
}

func newCanResetCmd(opts *rootOptions) *cobra.Command {
	var tz, last, now string
	cmd := &cobra.Command{
		Use:   "can-reset",
		Short: "Report whether a daily counter last reset at --last resets now",
		RunE: func(cmd *cobra.Command, args []string) error {
			table, err := rules.LoadFile(opts.rulesFile)
			if err != nil {
				return err
			}
			zone := calendar.ResolveTimezone(tz)
			at := time.Now()
			if now != "" {
				t, err := time.Parse(time.RFC3339, now)
				if err != nil {
					return fmt.Errorf("--now: %w", err)
				}
				at = t
			}

			var lastReset *time.Time
			if last != "" {
				t, err := time.Parse(time.RFC3339, last)
				if err != nil {
					return fmt.Errorf("--last: %w", err)
				}
				lastReset = &t
			}

			return printJSON(cmd, map[string]any{
				"timezone":           zone.Name,
				"timezone_fell_back": zone.FellBack,
				"local_date":         calendar.LocalDate(at, zone.Location).String(),
				"reset_guard":        table.ResetGuard.String(),
				"can_reset":          calendar.CanResetWithGuard(zone.Location, lastReset, at, table.ResetGuard),
			})
		},
	}
	cmd.Flags().StringVar(&tz, "tz", "UTC", "IANA timezone")
	cmd.Flags().StringVar(&last, "last", "", "last reset time (RFC 3339); empty means never")
	cmd.Flags().StringVar(&now, "now", "", "evaluation time (RFC 3339); defaults to the current time")
	return cmd
}

func newSchemaCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "schema",
		Short: "Apply migrations and print the schema version",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := store.NewSQLite(opts.dbPath)
			if err != nil {
				return err
			}
			defer db.Close()

			version, dirty, err := db.SchemaVersion()
			if err != nil {
				return err
			}
			return printJSON(cmd, map[string]any{"version": version, "dirty": dirty})
		},
	}
}

func newStreakCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "streak <user-id>",
		Short: "Show a user's current and longest streak",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, _, cleanup, err := openService(opts)
			if err != nil {
				return err
			}
			defer cleanup()

			view, err := svc.Streak(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd, view)
		},
	}
}

func newLeaderboardCmd(opts *rootOptions) *cobra.Command {
	var language, period, userID string
	var limit int
	cmd := &cobra.Command{
		Use:   "leaderboard",
		Short: "Rank users by repetitions",
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := ranking.ParsePeriod(period)
			if err != nil {
				return err
			}
			svc, _, cleanup, err := openService(opts)
			if err != nil {
				return err
			}
			defer cleanup()

			view, err := svc.Leaderboard(cmd.Context(), language, p, userID, limit)
			if err != nil {
				return err
			}
			return printJSON(cmd, view)
		},
	}
	cmd.Flags().StringVar(&language, "language", "", "phrase language")
	cmd.Flags().StringVar(&period, "period", "total", "daily, weekly or total")
	cmd.Flags().StringVar(&userID, "user", "", "also report this user's rank")
	cmd.Flags().IntVar(&limit, "limit", 0, "entries to show; 0 uses the configured default")
	_ = cmd.MarkFlagRequired("language")
	return cmd
}

func newSimulateCmd(opts *rootOptions) *cobra.Command {
	var language string
	var learners, taps, workers int
	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Seed demo learners and run one practice session each",
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, db, cleanup, err := openService(opts)
			if err != nil {
				return err
			}
			defer cleanup()

			results, err := simulation.New(svc, db, language).
				Run(cmd.Context(), simulation.Demo(learners, taps), workers)
			if perr := printJSON(cmd, results); perr != nil {
				return perr
			}
			return err
		},
	}
	cmd.Flags().StringVar(&language, "language", "es", "phrase language")
	cmd.Flags().IntVar(&learners, "learners", 4, "number of demo learners")
	cmd.Flags().IntVar(&taps, "taps", 3, "taps per phrase")
	cmd.Flags().IntVar(&workers, "workers", 2, "learners played concurrently")
	return cmd
}
