package main

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"habittracker/internal/analytics"
	schema "habittracker/internal/db"
	"habittracker/internal/repository"
	"habittracker/pkg/mq"
	"habittracker/pkg/outbox"
	"habittracker/pkg/rbac"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply the database schema",
	RunE: func(cmd *cobra.Command, args []string) error {
		e, ctx, cleanup, err := setup(cmd)
		if err != nil {
			return err
		}
		defer cleanup()

		if err := schema.Migrate(ctx, e.pool, e.log); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "schema applied")
		return nil
	},
}

var outboxCmd = &cobra.Command{
	Use:   "outbox",
	Short: "Inspect and replay outbox events",
}

var replayLimit int

var outboxReplayCmd = &cobra.Command{
	Use:   "replay [event-id]",
	Short: "Republish one outbox event, or every failed event with --failed",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		failedOnly, _ := cmd.Flags().GetBool("failed")
		if len(args) == 0 && !failedOnly {
			return errors.New("pass an event id or --failed")
		}

		e, ctx, cleanup, err := setup(cmd)
		if err != nil {
			return err
		}
		defer cleanup()

		publisher, err := mq.NewPublisher(e.cfg.MQ.URL)
		if err != nil {
			return err
		}
		defer publisher.Close()

		replay := outbox.NewReplayService(outbox.NewRepository(e.pool), publisher, e.log)
		if failedOnly {
			n, err := replay.ReplayFailedEvents(ctx, replayLimit)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "replayed %d failed events\n", n)
			return nil
		}

		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid event id %q", args[0])
		}
		if err := replay.ReplayEvent(ctx, id); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "replayed event %d\n", id)
		return nil
	},
}

var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Manage users",
}

var userRoleCmd = &cobra.Command{
	Use:   "set-role <email> <role>",
	Short: "Change a user's role (user or admin)",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if !rbac.ValidRole(args[1]) {
			return fmt.Errorf("unknown role %q", args[1])
		}
		e, ctx, cleanup, err := setup(cmd)
		if err != nil {
			return err
		}
		defer cleanup()

		if err := repository.NewUserRepository(e.pool, e.log).SetRole(ctx, args[0], args[1]); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return fmt.Errorf("no user with email %s", args[0])
			}
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s is now %s\n", args[0], args[1])
		return nil
	},
}

var reportTZ string

var reportCmd = &cobra.Command{
	Use:   "report <email>",
	Short: "Print a user's streaks and completion rates",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, ctx, cleanup, err := setup(cmd)
		if err != nil {
			return err
		}
		defer cleanup()

		loc := e.cfg.Location()
		if reportTZ != "" {
			if loc, err = time.LoadLocation(reportTZ); err != nil {
				return fmt.Errorf("unknown time zone %q", reportTZ)
			}
		}

		u, err := repository.NewUserRepository(e.pool, e.log).FindByEmail(ctx, args[0])
		if err != nil {
			return fmt.Errorf("find user: %w", err)
		}
		habits, err := repository.NewHabitRepository(e.pool, e.log).ListByUser(ctx, u.ID, false)
		if err != nil {
			return err
		}
		entries, err := repository.NewEntryRepository(e.pool, e.log).ListByUser(ctx, u.ID)
		if err != nil {
			return err
		}

		now := time.Now().In(loc)
		enhanced := analytics.Enhance(habits, entries, now)
		printReport(cmd.OutOrStdout(), u.DisplayName, now, enhanced, analytics.Summarize(enhanced))
		return nil
	},
}

func init() {
	outboxReplayCmd.Flags().Bool("failed", false, "Replay every failed event")
	outboxReplayCmd.Flags().IntVar(&replayLimit, "limit", 100, "Maximum failed events to replay")
	outboxCmd.AddCommand(outboxReplayCmd)

	userCmd.AddCommand(userRoleCmd)

	reportCmd.Flags().StringVar(&reportTZ, "tz", "", "Time zone used for today (default: app.timezone)")
}
