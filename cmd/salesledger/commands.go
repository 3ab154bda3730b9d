package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/smallbiznis/salesledger/internal/migration"
	processingdomain "github.com/smallbiznis/salesledger/internal/processing/domain"
	"github.com/smallbiznis/salesledger/internal/scheduler"
	"github.com/smallbiznis/salesledger/internal/server"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
	"gopkg.in/yaml.v3"
)

func newProcessCmd(opts *rootOptions) *cobra.Command {
	var until string

	cmd := &cobra.Command{
		Use:   "process",
		Short: "Run the pipeline once over unprocessed line items",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			req := processingdomain.RunRequest{}
			if strings.TrimSpace(until) != "" {
				parsed, err := parseDate(until)
				if err != nil {
					return fmt.Errorf("--until: %w", err)
				}
				req.Until = &parsed
			}

			var sched *scheduler.Scheduler
			return runOnce(cmd.Context(), *opts, []any{&sched}, func(ctx context.Context) error {
				res, err := sched.Trigger(ctx, "cli", req)
				if err != nil {
					return err
				}
				if err := writeYAML(cmd.OutOrStdout(), processingdomain.NewRunView(res)); err != nil {
					return err
				}
				if res.Failed > 0 {
					return fmt.Errorf("%d of %d aggregates failed to commit", res.Failed, res.Aggregates)
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&until, "until", "", "only process line items up to this reference date (YYYY-MM-DD)")
	return cmd
}

func newPreviewCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "preview <from> <to>",
		Short: "Print the aggregation of a reference date range without writing",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			from, err := parseDate(args[0])
			if err != nil {
				return fmt.Errorf("from: %w", err)
			}
			to, err := parseDate(args[1])
			if err != nil {
				return fmt.Errorf("to: %w", err)
			}

			var svc processingdomain.Service
			return runOnce(cmd.Context(), *opts, []any{&svc}, func(ctx context.Context) error {
				req := processingdomain.PreviewRequest{From: from, To: to}
				res, err := svc.Preview(ctx, req)
				if err != nil {
					return err
				}
				return writeYAML(cmd.OutOrStdout(), processingdomain.NewPreviewView(req, res))
			})
		},
	}
}

func newScheduleCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "schedule",
		Short: "Run the pipeline periodically and serve health and metrics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app := fx.New(
				coreModules(*opts),
				server.Module,
				fx.Invoke(scheduler.Start),
			)
			if err := app.Err(); err != nil {
				return err
			}

			startCtx, cancel := context.WithTimeout(cmd.Context(), startStopTimeout)
			defer cancel()
			if err := app.Start(startCtx); err != nil {
				return err
			}

			select {
			case <-cmd.Context().Done():
			case <-app.Done():
			}

			stopCtx, stopCancel := context.WithTimeout(context.Background(), startStopTimeout)
			defer stopCancel()
			return app.Stop(stopCtx)
		},
	}
}

func newMigrateCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply schema migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var migrator *migration.Migrator
			return runOnce(cmd.Context(), *opts, []any{&migrator}, func(context.Context) error {
				return migrator.Up()
			})
		},
	}
}

func parseDate(value string) (time.Time, error) {
	return time.ParseInLocation(time.DateOnly, strings.TrimSpace(value), time.UTC)
}

func writeYAML(w io.Writer, v any) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return err
	}
	return enc.Close()
}
