package main

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/salesledger/internal/aggregation"
	"github.com/smallbiznis/salesledger/internal/clock"
	"github.com/smallbiznis/salesledger/internal/config"
	"github.com/smallbiznis/salesledger/internal/ledgertx"
	"github.com/smallbiznis/salesledger/internal/lineitem"
	"github.com/smallbiznis/salesledger/internal/migration"
	"github.com/smallbiznis/salesledger/internal/observability"
	"github.com/smallbiznis/salesledger/internal/processing"
	"github.com/smallbiznis/salesledger/internal/scheduler"
	"github.com/smallbiznis/salesledger/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const startStopTimeout = 30 * time.Second

// coreModules wires everything a pipeline run needs.
func coreModules(opts rootOptions) fx.Option {
	return fx.Options(
		config.Module,
		fx.Decorate(opts.applyTo),
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		migration.Module,

		lineitem.Module,
		ledgertx.Module,
		aggregation.Module,
		processing.Module,
		scheduler.Module,

		fx.WithLogger(func(log *zap.Logger) fxevent.Logger {
			l := &fxevent.ZapLogger{Logger: log.Named("fx")}
			l.UseLogLevel(zapcore.DebugLevel)
			return l
		}),
	)
}

// runOnce starts a short-lived app, fills targets, calls fn and stops the app
// again.
func runOnce(ctx context.Context, opts rootOptions, targets []any, fn func(context.Context) error) error {
	app := fx.New(
		coreModules(opts),
		fx.Populate(targets...),
	)
	if err := app.Err(); err != nil {
		return err
	}

	startCtx, cancel := context.WithTimeout(ctx, startStopTimeout)
	defer cancel()
	if err := app.Start(startCtx); err != nil {
		return err
	}

	runErr := fn(ctx)

	stopCtx, stopCancel := context.WithTimeout(context.Background(), startStopTimeout)
	defer stopCancel()
	return errors.Join(runErr, app.Stop(stopCtx))
}

func RegisterSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(1)
	if err != nil {
		panic(err)
	}
	return node
}
