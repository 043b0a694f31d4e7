// Command lactation-finder assigns lactations to unassigned milking events in
// one run and prints the outcome.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"

	"go.uber.org/zap"

	"github.com/mamadbah2/milkwatch/internal/app"
	"github.com/mamadbah2/milkwatch/internal/config"
	"github.com/mamadbah2/milkwatch/internal/service/reconciliation"
	"github.com/mamadbah2/milkwatch/pkg/logger"
)

func main() {
	limit := flag.Int("limit", 0, "maximum number of milking events to process (0 = all)")
	envFile := flag.String("env", "", "path to an env file")
	flag.Parse()

	if *limit < 0 {
		fmt.Fprintln(os.Stderr, "limit must not be negative")
		os.Exit(2)
	}

	cfg, err := config.Load(*envFile)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	baseLogger := logger.Must(logger.New(cfg.Server.Debug))
	code := run(cfg, *limit, baseLogger)
	_ = baseLogger.Sync()
	os.Exit(code)
}

func run(cfg *config.Config, limit int, baseLogger *zap.Logger) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	store, err := app.OpenStore(ctx, cfg, baseLogger)
	if err != nil {
		baseLogger.Error("failed to init event store", zap.Error(err))
		return 1
	}
	defer func() {
		if err := store.Close(context.Background()); err != nil {
			baseLogger.Error("failed to close event store", zap.Error(err))
		}
	}()

	auditSink, err := app.OpenAuditSink(ctx, cfg, baseLogger)
	if err != nil {
		baseLogger.Error("failed to init audit sink", zap.Error(err))
		return 1
	}

	svc := reconciliation.NewService(store, auditSink, cfg.Reconciliation.PageSize, baseLogger.Named("svc.reconciliation"))
	report, err := svc.Run(ctx, reconciliation.RunOptions{Limit: limit})

	fmt.Printf("Processed %d of %d milking events, %d lactations assigned, %d not found.\n",
		report.Processed, report.Limit, report.Assigned, report.NotFound)
	if report.Failed > 0 || report.WriteFailed > 0 {
		fmt.Printf("%d records failed, %d audit rows could not be written.\n", report.Failed, report.WriteFailed)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "run aborted: %v\n", err)
		return 1
	}
	return 0
}
