// Command dispatch runs one dispatch cycle against the pending queue and
// prints its counters. Intended for cron jobs and manual flushes.
//
//	dispatch [-batch-size N] [-migrate] [config-hash]
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/notifyhub/lotdispatch/internal/config"
	"github.com/notifyhub/lotdispatch/internal/db"
	"github.com/notifyhub/lotdispatch/internal/dispatch"
	"github.com/notifyhub/lotdispatch/internal/domain"
	"github.com/notifyhub/lotdispatch/internal/logging"
	"github.com/notifyhub/lotdispatch/internal/provider"
	"github.com/notifyhub/lotdispatch/internal/ratelimiter"
	"github.com/notifyhub/lotdispatch/internal/repository"
)

const (
	exitUsage        = 2
	defaultBatchSize = 100
)

func main() {
	migrateFirst := flag.Bool("migrate", false, "apply pending migrations before dispatching")
	batchSize := flag.Int("batch-size", defaultBatchSize, "batch size shown in the report (display only)")
	flag.IntVar(batchSize, "l", defaultBatchSize, "shorthand for -batch-size")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: %s [flags] [config-hash]\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()
	if flag.NArg() > 1 {
		flag.Usage()
		os.Exit(exitUsage)
	}
	hash := flag.Arg(0)

	if err := run(hash, *migrateFirst, *batchSize); err != nil {
		fmt.Fprintln(os.Stderr, "dispatch:", err)
		os.Exit(1)
	}
}

func run(hash string, migrateFirst bool, batchSize int) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := db.Connect(ctx, cfg)
	if err != nil {
		return err
	}
	defer pool.Close()

	if migrateFirst {
		if err := db.Migrate(cfg.DatabaseURL, cfg.MigrationsPath); err != nil {
			return err
		}
	}

	opts := []dispatch.Option{dispatch.WithLimiter(ratelimiter.New(cfg.ProviderRateLimit))}
	if cfg.DispatchGroupLock {
		opts = append(opts, dispatch.WithLeaser(repository.NewPgLeaser(pool)))
	}
	d := dispatch.NewDispatcher(
		repository.NewPgQueueRepository(pool),
		repository.NewPgContactRepository(pool),
		provider.NewHTTPClient(logger, nil),
		logger,
		opts...,
	)

	rep, err := d.ProcessPending(ctx, hash)
	if err != nil {
		logger.Error("dispatch cycle failed", zap.Error(err))
		return err
	}
	printReport(os.Stdout, rep, batchSize)
	return nil
}

func printReport(w io.Writer, rep domain.Report, batchSize int) {
	fmt.Fprintf(w, "%d total contact(s) to be added in batches of %d\n", rep.Eligible, batchSize)
	fmt.Fprintf(w, "%d total events were executed\n", rep.Processed)
	fmt.Fprintf(w, "%d total events were scheduled\n", rep.Scheduled)
}
