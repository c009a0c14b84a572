// update-metadata runs the metadata ingestion pipeline against the exchange
// service, once or on an interval.
//
// Usage:
//
//	NEPTUNE_BASE_URL=... NEPTUNE_USERNAME=... NEPTUNE_PASSWORD=... go run ./cmd/update-metadata -once
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gutsdata/explorer_backend/catalog"
	"github.com/gutsdata/explorer_backend/config"
	"github.com/gutsdata/explorer_backend/ingest"
	"github.com/gutsdata/explorer_backend/neptune"
	"github.com/gutsdata/explorer_backend/store"
	"github.com/sirupsen/logrus"
)

func main() {
	once := flag.Bool("once", false, "Run a single pass and exit")
	interval := flag.Duration("interval", time.Duration(config.EnvInt("INGEST_INTERVAL_MINUTES", 60))*time.Minute, "Time between passes")
	noLock := flag.Bool("no-lock", false, "Run without the redis lock (single instance only)")
	flag.Parse()

	logger := config.GetLogger()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	docs, err := store.Open(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open document store: %v\n", err)
		os.Exit(1)
	}
	client, err := neptune.NewClientFromEnv()
	if err != nil {
		fmt.Fprintf(os.Stderr, "exchange service client: %v\n", err)
		os.Exit(1)
	}

	var locker ingest.Locker
	if !*noLock {
		if err := config.ConnectRedisWithRetry(ctx, config.EnvInt("REDIS_CONNECT_ATTEMPTS", 5)); err != nil {
			fmt.Fprintf(os.Stderr, "connect redis (use -no-lock for a single instance): %v\n", err)
			os.Exit(1)
		}
		defer config.GetRedisDB().Close()
		locker = ingest.NewRedisLocker(config.GetRedisLock)
	}

	opts := ingest.OptionsFromEnv()
	opts.Logger = logger
	runner := ingest.NewRunner(ingest.New(client, store.NewRepository(docs), opts), locker)
	if locker != nil {
		// the explorer servers share this redis for their catalog cache
		cache := catalog.NewRedisCache()
		runner.OnPersisted(func(ctx context.Context, datasets []string) { cache.Invalidate(ctx, datasets...) })
	}

	if !*once {
		logger.WithFields(logrus.Fields{"interval": interval.String()}).Info("starting scheduled ingestion")
		runner.Loop(ctx, *interval)
		return
	}

	res, err := runner.RunOnce(ctx)
	switch {
	case errors.Is(err, ingest.ErrRunInProgress):
		logger.Info("another ingestion run holds the lock; nothing to do")
	case err != nil:
		fmt.Fprintf(os.Stderr, "ingestion failed: %v\n", err)
		os.Exit(1)
	default:
		logger.WithFields(logrus.Fields{
			"run_id":      res.RunID,
			"nothing_new": res.NothingNew,
			"ingested":    len(res.Ingested),
			"anomalies":   len(res.Anomalies),
			"persisted":   res.Persisted,
		}).Info("ingestion finished")
	}
}
