package ingest

import (
	"context"
	"errors"
	"time"

	"github.com/bsm/redislock"
	"github.com/gutsdata/explorer_backend/config"
	"github.com/sirupsen/logrus"
)

const (
	LockKey        = "lock:update-metadata"
	DefaultLockTTL = 15 * time.Minute
)

var (
	ErrRunInProgress   = errors.New("an ingestion run is already in progress")
	ErrLockUnavailable = errors.New("ingestion lock service not ready")
)

// Locker obtains the cross-instance lock that keeps ingestion single-run.
type Locker interface {
	Obtain(ctx context.Context, key string, ttl time.Duration) (release func(context.Context) error, err error)
}

// RedisLocker is a Locker backed by redislock. The client is looked up on
// every Obtain since redis may connect after the locker is built.
type RedisLocker struct {
	client func() *redislock.Client
}

func NewRedisLocker(client func() *redislock.Client) *RedisLocker {
	return &RedisLocker{client: client}
}

func (l *RedisLocker) Obtain(ctx context.Context, key string, ttl time.Duration) (func(context.Context) error, error) {
	client := l.client()
	if client == nil {
		return nil, ErrLockUnavailable
	}
	lock, err := client.Obtain(ctx, key, ttl, nil)
	if errors.Is(err, redislock.ErrNotObtained) {
		return nil, ErrRunInProgress
	}
	if err != nil {
		return nil, err
	}
	return lock.Release, nil
}

// Runner serializes pipeline runs. A nil Locker runs unlocked, for single
// process deployments.
type Runner struct {
	pipeline  *Pipeline
	locker    Locker
	ttl       time.Duration
	logger    *logrus.Logger
	persisted []func(ctx context.Context, datasets []string)
}

func NewRunner(p *Pipeline, locker Locker) *Runner {
	return &Runner{
		pipeline: p,
		locker:   locker,
		ttl:      time.Duration(config.EnvInt("INGEST_LOCK_TTL_SECONDS", int(DefaultLockTTL/time.Second))) * time.Second,
		logger:   p.opts.Logger,
	}
}

// OnPersisted registers fn to be called with the datasets a successful run wrote.
func (r *Runner) OnPersisted(fn func(ctx context.Context, datasets []string)) {
	r.persisted = append(r.persisted, fn)
}

// RunOnce runs the pipeline while holding the lock. It returns
// ErrRunInProgress without running when another instance holds it.
func (r *Runner) RunOnce(ctx context.Context) (Result, error) {
	if r.locker != nil {
		release, err := r.locker.Obtain(ctx, LockKey, r.ttl)
		if err != nil {
			return Result{}, err
		}
		defer func() {
			if err := release(context.WithoutCancel(ctx)); err != nil {
				r.logger.WithField("lock", LockKey).Warn("failed to release ingestion lock: " + err.Error())
			}
		}()
	}
	res, err := r.pipeline.Run(ctx)
	if err != nil {
		return res, err
	}
	for _, fn := range r.persisted {
		fn(ctx, res.Persisted)
	}
	return res, nil
}

// Loop runs the pipeline immediately and then every interval until ctx is done.
func (r *Runner) Loop(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		r.logResult(r.RunOnce(ctx))
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (r *Runner) logResult(res Result, err error) {
	switch {
	case errors.Is(err, ErrRunInProgress):
		r.logger.Info("ingestion run skipped: another run holds the lock")
	case err != nil:
		// already logged by the pipeline
	default:
		r.logger.WithFields(logrus.Fields{
			"run_id":      res.RunID,
			"nothing_new": res.NothingNew,
			"candidates":  res.Candidates,
			"ingested":    len(res.Ingested),
			"anomalies":   len(res.Anomalies),
			"warnings":    len(res.Warnings),
		}).Info("ingestion run finished")
	}
}
