package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	dbpkg "github.com/yungbote/powerlens-backend/internal/data/db"
	"github.com/yungbote/powerlens-backend/internal/observability"
	"github.com/yungbote/powerlens-backend/internal/platform/dbctx"
	"github.com/yungbote/powerlens-backend/internal/platform/logger"
)

type MutationConfig struct {
	MaxAttempts          int
	RetryBase            time.Duration
	LockFinishedSessions bool
	SystemUserID         uuid.UUID
}

func (c MutationConfig) withDefaults() MutationConfig {
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 5
	}
	if c.RetryBase <= 0 {
		c.RetryBase = 10 * time.Millisecond
	}
	return c
}

// txRunner executes fn in a transaction, retrying the whole transaction when the
// store reports an allocation conflict. A caller-supplied transaction is reused as is
// and never retried here; the outermost runner owns retries.
type txRunner struct {
	db      *gorm.DB
	log     *logger.Logger
	locker  KeyLocker
	metrics *observability.Metrics
	cfg     MutationConfig
}

func newTxRunner(db *gorm.DB, log *logger.Logger, locker KeyLocker, metrics *observability.Metrics, cfg MutationConfig) *txRunner {
	return &txRunner{db: db, log: log, locker: locker, metrics: metrics, cfg: cfg.withDefaults()}
}

// Run holds lockKey (when set) across the transaction including its commit.
func (r *txRunner) Run(dbc dbctx.Context, op, lockKey string, fn func(inner dbctx.Context) error) error {
	if dbc.Tx != nil {
		return fn(dbc)
	}
	ctx := dbc.Ctx
	if ctx == nil {
		ctx = context.Background()
	}

	if lockKey != "" && r.locker != nil {
		unlock, err := r.locker.Lock(ctx, lockKey)
		if err != nil {
			return fmt.Errorf("%w: acquire lock %s: %v", ErrConflict, lockKey, err)
		}
		defer unlock()
	}

	var lastErr error
	for attempt := 0; attempt < r.cfg.MaxAttempts; attempt++ {
		if attempt > 0 {
			r.metrics.IncTxRetry(op)
			timer := time.NewTimer(r.cfg.RetryBase << (attempt - 1))
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			}
		}
		err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			return fn(dbctx.Context{Ctx: ctx, Tx: tx})
		})
		if err == nil {
			return nil
		}
		if !dbpkg.IsRetryable(err) {
			return err
		}
		lastErr = err
		r.log.Debug("transaction conflict, retrying", "op", op, "attempt", attempt+1, "error", err)
	}
	r.log.Warn("transaction retries exhausted", "op", op, "attempts", r.cfg.MaxAttempts, "error", lastErr)
	return fmt.Errorf("%w: %s gave up after %d attempts: %v", ErrConflict, op, r.cfg.MaxAttempts, lastErr)
}

func sessionLockKey(inspectionID, userID uuid.UUID) string {
	return "session:" + inspectionID.String() + ":" + userID.String()
}
