// Package audit drains the admin-action queue into Postgres in batches.
package audit

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/jason-s-yu/skillstake/internal/models"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// Source yields raw queue entries. ok is false when timeout elapsed with
// nothing to pop.
type Source interface {
	Pop(ctx context.Context, timeout time.Duration) (payload string, ok bool, err error)
}

// Sink persists a batch of actions.
type Sink interface {
	InsertAdminActions(ctx context.Context, actions []models.AdminAction) error
}

// RedisSource pops from a Redis list with BLPOP.
type RedisSource struct {
	Client *redis.Client
	Queue  string
}

func (r RedisSource) Pop(ctx context.Context, timeout time.Duration) (string, bool, error) {
	res, err := r.Client.BLPop(ctx, timeout, r.Queue).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	// res[0] is the queue name and res[1] the payload.
	if len(res) < 2 {
		return "", false, nil
	}
	return res[1], true, nil
}

// Drainer accumulates actions and writes them when the batch is full or the
// flush interval elapses.
type Drainer struct {
	src        Source
	sink       Sink
	batchSize  int
	flushDelay time.Duration
	popTimeout time.Duration
	log        logrus.FieldLogger

	batchMu sync.Mutex
	batch   []models.AdminAction
}

func NewDrainer(src Source, sink Sink, batchSize int, flushDelay time.Duration, logger logrus.FieldLogger) *Drainer {
	if batchSize < 1 {
		batchSize = 1
	}
	return &Drainer{
		src:        src,
		sink:       sink,
		batchSize:  batchSize,
		flushDelay: flushDelay,
		popTimeout: 3 * time.Second,
		log:        logger,
		batch:      make([]models.AdminAction, 0, batchSize),
	}
}

// Run pops until ctx is done, then writes whatever is still buffered.
func (d *Drainer) Run(ctx context.Context) {
	ticker := time.NewTicker(d.flushDelay)
	defer ticker.Stop()

	d.log.Info("audit drainer started")
	defer func() {
		// ctx is already cancelled; the final write gets its own deadline.
		final, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		d.Flush(final)
		d.log.Info("audit drainer stopped")
	}()

	for {
		select {
		case <-ctx.Done():
			return

		case <-ticker.C:
			d.Flush(ctx)

		default:
			payload, ok, err := d.src.Pop(ctx, d.popTimeout)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				d.log.WithError(err).Error("audit queue pop failed")
				continue
			}
			if !ok {
				continue
			}

			var action models.AdminAction
			if err := json.Unmarshal([]byte(payload), &action); err != nil {
				d.log.WithError(err).Warn("invalid admin action record")
				continue
			}
			d.add(ctx, action)
		}
	}
}

func (d *Drainer) add(ctx context.Context, action models.AdminAction) {
	d.batchMu.Lock()
	defer d.batchMu.Unlock()

	d.batch = append(d.batch, action)
	if len(d.batch) >= d.batchSize {
		d.flushLocked(ctx)
	}
}

// Flush writes the buffered batch. A failed write keeps the batch for the
// next attempt; inserts skip ids that already exist.
func (d *Drainer) Flush(ctx context.Context) {
	d.batchMu.Lock()
	defer d.batchMu.Unlock()
	d.flushLocked(ctx)
}

func (d *Drainer) flushLocked(ctx context.Context) {
	if len(d.batch) == 0 {
		return
	}
	batchCopy := make([]models.AdminAction, len(d.batch))
	copy(batchCopy, d.batch)

	if err := d.sink.InsertAdminActions(ctx, batchCopy); err != nil {
		d.log.WithError(err).WithField("count", len(batchCopy)).Error("failed to flush admin actions")
		return
	}
	d.batch = d.batch[:0]
	d.log.WithField("count", len(batchCopy)).Debug("flushed admin actions")
}
