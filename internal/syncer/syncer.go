// Package syncer keeps a fetched resource current by re-reading it whenever
// the change feed reports a change to any of its tables.
package syncer

import (
	"context"
	"errors"
	"fmt"

	"github.com/jason-s-yu/skillstake/internal/backend"
	"github.com/sirupsen/logrus"
)

// FetchFunc reads the whole resource.
type FetchFunc[T any] func(ctx context.Context) (T, error)

// Synchronizer pairs a fetch with the topics whose changes invalidate it.
// Related collections (a lobby and its participants) belong in one fetch so
// every update is a consistent combination.
type Synchronizer[T any] struct {
	feed   backend.Feed
	fetch  FetchFunc[T]
	topics []backend.Topic
	log    logrus.FieldLogger
}

func New[T any](feed backend.Feed, fetch FetchFunc[T], logger logrus.FieldLogger, topics ...backend.Topic) *Synchronizer[T] {
	return &Synchronizer[T]{feed: feed, fetch: fetch, topics: topics, log: logger}
}

// Run subscribes, fetches once, then re-fetches after every notification and
// hands each result to onUpdate. Notifications that arrive during a fetch are
// folded into a single re-fetch. A failed re-fetch is logged and the previous
// value stands, except ErrNotFound, which ends Run because the resource is
// gone. Run returns when ctx is done or onUpdate fails.
func (s *Synchronizer[T]) Run(ctx context.Context, onUpdate func(T) error) error {
	changes, err := s.feed.Subscribe(ctx, s.topics...)
	if err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}

	v, err := s.fetch(ctx)
	if err != nil {
		return err
	}
	if err := onUpdate(v); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case _, ok := <-changes:
			if !ok {
				return ctx.Err()
			}
			v, err := s.fetch(ctx)
			if errors.Is(err, backend.ErrNotFound) {
				return err
			}
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				s.log.WithError(err).Warn("re-fetch after change failed")
				continue
			}
			if err := onUpdate(v); err != nil {
				return err
			}
		}
	}
}
