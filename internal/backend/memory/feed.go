package memory

import (
	"context"
	"sync"

	"github.com/jason-s-yu/skillstake/internal/backend"
)

type subscriber struct {
	topics []backend.Topic
	ch     chan backend.Change
}

// Feed is an in-process change feed.
type Feed struct {
	mu   sync.Mutex
	subs map[*subscriber]struct{}
}

func NewFeed() *Feed {
	return &Feed{subs: make(map[*subscriber]struct{})}
}

func (f *Feed) Publish(_ context.Context, c backend.Change) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for sub := range f.subs {
		if backend.MatchesAny(sub.topics, c) {
			backend.Offer(sub.ch, c)
		}
	}
	return nil
}

func (f *Feed) Subscribe(ctx context.Context, topics ...backend.Topic) (<-chan backend.Change, error) {
	sub := &subscriber{topics: topics, ch: make(chan backend.Change, 1)}

	f.mu.Lock()
	f.subs[sub] = struct{}{}
	f.mu.Unlock()

	go func() {
		<-ctx.Done()
		f.mu.Lock()
		delete(f.subs, sub)
		close(sub.ch)
		f.mu.Unlock()
	}()
	return sub.ch, nil
}
