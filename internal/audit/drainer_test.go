package audit

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/skillstake/internal/models"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type chanSource chan string

func (c chanSource) Pop(ctx context.Context, timeout time.Duration) (string, bool, error) {
	select {
	case p := <-c:
		return p, true, nil
	case <-time.After(timeout):
		return "", false, nil
	case <-ctx.Done():
		return "", false, ctx.Err()
	}
}

type recordingSink struct {
	mu      sync.Mutex
	batches [][]models.AdminAction
	fail    bool
}

func (s *recordingSink) InsertAdminActions(_ context.Context, actions []models.AdminAction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return errors.New("db down")
	}
	s.batches = append(s.batches, actions)
	return nil
}

func (s *recordingSink) total() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, b := range s.batches {
		n += len(b)
	}
	return n
}

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return logger
}

func payload(t *testing.T) string {
	t.Helper()
	data, err := json.Marshal(models.AdminAction{ID: uuid.New(), ActionType: "complete_lobby", TargetID: uuid.New()})
	require.NoError(t, err)
	return string(data)
}

func TestDrainerFlushesFullBatches(t *testing.T) {
	src := make(chanSource, 8)
	sink := &recordingSink{}
	d := NewDrainer(src, sink, 2, time.Hour, quietLogger())
	d.popTimeout = 10 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() { d.Run(ctx); close(done) }()

	src <- payload(t)
	src <- payload(t)
	require.Eventually(t, func() bool { return sink.total() == 2 }, time.Second, 5*time.Millisecond)

	// a partial batch is written on shutdown
	src <- payload(t)
	require.Eventually(t, func() bool { return len(src) == 0 }, time.Second, 5*time.Millisecond)
	cancel()
	<-done

	assert.Equal(t, 3, sink.total())
	assert.Len(t, sink.batches[0], 2)
}

func TestDrainerFlushesOnTicker(t *testing.T) {
	src := make(chanSource, 1)
	sink := &recordingSink{}
	d := NewDrainer(src, sink, 100, 20*time.Millisecond, quietLogger())
	d.popTimeout = 5 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go d.Run(ctx)

	src <- payload(t)
	require.Eventually(t, func() bool { return sink.total() == 1 }, time.Second, 5*time.Millisecond)
}

func TestDrainerRetainsBatchOnFailure(t *testing.T) {
	sink := &recordingSink{fail: true}
	d := NewDrainer(make(chanSource), sink, 1, time.Hour, quietLogger())

	ctx := context.Background()
	d.add(ctx, models.AdminAction{ID: uuid.New()})
	assert.Len(t, d.batch, 1, "failed write keeps the batch")

	sink.fail = false
	d.Flush(ctx)
	assert.Empty(t, d.batch)
	assert.Equal(t, 1, sink.total())
}
