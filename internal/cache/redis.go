// internal/cache/redis.go
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/jason-s-yu/skillstake/internal/backend"
	"github.com/jason-s-yu/skillstake/internal/models"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// DefaultQueueName is the Redis list (queue) name for admin audit records.
var DefaultQueueName = "skillstake_admin_actions"

// DefaultChannelPrefix prefixes the pub/sub channel of every table.
var DefaultChannelPrefix = "skillstake:changes"

// Connect returns a client built from environment variables:
//   - REDIS_ADDR (default "localhost:6379")
//   - REDIS_DB (optional, default 0)
func Connect(ctx context.Context) (*redis.Client, error) {
	addr := getEnv("REDIS_ADDR", "localhost:6379")
	dbIdx := getEnvInt("REDIS_DB", 0)

	rdb := redis.NewClient(&redis.Options{
		Addr: addr,
		DB:   dbIdx,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", addr, err)
	}
	return rdb, nil
}

// Feed carries change notifications over Redis pub/sub, one channel per
// table, so every server instance sees writes made by the others.
type Feed struct {
	rdb    *redis.Client
	prefix string
	log    logrus.FieldLogger
}

// NewFeed uses CHANGE_CHANNEL_PREFIX, falling back to DefaultChannelPrefix.
func NewFeed(rdb *redis.Client, logger logrus.FieldLogger) *Feed {
	return &Feed{rdb: rdb, prefix: getEnv("CHANGE_CHANNEL_PREFIX", DefaultChannelPrefix), log: logger}
}

func (f *Feed) channel(table string) string {
	return f.prefix + ":" + table
}

func (f *Feed) Publish(ctx context.Context, c backend.Change) error {
	data, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal change: %w", err)
	}
	if err := f.rdb.Publish(ctx, f.channel(c.Table), data).Err(); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", f.channel(c.Table), err)
	}
	return nil
}

// Subscribe listens on the channels of the topics' tables and filters rows
// locally. The returned channel holds at most one pending change.
func (f *Feed) Subscribe(ctx context.Context, topics ...backend.Topic) (<-chan backend.Change, error) {
	seen := make(map[string]bool, len(topics))
	var channels []string
	for _, t := range topics {
		if ch := f.channel(t.Table); !seen[ch] {
			seen[ch] = true
			channels = append(channels, ch)
		}
	}

	pubsub := f.rdb.Subscribe(ctx, channels...)
	// Wait for the subscription to be confirmed so no change published after
	// Subscribe returns is missed.
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, fmt.Errorf("failed to subscribe to %v: %w", channels, err)
	}

	out := make(chan backend.Change, 1)
	go func() {
		defer close(out)
		defer pubsub.Close()
		msgs := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				var c backend.Change
				if err := json.Unmarshal([]byte(msg.Payload), &c); err != nil {
					f.log.WithError(err).WithField("channel", msg.Channel).Warn("invalid change payload")
					continue
				}
				if backend.MatchesAny(topics, c) {
					backend.Offer(out, c)
				}
			}
		}
	}()
	return out, nil
}

// AuditQueue pushes admin actions onto a Redis list for the audit drainer.
type AuditQueue struct {
	rdb  *redis.Client
	name string
}

// NewAuditQueue uses AUDIT_QUEUE_NAME, falling back to DefaultQueueName.
func NewAuditQueue(rdb *redis.Client) *AuditQueue {
	return &AuditQueue{rdb: rdb, name: QueueName()}
}

// QueueName is the list both the producer and the drainer use.
func QueueName() string {
	return getEnv("AUDIT_QUEUE_NAME", DefaultQueueName)
}

// LogAdminAction serializes the action to JSON, then pushes it to the queue.
// This does not block the calling logic (other than a quick network send).
func (q *AuditQueue) LogAdminAction(ctx context.Context, action models.AdminAction) error {
	data, err := json.Marshal(action)
	if err != nil {
		return fmt.Errorf("failed to marshal AdminAction: %w", err)
	}
	if err := q.rdb.RPush(ctx, q.name, data).Err(); err != nil {
		return fmt.Errorf("failed to RPush to Redis list '%s': %w", q.name, err)
	}
	return nil
}

// getEnv is a helper to read an environment variable or return a default value.
func getEnv(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

// getEnvInt is a helper to parse an environment variable as integer, else a default value.
func getEnvInt(key string, def int) int {
	s := os.Getenv(key)
	if s == "" {
		return def
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return v
}
