package backend

import (
	"context"

	"github.com/jason-s-yu/skillstake/internal/models"
)

// Tables that publish change notifications.
const (
	TableLobbies             = "lobbies"
	TableLobbyParticipants   = "lobby_participants"
	TableChatMessages        = "chat_messages"
	TableFriends             = "friends"
	TableSocialNotifications = "social_notifications"
	TableUserPresence        = "user_presence"
	TableUserAchievements    = "user_achievements"
)

type Op string

const (
	OpInsert Op = "INSERT"
	OpUpdate Op = "UPDATE"
	OpDelete Op = "DELETE"
)

// Change is one row-level notification. Keys carries the filterable columns
// of the row (for example "lobby_id" on a participant change).
type Change struct {
	Table string            `json:"table"`
	Op    Op                `json:"op"`
	RowID string            `json:"row_id"`
	Keys  map[string]string `json:"keys,omitempty"`
}

// Topic selects changes on one table, optionally narrowed to rows whose
// Column equals Value. The "id" column matches Change.RowID.
type Topic struct {
	Table  string
	Column string
	Value  string
}

func TableTopic(table string) Topic { return Topic{Table: table} }

func RowTopic(table, column, value string) Topic {
	return Topic{Table: table, Column: column, Value: value}
}

func (t Topic) Matches(c Change) bool {
	if t.Table != c.Table {
		return false
	}
	if t.Column == "" {
		return true
	}
	if t.Column == "id" {
		return c.RowID == t.Value
	}
	return c.Keys[t.Column] == t.Value
}

// MatchesAny reports whether c matches at least one of topics.
func MatchesAny(topics []Topic, c Change) bool {
	for _, t := range topics {
		if t.Matches(c) {
			return true
		}
	}
	return false
}

// Feed is the change-notification stream. Delivery is best effort: a slow
// subscriber may see several changes folded into one. Subscribers only use a
// change as a cue to re-read, never as a delta.
type Feed interface {
	Publish(ctx context.Context, c Change) error
	// Subscribe returns a channel that is closed when ctx is done.
	Subscribe(ctx context.Context, topics ...Topic) (<-chan Change, error)
}

// Auditor records administrative actions. Callers treat failures as
// non-fatal.
type Auditor interface {
	LogAdminAction(ctx context.Context, action models.AdminAction) error
}

// Offer delivers c on a coalescing channel of capacity one: if a notification
// is already waiting the new one is dropped, since either triggers the same
// re-read.
func Offer(ch chan Change, c Change) {
	select {
	case ch <- c:
	default:
	}
}
