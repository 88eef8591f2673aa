package chat

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/jason-s-yu/skillstake/internal/models"
)

type EntryState string

const (
	// Pending entries were appended locally and await the server's copy.
	Pending   EntryState = "pending"
	Confirmed EntryState = "confirmed"
)

// Entry is one line of a conversation. A pending entry has no server id yet.
type Entry struct {
	ClientID string             `json:"client_id,omitempty"`
	State    EntryState         `json:"state"`
	Message  models.ChatMessage `json:"message"`
}

// SendFunc delivers a message body tagged with the client's temporary id.
type SendFunc func(ctx context.Context, clientID, body string) (models.ChatMessage, error)

// Conversation is the chat view-model: a draft plus an ordered list of
// messages in which an optimistic local copy and the pushed server copy of the
// same message collapse into one entry.
type Conversation struct {
	mu      sync.Mutex
	draft   string
	entries []Entry
	send    SendFunc
	newID   func() string
}

func NewConversation(send SendFunc) *Conversation {
	return &Conversation{
		send:  send,
		newID: func() string { return uuid.NewString() },
	}
}

// Load replaces the confirmed history. Pending entries that the history does
// not yet contain are kept at the end.
func (c *Conversation) Load(msgs []models.ChatMessage) {
	c.mu.Lock()
	defer c.mu.Unlock()

	pending := make([]Entry, 0)
	for _, e := range c.entries {
		if e.State == Pending {
			pending = append(pending, e)
		}
	}

	c.entries = c.entries[:0]
	for _, m := range msgs {
		c.receiveLocked(m)
	}
	for _, e := range pending {
		if c.indexByClient(e.ClientID) < 0 {
			c.entries = append(c.entries, e)
		}
	}
}

func (c *Conversation) SetDraft(s string) {
	c.mu.Lock()
	c.draft = s
	c.mu.Unlock()
}

func (c *Conversation) Draft() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.draft
}

// Send validates the draft, appends it as a pending entry and delivers it.
// A validation failure leaves the draft untouched; a delivery failure drops
// the pending entry and restores the draft for retry.
func (c *Conversation) Send(ctx context.Context) (models.ChatMessage, error) {
	c.mu.Lock()
	original := c.draft
	body, err := ValidateMessage(original)
	if err != nil {
		c.mu.Unlock()
		return models.ChatMessage{}, err
	}
	clientID := c.newID()
	c.entries = append(c.entries, Entry{
		ClientID: clientID,
		State:    Pending,
		Message:  models.ChatMessage{ClientID: clientID, Message: body, MessageType: models.MessageText},
	})
	c.draft = ""
	c.mu.Unlock()

	msg, err := c.send(ctx, clientID, body)

	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		if i := c.indexByClient(clientID); i >= 0 && c.entries[i].State == Pending {
			c.entries = append(c.entries[:i], c.entries[i+1:]...)
		}
		if c.draft == "" {
			c.draft = original
		}
		return models.ChatMessage{}, err
	}
	if msg.ClientID == "" {
		msg.ClientID = clientID
	}
	c.receiveLocked(msg)
	return msg, nil
}

// Receive merges a pushed message and reports whether it was new to the
// conversation. A message already present by server id is ignored.
func (c *Conversation) Receive(msg models.ChatMessage) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.receiveLocked(msg)
}

func (c *Conversation) receiveLocked(msg models.ChatMessage) bool {
	for _, e := range c.entries {
		if e.State == Confirmed && e.Message.ID == msg.ID {
			return false
		}
	}
	if msg.ClientID != "" {
		if i := c.indexByClient(msg.ClientID); i >= 0 && c.entries[i].State == Pending {
			c.entries[i].State = Confirmed
			c.entries[i].Message = msg
			return true
		}
	}
	c.entries = append(c.entries, Entry{ClientID: msg.ClientID, State: Confirmed, Message: msg})
	return true
}

func (c *Conversation) indexByClient(clientID string) int {
	if clientID == "" {
		return -1
	}
	for i, e := range c.entries {
		if e.ClientID == clientID {
			return i
		}
	}
	return -1
}

// Messages returns a copy of the entries in display order.
func (c *Conversation) Messages() []Entry {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Entry(nil), c.entries...)
}
