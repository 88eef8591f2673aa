// internal/lobby/list.go
package lobby

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/jason-s-yu/skillstake/internal/backend"
	"github.com/jason-s-yu/skillstake/internal/models"
	"github.com/shopspring/decimal"
)

// SortKey orders a lobby list.
type SortKey string

const (
	SortNewest    SortKey = "newest"
	SortOldest    SortKey = "oldest"
	SortPriceLow  SortKey = "price-low"
	SortPriceHigh SortKey = "price-high"
)

func (k SortKey) Valid() bool {
	switch k {
	case SortNewest, SortOldest, SortPriceLow, SortPriceHigh:
		return true
	}
	return false
}

// Filter narrows a lobby list. Empty or "all" string fields do not constrain.
type Filter struct {
	Status   string
	Region   string
	Platform string
	MinPrice *decimal.Decimal
	MaxPrice *decimal.Decimal
	// Search is passed to the backend search procedure, never matched locally.
	Search string
	Sort   SortKey
	// Mine keeps lobbies the viewer created or actively participates in.
	Mine bool
	// History admits completed lobbies, which the public list always hides.
	History bool
}

// ParseFilter reads a filter from query parameters: status, region, platform,
// min_price, max_price, search, sort, mine, history.
func ParseFilter(q url.Values) (Filter, error) {
	f := Filter{
		Status:   q.Get("status"),
		Region:   q.Get("region"),
		Platform: q.Get("platform"),
		Search:   q.Get("search"),
		Sort:     SortKey(q.Get("sort")),
		Mine:     q.Get("mine") == "true",
		History:  q.Get("history") == "true",
	}
	if f.Sort == "" {
		f.Sort = SortNewest
	}
	if !f.Sort.Valid() {
		return Filter{}, fmt.Errorf("unknown sort %q: %w", f.Sort, backend.ErrValidation)
	}
	if f.Status != "" && f.Status != "all" && !models.LobbyStatus(f.Status).Valid() {
		return Filter{}, fmt.Errorf("unknown status %q: %w", f.Status, backend.ErrValidation)
	}

	for key, dst := range map[string]**decimal.Decimal{"min_price": &f.MinPrice, "max_price": &f.MaxPrice} {
		raw := q.Get(key)
		if raw == "" {
			continue
		}
		d, err := decimal.NewFromString(raw)
		if err != nil {
			return Filter{}, fmt.Errorf("invalid %s %q: %w", key, raw, backend.ErrValidation)
		}
		*dst = &d
	}
	return f, nil
}

func unconstrained(v string) bool {
	return v == "" || v == "all"
}

// ApplyFilter returns the lobbies that pass f in the order f.Sort asks for.
// participating holds the ids of lobbies the viewer is active in and is only
// consulted for Mine. Private lobbies only show up under Mine. The input
// slice is not modified.
func ApplyFilter(lobbies []models.Lobby, f Filter, viewer uuid.UUID, participating map[uuid.UUID]bool) []models.Lobby {
	out := make([]models.Lobby, 0, len(lobbies))
	for _, l := range lobbies {
		if l.Status == models.LobbyCompleted && !f.History {
			continue
		}
		if !unconstrained(f.Status) && string(l.Status) != f.Status {
			continue
		}
		if !unconstrained(f.Region) && !strings.EqualFold(l.Region, f.Region) {
			continue
		}
		if !unconstrained(f.Platform) && l.Platform != "" && !strings.EqualFold(l.Platform, f.Platform) {
			continue
		}
		if f.MinPrice != nil && l.Price.LessThan(*f.MinPrice) {
			continue
		}
		if f.MaxPrice != nil && l.Price.GreaterThan(*f.MaxPrice) {
			continue
		}
		if f.Mine && l.CreatedBy != viewer && !participating[l.ID] {
			continue
		}
		if l.IsPrivate && !f.Mine {
			continue
		}
		out = append(out, l.VisibleTo(viewer))
	}

	SortLobbies(out, f.Sort)
	return out
}

// SortLobbies orders lobbies in place. Ties fall back to newest first, then id,
// so the order is fully deterministic.
func SortLobbies(lobbies []models.Lobby, key SortKey) {
	newer := func(a, b models.Lobby) bool {
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		return a.ID.String() < b.ID.String()
	}

	sort.SliceStable(lobbies, func(i, j int) bool {
		a, b := lobbies[i], lobbies[j]
		switch key {
		case SortOldest:
			if !a.CreatedAt.Equal(b.CreatedAt) {
				return a.CreatedAt.Before(b.CreatedAt)
			}
			return a.ID.String() < b.ID.String()
		case SortPriceLow:
			if c := a.Price.Cmp(b.Price); c != 0 {
				return c < 0
			}
		case SortPriceHigh:
			if c := a.Price.Cmp(b.Price); c != 0 {
				return c > 0
			}
		}
		return newer(a, b)
	})
}

// Browser loads lobby lists for a viewer.
type Browser struct {
	store backend.LobbyStore
}

func NewBrowser(store backend.LobbyStore) *Browser {
	return &Browser{store: store}
}

// Load fetches the candidate pool (the search procedure when f.Search is set,
// every lobby otherwise) and applies f to it.
func (b *Browser) Load(ctx context.Context, viewer uuid.UUID, f Filter) ([]models.Lobby, error) {
	if f.Mine && viewer == uuid.Nil {
		return nil, backend.ErrAuthRequired
	}

	var (
		pool []models.Lobby
		err  error
	)
	if term := strings.TrimSpace(f.Search); term != "" {
		pool, err = b.store.SearchLobbies(ctx, term)
	} else {
		pool, err = b.store.ListLobbies(ctx)
	}
	if err != nil {
		return nil, fmt.Errorf("load lobbies: %w", err)
	}

	var participating map[uuid.UUID]bool
	if f.Mine {
		ids, err := b.store.ParticipatingLobbyIDs(ctx, viewer)
		if err != nil {
			return nil, fmt.Errorf("load participating lobbies: %w", err)
		}
		participating = make(map[uuid.UUID]bool, len(ids))
		for _, id := range ids {
			participating[id] = true
		}
	}

	return ApplyFilter(pool, f, viewer, participating), nil
}
