package lobby

import (
	"context"
	"net/url"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/skillstake/internal/backend"
	"github.com/jason-s-yu/skillstake/internal/backend/memory"
	"github.com/jason-s-yu/skillstake/internal/models"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func lobbyAt(game, region, platform, price string, status models.LobbyStatus, age time.Duration) models.Lobby {
	return models.Lobby{
		ID:        uuid.New(),
		Game:      game,
		Region:    region,
		Platform:  platform,
		Price:     decimal.RequireFromString(price),
		Status:    status,
		CreatedBy: uuid.New(),
		CreatedAt: t0.Add(-age),
	}
}

func games(ls []models.Lobby) []string {
	out := make([]string, len(ls))
	for i, l := range ls {
		out[i] = l.Game
	}
	return out
}

func TestApplyFilterHidesPrivateUnlessMine(t *testing.T) {
	viewer := uuid.New()
	public := lobbyAt("Chess", "NA", "PC", "5", models.LobbyWaiting, time.Minute)
	hidden := lobbyAt("Go", "NA", "PC", "5", models.LobbyWaiting, 2*time.Minute)
	hidden.IsPrivate, hidden.InviteCode = true, "TEAM7"
	owned := lobbyAt("Poker", "NA", "PC", "5", models.LobbyWaiting, 3*time.Minute)
	owned.IsPrivate, owned.InviteCode, owned.CreatedBy = true, "MINE1", viewer
	all := []models.Lobby{public, hidden, owned}

	assert.Equal(t, []string{"Chess"}, games(ApplyFilter(all, Filter{Sort: SortNewest}, viewer, nil)))

	mine := ApplyFilter(all, Filter{Sort: SortNewest, Mine: true}, viewer, map[uuid.UUID]bool{hidden.ID: true})
	require.Equal(t, []string{"Go", "Poker"}, games(mine))
	assert.Empty(t, mine[0].InviteCode)
	assert.Equal(t, "MINE1", mine[1].InviteCode)
}

func TestApplyFilterHidesCompletedUnlessHistory(t *testing.T) {
	ls := []models.Lobby{
		lobbyAt("open", "NA", "", "5", models.LobbyWaiting, time.Hour),
		lobbyAt("done", "NA", "", "5", models.LobbyCompleted, 2*time.Hour),
	}

	assert.Equal(t, []string{"open"}, games(ApplyFilter(ls, Filter{Sort: SortNewest}, uuid.Nil, nil)))
	assert.Empty(t, ApplyFilter(ls, Filter{Status: string(models.LobbyCompleted)}, uuid.Nil, nil))
	assert.Equal(t, []string{"open", "done"}, games(ApplyFilter(ls, Filter{History: true}, uuid.Nil, nil)))
}

func TestApplyFilterFields(t *testing.T) {
	ls := []models.Lobby{
		lobbyAt("a", "NA", "PC", "5", models.LobbyWaiting, 1*time.Minute),
		lobbyAt("b", "EU", "PC", "10", models.LobbyInProgress, 2*time.Minute),
		lobbyAt("c", "NA", "", "20", models.LobbyWaiting, 3*time.Minute),
		lobbyAt("d", "NA", "Xbox", "50", models.LobbyWaiting, 4*time.Minute),
	}
	lo := decimal.RequireFromString("10")
	hi := decimal.RequireFromString("20")

	assert.Equal(t, []string{"a", "c", "d"}, games(ApplyFilter(ls, Filter{Region: "na"}, uuid.Nil, nil)))
	assert.Equal(t, []string{"b"}, games(ApplyFilter(ls, Filter{Status: "in_progress"}, uuid.Nil, nil)))
	assert.Equal(t, []string{"a", "b", "c"}, games(ApplyFilter(ls, Filter{Platform: "PC"}, uuid.Nil, nil)), "lobbies without a platform match any platform")
	assert.Equal(t, []string{"b", "c"}, games(ApplyFilter(ls, Filter{MinPrice: &lo, MaxPrice: &hi}, uuid.Nil, nil)))
	assert.Len(t, ApplyFilter(ls, Filter{Status: "all", Region: "all", Platform: "all"}, uuid.Nil, nil), 4)
}

func TestApplyFilterMine(t *testing.T) {
	viewer := uuid.New()
	created := lobbyAt("created", "NA", "", "5", models.LobbyWaiting, time.Minute)
	created.CreatedBy = viewer
	joined := lobbyAt("joined", "NA", "", "5", models.LobbyInProgress, 2*time.Minute)
	other := lobbyAt("other", "NA", "", "5", models.LobbyWaiting, 3*time.Minute)

	got := ApplyFilter([]models.Lobby{other, joined, created}, Filter{Mine: true}, viewer, map[uuid.UUID]bool{joined.ID: true})
	assert.Equal(t, []string{"created", "joined"}, games(got))
}

func TestSortLobbies(t *testing.T) {
	ls := []models.Lobby{
		lobbyAt("mid-old", "NA", "", "10", models.LobbyWaiting, 3*time.Hour),
		lobbyAt("cheap", "NA", "", "1", models.LobbyWaiting, 2*time.Hour),
		lobbyAt("mid-new", "NA", "", "10", models.LobbyWaiting, 1*time.Hour),
		lobbyAt("pricey", "NA", "", "99", models.LobbyWaiting, 4*time.Hour),
	}

	cases := map[SortKey][]string{
		SortNewest:    {"mid-new", "cheap", "mid-old", "pricey"},
		SortOldest:    {"pricey", "mid-old", "cheap", "mid-new"},
		SortPriceLow:  {"cheap", "mid-new", "mid-old", "pricey"},
		SortPriceHigh: {"pricey", "mid-new", "mid-old", "cheap"},
	}
	for key, want := range cases {
		got := ApplyFilter(ls, Filter{Sort: key}, uuid.Nil, nil)
		assert.Equal(t, want, games(got), string(key))
	}
	assert.Equal(t, "mid-old", ls[0].Game, "input must not be reordered")
}

func TestParseFilter(t *testing.T) {
	f, err := ParseFilter(url.Values{"status": {"waiting"}, "min_price": {"2.50"}, "sort": {"price-high"}, "mine": {"true"}})
	require.NoError(t, err)
	assert.Equal(t, "waiting", f.Status)
	assert.Equal(t, SortPriceHigh, f.Sort)
	assert.True(t, f.Mine)
	require.NotNil(t, f.MinPrice)
	assert.Equal(t, "2.5", f.MinPrice.String())
	assert.Nil(t, f.MaxPrice)

	f, err = ParseFilter(url.Values{})
	require.NoError(t, err)
	assert.Equal(t, SortNewest, f.Sort)

	for _, bad := range []url.Values{{"sort": {"random"}}, {"status": {"bogus"}}, {"max_price": {"ten"}}} {
		_, err := ParseFilter(bad)
		assert.ErrorIs(t, err, backend.ErrValidation)
	}
}

func TestBrowserLoad(t *testing.T) {
	ctx := context.Background()
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	store := memory.New(nil, logger)
	svc := NewService(store, store, nil, logger)

	alice := models.Actor{UserID: uuid.New()}
	bob := models.Actor{UserID: uuid.New()}
	chess, err := svc.Create(ctx, alice, CreateRequest{Game: "Chess", Region: "NA", Price: decimal.NewFromInt(5)})
	require.NoError(t, err)
	_, err = svc.Create(ctx, alice, CreateRequest{Game: "Rocket League", Region: "EU", Price: decimal.NewFromInt(10), Description: "3v3 ranked"})
	require.NoError(t, err)
	_, err = svc.Join(ctx, bob, chess.ID)
	require.NoError(t, err)

	b := NewBrowser(store)

	all, err := b.Load(ctx, uuid.Nil, Filter{Sort: SortPriceLow})
	require.NoError(t, err)
	assert.Equal(t, []string{"Chess", "Rocket League"}, games(all))

	found, err := b.Load(ctx, uuid.Nil, Filter{Search: "ranked"})
	require.NoError(t, err)
	assert.Equal(t, []string{"Rocket League"}, games(found))

	mine, err := b.Load(ctx, bob.UserID, Filter{Mine: true})
	require.NoError(t, err)
	assert.Equal(t, []string{"Chess"}, games(mine))

	_, err = b.Load(ctx, uuid.Nil, Filter{Mine: true})
	assert.ErrorIs(t, err, backend.ErrAuthRequired)
}
