package lobby

import (
	"github.com/google/uuid"
	"github.com/jason-s-yu/skillstake/internal/backend"
)

// DetailTopics covers a lobby row and its participant rows, which a detail
// view fetches together.
func DetailTopics(id uuid.UUID) []backend.Topic {
	return []backend.Topic{
		backend.RowTopic(backend.TableLobbies, "id", id.String()),
		backend.RowTopic(backend.TableLobbyParticipants, "lobby_id", id.String()),
	}
}

// ListTopics covers everything a browse list depends on, including the
// participant rows behind the "mine" filter.
func ListTopics() []backend.Topic {
	return []backend.Topic{
		backend.TableTopic(backend.TableLobbies),
		backend.TableTopic(backend.TableLobbyParticipants),
	}
}
