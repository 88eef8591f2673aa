package backend

import (
	"github.com/google/uuid"
	"github.com/jason-s-yu/skillstake/internal/models"
)

func LobbyChange(op Op, l models.Lobby) Change {
	return Change{
		Table: TableLobbies,
		Op:    op,
		RowID: l.ID.String(),
		Keys:  map[string]string{"created_by": l.CreatedBy.String(), "status": string(l.Status)},
	}
}

func ParticipantChange(op Op, p models.Participant) Change {
	return Change{
		Table: TableLobbyParticipants,
		Op:    op,
		RowID: p.ID.String(),
		Keys:  map[string]string{"lobby_id": p.LobbyID.String(), "user_id": p.UserID.String()},
	}
}

func MessageChange(msg models.ChatMessage, lobbyID uuid.UUID) Change {
	return Change{
		Table: TableChatMessages,
		Op:    OpInsert,
		RowID: msg.ID.String(),
		Keys:  map[string]string{"room_id": msg.RoomID.String(), "lobby_id": lobbyID.String()},
	}
}

func FriendChange(op Op, f models.Friend) Change {
	return Change{
		Table: TableFriends,
		Op:    op,
		RowID: f.ID.String(),
		Keys:  map[string]string{"user_id": f.UserID.String(), "friend_id": f.FriendID.String()},
	}
}

// UserRowChange is a change on a table keyed by owning user: presence,
// notifications and achievement unlocks. rowID may be empty for bulk updates.
func UserRowChange(table string, op Op, rowID string, userID uuid.UUID) Change {
	return Change{
		Table: table,
		Op:    op,
		RowID: rowID,
		Keys:  map[string]string{"user_id": userID.String()},
	}
}
