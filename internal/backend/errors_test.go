package backend

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassifyZeroRows(t *testing.T) {
	assert.ErrorIs(t, ClassifyZeroRows(false, false), ErrNotFound)
	assert.ErrorIs(t, ClassifyZeroRows(false, true), ErrNotFound)
	assert.ErrorIs(t, ClassifyZeroRows(true, true), ErrConflict)
	assert.ErrorIs(t, ClassifyZeroRows(true, false), ErrPermissionDenied)
}

func TestHTTPStatus(t *testing.T) {
	cases := map[error]int{
		ErrAuthRequired:         http.StatusUnauthorized,
		ErrNotFound:             http.StatusNotFound,
		ErrLobbyFull:            http.StatusConflict,
		ErrPermissionDenied:     http.StatusForbidden,
		ErrValidation:           http.StatusBadRequest,
		ErrConfirmationRequired: http.StatusPreconditionRequired,
		fmt.Errorf("boom"):      http.StatusInternalServerError,
	}
	for err, want := range cases {
		assert.Equal(t, want, HTTPStatus(err), err.Error())
	}

	wrapped := fmt.Errorf("join lobby: %w", ErrAlreadyJoined)
	assert.Equal(t, http.StatusConflict, HTTPStatus(wrapped))
}

func TestTopicMatches(t *testing.T) {
	c := Change{Table: TableLobbyParticipants, Op: OpInsert, RowID: "p1", Keys: map[string]string{"lobby_id": "l1"}}

	assert.True(t, TableTopic(TableLobbyParticipants).Matches(c))
	assert.True(t, RowTopic(TableLobbyParticipants, "lobby_id", "l1").Matches(c))
	assert.False(t, RowTopic(TableLobbyParticipants, "lobby_id", "l2").Matches(c))
	assert.True(t, RowTopic(TableLobbyParticipants, "id", "p1").Matches(c))
	assert.False(t, TableTopic(TableLobbies).Matches(c))
	assert.True(t, MatchesAny([]Topic{TableTopic(TableLobbies), RowTopic(TableLobbyParticipants, "lobby_id", "l1")}, c))
}
