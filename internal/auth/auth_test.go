package auth

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/skillstake/internal/backend"
	"github.com/jason-s-yu/skillstake/internal/backend/memory"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// cheap parameters keep the tests fast
var testParams = HashParams{Memory: 1024, Iterations: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32}

func TestHashAndVerifyPassword(t *testing.T) {
	hash, err := HashPassword("hunter22", testParams)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(hash, "$argon2id$v=19$m=1024,t=1,p=1$"))

	ok, err := VerifyPassword("hunter22", hash)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = VerifyPassword("hunter23", hash)
	require.NoError(t, err)
	assert.False(t, ok)

	other, err := HashPassword("hunter22", testParams)
	require.NoError(t, err)
	assert.NotEqual(t, hash, other, "salt must differ per hash")

	_, err = VerifyPassword("x", "$bcrypt$nope")
	assert.ErrorIs(t, err, ErrInvalidHash)
	_, err = VerifyPassword("x", "$argon2id$v=1$m=1,t=1,p=1$AAAA$AAAA")
	assert.ErrorIs(t, err, ErrIncompatibleVersion)
}

func TestParseTokenExpireTime(t *testing.T) {
	for _, never := range []string{"", "0", "never"} {
		d, err := ParseTokenExpireTime(never)
		require.NoError(t, err)
		assert.Zero(t, d)
	}
	d, err := ParseTokenExpireTime("72h")
	require.NoError(t, err)
	assert.Equal(t, 72*time.Hour, d)

	_, err = ParseTokenExpireTime("three days")
	assert.Error(t, err)
}

func TestSessionsIssueAndVerify(t *testing.T) {
	s, err := NewSessions(time.Hour)
	require.NoError(t, err)
	id := uuid.New()

	token, err := s.Issue(id)
	require.NoError(t, err)
	got, err := s.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, id, got)

	s.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	_, err = s.Verify(token)
	assert.Error(t, err, "expired token")

	other, err := NewSessions(0)
	require.NoError(t, err)
	_, err = other.Verify(token)
	assert.Error(t, err, "token signed by another key")
}

func newTestService(t *testing.T) *Service {
	t.Helper()
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	sessions, err := NewSessions(0)
	require.NoError(t, err)
	store := memory.New(nil, logger)
	return NewService(store, sessions, testParams, logger)
}

func TestSignUpSignInSession(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	u, token, err := svc.SignUp(ctx, SignUpRequest{Email: "Ada@Example.com", Username: " Ada_L ", Password: "secret1"})
	require.NoError(t, err)
	assert.Equal(t, "ada_l", u.Username)
	assert.Equal(t, "ada@example.com", u.Email)
	assert.Equal(t, "ada_l", u.DisplayName)
	assert.Empty(t, u.Password)

	actor, err := svc.Session(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, u.ID, actor.UserID)
	assert.False(t, actor.IsAdmin)

	_, _, err = svc.SignUp(ctx, SignUpRequest{Email: "other@example.com", Username: "ADA_L", Password: "secret1"})
	assert.ErrorIs(t, err, backend.ErrDuplicate)

	free, err := svc.UsernameAvailable(ctx, "Ada_L")
	require.NoError(t, err)
	assert.False(t, free)
	free, err = svc.UsernameAvailable(ctx, "grace")
	require.NoError(t, err)
	assert.True(t, free)

	signedIn, token2, err := svc.SignIn(ctx, "ADA_L", "secret1")
	require.NoError(t, err)
	assert.Equal(t, u.ID, signedIn.ID)
	assert.NotEmpty(t, token2)

	_, _, err = svc.SignIn(ctx, "ada_l", "wrong-password")
	assert.ErrorIs(t, err, backend.ErrAuthRequired)
	_, _, err = svc.SignIn(ctx, "nobody", "secret1")
	assert.ErrorIs(t, err, backend.ErrAuthRequired)

	_, err = svc.Session(ctx, "")
	assert.ErrorIs(t, err, backend.ErrAuthRequired)
	_, err = svc.Session(ctx, "not-a-jwt")
	assert.ErrorIs(t, err, backend.ErrAuthRequired)
}

func TestSignUpValidation(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	cases := map[string]SignUpRequest{
		"short username": {Email: "a@example.com", Username: "ab", Password: "secret1"},
		"bad characters": {Email: "a@example.com", Username: "a b c", Password: "secret1"},
		"bad email":      {Email: "not-an-email", Username: "abc", Password: "secret1"},
		"short password": {Email: "a@example.com", Username: "abc", Password: "12345"},
	}
	for name, req := range cases {
		t.Run(name, func(t *testing.T) {
			_, _, err := svc.SignUp(ctx, req)
			assert.ErrorIs(t, err, backend.ErrValidation)
		})
	}
}
