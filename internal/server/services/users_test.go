package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/dmitrijs2005/filehost/internal/common"
	"github.com/dmitrijs2005/filehost/internal/logging"
	"github.com/dmitrijs2005/filehost/internal/server/auth"
	"github.com/dmitrijs2005/filehost/internal/server/config"
	"github.com/dmitrijs2005/filehost/internal/server/models"
	"github.com/dmitrijs2005/filehost/internal/server/repositories/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newUserService(t *testing.T) (*UserService, *memory.Manager) {
	t.Helper()
	cfg := &config.Config{
		SecretKey:                   "k",
		AccessTokenValidityDuration: time.Hour,
	}
	repos := memory.NewManager()
	return NewUserService(newTxDB(t), repos, cfg, logging.Nop()), repos
}

func TestSignup_Success(t *testing.T) {
	svc, _ := newUserService(t)

	res, err := svc.Signup(context.Background(), "  alice ", " Alice@Example.COM ", "secret1")
	require.NoError(t, err)

	assert.Equal(t, "alice", res.User.Username)
	assert.Equal(t, "alice@example.com", res.User.Email)
	assert.True(t, res.User.IsActive)
	assert.NotEqual(t, "secret1", res.User.PasswordHash)

	id, err := auth.GetUserIDFromToken(res.Token, []byte("k"))
	require.NoError(t, err)
	assert.Equal(t, res.User.ID, id)
}

func TestSignup_Validation(t *testing.T) {
	tests := []struct {
		name, username, email, password string
		msg                             string
	}{
		{"no at", "alice", "alice.example.com", "secret1", "invalid email"},
		{"no dot", "alice", "alice@example", "secret1", "invalid email"},
		{"short password", "alice", "a@example.com", "12345", "password must be at least 6"},
		{"short username", "al", "a@example.com", "secret1", "username must be at least 3"},
		{"blank username", "   ", "a@example.com", "secret1", "username must be at least 3"},
		{"long password", "alice", "a@example.com", strings.Repeat("x", 80), "too long"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, _ := newUserService(t)
			_, err := svc.Signup(context.Background(), tt.username, tt.email, tt.password)
			require.ErrorIs(t, err, common.ErrValidation)
			assert.Contains(t, err.Error(), tt.msg)
		})
	}
}

func TestSignup_Conflict(t *testing.T) {
	svc, _ := newUserService(t)
	ctx := context.Background()

	_, err := svc.Signup(ctx, "alice", "a@example.com", "secret1")
	require.NoError(t, err)

	_, err = svc.Signup(ctx, "alice", "other@example.com", "secret1")
	require.ErrorIs(t, err, common.ErrConflict)
	_, err = svc.Signup(ctx, "bobby", "A@example.com", "secret1")
	require.ErrorIs(t, err, common.ErrConflict)
}

func TestLogin(t *testing.T) {
	svc, repos := newUserService(t)
	ctx := context.Background()

	_, err := svc.Signup(ctx, "alice", "a@example.com", "secret1")
	require.NoError(t, err)

	res, err := svc.Login(ctx, " A@Example.com", "secret1")
	require.NoError(t, err)
	assert.Equal(t, "alice", res.User.Username)
	assert.NotEmpty(t, res.Token)

	_, err = svc.Login(ctx, "a@example.com", "wrong!!")
	assert.ErrorIs(t, err, common.ErrUnauthenticated)
	_, err = svc.Login(ctx, "nobody@example.com", "secret1")
	assert.ErrorIs(t, err, common.ErrUnauthenticated)

	hash, err := hashPassword("secret1")
	require.NoError(t, err)
	repos.SeedUser(models.User{Username: "ghost", Email: "ghost@example.com", PasswordHash: hash, IsActive: false})
	_, err = svc.Login(ctx, "ghost@example.com", "secret1")
	assert.ErrorIs(t, err, common.ErrUnauthenticated)
}

func TestUpdateProfile(t *testing.T) {
	svc, _ := newUserService(t)
	ctx := context.Background()

	alice, err := svc.Signup(ctx, "alice", "a@example.com", "secret1")
	require.NoError(t, err)
	_, err = svc.Signup(ctx, "bobby", "b@example.com", "secret1")
	require.NoError(t, err)

	name := " alicia "
	pass := "newsecret"
	u, err := svc.UpdateProfile(ctx, alice.User, &name, &pass)
	require.NoError(t, err)
	assert.Equal(t, "alicia", u.Username)
	assert.Equal(t, "alicia", svc.Profile(u).Username)

	_, err = svc.Login(ctx, "a@example.com", "newsecret")
	require.NoError(t, err)

	taken := "bobby"
	_, err = svc.UpdateProfile(ctx, u, &taken, nil)
	require.ErrorIs(t, err, common.ErrConflict)

	short := "ab"
	_, err = svc.UpdateProfile(ctx, u, &short, nil)
	require.ErrorIs(t, err, common.ErrValidation)

	weak := "123"
	_, err = svc.UpdateProfile(ctx, u, nil, &weak)
	require.ErrorIs(t, err, common.ErrValidation)

	unchanged, err := svc.UpdateProfile(ctx, u, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "alicia", unchanged.Username)
}

func TestUpdateProfile_UnknownUser(t *testing.T) {
	svc, _ := newUserService(t)

	name := "ghost"
	_, err := svc.UpdateProfile(context.Background(), &models.User{ID: 42}, &name, nil)
	require.True(t, errors.Is(err, common.ErrNotFound))
}
