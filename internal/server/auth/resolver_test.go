package auth

import (
	"context"
	"testing"
	"time"

	"github.com/dmitrijs2005/filehost/internal/common"
	"github.com/dmitrijs2005/filehost/internal/logging"
	"github.com/dmitrijs2005/filehost/internal/server/models"
	"github.com/dmitrijs2005/filehost/internal/server/repositories/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolver_Resolve(t *testing.T) {
	secret := []byte("secret")
	m := memory.NewManager()
	active := m.SeedUser(models.User{Username: "alice", IsActive: true})
	inactive := m.SeedUser(models.User{Username: "bob", IsActive: false})

	r := NewResolver(nil, m, secret, logging.Nop())
	ctx := context.Background()

	token := func(id int64, ttl time.Duration) string {
		tok, err := GenerateToken(id, secret, ttl)
		require.NoError(t, err)
		return tok
	}

	t.Run("active user", func(t *testing.T) {
		u, err := r.Resolve(ctx, "Bearer "+token(active.ID, time.Hour))
		require.NoError(t, err)
		assert.Equal(t, active.ID, u.ID)
		assert.Equal(t, "alice", u.Username)
	})

	for name, cred := range map[string]string{
		"empty":            "",
		"bearer only":      "Bearer ",
		"garbage":          "Bearer nope",
		"token w/o scheme": token(active.ID, time.Hour),
		"wrong scheme":     "Basic " + token(active.ID, time.Hour),
		"lowercase scheme": "bearer " + token(active.ID, time.Hour),
		"expired":          "Bearer " + token(active.ID, -time.Minute),
		"unknown user":     "Bearer " + token(999, time.Hour),
		"inactive user":    "Bearer " + token(inactive.ID, time.Hour),
		"other secret": func() string {
			tok, _ := GenerateToken(active.ID, []byte("other"), time.Hour)
			return "Bearer " + tok
		}(),
	} {
		t.Run(name, func(t *testing.T) {
			_, err := r.Resolve(ctx, cred)
			assert.ErrorIs(t, err, common.ErrUnauthenticated)
		})
	}
}
