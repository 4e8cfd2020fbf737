package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/weiwangfds/sharedrop/internal/database"
)

func TestUserRepository(t *testing.T) {
	repo := NewUserRepository(setupTestDB(t), time.Second)
	ctx := context.Background()

	user := &database.User{Username: "alice", Email: "alice@example.com", PasswordHash: "hash"}
	require.NoError(t, repo.Create(ctx, user))
	assert.NotEmpty(t, user.ID)

	t.Run("用户名重复", func(t *testing.T) {
		err := repo.Create(ctx, &database.User{Username: "alice", Email: "other@example.com", PasswordHash: "x"})
		assert.ErrorIs(t, err, ErrUserExists)
	})

	t.Run("邮箱重复", func(t *testing.T) {
		err := repo.Create(ctx, &database.User{Username: "bob", Email: "alice@example.com", PasswordHash: "x"})
		assert.ErrorIs(t, err, ErrUserExists)
	})

	t.Run("按用户名和ID查询", func(t *testing.T) {
		got, err := repo.GetByUsername(ctx, "alice")
		require.NoError(t, err)
		assert.Equal(t, user.ID, got.ID)

		got, err = repo.GetByID(ctx, user.ID)
		require.NoError(t, err)
		assert.Equal(t, "alice", got.Username)

		_, err = repo.GetByUsername(ctx, "nobody")
		assert.ErrorIs(t, err, ErrUserNotFound)
	})

	t.Run("按邮箱查询", func(t *testing.T) {
		got, err := repo.GetByEmail(ctx, "alice@example.com")
		require.NoError(t, err)
		assert.Equal(t, user.ID, got.ID)

		_, err = repo.GetByEmail(ctx, "nobody@example.com")
		assert.ErrorIs(t, err, ErrUserNotFound)
	})
}
