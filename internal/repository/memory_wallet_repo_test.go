package repository

import (
	"context"
	"errors"
	"testing"

	"agent-wallet-service/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryWalletRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryWalletRepository()

	_, err := repo.Get(ctx, "42")
	assert.True(t, errors.Is(err, domain.ErrWalletNotFound))

	w := &domain.UserWallet{UserID: "42", PublicKey: "pk", EncryptedPrivateKey: "sealed", EncryptionVersion: "v1"}
	require.NoError(t, repo.Create(ctx, w))
	assert.ErrorIs(t, repo.Create(ctx, &domain.UserWallet{UserID: "42", PublicKey: "other"}), domain.ErrWalletExists)
	assert.ErrorIs(t, repo.Create(ctx, &domain.UserWallet{UserID: "43", PublicKey: "pk"}), domain.ErrWalletExists)

	got, err := repo.Get(ctx, "42")
	require.NoError(t, err)
	assert.False(t, got.IsLocked)
	assert.False(t, got.HasPassword())
	assert.Equal(t, "", got.Thread())

	require.NoError(t, repo.SetPassword(ctx, "42", "hash"))
	got, _ = repo.Get(ctx, "42")
	assert.True(t, got.IsLocked)
	assert.True(t, got.HasPassword())

	require.NoError(t, repo.SetLocked(ctx, "42", false))
	require.NoError(t, repo.SetThread(ctx, "42", "thread-1"))
	got, _ = repo.Get(ctx, "42")
	assert.False(t, got.IsLocked)
	assert.Equal(t, "thread-1", got.Thread())

	assert.ErrorIs(t, repo.SetLocked(ctx, "missing", true), domain.ErrWalletNotFound)
}
