// internal/repository/memory_wallet_repo.go
package repository

import (
	"context"
	"sync"
	"time"

	"agent-wallet-service/internal/domain"
)

// MemoryWalletRepository satisfies the same contract as WalletRepository
// without a database. It backs local runs with DB_DRIVER=memory and tests.
type MemoryWalletRepository struct {
	mu      sync.RWMutex
	wallets map[string]domain.UserWallet
}

func NewMemoryWalletRepository() *MemoryWalletRepository {
	return &MemoryWalletRepository{wallets: make(map[string]domain.UserWallet)}
}

func (r *MemoryWalletRepository) Get(ctx context.Context, userID string) (*domain.UserWallet, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	w, ok := r.wallets[userID]
	if !ok {
		return nil, domain.ErrWalletNotFound
	}
	return &w, nil
}

func (r *MemoryWalletRepository) Create(ctx context.Context, wallet *domain.UserWallet) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.wallets[wallet.UserID]; ok {
		return domain.ErrWalletExists
	}
	for _, existing := range r.wallets {
		if existing.PublicKey == wallet.PublicKey {
			return domain.ErrWalletExists
		}
	}

	now := time.Now().UTC()
	wallet.CreatedAt, wallet.UpdatedAt = now, now
	wallet.IsLocked = false
	r.wallets[wallet.UserID] = *wallet
	return nil
}

func (r *MemoryWalletRepository) SetPassword(ctx context.Context, userID, passwordHash string) error {
	return r.update(userID, func(w *domain.UserWallet) {
		w.PasswordHash = &passwordHash
		w.IsLocked = true
	})
}

func (r *MemoryWalletRepository) SetLocked(ctx context.Context, userID string, locked bool) error {
	return r.update(userID, func(w *domain.UserWallet) { w.IsLocked = locked })
}

func (r *MemoryWalletRepository) SetThread(ctx context.Context, userID, threadID string) error {
	return r.update(userID, func(w *domain.UserWallet) { w.ThreadID = &threadID })
}

func (r *MemoryWalletRepository) update(userID string, fn func(*domain.UserWallet)) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	w, ok := r.wallets[userID]
	if !ok {
		return domain.ErrWalletNotFound
	}
	fn(&w)
	w.UpdatedAt = time.Now().UTC()
	r.wallets[userID] = w
	return nil
}
