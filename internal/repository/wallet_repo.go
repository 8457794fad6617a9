// internal/repository/wallet_repo.go
package repository

import (
	"context"
	"errors"
	"fmt"

	"agent-wallet-service/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const pgUniqueViolation = "23505"

type WalletRepository struct {
	pool *pgxpool.Pool
}

func NewWalletRepository(pool *pgxpool.Pool) *WalletRepository {
	return &WalletRepository{pool: pool}
}

const schema = `
	CREATE TABLE IF NOT EXISTS user_wallets (
		user_id               TEXT PRIMARY KEY,
		public_key            TEXT NOT NULL UNIQUE,
		encrypted_private_key TEXT NOT NULL,
		encryption_version    TEXT NOT NULL DEFAULT 'v1',
		password_hash         TEXT,
		is_locked             BOOLEAN NOT NULL DEFAULT FALSE,
		thread_id             TEXT,
		created_at            TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at            TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)
`

// EnsureSchema creates the wallet table when it is missing.
func (r *WalletRepository) EnsureSchema(ctx context.Context) error {
	if _, err := r.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("failed to create user_wallets table: %w", err)
	}
	return nil
}

// Get returns domain.ErrWalletNotFound when the user has no wallet.
func (r *WalletRepository) Get(ctx context.Context, userID string) (*domain.UserWallet, error) {
	query := `
		SELECT user_id, public_key, encrypted_private_key, encryption_version,
		       password_hash, is_locked, thread_id, created_at, updated_at
		FROM user_wallets
		WHERE user_id = $1
	`

	wallet := &domain.UserWallet{}
	err := r.pool.QueryRow(ctx, query, userID).Scan(
		&wallet.UserID,
		&wallet.PublicKey,
		&wallet.EncryptedPrivateKey,
		&wallet.EncryptionVersion,
		&wallet.PasswordHash,
		&wallet.IsLocked,
		&wallet.ThreadID,
		&wallet.CreatedAt,
		&wallet.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrWalletNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get wallet: %w", err)
	}

	return wallet, nil
}

func (r *WalletRepository) Create(ctx context.Context, wallet *domain.UserWallet) error {
	query := `
		INSERT INTO user_wallets (user_id, public_key, encrypted_private_key, encryption_version, is_locked)
		VALUES ($1, $2, $3, $4, FALSE)
		RETURNING created_at, updated_at
	`

	err := r.pool.QueryRow(ctx, query,
		wallet.UserID,
		wallet.PublicKey,
		wallet.EncryptedPrivateKey,
		wallet.EncryptionVersion,
	).Scan(&wallet.CreatedAt, &wallet.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return domain.ErrWalletExists
		}
		return fmt.Errorf("failed to create wallet: %w", err)
	}

	wallet.IsLocked = false
	return nil
}

// SetPassword stores the hash and locks the wallet in one statement.
func (r *WalletRepository) SetPassword(ctx context.Context, userID, passwordHash string) error {
	return r.exec(ctx, "set password",
		`UPDATE user_wallets SET password_hash = $2, is_locked = TRUE, updated_at = NOW() WHERE user_id = $1`,
		userID, passwordHash)
}

func (r *WalletRepository) SetLocked(ctx context.Context, userID string, locked bool) error {
	return r.exec(ctx, "set lock state",
		`UPDATE user_wallets SET is_locked = $2, updated_at = NOW() WHERE user_id = $1`,
		userID, locked)
}

func (r *WalletRepository) SetThread(ctx context.Context, userID, threadID string) error {
	return r.exec(ctx, "set thread",
		`UPDATE user_wallets SET thread_id = $2, updated_at = NOW() WHERE user_id = $1`,
		userID, threadID)
}

func (r *WalletRepository) exec(ctx context.Context, op, query string, args ...any) error {
	tag, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to %s: %w", op, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrWalletNotFound
	}
	return nil
}
