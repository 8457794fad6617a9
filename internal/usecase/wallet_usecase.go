// internal/usecase/wallet_usecase.go
package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"agent-wallet-service/internal/chains/sol"
	"agent-wallet-service/internal/domain"
	"agent-wallet-service/internal/security"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type WalletUsecase struct {
	store      WalletStore
	chain      ChainClient
	encryption *security.Encryption
	hasher     *security.PasswordHasher
	logger     *zap.Logger
}

func NewWalletUsecase(
	store WalletStore,
	chain ChainClient,
	encryption *security.Encryption,
	hasher *security.PasswordHasher,
	logger *zap.Logger,
) *WalletUsecase {
	return &WalletUsecase{
		store:      store,
		chain:      chain,
		encryption: encryption,
		hasher:     hasher,
		logger:     logger,
	}
}

// CreateWallet generates and seals a keypair for userID. The bool is false
// when the user already had a wallet, in which case the existing record is
// returned untouched.
func (uc *WalletUsecase) CreateWallet(ctx context.Context, userID string) (*domain.UserWallet, bool, error) {
	existing, err := uc.store.Get(ctx, userID)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, domain.ErrWalletNotFound) {
		return nil, false, fmt.Errorf("failed to check wallet: %w", err)
	}

	keys := sol.GenerateWallet()

	sealed, err := uc.encryption.Encrypt(keys.PrivateKey)
	keys.PrivateKey = ""
	if err != nil {
		return nil, false, fmt.Errorf("failed to seal private key: %w", err)
	}

	now := time.Now()
	wallet := &domain.UserWallet{
		UserID:              userID,
		PublicKey:           keys.Address,
		EncryptedPrivateKey: sealed,
		EncryptionVersion:   uc.encryption.GetVersion(),
		CreatedAt:           now,
		UpdatedAt:           now,
	}

	if err := uc.store.Create(ctx, wallet); err != nil {
		if errors.Is(err, domain.ErrWalletExists) {
			// lost a race with another /start for the same user
			existing, getErr := uc.store.Get(ctx, userID)
			if getErr != nil {
				return nil, false, fmt.Errorf("failed to load wallet: %w", getErr)
			}
			return existing, false, nil
		}
		return nil, false, fmt.Errorf("failed to store wallet: %w", err)
	}

	uc.logger.Info("wallet created",
		zap.String("user_id", userID),
		zap.String("address", wallet.PublicKey))

	return wallet, true, nil
}

func (uc *WalletUsecase) GetWallet(ctx context.Context, userID string) (*domain.UserWallet, error) {
	return uc.store.Get(ctx, userID)
}

// SetPassword hashes and stores the lock password. Storing a password also
// locks the wallet.
func (uc *WalletUsecase) SetPassword(ctx context.Context, userID, password string) error {
	hash, err := uc.hasher.Hash(password)
	if err != nil {
		return err
	}
	if err := uc.store.SetPassword(ctx, userID, hash); err != nil {
		return fmt.Errorf("failed to store password: %w", err)
	}
	uc.logger.Info("wallet password set", zap.String("user_id", userID))
	return nil
}

func (uc *WalletUsecase) VerifyPassword(ctx context.Context, userID, password string) (bool, error) {
	wallet, err := uc.store.Get(ctx, userID)
	if err != nil {
		return false, err
	}
	if !wallet.HasPassword() {
		return false, domain.ErrPasswordNotSet
	}
	return uc.hasher.Verify(password, *wallet.PasswordHash)
}

func (uc *WalletUsecase) SetLocked(ctx context.Context, userID string, locked bool) error {
	if err := uc.store.SetLocked(ctx, userID, locked); err != nil {
		return fmt.Errorf("failed to update lock: %w", err)
	}
	uc.logger.Info("wallet lock changed",
		zap.String("user_id", userID),
		zap.Bool("locked", locked))
	return nil
}

func (uc *WalletUsecase) SetThread(ctx context.Context, userID, threadID string) error {
	return uc.store.SetThread(ctx, userID, threadID)
}

// Balance returns the wallet balance in SOL. Locked wallets are refused.
func (uc *WalletUsecase) Balance(ctx context.Context, userID string) (decimal.Decimal, error) {
	wallet, err := uc.store.Get(ctx, userID)
	if err != nil {
		return decimal.Zero, err
	}
	if wallet.IsLocked {
		return decimal.Zero, domain.ErrWalletLocked
	}

	lamports, err := uc.chain.Balance(ctx, wallet.PublicKey)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to get balance: %w", err)
	}
	return domain.LamportsToSOL(lamports), nil
}
