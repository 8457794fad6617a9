// internal/usecase/interfaces.go
package usecase

import (
	"context"

	"agent-wallet-service/internal/chains/sol"
	"agent-wallet-service/internal/domain"

	"github.com/gagliardetto/solana-go"
)

// WalletStore is the wallet record contract. Get on an unknown user returns
// domain.ErrWalletNotFound.
type WalletStore interface {
	Get(ctx context.Context, userID string) (*domain.UserWallet, error)
	Create(ctx context.Context, wallet *domain.UserWallet) error
	SetPassword(ctx context.Context, userID, passwordHash string) error
	SetLocked(ctx context.Context, userID string, locked bool) error
	SetThread(ctx context.Context, userID, threadID string) error
}

// ChainClient is the part of the Solana RPC client the engine needs.
type ChainClient interface {
	Balance(ctx context.Context, address string) (uint64, error)
	LatestBlockhash(ctx context.Context) (*sol.BlockRef, error)
	SendRaw(ctx context.Context, raw []byte) (solana.Signature, error)
	AwaitConfirmation(ctx context.Context, sig solana.Signature, lastValidBlockHeight uint64) error
}

// Messenger sends chat output. Refs are transport message ids.
type Messenger interface {
	Send(ctx context.Context, chatID int64, text string) (int, error)
	SendConfirmation(ctx context.Context, chatID int64, text string) (int, error)
	Delete(ctx context.Context, chatID int64, ref int) error
}
