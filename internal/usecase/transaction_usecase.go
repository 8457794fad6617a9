// internal/usecase/transaction_usecase.go
package usecase

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"agent-wallet-service/internal/chains/sol"
	"agent-wallet-service/internal/domain"
	"agent-wallet-service/internal/events"
	"agent-wallet-service/internal/metrics"
	"agent-wallet-service/internal/security"

	"github.com/gagliardetto/solana-go"
	"github.com/oklog/ulid/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	DefaultExplorerBase = "https://solscan.io/tx/"

	// DefaultRPCTimeout bounds each balance, blockhash and broadcast call.
	DefaultRPCTimeout = 15 * time.Second
)

// TransactionUsecase signs and settles transactions for custodial wallets.
// Neither entry point retries: every failure ends the round.
type TransactionUsecase struct {
	store          WalletStore
	chain          ChainClient
	encryption     *security.Encryption
	publisher      events.Publisher
	confirmTimeout time.Duration
	rpcTimeout     time.Duration
	explorerBase   string
	logger         *zap.Logger
}

func NewTransactionUsecase(
	store WalletStore,
	chain ChainClient,
	encryption *security.Encryption,
	publisher events.Publisher,
	confirmTimeout time.Duration,
	rpcTimeout time.Duration,
	explorerBase string,
	logger *zap.Logger,
) *TransactionUsecase {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	if confirmTimeout <= 0 {
		confirmTimeout = 90 * time.Second
	}
	if rpcTimeout <= 0 {
		rpcTimeout = DefaultRPCTimeout
	}
	if explorerBase == "" {
		explorerBase = DefaultExplorerBase
	}
	return &TransactionUsecase{
		store:          store,
		chain:          chain,
		encryption:     encryption,
		publisher:      publisher,
		confirmTimeout: confirmTimeout,
		rpcTimeout:     rpcTimeout,
		explorerBase:   explorerBase,
		logger:         logger,
	}
}

// ============================================================================
// DIRECT TRANSFER
// ============================================================================

// ExecuteDirectTransfer moves amount SOL from the user's wallet to recipient.
func (uc *TransactionUsecase) ExecuteDirectTransfer(
	ctx context.Context,
	userID, recipient string,
	amount decimal.Decimal,
) (*domain.SubmitResult, error) {

	uc.logger.Info("executing direct transfer",
		zap.String("user_id", userID),
		zap.String("recipient", recipient),
		zap.String("amount", amount.String()))

	// 1. Validate input
	lamports, err := domain.SOLToLamports(amount)
	if err != nil {
		return nil, err
	}
	if lamports > math.MaxUint64-domain.EstimatedFeeLamports {
		return nil, domain.NewInvalidInput("amount is too large")
	}
	if !sol.IsValidAddress(recipient) {
		return nil, domain.NewInvalidInput("recipient is not a valid Solana address")
	}

	// 2. Re-read the wallet right before signing
	wallet, err := uc.loadUnlocked(ctx, userID)
	if err != nil {
		return nil, err
	}

	// 3. Unseal key
	key, err := uc.unseal(wallet)
	if err != nil {
		uc.record(ctx, userID, domain.TransactionKindTransfer, "", err)
		return nil, err
	}
	defer sol.Wipe(key)

	// 4. Balance check
	rpcCtx, cancel := context.WithTimeout(ctx, uc.rpcTimeout)
	balance, err := uc.chain.Balance(rpcCtx, wallet.PublicKey)
	cancel()
	if err != nil {
		err = sol.ClassifyError(err)
		uc.record(ctx, userID, domain.TransactionKindTransfer, "", err)
		return nil, err
	}
	required := lamports + domain.EstimatedFeeLamports
	if balance < required {
		err := &domain.InsufficientFundsError{
			Balance:  domain.LamportsToSOL(balance),
			Required: domain.LamportsToSOL(required),
		}
		uc.logger.Warn("transfer rejected: insufficient funds",
			zap.String("user_id", userID),
			zap.Uint64("balance_lamports", balance),
			zap.Uint64("required_lamports", required))
		uc.record(ctx, userID, domain.TransactionKindTransfer, "", err)
		return nil, err
	}

	// 5. Build and sign against a fresh block reference
	ref, err := uc.latestBlockhash(ctx)
	if err != nil {
		err = sol.ClassifyError(err)
		uc.record(ctx, userID, domain.TransactionKindTransfer, "", err)
		return nil, err
	}

	signed, err := sol.BuildTransfer(key, recipient, lamports, ref.Blockhash)
	if err != nil {
		uc.record(ctx, userID, domain.TransactionKindTransfer, "", err)
		return nil, err
	}

	// 6. Broadcast and confirm
	result, err := uc.broadcast(ctx, userID, signed, ref.LastValidBlockHeight)
	if result != nil {
		result.Amount = amount
		result.Recipient = recipient
	}
	return result, err
}

// ============================================================================
// STAGED TRANSACTIONS
// ============================================================================

// ConfirmAndSubmit signs and broadcasts a blob staged by the agent.
func (uc *TransactionUsecase) ConfirmAndSubmit(ctx context.Context, userID, blob string) (*domain.SubmitResult, error) {
	// 1. Wallet must still be unlocked
	wallet, err := uc.loadUnlocked(ctx, userID)
	if err != nil {
		return nil, err
	}

	// 2. Decode
	staged, err := sol.DecodeStaged(blob)
	if err != nil {
		uc.record(ctx, userID, "", "", err)
		return nil, err
	}

	uc.logger.Info("submitting staged transaction",
		zap.String("user_id", userID),
		zap.String("kind", string(staged.Kind)),
		zap.String("fee_payer", staged.FeePayer),
		zap.Int("instructions", staged.InstructionCount),
		zap.Strings("programs", staged.ProgramIDs))

	// 3. Unseal key
	key, err := uc.unseal(wallet)
	if err != nil {
		uc.record(ctx, userID, staged.Kind, "", err)
		return nil, err
	}
	defer sol.Wipe(key)

	// 4. Fresh block reference, then sign
	ref, err := uc.latestBlockhash(ctx)
	if err != nil {
		err = sol.ClassifyError(err)
		uc.record(ctx, userID, staged.Kind, "", err)
		return nil, err
	}

	signed, err := sol.SignStaged(blob, key, ref.Blockhash)
	if err != nil {
		uc.record(ctx, userID, staged.Kind, "", err)
		return nil, err
	}

	// 5. Broadcast and confirm
	return uc.broadcast(ctx, userID, signed, ref.LastValidBlockHeight)
}

// ============================================================================
// HELPERS
// ============================================================================

func (uc *TransactionUsecase) latestBlockhash(ctx context.Context) (*sol.BlockRef, error) {
	ctx, cancel := context.WithTimeout(ctx, uc.rpcTimeout)
	defer cancel()
	return uc.chain.LatestBlockhash(ctx)
}

func (uc *TransactionUsecase) loadUnlocked(ctx context.Context, userID string) (*domain.UserWallet, error) {
	wallet, err := uc.store.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if wallet.IsLocked {
		return nil, domain.ErrWalletLocked
	}
	return wallet, nil
}

// unseal decrypts the stored key and checks it still matches the address on
// record. Every failure collapses to ErrDecryption so no detail leaks.
func (uc *TransactionUsecase) unseal(wallet *domain.UserWallet) (solana.PrivateKey, error) {
	plaintext, err := uc.encryption.Decrypt(wallet.EncryptedPrivateKey)
	if err != nil {
		uc.logger.Error("failed to decrypt wallet key",
			zap.String("user_id", wallet.UserID),
			zap.String("encryption_version", wallet.EncryptionVersion))
		return nil, domain.ErrDecryption
	}

	key, err := sol.ParsePrivateKey(plaintext)
	if err != nil {
		uc.logger.Error("stored wallet key is not a valid secret key",
			zap.String("user_id", wallet.UserID))
		return nil, domain.ErrDecryption
	}
	if key.PublicKey().String() != wallet.PublicKey {
		sol.Wipe(key)
		uc.logger.Error("stored wallet key does not match address",
			zap.String("user_id", wallet.UserID))
		return nil, domain.ErrDecryption
	}
	return key, nil
}

// broadcast sends raw bytes and waits for confirmation. The returned result
// is non-nil once the node accepted the transaction, even when confirmation
// then failed or timed out.
func (uc *TransactionUsecase) broadcast(
	ctx context.Context,
	userID string,
	signed *sol.SignedTransaction,
	lastValidBlockHeight uint64,
) (*domain.SubmitResult, error) {

	sendCtx, cancel := context.WithTimeout(ctx, uc.rpcTimeout)
	sig, err := uc.chain.SendRaw(sendCtx, signed.Raw)
	cancel()
	if err != nil {
		err = sol.ClassifyError(err)
		uc.logger.Warn("broadcast failed",
			zap.String("user_id", userID),
			zap.String("error_class", domain.ErrorClass(err)),
			zap.Error(err))
		uc.record(ctx, userID, signed.Kind, "", err)
		return nil, err
	}

	result := &domain.SubmitResult{
		Kind:        signed.Kind,
		Signature:   sig.String(),
		ExplorerURL: uc.ExplorerURL(sig.String()),
		Broadcast:   true,
	}

	confirmCtx, cancel := context.WithTimeout(ctx, uc.confirmTimeout)
	defer cancel()

	timer := prometheus.NewTimer(metrics.ConfirmDuration.WithLabelValues(string(signed.Kind)))
	err = uc.chain.AwaitConfirmation(confirmCtx, sig, lastValidBlockHeight)
	timer.ObserveDuration()

	if err != nil {
		err = sol.ClassifyError(err)
		uc.logger.Warn("transaction not confirmed",
			zap.String("user_id", userID),
			zap.String("signature", result.Signature),
			zap.String("error_class", domain.ErrorClass(err)),
			zap.Error(err))
		uc.record(ctx, userID, signed.Kind, result.Signature, err)
		return result, err
	}

	uc.logger.Info("transaction confirmed",
		zap.String("user_id", userID),
		zap.String("kind", string(signed.Kind)),
		zap.String("signature", result.Signature))
	uc.record(ctx, userID, signed.Kind, result.Signature, nil)

	return result, nil
}

func (uc *TransactionUsecase) ExplorerURL(signature string) string {
	return strings.TrimRight(uc.explorerBase, "/") + "/" + signature
}

// record updates metrics and publishes the outcome. Publishing is best
// effort and never changes the result of the settlement.
func (uc *TransactionUsecase) record(ctx context.Context, userID string, kind domain.TransactionKind, signature string, err error) {
	status := domain.TransactionStatusConfirmed
	switch {
	case errors.Is(err, domain.ErrConfirmationTimeout) && signature != "":
		status = domain.TransactionStatusPending
	case err != nil:
		status = domain.TransactionStatusFailed
	}
	if kind == "" {
		kind = "unknown"
	}

	metrics.TransactionsTotal.WithLabelValues(string(kind), string(status)).Inc()

	ev := domain.TransactionEvent{
		EventID:    ulid.Make().String(),
		UserID:     userID,
		Kind:       kind,
		Signature:  signature,
		Status:     status,
		ErrorClass: domain.ErrorClass(err),
		OccurredAt: time.Now().UTC(),
	}
	if pubErr := uc.publisher.Publish(context.WithoutCancel(ctx), ev); pubErr != nil {
		uc.logger.Warn("failed to publish transaction event",
			zap.String("event_id", ev.EventID),
			zap.Error(fmt.Errorf("publish: %w", pubErr)))
	}
}
