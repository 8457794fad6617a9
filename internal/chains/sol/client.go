// internal/chains/sol/client.go
package sol

import (
	"context"
	"errors"
	"fmt"
	"time"

	"agent-wallet-service/internal/domain"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"go.uber.org/zap"
)

// BlockRef is the blockhash a transaction embeds plus the last block height
// at which it is still accepted.
type BlockRef struct {
	Blockhash            solana.Hash
	LastValidBlockHeight uint64
}

// Receipt is the subset of getTransaction surfaced to the agent.
type Receipt struct {
	Signature string `json:"signature"`
	Slot      uint64 `json:"slot"`
	BlockTime *int64 `json:"block_time,omitempty"`
	Fee       uint64 `json:"fee"`
	Success   bool   `json:"success"`
	Error     string `json:"error,omitempty"`
}

// TokenBalance is an SPL token account balance in UI units.
type TokenBalance struct {
	Mint     string `json:"mint"`
	Owner    string `json:"owner"`
	Amount   string `json:"amount"`
	Decimals uint8  `json:"decimals"`
	UIAmount string `json:"ui_amount"`
}

type Client struct {
	rpc          *rpc.Client
	commitment   rpc.CommitmentType
	pollInterval time.Duration
	logger       *zap.Logger
}

func NewClient(rpcURL, commitment string, pollInterval time.Duration, logger *zap.Logger) *Client {
	if pollInterval <= 0 {
		pollInterval = 2 * time.Second
	}
	return &Client{
		rpc:          rpc.New(rpcURL),
		commitment:   ParseCommitment(commitment),
		pollInterval: pollInterval,
		logger:       logger,
	}
}

func ParseCommitment(c string) rpc.CommitmentType {
	switch c {
	case "processed":
		return rpc.CommitmentProcessed
	case "finalized":
		return rpc.CommitmentFinalized
	default:
		return rpc.CommitmentConfirmed
	}
}

// Balance returns the account balance in lamports.
func (c *Client) Balance(ctx context.Context, address string) (uint64, error) {
	pk, err := solana.PublicKeyFromBase58(address)
	if err != nil {
		return 0, domain.NewInvalidInput("invalid wallet address")
	}

	out, err := c.rpc.GetBalance(ctx, pk, c.commitment)
	if err != nil {
		return 0, fmt.Errorf("failed to get balance: %w", err)
	}
	return out.Value, nil
}

// LatestBlockhash fetches a fresh block reference. Failures are already
// classified: a deadline is ErrConfirmationTimeout, anything else is a
// SubmissionError carrying the node's detail.
func (c *Client) LatestBlockhash(ctx context.Context) (*BlockRef, error) {
	out, err := c.rpc.GetLatestBlockhash(ctx, c.commitment)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: fetching latest blockhash", domain.ErrConfirmationTimeout)
		}
		return nil, &domain.SubmissionError{Detail: "failed to get latest blockhash: " + err.Error()}
	}
	if out == nil || out.Value == nil {
		return nil, &domain.SubmissionError{Detail: "failed to get latest blockhash: empty response"}
	}
	return &BlockRef{
		Blockhash:            out.Value.Blockhash,
		LastValidBlockHeight: out.Value.LastValidBlockHeight,
	}, nil
}

func (c *Client) SendRaw(ctx context.Context, raw []byte) (solana.Signature, error) {
	sig, err := c.rpc.SendRawTransaction(ctx, raw)
	if err != nil {
		return solana.Signature{}, fmt.Errorf("failed to send transaction: %w", err)
	}
	return sig, nil
}

// AwaitConfirmation polls the signature status until it reaches the client
// commitment, fails on chain, or the block height passes lastValidBlockHeight.
func (c *Client) AwaitConfirmation(ctx context.Context, sig solana.Signature, lastValidBlockHeight uint64) error {
	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for {
		done, err := c.checkStatus(ctx, sig)
		if err != nil || done {
			return err
		}

		height, err := c.rpc.GetBlockHeight(ctx, c.commitment)
		if err == nil && height > lastValidBlockHeight {
			return fmt.Errorf("%w: block height exceeded", domain.ErrExpiredBlockReference)
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("%w: %s", domain.ErrConfirmationTimeout, sig.String())
		case <-ticker.C:
		}
	}
}

func (c *Client) checkStatus(ctx context.Context, sig solana.Signature) (bool, error) {
	out, err := c.rpc.GetSignatureStatuses(ctx, false, sig)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return false, fmt.Errorf("%w: %s", domain.ErrConfirmationTimeout, sig.String())
		}
		c.logger.Warn("signature status lookup failed", zap.String("signature", sig.String()), zap.Error(err))
		return false, nil
	}
	if out == nil || len(out.Value) == 0 || out.Value[0] == nil {
		return false, nil
	}

	status := out.Value[0]
	if status.Err != nil {
		return false, &domain.SubmissionError{Detail: fmt.Sprintf("transaction failed on chain: %v", status.Err)}
	}

	switch status.ConfirmationStatus {
	case rpc.ConfirmationStatusFinalized:
		return true, nil
	case rpc.ConfirmationStatusConfirmed:
		return c.commitment != rpc.CommitmentFinalized, nil
	case rpc.ConfirmationStatusProcessed:
		return c.commitment == rpc.CommitmentProcessed, nil
	}
	return false, nil
}

// TPS derives transactions per second from the latest performance sample.
func (c *Client) TPS(ctx context.Context) (float64, error) {
	limit := uint(1)
	samples, err := c.rpc.GetRecentPerformanceSamples(ctx, &limit)
	if err != nil {
		return 0, fmt.Errorf("failed to get performance samples: %w", err)
	}
	if len(samples) == 0 || samples[0] == nil || samples[0].SamplePeriodSecs == 0 {
		return 0, ErrNoPerformanceSamples
	}
	return float64(samples[0].NumTransactions) / float64(samples[0].SamplePeriodSecs), nil
}

// SignatureCount returns how many signatures the node reports for address.
func (c *Client) SignatureCount(ctx context.Context, address string) (int, error) {
	pk, err := solana.PublicKeyFromBase58(address)
	if err != nil {
		return 0, domain.NewInvalidInput("invalid wallet address")
	}
	sigs, err := c.rpc.GetSignaturesForAddress(ctx, pk)
	if err != nil {
		return 0, fmt.Errorf("failed to get signatures: %w", err)
	}
	return len(sigs), nil
}

// TokenBalance reads the owner's associated token account for mint.
func (c *Client) TokenBalance(ctx context.Context, owner, mint string) (*TokenBalance, error) {
	ownerKey, err := solana.PublicKeyFromBase58(owner)
	if err != nil {
		return nil, domain.NewInvalidInput("invalid wallet address")
	}
	mintKey, err := solana.PublicKeyFromBase58(mint)
	if err != nil {
		return nil, domain.NewInvalidInput("invalid token mint address")
	}

	ata, _, err := solana.FindAssociatedTokenAddress(ownerKey, mintKey)
	if err != nil {
		return nil, fmt.Errorf("failed to derive token account: %w", err)
	}

	out, err := c.rpc.GetTokenAccountBalance(ctx, ata, c.commitment)
	if err != nil {
		return nil, fmt.Errorf("failed to get token balance: %w", err)
	}
	if out == nil || out.Value == nil {
		return nil, fmt.Errorf("failed to get token balance: empty response")
	}

	return &TokenBalance{
		Mint:     mint,
		Owner:    owner,
		Amount:   out.Value.Amount,
		Decimals: out.Value.Decimals,
		UIAmount: out.Value.UiAmountString,
	}, nil
}

func (c *Client) Receipt(ctx context.Context, signature string) (*Receipt, error) {
	sig, err := solana.SignatureFromBase58(signature)
	if err != nil {
		return nil, domain.NewInvalidInput("invalid transaction signature")
	}

	maxVersion := uint64(0)
	out, err := c.rpc.GetTransaction(ctx, sig, &rpc.GetTransactionOpts{
		Encoding:                       solana.EncodingBase64,
		Commitment:                     rpc.CommitmentConfirmed,
		MaxSupportedTransactionVersion: &maxVersion,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get transaction: %w", err)
	}

	receipt := &Receipt{Signature: signature, Slot: out.Slot, Success: true}
	if out.BlockTime != nil {
		bt := int64(*out.BlockTime)
		receipt.BlockTime = &bt
	}
	if out.Meta != nil {
		receipt.Fee = out.Meta.Fee
		if out.Meta.Err != nil {
			receipt.Success = false
			receipt.Error = fmt.Sprint(out.Meta.Err)
		}
	}
	return receipt, nil
}
