// internal/tools/registry.go
package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"agent-wallet-service/internal/chains/sol"
	"agent-wallet-service/internal/domain"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type Name string

const (
	GetBalance            Name = "get_balance"
	GetSPLBalance         Name = "get_spl_balance"
	GetTransactionCount   Name = "get_transaction_count"
	GetTPS                Name = "get_tps"
	GetTransactionReceipt Name = "get_transaction_receipt"
	BuyTokens             Name = "buy_tokens"
)

// Tool is the model facing definition of one capability. Parameters is a
// JSON schema object.
type Tool struct {
	Name        Name
	Description string
	Parameters  map[string]any
	Write       bool
}

// ChainReader is the read side of the Solana client.
type ChainReader interface {
	Balance(ctx context.Context, address string) (uint64, error)
	TokenBalance(ctx context.Context, owner, mint string) (*sol.TokenBalance, error)
	SignatureCount(ctx context.Context, address string) (int, error)
	TPS(ctx context.Context) (float64, error)
	Receipt(ctx context.Context, signature string) (*sol.Receipt, error)
}

// SwapBuilder returns an unsigned base64 swap transaction.
type SwapBuilder interface {
	BuildSwap(ctx context.Context, req SwapRequest) (string, error)
}

type SwapRequest struct {
	OutputMint  string
	InputAmount decimal.Decimal
	UserWallet  string
}

func addressProperty(description string) map[string]any {
	return map[string]any{
		"type":        "string",
		"pattern":     "^[1-9A-HJ-NP-Za-km-z]{32,44}$",
		"description": description,
	}
}

func objectSchema(properties map[string]any, required ...string) map[string]any {
	if required == nil {
		required = []string{}
	}
	return map[string]any{
		"type":       "object",
		"properties": properties,
		"required":   required,
	}
}

var definitions = []Tool{
	{
		Name:        GetBalance,
		Description: "Get the SOL balance of a wallet on Solana",
		Parameters: objectSchema(map[string]any{
			"wallet": addressProperty("The wallet address to get the balance of"),
		}, "wallet"),
	},
	{
		Name:        GetSPLBalance,
		Description: "Get the balance of an SPL token held by a wallet on Solana",
		Parameters: objectSchema(map[string]any{
			"tokenMintAddress": addressProperty("The mint address of the SPL token"),
			"walletAddress":    addressProperty("The wallet address holding the token"),
		}, "tokenMintAddress", "walletAddress"),
	},
	{
		Name:        GetTransactionCount,
		Description: "Get the transaction count of a wallet on Solana",
		Parameters: objectSchema(map[string]any{
			"wallet": addressProperty("The wallet address to get the transaction count of"),
		}, "wallet"),
	},
	{
		Name:        GetTPS,
		Description: "Get the current transactions per second (TPS) on Solana",
		Parameters:  objectSchema(map[string]any{}),
	},
	{
		Name:        GetTransactionReceipt,
		Description: "Get the status and fee of a Solana transaction by signature",
		Parameters: objectSchema(map[string]any{
			"hash": map[string]any{
				"type":        "string",
				"description": "The transaction signature",
			},
		}, "hash"),
	},
	{
		Name:        BuyTokens,
		Description: "Obtain a raw unsigned transaction to buy a token with SOL using Jupiter Exchange",
		Write:       true,
		Parameters: objectSchema(map[string]any{
			"outputMint": addressProperty("The mint address of the output token"),
			"inputAmount": map[string]any{
				"type":        "number",
				"description": "The amount of SOL to spend",
			},
			"userWallet": addressProperty("The wallet address to perform the trade from"),
		}, "outputMint", "inputAmount", "userWallet"),
	},
}

// Registry is the fixed set of tools offered to the model.
type Registry struct {
	chain  ChainReader
	swaps  SwapBuilder
	logger *zap.Logger
}

func NewRegistry(chain ChainReader, swaps SwapBuilder, logger *zap.Logger) *Registry {
	return &Registry{chain: chain, swaps: swaps, logger: logger}
}

func (r *Registry) Definitions() []Tool {
	out := make([]Tool, len(definitions))
	copy(out, definitions)
	return out
}

// Run executes the named tool and returns its output as text for the model.
// Unknown names fail with domain.ErrToolNotFound.
func (r *Registry) Run(ctx context.Context, name string, args string) (string, error) {
	if args == "" {
		args = "{}"
	}

	var (
		out any
		err error
	)
	switch Name(name) {
	case GetBalance:
		out, err = r.getBalance(ctx, args)
	case GetSPLBalance:
		out, err = r.getSPLBalance(ctx, args)
	case GetTransactionCount:
		out, err = r.getTransactionCount(ctx, args)
	case GetTPS:
		out, err = r.getTPS(ctx)
	case GetTransactionReceipt:
		out, err = r.getTransactionReceipt(ctx, args)
	case BuyTokens:
		out, err = r.buyTokens(ctx, args)
	default:
		return "", fmt.Errorf("%w: %s", domain.ErrToolNotFound, name)
	}
	if err != nil {
		return "", err
	}

	if s, ok := out.(string); ok {
		return s, nil
	}
	data, err := json.Marshal(out)
	if err != nil {
		return "", fmt.Errorf("failed to encode %s output: %w", name, err)
	}
	return string(data), nil
}

func decodeArgs(args string, dest any) error {
	if err := json.Unmarshal([]byte(args), dest); err != nil {
		return domain.NewInvalidInput("arguments are not valid JSON: " + err.Error())
	}
	return nil
}

func (r *Registry) getBalance(ctx context.Context, args string) (any, error) {
	var in struct {
		Wallet string `json:"wallet"`
	}
	if err := decodeArgs(args, &in); err != nil {
		return nil, err
	}
	lamports, err := r.chain.Balance(ctx, in.Wallet)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"wallet":  in.Wallet,
		"balance": domain.LamportsToSOL(lamports).String(),
		"unit":    "SOL",
	}, nil
}

func (r *Registry) getSPLBalance(ctx context.Context, args string) (any, error) {
	var in struct {
		TokenMintAddress string `json:"tokenMintAddress"`
		WalletAddress    string `json:"walletAddress"`
	}
	if err := decodeArgs(args, &in); err != nil {
		return nil, err
	}
	return r.chain.TokenBalance(ctx, in.WalletAddress, in.TokenMintAddress)
}

func (r *Registry) getTransactionCount(ctx context.Context, args string) (any, error) {
	var in struct {
		Wallet string `json:"wallet"`
	}
	if err := decodeArgs(args, &in); err != nil {
		return nil, err
	}
	count, err := r.chain.SignatureCount(ctx, in.Wallet)
	if err != nil {
		return nil, err
	}
	return map[string]any{"wallet": in.Wallet, "transaction_count": count}, nil
}

func (r *Registry) getTPS(ctx context.Context) (any, error) {
	tps, err := r.chain.TPS(ctx)
	if errors.Is(err, sol.ErrNoPerformanceSamples) {
		return "No performance samples available", nil
	}
	if err != nil {
		return nil, err
	}
	return map[string]any{"tps": tps}, nil
}

func (r *Registry) getTransactionReceipt(ctx context.Context, args string) (any, error) {
	var in struct {
		Hash string `json:"hash"`
	}
	if err := decodeArgs(args, &in); err != nil {
		return nil, err
	}
	return r.chain.Receipt(ctx, in.Hash)
}

// swapFailure mirrors the error shape the model is prompted to expect from
// buy_tokens.
type swapFailure struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

func (r *Registry) buyTokens(ctx context.Context, args string) (any, error) {
	var in struct {
		OutputMint  string          `json:"outputMint"`
		InputAmount decimal.Decimal `json:"inputAmount"`
		UserWallet  string          `json:"userWallet"`
	}
	if err := decodeArgs(args, &in); err != nil {
		return nil, err
	}
	if r.swaps == nil {
		return swapFailure{Status: "error", Message: "swaps are not configured", Code: "UNAVAILABLE"}, nil
	}

	tx, err := r.swaps.BuildSwap(ctx, SwapRequest{
		OutputMint:  in.OutputMint,
		InputAmount: in.InputAmount,
		UserWallet:  in.UserWallet,
	})
	if err != nil {
		r.logger.Warn("swap build failed",
			zap.String("output_mint", in.OutputMint),
			zap.Error(err))
		return swapFailure{Status: "error", Message: err.Error(), Code: swapErrorCode(err)}, nil
	}

	return map[string]any{"success": true, "transaction": tx}, nil
}
