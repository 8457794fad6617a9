// internal/chains/sol/wallet.go
package sol

import (
	"encoding/base64"
	"fmt"
	"strings"

	"agent-wallet-service/internal/domain"

	"github.com/gagliardetto/solana-go"
	"github.com/mr-tron/base58"
)

const secretKeySize = 64

// GenerateWallet creates a new ed25519 keypair. The secret key is returned
// base64 encoded so it can be sealed as text.
func GenerateWallet() *domain.WalletKeys {
	account := solana.NewWallet()
	return &domain.WalletKeys{
		Address:    account.PublicKey().String(),
		PrivateKey: base64.StdEncoding.EncodeToString(account.PrivateKey),
	}
}

// ParsePrivateKey accepts a 64 byte secret key encoded as base64 (the
// storage format) or base58 (the format most wallets export).
func ParsePrivateKey(secret string) (solana.PrivateKey, error) {
	secret = strings.TrimSpace(secret)

	if raw, err := base64.StdEncoding.DecodeString(secret); err == nil && len(raw) == secretKeySize {
		return solana.PrivateKey(raw), nil
	}
	if raw, err := base58.Decode(secret); err == nil && len(raw) == secretKeySize {
		return solana.PrivateKey(raw), nil
	}
	return nil, fmt.Errorf("private key must be a %d byte secret key", secretKeySize)
}

// IsValidAddress checks base58 decoding and that the key lies on the
// ed25519 curve, which rejects program derived addresses.
func IsValidAddress(address string) bool {
	pk, err := solana.PublicKeyFromBase58(strings.TrimSpace(address))
	if err != nil {
		return false
	}
	return solana.IsOnCurve(pk[:])
}

// Wipe zeroes key material once signing is done.
func Wipe(key solana.PrivateKey) {
	for i := range key {
		key[i] = 0
	}
}
