// internal/chains/sol/errors.go
package sol

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"agent-wallet-service/internal/domain"
)

// ErrNoPerformanceSamples is returned by TPS when the node has no samples.
var ErrNoPerformanceSamples = errors.New("no performance samples available")

var classified = []error{
	domain.ErrInvalidInput,
	domain.ErrDecryption,
	domain.ErrInsufficientFunds,
	domain.ErrExpiredBlockReference,
	domain.ErrMalformedTransaction,
	domain.ErrSubmission,
	domain.ErrWalletLocked,
	domain.ErrConfirmationTimeout,
}

// ClassifyError maps RPC and signing failures onto the domain taxonomy by
// inspecting the provider message.
func ClassifyError(err error) error {
	if err == nil {
		return nil
	}
	for _, known := range classified {
		if errors.Is(err, known) {
			return err
		}
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", domain.ErrConfirmationTimeout, err)
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "insufficient funds"),
		strings.Contains(msg, "insufficient lamports"),
		strings.Contains(msg, "insufficientfunds"):
		return &domain.InsufficientFundsError{}
	case containsAny(msg, expiredPhrases):
		return domain.ErrExpiredBlockReference
	default:
		return &domain.SubmissionError{Detail: err.Error()}
	}
}

// expiredPhrases are the node responses for a transaction whose blockhash
// is no longer accepted.
var expiredPhrases = []string{
	"blockhash not found",
	"blockhashnotfound",
	"block height exceeded",
	"blockheightexceeded",
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
