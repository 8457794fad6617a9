// internal/usecase/replies.go
package usecase

import (
	"errors"
	"fmt"
	"strings"

	"agent-wallet-service/internal/domain"

	"github.com/shopspring/decimal"
)

const HelpMessage = `
*Wallet Bot Commands:*

*Wallet Management:*
• /start - Initialize a new Solana wallet
• /lock - Lock your wallet or set a password
• /unlock - Unlock your wallet
• /checkaddress - View your wallet's public address

*Wallet Operations:*
• /balance - Check your wallet balance
• /transfer - Send SOL to another wallet

*Security Features:*
- Set a password to protect your wallet
- Wallet can be locked/unlocked
- Passwords cannot be recovered
- Sensitive messages are automatically deleted
- Each user has a unique, secure Solana wallet

*How to Use:*
1. Start by initializing your wallet with /start
2. Set a password using /lock
3. Use /balance to check funds
4. Use /transfer to send SOL
5. Always keep your password secure!
6. Chat and sign transactions with the AI-agent

*Important Notes:*
- Locked wallets cannot perform transactions
- Your private key is securely encrypted
- Choose a strong, memorable password
- Passwords cannot be recovered!
`

const (
	msgWalletExists     = "You already have a wallet initialized."
	msgCreateFailed     = "An error occurred while creating your wallet. Please try again."
	msgAddressFailed    = "An error occurred while retrieving your address. Please try again."
	msgBalanceFailed    = "An error occurred while fetching your balance. Please try again."
	msgUnknownCommand   = "Unknown command. Use /help to see what I can do."
	msgProcessing       = "🤔 Processing your request...\n\n_VORTEXUS is analyzing your message..._"
	msgAgentFailed      = "❌ An error occurred. Please try again later."
	msgAgentTimeout     = "❌ The assistant took too long to answer. Please try again."
	msgPrepareFailed    = "❌ Error preparing transaction. Please try again."
	msgSubmitting       = "🔄 *Processing Transaction*\n\n_Please wait while we complete your transaction..._\n\n⚡️ Submitting to Solana network..."
	msgCallbackFailed   = "❌ *Error*\n\nAn error occurred while processing your request.\n\nPlease try again."
	msgTransferFailed   = "An error occurred during the transfer. Please try again."
	msgPasswordFailed   = "An error occurred while setting your password. Please try again."
	msgUnlockFailed     = "An error occurred while unlocking your wallet. Please try again."
	msgDecryptionFailed = "❌ *Transaction Failed*\n\nYour wallet credentials could not be read. Please contact support."
)

func addressBlock(address string) string {
	return "Your wallet address:\n\n`" + address + "`\n\n" +
		"⚡️ Tap the address above to copy it\n" +
		"⚠️ Always verify the address after copying"
}

func welcomeMessage(address string) string {
	return "Welcome! A dedicated wallet has been created for you.\n\n" + addressBlock(address)
}

func balanceMessage(balance decimal.Decimal) string {
	return fmt.Sprintf("Your wallet balance is: %s SOL", balance.String())
}

// networkLabel names a cluster the way users know it.
func networkLabel(network string) string {
	switch network {
	case "", "mainnet-beta", "mainnet":
		return "Solana Mainnet"
	case "devnet":
		return "Solana Devnet"
	case "testnet":
		return "Solana Testnet"
	default:
		return "Solana " + network
	}
}

func confirmationMessage(staged *domain.StagedTransaction, network string) string {
	var b strings.Builder
	b.WriteString("🔄 *New Transaction Request*\n\n")
	fmt.Fprintf(&b, "Network: %s\n", networkLabel(network))
	fmt.Fprintf(&b, "Type: %s\n", staged.Kind)
	fmt.Fprintf(&b, "Instructions: %d\n", staged.InstructionCount)
	if staged.RequiredSigners > 1 {
		fmt.Fprintf(&b, "Signers: %d\n", staged.RequiredSigners)
	}
	b.WriteString("\n⚠️ Please review before confirming.")
	return b.String()
}

func submitSuccessMessage(result *domain.SubmitResult) string {
	return "✅ *Transaction Successful!*\n\n" +
		"View on Solscan: [View Transaction](" + result.ExplorerURL + ")\n\n" +
		"_Your wallet has been updated._"
}

func transferSuccessMessage(result *domain.SubmitResult) string {
	return fmt.Sprintf("Transfer of %s SOL successful! Transaction signature: [%s](%s)",
		result.Amount.String(), result.Signature, result.ExplorerURL)
}

func pendingMessage(result *domain.SubmitResult) string {
	return "⏳ *Transaction Submitted*\n\n" +
		"The network has not confirmed it yet. Check its status on Solscan: " +
		"[View Transaction](" + result.ExplorerURL + ")"
}

// submitFailureMessage describes a failed confirm round. retained is true
// when the staged transaction is kept for another attempt.
func submitFailureMessage(err error, retained bool) string {
	msg := "❌ *Transaction Failed*\n\n"

	var funds *domain.InsufficientFundsError
	switch {
	case errors.As(err, &funds):
		msg += "Your wallet has insufficient funds to complete this transaction.\n\n" +
			"Please check your balance and try again."
	case errors.Is(err, domain.ErrExpiredBlockReference):
		msg += "The transaction timed out.\n\n" +
			"Please try submitting your transaction again."
	case errors.Is(err, domain.ErrConfirmationTimeout):
		msg += "The network did not respond in time."
		if retained {
			msg += "\n\nNothing was sent. Tap confirm again to retry."
		}
	case errors.Is(err, domain.ErrMalformedTransaction):
		msg += "The transaction could not be read. Please ask for a new one."
	case errors.Is(err, domain.ErrWalletLocked):
		msg = "Wallet is locked. Please /unlock to use this command."
	case errors.Is(err, domain.ErrDecryption):
		msg = msgDecryptionFailed
	default:
		msg += "There was an error processing your transaction:\n" + err.Error()
	}
	return msg
}

// transferFailureMessage describes a failed /transfer.
func transferFailureMessage(err error) string {
	var funds *domain.InsufficientFundsError
	switch {
	case errors.As(err, &funds) && !funds.Required.IsZero():
		return fmt.Sprintf("Insufficient balance. Your wallet has %s SOL, but you need at least %s SOL.",
			funds.Balance.String(), funds.Required.String())
	case errors.Is(err, domain.ErrInsufficientFunds):
		return "Insufficient balance to complete this transfer."
	case errors.Is(err, domain.ErrWalletLocked):
		return "Wallet is locked. Please /unlock to use this command."
	case errors.Is(err, domain.ErrInvalidInput):
		return strings.TrimPrefix(err.Error(), domain.ErrInvalidInput.Error()+": ") + ". Transfer cancelled."
	case errors.Is(err, domain.ErrExpiredBlockReference):
		return "The transfer timed out before it was confirmed. Please try again."
	case errors.Is(err, domain.ErrDecryption):
		return msgDecryptionFailed
	case errors.Is(err, domain.ErrSubmission):
		return "Transfer failed: " + err.Error()
	default:
		return msgTransferFailed
	}
}
