// internal/session/messages.go
package session

const (
	MsgNoWallet          = "You do not have a wallet. Use /start to initialize one."
	MsgWalletLocked      = "Wallet is locked. Please /unlock to use this command."
	MsgWalletLockedChat  = "Wallet is locked. /unlock to continue."
	MsgPromptPasswordSet = "Please set a password for your wallet by sending your desired password in the next message. Passwords can not be recovered."
	MsgPromptPassword    = "Please enter your wallet password."
	MsgPasswordNotSet    = "You have not set a password yet. Use /lock to set a password first."
	MsgLocked            = "Your wallet has been locked."
	MsgPasswordSet       = "Password set successfully. Your wallet is now locked."
	MsgUnlocked          = "Your wallet has been unlocked successfully."
	MsgIncorrectPassword = "Incorrect password. Please try again."
	MsgPromptRecipient   = "Please provide the recipient wallet address."
	MsgInvalidRecipient  = "Invalid wallet address. Please provide a valid Solana wallet address."
	MsgPromptAmount      = "Please enter the amount to transfer (in SOL)."
	MsgInvalidAmount     = "Invalid amount. Please enter a valid number greater than 0 with at most 9 decimal places. Transfer cancelled."
	MsgPendingExists     = "You have a transaction waiting for confirmation. Please confirm or cancel it first."
	MsgNothingPending    = "There is no pending transaction to confirm."
	MsgStaleConfirmation = "This confirmation is no longer valid."
	MsgAlreadyProcessing = "This transaction is already being processed."
	MsgTransactionCancel = "❌ Transaction cancelled.\n_Your wallet remains unchanged._"
	MsgGenericError      = "An error occurred while processing your request. Please try again."
)
