package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"agent-wallet-service/internal/agent"
	"agent-wallet-service/internal/domain"
	"agent-wallet-service/internal/session"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStartCreatesWallet(t *testing.T) {
	h := newHarness(t)

	h.command("u", "start")

	w := h.wallet(t, "u")
	assert.False(t, w.IsLocked)
	assert.Nil(t, w.PasswordHash)
	assert.NotEmpty(t, w.EncryptedPrivateKey)
	assert.NotContains(t, w.EncryptedPrivateKey, w.PublicKey)
	assert.Contains(t, h.messenger.last(), "`"+w.PublicKey+"`")
	assert.Contains(t, h.messenger.last(), "Welcome!")

	h.command("u", "start")
	assert.Equal(t, msgWalletExists, h.messenger.last())
	assert.Equal(t, w.PublicKey, h.wallet(t, "u").PublicKey)
}

func TestCommandsWithoutWallet(t *testing.T) {
	h := newHarness(t)
	for _, cmd := range []string{"checkaddress", "balance", "lock", "unlock", "transfer"} {
		h.command("nobody", cmd)
		assert.Equal(t, session.MsgNoWallet, h.messenger.last(), cmd)
	}

	h.text("nobody", 1, "hello")
	assert.Equal(t, session.MsgNoWallet, h.messenger.last())
	assert.Empty(t, h.prompts.requests)
}

func TestHelpAndUnknownCommand(t *testing.T) {
	h := newHarness(t)
	h.command("u", "help")
	assert.Equal(t, HelpMessage, h.messenger.last())

	h.command("u", "frobnicate")
	assert.Equal(t, msgUnknownCommand, h.messenger.last())

	h.callback("u", "bogus_action", 42)
	assert.Equal(t, msgCallbackFailed, h.messenger.last())
	assert.True(t, h.state(t, "u").Empty())
}

func TestSmallBalanceIsNotRounded(t *testing.T) {
	h := newHarness(t)
	h.command("u", "start")
	h.chain.balance = 4_000

	h.command("u", "balance")
	assert.Equal(t, "Your wallet balance is: 0.000004 SOL", h.messenger.last())

	h.command("u", "transfer")
	h.text("u", 4, solana.NewWallet().PublicKey().String())
	h.text("u", 5, "0.000001")
	assert.Equal(t, "Insufficient balance. Your wallet has 0.000004 SOL, but you need at least 0.000006 SOL.", h.messenger.last())
}

func TestConfirmationNamesConfiguredNetwork(t *testing.T) {
	h := newHarness(t)
	h.command("u", "start")
	w := h.wallet(t, "u")

	conf := stageTransaction(t, h, structuredOutput(t, legacyBlob(t, mustPublicKey(t, w.PublicKey))))
	assert.Contains(t, conf.Text, "Network: Solana Devnet\n")
	assert.NotContains(t, conf.Text, "Mainnet")

	assert.Equal(t, "Solana Mainnet", networkLabel("mainnet-beta"))
	assert.Equal(t, "Solana Testnet", networkLabel("testnet"))
	assert.Equal(t, "Solana localnet", networkLabel("localnet"))
}

func TestBalanceAndAddress(t *testing.T) {
	h := newHarness(t)
	h.command("u", "start")
	h.chain.balance = 1_234_000_000

	h.command("u", "balance")
	assert.Equal(t, "Your wallet balance is: 1.234 SOL", h.messenger.last())

	h.command("u", "checkaddress")
	assert.Contains(t, h.messenger.last(), h.wallet(t, "u").PublicKey)

	h.chain.balanceErr = errors.New("rpc down")
	h.command("u", "balance")
	assert.Equal(t, msgBalanceFailed, h.messenger.last())
}

func TestLockSetsPasswordAndDeletesIt(t *testing.T) {
	h := newHarness(t)
	h.command("u", "start")

	h.command("u", "lock")
	assert.Equal(t, session.MsgPromptPasswordSet, h.messenger.last())

	h.text("u", 55, "correct horse")
	assert.Equal(t, session.MsgPasswordSet, h.messenger.last())
	assert.Contains(t, h.messenger.deleted, 55)

	w := h.wallet(t, "u")
	assert.True(t, w.IsLocked)
	require.NotNil(t, w.PasswordHash)
	assert.NotEqual(t, "correct horse", *w.PasswordHash)

	s := h.state(t, "u")
	assert.Equal(t, session.ModeIdle, s.Mode)
	assert.Zero(t, s.LastSensitiveMessageRef)

	// locked wallets refuse balance
	h.command("u", "balance")
	assert.Equal(t, session.MsgWalletLocked, h.messenger.last())

	// with a password, /lock on an unlocked wallet locks directly
	require.NoError(t, h.wallets.SetLocked(context.Background(), "u", false))
	h.command("u", "lock")
	assert.Equal(t, session.MsgLocked, h.messenger.last())
	assert.True(t, h.wallet(t, "u").IsLocked)
}

func TestUnlockRetriesOnWrongPassword(t *testing.T) {
	h := newHarness(t)
	h.command("u", "start")
	h.command("u", "lock")
	h.text("u", 10, "s3cret")

	h.command("u", "unlock")
	assert.Equal(t, session.MsgPromptPassword, h.messenger.last())

	h.text("u", 11, "wrong")
	assert.Equal(t, session.MsgIncorrectPassword, h.messenger.last())
	assert.Contains(t, h.messenger.deleted, 11)
	assert.Equal(t, session.ModeAwaitingPasswordUnlock, h.state(t, "u").Mode)
	assert.True(t, h.wallet(t, "u").IsLocked)

	h.text("u", 12, "s3cret")
	assert.Equal(t, session.MsgUnlocked, h.messenger.last())
	assert.Contains(t, h.messenger.deleted, 12)
	assert.False(t, h.wallet(t, "u").IsLocked)
	assert.Equal(t, session.ModeIdle, h.state(t, "u").Mode)
}

func TestLockedWalletTextNeverReachesAgent(t *testing.T) {
	h := newHarness(t)
	h.command("u", "start")
	h.command("u", "lock")
	h.text("u", 1, "pw")

	h.text("u", 2, "buy me some BONK")

	assert.Equal(t, session.MsgWalletLockedChat, h.messenger.last())
	assert.Empty(t, h.prompts.requests)
}

func TestInvalidRecipientKeepsAwaitingWithoutBalanceQuery(t *testing.T) {
	h := newHarness(t)
	h.command("u", "start")

	h.command("u", "transfer")
	assert.Equal(t, session.MsgPromptRecipient, h.messenger.last())

	h.text("u", 3, "0xNotASolanaAddress")
	assert.Equal(t, session.MsgInvalidRecipient, h.messenger.last())
	assert.Equal(t, session.ModeAwaitingTransferRecipient, h.state(t, "u").Mode)
	assert.Equal(t, 0, h.chain.balanceCalls)
}

func TestDirectTransferFlow(t *testing.T) {
	h := newHarness(t)
	h.command("u", "start")
	h.chain.balance = domain.LamportsPerSOL
	recipient := solana.NewWallet().PublicKey().String()

	h.command("u", "transfer")
	h.text("u", 4, recipient)
	assert.Equal(t, session.MsgPromptAmount, h.messenger.last())

	h.text("u", 5, "0.5")
	assert.True(t, strings.HasPrefix(h.messenger.last(), "Transfer of 0.5 SOL successful!"), h.messenger.last())
	assert.Contains(t, h.messenger.last(), "https://solscan.io/tx/")
	assert.Equal(t, 1, h.chain.sentCount())
	assert.True(t, h.state(t, "u").Empty())
}

func TestDirectTransferInsufficientFundsClearsState(t *testing.T) {
	h := newHarness(t)
	h.command("u", "start")
	h.chain.balance = 100_000_000
	recipient := solana.NewWallet().PublicKey().String()

	h.command("u", "transfer")
	h.text("u", 4, recipient)
	h.text("u", 5, "2")

	assert.Equal(t, "Insufficient balance. Your wallet has 0.1 SOL, but you need at least 2.000005 SOL.", h.messenger.last())
	assert.Equal(t, 0, h.chain.sentCount())
	assert.True(t, h.state(t, "u").Empty())
}

func TestInvalidAmountAbortsTransfer(t *testing.T) {
	h := newHarness(t)
	h.command("u", "start")
	h.command("u", "transfer")
	h.text("u", 4, solana.NewWallet().PublicKey().String())

	h.text("u", 5, "lots")
	assert.Equal(t, session.MsgInvalidAmount, h.messenger.last())
	assert.True(t, h.state(t, "u").Empty())
}

func stageTransaction(t *testing.T, h *harness, output string) sentMessage {
	t.Helper()
	h.prompts.resp = &agent.PromptResponse{
		Response: "Here is your swap.",
		Output:   json.RawMessage(output),
		ThreadID: "thread-1",
	}
	h.text("u", 20, "swap 0.1 SOL for BONK")

	conf, ok := h.messenger.lastConfirmation()
	require.True(t, ok, "no confirmation presented: %v", h.messenger.texts())
	return conf
}

func structuredOutput(t *testing.T, blob string) string {
	t.Helper()
	inner, err := json.Marshal(map[string]any{"success": true, "transaction": blob})
	require.NoError(t, err)
	outer, err := json.Marshal(string(inner))
	require.NoError(t, err)
	return string(outer)
}

func TestAgentReplyIsRelayedAndThreadStored(t *testing.T) {
	h := newHarness(t)
	h.command("u", "start")
	w := h.wallet(t, "u")

	h.prompts.resp = &agent.PromptResponse{Response: "SOL is at 150 TPS", ThreadID: "thread-9"}
	h.text("u", 1, "how busy is solana?")

	require.Len(t, h.prompts.requests, 1)
	assert.Equal(t, w.PublicKey, h.prompts.requests[0].WalletAddress)
	assert.Empty(t, h.prompts.requests[0].ThreadID)
	assert.Equal(t, "SOL is at 150 TPS", h.messenger.last())
	assert.Equal(t, "thread-9", h.wallet(t, "u").Thread())

	// the processing notice is removed again
	assert.Contains(t, h.messenger.texts(), msgProcessing)
	assert.Contains(t, h.messenger.deleted, h.messenger.sent[1].Ref)

	h.text("u", 2, "and now?")
	require.Len(t, h.prompts.requests, 2)
	assert.Equal(t, "thread-9", h.prompts.requests[1].ThreadID)
	assert.Empty(t, h.prompts.requests[1].WalletAddress)
}

func TestAgentTimeout(t *testing.T) {
	h := newHarness(t)
	h.dispatcher.agentTimeout = 20 * time.Millisecond
	h.command("u", "start")

	h.prompts.delay = time.Second
	h.text("u", 1, "slow question")
	assert.Equal(t, msgAgentTimeout, h.messenger.last())
}

func TestStagedTransactionCancel(t *testing.T) {
	h := newHarness(t)
	h.command("u", "start")
	w := h.wallet(t, "u")

	conf := stageTransaction(t, h, structuredOutput(t, versionedBlob(mustPublicKey(t, w.PublicKey), solana.Hash{})))
	assert.Contains(t, conf.Text, "New Transaction Request")

	s := h.state(t, "u")
	require.NotNil(t, s.Pending)
	assert.Equal(t, conf.Ref, s.Pending.ConfirmationMessageRef)

	// free text is held back while a transaction waits
	h.text("u", 21, "what about ETH?")
	assert.Equal(t, session.MsgPendingExists, h.messenger.last())
	assert.Len(t, h.prompts.requests, 1)

	h.callback("u", domain.CallbackCancelTransaction, conf.Ref)
	assert.Equal(t, session.MsgTransactionCancel, h.messenger.last())
	assert.Contains(t, h.messenger.deleted, conf.Ref)
	assert.Nil(t, h.state(t, "u").Pending)
	assert.Equal(t, 0, h.chain.sentCount())
}

func TestStagedTransactionConfirmOnce(t *testing.T) {
	h := newHarness(t)
	h.command("u", "start")
	w := h.wallet(t, "u")

	conf := stageTransaction(t, h, structuredOutput(t, legacyBlob(t, mustPublicKey(t, w.PublicKey))))

	h.callback("u", domain.CallbackConfirmTransaction, conf.Ref)
	assert.Contains(t, h.messenger.last(), "Transaction Successful!")
	assert.Equal(t, 1, h.chain.sentCount())
	assert.Nil(t, h.state(t, "u").Pending)

	h.callback("u", domain.CallbackConfirmTransaction, conf.Ref)
	assert.Equal(t, session.MsgNothingPending, h.messenger.last())
	assert.Equal(t, 1, h.chain.sentCount())
}

func TestConcurrentConfirmsBroadcastOnce(t *testing.T) {
	h := newHarness(t)
	h.command("u", "start")
	w := h.wallet(t, "u")
	conf := stageTransaction(t, h, structuredOutput(t, legacyBlob(t, mustPublicKey(t, w.PublicKey))))

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			h.callback("u", domain.CallbackConfirmTransaction, conf.Ref)
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, h.chain.sentCount())
}

func TestStaleBlockReferenceAsksForRetry(t *testing.T) {
	h := newHarness(t)
	h.command("u", "start")
	before := h.wallet(t, "u")

	var stale solana.Hash
	stale[0] = 1
	conf := stageTransaction(t, h, structuredOutput(t, versionedBlob(mustPublicKey(t, before.PublicKey), stale)))

	h.chain.sendErr = errors.New("Transaction simulation failed: Blockhash not found")
	h.callback("u", domain.CallbackConfirmTransaction, conf.Ref)

	assert.Equal(t, "❌ *Transaction Failed*\n\nThe transaction timed out.\n\nPlease try submitting your transaction again.", h.messenger.last())
	assert.Nil(t, h.state(t, "u").Pending)

	after := h.wallet(t, "u")
	assert.Equal(t, before.IsLocked, after.IsLocked)
	assert.Equal(t, before.EncryptedPrivateKey, after.EncryptedPrivateKey)
	assert.Equal(t, before.PasswordHash, after.PasswordHash)
}

func TestTimeoutBeforeBroadcastKeepsTransactionStaged(t *testing.T) {
	h := newHarness(t)
	h.command("u", "start")
	w := h.wallet(t, "u")
	conf := stageTransaction(t, h, structuredOutput(t, legacyBlob(t, mustPublicKey(t, w.PublicKey))))

	h.chain.sendErr = context.DeadlineExceeded
	h.callback("u", domain.CallbackConfirmTransaction, conf.Ref)

	again, ok := h.messenger.lastConfirmation()
	require.True(t, ok)
	assert.NotEqual(t, conf.Ref, again.Ref)

	s := h.state(t, "u")
	require.NotNil(t, s.Pending)
	assert.False(t, s.Pending.InFlight)
	assert.Equal(t, again.Ref, s.Pending.ConfirmationMessageRef)

	h.chain.sendErr = nil
	h.callback("u", domain.CallbackConfirmTransaction, again.Ref)
	assert.Contains(t, h.messenger.last(), "Transaction Successful!")
	assert.Equal(t, 1, h.chain.sentCount())
}

func TestUndecodableTransactionIsNotStaged(t *testing.T) {
	h := newHarness(t)
	h.command("u", "start")

	h.prompts.resp = &agent.PromptResponse{
		Response: "Transaction Data: AAAA",
		ThreadID: "t",
	}
	h.text("u", 1, "buy")

	assert.Equal(t, msgPrepareFailed, h.messenger.last())
	assert.Nil(t, h.state(t, "u").Pending)
	_, ok := h.messenger.lastConfirmation()
	assert.False(t, ok)
}

func TestLockedWalletCannotConfirm(t *testing.T) {
	h := newHarness(t)
	h.command("u", "start")
	w := h.wallet(t, "u")
	conf := stageTransaction(t, h, structuredOutput(t, legacyBlob(t, mustPublicKey(t, w.PublicKey))))

	require.NoError(t, h.wallets.SetLocked(context.Background(), "u", true))
	h.callback("u", domain.CallbackConfirmTransaction, conf.Ref)

	assert.Equal(t, session.MsgWalletLocked, h.messenger.last())
	assert.Equal(t, 0, h.chain.sentCount())
	assert.NotNil(t, h.state(t, "u").Pending)
}
