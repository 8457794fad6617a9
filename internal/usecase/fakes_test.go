package usecase

import (
	"context"
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"sync"
	"testing"
	"time"

	"agent-wallet-service/internal/agent"
	"agent-wallet-service/internal/chains/sol"
	"agent-wallet-service/internal/domain"
	"agent-wallet-service/internal/events"
	"agent-wallet-service/internal/repository"
	"agent-wallet-service/internal/security"
	"agent-wallet-service/internal/session"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeChain struct {
	mu sync.Mutex

	balance    uint64
	balanceErr error
	blockErr   error
	sendErr    error
	awaitErr   error

	// hang makes the call block until its context ends
	hangBlock bool
	hangSend  bool

	balanceCalls int
	sent         [][]byte
}

func (c *fakeChain) Balance(_ context.Context, _ string) (uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.balanceCalls++
	return c.balance, c.balanceErr
}

func (c *fakeChain) LatestBlockhash(ctx context.Context) (*sol.BlockRef, error) {
	if c.hangBlock {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if c.blockErr != nil {
		return nil, c.blockErr
	}
	var h solana.Hash
	h[0] = 9
	return &sol.BlockRef{Blockhash: h, LastValidBlockHeight: 1000}, nil
}

func (c *fakeChain) SendRaw(ctx context.Context, raw []byte) (solana.Signature, error) {
	if c.hangSend {
		<-ctx.Done()
		return solana.Signature{}, ctx.Err()
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sendErr != nil {
		return solana.Signature{}, c.sendErr
	}
	c.sent = append(c.sent, raw)
	var sig solana.Signature
	sig[0] = byte(len(c.sent))
	return sig, nil
}

func (c *fakeChain) AwaitConfirmation(context.Context, solana.Signature, uint64) error {
	return c.awaitErr
}

func (c *fakeChain) sentCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.sent)
}

type sentMessage struct {
	Ref          int
	Text         string
	Confirmation bool
}

type fakeMessenger struct {
	mu      sync.Mutex
	next    int
	sent    []sentMessage
	deleted []int
	sendErr error
}

func (m *fakeMessenger) push(text string, confirmation bool) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sendErr != nil {
		return 0, m.sendErr
	}
	m.next++
	m.sent = append(m.sent, sentMessage{Ref: 1000 + m.next, Text: text, Confirmation: confirmation})
	return 1000 + m.next, nil
}

func (m *fakeMessenger) Send(_ context.Context, _ int64, text string) (int, error) {
	return m.push(text, false)
}

func (m *fakeMessenger) SendConfirmation(_ context.Context, _ int64, text string) (int, error) {
	return m.push(text, true)
}

func (m *fakeMessenger) Delete(_ context.Context, _ int64, ref int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleted = append(m.deleted, ref)
	return nil
}

func (m *fakeMessenger) texts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.sent))
	for _, s := range m.sent {
		out = append(out, s.Text)
	}
	return out
}

func (m *fakeMessenger) last() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.sent) == 0 {
		return ""
	}
	return m.sent[len(m.sent)-1].Text
}

func (m *fakeMessenger) lastConfirmation() (sentMessage, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.sent) - 1; i >= 0; i-- {
		if m.sent[i].Confirmation {
			return m.sent[i], true
		}
	}
	return sentMessage{}, false
}

func (m *fakeMessenger) reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = nil
	m.deleted = nil
}

type fakePrompts struct {
	mu       sync.Mutex
	resp     *agent.PromptResponse
	err      error
	delay    time.Duration
	requests []agent.PromptRequest
}

func (p *fakePrompts) SendPrompt(ctx context.Context, req agent.PromptRequest) (*agent.PromptResponse, error) {
	p.mu.Lock()
	p.requests = append(p.requests, req)
	resp, err, delay := p.resp, p.err, p.delay
	p.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return resp, err
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []domain.TransactionEvent
}

func (p *recordingPublisher) Publish(_ context.Context, ev domain.TransactionEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

var _ events.Publisher = (*recordingPublisher)(nil)

type harness struct {
	store      *repository.MemoryWalletRepository
	chain      *fakeChain
	messenger  *fakeMessenger
	prompts    *fakePrompts
	sessions   *session.MemoryStore
	publisher  *recordingPublisher
	wallets    *WalletUsecase
	txs        *TransactionUsecase
	dispatcher *ConversationUsecase
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	key, err := security.GenerateMasterKey()
	require.NoError(t, err)
	enc, err := security.NewEncryption(key)
	require.NoError(t, err)

	h := &harness{
		store:     repository.NewMemoryWalletRepository(),
		chain:     &fakeChain{},
		messenger: &fakeMessenger{},
		prompts:   &fakePrompts{},
		sessions:  session.NewMemoryStore(),
		publisher: &recordingPublisher{},
	}
	logger := zap.NewNop()
	h.wallets = NewWalletUsecase(h.store, h.chain, enc, security.NewPasswordHasher(4), logger)
	h.txs = NewTransactionUsecase(h.store, h.chain, enc, h.publisher, time.Second, time.Second, "", logger)
	h.dispatcher = NewConversationUsecase(h.wallets, h.txs, h.prompts, h.messenger, h.sessions, "devnet", time.Second, logger)
	return h
}

func (h *harness) command(userID, cmd string) {
	h.dispatcher.HandleEvent(context.Background(), domain.InboundEvent{
		ID: "cmd-" + cmd, Kind: domain.InboundCommand, UserID: userID, ChatID: 1, Command: cmd,
	})
}

func (h *harness) text(userID string, ref int, text string) {
	h.dispatcher.HandleEvent(context.Background(), domain.InboundEvent{
		ID: fmt.Sprintf("text-%d", ref), Kind: domain.InboundText, UserID: userID, ChatID: 1, MessageRef: ref, Text: text,
	})
}

func (h *harness) callback(userID, data string, ref int) {
	h.dispatcher.HandleEvent(context.Background(), domain.InboundEvent{
		ID: "cb-" + data, Kind: domain.InboundCallback, UserID: userID, ChatID: 1, CallbackData: data, CallbackMessageRef: ref,
	})
}

func (h *harness) wallet(t *testing.T, userID string) *domain.UserWallet {
	t.Helper()
	w, err := h.store.Get(context.Background(), userID)
	require.NoError(t, err)
	return w
}

func (h *harness) state(t *testing.T, userID string) session.State {
	t.Helper()
	s, err := h.sessions.Get(context.Background(), userID)
	require.NoError(t, err)
	return s
}

// legacyBlob is an agent style staged transfer paid by payer.
func legacyBlob(t *testing.T, payer solana.PublicKey) string {
	t.Helper()
	recipient := solana.NewWallet().PublicKey()
	tx, err := solana.NewTransaction(
		[]solana.Instruction{
			solana.NewInstruction(
				solana.SystemProgramID,
				solana.AccountMetaSlice{
					solana.Meta(payer).WRITE().SIGNER(),
					solana.Meta(recipient).WRITE(),
				},
				transferData(1000),
			),
		},
		solana.Hash{},
		solana.TransactionPayer(payer),
	)
	require.NoError(t, err)
	tx.Signatures = make([]solana.Signature, 1)
	raw, err := tx.MarshalBinary()
	require.NoError(t, err)
	return base64.StdEncoding.EncodeToString(raw)
}

// versionedBlob hand-assembles an unsigned v0 transfer with an embedded
// blockhash.
func versionedBlob(payer solana.PublicKey, blockhash solana.Hash) string {
	recipient := solana.NewWallet().PublicKey()
	keys := []solana.PublicKey{payer, recipient, solana.SystemProgramID}

	data := transferData(1000)
	msg := []byte{0x80, 1, 0, 1, byte(len(keys))}
	for _, k := range keys {
		msg = append(msg, k[:]...)
	}
	msg = append(msg, blockhash[:]...)
	msg = append(msg, 1, 2, 2, 0, 1, byte(len(data)))
	msg = append(msg, data...)
	msg = append(msg, 0)

	raw := append([]byte{1}, make([]byte, 64)...)
	raw = append(raw, msg...)
	return base64.StdEncoding.EncodeToString(raw)
}

func transferData(lamports uint64) []byte {
	data := make([]byte, 12)
	binary.LittleEndian.PutUint32(data[0:4], 2)
	binary.LittleEndian.PutUint64(data[4:12], lamports)
	return data
}

func mustPublicKey(t *testing.T, s string) solana.PublicKey {
	t.Helper()
	pk, err := solana.PublicKeyFromBase58(s)
	require.NoError(t, err)
	return pk
}
