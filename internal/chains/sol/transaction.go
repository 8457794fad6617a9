// internal/chains/sol/transaction.go
package sol

import (
	"encoding/base64"
	"fmt"
	"strings"

	"agent-wallet-service/internal/domain"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/system"
)

// SignedTransaction holds wire bytes ready for broadcast.
type SignedTransaction struct {
	Raw       []byte
	Signature solana.Signature
	Kind      domain.TransactionKind
}

// DecodeStaged parses a base64 transaction blob and summarises it for the
// confirmation prompt. Versioned and legacy encodings are told apart by the
// message version prefix.
func DecodeStaged(blob string) (*domain.StagedTransaction, error) {
	tx, err := decode(blob)
	if err != nil {
		return nil, err
	}

	staged := &domain.StagedTransaction{
		BlobBase64:       strings.TrimSpace(blob),
		Kind:             kindOf(tx),
		FeePayer:         tx.Message.AccountKeys[0].String(),
		RequiredSigners:  int(tx.Message.Header.NumRequiredSignatures),
		InstructionCount: len(tx.Message.Instructions),
		HasBlockhash:     tx.Message.RecentBlockhash != (solana.Hash{}),
	}

	seen := make(map[string]bool)
	for _, inst := range tx.Message.Instructions {
		program := "address-table"
		if int(inst.ProgramIDIndex) < len(tx.Message.AccountKeys) {
			program = tx.Message.AccountKeys[inst.ProgramIDIndex].String()
		}
		if !seen[program] {
			seen[program] = true
			staged.ProgramIDs = append(staged.ProgramIDs, program)
		}
	}

	return staged, nil
}

// SignStaged signs a staged blob with the wallet key.
//
// Legacy messages always take the fresh blockhash and must name the wallet
// as the only signer and fee payer. Versioned messages keep an embedded
// blockhash, and the wallet signature is added next to any existing ones.
func SignStaged(blob string, key solana.PrivateKey, blockhash solana.Hash) (*SignedTransaction, error) {
	tx, err := decode(blob)
	if err != nil {
		return nil, err
	}

	signer := key.PublicKey()
	numRequired := int(tx.Message.Header.NumRequiredSignatures)

	var signerIndex int
	if tx.Message.IsVersioned() {
		if tx.Message.RecentBlockhash == (solana.Hash{}) {
			tx.Message.RecentBlockhash = blockhash
		}

		signerIndex = -1
		for i := 0; i < numRequired; i++ {
			if tx.Message.AccountKeys[i].Equals(signer) {
				signerIndex = i
				break
			}
		}
		if signerIndex < 0 {
			return nil, domain.NewMalformedTransaction("wallet is not a required signer")
		}
		for len(tx.Signatures) < numRequired {
			tx.Signatures = append(tx.Signatures, solana.Signature{})
		}
	} else {
		if !tx.Message.AccountKeys[0].Equals(signer) {
			return nil, domain.NewMalformedTransaction("fee payer is not the wallet")
		}
		if numRequired != 1 {
			return nil, domain.NewMalformedTransaction("legacy transaction requires signers other than the wallet")
		}
		tx.Message.RecentBlockhash = blockhash
		tx.Signatures = make([]solana.Signature, 1)
		signerIndex = 0
	}

	message, err := tx.Message.MarshalBinary()
	if err != nil {
		return nil, domain.NewMalformedTransaction(err.Error())
	}

	sig, err := key.Sign(message)
	if err != nil {
		return nil, fmt.Errorf("failed to sign transaction: %w", err)
	}
	tx.Signatures[signerIndex] = sig

	raw, err := tx.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("failed to serialize transaction: %w", err)
	}

	return &SignedTransaction{
		Raw:       raw,
		Signature: tx.Signatures[0],
		Kind:      kindOf(tx),
	}, nil
}

// BuildTransfer builds and signs a single system transfer paid by key.
func BuildTransfer(key solana.PrivateKey, recipient string, lamports uint64, blockhash solana.Hash) (*SignedTransaction, error) {
	to, err := solana.PublicKeyFromBase58(recipient)
	if err != nil {
		return nil, domain.NewInvalidInput("recipient is not a valid address")
	}
	from := key.PublicKey()

	tx, err := solana.NewTransaction(
		[]solana.Instruction{
			system.NewTransferInstruction(lamports, from, to).Build(),
		},
		blockhash,
		solana.TransactionPayer(from),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to build transfer: %w", err)
	}

	_, err = tx.Sign(func(pk solana.PublicKey) *solana.PrivateKey {
		if pk.Equals(from) {
			return &key
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to sign transfer: %w", err)
	}

	raw, err := tx.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("failed to serialize transfer: %w", err)
	}

	return &SignedTransaction{
		Raw:       raw,
		Signature: tx.Signatures[0],
		Kind:      domain.TransactionKindTransfer,
	}, nil
}

func decode(blob string) (tx *solana.Transaction, err error) {
	raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(blob))
	if err != nil || len(raw) == 0 {
		return nil, domain.NewMalformedTransaction("transaction data is not base64")
	}

	// the decoder works on untrusted bytes
	defer func() {
		if r := recover(); r != nil {
			tx, err = nil, domain.NewMalformedTransaction(fmt.Sprint(r))
		}
	}()

	tx, err = solana.TransactionFromDecoder(bin.NewBinDecoder(raw))
	if err != nil {
		return nil, domain.NewMalformedTransaction(err.Error())
	}

	numRequired := int(tx.Message.Header.NumRequiredSignatures)
	if numRequired == 0 || numRequired > len(tx.Message.AccountKeys) {
		return nil, domain.NewMalformedTransaction("invalid signer header")
	}
	if len(tx.Signatures) > numRequired {
		return nil, domain.NewMalformedTransaction("more signatures than required signers")
	}
	return tx, nil
}

func kindOf(tx *solana.Transaction) domain.TransactionKind {
	if tx.Message.IsVersioned() {
		return domain.TransactionKindVersioned
	}
	return domain.TransactionKindLegacy
}
