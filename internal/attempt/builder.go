// Package attempt assembles signed transactions for one fee variant.
package attempt

import (
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/gagliardetto/solana-go"
	computebudget "github.com/gagliardetto/solana-go/programs/compute-budget"

	"solana-sniper/internal/blockhash"
	"solana-sniper/internal/domain"
)

// Build argument errors.
var (
	ErrNoPayer  = errors.New("attempt: payer signer is required")
	ErrNoHandle = errors.New("attempt: blockhash handle is required")
)

// Attempt is a signed transaction ready for submission.
type Attempt struct {
	Variant domain.FeeVariant
	tx      *solana.Transaction
	wire    []byte
}

// Signature returns the transaction id (the payer signature).
func (a *Attempt) Signature() solana.Signature {
	return a.tx.Signatures[0]
}

// Encode returns the base64 wire form accepted by sendTransaction.
func (a *Attempt) Encode() string {
	return base64.StdEncoding.EncodeToString(a.wire)
}

// Transaction returns the underlying transaction.
func (a *Attempt) Transaction() *solana.Transaction {
	return a.tx
}

// Build appends the compute-unit price of v to a copy of prefix, consumes h and
// signs the result with payer as fee payer. prefix is never modified.
func Build(prefix []solana.Instruction, v domain.FeeVariant, h *blockhash.Handle, payer Signer) (*Attempt, error) {
	if payer == nil {
		return nil, ErrNoPayer
	}
	if h == nil {
		return nil, ErrNoHandle
	}

	instructions := make([]solana.Instruction, 0, len(prefix)+1)
	instructions = append(instructions, prefix...)
	instructions = append(instructions, computebudget.NewSetComputeUnitPriceInstruction(v.MicroLamports).Build())

	hash, err := h.Consume()
	if err != nil {
		return nil, err
	}

	tx, err := solana.NewTransaction(instructions, hash, solana.TransactionPayer(payer.PublicKey()))
	if err != nil {
		return nil, fmt.Errorf("build transaction: %w", err)
	}

	message, err := tx.Message.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("marshal message: %w", err)
	}
	sig, err := payer.Sign(message)
	if err != nil {
		return nil, fmt.Errorf("sign transaction: %w", err)
	}
	tx.Signatures = []solana.Signature{sig}

	wire, err := tx.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("marshal transaction: %w", err)
	}

	return &Attempt{Variant: v, tx: tx, wire: wire}, nil
}
