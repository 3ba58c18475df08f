package attempt

import (
	"fmt"

	"github.com/gagliardetto/solana-go"
)

// Signer signs transaction messages for a fee payer.
type Signer interface {
	PublicKey() solana.PublicKey
	Sign(message []byte) (solana.Signature, error)
}

// KeypairSigner signs with an in-memory ed25519 private key.
type KeypairSigner struct {
	key solana.PrivateKey
}

// NewKeypairSigner wraps key.
func NewKeypairSigner(key solana.PrivateKey) *KeypairSigner {
	return &KeypairSigner{key: key}
}

// KeypairFromBase58 parses a base58-encoded 64-byte secret key.
func KeypairFromBase58(secret string) (*KeypairSigner, error) {
	key, err := solana.PrivateKeyFromBase58(secret)
	if err != nil {
		return nil, fmt.Errorf("parse payer key: %w", err)
	}
	if len(key) != 64 {
		return nil, fmt.Errorf("parse payer key: expected 64 bytes, got %d", len(key))
	}
	return &KeypairSigner{key: key}, nil
}

// PublicKey returns the payer address.
func (s *KeypairSigner) PublicKey() solana.PublicKey {
	return s.key.PublicKey()
}

// Sign signs message.
func (s *KeypairSigner) Sign(message []byte) (solana.Signature, error) {
	return s.key.Sign(message)
}
