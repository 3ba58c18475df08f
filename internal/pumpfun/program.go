// Package pumpfun builds pump.fun bonding-curve trades and reads curve state.
package pumpfun

import (
	"fmt"

	"github.com/gagliardetto/solana-go"
)

// Program accounts.
var (
	ProgramID           = solana.MustPublicKeyFromBase58("6EF8rrecthR5Dkzon8Nwu78hRvfCKubJ14M5uBEwF6P")
	DefaultFeeRecipient = solana.MustPublicKeyFromBase58("CebN5WGQ4jvEPvsVU4EoHEpgzq1VV7AbicfhtW4xC9iM")
)

// Anchor discriminators.
var (
	buyDiscriminator        = [8]byte{102, 6, 61, 18, 1, 218, 235, 234}
	sellDiscriminator       = [8]byte{51, 230, 133, 164, 1, 127, 131, 173}
	tradeEventDiscriminator = [8]byte{189, 219, 127, 211, 78, 230, 97, 238}
)

// PDA seeds.
const (
	seedGlobal         = "global"
	seedBondingCurve   = "bonding-curve"
	seedEventAuthority = "__event_authority"
)

// Token constants.
const (
	TokenDecimals                   = 6
	LamportsPerSOL                  = 1_000_000_000
	InitialRealTokenReserves uint64 = 793_100_000_000_000
	TokenAccountSize                = 165
)

// GlobalAddress returns the program global state PDA.
func GlobalAddress() (solana.PublicKey, error) {
	addr, _, err := solana.FindProgramAddress([][]byte{[]byte(seedGlobal)}, ProgramID)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("derive global: %w", err)
	}
	return addr, nil
}

// EventAuthorityAddress returns the anchor event authority PDA.
func EventAuthorityAddress() (solana.PublicKey, error) {
	addr, _, err := solana.FindProgramAddress([][]byte{[]byte(seedEventAuthority)}, ProgramID)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("derive event authority: %w", err)
	}
	return addr, nil
}

// CurveAddresses are the accounts that hold a mint's bonding curve.
type CurveAddresses struct {
	Curve           solana.PublicKey // bonding curve state
	AssociatedCurve solana.PublicKey // curve's token account for the mint
}

// DeriveCurve returns the curve PDA and its associated token account.
func DeriveCurve(mint solana.PublicKey) (CurveAddresses, error) {
	curve, _, err := solana.FindProgramAddress([][]byte{[]byte(seedBondingCurve), mint.Bytes()}, ProgramID)
	if err != nil {
		return CurveAddresses{}, fmt.Errorf("derive bonding curve: %w", err)
	}
	assoc, _, err := solana.FindAssociatedTokenAddress(curve, mint)
	if err != nil {
		return CurveAddresses{}, fmt.Errorf("derive associated bonding curve: %w", err)
	}
	return CurveAddresses{Curve: curve, AssociatedCurve: assoc}, nil
}
