package pumpfun

import (
	"context"
	"encoding/base64"
	"encoding/binary"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/shopspring/decimal"

	"solana-sniper/internal/chain"
	"solana-sniper/internal/clock"
	"solana-sniper/internal/domain"
)

// TokenHolding is the part of an SPL token account the sniper reads.
type TokenHolding struct {
	Mint   solana.PublicKey
	Owner  solana.PublicKey
	Amount uint64
}

// DecodeTokenAccountBase64 parses base64 SPL token account data.
func DecodeTokenAccountBase64(data string) (TokenHolding, error) {
	raw, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return TokenHolding{}, fmt.Errorf("decode token account: %w", err)
	}
	if len(raw) < 72 {
		return TokenHolding{}, fmt.Errorf("decode token account: %d bytes", len(raw))
	}
	return TokenHolding{
		Mint:   solana.PublicKeyFromBytes(raw[0:32]),
		Owner:  solana.PublicKeyFromBytes(raw[32:64]),
		Amount: binary.LittleEndian.Uint64(raw[64:72]),
	}, nil
}

// SnapshotSource derives asset snapshots from on-chain curve and holder state.
type SnapshotSource struct {
	rpc      chain.RPCClient
	solPrice decimal.Decimal
	clock    clock.Clock
}

// NewSnapshotSource creates an RPC-backed snapshot source. A positive solPrice
// converts the market cap from SOL to the quote currency.
func NewSnapshotSource(rpc chain.RPCClient, solPrice decimal.Decimal, c clock.Clock) *SnapshotSource {
	if c == nil {
		c = clock.Real{}
	}
	return &SnapshotSource{rpc: rpc, solPrice: solPrice, clock: c}
}

// Snapshot reads the curve and all token accounts of mint.
func (s *SnapshotSource) Snapshot(ctx context.Context, mint string) (domain.AssetSnapshot, error) {
	mintKey, err := solana.PublicKeyFromBase58(mint)
	if err != nil {
		return domain.AssetSnapshot{}, fmt.Errorf("parse mint: %w", err)
	}
	addrs, err := DeriveCurve(mintKey)
	if err != nil {
		return domain.AssetSnapshot{}, err
	}

	curve, err := fetchCurve(ctx, s.rpc, addrs.Curve)
	if err != nil {
		return domain.AssetSnapshot{}, err
	}

	accounts, err := s.rpc.GetProgramAccounts(ctx, solana.TokenProgramID.String(), []chain.AccountFilter{
		{DataSize: TokenAccountSize},
		{Memcmp: &chain.MemcmpFilter{Offset: 0, Bytes: mint}},
	})
	if err != nil {
		return domain.AssetSnapshot{}, fmt.Errorf("list holders: %w", err)
	}

	holders, largest := 0, uint64(0)
	for _, acc := range accounts {
		h, err := DecodeTokenAccountBase64(acc.Account.Data)
		if err != nil || h.Amount == 0 {
			continue
		}
		if h.Owner.Equals(addrs.Curve) {
			continue
		}
		holders++
		if h.Amount > largest {
			largest = h.Amount
		}
	}

	concentration := 0.0
	if curve.TokenTotalSupply > 0 {
		concentration = float64(largest) / float64(curve.TokenTotalSupply) * 100
	}

	marketCap := curve.MarketCapSOL()
	if s.solPrice.IsPositive() {
		marketCap = marketCap.Mul(s.solPrice)
	}

	return domain.AssetSnapshot{
		Mint:          mint,
		Progress:      curve.Progress(),
		Holders:       holders,
		MarketCap:     marketCap,
		Concentration: concentration,
		Graduated:     curve.Complete,
		ObservedAt:    s.clock.Now(),
	}, nil
}
