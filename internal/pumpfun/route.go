package pumpfun

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/big"

	"github.com/gagliardetto/solana-go"
	computebudget "github.com/gagliardetto/solana-go/programs/compute-budget"
	"github.com/shopspring/decimal"

	"solana-sniper/internal/chain"
)

// Route errors.
var (
	ErrCurveNotFound  = errors.New("bonding curve not found")
	ErrCurveComplete  = errors.New("bonding curve complete")
	ErrNothingToSell  = errors.New("no token balance to sell")
	ErrZeroInvestment = errors.New("investment rounds to zero lamports")
)

// RouteConfig sizes trades.
type RouteConfig struct {
	UnitLimit    uint32
	Investment   decimal.Decimal // SOL per buy
	SlippagePct  decimal.Decimal // e.g. 10 for 10%
	FeeRecipient solana.PublicKey
}

// Route builds the instruction prefix of a pump.fun buy or sell for the payer.
// The compute unit price is appended per fee variant by the caller.
type Route struct {
	rpc            chain.RPCClient
	payer          solana.PublicKey
	cfg            RouteConfig
	global         solana.PublicKey
	eventAuthority solana.PublicKey
}

// NewRoute creates a route for payer.
func NewRoute(rpc chain.RPCClient, payer solana.PublicKey, cfg RouteConfig) (*Route, error) {
	if cfg.FeeRecipient.IsZero() {
		cfg.FeeRecipient = DefaultFeeRecipient
	}
	global, err := GlobalAddress()
	if err != nil {
		return nil, err
	}
	eventAuthority, err := EventAuthorityAddress()
	if err != nil {
		return nil, err
	}
	return &Route{
		rpc:            rpc,
		payer:          payer,
		cfg:            cfg,
		global:         global,
		eventAuthority: eventAuthority,
	}, nil
}

// BuyPrefix spends the configured investment on mint. The token amount is
// quoted from the current curve; slippage bounds the SOL cost from above.
func (r *Route) BuyPrefix(ctx context.Context, mint string) ([]solana.Instruction, error) {
	accounts, curve, err := r.load(ctx, mint)
	if err != nil {
		return nil, err
	}

	lamports := r.cfg.Investment.Shift(9).IntPart()
	if lamports <= 0 {
		return nil, ErrZeroInvestment
	}
	tokens := curve.BuyQuote(uint64(lamports))
	if tokens == 0 {
		return nil, fmt.Errorf("buy quote for %d lamports is zero", lamports)
	}
	maxCost := r.withSlippage(uint64(lamports), true)

	createATA, err := NewCreateATAIdempotentInstruction(r.payer, r.payer, accounts.Mint)
	if err != nil {
		return nil, fmt.Errorf("create ata instruction: %w", err)
	}

	return []solana.Instruction{
		computebudget.NewSetComputeUnitLimitInstruction(r.cfg.UnitLimit).Build(),
		createATA,
		NewBuyInstruction(accounts, tokens, maxCost),
	}, nil
}

// SellPrefix sells the payer's whole balance of mint.
func (r *Route) SellPrefix(ctx context.Context, mint string) ([]solana.Instruction, error) {
	accounts, curve, err := r.load(ctx, mint)
	if err != nil {
		return nil, err
	}

	info, err := r.rpc.GetAccountInfo(ctx, accounts.AssociatedUser.String())
	if err != nil {
		return nil, fmt.Errorf("get token account: %w", err)
	}
	if info == nil {
		return nil, ErrNothingToSell
	}
	holding, err := DecodeTokenAccountBase64(info.Data)
	if err != nil {
		return nil, err
	}
	if holding.Amount == 0 {
		return nil, ErrNothingToSell
	}

	minOut := r.withSlippage(curve.SellQuote(holding.Amount), false)

	return []solana.Instruction{
		computebudget.NewSetComputeUnitLimitInstruction(r.cfg.UnitLimit).Build(),
		NewSellInstruction(accounts, holding.Amount, minOut),
	}, nil
}

func (r *Route) load(ctx context.Context, mint string) (TradeAccounts, *BondingCurve, error) {
	mintKey, err := solana.PublicKeyFromBase58(mint)
	if err != nil {
		return TradeAccounts{}, nil, fmt.Errorf("parse mint: %w", err)
	}
	addrs, err := DeriveCurve(mintKey)
	if err != nil {
		return TradeAccounts{}, nil, err
	}
	userATA, _, err := solana.FindAssociatedTokenAddress(r.payer, mintKey)
	if err != nil {
		return TradeAccounts{}, nil, fmt.Errorf("derive user ata: %w", err)
	}

	curve, err := fetchCurve(ctx, r.rpc, addrs.Curve)
	if err != nil {
		return TradeAccounts{}, nil, err
	}
	if curve.Complete {
		return TradeAccounts{}, nil, ErrCurveComplete
	}

	return TradeAccounts{
		Global:          r.global,
		FeeRecipient:    r.cfg.FeeRecipient,
		Mint:            mintKey,
		Curve:           addrs.Curve,
		AssociatedCurve: addrs.AssociatedCurve,
		AssociatedUser:  userATA,
		User:            r.payer,
		EventAuthority:  r.eventAuthority,
	}, curve, nil
}

// withSlippage widens (up) or narrows (down) amount by the slippage percentage.
func (r *Route) withSlippage(amount uint64, up bool) uint64 {
	factor := r.cfg.SlippagePct.Div(decimal.NewFromInt(100))
	if up {
		factor = decimal.NewFromInt(1).Add(factor)
	} else {
		factor = decimal.NewFromInt(1).Sub(factor)
		if factor.IsNegative() {
			return 0
		}
	}
	v := decimal.NewFromBigInt(new(big.Int).SetUint64(amount), 0).Mul(factor).BigInt()
	if !v.IsUint64() {
		if v.Sign() < 0 {
			return 0
		}
		return math.MaxUint64
	}
	return v.Uint64()
}

func fetchCurve(ctx context.Context, rpc chain.RPCClient, curve solana.PublicKey) (*BondingCurve, error) {
	info, err := rpc.GetAccountInfo(ctx, curve.String())
	if err != nil {
		return nil, fmt.Errorf("get bonding curve: %w", err)
	}
	if info == nil {
		return nil, fmt.Errorf("%w: %s", ErrCurveNotFound, curve)
	}
	return DecodeBondingCurveBase64(info.Data)
}
