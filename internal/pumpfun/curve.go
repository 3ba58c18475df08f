package pumpfun

import (
	"encoding/base64"
	"encoding/binary"
	"errors"
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"
)

// ErrCurveData is returned when account data is not a bonding curve.
var ErrCurveData = errors.New("invalid bonding curve data")

const curveDataLen = 8 + 5*8 + 1

// BondingCurve is the decoded curve state.
type BondingCurve struct {
	VirtualTokenReserves uint64
	VirtualSolReserves   uint64
	RealTokenReserves    uint64
	RealSolReserves      uint64
	TokenTotalSupply     uint64
	Complete             bool
}

// DecodeBondingCurve parses raw account data.
func DecodeBondingCurve(data []byte) (*BondingCurve, error) {
	if len(data) < curveDataLen {
		return nil, fmt.Errorf("%w: %d bytes", ErrCurveData, len(data))
	}
	le := binary.LittleEndian
	return &BondingCurve{
		VirtualTokenReserves: le.Uint64(data[8:16]),
		VirtualSolReserves:   le.Uint64(data[16:24]),
		RealTokenReserves:    le.Uint64(data[24:32]),
		RealSolReserves:      le.Uint64(data[32:40]),
		TokenTotalSupply:     le.Uint64(data[40:48]),
		Complete:             data[48] != 0,
	}, nil
}

// DecodeBondingCurveBase64 parses base64 account data as returned by the RPC.
func DecodeBondingCurveBase64(data string) (*BondingCurve, error) {
	raw, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCurveData, err)
	}
	return DecodeBondingCurve(raw)
}

// Progress is the share of the initial real token reserves sold, in percent.
func (c *BondingCurve) Progress() float64 {
	if c.Complete {
		return 100
	}
	if c.RealTokenReserves >= InitialRealTokenReserves {
		return 0
	}
	sold := InitialRealTokenReserves - c.RealTokenReserves
	return float64(sold) / float64(InitialRealTokenReserves) * 100
}

// BuyQuote returns tokens received for solIn lamports: vT - vT*vS/(vS+solIn).
func (c *BondingCurve) BuyQuote(solIn uint64) uint64 {
	if solIn == 0 || c.VirtualSolReserves == 0 {
		return 0
	}
	vT := new(big.Int).SetUint64(c.VirtualTokenReserves)
	vS := new(big.Int).SetUint64(c.VirtualSolReserves)
	k := new(big.Int).Mul(vT, vS)
	denom := new(big.Int).Add(vS, new(big.Int).SetUint64(solIn))
	out := new(big.Int).Sub(vT, new(big.Int).Div(k, denom))
	if out.Sign() <= 0 {
		return 0
	}
	tokens := out.Uint64()
	if tokens > c.RealTokenReserves {
		tokens = c.RealTokenReserves
	}
	return tokens
}

// SellQuote returns lamports received for tokensIn: vS - vT*vS/(vT+tokensIn).
func (c *BondingCurve) SellQuote(tokensIn uint64) uint64 {
	if tokensIn == 0 || c.VirtualTokenReserves == 0 {
		return 0
	}
	vT := new(big.Int).SetUint64(c.VirtualTokenReserves)
	vS := new(big.Int).SetUint64(c.VirtualSolReserves)
	k := new(big.Int).Mul(vT, vS)
	denom := new(big.Int).Add(vT, new(big.Int).SetUint64(tokensIn))
	out := new(big.Int).Sub(vS, new(big.Int).Div(k, denom))
	if out.Sign() <= 0 {
		return 0
	}
	return out.Uint64()
}

// MarketCapSOL is the fully diluted market cap at the current virtual price.
func (c *BondingCurve) MarketCapSOL() decimal.Decimal {
	if c.VirtualTokenReserves == 0 {
		return decimal.Zero
	}
	lamports := decimal.NewFromBigInt(new(big.Int).SetUint64(c.VirtualSolReserves), 0).
		Mul(decimal.NewFromBigInt(new(big.Int).SetUint64(c.TokenTotalSupply), 0)).
		Div(decimal.NewFromBigInt(new(big.Int).SetUint64(c.VirtualTokenReserves), 0))
	return lamports.Shift(-9)
}
