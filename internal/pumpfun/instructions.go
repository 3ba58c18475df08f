package pumpfun

import (
	"encoding/binary"

	"github.com/gagliardetto/solana-go"
)

// TradeAccounts are the accounts shared by buy and sell.
type TradeAccounts struct {
	Global          solana.PublicKey
	FeeRecipient    solana.PublicKey
	Mint            solana.PublicKey
	Curve           solana.PublicKey
	AssociatedCurve solana.PublicKey
	AssociatedUser  solana.PublicKey
	User            solana.PublicKey
	EventAuthority  solana.PublicKey
}

func tradeData(disc [8]byte, amount, limit uint64) []byte {
	data := make([]byte, 24)
	copy(data, disc[:])
	binary.LittleEndian.PutUint64(data[8:], amount)
	binary.LittleEndian.PutUint64(data[16:], limit)
	return data
}

// NewBuyInstruction buys amount tokens paying at most maxSolCost lamports.
func NewBuyInstruction(a TradeAccounts, amount, maxSolCost uint64) solana.Instruction {
	return solana.NewInstruction(ProgramID, solana.AccountMetaSlice{
		solana.NewAccountMeta(a.Global, false, false),
		solana.NewAccountMeta(a.FeeRecipient, true, false),
		solana.NewAccountMeta(a.Mint, false, false),
		solana.NewAccountMeta(a.Curve, true, false),
		solana.NewAccountMeta(a.AssociatedCurve, true, false),
		solana.NewAccountMeta(a.AssociatedUser, true, false),
		solana.NewAccountMeta(a.User, true, true),
		solana.NewAccountMeta(solana.SystemProgramID, false, false),
		solana.NewAccountMeta(solana.TokenProgramID, false, false),
		solana.NewAccountMeta(solana.SysVarRentPubkey, false, false),
		solana.NewAccountMeta(a.EventAuthority, false, false),
		solana.NewAccountMeta(ProgramID, false, false),
	}, tradeData(buyDiscriminator, amount, maxSolCost))
}

// NewSellInstruction sells amount tokens for at least minSolOutput lamports.
func NewSellInstruction(a TradeAccounts, amount, minSolOutput uint64) solana.Instruction {
	return solana.NewInstruction(ProgramID, solana.AccountMetaSlice{
		solana.NewAccountMeta(a.Global, false, false),
		solana.NewAccountMeta(a.FeeRecipient, true, false),
		solana.NewAccountMeta(a.Mint, false, false),
		solana.NewAccountMeta(a.Curve, true, false),
		solana.NewAccountMeta(a.AssociatedCurve, true, false),
		solana.NewAccountMeta(a.AssociatedUser, true, false),
		solana.NewAccountMeta(a.User, true, true),
		solana.NewAccountMeta(solana.SystemProgramID, false, false),
		solana.NewAccountMeta(solana.SPLAssociatedTokenAccountProgramID, false, false),
		solana.NewAccountMeta(solana.TokenProgramID, false, false),
		solana.NewAccountMeta(a.EventAuthority, false, false),
		solana.NewAccountMeta(ProgramID, false, false),
	}, tradeData(sellDiscriminator, amount, minSolOutput))
}

// NewCreateATAIdempotentInstruction creates owner's token account for mint if
// it does not exist yet.
func NewCreateATAIdempotentInstruction(payer, owner, mint solana.PublicKey) (solana.Instruction, error) {
	ata, _, err := solana.FindAssociatedTokenAddress(owner, mint)
	if err != nil {
		return nil, err
	}
	return solana.NewInstruction(solana.SPLAssociatedTokenAccountProgramID, solana.AccountMetaSlice{
		solana.NewAccountMeta(payer, true, true),
		solana.NewAccountMeta(ata, true, false),
		solana.NewAccountMeta(owner, false, false),
		solana.NewAccountMeta(mint, false, false),
		solana.NewAccountMeta(solana.SystemProgramID, false, false),
		solana.NewAccountMeta(solana.TokenProgramID, false, false),
	}, []byte{1}), nil
}
