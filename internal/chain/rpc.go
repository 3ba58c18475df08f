package chain

import "context"

// RPCClient defines the Solana JSON-RPC surface used by the sniper.
type RPCClient interface {
	// GetLatestBlockhash returns the most recent blockhash at the given commitment.
	GetLatestBlockhash(ctx context.Context, commitment Commitment) (*Blockhash, error)

	// SendTransaction submits a base64 encoded signed transaction and returns its signature.
	SendTransaction(ctx context.Context, encoded string, opts SendOptions) (string, error)

	// GetAccountInfo retrieves account info by public key. Returns nil if not found.
	GetAccountInfo(ctx context.Context, pubkey string) (*AccountInfo, error)

	// GetProgramAccounts lists accounts owned by a program matching all filters.
	GetProgramAccounts(ctx context.Context, programID string, filters []AccountFilter) ([]KeyedAccount, error)

	// GetSlot retrieves the current slot.
	GetSlot(ctx context.Context) (int64, error)
}
