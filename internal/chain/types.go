package chain

// Commitment is the bank state level a request is evaluated at.
type Commitment string

const (
	CommitmentProcessed Commitment = "processed"
	CommitmentConfirmed Commitment = "confirmed"
	CommitmentFinalized Commitment = "finalized"
)

// Blockhash is a recent blockhash with its validity horizon.
type Blockhash struct {
	Hash                 string // base58
	LastValidBlockHeight uint64
	Slot                 int64 // context slot of the response
}

// SendOptions configures sendTransaction.
type SendOptions struct {
	SkipPreflight       bool
	PreflightCommitment Commitment
	// MaxRetries caps node-side rebroadcasts. nil leaves the node default.
	MaxRetries *uint
}

// AccountInfo represents Solana account information.
type AccountInfo struct {
	Lamports   uint64 `json:"lamports"`
	Owner      string `json:"owner"`
	Data       string `json:"data"` // base64 encoded
	Executable bool   `json:"executable"`
	RentEpoch  uint64 `json:"rentEpoch"`
}

// KeyedAccount is one getProgramAccounts entry.
type KeyedAccount struct {
	Pubkey  string
	Account AccountInfo
}

// AccountFilter restricts getProgramAccounts results.
// Exactly one of DataSize or Memcmp should be set.
type AccountFilter struct {
	DataSize uint64
	Memcmp   *MemcmpFilter
}

// MemcmpFilter matches base58 bytes at an offset of the account data.
type MemcmpFilter struct {
	Offset uint64
	Bytes  string
}
