package stub

import (
	"context"
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/mr-tron/base58"

	"solana-sniper/internal/chain"
)

// RPCClient implements chain.RPCClient for testing.
// Scripted fields must be set before the client is shared between goroutines.
type RPCClient struct {
	// BlockhashErrs scripts getLatestBlockhash per call; a nil entry or a call
	// past the end of the slice succeeds.
	BlockhashErrs []error
	// SendErrs scripts sendTransaction per call, same rules as BlockhashErrs.
	SendErrs []error
	// SendFunc, when set, overrides SendErrs. n is the 0-based call number.
	SendFunc func(n int, encoded string) (string, error)

	Accounts        map[string]*chain.AccountInfo
	ProgramAccounts []chain.KeyedAccount
	Slot            int64
	SlotErr         error

	mu             sync.Mutex
	blockhashCalls int
	sendCalls      int
	sent           []string
	hashes         []string
}

// NewRPCClient creates a new stub RPC client.
func NewRPCClient() *RPCClient {
	return &RPCClient{
		Accounts: make(map[string]*chain.AccountInfo),
	}
}

// Compile-time interface check.
var _ chain.RPCClient = (*RPCClient)(nil)

// GetLatestBlockhash returns a distinct valid hash per successful call.
func (c *RPCClient) GetLatestBlockhash(ctx context.Context, _ chain.Commitment) (*chain.Blockhash, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	n := c.blockhashCalls
	c.blockhashCalls++
	if n < len(c.BlockhashErrs) && c.BlockhashErrs[n] != nil {
		return nil, c.BlockhashErrs[n]
	}

	hash := uniqueHash(n)
	c.hashes = append(c.hashes, hash)
	return &chain.Blockhash{Hash: hash, LastValidBlockHeight: uint64(1000 + n), Slot: int64(n)}, nil
}

// SendTransaction records the transaction and returns a scripted result.
func (c *RPCClient) SendTransaction(ctx context.Context, encoded string, _ chain.SendOptions) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	c.mu.Lock()
	n := c.sendCalls
	c.sendCalls++
	c.sent = append(c.sent, encoded)
	fn := c.SendFunc
	var scripted error
	if n < len(c.SendErrs) {
		scripted = c.SendErrs[n]
	}
	c.mu.Unlock()

	if fn != nil {
		return fn(n, encoded)
	}
	if scripted != nil {
		return "", scripted
	}
	return fmt.Sprintf("sig-%d", n), nil
}

// GetAccountInfo returns the stored account or nil.
func (c *RPCClient) GetAccountInfo(_ context.Context, pubkey string) (*chain.AccountInfo, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.Accounts[pubkey], nil
}

// GetProgramAccounts returns all stored program accounts regardless of filters.
func (c *RPCClient) GetProgramAccounts(_ context.Context, _ string, _ []chain.AccountFilter) ([]chain.KeyedAccount, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]chain.KeyedAccount(nil), c.ProgramAccounts...), nil
}

// GetSlot returns Slot or SlotErr.
func (c *RPCClient) GetSlot(_ context.Context) (int64, error) {
	if c.SlotErr != nil {
		return 0, c.SlotErr
	}
	return c.Slot, nil
}

// BlockhashCalls returns the number of getLatestBlockhash calls.
func (c *RPCClient) BlockhashCalls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.blockhashCalls
}

// SendCalls returns the number of sendTransaction calls.
func (c *RPCClient) SendCalls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sendCalls
}

// Sent returns the encoded transactions in submission order.
func (c *RPCClient) Sent() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.sent...)
}

// Hashes returns the blockhashes handed out so far.
func (c *RPCClient) Hashes() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.hashes...)
}

func uniqueHash(n int) string {
	var b [32]byte
	b[0] = 0xAB
	binary.LittleEndian.PutUint64(b[8:], uint64(n)+1)
	return base58.Encode(b[:])
}
