package chain

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/go-resty/resty/v2"
	"golang.org/x/time/rate"

	"solana-sniper/internal/observability"
)

// Default configuration values.
const (
	DefaultTimeout     = 30 * time.Second
	DefaultMaxRetries  = 3
	DefaultRetryDelay  = 1 * time.Second
	DefaultMaxDelay    = 10 * time.Second
	DefaultBackoffMult = 2.0
)

// HTTPClient implements RPCClient using HTTP JSON-RPC 2.0.
//
// Read methods retry transport failures with exponential backoff.
// GetLatestBlockhash and SendTransaction perform exactly one request so callers
// own the retry policy and can observe rate limiting.
type HTTPClient struct {
	endpoint    string
	http        *resty.Client
	limiter     *rate.Limiter
	metrics     *observability.Metrics
	maxRetries  int
	retryDelay  time.Duration
	maxDelay    time.Duration
	backoffMult float64
	requestID   atomic.Uint64
}

// ClientOption configures HTTPClient.
type ClientOption func(*HTTPClient)

// WithTimeout sets HTTP client timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *HTTPClient) {
		c.http.SetTimeout(d)
	}
}

// WithMaxRetries sets maximum retry attempts for read methods.
func WithMaxRetries(n int) ClientOption {
	return func(c *HTTPClient) {
		c.maxRetries = n
	}
}

// WithRetryDelay sets initial retry delay.
func WithRetryDelay(d time.Duration) ClientOption {
	return func(c *HTTPClient) {
		c.retryDelay = d
	}
}

// WithMaxDelay sets maximum retry delay.
func WithMaxDelay(d time.Duration) ClientOption {
	return func(c *HTTPClient) {
		c.maxDelay = d
	}
}

// WithHTTPClient sets custom http.Client.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *HTTPClient) {
		c.http = resty.NewWithClient(client)
	}
}

// WithRateLimit caps outgoing requests to rps with the given burst.
// rps <= 0 disables the ceiling.
func WithRateLimit(rps float64, burst int) ClientOption {
	return func(c *HTTPClient) {
		if rps <= 0 {
			c.limiter = nil
			return
		}
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// WithMetrics records per-method latency.
func WithMetrics(m *observability.Metrics) ClientOption {
	return func(c *HTTPClient) {
		c.metrics = m
	}
}

// NewHTTPClient creates a new Solana RPC HTTP client.
func NewHTTPClient(endpoint string, opts ...ClientOption) *HTTPClient {
	c := &HTTPClient{
		endpoint:    endpoint,
		http:        resty.New().SetTimeout(DefaultTimeout),
		maxRetries:  DefaultMaxRetries,
		retryDelay:  DefaultRetryDelay,
		maxDelay:    DefaultMaxDelay,
		backoffMult: DefaultBackoffMult,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Compile-time interface check.
var _ RPCClient = (*HTTPClient)(nil)

// rpcRequest represents a JSON-RPC 2.0 request.
type rpcRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      uint64        `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params,omitempty"`
}

// rpcResponse represents a JSON-RPC 2.0 response.
type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      uint64          `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *RPCError       `json:"error,omitempty"`
}

// do performs a single JSON-RPC request and classifies the failure.
func (c *HTTPClient) do(ctx context.Context, method string, params []interface{}, result interface{}) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("rate limiter: %w", err)
		}
	}

	body, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		ID:      c.requestID.Add(1),
		Method:  method,
		Params:  params,
	})
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	start := time.Now()
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(body).
		Post(c.endpoint)
	c.metrics.RecordRPCLatency(method, time.Since(start).Seconds())
	if err != nil {
		return fmt.Errorf("http request: %w", err)
	}

	if resp.StatusCode() == http.StatusTooManyRequests {
		return fmt.Errorf("%s: %w (429)", method, ErrRateLimited)
	}
	if resp.StatusCode() != http.StatusOK {
		return &HTTPStatusError{StatusCode: resp.StatusCode(), Body: string(resp.Body())}
	}

	var rpcResp rpcResponse
	if err := json.Unmarshal(resp.Body(), &rpcResp); err != nil {
		return fmt.Errorf("unmarshal response: %w", err)
	}
	if rpcResp.Error != nil {
		return rpcResp.Error
	}

	if result != nil && rpcResp.Result != nil {
		if err := json.Unmarshal(rpcResp.Result, result); err != nil {
			return fmt.Errorf("unmarshal result: %w", err)
		}
	}
	return nil
}

// call performs a JSON-RPC call with retries and exponential backoff.
// RPC errors are not retried unless they signal rate limiting.
func (c *HTTPClient) call(ctx context.Context, method string, params []interface{}, result interface{}) error {
	delay := c.retryDelay
	var lastErr error

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
			// Exponential backoff
			delay = time.Duration(float64(delay) * c.backoffMult)
			if delay > c.maxDelay {
				delay = c.maxDelay
			}
		}

		err := c.do(ctx, method, params, result)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		var rpcErr *RPCError
		if errors.As(err, &rpcErr) && !errors.Is(err, ErrRateLimited) {
			return err
		}
		lastErr = err
	}

	return fmt.Errorf("max retries exceeded: %w", lastErr)
}

// GetLatestBlockhash returns the most recent blockhash. One request, no retries.
func (c *HTTPClient) GetLatestBlockhash(ctx context.Context, commitment Commitment) (*Blockhash, error) {
	params := []interface{}{
		map[string]interface{}{"commitment": string(commitment)},
	}

	var result getLatestBlockhashResult
	if err := c.do(ctx, "getLatestBlockhash", params, &result); err != nil {
		return nil, err
	}
	if result.Value.Blockhash == "" {
		return nil, fmt.Errorf("getLatestBlockhash: empty blockhash")
	}

	return &Blockhash{
		Hash:                 result.Value.Blockhash,
		LastValidBlockHeight: result.Value.LastValidBlockHeight,
		Slot:                 result.Context.Slot,
	}, nil
}

type getLatestBlockhashResult struct {
	Context struct {
		Slot int64 `json:"slot"`
	} `json:"context"`
	Value struct {
		Blockhash            string `json:"blockhash"`
		LastValidBlockHeight uint64 `json:"lastValidBlockHeight"`
	} `json:"value"`
}

// SendTransaction submits a signed transaction. One request, no retries.
func (c *HTTPClient) SendTransaction(ctx context.Context, encoded string, opts SendOptions) (string, error) {
	config := map[string]interface{}{
		"encoding":      "base64",
		"skipPreflight": opts.SkipPreflight,
	}
	if opts.PreflightCommitment != "" {
		config["preflightCommitment"] = string(opts.PreflightCommitment)
	}
	if opts.MaxRetries != nil {
		config["maxRetries"] = *opts.MaxRetries
	}

	var signature string
	if err := c.do(ctx, "sendTransaction", []interface{}{encoded, config}, &signature); err != nil {
		return "", err
	}
	if signature == "" {
		return "", fmt.Errorf("sendTransaction: empty signature")
	}
	return signature, nil
}

// GetAccountInfo retrieves account info by public key.
// Returns nil if account not found.
func (c *HTTPClient) GetAccountInfo(ctx context.Context, pubkey string) (*AccountInfo, error) {
	params := []interface{}{
		pubkey,
		map[string]interface{}{
			"encoding":   "base64",
			"commitment": string(CommitmentConfirmed),
		},
	}

	var result getAccountInfoResult
	if err := c.call(ctx, "getAccountInfo", params, &result); err != nil {
		return nil, err
	}

	if result.Value == nil {
		return nil, nil
	}

	info := result.Value.toAccountInfo()
	return &info, nil
}

type getAccountInfoResult struct {
	Value *accountValue `json:"value"`
}

type accountValue struct {
	Lamports   uint64   `json:"lamports"`
	Owner      string   `json:"owner"`
	Data       []string `json:"data"` // [base64_data, encoding]
	Executable bool     `json:"executable"`
	RentEpoch  uint64   `json:"rentEpoch"`
}

func (v accountValue) toAccountInfo() AccountInfo {
	info := AccountInfo{
		Lamports:   v.Lamports,
		Owner:      v.Owner,
		Executable: v.Executable,
		RentEpoch:  v.RentEpoch,
	}
	if len(v.Data) >= 1 {
		info.Data = v.Data[0]
	}
	return info
}

// GetProgramAccounts lists accounts owned by programID matching all filters.
func (c *HTTPClient) GetProgramAccounts(ctx context.Context, programID string, filters []AccountFilter) ([]KeyedAccount, error) {
	config := map[string]interface{}{
		"encoding":   "base64",
		"commitment": string(CommitmentConfirmed),
	}
	if len(filters) > 0 {
		encoded := make([]map[string]interface{}, 0, len(filters))
		for _, f := range filters {
			if f.Memcmp != nil {
				encoded = append(encoded, map[string]interface{}{
					"memcmp": map[string]interface{}{
						"offset": f.Memcmp.Offset,
						"bytes":  f.Memcmp.Bytes,
					},
				})
				continue
			}
			encoded = append(encoded, map[string]interface{}{"dataSize": f.DataSize})
		}
		config["filters"] = encoded
	}

	var result []getProgramAccountsItem
	if err := c.call(ctx, "getProgramAccounts", []interface{}{programID, config}, &result); err != nil {
		return nil, err
	}

	accounts := make([]KeyedAccount, len(result))
	for i, r := range result {
		accounts[i] = KeyedAccount{
			Pubkey:  r.Pubkey,
			Account: r.Account.toAccountInfo(),
		}
	}
	return accounts, nil
}

type getProgramAccountsItem struct {
	Pubkey  string       `json:"pubkey"`
	Account accountValue `json:"account"`
}

// GetSlot retrieves the current slot.
func (c *HTTPClient) GetSlot(ctx context.Context) (int64, error) {
	var result int64
	if err := c.call(ctx, "getSlot", nil, &result); err != nil {
		return 0, err
	}
	return result, nil
}
