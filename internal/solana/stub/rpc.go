package stub

import (
	"context"
	"sync"

	"solana-tap-to-pay/internal/solana"
)

// Hook runs before a stub call is served. A non-nil error fails the call.
// call is the 1-based count of calls to that method so far.
type Hook func(ctx context.Context, key string, call int) error

// RPCClient implements solana.RPCClient for testing.
type RPCClient struct {
	mu           sync.Mutex
	transactions map[string]*solana.Transaction
	signatures   map[string][]solana.SignatureInfo
	balances     map[string]uint64
	hooks        map[string]Hook
	calls        map[string]int
}

// NewRPCClient creates a new stub RPC client.
func NewRPCClient() *RPCClient {
	return &RPCClient{
		transactions: make(map[string]*solana.Transaction),
		signatures:   make(map[string][]solana.SignatureInfo),
		balances:     make(map[string]uint64),
		hooks:        make(map[string]Hook),
		calls:        make(map[string]int),
	}
}

// OnCall installs a hook for an RPC method (solana.Method* constants).
func (c *RPCClient) OnCall(method string, hook Hook) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.hooks[method] = hook
}

// Calls returns how many times a method was invoked.
func (c *RPCClient) Calls(method string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls[method]
}

func (c *RPCClient) enter(ctx context.Context, method, key string) error {
	c.mu.Lock()
	c.calls[method]++
	call := c.calls[method]
	hook := c.hooks[method]
	c.mu.Unlock()

	if hook != nil {
		return hook(ctx, key, call)
	}
	return nil
}

// GetSignaturesForAddress returns stored signatures for an address.
func (c *RPCClient) GetSignaturesForAddress(ctx context.Context, address string, opts *solana.SignaturesOpts) ([]solana.SignatureInfo, error) {
	if err := c.enter(ctx, solana.MethodGetSignaturesForAddress, address); err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	sigs := c.signatures[address]
	if opts != nil && opts.Limit > 0 && opts.Limit < len(sigs) {
		sigs = sigs[:opts.Limit]
	}
	out := make([]solana.SignatureInfo, len(sigs))
	copy(out, sigs)
	return out, nil
}

// GetTransaction returns a stored transaction, or nil if it was never added.
func (c *RPCClient) GetTransaction(ctx context.Context, signature string, _ *solana.TransactionOpts) (*solana.Transaction, error) {
	if err := c.enter(ctx, solana.MethodGetTransaction, signature); err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	return c.transactions[signature], nil
}

// GetBalance returns the stored balance for an address.
func (c *RPCClient) GetBalance(ctx context.Context, address string, _ solana.Commitment) (uint64, error) {
	if err := c.enter(ctx, solana.MethodGetBalance, address); err != nil {
		return 0, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	return c.balances[address], nil
}

// AddTransaction adds a transaction to the stub store.
func (c *RPCClient) AddTransaction(tx *solana.Transaction) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.transactions[tx.Signature] = tx
}

// AddSignatures sets the newest-first signature list for an address.
func (c *RPCClient) AddSignatures(address string, sigs []solana.SignatureInfo) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.signatures[address] = sigs
}

// SetBalance sets the lamport balance for an address.
func (c *RPCClient) SetBalance(address string, lamports uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.balances[address] = lamports
}
