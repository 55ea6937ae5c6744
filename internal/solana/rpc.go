package solana

import "context"

// RPCClient defines the subset of the Solana RPC HTTP interface the payment
// watcher consumes.
type RPCClient interface {
	// GetSignaturesForAddress retrieves signatures for an address, newest first.
	GetSignaturesForAddress(ctx context.Context, address string, opts *SignaturesOpts) ([]SignatureInfo, error)

	// GetTransaction retrieves a parsed transaction by signature.
	// Returns nil, nil when the node has not indexed the transaction yet.
	GetTransaction(ctx context.Context, signature string, opts *TransactionOpts) (*Transaction, error)

	// GetBalance retrieves the lamport balance of an address.
	GetBalance(ctx context.Context, address string, commitment Commitment) (uint64, error)
}

// RPC method names.
const (
	MethodGetSignaturesForAddress = "getSignaturesForAddress"
	MethodGetTransaction          = "getTransaction"
	MethodGetBalance              = "getBalance"
)

// Transaction represents a Solana transaction fetched with jsonParsed encoding.
type Transaction struct {
	Slot      int64
	Signature string
	BlockTime *int64 // Unix timestamp (seconds), nil if not yet known
	Meta      *TransactionMeta
	Message   *TransactionMessage
}

// TransactionMeta contains transaction metadata.
type TransactionMeta struct {
	Err         interface{}
	Fee         uint64
	LogMessages []string
}

// Failed reports whether the transaction executed with an error.
func (m *TransactionMeta) Failed() bool {
	return m != nil && m.Err != nil
}

// TransactionMessage contains the parsed transaction message.
type TransactionMessage struct {
	AccountKeys  []string
	Instructions []Instruction
}
