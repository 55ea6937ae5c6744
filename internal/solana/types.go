package solana

import (
	"encoding/json"
	"fmt"
)

// SystemProgramID is the native System Program that moves lamports.
const SystemProgramID = "11111111111111111111111111111111"

// Commitment is the finality level requested on a read.
type Commitment string

// Supported commitment levels.
const (
	CommitmentProcessed Commitment = "processed"
	CommitmentConfirmed Commitment = "confirmed"
	CommitmentFinalized Commitment = "finalized"
)

// SignatureInfo from getSignaturesForAddress.
type SignatureInfo struct {
	Signature string
	Slot      int64
	BlockTime *int64
	Err       interface{}
}

// SignaturesOpts defines optional parameters for getSignaturesForAddress.
type SignaturesOpts struct {
	Before     string // Start searching backwards from this signature
	Until      string // Search until this signature
	Limit      int    // Maximum number of signatures to return
	Commitment Commitment
}

// TransactionOpts defines optional parameters for getTransaction.
type TransactionOpts struct {
	Commitment Commitment
}

// Instruction is a top-level instruction of a jsonParsed transaction.
// Parsed is nil for instructions the node could not decode.
type Instruction struct {
	Program   string // parser name, e.g. "system" or "spl-token"
	ProgramID string
	Parsed    *ParsedInstruction
}

// ParsedInstruction is the decoded form of a known program instruction.
type ParsedInstruction struct {
	Type string
	Info json.RawMessage
}

// TransferInfo is the info payload of a System Program transfer.
type TransferInfo struct {
	Source      string `json:"source"`
	Destination string `json:"destination"`
	Lamports    uint64 `json:"lamports"`
}

// SystemTransfer returns the transfer payload if the instruction is a
// System Program lamport transfer.
func (ix Instruction) SystemTransfer() (TransferInfo, bool) {
	if ix.Parsed == nil || ix.Parsed.Type != "transfer" {
		return TransferInfo{}, false
	}
	if ix.ProgramID != SystemProgramID && ix.Program != "system" {
		return TransferInfo{}, false
	}

	var info TransferInfo
	if err := json.Unmarshal(ix.Parsed.Info, &info); err != nil {
		return TransferInfo{}, false
	}
	if info.Source == "" || info.Destination == "" {
		return TransferInfo{}, false
	}
	return info, true
}

// Cluster endpoints for the public RPC nodes.
var clusterEndpoints = map[string]string{
	"devnet":       "https://api.devnet.solana.com",
	"testnet":      "https://api.testnet.solana.com",
	"mainnet-beta": "https://api.mainnet-beta.solana.com",
}

// ClusterEndpoint returns the public RPC endpoint for a cluster name.
func ClusterEndpoint(cluster string) (string, error) {
	endpoint, ok := clusterEndpoints[cluster]
	if !ok {
		return "", fmt.Errorf("unknown cluster %q", cluster)
	}
	return endpoint, nil
}
