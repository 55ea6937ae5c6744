package domain

import (
	"math/big"
	"time"

	"github.com/shopspring/decimal"
)

// LamportsPerSOL is the number of base units in one SOL.
const LamportsPerSOL = 1_000_000_000

// solDecimals is the exponent between lamports and SOL.
const solDecimals = 9

// TransferRecord is one System Program transfer found in a transaction.
// Derived read-only from a fetched transaction; one per transfer instruction.
type TransferRecord struct {
	Signature  string
	BlockTime  *time.Time // nil when the ledger has not assigned one
	Sender     string
	Receiver   string
	Lamports   uint64
	IsIncoming bool // receiver == queried address (history listings only)
	Failed     bool // transaction executed with an error
}

// SOL returns the transferred amount in SOL.
func (r TransferRecord) SOL() decimal.Decimal {
	return LamportsToSOL(r.Lamports)
}

// LamportsToSOL converts base units to SOL without floating point rounding.
func LamportsToSOL(lamports uint64) decimal.Decimal {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(lamports), -solDecimals)
}

// SOLToLamports converts a SOL amount to base units.
// Amounts with more than 9 decimal places or below zero are rejected.
func SOLToLamports(sol decimal.Decimal) (uint64, error) {
	if sol.IsNegative() {
		return 0, &ValidationError{Field: "amount", Value: sol.String(), Reason: "must not be negative"}
	}
	if !sol.Equal(sol.Truncate(solDecimals)) {
		return 0, &ValidationError{Field: "amount", Value: sol.String(), Reason: "more than 9 decimal places"}
	}
	lamports := sol.Shift(solDecimals).BigInt()
	if !lamports.IsUint64() {
		return 0, &ValidationError{Field: "amount", Value: sol.String(), Reason: "out of range"}
	}
	return lamports.Uint64(), nil
}
