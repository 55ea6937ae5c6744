// Package matcher extracts System Program transfers from parsed transactions
// and decides whether one of them fulfils an expected payment.
package matcher

import (
	"time"

	"github.com/shopspring/decimal"

	"solana-tap-to-pay/internal/domain"
	"solana-tap-to-pay/internal/solana"
)

// Default matching criteria.
var (
	DefaultTolerance = decimal.New(1, -4) // 0.0001 SOL
	DefaultMaxAge    = 5 * time.Minute
)

// Criteria bounds what counts as a matching transfer.
type Criteria struct {
	Tolerance decimal.Decimal // exclusive absolute SOL tolerance
	MaxAge    time.Duration   // oldest acceptable block time relative to now
}

// DefaultCriteria returns the criteria used by the confirmation poller.
func DefaultCriteria() Criteria {
	return Criteria{Tolerance: DefaultTolerance, MaxAge: DefaultMaxAge}
}

// Transfers returns one record per System Program transfer instruction in tx,
// in instruction order. IsIncoming is set relative to owner.
// A nil transaction yields no records.
func Transfers(tx *solana.Transaction, owner string) []domain.TransferRecord {
	if tx == nil || tx.Message == nil {
		return nil
	}

	blockTime := txBlockTime(tx)
	failed := tx.Meta.Failed()

	var records []domain.TransferRecord
	for _, ix := range tx.Message.Instructions {
		info, ok := ix.SystemTransfer()
		if !ok {
			continue
		}
		records = append(records, domain.TransferRecord{
			Signature:  tx.Signature,
			BlockTime:  blockTime,
			Sender:     info.Source,
			Receiver:   info.Destination,
			Lamports:   info.Lamports,
			IsIncoming: info.Destination == owner,
			Failed:     failed,
		})
	}
	return records
}

// Match returns the first transfer in tx that pays exp under c.
// Failed transactions and transactions without a block time never match.
func (c Criteria) Match(tx *solana.Transaction, exp domain.PaymentExpectation, now time.Time) (domain.TransferRecord, bool) {
	if tx == nil || tx.Meta == nil || tx.Meta.Failed() {
		return domain.TransferRecord{}, false
	}

	for _, rec := range Transfers(tx, exp.Recipient) {
		if c.matches(rec, exp, now) {
			return rec, true
		}
	}
	return domain.TransferRecord{}, false
}

// Match applies DefaultCriteria.
func Match(tx *solana.Transaction, exp domain.PaymentExpectation, now time.Time) (domain.TransferRecord, bool) {
	return DefaultCriteria().Match(tx, exp, now)
}

func (c Criteria) matches(rec domain.TransferRecord, exp domain.PaymentExpectation, now time.Time) bool {
	if rec.Receiver != exp.Recipient {
		return false
	}
	if rec.SOL().Sub(exp.Amount).Abs().GreaterThanOrEqual(c.Tolerance) {
		return false
	}
	if rec.BlockTime == nil {
		return false
	}
	return now.Sub(*rec.BlockTime) <= c.MaxAge
}

func txBlockTime(tx *solana.Transaction) *time.Time {
	if tx.BlockTime == nil {
		return nil
	}
	t := time.Unix(*tx.BlockTime, 0).UTC()
	return &t
}

// WithBlockTime fills in a missing transaction block time from the signature
// listing, which the node sometimes populates first.
func WithBlockTime(tx *solana.Transaction, sig solana.SignatureInfo) *solana.Transaction {
	if tx == nil || tx.BlockTime != nil || sig.BlockTime == nil {
		return tx
	}
	clone := *tx
	bt := *sig.BlockTime
	clone.BlockTime = &bt
	return &clone
}
