package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// PaymentExpectation is the payment a watch waits for.
// Reference is threaded through the payment link but not used for matching:
// two requests for the same amount to the same recipient inside the match
// window are indistinguishable.
type PaymentExpectation struct {
	Recipient string
	Amount    decimal.Decimal // SOL
	Reference string
	CreatedAt time.Time
}

// PollState is the state of a payment watch.
type PollState int

const (
	// PollPending means the watch is still polling.
	PollPending PollState = iota
	// PollConfirmed means a matching payment was found.
	PollConfirmed
	// PollExhausted means the watch gave up without finding the payment.
	// Funds may still arrive later.
	PollExhausted
)

// String returns the state name.
func (s PollState) String() string {
	switch s {
	case PollPending:
		return "pending"
	case PollConfirmed:
		return "confirmed"
	case PollExhausted:
		return "exhausted"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further transitions can happen.
func (s PollState) Terminal() bool {
	return s == PollConfirmed || s == PollExhausted
}
