// Package paylink builds and parses Solana Pay transfer request links.
package paylink

import (
	"crypto/rand"
	"fmt"
	"net/url"
	"strings"
	"time"

	"filippo.io/edwards25519"
	"github.com/mr-tron/base58"
	"github.com/shopspring/decimal"

	"solana-tap-to-pay/internal/domain"
	"solana-tap-to-pay/internal/solana"
)

// Scheme is the URL scheme of a transfer request.
const Scheme = "solana"

// DefaultMessage is used when a request carries no label.
const DefaultMessage = "Solana Payment"

// Request is a Solana Pay transfer request.
type Request struct {
	Recipient string
	Amount    decimal.Decimal // SOL
	Reference string
	Label     string
	Message   string
	CreatedAt time.Time
}

// NewRequest validates the recipient and amount and attaches a fresh
// reference key. The message defaults to the label, then DefaultMessage.
func NewRequest(recipient string, amount decimal.Decimal, label string, now time.Time) (*Request, error) {
	if err := validate(recipient, amount); err != nil {
		return nil, err
	}

	reference, err := NewReference()
	if err != nil {
		return nil, err
	}

	message := label
	if message == "" {
		message = DefaultMessage
	}

	return &Request{
		Recipient: recipient,
		Amount:    amount,
		Reference: reference,
		Label:     label,
		Message:   message,
		CreatedAt: now,
	}, nil
}

func validate(recipient string, amount decimal.Decimal) error {
	if err := solana.ValidateAddress(recipient); err != nil {
		return &domain.ValidationError{Field: "recipient", Value: recipient, Err: err}
	}
	if !amount.IsPositive() {
		return &domain.ValidationError{Field: "amount", Value: amount.String(), Reason: "must be positive"}
	}
	if _, err := domain.SOLToLamports(amount); err != nil {
		return err
	}
	return nil
}

// NewReference returns the base58 public key of a freshly generated ed25519
// key pair. Only the public half is kept; it is a unique, on-curve marker.
func NewReference() (string, error) {
	var seed [64]byte
	if _, err := rand.Read(seed[:]); err != nil {
		return "", fmt.Errorf("generate reference: %w", err)
	}

	scalar, err := edwards25519.NewScalar().SetUniformBytes(seed[:])
	if err != nil {
		return "", fmt.Errorf("generate reference: %w", err)
	}
	point := new(edwards25519.Point).ScalarBaseMult(scalar)
	return base58.Encode(point.Bytes()), nil
}

// URL renders the request as solana:<recipient>?amount=..&reference=..&label=..&message=..
// Label is omitted when empty.
func (r *Request) URL() string {
	params := []string{
		"amount=" + url.QueryEscape(r.Amount.String()),
		"reference=" + url.QueryEscape(r.Reference),
	}
	if r.Label != "" {
		params = append(params, "label="+url.QueryEscape(r.Label))
	}
	if r.Message != "" {
		params = append(params, "message="+url.QueryEscape(r.Message))
	}
	return Scheme + ":" + r.Recipient + "?" + strings.Join(params, "&")
}

// Expectation returns the payment a confirmation watch should wait for.
func (r *Request) Expectation() domain.PaymentExpectation {
	return domain.PaymentExpectation{
		Recipient: r.Recipient,
		Amount:    r.Amount,
		Reference: r.Reference,
		CreatedAt: r.CreatedAt,
	}
}

// Parse reads a transfer request link. CreatedAt is left zero.
func Parse(link string) (*Request, error) {
	u, err := url.Parse(link)
	if err != nil {
		return nil, fmt.Errorf("parse payment link: %w", err)
	}
	if u.Scheme != Scheme {
		return nil, &domain.ValidationError{Field: "link", Value: link, Reason: "scheme must be " + Scheme}
	}

	recipient := u.Opaque
	if recipient == "" {
		recipient = strings.TrimPrefix(u.Path, "/")
	}

	q := u.Query()
	rawAmount := q.Get("amount")
	if rawAmount == "" {
		return nil, &domain.ValidationError{Field: "amount", Value: rawAmount, Reason: "missing"}
	}
	amount, err := decimal.NewFromString(rawAmount)
	if err != nil {
		return nil, &domain.ValidationError{Field: "amount", Value: rawAmount, Err: err}
	}
	if err := validate(recipient, amount); err != nil {
		return nil, err
	}

	reference := q.Get("reference")
	if reference != "" {
		if err := solana.ValidateAddress(reference); err != nil {
			return nil, &domain.ValidationError{Field: "reference", Value: reference, Err: err}
		}
	}

	return &Request{
		Recipient: recipient,
		Amount:    amount,
		Reference: reference,
		Label:     q.Get("label"),
		Message:   q.Get("message"),
	}, nil
}

// ExplorerURL links a transaction on the Solana explorer. The cluster query is
// omitted for mainnet-beta.
func ExplorerURL(signature, cluster string) string {
	link := "https://explorer.solana.com/tx/" + url.PathEscape(signature)
	if cluster != "" && cluster != "mainnet-beta" {
		link += "?cluster=" + url.QueryEscape(cluster)
	}
	return link
}
