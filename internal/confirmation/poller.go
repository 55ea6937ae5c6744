// Package confirmation watches the ledger for an expected payment with a
// bounded, cancellable polling loop.
package confirmation

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"solana-tap-to-pay/internal/domain"
	"solana-tap-to-pay/internal/matcher"
	"solana-tap-to-pay/internal/observability"
	"solana-tap-to-pay/internal/solana"
)

// Default configuration values.
const (
	DefaultSettleDelay    = 2 * time.Second
	DefaultInterval       = 10 * time.Second
	DefaultMaxChecks      = 15
	DefaultSignatureLimit = 5
)

// Ledger is the read surface the poller needs. *ledger.Client satisfies it.
type Ledger interface {
	GetSignaturesForAddress(ctx context.Context, address string, limit int) ([]solana.SignatureInfo, error)
	GetTransaction(ctx context.Context, signature string) (*solana.Transaction, error)
}

// Options configures a Poller.
type Options struct {
	SettleDelay    time.Duration // Default: 2s before the first check
	Interval       time.Duration // Default: 10s between checks
	MaxChecks      int           // Default: 15 unsuccessful checks before giving up
	SignatureLimit int           // Default: 5 most recent signatures per check
	Criteria       *matcher.Criteria
	Now            func() time.Time
	Logger         logrus.FieldLogger
}

// Poller starts payment watches.
type Poller struct {
	ledger         Ledger
	settleDelay    time.Duration
	interval       time.Duration
	maxChecks      int
	signatureLimit int
	criteria       matcher.Criteria
	now            func() time.Time
	logger         logrus.FieldLogger
}

// NewPoller creates a Poller reading through ledger.
func NewPoller(ledger Ledger, opts Options) *Poller {
	settleDelay := opts.SettleDelay
	if settleDelay == 0 {
		settleDelay = DefaultSettleDelay
	}

	interval := opts.Interval
	if interval == 0 {
		interval = DefaultInterval
	}

	maxChecks := opts.MaxChecks
	if maxChecks <= 0 {
		maxChecks = DefaultMaxChecks
	}

	signatureLimit := opts.SignatureLimit
	if signatureLimit <= 0 {
		signatureLimit = DefaultSignatureLimit
	}

	criteria := matcher.DefaultCriteria()
	if opts.Criteria != nil {
		criteria = *opts.Criteria
	}

	now := opts.Now
	if now == nil {
		now = time.Now
	}

	logger := opts.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	return &Poller{
		ledger:         ledger,
		settleDelay:    settleDelay,
		interval:       interval,
		maxChecks:      maxChecks,
		signatureLimit: signatureLimit,
		criteria:       criteria,
		now:            now,
		logger:         logger.WithField("component", "confirmation"),
	}
}

// Watch starts polling for exp in a new goroutine. The watch ends when the
// payment is confirmed, the check budget is exhausted, Cancel is called or
// ctx is done. An invalid expectation is rejected before anything starts.
func (p *Poller) Watch(ctx context.Context, exp domain.PaymentExpectation) (*Watch, error) {
	if err := validate(exp); err != nil {
		return nil, err
	}

	id := uuid.NewString()
	logger := p.logger.WithFields(logrus.Fields{
		"watch_id":  id,
		"recipient": exp.Recipient,
		"amount":    exp.Amount.String(),
	})
	if !solana.IsOnCurve(exp.Recipient) {
		logger.Warn("Recipient is not an ed25519 public key; wallets may refuse to pay a program derived address")
	}

	ctx, cancel := context.WithCancel(ctx)
	w := newWatch(id, p.maxChecks, cancel)

	observability.RecordWatchStarted()
	logger.Info("Watching for payment")

	go p.run(ctx, w, exp, logger)
	return w, nil
}

func validate(exp domain.PaymentExpectation) error {
	if err := solana.ValidateAddress(exp.Recipient); err != nil {
		return &domain.ValidationError{Field: "recipient", Value: exp.Recipient, Err: err}
	}
	if !exp.Amount.IsPositive() {
		return &domain.ValidationError{Field: "amount", Value: exp.Amount.String(), Reason: "must be positive"}
	}
	return nil
}

func (p *Poller) run(ctx context.Context, w *Watch, exp domain.PaymentExpectation, logger logrus.FieldLogger) {
	started := p.now()
	defer w.close()
	defer func() {
		state, checks := w.snapshot()
		outcome := state.String()
		if !state.Terminal() {
			outcome = "cancelled"
		}
		observability.RecordWatchFinished(outcome, checks)
	}()

	if !sleep(ctx, p.settleDelay) {
		return
	}

	for {
		rec, found, err := p.check(ctx, exp)

		// Results of a call that resolved after cancellation are discarded.
		if ctx.Err() != nil {
			return
		}

		switch {
		case err != nil:
			if w.exhaust(err) {
				logger.WithError(err).Warn("Payment check failed; giving up")
			}
			return

		case found:
			if w.confirm(rec) {
				observability.RecordTimeToConfirmed(p.now().Sub(started).Seconds())
				logger.WithFields(logrus.Fields{
					"payer":     rec.Sender,
					"signature": rec.Signature,
				}).Info("Payment confirmed")
			}
			return
		}

		checks, terminal, ok := w.advance()
		if !ok {
			return
		}
		if terminal {
			logger.WithField("checks", checks).Info("Payment not detected; watch exhausted")
			return
		}
		logger.WithField("checks", checks).Debug("Payment not detected yet")

		if !sleep(ctx, p.interval) {
			return
		}
	}
}

// check runs one poll tick: list recent signatures for the recipient and
// match each transaction, newest first.
func (p *Poller) check(ctx context.Context, exp domain.PaymentExpectation) (domain.TransferRecord, bool, error) {
	sigs, err := p.ledger.GetSignaturesForAddress(ctx, exp.Recipient, p.signatureLimit)
	if err != nil {
		return domain.TransferRecord{}, false, err
	}

	for _, sig := range sigs {
		if sig.Err != nil {
			continue
		}

		tx, err := p.ledger.GetTransaction(ctx, sig.Signature)
		if err != nil {
			return domain.TransferRecord{}, false, err
		}

		tx = matcher.WithBlockTime(tx, sig)
		if rec, ok := p.criteria.Match(tx, exp, p.now()); ok {
			return rec, true, nil
		}
	}
	return domain.TransferRecord{}, false, nil
}

// sleep waits for d and reports false if ctx ended first.
func sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
