// Package history lists recent System Program transfers for an address.
package history

import (
	"context"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"solana-tap-to-pay/internal/domain"
	"solana-tap-to-pay/internal/matcher"
	"solana-tap-to-pay/internal/observability"
	"solana-tap-to-pay/internal/solana"
)

// Default configuration values.
const (
	DefaultLimit       = 5
	MinLimit           = 3
	MaxLimit           = 5
	DefaultConcurrency = 2
)

// Ledger is the read surface the aggregator needs. *ledger.Client satisfies it.
type Ledger interface {
	GetSignaturesForAddress(ctx context.Context, address string, limit int) ([]solana.SignatureInfo, error)
	GetTransaction(ctx context.Context, signature string) (*solana.Transaction, error)
}

// Options configures an Aggregator.
type Options struct {
	Concurrency int // Default: 2 transaction fetches in flight
	Logger      logrus.FieldLogger
}

// Aggregator flattens recent transactions of an address into transfers.
type Aggregator struct {
	ledger      Ledger
	concurrency int
	logger      logrus.FieldLogger
}

// NewAggregator creates an Aggregator reading through ledger.
func NewAggregator(ledger Ledger, opts Options) *Aggregator {
	concurrency := opts.Concurrency
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}

	logger := opts.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	return &Aggregator{
		ledger:      ledger,
		concurrency: concurrency,
		logger:      logger.WithField("component", "history"),
	}
}

// ClampLimit maps a requested page size into [MinLimit, MaxLimit].
// Zero or negative selects DefaultLimit.
func ClampLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultLimit
	case limit < MinLimit:
		return MinLimit
	case limit > MaxLimit:
		return MaxLimit
	default:
		return limit
	}
}

// ListTransfers returns the transfers of the most recent transactions of
// address, newest transaction first and instruction order within each.
// A transaction that fails to load is logged and skipped; only a failure to
// list signatures fails the call.
func (a *Aggregator) ListTransfers(ctx context.Context, address string, limit int) ([]domain.TransferRecord, error) {
	sigs, err := a.ledger.GetSignaturesForAddress(ctx, address, ClampLimit(limit))
	if err != nil {
		return nil, err
	}

	// Each fetch writes only its own slot, so order follows sigs.
	perTx := make([][]domain.TransferRecord, len(sigs))
	failed := make([]bool, len(sigs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.concurrency)

	for i, sig := range sigs {
		i, sig := i, sig
		g.Go(func() error {
			tx, err := a.ledger.GetTransaction(gctx, sig.Signature)
			if err != nil {
				failed[i] = true
				a.logger.WithError(err).WithField("signature", sig.Signature).Warn("Skipping transaction that failed to load")
				return nil
			}
			perTx[i] = matcher.Transfers(matcher.WithBlockTime(tx, sig), address)
			return nil
		})
	}
	// Workers never return an error.
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var (
		records []domain.TransferRecord
		dropped int
	)
	for i := range sigs {
		if failed[i] {
			dropped++
			continue
		}
		records = append(records, perTx[i]...)
	}

	observability.RecordHistoryListing(dropped)
	return records, nil
}
