// Package ledger wraps the Solana RPC reads the payment watcher needs with a
// request cache and bounded exponential backoff on rate limiting.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sirupsen/logrus"

	"solana-tap-to-pay/internal/cache"
	"solana-tap-to-pay/internal/domain"
	"solana-tap-to-pay/internal/observability"
	"solana-tap-to-pay/internal/solana"
)

// Default configuration values.
const (
	DefaultMaxAttempts    = 5
	DefaultInitialBackoff = 2 * time.Second // wait before the first retry: 1s * 2^1
	DefaultMaxBackoff     = 10 * time.Second
	DefaultCommitment     = solana.CommitmentConfirmed

	// MaxSignatureLimit is the largest page getSignaturesForAddress accepts.
	MaxSignatureLimit = 1000
)

// Options configures a Client.
type Options struct {
	Cache          *cache.Store // Default: a private store with cache defaults
	MaxAttempts    int          // Default: 5 network attempts per call
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	Commitment     solana.Commitment
	// Sleep waits between attempts. Default honours ctx cancellation.
	Sleep  func(ctx context.Context, d time.Duration) error
	Logger logrus.FieldLogger
}

// Client executes cached, rate-limit tolerant reads against a Solana RPC node.
type Client struct {
	rpc            solana.RPCClient
	cache          *cache.Store
	maxAttempts    int
	initialBackoff time.Duration
	maxBackoff     time.Duration
	commitment     solana.Commitment
	sleep          func(ctx context.Context, d time.Duration) error
	logger         logrus.FieldLogger
}

// New creates a Client over rpc.
func New(rpc solana.RPCClient, opts Options) *Client {
	store := opts.Cache
	if store == nil {
		store = cache.New(cache.Options{})
	}

	maxAttempts := opts.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}

	initialBackoff := opts.InitialBackoff
	if initialBackoff <= 0 {
		initialBackoff = DefaultInitialBackoff
	}

	maxBackoff := opts.MaxBackoff
	if maxBackoff <= 0 {
		maxBackoff = DefaultMaxBackoff
	}

	commitment := opts.Commitment
	if commitment == "" {
		commitment = DefaultCommitment
	}

	sleep := opts.Sleep
	if sleep == nil {
		sleep = sleepContext
	}

	logger := opts.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	return &Client{
		rpc:            rpc,
		cache:          store,
		maxAttempts:    maxAttempts,
		initialBackoff: initialBackoff,
		maxBackoff:     maxBackoff,
		commitment:     commitment,
		sleep:          sleep,
		logger:         logger.WithField("component", "ledger"),
	}
}

// GetSignaturesForAddress returns up to limit signatures for address, newest first.
func (c *Client) GetSignaturesForAddress(ctx context.Context, address string, limit int) ([]solana.SignatureInfo, error) {
	if err := solana.ValidateAddress(address); err != nil {
		return nil, &domain.ValidationError{Field: "address", Value: address, Err: err}
	}
	if limit <= 0 || limit > MaxSignatureLimit {
		return nil, &domain.ValidationError{Field: "limit", Value: strconv.Itoa(limit), Reason: "must be between 1 and 1000"}
	}

	key := signaturesKey(address, limit, c.commitment)
	return cached(ctx, c, solana.MethodGetSignaturesForAddress, key, always[[]solana.SignatureInfo],
		func(ctx context.Context) ([]solana.SignatureInfo, error) {
			return c.rpc.GetSignaturesForAddress(ctx, address, &solana.SignaturesOpts{
				Limit:      limit,
				Commitment: c.commitment,
			})
		})
}

// GetTransaction returns the transaction for signature, or nil if the node
// has not indexed it yet. Absent results are not cached.
func (c *Client) GetTransaction(ctx context.Context, signature string) (*solana.Transaction, error) {
	if err := solana.ValidateSignature(signature); err != nil {
		return nil, &domain.ValidationError{Field: "signature", Value: signature, Err: err}
	}

	key := transactionKey(signature, c.commitment)
	return cached(ctx, c, solana.MethodGetTransaction, key,
		func(tx *solana.Transaction) bool { return tx != nil },
		func(ctx context.Context) (*solana.Transaction, error) {
			return c.rpc.GetTransaction(ctx, signature, &solana.TransactionOpts{Commitment: c.commitment})
		})
}

// GetBalance returns the lamport balance of address.
func (c *Client) GetBalance(ctx context.Context, address string) (uint64, error) {
	if err := solana.ValidateAddress(address); err != nil {
		return 0, &domain.ValidationError{Field: "address", Value: address, Err: err}
	}

	key := balanceKey(address, c.commitment)
	return cached(ctx, c, solana.MethodGetBalance, key, always[uint64],
		func(ctx context.Context) (uint64, error) {
			return c.rpc.GetBalance(ctx, address, c.commitment)
		})
}

func always[T any](T) bool { return true }

// cached serves key from the cache or runs fetch with backoff on rate limits.
// Successful results accepted by cacheable are written back to the cache.
func cached[T any](
	ctx context.Context,
	c *Client,
	method, key string,
	cacheable func(T) bool,
	fetch func(context.Context) (T, error),
) (T, error) {
	var zero T

	if v, ok := c.cache.Get(key); ok {
		if typed, ok := v.(T); ok {
			observability.RecordCacheLookup(method, true)
			return typed, nil
		}
	}
	observability.RecordCacheLookup(method, false)

	schedule := c.newBackoff()
	var lastErr error

	for attempt := 0; attempt < c.maxAttempts; attempt++ {
		if attempt > 0 {
			delay := schedule.NextBackOff()
			c.logger.WithFields(logrus.Fields{
				"method":  method,
				"attempt": attempt + 1,
				"delay":   delay,
			}).Warnf("Rate limited (429). Retry %d/%d", attempt, c.maxAttempts-1)
			observability.RecordRateLimitRetry(method)

			if err := c.sleep(ctx, delay); err != nil {
				return zero, err
			}
		}

		result, err := fetch(ctx)
		if err == nil {
			if cacheable(result) {
				c.cache.Put(key, result)
			}
			return result, nil
		}

		if !errors.Is(err, solana.ErrRateLimited) {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return zero, ctxErr
			}
			observability.RecordLedgerFailure(method, "transport")
			return zero, &TransportError{Method: method, Err: err}
		}
		lastErr = err
	}

	observability.RecordLedgerFailure(method, "rate_limited")
	return zero, fmt.Errorf("%s: %w after %d attempts: %w", method, ErrRateLimited, c.maxAttempts, lastErr)
}

// newBackoff returns the delay schedule for one logical call:
// min(initial * 2^(n-1), max) before retry n.
func (c *Client) newBackoff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.initialBackoff
	b.Multiplier = 2
	b.RandomizationFactor = 0
	b.MaxInterval = c.maxBackoff
	b.MaxElapsedTime = 0
	b.Reset()
	return b
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
