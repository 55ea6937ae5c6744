// Package main creates a Solana Pay payment request and waits for the ledger
// to show it was paid.
//
// Exit codes: 0 confirmed, 1 usage or setup error, 2 exhausted, 130 interrupted.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"solana-tap-to-pay/internal/cache"
	"solana-tap-to-pay/internal/config"
	"solana-tap-to-pay/internal/confirmation"
	"solana-tap-to-pay/internal/domain"
	"solana-tap-to-pay/internal/ledger"
	"solana-tap-to-pay/internal/observability"
	"solana-tap-to-pay/internal/paylink"
	"solana-tap-to-pay/internal/solana"
)

const (
	exitConfirmed   = 0
	exitError       = 1
	exitExhausted   = 2
	exitInterrupted = 130
)

func main() {
	os.Exit(run())
}

func run() int {
	// Load .env file if exists
	if err := config.LoadEnvFile(".env"); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitError
	}

	// Parse flags (env vars as defaults)
	recipient := flag.String("recipient", "", "Recipient wallet address (required)")
	amount := flag.String("amount", "", "Amount in SOL (required)")
	label := flag.String("label", "", "Payment label shown in the wallet")
	link := flag.String("link", "", "Watch an existing solana: payment link instead of creating one")
	rpcEndpoint := flag.String("rpc-endpoint", os.Getenv(config.EnvRPCEndpoint), "Solana RPC HTTP endpoint")
	cluster := flag.String("cluster", config.EnvOr(config.EnvCluster, config.DefaultCluster), "Cluster used when no endpoint is set (devnet, testnet, mainnet-beta)")
	timeout := flag.Duration("rpc-timeout", solana.DefaultTimeout, "Timeout of a single RPC request")
	logLevel := flag.String("log-level", config.EnvOr(config.EnvLogLevel, "info"), "Log level")
	logJSON := flag.Bool("log-json", false, "Log as JSON")
	metricsAddr := flag.String("metrics-addr", os.Getenv(config.EnvMetricsAddr), "Serve /metrics and /health on this address")

	flag.Parse()

	logger, err := config.NewLogger(*logLevel, *logJSON)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitError
	}

	req, err := paymentRequest(*link, *recipient, *amount, *label)
	if err != nil {
		logger.WithError(err).Error("Invalid payment request")
		flag.Usage()
		return exitError
	}

	endpoint, err := config.ResolveEndpoint(*rpcEndpoint, *cluster)
	if err != nil {
		logger.WithError(err).Error("Cannot resolve RPC endpoint")
		return exitError
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if *metricsAddr != "" {
		go observability.Serve(ctx, *metricsAddr, logger)
	}

	rpc := solana.NewHTTPClient(endpoint, solana.WithTimeout(*timeout))
	client := ledger.New(rpc, ledger.Options{
		Cache:  cache.New(cache.Options{}),
		Logger: logger,
	})
	poller := confirmation.NewPoller(client, confirmation.Options{Logger: logger})

	fmt.Printf("Payment link: %s\n", req.URL())
	fmt.Printf("Waiting for %s SOL to %s on %s\n", req.Amount, req.Recipient, endpoint)

	watch, err := poller.Watch(ctx, req.Expectation())
	if err != nil {
		logger.WithError(err).Error("Cannot start watch")
		return exitError
	}

	return report(ctx, watch, *cluster, logger)
}

// paymentRequest builds the request from -link or from the individual flags.
func paymentRequest(link, recipient, amount, label string) (*paylink.Request, error) {
	if link != "" {
		req, err := paylink.Parse(link)
		if err != nil {
			return nil, err
		}
		req.CreatedAt = time.Now()
		return req, nil
	}

	if recipient == "" || amount == "" {
		return nil, fmt.Errorf("-recipient and -amount are required")
	}
	sol, err := decimal.NewFromString(amount)
	if err != nil {
		return nil, &domain.ValidationError{Field: "amount", Value: amount, Err: err}
	}
	return paylink.NewRequest(recipient, sol, label, time.Now())
}

// report prints watch events until the watch ends and maps the outcome to an
// exit code.
func report(ctx context.Context, watch *confirmation.Watch, cluster string, logger logrus.FieldLogger) int {
	for ev := range watch.Events() {
		switch ev.State {
		case domain.PollPending:
			fmt.Printf("Check %d: payment not detected yet\n", ev.CheckCount)
		case domain.PollConfirmed:
			fmt.Printf("Payment confirmed from %s\n", ev.PayerAddress)
			fmt.Printf("Transaction: %s\n", paylink.ExplorerURL(ev.Signature, cluster))
			return exitConfirmed
		case domain.PollExhausted:
			if ev.Err != nil {
				logger.WithError(ev.Err).Warn("Stopped checking after a ledger error")
			}
			fmt.Println("Payment not detected yet. Funds may still arrive; check the recipient wallet later.")
			return exitExhausted
		}
	}

	// Events closed without a terminal state: the watch was cancelled.
	watch.Cancel()
	if ctx.Err() != nil {
		fmt.Println("Interrupted")
	}
	return exitInterrupted
}
