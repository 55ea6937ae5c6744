// Package main prints the most recent SOL transfers of an address.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"solana-tap-to-pay/internal/cache"
	"solana-tap-to-pay/internal/config"
	"solana-tap-to-pay/internal/domain"
	"solana-tap-to-pay/internal/history"
	"solana-tap-to-pay/internal/ledger"
	"solana-tap-to-pay/internal/observability"
	"solana-tap-to-pay/internal/paylink"
	"solana-tap-to-pay/internal/solana"
)

func main() {
	// Load .env file if exists
	if err := config.LoadEnvFile(".env"); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	// Parse flags (env vars as defaults)
	address := flag.String("address", "", "Wallet address to list (required)")
	limit := flag.Int("limit", history.DefaultLimit, "Number of recent transactions (3-5)")
	balances := flag.Bool("balances", false, "Also print the SOL balance")
	rpcEndpoint := flag.String("rpc-endpoint", os.Getenv(config.EnvRPCEndpoint), "Solana RPC HTTP endpoint")
	cluster := flag.String("cluster", config.EnvOr(config.EnvCluster, config.DefaultCluster), "Cluster used when no endpoint is set (devnet, testnet, mainnet-beta)")
	logLevel := flag.String("log-level", config.EnvOr(config.EnvLogLevel, "info"), "Log level")
	logJSON := flag.Bool("log-json", false, "Log as JSON")
	metricsAddr := flag.String("metrics-addr", os.Getenv(config.EnvMetricsAddr), "Serve /metrics and /health on this address")

	flag.Parse()

	logger, err := config.NewLogger(*logLevel, *logJSON)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	if *address == "" {
		flag.Usage()
		os.Exit(1)
	}

	endpoint, err := config.ResolveEndpoint(*rpcEndpoint, *cluster)
	if err != nil {
		logger.WithError(err).Fatal("Cannot resolve RPC endpoint")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if *metricsAddr != "" {
		go observability.Serve(ctx, *metricsAddr, logger)
	}

	client := ledger.New(solana.NewHTTPClient(endpoint), ledger.Options{
		Cache:  cache.New(cache.Options{}),
		Logger: logger,
	})
	agg := history.NewAggregator(client, history.Options{Logger: logger})

	if *balances {
		lamports, err := client.GetBalance(ctx, *address)
		if err != nil {
			logger.WithError(err).Fatal("Cannot fetch balance")
		}
		fmt.Printf("Balance: %s SOL\n\n", domain.LamportsToSOL(lamports))
	}

	records, err := agg.ListTransfers(ctx, *address, *limit)
	if err != nil {
		logger.WithError(err).Fatal("Cannot list transfers")
	}

	printTransfers(os.Stdout, records, *cluster)
}

func printTransfers(w io.Writer, records []domain.TransferRecord, cluster string) {
	if len(records) == 0 {
		fmt.Fprintln(w, "No transfers found")
		return
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "TIME\tDIRECTION\tAMOUNT (SOL)\tCOUNTERPARTY\tSTATUS\tEXPLORER")
	for _, rec := range records {
		when := "pending"
		if rec.BlockTime != nil {
			when = rec.BlockTime.Local().Format("2006-01-02 15:04:05")
		}

		direction, counterparty := "out", rec.Receiver
		if rec.IsIncoming {
			direction, counterparty = "in", rec.Sender
		}

		status := "ok"
		if rec.Failed {
			status = "failed"
		}

		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			when, direction, rec.SOL(), counterparty, status,
			paylink.ExplorerURL(rec.Signature, cluster))
	}
	tw.Flush()
}
