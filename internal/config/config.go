// Package config loads process settings shared by the command line tools.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/sirupsen/logrus"

	"solana-tap-to-pay/internal/solana"
)

// Environment variables read by the CLIs.
const (
	EnvRPCEndpoint = "SOLANA_RPC_ENDPOINT"
	EnvCluster     = "SOLANA_CLUSTER"
	EnvLogLevel    = "LOG_LEVEL"
	EnvMetricsAddr = "METRICS_ADDR"
)

// DefaultCluster is used when neither an endpoint nor a cluster is given.
const DefaultCluster = "devnet"

// LoadEnvFile sets variables from a KEY=VALUE file. Variables already set in
// the environment are not overridden. A missing file is not an error.
func LoadEnvFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read env file: %w", err)
	}

	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(strings.TrimPrefix(key, "export "))
		value = strings.Trim(strings.TrimSpace(value), `"'`)

		// Don't override existing env vars
		if os.Getenv(key) == "" {
			if err := os.Setenv(key, value); err != nil {
				return fmt.Errorf("set %s: %w", key, err)
			}
		}
	}
	return nil
}

// EnvOr returns the value of key, or def when it is unset or empty.
func EnvOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// ResolveEndpoint picks the RPC endpoint: an explicit endpoint wins,
// otherwise the public endpoint of cluster (default devnet).
func ResolveEndpoint(endpoint, cluster string) (string, error) {
	if endpoint != "" {
		return endpoint, nil
	}
	if cluster == "" {
		cluster = DefaultCluster
	}
	return solana.ClusterEndpoint(cluster)
}

// NewLogger builds a logger at the given level, text or JSON formatted.
func NewLogger(level string, json bool) (*logrus.Logger, error) {
	logger := logrus.New()
	logger.SetOutput(os.Stderr)

	if level == "" {
		level = "info"
	}
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}
	logger.SetLevel(lvl)

	if json {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return logger, nil
}
