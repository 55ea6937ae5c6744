package ledger

import (
	"fmt"

	"solana-tap-to-pay/internal/solana"
)

// Request keys identify logically identical reads. The cache relies on
// identical requests always producing the same key.

func signaturesKey(address string, limit int, commitment solana.Commitment) string {
	return fmt.Sprintf("signatures:%s:limit=%d:commitment=%s", address, limit, commitment)
}

func transactionKey(signature string, commitment solana.Commitment) string {
	return fmt.Sprintf("tx:%s:commitment=%s", signature, commitment)
}

func balanceKey(address string, commitment solana.Commitment) string {
	return fmt.Sprintf("balance:%s:commitment=%s", address, commitment)
}
