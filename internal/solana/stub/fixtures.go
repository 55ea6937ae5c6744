package stub

import (
	"bytes"
	"encoding/json"

	"github.com/mr-tron/base58"

	"solana-tap-to-pay/internal/solana"
)

// Address returns a deterministic, well-formed address for tests.
func Address(n byte) string {
	return base58.Encode(bytes.Repeat([]byte{n + 1}, solana.AddressLength))
}

// Signature returns a deterministic, well-formed signature for tests.
func Signature(n byte) string {
	return base58.Encode(bytes.Repeat([]byte{n + 1}, solana.SignatureLength))
}

// Transfer describes one System Program transfer instruction.
type Transfer struct {
	From     string
	To       string
	Lamports uint64
}

// TransferTx builds a successful jsonParsed transaction containing the given
// transfers in order. blockTime is Unix seconds; zero leaves it unset.
func TransferTx(signature string, blockTime int64, transfers ...Transfer) *solana.Transaction {
	tx := &solana.Transaction{
		Slot:      1,
		Signature: signature,
		Meta:      &solana.TransactionMeta{Fee: 5000},
		Message:   &solana.TransactionMessage{},
	}
	if blockTime != 0 {
		bt := blockTime
		tx.BlockTime = &bt
	}

	for _, t := range transfers {
		info, _ := json.Marshal(solana.TransferInfo{
			Source:      t.From,
			Destination: t.To,
			Lamports:    t.Lamports,
		})
		tx.Message.AccountKeys = append(tx.Message.AccountKeys, t.From, t.To)
		tx.Message.Instructions = append(tx.Message.Instructions, solana.Instruction{
			Program:   "system",
			ProgramID: solana.SystemProgramID,
			Parsed:    &solana.ParsedInstruction{Type: "transfer", Info: info},
		})
	}
	return tx
}
