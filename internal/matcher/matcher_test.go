package matcher

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solana-tap-to-pay/internal/domain"
	"solana-tap-to-pay/internal/solana"
	"solana-tap-to-pay/internal/solana/stub"
)

var now = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func expectation(amount string) domain.PaymentExpectation {
	return domain.PaymentExpectation{
		Recipient: stub.Address(2),
		Amount:    decimal.RequireFromString(amount),
		CreatedAt: now.Add(-time.Minute),
	}
}

func TestMatch_Tolerance(t *testing.T) {
	tests := []struct {
		name     string
		lamports uint64
		want     bool
	}{
		{"exact", 1_000_000_000, true},
		{"within tolerance above", 1_000_050_000, true},
		{"within tolerance below", 999_950_000, true},
		{"at tolerance", 1_000_100_000, false},
		{"outside tolerance", 1_001_000_000, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tx := stub.TransferTx(stub.Signature(1), now.Add(-30*time.Second).Unix(), stub.Transfer{
				From:     stub.Address(1),
				To:       stub.Address(2),
				Lamports: tt.lamports,
			})

			rec, ok := Match(tx, expectation("1.0"), now)
			assert.Equal(t, tt.want, ok)
			if ok {
				assert.Equal(t, stub.Address(1), rec.Sender)
				assert.Equal(t, stub.Signature(1), rec.Signature)
			}
		})
	}
}

func TestMatch_RejectsStaleTransfer(t *testing.T) {
	tx := stub.TransferTx(stub.Signature(1), now.Add(-10*time.Minute).Unix(), stub.Transfer{
		From:     stub.Address(1),
		To:       stub.Address(2),
		Lamports: 1_000_000_000,
	})

	_, ok := Match(tx, expectation("1"), now)
	assert.False(t, ok)

	fresh := stub.TransferTx(stub.Signature(1), now.Add(-5*time.Minute).Unix(), stub.Transfer{
		From:     stub.Address(1),
		To:       stub.Address(2),
		Lamports: 1_000_000_000,
	})
	_, ok = Match(fresh, expectation("1"), now)
	assert.True(t, ok, "boundary of the window is accepted")
}

func TestMatch_NoBlockTime(t *testing.T) {
	tx := stub.TransferTx(stub.Signature(1), 0, stub.Transfer{
		From:     stub.Address(1),
		To:       stub.Address(2),
		Lamports: 1_000_000_000,
	})

	_, ok := Match(tx, expectation("1"), now)
	assert.False(t, ok)

	bt := now.Unix()
	_, ok = Match(WithBlockTime(tx, solana.SignatureInfo{BlockTime: &bt}), expectation("1"), now)
	assert.True(t, ok)
	assert.Nil(t, tx.BlockTime, "input is not mutated")
}

func TestMatch_WrongRecipient(t *testing.T) {
	tx := stub.TransferTx(stub.Signature(1), now.Unix(), stub.Transfer{
		From:     stub.Address(1),
		To:       stub.Address(3),
		Lamports: 1_000_000_000,
	})

	_, ok := Match(tx, expectation("1"), now)
	assert.False(t, ok)
}

func TestMatch_FailedTransaction(t *testing.T) {
	tx := stub.TransferTx(stub.Signature(1), now.Unix(), stub.Transfer{
		From:     stub.Address(1),
		To:       stub.Address(2),
		Lamports: 1_000_000_000,
	})
	tx.Meta.Err = map[string]interface{}{"InstructionError": []interface{}{0, "Custom"}}

	_, ok := Match(tx, expectation("1"), now)
	assert.False(t, ok)
}

func TestMatch_NilTransaction(t *testing.T) {
	_, ok := Match(nil, expectation("1"), now)
	assert.False(t, ok)
}

func TestMatch_AnyInstructionOrder(t *testing.T) {
	payer := stub.Address(7)
	tx := stub.TransferTx(stub.Signature(1), now.Unix(),
		stub.Transfer{From: stub.Address(5), To: stub.Address(6), Lamports: 1_000_000_000},
		stub.Transfer{From: stub.Address(8), To: stub.Address(2), Lamports: 3_000_000_000},
		stub.Transfer{From: payer, To: stub.Address(2), Lamports: 1_000_000_000},
	)

	rec, ok := Match(tx, expectation("1"), now)
	require.True(t, ok)
	assert.Equal(t, payer, rec.Sender)
}

func TestCriteria_Custom(t *testing.T) {
	tx := stub.TransferTx(stub.Signature(1), now.Add(-20*time.Minute).Unix(), stub.Transfer{
		From:     stub.Address(1),
		To:       stub.Address(2),
		Lamports: 1_010_000_000,
	})

	loose := Criteria{Tolerance: decimal.RequireFromString("0.1"), MaxAge: time.Hour}
	_, ok := loose.Match(tx, expectation("1"), now)
	assert.True(t, ok)

	_, ok = DefaultCriteria().Match(tx, expectation("1"), now)
	assert.False(t, ok)
}

func TestTransfers(t *testing.T) {
	owner := stub.Address(2)
	tx := stub.TransferTx(stub.Signature(9), now.Unix(),
		stub.Transfer{From: stub.Address(1), To: owner, Lamports: 250_000_000},
		stub.Transfer{From: owner, To: stub.Address(3), Lamports: 1},
	)
	tx.Message.Instructions = append(tx.Message.Instructions, solana.Instruction{
		Program:   "spl-memo",
		ProgramID: "MemoSq4gqABAXKb96qnH8TysNcWxMyWCqXgDLGmfcHr",
	})

	records := Transfers(tx, owner)
	require.Len(t, records, 2)

	assert.True(t, records[0].IsIncoming)
	assert.Equal(t, "0.25", records[0].SOL().String())
	require.NotNil(t, records[0].BlockTime)
	assert.True(t, records[0].BlockTime.Equal(now))

	assert.False(t, records[1].IsIncoming)
	assert.Equal(t, stub.Signature(9), records[1].Signature)

	assert.Empty(t, Transfers(nil, owner))
}
