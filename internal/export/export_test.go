package export

import (
	"bytes"
	"testing"
	"time"

	"parishledger/internal/finance"
	"parishledger/internal/money"
	"parishledger/internal/payment"
	"parishledger/internal/registry"
)

func TestFormatAmount(t *testing.T) {
	cases := []struct {
		amount money.Amount
		want   string
	}{
		{money.New(5000, money.CDF), "50.00 CDF"},
		{money.New(5, money.USD), "0.05 USD"},
		{money.New(-25, money.USD), "-0.25 USD"},
		{money.Zero(money.CDF), "0.00 CDF"},
	}
	for _, tc := range cases {
		if got := formatAmount(tc.amount); got != tc.want {
			t.Fatalf("formatAmount(%v) = %q, want %q", tc.amount, got, tc.want)
		}
	}
}

func TestBuildReceiptPDF(t *testing.T) {
	required := money.New(5000, money.CDF)
	act := registry.Activity{ID: "act-1", Title: "Camp biblique", RequiredAmount: &required, Currency: money.CDF}
	part := registry.Participant{ID: "part-1", DisplayName: "Grace K.", Kind: registry.KindChild}
	rec := payment.Record{
		ReceiptID:     "RC-20250712-0001",
		ActivityID:    "act-1",
		ParticipantID: "part-1",
		Amount:        money.New(2000, money.CDF),
		Method:        payment.MethodCash,
		PaidAt:        time.Date(2025, 7, 12, 10, 0, 0, 0, time.UTC),
		RecordedBy:    "staff-1",
	}

	data, err := BuildReceiptPDF("Paroisse Saint-Esprit", rec, act, part)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if !bytes.HasPrefix(data, []byte("%PDF")) {
		t.Fatal("output is not a PDF")
	}
}

func TestBuildBalanceXLSX(t *testing.T) {
	lines := map[money.Currency]finance.Totals{
		money.CDF: {
			Income:  money.New(10000, money.CDF),
			Expense: money.New(4000, money.CDF),
			Balance: money.New(6000, money.CDF),
		},
		money.USD: {
			Income:  money.New(50, money.USD),
			Expense: money.Zero(money.USD),
			Balance: money.New(50, money.USD),
		},
	}
	data, err := BuildBalanceXLSX(time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC), time.Date(2025, 7, 31, 0, 0, 0, 0, time.UTC), lines)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	// XLSX files are zip archives.
	if !bytes.HasPrefix(data, []byte("PK")) {
		t.Fatal("output is not an XLSX archive")
	}
}
