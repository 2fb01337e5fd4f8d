// Package export renders payment receipts and balance sheets for download.
// Rendering is a presentation concern layered on top of the ledgers; nothing
// here writes back.
package export

import (
	"bytes"
	"fmt"
	"sort"
	"time"

	"github.com/jung-kurt/gofpdf"
	"github.com/xuri/excelize/v2"

	"parishledger/internal/finance"
	"parishledger/internal/money"
	"parishledger/internal/payment"
	"parishledger/internal/registry"
)

// formatAmount renders minor units with two decimals for documents.
func formatAmount(a money.Amount) string {
	minor := a.Minor
	sign := ""
	if minor < 0 {
		sign = "-"
		minor = -minor
	}
	return fmt.Sprintf("%s%d.%02d %s", sign, minor/100, minor%100, a.Currency)
}

// BuildReceiptPDF renders a payment receipt.
func BuildReceiptPDF(orgName string, rec payment.Record, act registry.Activity, part registry.Participant) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A5", "")
	pdf.SetFont("Arial", "B", 14)
	pdf.AddPage()

	pdf.Cell(0, 8, orgName)
	pdf.Ln(10)
	pdf.SetFont("Arial", "B", 12)
	pdf.Cell(0, 6, fmt.Sprintf("Receipt %s", rec.ReceiptID))
	pdf.Ln(8)

	pdf.SetFont("Arial", "", 10)
	pdf.Cell(0, 6, fmt.Sprintf("Date: %s", rec.PaidAt.Format("2006-01-02 15:04")))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Participant: %s", part.DisplayName))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Activity: %s", act.Title))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Method: %s", rec.Method))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Recorded by: %s", rec.RecordedBy))
	pdf.Ln(8)

	pdf.SetFont("Arial", "B", 12)
	pdf.Cell(0, 8, fmt.Sprintf("Amount: %s", formatAmount(rec.Amount)))
	if act.RequiredAmount != nil {
		pdf.Ln(6)
		pdf.SetFont("Arial", "", 10)
		pdf.Cell(0, 6, fmt.Sprintf("Required for activity: %s", formatAmount(*act.RequiredAmount)))
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// BuildBalanceXLSX renders the per-currency balance sheet for a period.
func BuildBalanceXLSX(periodStart, periodEnd time.Time, lines map[money.Currency]finance.Totals) ([]byte, error) {
	f := excelize.NewFile()
	sheet := "balance"
	f.SetSheetName("Sheet1", sheet)

	_ = f.SetCellValue(sheet, "A1", "Balance Sheet")
	_ = f.SetCellValue(sheet, "A2", "Period")
	_ = f.SetCellValue(sheet, "B2", fmt.Sprintf("%s to %s", periodStart.Format("2006-01-02"), periodEnd.Format("2006-01-02")))

	_ = f.SetCellValue(sheet, "A4", "Currency")
	_ = f.SetCellValue(sheet, "B4", "Income")
	_ = f.SetCellValue(sheet, "C4", "Expense")
	_ = f.SetCellValue(sheet, "D4", "Balance")

	currencies := make([]money.Currency, 0, len(lines))
	for cur := range lines {
		currencies = append(currencies, cur)
	}
	sort.Slice(currencies, func(i, j int) bool { return currencies[i] < currencies[j] })

	for i, cur := range currencies {
		row := i + 5
		totals := lines[cur]
		_ = f.SetCellValue(sheet, fmt.Sprintf("A%d", row), string(cur))
		_ = f.SetCellValue(sheet, fmt.Sprintf("B%d", row), formatAmount(totals.Income))
		_ = f.SetCellValue(sheet, fmt.Sprintf("C%d", row), formatAmount(totals.Expense))
		_ = f.SetCellValue(sheet, fmt.Sprintf("D%d", row), formatAmount(totals.Balance))
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
