package export

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/smbgAlokk/bharatforce/internal/application/port"
	"github.com/smbgAlokk/bharatforce/internal/domain/entity"
)

const statementSheet = "Settlement"

// StatementWriter renders full and final settlement statements as xlsx workbooks
type StatementWriter struct {
	companyName string
	logger      *zap.Logger
}

// NewStatementWriter creates a new statement writer
func NewStatementWriter(companyName string, logger *zap.Logger) *StatementWriter {
	return &StatementWriter{
		companyName: companyName,
		logger:      logger,
	}
}

// ExportSettlement renders the statement of a settlement record
func (w *StatementWriter) ExportSettlement(rec *entity.Record, settlement *entity.SettlementPayload) ([]byte, error) {
	w.logger.Info("Rendering settlement statement",
		zap.String("record_id", rec.ID),
		zap.Int("components", len(settlement.Components)))

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), statementSheet); err != nil {
		return nil, fmt.Errorf("failed to name sheet: %w", err)
	}

	// Recompute so the document never disagrees with its own lines
	totals := *settlement
	totals.Recalculate()

	// Header block
	w.setCell(f, "A1", "Full and Final Settlement Statement")
	w.setCell(f, "A2", "Company")
	w.setCell(f, "B2", w.companyName)
	w.setCell(f, "A3", "Employee")
	w.setCell(f, "B3", rec.SubjectID)
	w.setCell(f, "A4", "Settlement")
	w.setCell(f, "B4", rec.ID)
	w.setCell(f, "A5", "Status")
	w.setCell(f, "B5", string(rec.Status))
	w.setCell(f, "A6", "Prepared")
	w.setCell(f, "B6", rec.UpdatedAt.Format("2006-01-02"))

	// Component table
	row := 8
	w.setRow(f, row, "Kind", "Component", "Amount")
	for _, c := range totals.Components {
		row++
		w.setRow(f, row, c.Kind, c.Label, c.Amount.StringFixed(2))
	}

	// Totals
	row += 2
	w.setRow(f, row, "", "Total earnings", totals.TotalEarnings.StringFixed(2))
	row++
	w.setRow(f, row, "", "Total deductions", totals.TotalDeductions.StringFixed(2))
	row++
	w.setRow(f, row, "", "Net payable", totals.NetPayable.StringFixed(2))
	row++
	w.setCell(f, cellName("B", row), AmountInWords(totals.NetPayable))

	if settlement.Notes != "" {
		row += 2
		w.setRow(f, row, "Notes", settlement.Notes)
	}

	if err := f.SetColWidth(statementSheet, "A", "A", 14); err != nil {
		w.logger.Warn("Failed to set column width", zap.Error(err))
	}
	if err := f.SetColWidth(statementSheet, "B", "B", 40); err != nil {
		w.logger.Warn("Failed to set column width", zap.Error(err))
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("failed to write workbook: %w", err)
	}

	return buf.Bytes(), nil
}

// setCell sets a cell value in the statement sheet
func (w *StatementWriter) setCell(f *excelize.File, cell, value string) {
	if err := f.SetCellValue(statementSheet, cell, value); err != nil {
		w.logger.Warn("Failed to set cell value",
			zap.String("cell", cell),
			zap.Error(err))
	}
}

func (w *StatementWriter) setRow(f *excelize.File, row int, values ...string) {
	for i, v := range values {
		w.setCell(f, cellName(string(rune('A'+i)), row), v)
	}
}

func cellName(col string, row int) string {
	return fmt.Sprintf("%s%d", col, row)
}

var (
	ones = []string{"", "One", "Two", "Three", "Four", "Five", "Six", "Seven", "Eight", "Nine",
		"Ten", "Eleven", "Twelve", "Thirteen", "Fourteen", "Fifteen", "Sixteen", "Seventeen", "Eighteen", "Nineteen"}
	tens = []string{"", "", "Twenty", "Thirty", "Forty", "Fifty", "Sixty", "Seventy", "Eighty", "Ninety"}
)

// AmountInWords spells a rupee amount with Indian grouping (lakh, crore)
func AmountInWords(amount decimal.Decimal) string {
	prefix := ""
	if amount.IsNegative() {
		prefix = "Minus "
		amount = amount.Neg()
	}

	amount = amount.Round(2)
	rupees := amount.IntPart()
	paise := amount.Sub(decimal.NewFromInt(rupees)).Mul(decimal.NewFromInt(100)).IntPart()

	words := "Zero"
	if rupees > 0 {
		words = integerInWords(rupees)
	}
	result := prefix + "Rupees " + words
	if paise > 0 {
		result += " and " + integerInWords(paise) + " Paise"
	}
	return result + " Only"
}

// integerInWords spells n using crore, lakh, thousand and hundred groups
func integerInWords(n int64) string {
	var parts []string

	if n >= 10000000 {
		parts = append(parts, integerInWords(n/10000000)+" Crore")
		n %= 10000000
	}
	if n >= 100000 {
		parts = append(parts, belowHundred(n/100000)+" Lakh")
		n %= 100000
	}
	if n >= 1000 {
		parts = append(parts, belowHundred(n/1000)+" Thousand")
		n %= 1000
	}
	if n >= 100 {
		parts = append(parts, ones[n/100]+" Hundred")
		n %= 100
	}
	if n > 0 {
		parts = append(parts, belowHundred(n))
	}

	return strings.Join(parts, " ")
}

func belowHundred(n int64) string {
	if n < 20 {
		return ones[n]
	}
	if n%10 == 0 {
		return tens[n/10]
	}
	return tens[n/10] + " " + ones[n%10]
}

// Verify interface compliance
var _ port.StatementExporter = (*StatementWriter)(nil)
