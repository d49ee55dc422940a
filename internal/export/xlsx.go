package export

import (
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/toricodesthings/document-verification-service/internal/verify"
)

const Sheet = "Verification"

// Meta identifies the verification run a workbook belongs to.
type Meta struct {
	VerificationID string
	DocumentType   string
	GeneratedAt    time.Time
}

// ReportXLSX renders a verification report as a single-sheet workbook: a
// summary block, the per-field comparison table and the analysis text.
func ReportXLSX(r verify.Report, meta Meta) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", Sheet); err != nil {
		return nil, fmt.Errorf("xlsx sheet: %w", err)
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, fmt.Errorf("xlsx style: %w", err)
	}

	write := func(col, row int, v any) {
		cell, _ := excelize.CoordinatesToCellName(col, row)
		_ = f.SetCellValue(Sheet, cell, v)
	}

	generated := meta.GeneratedAt
	if generated.IsZero() {
		generated = time.Now()
	}
	summary := [][2]string{
		{"Verification ID", meta.VerificationID},
		{"Document Type", meta.DocumentType},
		{"Status", r.Status},
		{"Generated At", generated.UTC().Format(time.RFC3339)},
	}
	row := 1
	for _, kv := range summary {
		write(1, row, kv[0])
		write(2, row, kv[1])
		row++
	}
	_ = f.SetCellStyle(Sheet, "A1", fmt.Sprintf("A%d", row-1), bold)

	row++
	headerRow := row
	for i, h := range []string{"Field", "User Data", "Data From Document", "Status"} {
		write(i+1, row, h)
	}
	_ = f.SetCellStyle(Sheet, fmt.Sprintf("A%d", headerRow), fmt.Sprintf("D%d", headerRow), bold)
	row++

	for _, d := range r.Details {
		write(1, row, d.Field)
		write(2, row, d.UserData)
		write(3, row, d.DataFromDocument)
		write(4, row, d.Status.String())
		row++
	}

	row++
	write(1, row, "Analysis")
	_ = f.SetCellStyle(Sheet, fmt.Sprintf("A%d", row), fmt.Sprintf("A%d", row), bold)
	write(2, row, r.Analysis)

	_ = f.SetColWidth(Sheet, "A", "A", 20)
	_ = f.SetColWidth(Sheet, "B", "C", 40)
	_ = f.SetColWidth(Sheet, "D", "D", 16)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}
	return buf.Bytes(), nil
}
