package export

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/toricodesthings/document-verification-service/internal/similarity"
	"github.com/toricodesthings/document-verification-service/internal/verify"
)

func TestReportXLSX(t *testing.T) {
	report := verify.Report{
		Status: verify.StatusFake,
		Details: []verify.ExtractionResult{
			{Field: "Rent Amount", UserData: "12000", DataFromDocument: "15000", Status: similarity.Mismatch},
			{Field: "Tenant Name", UserData: "-", DataFromDocument: "Priya Sharma", Status: similarity.FoundOnly},
		},
		Analysis: "Analysis for this document type has not been implemented.",
	}
	data, err := ReportXLSX(report, Meta{
		VerificationID: "0d5c6a9e-1111-4c1e-9a44-2f6f1c0e9b10",
		DocumentType:   "rental",
		GeneratedAt:    time.Date(2024, 4, 1, 10, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()

	cell := func(ref string) string {
		v, err := f.GetCellValue(Sheet, ref)
		require.NoError(t, err)
		return v
	}
	assert.Equal(t, "0d5c6a9e-1111-4c1e-9a44-2f6f1c0e9b10", cell("B1"))
	assert.Equal(t, "Fake", cell("B3"))
	assert.Equal(t, "2024-04-01T10:00:00Z", cell("B4"))
	assert.Equal(t, "Field", cell("A6"))
	assert.Equal(t, "Rent Amount", cell("A7"))
	assert.Equal(t, "❌ Mismatch", cell("D7"))
	assert.Equal(t, "Priya Sharma", cell("C8"))
	assert.Equal(t, "Analysis", cell("A10"))
	assert.Equal(t, report.Analysis, cell("B10"))
}
