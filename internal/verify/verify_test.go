package verify

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/toricodesthings/document-verification-service/internal/fields"
	"github.com/toricodesthings/document-verification-service/internal/layout"
	"github.com/toricodesthings/document-verification-service/internal/similarity"
)

const leaseText = `RENTAL AGREEMENT
This Rental Agreement is made between Ravi Kumar and Priya Sharma on 01-04-2024.
Landlord Name: Ravi Kumar
Tenant Name: Priya Sharma
The tenancy shall commence from 01/04/2024 and remain valid till 31/03/2025.
Monthly Rent: Rs. 15,000 payable on or before the 5th.
Flat 4B, Green Residency,
Anna Nagar, Chennai 600040`

// pagesOf lays each line of each text out as one token, top to bottom.
func pagesOf(texts ...string) []layout.Page {
	pages := make([]layout.Page, len(texts))
	for i, txt := range texts {
		pages[i] = layout.Page{Number: i + 1}
		for n, line := range strings.Split(txt, "\n") {
			pages[i].Tokens = append(pages[i].Tokens, layout.Token{
				Text: line, X: 0, Y: float64(800 - 20*n), Page: i + 1,
			})
		}
	}
	return pages
}

func newService(t *testing.T) *Service {
	t.Helper()
	reg, err := fields.DefaultRegistry(fields.Options{})
	require.NoError(t, err)
	return NewService(reg,
		WithScorer(similarity.NewScorer(similarity.DefaultMatchThreshold)),
		WithPageWorkers(2),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)
}

func detail(t *testing.T, r Result, field string) ExtractionResult {
	t.Helper()
	for _, d := range r.Report.Details {
		if d.Field == field {
			return d
		}
	}
	t.Fatalf("no detail for %q", field)
	return ExtractionResult{}
}

func TestLabelledTenantMatches(t *testing.T) {
	res, err := newService(t).Verify(context.Background(),
		Request{DocumentType: "rental", Fields: map[string]string{"tenantName": "John Smith"}},
		pagesOf("Tenant Name: John Smith"))
	require.NoError(t, err)

	assert.Equal(t, ExtractionResult{
		Field:            "Tenant Name",
		UserData:         "John Smith",
		DataFromDocument: "John Smith",
		Status:           similarity.Match,
	}, detail(t, res, "Tenant Name"))
	assert.Equal(t, StatusOriginal, res.Report.Status)
}

func TestMissingRentWithUserValueIsFake(t *testing.T) {
	res, err := newService(t).Verify(context.Background(),
		Request{DocumentType: "rental", Fields: map[string]string{"rentAmount": "15000"}},
		pagesOf("Tenant Name: John Smith"))
	require.NoError(t, err)

	d := detail(t, res, "Rent Amount")
	assert.Equal(t, "15000", d.UserData)
	assert.Equal(t, Missing, d.DataFromDocument)
	assert.Equal(t, similarity.NotFound, d.Status)
	assert.Equal(t, StatusFake, res.Report.Status)
}

func TestRentFoundWithoutUserValue(t *testing.T) {
	res, err := newService(t).Verify(context.Background(),
		Request{DocumentType: "rental"},
		pagesOf("Rent: Rs 15000"))
	require.NoError(t, err)

	d := detail(t, res, "Rent Amount")
	assert.Equal(t, Missing, d.UserData)
	assert.Equal(t, "15000", d.DataFromDocument)
	assert.Equal(t, similarity.FoundOnly, d.Status)
	assert.Equal(t, StatusOriginal, res.Report.Status, "found-only and unchecked fields do not fail")
}

func TestNoTextLayer(t *testing.T) {
	svc := newService(t)
	for name, pages := range map[string][]layout.Page{
		"no pages":    nil,
		"empty pages": {{Number: 1}, {Number: 2, Tokens: []layout.Token{{Text: "  ", Y: 10}}}},
	} {
		t.Run(name, func(t *testing.T) {
			res, err := svc.Verify(context.Background(), Request{DocumentType: "rental"}, pages)
			assert.ErrorIs(t, err, ErrNoTextLayer)
			assert.Nil(t, res.Report.Details)
		})
	}
}

func TestFullLease(t *testing.T) {
	user := map[string]string{
		"rentAmount":       "15,000",
		"startDate":        "01/04/2024",
		"endDate":          "31-03-2025",
		"tenantName":       "priya sharma",
		"landlordName":     "Ravi Kumar",
		"propertyLocation": "Flat 4B, Green Residency, Anna Nagar, Chennai 600040",
	}
	svc := newService(t)

	res, err := svc.Verify(context.Background(), Request{DocumentType: "rental", Fields: user}, pagesOf(leaseText))
	require.NoError(t, err)

	want := []ExtractionResult{
		{"Rent Amount", "15,000", "15000", similarity.Match},
		{"Start Date", "01/04/2024", "01/04/2024", similarity.Match},
		{"End Date", "31-03-2025", "31/03/2025", similarity.Match},
		{"Tenant Name", "priya sharma", "Priya Sharma", similarity.Match},
		{"Landlord Name", "Ravi Kumar", "Ravi Kumar", similarity.Match},
		{"Property Location", user["propertyLocation"], "Flat 4B, Green Residency, Anna Nagar, Chennai 600040", similarity.Match},
	}
	if diff := cmp.Diff(want, res.Report.Details); diff != "" {
		t.Fatalf("details mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, StatusOriginal, res.Report.Status)
	assert.Equal(t, "rental", res.DocumentType)
	require.Len(t, res.Pages, 1)

	assert.Equal(t, "This appears to be a rental agreement between the landlord, Ravi Kumar, and the tenant, Priya Sharma. "+
		"The agreement, starting on 01/04/2024, is for the property located at Flat 4B, Green Residency, Anna Nagar, Chennai 600040. "+
		"The specified monthly rent is ₹15000. "+
		"The following table breaks down the comparison between the user-provided data and the document's contents.",
		res.Report.Analysis)

	user["tenantName"] = "Someone Else Entirely"
	res, err = svc.Verify(context.Background(), Request{DocumentType: "rental", Fields: user}, pagesOf(leaseText))
	require.NoError(t, err)
	assert.Equal(t, similarity.Mismatch, detail(t, res, "Tenant Name").Status)
	assert.Equal(t, StatusFake, res.Report.Status)
}

func TestTextSpansPages(t *testing.T) {
	res, err := newService(t).Verify(context.Background(),
		Request{DocumentType: "rental", Fields: map[string]string{"landlordName": "Ravi Kumar"}},
		pagesOf("Tenant Name: Priya Sharma", "", "Landlord Name: Ravi Kumar"))
	require.NoError(t, err)
	assert.Equal(t, similarity.Match, detail(t, res, "Landlord Name").Status)
	require.Len(t, res.Pages, 3)
	assert.Equal(t, "", res.Pages[1].Text)
}

func TestUnknownTypeUsesDefaultSchema(t *testing.T) {
	res, err := newService(t).Verify(context.Background(),
		Request{DocumentType: "affidavit"}, pagesOf(leaseText))
	require.NoError(t, err)
	assert.Equal(t, "rental", res.DocumentType)
	assert.Len(t, res.Report.Details, 6)
	assert.Equal(t, "Analysis for this document type has not been implemented.", res.Report.Analysis)
}

func TestCancelledRequest(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := newService(t).Verify(ctx, Request{DocumentType: "rental"}, pagesOf(leaseText))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNarrativePlaceholders(t *testing.T) {
	got := Narrative("Rental", []ExtractionResult{
		{Field: "Tenant Name", DataFromDocument: "Priya Sharma"},
		{Field: "Rent Amount", DataFromDocument: Missing},
	})
	assert.Equal(t, "This appears to be a rental agreement between the landlord, [not found], and the tenant, Priya Sharma. "+
		"The agreement, starting on [not found], is for the property located at [not found]. "+
		"The specified monthly rent is [not specified]. "+
		"The following table breaks down the comparison between the user-provided data and the document's contents.", got)

	assert.Equal(t, unsupportedAnalysis, Narrative("sale", nil))
	assert.Equal(t, unsupportedAnalysis, Narrative("", nil))
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "received", Received.String())
	assert.Equal(t, "reported", Reported.String())
	assert.Equal(t, "state(9)", State(9).String())
}
