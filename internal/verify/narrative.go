package verify

import (
	"fmt"
	"strings"
)

const (
	notFound     = "[not found]"
	notSpecified = "[not specified]"

	unsupportedAnalysis = "Analysis for this document type has not been implemented."

	rentalAnalysis = "This appears to be a rental agreement between the landlord, %s, and the tenant, %s. " +
		"The agreement, starting on %s, is for the property located at %s. " +
		"The specified monthly rent is %s. " +
		"The following table breaks down the comparison between the user-provided data and the document's contents."
)

// Narrative summarizes a report for the requested document type. Only rental
// agreements have a narrative.
func Narrative(docType string, details []ExtractionResult) string {
	if strings.ToLower(strings.TrimSpace(docType)) != "rental" {
		return unsupportedAnalysis
	}

	found := func(field, placeholder string) string {
		for _, d := range details {
			if d.Field == field && d.DataFromDocument != Missing {
				return d.DataFromDocument
			}
		}
		return placeholder
	}

	rent := found("Rent Amount", "")
	if rent == "" {
		rent = notSpecified
	} else {
		rent = "₹" + rent
	}
	return fmt.Sprintf(rentalAnalysis,
		found("Landlord Name", notFound),
		found("Tenant Name", notFound),
		found("Start Date", notFound),
		found("Property Location", notFound),
		rent,
	)
}
