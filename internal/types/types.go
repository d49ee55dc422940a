package types

import (
	"github.com/toricodesthings/document-verification-service/internal/verify"
)

// VerifyURLRequest asks the service to fetch a PDF from a presigned URL and
// verify it against the supplied field values.
type VerifyURLRequest struct {
	PresignedURL string            `json:"presignedUrl"`
	DocumentType string            `json:"documentType"`
	Fields       map[string]string `json:"fields"`
}

// PageResult is one page of reconstructed text with its quality diagnostics.
type PageResult struct {
	Page       int      `json:"page"`
	Text       string   `json:"text"`
	HTML       string   `json:"html"`
	WordCount  int      `json:"wordCount"`
	Quality    float64  `json:"quality"`
	LowQuality bool     `json:"lowQuality"`
	Reasons    []string `json:"reasons,omitempty"`
}

type VerifyResponse struct {
	Status         string                    `json:"status"`
	VerificationID string                    `json:"verificationId"`
	DocumentType   string                    `json:"documentType"`
	Details        []verify.ExtractionResult `json:"details"`
	Analysis       string                    `json:"analysis"`
	Images         []string                  `json:"images"`
	ExtractedText  []PageResult              `json:"extractedText"`
	TextSource     string                    `json:"textSource"`
}

type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
}
