package types

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

const verifyRequestSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "properties": {
    "presignedUrl": {"type": "string", "maxLength": 2048},
    "documentType": {"type": "string", "maxLength": 64, "pattern": "^[A-Za-z0-9_-]*$"},
    "fields": {
      "type": "object",
      "maxProperties": 32,
      "propertyNames": {"pattern": "^[A-Za-z][A-Za-z0-9_]{0,63}$"},
      "additionalProperties": {"type": "string", "maxLength": 512}
    }
  },
  "additionalProperties": false
}`

var verifySchema = jsonschema.MustCompileString("verify-request.json", verifyRequestSchema)

// ValidateVerifyInput checks a decoded JSON value (maps, slices, strings)
// against the verification request schema.
func ValidateVerifyInput(v any) error {
	if err := verifySchema.Validate(v); err != nil {
		var ve *jsonschema.ValidationError
		if errors.As(err, &ve) {
			return fmt.Errorf("invalid request: %s", leafMessage(ve))
		}
		return fmt.Errorf("invalid request: %w", err)
	}
	return nil
}

// ValidateForm checks multipart form values the same way JSON bodies are
// checked.
func ValidateForm(docType string, fields map[string]string) error {
	f := make(map[string]any, len(fields))
	for k, v := range fields {
		f[k] = v
	}
	return ValidateVerifyInput(map[string]any{"documentType": docType, "fields": f})
}

// DecodeVerifyURLRequest validates raw JSON against the request schema and
// decodes it.
func DecodeVerifyURLRequest(data []byte) (VerifyURLRequest, error) {
	var req VerifyURLRequest

	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return req, fmt.Errorf("invalid JSON: %w", err)
	}
	if err := ValidateVerifyInput(raw); err != nil {
		return req, err
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		return req, fmt.Errorf("invalid JSON: %w", err)
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return req, errors.New("invalid JSON: trailing data")
	}
	if strings.TrimSpace(req.PresignedURL) == "" {
		return req, errors.New("presignedUrl is required")
	}
	return req, nil
}

// leafMessage returns the most specific validation failure.
func leafMessage(ve *jsonschema.ValidationError) string {
	for len(ve.Causes) > 0 {
		ve = ve.Causes[0]
	}
	loc := ve.InstanceLocation
	if loc == "" {
		loc = "/"
	}
	return loc + ": " + ve.Message
}
