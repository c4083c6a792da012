package api

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"

	apperrors "admissions-portal/internal/common/errors"
	"admissions-portal/internal/common/validation"
)

const maxBodyBytes = 1 << 20

const sectionsSchema = `{
	"personalInfo":       {"type": "object"},
	"academicBackground": {"type": "object"},
	"programSelection":   {"type": "object"},
	"accommodation":      {"type": "object"},
	"referee":            {"type": "object"}
}`

var (
	draftRequest = validation.MustDocumentValidator(`{
		"type": "object",
		"required": ["data"],
		"properties": {
			"draftId": {"type": "string"},
			"data": {"type": "object", "properties": ` + sectionsSchema + `, "additionalProperties": false}
		},
		"additionalProperties": false
	}`)

	applicationRequest = validation.MustDocumentValidator(`{
		"type": "object",
		"required": ["data"],
		"properties": {
			"draftId":   {"type": "string"},
			"programId": {"type": "string"},
			"courseId":  {"type": "string"},
			"data": {"type": "object", "properties": ` + sectionsSchema + `, "additionalProperties": false}
		},
		"additionalProperties": false
	}`)

	partialUpdateRequest = validation.MustDocumentValidator(`{
		"type": "object",
		"minProperties": 1,
		"properties": ` + sectionsSchema + `,
		"additionalProperties": false
	}`)

	setFieldRequest = validation.MustDocumentValidator(`{
		"type": "object",
		"required": ["path", "value"],
		"properties": {
			"path":  {"type": "string", "pattern": "^[A-Za-z]+(\\.[A-Za-z0-9]+)+$"},
			"value": {}
		},
		"additionalProperties": false
	}`)

	createSessionRequest = validation.MustDocumentValidator(`{
		"type": "object",
		"properties": {
			"draftId": {"type": "string", "minLength": 1}
		},
		"additionalProperties": false
	}`)

	submitRequest = validation.MustDocumentValidator(`{
		"type": "object",
		"properties": {
			"programId": {"type": "string"},
			"courseId":  {"type": "string"}
		},
		"additionalProperties": false
	}`)
)

// decodeRequest checks the body against doc and decodes it into dst. An empty
// body is treated as {} when allowEmpty is set.
func decodeRequest(w http.ResponseWriter, r *http.Request, doc *validation.DocumentValidator, dst interface{}, allowEmpty bool) error {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		return apperrors.NewInvalidRequestError("request body could not be read")
	}
	if len(strings.TrimSpace(string(body))) == 0 {
		if !allowEmpty {
			return apperrors.NewInvalidRequestError("request body is required")
		}
		body = []byte("{}")
	}

	result, err := doc.ValidateJSON(body)
	if err != nil {
		return apperrors.NewInvalidRequestError("request body is not valid JSON")
	}
	if !result.Valid {
		return apperrors.NewInvalidRequestError(strings.Join(result.GetErrorMessages(), "; ")).
			WithMetadata("errors", result.Errors)
	}

	if err := json.Unmarshal(body, dst); err != nil {
		return apperrors.NewInvalidRequestError(err.Error())
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
