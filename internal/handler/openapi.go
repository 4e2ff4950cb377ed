package handler

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/kindfund/kindfund/internal/openapi"
	"github.com/kindfund/kindfund/internal/policy"
)

// OpenAPIHandler serves the API description generated from the access
// policy. The document is built once at construction.
type OpenAPIHandler struct {
	body []byte
}

// NewOpenAPIHandler generates and encodes the API description.
func NewOpenAPIHandler(table policy.Table, baseURL, version string) (*OpenAPIHandler, error) {
	doc, err := openapi.Generate(table, baseURL, version)
	if err != nil {
		return nil, err
	}
	body, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode openapi document: %w", err)
	}
	return &OpenAPIHandler{body: body}, nil
}

// ServeSpec writes the API description.
// GET /openapi.json
func (h *OpenAPIHandler) ServeSpec(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "public, max-age=300")
	w.WriteHeader(http.StatusOK)
	w.Write(h.body) //nolint:errcheck
}
