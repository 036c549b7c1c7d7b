package controller

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompanyController_Register(t *testing.T) {
	env := newControllerEnv(t)

	w := env.do(t, http.MethodPost, "/companies/register", "", RegisterCompanyRequest{
		LegalName:    "Acme GmbH",
		TaxID:        "DE 136 695 976",
		CountryCode:  "de",
		ContactEmail: "finance@acme.example.com",
		DocumentRefs: []string{"companies/documents/registry.pdf"},
	})
	require.Equal(t, http.StatusCreated, w.Code)

	company := decodeBody(t, w)["company"].(map[string]interface{})
	assert.Equal(t, "approved", company["verification_status"])
	assert.Equal(t, "Acme GmbH", company["legal_name"])
	assert.NotContains(t, company, "tax_id")

	// 같은 세금번호 재등록
	w = env.do(t, http.MethodPost, "/companies/register", "", RegisterCompanyRequest{
		LegalName:    "Acme Holding",
		TaxID:        "DE136695976",
		CountryCode:  "DE",
		ContactEmail: "legal@acme.example.com",
	})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "COMPANY_ALREADY_REGISTERED", decodeBody(t, w)["error"])
}

func TestCompanyController_RegisterValidation(t *testing.T) {
	env := newControllerEnv(t)

	w := env.do(t, http.MethodPost, "/companies/register", "", RegisterCompanyRequest{
		LegalName:   "Acme GmbH",
		TaxID:       "DE136695976",
		CountryCode: "DE",
	})
	require.Equal(t, http.StatusBadRequest, w.Code)

	body := decodeBody(t, w)
	assert.Equal(t, "VALIDATION_INVALID_INPUT", body["error"])
	assert.Contains(t, body["fields"], "contact_email")
}

func TestCompanyController_DocumentUploadURL(t *testing.T) {
	env := newControllerEnv(t)

	tests := []struct {
		name     string
		req      DocumentUploadURLRequest
		wantCode int
		wantErr  string
	}{
		{"pdf", DocumentUploadURLRequest{Filename: "registry.pdf", ContentType: "application/pdf", FileSize: 1024}, http.StatusOK, ""},
		{"executable", DocumentUploadURLRequest{Filename: "setup.exe", ContentType: "application/octet-stream", FileSize: 1024}, http.StatusBadRequest, "UPLOAD_INVALID_FILE_TYPE"},
		{"too large", DocumentUploadURLRequest{Filename: "scan.png", ContentType: "image/png", FileSize: 50 << 20}, http.StatusBadRequest, "UPLOAD_FILE_TOO_LARGE"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.do(t, http.MethodPost, "/companies/documents/presigned-url", "", tt.req)
			assert.Equal(t, tt.wantCode, w.Code)

			body := decodeBody(t, w)
			if tt.wantErr != "" {
				assert.Equal(t, tt.wantErr, body["error"])
				return
			}
			assert.Contains(t, body["key"], "companies/documents/")
			assert.NotEmpty(t, body["upload_url"])
		})
	}
}
