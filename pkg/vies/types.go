package vies

import "time"

// CheckResponse body of GET /ms/{country}/vat/{number}
type CheckResponse struct {
	IsValid     bool   `json:"isValid"`
	RequestDate string `json:"requestDate"`
	UserError   string `json:"userError"`
	Name        string `json:"name"`
	Address     string `json:"address"`
	VATNumber   string `json:"vatNumber"`
}

// Result outcome of a VAT lookup
type Result struct {
	Valid       bool      `json:"valid"`
	CountryCode string    `json:"country_code"`
	VATNumber   string    `json:"vat_number"`
	Name        string    `json:"name,omitempty"`
	Address     string    `json:"address,omitempty"`
	CheckedAt   time.Time `json:"checked_at"`
}

// ErrorResponse represents an error body returned by VIES
type ErrorResponse struct {
	ActionSucceed bool `json:"actionSucceed"`
	ErrorWrappers []struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	} `json:"errorWrappers"`
}
