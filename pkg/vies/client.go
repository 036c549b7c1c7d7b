package vies

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/smartshop/smartshop-backend/pkg/logger"
	"github.com/smartshop/smartshop-backend/pkg/util"
)

// userErrorsUnavailable VIES userError values meaning "try again later"
var userErrorsUnavailable = map[string]bool{
	"MS_UNAVAILABLE":            true,
	"MS_MAX_CONCURRENT_REQ":     true,
	"SERVICE_UNAVAILABLE":       true,
	"TIMEOUT":                   true,
	"GLOBAL_MAX_CONCURRENT_REQ": true,
}

// Client represents a VIES VAT lookup client
type Client struct {
	config     Config
	httpClient *http.Client
}

// NewClient creates a new VIES client with the given configuration
func NewClient(config Config) (*Client, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Client{
		config: config,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
	}, nil
}

// Check looks up a VAT number registered in countryCode.
// The number may carry the country prefix or not.
func (c *Client) Check(ctx context.Context, countryCode, vatNumber string) (*Result, error) {
	prefix := util.VATPrefix(util.NormalizeCountryCode(countryCode))
	if !util.HasVATPattern(prefix) {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedCountry, countryCode)
	}
	number := strings.TrimPrefix(util.NormalizeTaxID(vatNumber), prefix)

	endpoint := fmt.Sprintf("%s/ms/%s/vat/%s",
		strings.TrimRight(c.config.BaseURL, "/"), url.PathEscape(prefix), url.PathEscape(number))

	body, err := c.doRequest(ctx, endpoint)
	if err != nil {
		return nil, err
	}

	var resp CheckResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to unmarshal VIES response: %w", err)
	}
	if userErrorsUnavailable[resp.UserError] {
		return nil, fmt.Errorf("%w: %s", ErrServiceUnavailable, resp.UserError)
	}

	logger.Debug("VIES lookup completed", map[string]interface{}{
		"country_code": prefix,
		"valid":        resp.IsValid,
	})

	return &Result{
		Valid:       resp.IsValid,
		CountryCode: prefix,
		VATNumber:   number,
		Name:        strings.TrimSpace(resp.Name),
		Address:     strings.TrimSpace(resp.Address),
		CheckedAt:   time.Now(),
	}, nil
}

// doRequest performs a GET against VIES and returns the body of a 200 response
func (c *Client) doRequest(ctx context.Context, endpoint string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNetworkError, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var errResp ErrorResponse
		message := string(body)
		if json.Unmarshal(body, &errResp) == nil && len(errResp.ErrorWrappers) > 0 {
			message = errResp.ErrorWrappers[0].Error
		}

		switch {
		case resp.StatusCode == http.StatusBadRequest:
			return nil, fmt.Errorf("%w: %s", ErrInvalidRequest, message)
		case resp.StatusCode >= http.StatusInternalServerError:
			return nil, fmt.Errorf("%w: status %d: %s", ErrServiceUnavailable, resp.StatusCode, message)
		default:
			return nil, fmt.Errorf("unexpected status code: %d, body: %s", resp.StatusCode, message)
		}
	}

	return body, nil
}
