package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

const frankfurterSource = "Frankfurter"

// FrankfurterClient fetches fiat exchange rates from the Frankfurter API,
// used by the currency-table refresh job. Rates are quoted against a base
// currency.
type FrankfurterClient struct {
	httpClient *http.Client
	baseURL    string // overridable for tests
}

// NewFrankfurterClient creates a new exchange rate client.
func NewFrankfurterClient(httpClient *http.Client) *FrankfurterClient {
	return &FrankfurterClient{
		httpClient: httpClient,
		baseURL:    "https://api.frankfurter.dev/v1",
	}
}

type frankfurterResponse struct {
	Base  string             `json:"base"`
	Date  string             `json:"date"`
	Rates map[string]float64 `json:"rates"`
}

// Source returns the provider label recorded on refreshed currency rows.
func (c *FrankfurterClient) Source() string { return frankfurterSource }

// Latest fetches the latest rates quoted against the given base currency.
// The returned map includes the base itself at 1.0.
func (c *FrankfurterClient) Latest(ctx context.Context, base string) (map[string]float64, error) {
	base = strings.ToUpper(base)
	url := fmt.Sprintf("%s/latest?base=%s", c.baseURL, base)
	body, _, err := getJSON(ctx, c.httpClient, url)
	if err != nil {
		return nil, fmt.Errorf("frankfurter latest %s: %w", base, err)
	}

	var resp frankfurterResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decoding frankfurter response: %w", err)
	}
	if len(resp.Rates) == 0 {
		return nil, fmt.Errorf("frankfurter returned no rates for base %s", base)
	}

	rates := make(map[string]float64, len(resp.Rates)+1)
	for code, rate := range resp.Rates {
		rates[strings.ToUpper(code)] = rate
	}
	rates[base] = 1.0
	return rates, nil
}
