package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

const worldBankSource = "WorldBank"

// WorldBankClient fetches macro indicators (PPP, GDP per capita) from the
// World Bank open data API.
type WorldBankClient struct {
	httpClient *http.Client
	baseURL    string // overridable for tests
}

// NewWorldBankClient creates a new World Bank indicator client.
func NewWorldBankClient(httpClient *http.Client) *WorldBankClient {
	return &WorldBankClient{
		httpClient: httpClient,
		baseURL:    "https://api.worldbank.org/v2",
	}
}

type worldBankEntry struct {
	Date  string   `json:"date"`
	Value *float64 `json:"value"`
}

// Indicator returns a fetch function for the most recent non-empty value of
// one indicator in one country, e.g. ("ARG", "PA.NUS.PPP").
func (c *WorldBankClient) Indicator(country, indicator string) FetchFunc {
	return func(ctx context.Context) (*FetchResult, error) {
		url := fmt.Sprintf("%s/country/%s/indicator/%s?format=json&per_page=1&mrnev=1",
			c.baseURL, country, indicator)
		body, _, err := getJSON(ctx, c.httpClient, url)
		if err != nil {
			return nil, fmt.Errorf("worldbank %s/%s: %w", country, indicator, err)
		}

		// The API wraps results as [metadata, entries].
		var raw []json.RawMessage
		if err := json.Unmarshal(body, &raw); err != nil {
			return nil, fmt.Errorf("decoding worldbank %s/%s: %w", country, indicator, err)
		}
		if len(raw) < 2 {
			return &FetchResult{Source: worldBankSource}, nil
		}

		var entries []worldBankEntry
		if err := json.Unmarshal(raw[1], &entries); err != nil {
			return nil, fmt.Errorf("decoding worldbank %s/%s entries: %w", country, indicator, err)
		}
		if len(entries) == 0 || entries[0].Value == nil {
			return &FetchResult{
				Source: worldBankSource,
				Params: map[string]any{"country": country, "indicator": indicator},
			}, nil
		}

		return &FetchResult{
			Value:  entries[0].Value,
			Source: worldBankSource,
			Params: map[string]any{"country": country, "indicator": indicator, "year": entries[0].Date},
		}, nil
	}
}
