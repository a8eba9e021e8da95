package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

const bcraSource = "BCRA"

// BCRAClient fetches principal monetary variables from the Argentine
// central bank's public statistics API.
type BCRAClient struct {
	httpClient *http.Client
	baseURL    string // overridable for tests
}

// NewBCRAClient creates a new central-bank statistics client.
func NewBCRAClient(httpClient *http.Client) *BCRAClient {
	return &BCRAClient{
		httpClient: httpClient,
		baseURL:    "https://api.bcra.gob.ar/estadisticas/v3.0/monetarias",
	}
}

type bcraResponse struct {
	Results []struct {
		Date  string  `json:"fecha"`
		Value float64 `json:"valor"`
	} `json:"results"`
}

// Monetary returns a fetch function for one monetary variable series,
// identified by the BCRA variable ID.
func (c *BCRAClient) Monetary(variableID int) FetchFunc {
	return func(ctx context.Context) (*FetchResult, error) {
		url := fmt.Sprintf("%s/%d?limit=1", c.baseURL, variableID)
		body, _, err := getJSON(ctx, c.httpClient, url)
		if err != nil {
			return nil, fmt.Errorf("bcra variable %d: %w", variableID, err)
		}

		var resp bcraResponse
		if err := json.Unmarshal(body, &resp); err != nil {
			return nil, fmt.Errorf("decoding bcra variable %d: %w", variableID, err)
		}
		if len(resp.Results) == 0 {
			return &FetchResult{Source: bcraSource}, nil
		}

		latest := resp.Results[0]
		return &FetchResult{
			Value:  Float(latest.Value),
			Source: bcraSource,
			Params: map[string]any{"variable_id": variableID, "date": latest.Date},
		}, nil
	}
}
