package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
)

const twelveDataSource = "TwelveData"

// TwelveDataClient fetches stock and bond quotes from the Twelve Data API.
// The API authenticates with a key that can expire; an expired key is
// surfaced as a token-expired sentinel result rather than an error.
type TwelveDataClient struct {
	httpClient *http.Client
	baseURL    string // overridable for tests
	apiKey     string
}

// NewTwelveDataClient creates a new Twelve Data quote client.
func NewTwelveDataClient(httpClient *http.Client, apiKey string) *TwelveDataClient {
	return &TwelveDataClient{
		httpClient: httpClient,
		baseURL:    "https://api.twelvedata.com",
		apiKey:     apiKey,
	}
}

type twelveDataPriceResponse struct {
	Price   string `json:"price"`
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Price returns a fetch function for one symbol's latest quote.
func (c *TwelveDataClient) Price(symbol string) FetchFunc {
	return func(ctx context.Context) (*FetchResult, error) {
		url := fmt.Sprintf("%s/price?symbol=%s&apikey=%s", c.baseURL, symbol, c.apiKey)
		body, status, err := getJSON(ctx, c.httpClient, url)
		if status == http.StatusUnauthorized {
			return &FetchResult{
				Source:       twelveDataSource,
				Params:       map[string]any{"symbol": symbol},
				TokenExpired: true,
			}, nil
		}
		if err != nil {
			return nil, fmt.Errorf("twelvedata %s: %w", symbol, err)
		}

		var resp twelveDataPriceResponse
		if err := json.Unmarshal(body, &resp); err != nil {
			return nil, fmt.Errorf("decoding twelvedata %s: %w", symbol, err)
		}
		// Twelve Data reports auth failures inside a 200 body as well.
		if resp.Code == http.StatusUnauthorized {
			return &FetchResult{
				Source:       twelveDataSource,
				Params:       map[string]any{"symbol": symbol},
				TokenExpired: true,
			}, nil
		}
		if resp.Code != 0 {
			return nil, fmt.Errorf("twelvedata %s: api error %d: %s", symbol, resp.Code, resp.Message)
		}

		price, err := strconv.ParseFloat(resp.Price, 64)
		if err != nil {
			return nil, fmt.Errorf("twelvedata %s: invalid price %q", symbol, resp.Price)
		}

		return &FetchResult{
			Value:  Float(price),
			Source: twelveDataSource,
			Params: map[string]any{"symbol": symbol},
		}, nil
	}
}
