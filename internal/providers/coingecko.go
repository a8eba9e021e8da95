package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

const coingeckoSource = "CoinGecko"

// CoinGeckoClient fetches cryptocurrency quotes from the CoinGecko public API.
type CoinGeckoClient struct {
	httpClient *http.Client
	baseURL    string // overridable for tests
}

// NewCoinGeckoClient creates a new CoinGecko quote client.
func NewCoinGeckoClient(httpClient *http.Client) *CoinGeckoClient {
	return &CoinGeckoClient{
		httpClient: httpClient,
		baseURL:    "https://api.coingecko.com/api/v3/simple/price",
	}
}

// SimplePrice returns a fetch function for one coin quoted in one fiat
// currency, e.g. ("bitcoin", "usd").
func (c *CoinGeckoClient) SimplePrice(coinID, vsCurrency string) FetchFunc {
	coinID = strings.ToLower(coinID)
	vsCurrency = strings.ToLower(vsCurrency)
	return func(ctx context.Context) (*FetchResult, error) {
		url := fmt.Sprintf("%s?ids=%s&vs_currencies=%s", c.baseURL, coinID, vsCurrency)
		body, _, err := getJSON(ctx, c.httpClient, url)
		if err != nil {
			return nil, fmt.Errorf("coingecko %s: %w", coinID, err)
		}

		var resp map[string]map[string]float64
		if err := json.Unmarshal(body, &resp); err != nil {
			return nil, fmt.Errorf("decoding coingecko %s: %w", coinID, err)
		}

		quote, ok := resp[coinID][vsCurrency]
		if !ok {
			// Unknown coin IDs come back as an empty object, not an error.
			return &FetchResult{
				Source: coingeckoSource,
				Params: map[string]any{"coin": coinID, "vs": vsCurrency},
			}, nil
		}

		return &FetchResult{
			Value:  Float(quote),
			Source: coingeckoSource,
			Params: map[string]any{"coin": coinID, "vs": vsCurrency},
		}, nil
	}
}
