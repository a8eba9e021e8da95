// Package jobs contains the batch entry points run by the jobs binary:
// series refreshes grouped by cadence, exchange rate refresh, and the
// goal/challenge sweeps.
package jobs

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"ahorrito/internal/config"
	"ahorrito/internal/logger"
	"ahorrito/internal/providers"
	"ahorrito/internal/services"
)

// SeriesSpec binds one cached series to its fetcher and TTL policy.
type SeriesSpec struct {
	Name     string
	Type     string
	TTLHours int
	Fetch    providers.FetchFunc
}

// BCRA monetary variable IDs for the headline Argentine indicators.
const (
	bcraVarReservas     = 1
	bcraVarTipoCambio   = 4
	bcraVarInflacion    = 27
	bcraVarTasaPolitica = 6
)

// DailySeries is the daily-cadence batch: central bank indicators.
func DailySeries(cfg *config.Config) []SeriesSpec {
	client := &http.Client{Timeout: cfg.ProviderTimeout}
	bcra := providers.NewBCRAClient(client)

	return []SeriesSpec{
		{Name: "bcra_reservas", Type: "monetary", TTLHours: 24, Fetch: bcra.Monetary(bcraVarReservas)},
		{Name: "bcra_tipo_cambio", Type: "monetary", TTLHours: 24, Fetch: bcra.Monetary(bcraVarTipoCambio)},
		{Name: "bcra_inflacion", Type: "monetary", TTLHours: 24, Fetch: bcra.Monetary(bcraVarInflacion)},
		{Name: "bcra_tasa_politica", Type: "monetary", TTLHours: 24, Fetch: bcra.Monetary(bcraVarTasaPolitica)},
	}
}

// FrequentSeries is the intraday batch: crypto and stock quotes.
func FrequentSeries(cfg *config.Config) []SeriesSpec {
	client := &http.Client{Timeout: cfg.ProviderTimeout}
	crypto := providers.NewCoinGeckoClient(client)
	stocks := providers.NewTwelveDataClient(client, cfg.TwelveDataAPIKey)

	return []SeriesSpec{
		{Name: "crypto_btc_usd", Type: "crypto", TTLHours: 1, Fetch: crypto.SimplePrice("bitcoin", "usd")},
		{Name: "crypto_eth_usd", Type: "crypto", TTLHours: 1, Fetch: crypto.SimplePrice("ethereum", "usd")},
		{Name: "stock_aapl", Type: "stock", TTLHours: 1, Fetch: stocks.Price("AAPL")},
		{Name: "stock_googl", Type: "stock", TTLHours: 1, Fetch: stocks.Price("GOOGL")},
		{Name: "stock_spy", Type: "stock", TTLHours: 1, Fetch: stocks.Price("SPY")},
	}
}

// WeeklySeries is the slow-moving batch: macro indicators.
func WeeklySeries(cfg *config.Config) []SeriesSpec {
	client := &http.Client{Timeout: cfg.ProviderTimeout}
	wb := providers.NewWorldBankClient(client)

	return []SeriesSpec{
		{Name: "wb_ar_gdp", Type: "macro", TTLHours: 168, Fetch: wb.Indicator("AR", "NY.GDP.MKTP.CD")},
		{Name: "wb_ar_inflation", Type: "macro", TTLHours: 168, Fetch: wb.Indicator("AR", "FP.CPI.TOTL.ZG")},
		{Name: "wb_ar_unemployment", Type: "macro", TTLHours: 168, Fetch: wb.Indicator("AR", "SL.UEM.TOTL.ZS")},
		{Name: "wb_ar_ppp", Type: "macro", TTLHours: 168, Fetch: wb.Indicator("AR", "PA.NUS.PPP")},
	}
}

// Refresher runs a batch of series refreshes through the cache, pacing
// requests to stay under upstream rate limits.
type Refresher struct {
	cache   services.SeriesCacheServicer
	limiter *rate.Limiter
	log     *zap.SugaredLogger
}

// NewRefresher creates a Refresher pacing one request per delay.
func NewRefresher(cache services.SeriesCacheServicer, delay time.Duration) *Refresher {
	limit := rate.Inf
	if delay > 0 {
		limit = rate.Every(delay)
	}
	return &Refresher{
		cache:   cache,
		limiter: rate.NewLimiter(limit, 1),
		log:     logger.Named("refresh"),
	}
}

// Run refreshes each series in order. A failing series is logged and
// skipped; its pointer keeps the last known good value. Returns the number
// of series refreshed without error.
func (r *Refresher) Run(ctx context.Context, specs []SeriesSpec, force bool) int {
	refreshed := 0
	for _, spec := range specs {
		if err := r.limiter.Wait(ctx); err != nil {
			r.log.Warnw("refresh batch cancelled", "error", err)
			return refreshed
		}

		pointer, err := r.cache.RememberOrRefresh(ctx, spec.Name, spec.Type, spec.TTLHours, spec.Fetch, force)
		if err != nil {
			r.log.Errorw("series refresh failed", "series", spec.Name, "error", err)
			continue
		}

		r.log.Infow("series refreshed",
			"series", spec.Name,
			"status", pointer.Status,
			"source", pointer.Source,
		)
		refreshed++
	}
	return refreshed
}
