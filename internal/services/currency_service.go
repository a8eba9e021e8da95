package services

import (
	"context"
	"errors"
	"strings"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	apperrors "ahorrito/internal/errors"
	"ahorrito/internal/logger"
	"ahorrito/internal/models"
	"ahorrito/internal/providers"
)

// rateBaseCurrency is the common base every stored rate is expressed
// against: Currency.Rate is units per one USD.
const rateBaseCurrency = "USD"

// currencyService converts amounts using the stored rate table.
type currencyService struct {
	db    *gorm.DB
	forex *providers.FrankfurterClient
}

// NewCurrencyService creates a new CurrencyServicer. The forex client may be
// nil for callers that only convert and never refresh.
func NewCurrencyService(db *gorm.DB, forex *providers.FrankfurterClient) CurrencyServicer {
	return &currencyService{db: db, forex: forex}
}

// GetRate returns the conversion rate from one currency to another, rounded
// to 6 decimals. Identity conversions return exactly 1.0. Unknown codes fail
// with ErrCurrencyNotFound; there is no silent default and no implicit
// refresh of the rate table.
func (s *currencyService) GetRate(from, to string) (float64, error) {
	from = strings.ToUpper(strings.TrimSpace(from))
	to = strings.ToUpper(strings.TrimSpace(to))
	if from == to {
		return 1.0, nil
	}

	fromRate, err := s.storedRate(from)
	if err != nil {
		return 0, err
	}
	toRate, err := s.storedRate(to)
	if err != nil {
		return 0, err
	}

	rate := decimal.NewFromFloat(toRate).
		Div(decimal.NewFromFloat(fromRate)).
		Round(6)
	result, _ := rate.Float64()
	return result, nil
}

// Convert converts an amount between currencies using GetRate.
func (s *currencyService) Convert(amount float64, from, to string) (float64, error) {
	rate, err := s.GetRate(from, to)
	if err != nil {
		return 0, err
	}
	return amount * rate, nil
}

// RefreshRates updates the exchange rate table from the forex provider and
// returns the number of currencies written. This is the only network path
// of the converter and is driven by the refresh-rates job.
func (s *currencyService) RefreshRates(ctx context.Context) (int, error) {
	rates, err := s.forex.Latest(ctx, rateBaseCurrency)
	if err != nil {
		return 0, apperrors.Wrap(apperrors.ErrUpstreamFetch, err)
	}

	updated := 0
	for code, rate := range rates {
		if rate <= 0 {
			logger.Get().Warnw("skipping non-positive exchange rate", "code", code, "rate", rate)
			continue
		}

		var currency models.Currency
		err := s.db.Where("code = ?", code).First(&currency).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			currency = models.Currency{Code: code, Rate: rate, Source: s.forex.Source()}
			if err := s.db.Create(&currency).Error; err != nil {
				return updated, apperrors.Wrap(apperrors.ErrInternalServer, err)
			}
		case err != nil:
			return updated, apperrors.Wrap(apperrors.ErrInternalServer, err)
		default:
			if err := s.db.Model(&currency).
				Updates(map[string]any{"rate": rate, "source": s.forex.Source()}).Error; err != nil {
				return updated, apperrors.Wrap(apperrors.ErrInternalServer, err)
			}
		}
		updated++
	}
	return updated, nil
}

// storedRate looks up one currency's rate relative to the base.
func (s *currencyService) storedRate(code string) (float64, error) {
	var currency models.Currency
	if err := s.db.Where("code = ?", code).First(&currency).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, apperrors.WithMessage(apperrors.ErrCurrencyNotFound, "Currency "+code+" not found in rate table")
		}
		return 0, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	if currency.Rate <= 0 {
		return 0, apperrors.WithMessage(apperrors.ErrCurrencyNotFound, "Currency "+code+" has no usable rate")
	}
	return currency.Rate, nil
}
