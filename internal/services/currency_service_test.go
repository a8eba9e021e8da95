package services

import (
	"context"
	"math"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"ahorrito/internal/models"
	"ahorrito/internal/providers"
	"ahorrito/internal/testutil"
)

func TestGetRate(t *testing.T) {
	t.Run("identity", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewCurrencyService(db, nil)

		rate, err := svc.GetRate("USD", "USD")
		testutil.AssertNoError(t, err)
		if rate != 1.0 {
			t.Errorf("expected identity rate 1.0, got %v", rate)
		}

		// Identity holds even for codes missing from the rate table.
		rate, err = svc.GetRate("XYZ", "xyz")
		testutil.AssertNoError(t, err)
		if rate != 1.0 {
			t.Errorf("expected identity rate 1.0 for unknown code, got %v", rate)
		}
	})

	t.Run("cross_rate_six_decimals", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		testutil.CreateTestCurrency(t, db, "USD", 1.0)
		testutil.CreateTestCurrency(t, db, "ARS", 1000.0)
		testutil.CreateTestCurrency(t, db, "EUR", 0.9)
		svc := NewCurrencyService(db, nil)

		rate, err := svc.GetRate("ARS", "EUR")
		testutil.AssertNoError(t, err)
		if rate != 0.0009 {
			t.Errorf("expected ARS->EUR rate 0.0009, got %v", rate)
		}

		// A repeating decimal is rounded to 6 places.
		rate, err = svc.GetRate("EUR", "ARS")
		testutil.AssertNoError(t, err)
		if math.Abs(rate-1111.111111) > 1e-9 {
			t.Errorf("expected EUR->ARS rate 1111.111111, got %v", rate)
		}
	})

	t.Run("inverse_rates_consistent", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		testutil.CreateTestCurrency(t, db, "USD", 1.0)
		testutil.CreateTestCurrency(t, db, "ARS", 1000.0)
		svc := NewCurrencyService(db, nil)

		usdToArs, err := svc.GetRate("USD", "ARS")
		testutil.AssertNoError(t, err)
		arsToUsd, err := svc.GetRate("ARS", "USD")
		testutil.AssertNoError(t, err)

		if math.Abs(usdToArs*arsToUsd-1.0) > 1e-3 {
			t.Errorf("expected inverse rates to multiply to ~1, got %v", usdToArs*arsToUsd)
		}
	})

	t.Run("unknown_code", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		testutil.CreateTestCurrency(t, db, "USD", 1.0)
		svc := NewCurrencyService(db, nil)

		_, err := svc.GetRate("USD", "ARS")
		testutil.AssertAppError(t, err, "CURRENCY_NOT_FOUND")
	})

	t.Run("case_insensitive", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		testutil.CreateTestCurrency(t, db, "USD", 1.0)
		testutil.CreateTestCurrency(t, db, "ARS", 1000.0)
		svc := NewCurrencyService(db, nil)

		rate, err := svc.GetRate(" usd ", "ars")
		testutil.AssertNoError(t, err)
		if rate != 1000.0 {
			t.Errorf("expected rate 1000, got %v", rate)
		}
	})
}

func TestConvert(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.TeardownTestDB(t, db)
	testutil.CreateTestCurrency(t, db, "USD", 1.0)
	testutil.CreateTestCurrency(t, db, "ARS", 1000.0)
	svc := NewCurrencyService(db, nil)

	amount, err := svc.Convert(5, "USD", "ARS")
	testutil.AssertNoError(t, err)
	if amount != 5000 {
		t.Errorf("expected 5000 ARS, got %v", amount)
	}
}

// redirectTransport rewrites every request to the test server, keeping the
// original path and query so the provider client stays untouched.
type redirectTransport struct {
	target string
}

func (rt redirectTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	targetURL, err := url.Parse(rt.target)
	if err != nil {
		return nil, err
	}
	req.URL.Scheme = targetURL.Scheme
	req.URL.Host = targetURL.Host
	return http.DefaultTransport.RoundTrip(req)
}

func TestRefreshRates(t *testing.T) {
	t.Run("creates_and_updates", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"base":"USD","date":"2025-08-29","rates":{"ARS":1350.5,"EUR":0.92,"BRL":5.4}}`))
		}))
		defer server.Close()

		// Existing row gets updated in place.
		testutil.CreateTestCurrency(t, db, "ARS", 900.0)

		forex := providers.NewFrankfurterClient(&http.Client{Transport: redirectTransport{server.URL}})
		svc := NewCurrencyService(db, forex)

		updated, err := svc.RefreshRates(context.Background())
		testutil.AssertNoError(t, err)
		if updated != 4 { // ARS, EUR, BRL plus the USD base at 1.0
			t.Errorf("expected 4 currencies written, got %d", updated)
		}

		var ars models.Currency
		if err := db.Where("code = ?", "ARS").First(&ars).Error; err != nil {
			t.Fatal(err)
		}
		if ars.Rate != 1350.5 {
			t.Errorf("expected ARS rate updated to 1350.5, got %v", ars.Rate)
		}
		if ars.Source != "Frankfurter" {
			t.Errorf("expected source Frankfurter, got %s", ars.Source)
		}
	})

	t.Run("upstream_error", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		}))
		defer server.Close()

		forex := providers.NewFrankfurterClient(&http.Client{Transport: redirectTransport{server.URL}})
		svc := NewCurrencyService(db, forex)

		_, err := svc.RefreshRates(context.Background())
		testutil.AssertAppError(t, err, "UPSTREAM_FETCH_FAILED")
	})
}
