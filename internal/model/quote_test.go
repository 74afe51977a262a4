package model

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQuoteBreakdown_RatesAreJSONNumbers(t *testing.T) {
	b := QuoteBreakdown{
		DiscountRate: decimal.RequireFromString("0.10"),
		TaxRate:      decimal.RequireFromString("0.1"),
	}

	data, err := json.Marshal(b)
	require.NoError(t, err)

	var raw map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.Equal(t, 0.1, raw["discountRate"])
	assert.Equal(t, 0.1, raw["taxRate"])
}

func TestQuoteRequest_AcceptsNumericAndStringRates(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "Numbers", body: `{"baseItemId":1,"quantity":1,"discountRate":0.05,"taxRate":0.1}`},
		{name: "Strings", body: `{"baseItemId":1,"quantity":1,"discountRate":"0.05","taxRate":"0.1"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var req QuoteRequest
			require.NoError(t, json.Unmarshal([]byte(tt.body), &req))

			assert.True(t, req.DiscountRate.Equal(decimal.RequireFromString("0.05")))
			assert.True(t, req.TaxRate.Equal(decimal.RequireFromString("0.1")))
		})
	}
}
