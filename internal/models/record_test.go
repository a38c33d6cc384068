package models

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func wheatRaw() map[string]any {
	return map[string]any{
		"crop_name":   "Wheat",
		"min_price":   2100.0,
		"max_price":   2300.0,
		"modal_price": 2200.0,
		"market_name": "Azadpur Mandi",
		"district":    "North Delhi",
		"state":       "Delhi",
		"price_date":  "2024-01-15",
	}
}

func TestParsePriceRecord_Valid(t *testing.T) {
	rec, err := ParsePriceRecord(wheatRaw())
	require.NoError(t, err)

	assert.Equal(t, "Wheat", rec.CropName)
	assert.Equal(t, 2200.0, rec.ModalPrice)
	assert.Equal(t, DefaultUnit, rec.Unit)
	assert.Equal(t, "2024-01-15", rec.PriceDate.String())
}

func TestParsePriceRecord_Invalid(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(map[string]any)
		wantField string
	}{
		{
			name:      "missing crop name",
			mutate:    func(m map[string]any) { delete(m, "crop_name") },
			wantField: "crop_name",
		},
		{
			name:      "blank state",
			mutate:    func(m map[string]any) { m["state"] = "   " },
			wantField: "state",
		},
		{
			name:      "price not numeric",
			mutate:    func(m map[string]any) { m["min_price"] = "abc" },
			wantField: "min_price",
		},
		{
			name:      "price wrong type",
			mutate:    func(m map[string]any) { m["max_price"] = true },
			wantField: "max_price",
		},
		{
			name:      "negative price",
			mutate:    func(m map[string]any) { m["min_price"] = -1.0 },
			wantField: "min_price",
		},
		{
			name:      "bad date",
			mutate:    func(m map[string]any) { m["price_date"] = "yesterday" },
			wantField: "price_date",
		},
		{
			name: "max below min",
			mutate: func(m map[string]any) {
				m["max_price"] = 2000.0
				m["modal_price"] = 2050.0
			},
			wantField: "max_price",
		},
		{
			name:      "modal above max",
			mutate:    func(m map[string]any) { m["modal_price"] = 2400.0 },
			wantField: "modal_price",
		},
		{
			name:      "modal below min",
			mutate:    func(m map[string]any) { m["modal_price"] = 2000.0 },
			wantField: "modal_price",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw := wheatRaw()
			tt.mutate(raw)

			rec, err := ParsePriceRecord(raw)
			require.Error(t, err)
			assert.Equal(t, PriceRecord{}, rec)

			var verr *DataValidationError
			require.True(t, errors.As(err, &verr), "got %T", err)
			assert.Equal(t, tt.wantField, verr.Field)
		})
	}
}

func TestParsePriceRecord_LooseTypes(t *testing.T) {
	raw := wheatRaw()
	raw["min_price"] = "2,100"
	raw["max_price"] = json.Number("2300")
	raw["modal_price"] = 2200
	raw["price_date"] = "15 Jan 2024"
	raw["unit"] = "Kg"

	rec, err := ParsePriceRecord(raw)
	require.NoError(t, err)
	assert.Equal(t, 2100.0, rec.MinPrice)
	assert.Equal(t, 2300.0, rec.MaxPrice)
	assert.Equal(t, "2024-01-15", rec.PriceDate.String())
	assert.Equal(t, "Kg", rec.Unit)
}

func TestNewPriceRecord_EqualPricesAllowed(t *testing.T) {
	rec, err := NewPriceRecord(PriceRecord{
		CropName: "Onion", MarketName: "Lasalgaon", District: "Nashik", State: "Maharashtra",
		MinPrice: 1500, MaxPrice: 1500, ModalPrice: 1500,
		PriceDate: NewDate(time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)),
	})
	require.NoError(t, err)
	assert.Equal(t, 1500.0, rec.ModalPrice)
	assert.Equal(t, "2024-03-01", rec.PriceDate.String())
}

func TestPriceResponse_CountTracksData(t *testing.T) {
	rec, err := ParsePriceRecord(wheatRaw())
	require.NoError(t, err)

	resp := NewPriceResponse([]PriceRecord{rec}, PriceFilters{State: "Delhi"}, time.Now(), "ok")
	assert.True(t, resp.Success)
	assert.Equal(t, 1, resp.Count)
	assert.Nil(t, resp.District)

	resp.Count = 42
	b, err := json.Marshal(resp)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(b, &decoded))
	assert.Equal(t, 1.0, decoded["count"])
	assert.Nil(t, decoded["district"])
	assert.Equal(t, "2024-01-15", decoded["data"].([]any)[0].(map[string]any)["price_date"])

	var back PriceResponse
	require.NoError(t, json.Unmarshal([]byte(`{"success":true,"data":[],"count":9,"state":"Delhi"}`), &back))
	assert.Equal(t, 0, back.Count)
}

func TestPriceResponse_EmptyDataSerializesAsArray(t *testing.T) {
	resp := NewPriceResponse(nil, PriceFilters{State: "Atlantis", CropName: "Wheat"}, time.Now(), "none")
	assert.False(t, resp.Success)

	b, err := json.Marshal(resp)
	require.NoError(t, err)
	assert.Contains(t, string(b), `"data":[]`)
	assert.Contains(t, string(b), `"crop_name":"Wheat"`)
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(NewNetworkError(SourceAgmarknet, 503, nil)))
	assert.True(t, IsRetryable(NewDataSourceError(SourceEnam, "bad payload", nil)))
	assert.False(t, IsRetryable(&OrchestrationError{Message: "boom"}))
	assert.False(t, IsRetryable(errors.New("plain")))
}
