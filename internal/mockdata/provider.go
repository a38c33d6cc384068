// Package mockdata serves a fixed sample of mandi prices for development and as
// the last fallback when live portals are unavailable.
package mockdata

import (
	"strings"
	"time"

	"mandi-price-api/internal/models"
)

type entry struct {
	crop, market, district, state string
	min, max, modal               float64
}

// Sample prices per quintal. Read-only, shared by all callers.
var catalog = []entry{
	{"Wheat", "Azadpur Mandi", "North Delhi", "Delhi", 2100, 2300, 2200},
	{"Rice", "Azadpur Mandi", "North Delhi", "Delhi", 1800, 2000, 1900},
	{"Tomato", "Azadpur Mandi", "North Delhi", "Delhi", 1200, 1500, 1350},
	{"Potato", "Azadpur Mandi", "North Delhi", "Delhi", 800, 1000, 900},
	{"Onion", "Azadpur Mandi", "North Delhi", "Delhi", 1500, 1800, 1650},
	{"Wheat", "Khanna Mandi", "Ludhiana", "Punjab", 2050, 2250, 2150},
	{"Rice", "Khanna Mandi", "Ludhiana", "Punjab", 1750, 1950, 1850},
	{"Cotton", "Yavatmal Mandi", "Yavatmal", "Maharashtra", 5500, 6000, 5750},
	{"Sugarcane", "Kolhapur Mandi", "Kolhapur", "Maharashtra", 280, 320, 300},
	{"Turmeric", "Erode Mandi", "Erode", "Tamil Nadu", 12000, 14000, 13000},
}

type Provider struct {
	now func() time.Time
}

func NewProvider() *Provider {
	return &Provider{now: time.Now}
}

// Prices returns the catalog entries matching state and, when non-empty, district
// and crop (all case-insensitive), stamped with priceDate or today when zero.
// No match is an empty slice, not an error.
func (p *Provider) Prices(state, district, crop string, priceDate time.Time) ([]models.PriceRecord, error) {
	if priceDate.IsZero() {
		priceDate = p.now()
	}
	date := models.NewDate(priceDate)

	prices := make([]models.PriceRecord, 0)
	for _, e := range catalog {
		if !strings.EqualFold(e.state, strings.TrimSpace(state)) {
			continue
		}
		if district != "" && !strings.EqualFold(e.district, strings.TrimSpace(district)) {
			continue
		}
		if crop != "" && !strings.EqualFold(e.crop, strings.TrimSpace(crop)) {
			continue
		}

		rec, err := models.NewPriceRecord(models.PriceRecord{
			CropName:   e.crop,
			MinPrice:   e.min,
			MaxPrice:   e.max,
			ModalPrice: e.modal,
			MarketName: e.market,
			District:   e.district,
			State:      e.state,
			PriceDate:  date,
		})
		if err != nil {
			return nil, err
		}
		prices = append(prices, rec)
	}
	return prices, nil
}

// States lists the states present in the sample catalog, in catalog order.
func States() []string {
	seen := make(map[string]bool)
	var states []string
	for _, e := range catalog {
		if !seen[e.state] {
			seen[e.state] = true
			states = append(states, e.state)
		}
	}
	return states
}
