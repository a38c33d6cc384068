package models

import (
	"encoding/json"
	"time"
)

const DefaultUnit = "Quintal"

// PriceRecord is one mandi quotation for a crop on a date, priced per unit (Rs.).
// Build it with NewPriceRecord or ParsePriceRecord so the price invariants hold.
type PriceRecord struct {
	CropName   string  `json:"crop_name" validate:"required"`
	MinPrice   float64 `json:"min_price" validate:"gte=0"`
	MaxPrice   float64 `json:"max_price" validate:"gte=0"`
	ModalPrice float64 `json:"modal_price" validate:"gte=0"`
	MarketName string  `json:"market_name" validate:"required"`
	District   string  `json:"district" validate:"required"`
	State      string  `json:"state" validate:"required"`
	PriceDate  Date    `json:"price_date"`
	Unit       string  `json:"unit"`
}

// PriceFilters are the normalized request filters echoed back in responses.
type PriceFilters struct {
	State    string
	District string
	CropName string
}

type PriceResponse struct {
	Success   bool          `json:"success"`
	Data      []PriceRecord `json:"data"`
	Count     int           `json:"count"`
	State     string        `json:"state"`
	District  *string       `json:"district"`
	CropName  *string       `json:"crop_name"`
	FetchedAt time.Time     `json:"fetched_at"`
	Message   string        `json:"message"`
}

// NewPriceResponse builds the envelope. Success and Count are derived from data.
func NewPriceResponse(data []PriceRecord, filters PriceFilters, fetchedAt time.Time, message string) *PriceResponse {
	if data == nil {
		data = make([]PriceRecord, 0)
	}
	return &PriceResponse{
		Success:   len(data) > 0,
		Data:      data,
		Count:     len(data),
		State:     filters.State,
		District:  optional(filters.District),
		CropName:  optional(filters.CropName),
		FetchedAt: fetchedAt,
		Message:   message,
	}
}

type priceResponseJSON PriceResponse

// MarshalJSON recomputes count so it can never drift from data.
func (r PriceResponse) MarshalJSON() ([]byte, error) {
	out := priceResponseJSON(r)
	if out.Data == nil {
		out.Data = make([]PriceRecord, 0)
	}
	out.Count = len(out.Data)
	return json.Marshal(out)
}

func (r *PriceResponse) UnmarshalJSON(b []byte) error {
	var in priceResponseJSON
	if err := json.Unmarshal(b, &in); err != nil {
		return err
	}
	if in.Data == nil {
		in.Data = make([]PriceRecord, 0)
	}
	in.Count = len(in.Data)
	*r = PriceResponse(in)
	return nil
}

// PriceQuery is the orchestrator input. Nil flags fall back to configured defaults.
type PriceQuery struct {
	State           string
	District        string
	CropName        string
	PriceDate       time.Time // zero means today
	DataSource      string    // empty means the configured default source
	UseMockFallback *bool
	UseMockOnly     *bool
}

// SourceQuery is what a source adapter receives after normalization.
type SourceQuery struct {
	State     string
	District  string
	CropName  string
	PriceDate Date
}

type CropSummary struct {
	CropName    string  `json:"crop_name"`
	Markets     int     `json:"markets"`
	MinModal    float64 `json:"min_modal_price"`
	MaxModal    float64 `json:"max_modal_price"`
	MeanModal   float64 `json:"mean_modal_price"`
	MedianModal float64 `json:"median_modal_price"`
	Unit        string  `json:"unit"`
}

type SummaryResponse struct {
	Success   bool          `json:"success"`
	State     string        `json:"state"`
	District  *string       `json:"district"`
	CropName  *string       `json:"crop_name"`
	Crops     []CropSummary `json:"crops"`
	FetchedAt time.Time     `json:"fetched_at"`
	Message   string        `json:"message"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Code    int    `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
