package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// NewPriceRecord validates r and returns the normalized record. Checks run in order:
// required and typed fields, then max_price >= min_price, then
// min_price <= modal_price <= max_price. Nothing partial is returned on failure.
func NewPriceRecord(r PriceRecord) (PriceRecord, error) {
	r.CropName = strings.TrimSpace(r.CropName)
	r.MarketName = strings.TrimSpace(r.MarketName)
	r.District = strings.TrimSpace(r.District)
	r.State = strings.TrimSpace(r.State)
	r.Unit = strings.TrimSpace(r.Unit)
	if r.Unit == "" {
		r.Unit = DefaultUnit
	}

	if err := validate.Struct(r); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			fe := fieldErrs[0]
			return PriceRecord{}, &DataValidationError{Field: fe.Field(), Message: describeTag(fe), Err: err}
		}
		return PriceRecord{}, &DataValidationError{Message: err.Error(), Err: err}
	}
	for _, p := range []struct {
		field string
		v     float64
	}{{"min_price", r.MinPrice}, {"max_price", r.MaxPrice}, {"modal_price", r.ModalPrice}} {
		if math.IsInf(p.v, 0) {
			return PriceRecord{}, &DataValidationError{Field: p.field, Message: "must be a finite number"}
		}
	}
	if r.PriceDate.IsZero() {
		return PriceRecord{}, &DataValidationError{Field: "price_date", Message: "field required"}
	}

	if r.MaxPrice < r.MinPrice {
		return PriceRecord{}, &DataValidationError{Field: "max_price", Message: "max_price must be greater than or equal to min_price"}
	}
	if r.ModalPrice < r.MinPrice || r.ModalPrice > r.MaxPrice {
		return PriceRecord{}, &DataValidationError{Field: "modal_price", Message: "modal_price must be between min_price and max_price"}
	}
	return r, nil
}

func describeTag(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "field required"
	case "gte":
		return "must be greater than or equal to " + fe.Param()
	default:
		return "failed " + fe.Tag() + " check"
	}
}

// ParsePriceRecord builds a record from loosely typed key/value data as scraped
// from a portal. Keys use the JSON field names of PriceRecord; "unit" is optional.
func ParsePriceRecord(raw map[string]any) (PriceRecord, error) {
	var r PriceRecord
	var err error

	if r.CropName, err = rawString(raw, "crop_name"); err != nil {
		return PriceRecord{}, err
	}
	if r.MinPrice, err = rawFloat(raw, "min_price"); err != nil {
		return PriceRecord{}, err
	}
	if r.MaxPrice, err = rawFloat(raw, "max_price"); err != nil {
		return PriceRecord{}, err
	}
	if r.ModalPrice, err = rawFloat(raw, "modal_price"); err != nil {
		return PriceRecord{}, err
	}
	if r.MarketName, err = rawString(raw, "market_name"); err != nil {
		return PriceRecord{}, err
	}
	if r.District, err = rawString(raw, "district"); err != nil {
		return PriceRecord{}, err
	}
	if r.State, err = rawString(raw, "state"); err != nil {
		return PriceRecord{}, err
	}
	if r.PriceDate, err = rawDate(raw, "price_date"); err != nil {
		return PriceRecord{}, err
	}
	if v, ok := raw["unit"]; ok && v != nil {
		s, ok := v.(string)
		if !ok {
			return PriceRecord{}, &DataValidationError{Field: "unit", Message: "must be a string"}
		}
		r.Unit = s
	}

	return NewPriceRecord(r)
}

func rawValue(raw map[string]any, field string) (any, error) {
	v, ok := raw[field]
	if !ok || v == nil {
		return nil, &DataValidationError{Field: field, Message: "field required"}
	}
	return v, nil
}

func rawString(raw map[string]any, field string) (string, error) {
	v, err := rawValue(raw, field)
	if err != nil {
		return "", err
	}
	s, ok := v.(string)
	if !ok {
		return "", &DataValidationError{Field: field, Message: fmt.Sprintf("must be a string, got %T", v)}
	}
	return s, nil
}

func rawFloat(raw map[string]any, field string) (float64, error) {
	v, err := rawValue(raw, field)
	if err != nil {
		return 0, err
	}
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case json.Number:
		f, err := n.Float64()
		if err != nil {
			return 0, &DataValidationError{Field: field, Message: "must be a number", Err: err}
		}
		return f, nil
	case string:
		f, err := strconv.ParseFloat(strings.ReplaceAll(strings.TrimSpace(n), ",", ""), 64)
		if err != nil {
			return 0, &DataValidationError{Field: field, Message: fmt.Sprintf("must be a number, got %q", n), Err: err}
		}
		return f, nil
	default:
		return 0, &DataValidationError{Field: field, Message: fmt.Sprintf("must be a number, got %T", v)}
	}
}

func rawDate(raw map[string]any, field string) (Date, error) {
	v, err := rawValue(raw, field)
	if err != nil {
		return Date{}, err
	}
	switch d := v.(type) {
	case Date:
		return d, nil
	case time.Time:
		return NewDate(d), nil
	case string:
		parsed, err := ParseDate(d)
		if err != nil {
			return Date{}, &DataValidationError{Field: field, Message: err.Error(), Err: err}
		}
		return parsed, nil
	default:
		return Date{}, &DataValidationError{Field: field, Message: fmt.Sprintf("must be a date, got %T", v)}
	}
}
