package utils

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var (
	numericRe = regexp.MustCompile(`-?[\d.]+`)
	spacesRe  = regexp.MustCompile(`\s+`)
)

// ParsePrice converts a portal price cell ("Rs. 2,100", "₹2100.00") to float64
func ParsePrice(priceStr string) (float64, error) {
	cleanPrice := strings.ReplaceAll(priceStr, ",", "")
	cleanPrice = strings.ReplaceAll(cleanPrice, "₹", "")
	cleanPrice = strings.TrimPrefix(strings.TrimSpace(cleanPrice), "Rs.")
	cleanPrice = strings.TrimSpace(cleanPrice)
	if cleanPrice == "" {
		return 0, fmt.Errorf("empty price")
	}

	match := numericRe.FindString(cleanPrice)
	if match == "" {
		return 0, fmt.Errorf("no numeric value in %q", priceStr)
	}

	return strconv.ParseFloat(match, 64)
}

// TitleCase trims, collapses inner whitespace and title-cases s ("north  delhi" -> "North Delhi").
func TitleCase(s string) string {
	s = spacesRe.ReplaceAllString(strings.TrimSpace(s), " ")
	if s == "" {
		return ""
	}
	// Casers are stateful, so one per call.
	return cases.Title(language.English).String(s)
}

// NormalizeUnit maps portal unit abbreviations onto the canonical names.
func NormalizeUnit(unit string) string {
	switch strings.ToLower(strings.TrimSuffix(strings.TrimSpace(unit), ".")) {
	case "", "qui", "qtl", "quintal", "quintals", "rs./quintal":
		return "Quintal"
	case "kg", "kgs", "kilogram":
		return "Kg"
	case "ton", "tonne", "tonnes", "mt":
		return "Tonne"
	case "nos", "number", "numbers":
		return "Nos"
	default:
		return strings.TrimSpace(unit)
	}
}
