package scrapers

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"mandi-price-api/internal/models"
	"mandi-price-api/pkg/utils"
)

// Header text fragments (lowercased) mapped to record fields, checked in order.
var reportColumns = []struct {
	fragment string
	field    string
}{
	{"state", "state"},
	{"district", "district"},
	{"market", "market_name"},
	{"commodity", "crop_name"},
	{"min", "min_price"},
	{"max", "max_price"},
	{"modal", "modal_price"},
	{"date", "price_date"},
	{"unit", "unit"},
}

var requiredColumns = []string{"district", "market_name", "crop_name", "min_price", "max_price", "modal_price"}

var priceColumns = map[string]bool{"min_price": true, "max_price": true, "modal_price": true}

// parseReportTable turns a price grid into raw rows keyed by record field.
// Rows with fewer cells than the header (pager rows, "No Data Found") are skipped.
func parseReportTable(table *goquery.Selection, q models.SourceQuery) ([]map[string]any, error) {
	rows := table.Find("tr")
	if rows.Length() == 0 {
		return nil, fmt.Errorf("table has no rows")
	}

	columns := make(map[int]string)
	seen := make(map[string]bool)
	headerCells := rows.First().Find("th,td")
	headerCells.Each(func(i int, cell *goquery.Selection) {
		text := strings.ToLower(strings.TrimSpace(cell.Text()))
		for _, col := range reportColumns {
			if strings.Contains(text, col.fragment) && !seen[col.field] {
				columns[i] = col.field
				seen[col.field] = true
				break
			}
		}
	})
	for _, field := range requiredColumns {
		if !seen[field] {
			return nil, fmt.Errorf("missing %s column", field)
		}
	}

	raws := make([]map[string]any, 0, rows.Length()-1)
	rows.Slice(1, goquery.ToEnd).Each(func(_ int, row *goquery.Selection) {
		cells := row.Find("td")
		if cells.Length() < headerCells.Length() {
			return
		}

		raw := map[string]any{
			"state":      q.State,
			"price_date": q.PriceDate,
		}
		cells.Each(func(i int, cell *goquery.Selection) {
			field, ok := columns[i]
			if !ok {
				return
			}
			text := strings.TrimSpace(cell.Text())
			switch {
			case priceColumns[field]:
				if v, err := utils.ParsePrice(text); err == nil {
					raw[field] = v
				} else {
					raw[field] = text
				}
			case field == "unit":
				raw[field] = utils.NormalizeUnit(text)
			case text != "":
				raw[field] = text
			}
		})
		raws = append(raws, raw)
	})
	return raws, nil
}
