// Package export renders price responses as spreadsheets.
package export

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"mandi-price-api/internal/models"
)

const (
	PricesSheet  = "Prices"
	SummarySheet = "Summary"
)

var priceHeaders = []string{"Crop", "Market", "District", "State", "Min Price", "Max Price", "Modal Price", "Price Date", "Unit"}

var summaryHeaders = []string{"Crop", "Markets", "Min Modal", "Max Modal", "Mean Modal", "Median Modal", "Unit"}

// WritePriceWorkbook writes the response records, plus an optional per-crop
// summary sheet, as an xlsx workbook.
func WritePriceWorkbook(w io.Writer, resp *models.PriceResponse, summaries []models.CropSummary) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", PricesSheet); err != nil {
		return err
	}

	rows := make([][]interface{}, 0, len(resp.Data))
	for _, rec := range resp.Data {
		rows = append(rows, []interface{}{
			rec.CropName, rec.MarketName, rec.District, rec.State,
			rec.MinPrice, rec.MaxPrice, rec.ModalPrice,
			rec.PriceDate.String(), rec.Unit,
		})
	}
	if err := writeSheet(f, PricesSheet, priceHeaders, rows); err != nil {
		return err
	}

	if len(summaries) > 0 {
		if _, err := f.NewSheet(SummarySheet); err != nil {
			return err
		}
		rows = rows[:0]
		for _, s := range summaries {
			rows = append(rows, []interface{}{
				s.CropName, s.Markets, s.MinModal, s.MaxModal, s.MeanModal, s.MedianModal, s.Unit,
			})
		}
		if err := writeSheet(f, SummarySheet, summaryHeaders, rows); err != nil {
			return err
		}
	}

	if err := f.SetDocProps(&excelize.DocProperties{
		Title:       fmt.Sprintf("Mandi prices: %s", resp.State),
		Description: resp.Message,
		Creator:     "mandi-price-api",
	}); err != nil {
		return err
	}

	_, err := f.WriteTo(w)
	return err
}

func writeSheet(f *excelize.File, sheet string, headers []string, rows [][]interface{}) error {
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(sheet, cell, h); err != nil {
			return err
		}
	}

	for r, row := range rows {
		for c, v := range row {
			cell, _ := excelize.CoordinatesToCellName(c+1, r+2)
			if err := f.SetCellValue(sheet, cell, v); err != nil {
				return err
			}
		}
	}
	return f.SetPanes(sheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	})
}
