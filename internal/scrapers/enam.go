package scrapers

import (
	"context"

	"github.com/gocolly/colly/v2"
	"github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"

	"mandi-price-api/internal/models"
	"mandi-price-api/pkg/utils"
)

const enamTradePath = "/web/Ajax_ctrl/trade_data_list"

// EnamScraper queries the e-NAM live trade data endpoint.
type EnamScraper struct {
	opts Options
	log  logrus.FieldLogger
}

func NewEnamScraper(opts Options) *EnamScraper {
	return &EnamScraper{
		opts: opts,
		log:  opts.logger().WithField("source", models.SourceEnam),
	}
}

func (e *EnamScraper) Name() string { return models.SourceEnam }

func (e *EnamScraper) Fetch(ctx context.Context, q models.SourceQuery) (records []models.PriceRecord, err error) {
	defer recoverAsSourceError(models.SourceEnam, &err)

	tradeURL := e.opts.BaseURL + enamTradePath
	e.log.WithFields(logrus.Fields{"url": tradeURL, "state": q.State, "crop": q.CropName}).Info("Fetching e-NAM trade data")

	c := newCollector(ctx, e.opts, map[string]string{
		"Accept":           "application/json, text/javascript, */*; q=0.01",
		"X-Requested-With": "XMLHttpRequest",
		"Referer":          e.opts.BaseURL + "/web/dashboard/trade-data",
	})

	var (
		statusCode int
		body       []byte
	)

	c.OnResponse(func(r *colly.Response) {
		statusCode = r.StatusCode
		body = r.Body
	})

	c.OnError(func(r *colly.Response, err error) {
		statusCode = r.StatusCode
	})

	date := q.PriceDate.String()
	form := map[string]string{
		"language":      "en",
		"stateName":     q.State,
		"apmcName":      "",
		"commodityName": q.CropName,
		"fromDate":      date,
		"toDate":        date,
	}

	if err := c.Post(tradeURL, form); err != nil {
		return nil, models.NewNetworkError(models.SourceEnam, statusCode, err)
	}

	raws, err := parseTradeData(body, q)
	if err != nil {
		return nil, err
	}

	records, err = buildRecords(models.SourceEnam, raws, e.log)
	if err != nil {
		return nil, err
	}
	e.log.WithField("count", len(records)).Info("e-NAM rows parsed")
	return records, nil
}

// parseTradeData reads {"data":[...]} rows. e-NAM has no district column, so the
// APMC name stands in when "district" is absent.
func parseTradeData(body []byte, q models.SourceQuery) ([]map[string]any, error) {
	if !gjson.ValidBytes(body) {
		return nil, models.NewDataSourceError(models.SourceEnam, "response is not valid JSON", nil)
	}
	data := gjson.GetBytes(body, "data")
	if !data.IsArray() {
		return nil, models.NewDataSourceError(models.SourceEnam, "response has no data array", nil)
	}

	items := data.Array()
	raws := make([]map[string]any, 0, len(items))
	for _, item := range items {
		apmc := item.Get("apmc")

		district := item.Get("district")
		if district.String() == "" {
			district = apmc
		}

		raw := map[string]any{
			"crop_name":   jsonValue(item.Get("commodity")),
			"market_name": jsonValue(apmc),
			"district":    jsonValue(district),
			"state":       jsonValue(item.Get("state")),
			"min_price":   jsonValue(item.Get("min_price")),
			"max_price":   jsonValue(item.Get("max_price")),
			"modal_price": jsonValue(item.Get("modal_price")),
			"price_date":  jsonValue(item.Get("created_at")),
			"unit":        utils.NormalizeUnit(item.Get("Commodity_Uom").String()),
		}
		if raw["state"] == nil || raw["state"] == "" {
			raw["state"] = q.State
		}
		if raw["price_date"] == nil {
			raw["price_date"] = q.PriceDate
		}
		raws = append(raws, raw)
	}
	return raws, nil
}

func jsonValue(r gjson.Result) any {
	switch r.Type {
	case gjson.Null:
		return nil
	case gjson.Number:
		return r.Float()
	default:
		return r.String()
	}
}
