package scrapers

import (
	"context"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/gocolly/colly/v2"
	"github.com/sirupsen/logrus"

	"mandi-price-api/internal/models"
)

const (
	agmarknetReportPath = "/SearchCmmMkt.aspx"
	agmarknetTable      = "table#cphBody_GridPriceData"
	agmarknetDateLayout = "02-Jan-2006"
)

// AgmarknetScraper reads the commodity-wise daily report grid from AGMARKNET.
type AgmarknetScraper struct {
	opts     Options
	renderer PageRenderer
	log      logrus.FieldLogger
}

// NewAgmarknetScraper returns the AGMARKNET adapter. With a non-nil renderer the
// report page is rendered in a browser instead of fetched over plain HTTP.
func NewAgmarknetScraper(opts Options, renderer PageRenderer) *AgmarknetScraper {
	return &AgmarknetScraper{
		opts:     opts,
		renderer: renderer,
		log:      opts.logger().WithField("source", models.SourceAgmarknet),
	}
}

func (a *AgmarknetScraper) Name() string { return models.SourceAgmarknet }

func (a *AgmarknetScraper) Fetch(ctx context.Context, q models.SourceQuery) (records []models.PriceRecord, err error) {
	defer recoverAsSourceError(models.SourceAgmarknet, &err)

	reportURL := a.getReportURL(q)
	a.log.WithField("url", reportURL).Info("Fetching AGMARKNET report")

	if a.renderer != nil {
		return a.fetchRendered(ctx, reportURL, q)
	}

	c := newCollector(ctx, a.opts, map[string]string{
		"Accept":  "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8",
		"Referer": a.opts.BaseURL + "/",
	})

	var (
		statusCode int
		found      bool
		raws       []map[string]any
		parseErr   error
	)

	c.OnResponse(func(r *colly.Response) {
		statusCode = r.StatusCode
		a.log.WithField("status", r.StatusCode).Debug("AGMARKNET response")
	})

	c.OnError(func(r *colly.Response, err error) {
		statusCode = r.StatusCode
	})

	c.OnHTML(agmarknetTable, func(e *colly.HTMLElement) {
		if found {
			return
		}
		found = true
		raws, parseErr = parseReportTable(e.DOM, q)
	})

	if err := c.Visit(reportURL); err != nil {
		return nil, models.NewNetworkError(models.SourceAgmarknet, statusCode, err)
	}

	return a.finish(found, raws, parseErr)
}

func (a *AgmarknetScraper) fetchRendered(ctx context.Context, reportURL string, q models.SourceQuery) ([]models.PriceRecord, error) {
	html, err := a.renderer.Render(ctx, reportURL, agmarknetTable)
	if err != nil {
		return nil, models.NewNetworkError(models.SourceAgmarknet, 0, err)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, models.NewDataSourceError(models.SourceAgmarknet, "failed to parse rendered page", err)
	}

	table := doc.Find(agmarknetTable).First()
	if table.Length() == 0 {
		return a.finish(false, nil, nil)
	}
	raws, parseErr := parseReportTable(table, q)
	return a.finish(true, raws, parseErr)
}

func (a *AgmarknetScraper) finish(found bool, raws []map[string]any, parseErr error) ([]models.PriceRecord, error) {
	if !found {
		return nil, models.NewDataSourceError(models.SourceAgmarknet, "price report table not found in page", nil)
	}
	if parseErr != nil {
		return nil, models.NewDataSourceError(models.SourceAgmarknet, "unrecognized price report layout", parseErr)
	}

	records, err := buildRecords(models.SourceAgmarknet, raws, a.log)
	if err != nil {
		return nil, err
	}
	a.log.WithField("count", len(records)).Info("AGMARKNET rows parsed")
	return records, nil
}

func (a *AgmarknetScraper) getReportURL(q models.SourceQuery) string {
	date := q.PriceDate.Format(agmarknetDateLayout)
	params := url.Values{}
	params.Set("Tx_StateHead", q.State)
	params.Set("Tx_DistrictHead", q.District)
	params.Set("Tx_CommodityHead", q.CropName)
	params.Set("Tx_Trend", "0")
	params.Set("DateFrom", date)
	params.Set("DateTo", date)
	return a.opts.BaseURL + agmarknetReportPath + "?" + params.Encode()
}
