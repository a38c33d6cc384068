package scrapers

import (
	"context"
	"fmt"
	"time"

	"github.com/gocolly/colly/v2"
	"github.com/gocolly/colly/v2/debug"
	"github.com/sirupsen/logrus"

	"mandi-price-api/internal/config"
	"mandi-price-api/internal/models"
)

const userAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// Source is a live price portal. Fetch issues one request and returns only
// *models.NetworkError or *models.DataSourceError on failure.
type Source interface {
	Name() string
	Fetch(ctx context.Context, q models.SourceQuery) ([]models.PriceRecord, error)
}

// PageRenderer returns the HTML of a page after client-side scripts ran.
type PageRenderer interface {
	Render(ctx context.Context, pageURL, waitSelector string) (string, error)
}

type Options struct {
	BaseURL string
	Timeout time.Duration
	Debug   bool
	Logger  logrus.FieldLogger
}

func (o Options) logger() logrus.FieldLogger {
	if o.Logger == nil {
		return logrus.StandardLogger()
	}
	return o.Logger
}

// NewSources builds both portal adapters. renderer may be nil, in which case
// AGMARKNET is fetched over plain HTTP.
func NewSources(cfg config.SourcesConfig, timeout time.Duration, renderer PageRenderer, log logrus.FieldLogger) []Source {
	debugLog := false
	if l, ok := log.(*logrus.Logger); ok {
		debugLog = l.IsLevelEnabled(logrus.DebugLevel)
	}
	return []Source{
		NewAgmarknetScraper(Options{BaseURL: cfg.AgmarknetURL, Timeout: timeout, Debug: debugLog, Logger: log}, renderer),
		NewEnamScraper(Options{BaseURL: cfg.EnamURL, Timeout: timeout, Debug: debugLog, Logger: log}),
	}
}

// newCollector builds a fresh collector per fetch so callbacks never pile up
// across calls and a retry may revisit the same URL.
func newCollector(ctx context.Context, opts Options, headers map[string]string) *colly.Collector {
	collectorOpts := []colly.CollectorOption{
		colly.AllowURLRevisit(),
		colly.StdlibContext(ctx),
		colly.UserAgent(userAgent),
	}
	if opts.Debug {
		collectorOpts = append(collectorOpts, colly.Debugger(&debug.LogDebugger{}))
	}
	c := colly.NewCollector(collectorOpts...)
	c.SetRequestTimeout(opts.Timeout)

	c.OnRequest(func(r *colly.Request) {
		r.Headers.Set("Accept-Language", "en-US,en;q=0.5")
		r.Headers.Set("Cache-Control", "no-cache")
		for k, v := range headers {
			r.Headers.Set(k, v)
		}
	})
	return c
}

// buildRecords validates raw rows. Bad rows are skipped; the batch only fails
// when every row is bad.
func buildRecords(source string, raws []map[string]any, log logrus.FieldLogger) ([]models.PriceRecord, error) {
	records := make([]models.PriceRecord, 0, len(raws))
	var lastErr error
	for i, raw := range raws {
		rec, err := models.ParsePriceRecord(raw)
		if err != nil {
			lastErr = err
			log.WithFields(logrus.Fields{"source": source, "row": i}).WithError(err).Warn("Skipping invalid price row")
			continue
		}
		records = append(records, rec)
	}
	if len(records) == 0 && lastErr != nil {
		return nil, models.NewDataSourceError(source, fmt.Sprintf("all %d price rows failed validation", len(raws)), lastErr)
	}
	return records, nil
}

// recoverAsSourceError turns a panic during parsing into a DataSourceError.
func recoverAsSourceError(source string, err *error) {
	if r := recover(); r != nil {
		*err = models.NewDataSourceError(source, "unexpected error while scraping", fmt.Errorf("panic: %v", r))
	}
}
