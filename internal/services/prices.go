package services

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"mandi-price-api/internal/config"
	"mandi-price-api/internal/metrics"
	"mandi-price-api/internal/models"
	"mandi-price-api/internal/scrapers"
	"mandi-price-api/pkg/cache"
	"mandi-price-api/pkg/utils"
)

// MockProvider serves sample prices when live portals are skipped or exhausted.
type MockProvider interface {
	Prices(state, district, crop string, priceDate time.Time) ([]models.PriceRecord, error)
}

// ResponseCache stores successful live responses.
type ResponseCache interface {
	GetPrices(ctx context.Context, key string) (*models.PriceResponse, error)
	SetPrices(ctx context.Context, key string, response *models.PriceResponse) error
}

// PriceService fetches crop prices from the live portals with retry, failover
// to the other portal and a final mock fallback. It holds no per-request state.
type PriceService struct {
	sources map[string]scrapers.Source
	mock    MockProvider
	cache   ResponseCache
	cfg     config.FetchConfig
	log     logrus.FieldLogger

	sleep func(ctx context.Context, d time.Duration) error
	now   func() time.Time
}

func NewPriceService(cfg config.FetchConfig, mock MockProvider, log logrus.FieldLogger, sources ...scrapers.Source) *PriceService {
	s := &PriceService{
		sources: make(map[string]scrapers.Source, len(sources)),
		mock:    mock,
		cfg:     cfg,
		log:     log,
		sleep:   sleepContext,
		now:     time.Now,
	}
	for _, src := range sources {
		s.sources[src.Name()] = src
	}
	return s
}

// WithCache enables response caching for live lookups.
func (s *PriceService) WithCache(c ResponseCache) *PriceService {
	s.cache = c
	return s
}

// request is a validated, normalised PriceQuery with defaults applied.
type request struct {
	filters     models.PriceFilters
	priceDate   time.Time
	source      string
	mockOnly    bool
	useFallback bool
}

func (r request) sourceQuery() models.SourceQuery {
	return models.SourceQuery{
		State:     r.filters.State,
		District:  r.filters.District,
		CropName:  r.filters.CropName,
		PriceDate: models.NewDate(r.priceDate),
	}
}

func (r request) cacheKey() string {
	fallback := r.useFallback
	return cache.GenerateKey(models.PriceQuery{
		State:           r.filters.State,
		District:        r.filters.District,
		CropName:        r.filters.CropName,
		PriceDate:       r.priceDate,
		DataSource:      r.source,
		UseMockFallback: &fallback,
	})
}

func (s *PriceService) normalize(q models.PriceQuery) (request, error) {
	state := utils.TitleCase(q.State)
	if state == "" {
		return request{}, models.NewInputError("state", "state parameter is required and cannot be empty")
	}

	source := strings.ToLower(strings.TrimSpace(q.DataSource))
	if source == "" {
		source = s.cfg.DefaultSource
	}
	if !config.IsKnownSource(source) {
		return request{}, models.NewInputError("data_source",
			fmt.Sprintf("unknown data source %q, expected %q or %q", q.DataSource, models.SourceAgmarknet, models.SourceEnam))
	}

	r := request{
		filters: models.PriceFilters{
			State:    state,
			District: utils.TitleCase(q.District),
			CropName: utils.TitleCase(q.CropName),
		},
		priceDate:   q.PriceDate,
		source:      source,
		mockOnly:    s.cfg.DevMode,
		useFallback: s.cfg.UseMockFallback,
	}
	if r.priceDate.IsZero() {
		r.priceDate = s.now()
	}
	if q.UseMockOnly != nil {
		r.mockOnly = *q.UseMockOnly
	}
	if q.UseMockFallback != nil {
		r.useFallback = *q.UseMockFallback
	}
	return r, nil
}

// GetCropPrices runs one price lookup. Exhausted sources are reported as a
// response with Success false, not as an error. Errors are *models.InputError
// or *models.OrchestrationError.
func (s *PriceService) GetCropPrices(ctx context.Context, q models.PriceQuery) (resp *models.PriceResponse, err error) {
	start := s.now()
	mode := "live"

	defer func() {
		if r := recover(); r != nil {
			s.log.WithField("panic", r).Error("Price lookup panicked")
			resp, err = nil, &models.OrchestrationError{
				Message: "unexpected error fetching prices",
				Err:     fmt.Errorf("panic: %v", r),
			}
		}
		if resp != nil {
			metrics.RequestDuration.WithLabelValues(mode, strconv.FormatBool(resp.Success)).
				Observe(s.now().Sub(start).Seconds())
		}
	}()

	req, err := s.normalize(q)
	if err != nil {
		return nil, err
	}

	log := s.log.WithFields(logrus.Fields{
		"state":    req.filters.State,
		"district": req.filters.District,
		"crop":     req.filters.CropName,
		"source":   req.source,
	})

	if req.mockOnly {
		mode = "mock"
		return s.mockOnly(req, log), nil
	}

	if s.cache != nil {
		if cached, err := s.cache.GetPrices(ctx, req.cacheKey()); err != nil {
			log.WithError(err).Debug("Cache lookup failed")
		} else if cached != nil {
			log.Info("Cache HIT")
			return cached, nil
		}
	}

	log.Info("Fetching crop prices")

	records, lastErr, err := s.fetchWithRetry(ctx, req, log)
	if err != nil {
		return nil, err
	}
	live := len(records) > 0

	// Failover only runs when the primary ended on an error; an empty but
	// successful final attempt skips straight to the mock fallback.
	if len(records) == 0 && lastErr != nil {
		records = s.failover(ctx, req, log)
		live = len(records) > 0
	}

	if len(records) == 0 && req.useFallback {
		records = s.mockFallback(req, log)
	}

	records = filterRecords(records, req.filters.District, req.filters.CropName)
	if len(records) == 0 {
		return models.NewPriceResponse(nil, req.filters, s.now(), noDataMessage(req.filters, lastErr)), nil
	}

	resp = models.NewPriceResponse(records, req.filters, s.now(),
		fmt.Sprintf("Successfully fetched %d price entries", len(records)))

	if live && s.cache != nil {
		if err := s.cache.SetPrices(ctx, req.cacheKey(), resp); err != nil {
			log.WithError(err).Warn("Failed to cache price response")
		}
	}
	return resp, nil
}

func (s *PriceService) mockOnly(req request, log logrus.FieldLogger) *models.PriceResponse {
	log.Info("Development mode: using mock data directly, live sources skipped")

	records, err := s.mock.Prices(req.filters.State, req.filters.District, req.filters.CropName, req.priceDate)
	if err != nil {
		log.WithError(err).Error("Mock data provider failed")
	}

	records = filterRecords(records, req.filters.District, req.filters.CropName)
	if len(records) == 0 {
		return models.NewPriceResponse(nil, req.filters, s.now(), noDataMessage(req.filters, nil))
	}
	return models.NewPriceResponse(records, req.filters, s.now(),
		fmt.Sprintf("Successfully fetched %d mock price entries (dev mode)", len(records)))
}

// fetchWithRetry calls the primary source up to MaxRetries times. A non-empty
// result stops immediately; an empty result retries without waiting; a network
// or source error waits backoffDelay before the next attempt. lastErr is the
// most recent retryable failure. err aborts the whole lookup.
func (s *PriceService) fetchWithRetry(ctx context.Context, req request, log logrus.FieldLogger) (records []models.PriceRecord, lastErr error, err error) {
	src, ok := s.sources[req.source]
	if !ok {
		return nil, nil, &models.OrchestrationError{Message: fmt.Sprintf("data source %q is not configured", req.source)}
	}
	sq := req.sourceQuery()

	for attempt := 1; attempt <= s.cfg.MaxRetries; attempt++ {
		records, err = src.Fetch(ctx, sq)
		if err == nil {
			if len(records) > 0 {
				metrics.SourceAttempts.WithLabelValues(req.source, metrics.OutcomeSuccess).Inc()
				return records, lastErr, nil
			}
			metrics.SourceAttempts.WithLabelValues(req.source, metrics.OutcomeEmpty).Inc()
			log.WithField("attempt", attempt).Info("Source returned no rows")
			continue
		}

		metrics.SourceAttempts.WithLabelValues(req.source, metrics.OutcomeError).Inc()
		if !models.IsRetryable(err) {
			log.WithError(err).Error("Unexpected error from source")
			return nil, lastErr, &models.OrchestrationError{Message: "unexpected error fetching prices", Err: err}
		}

		lastErr = err
		if attempt == s.cfg.MaxRetries {
			log.WithError(err).Errorf("All %d attempts failed", s.cfg.MaxRetries)
			break
		}

		delay := backoffDelay(s.cfg.RetryDelay, attempt)
		log.WithError(err).WithFields(logrus.Fields{"attempt": attempt, "delay": delay.String()}).Warn("Attempt failed, retrying")
		if err := s.sleep(ctx, delay); err != nil {
			return nil, lastErr, &models.OrchestrationError{Message: "price lookup cancelled", Err: err}
		}
	}
	return nil, lastErr, nil
}

// failover tries the other portal once. Its failure is logged, never returned.
func (s *PriceService) failover(ctx context.Context, req request, log logrus.FieldLogger) []models.PriceRecord {
	name := otherSource(req.source)
	src, ok := s.sources[name]
	if !ok {
		log.WithField("fallback_source", name).Warn("Fallback source not configured")
		return nil
	}

	log.WithField("fallback_source", name).Info("Primary source failed, trying fallback")
	metrics.Fallbacks.WithLabelValues(metrics.FallbackFailover).Inc()

	records, err := safeFetch(ctx, src, req.sourceQuery())
	if err != nil {
		metrics.SourceAttempts.WithLabelValues(name, metrics.OutcomeError).Inc()
		log.WithError(err).WithField("fallback_source", name).Error("Fallback source also failed")
		return nil
	}
	outcome := metrics.OutcomeSuccess
	if len(records) == 0 {
		outcome = metrics.OutcomeEmpty
	}
	metrics.SourceAttempts.WithLabelValues(name, outcome).Inc()
	return records
}

func (s *PriceService) mockFallback(req request, log logrus.FieldLogger) []models.PriceRecord {
	log.Warn("All data sources failed, using mock data")
	metrics.Fallbacks.WithLabelValues(metrics.FallbackMock).Inc()

	records, err := s.mock.Prices(req.filters.State, req.filters.District, req.filters.CropName, req.priceDate)
	if err != nil {
		log.WithError(err).Error("Mock data provider also failed")
		return nil
	}
	if len(records) > 0 {
		log.WithField("count", len(records)).Info("Using mock price entries")
	}
	return records
}

func safeFetch(ctx context.Context, src scrapers.Source, q models.SourceQuery) (records []models.PriceRecord, err error) {
	defer func() {
		if r := recover(); r != nil {
			records, err = nil, models.NewDataSourceError(src.Name(), "unexpected error while fetching", fmt.Errorf("panic: %v", r))
		}
	}()
	return src.Fetch(ctx, q)
}

// FetchOne runs a single source once, without retry or fallback.
func (s *PriceService) FetchOne(ctx context.Context, source string, q models.PriceQuery) ([]models.PriceRecord, error) {
	q.DataSource = source
	req, err := s.normalize(q)
	if err != nil {
		return nil, err
	}
	src, ok := s.sources[req.source]
	if !ok {
		return nil, &models.OrchestrationError{Message: fmt.Sprintf("data source %q is not configured", req.source)}
	}
	return src.Fetch(ctx, req.sourceQuery())
}

// backoffDelay is the wait after the given failed attempt (1-based).
func backoffDelay(base time.Duration, attempt int) time.Duration {
	return base * time.Duration(attempt)
}

func otherSource(name string) string {
	if name == models.SourceAgmarknet {
		return models.SourceEnam
	}
	return models.SourceAgmarknet
}

// filterRecords keeps records matching district and crop (case-insensitive);
// an empty filter matches everything.
func filterRecords(records []models.PriceRecord, district, crop string) []models.PriceRecord {
	if district == "" && crop == "" {
		return records
	}
	filtered := make([]models.PriceRecord, 0, len(records))
	for _, rec := range records {
		if district != "" && !strings.EqualFold(rec.District, district) {
			continue
		}
		if crop != "" && !strings.EqualFold(rec.CropName, crop) {
			continue
		}
		filtered = append(filtered, rec)
	}
	return filtered
}

func noDataMessage(f models.PriceFilters, lastErr error) string {
	var b strings.Builder
	fmt.Fprintf(&b, "No price data found for state=%s", f.State)
	if f.District != "" {
		fmt.Fprintf(&b, ", district=%s", f.District)
	}
	if f.CropName != "" {
		fmt.Fprintf(&b, ", crop=%s", f.CropName)
	}
	if lastErr != nil {
		fmt.Fprintf(&b, ". Last error: %v", lastErr)
	}
	return b.String()
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
