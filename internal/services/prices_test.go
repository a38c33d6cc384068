package services

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"mandi-price-api/internal/config"
	"mandi-price-api/internal/mockdata"
	"mandi-price-api/internal/models"
)

type mockSource struct {
	mock.Mock
	name string
}

func newMockSource(t *testing.T, name string) *mockSource {
	m := &mockSource{name: name}
	m.Test(t)
	return m
}

func (m *mockSource) Name() string { return m.name }

func (m *mockSource) Fetch(ctx context.Context, q models.SourceQuery) ([]models.PriceRecord, error) {
	args := m.Called(ctx, q)
	records, _ := args.Get(0).([]models.PriceRecord)
	return records, args.Error(1)
}

type sleepRecorder struct {
	delays []time.Duration
	err    error
}

func (r *sleepRecorder) sleep(_ context.Context, d time.Duration) error {
	r.delays = append(r.delays, d)
	return r.err
}

func (r *sleepRecorder) total() time.Duration {
	var sum time.Duration
	for _, d := range r.delays {
		sum += d
	}
	return sum
}

type memoryCache struct {
	store map[string]*models.PriceResponse
	sets  int
}

func (c *memoryCache) GetPrices(_ context.Context, key string) (*models.PriceResponse, error) {
	return c.store[key], nil
}

func (c *memoryCache) SetPrices(_ context.Context, key string, resp *models.PriceResponse) error {
	c.store[key] = resp
	c.sets++
	return nil
}

var testNow = time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)

func testConfig() config.FetchConfig {
	return config.FetchConfig{
		RequestTimeout:  30 * time.Second,
		MaxRetries:      3,
		RetryDelay:      2 * time.Second,
		DefaultSource:   models.SourceAgmarknet,
		UseMockFallback: true,
	}
}

type harness struct {
	svc    *PriceService
	agmark *mockSource
	enam   *mockSource
	sleeps *sleepRecorder
}

func newHarness(t *testing.T, cfg config.FetchConfig) *harness {
	log := logrus.New()
	log.SetOutput(io.Discard)

	h := &harness{
		agmark: newMockSource(t, models.SourceAgmarknet),
		enam:   newMockSource(t, models.SourceEnam),
		sleeps: &sleepRecorder{},
	}
	h.svc = NewPriceService(cfg, mockdata.NewProvider(), log, h.agmark, h.enam)
	h.svc.sleep = h.sleeps.sleep
	h.svc.now = func() time.Time { return testNow }
	return h
}

func boolPtr(b bool) *bool { return &b }

func record(t *testing.T, crop, district string, modal float64) models.PriceRecord {
	t.Helper()
	rec, err := models.NewPriceRecord(models.PriceRecord{
		CropName:   crop,
		MinPrice:   modal - 100,
		MaxPrice:   modal + 100,
		ModalPrice: modal,
		MarketName: district + " Mandi",
		District:   district,
		State:      "Delhi",
		PriceDate:  models.NewDate(testNow),
	})
	require.NoError(t, err)
	return rec
}

func unavailable(source string) error {
	return models.NewNetworkError(source, 503, nil)
}

func TestGetCropPrices_Validation(t *testing.T) {
	h := newHarness(t, testConfig())

	_, err := h.svc.GetCropPrices(context.Background(), models.PriceQuery{State: "   "})
	var inputErr *models.InputError
	require.True(t, errors.As(err, &inputErr))
	assert.Equal(t, "state", inputErr.Field)

	_, err = h.svc.GetCropPrices(context.Background(), models.PriceQuery{State: "Delhi", DataSource: "datagov", UseMockOnly: boolPtr(true)})
	require.True(t, errors.As(err, &inputErr))
	assert.Equal(t, "data_source", inputErr.Field)

	h.agmark.AssertNotCalled(t, "Fetch", mock.Anything, mock.Anything)
}

func TestGetCropPrices_MockOnly(t *testing.T) {
	h := newHarness(t, testConfig())

	resp, err := h.svc.GetCropPrices(context.Background(), models.PriceQuery{State: "delhi", UseMockOnly: boolPtr(true)})
	require.NoError(t, err)

	assert.True(t, resp.Success)
	assert.Equal(t, 5, resp.Count)
	assert.Len(t, resp.Data, 5)
	assert.Equal(t, "Delhi", resp.State)
	assert.Nil(t, resp.District)
	assert.Equal(t, "Successfully fetched 5 mock price entries (dev mode)", resp.Message)
	for _, rec := range resp.Data {
		assert.Equal(t, "Delhi", rec.State)
		assert.Equal(t, "2024-01-15", rec.PriceDate.String())
	}

	h.agmark.AssertNotCalled(t, "Fetch", mock.Anything, mock.Anything)
	h.enam.AssertNotCalled(t, "Fetch", mock.Anything, mock.Anything)
	assert.Empty(t, h.sleeps.delays)
}

func TestGetCropPrices_MockOnlyConjunctiveFilter(t *testing.T) {
	h := newHarness(t, testConfig())

	resp, err := h.svc.GetCropPrices(context.Background(), models.PriceQuery{
		State:       " delhi ",
		District:    "north delhi",
		CropName:    "WHEAT",
		UseMockOnly: boolPtr(true),
	})
	require.NoError(t, err)

	require.Equal(t, 1, resp.Count)
	assert.Equal(t, "Wheat", resp.Data[0].CropName)
	assert.Equal(t, "North Delhi", resp.Data[0].District)
	require.NotNil(t, resp.District)
	assert.Equal(t, "North Delhi", *resp.District)
	require.NotNil(t, resp.CropName)
	assert.Equal(t, "Wheat", *resp.CropName)
}

func TestGetCropPrices_MockOnlyUnknownState(t *testing.T) {
	h := newHarness(t, testConfig())

	resp, err := h.svc.GetCropPrices(context.Background(), models.PriceQuery{State: "Atlantis", UseMockOnly: boolPtr(true)})
	require.NoError(t, err)

	assert.False(t, resp.Success)
	assert.Equal(t, 0, resp.Count)
	assert.NotNil(t, resp.Data)
	assert.NotEmpty(t, resp.Message)
}

func TestGetCropPrices_MockOnlyIsIdempotent(t *testing.T) {
	h := newHarness(t, testConfig())
	q := models.PriceQuery{State: "Punjab", UseMockOnly: boolPtr(true)}

	first, err := h.svc.GetCropPrices(context.Background(), q)
	require.NoError(t, err)
	second, err := h.svc.GetCropPrices(context.Background(), q)
	require.NoError(t, err)

	assert.Equal(t, first.Data, second.Data)
}

func TestGetCropPrices_DevModeDefault(t *testing.T) {
	cfg := testConfig()
	cfg.DevMode = true
	h := newHarness(t, cfg)

	resp, err := h.svc.GetCropPrices(context.Background(), models.PriceQuery{State: "Delhi"})
	require.NoError(t, err)
	assert.Contains(t, resp.Message, "(dev mode)")
	h.agmark.AssertNotCalled(t, "Fetch", mock.Anything, mock.Anything)

	h.agmark.On("Fetch", mock.Anything, mock.Anything).Return([]models.PriceRecord{record(t, "Wheat", "North Delhi", 2200)}, nil).Once()
	resp, err = h.svc.GetCropPrices(context.Background(), models.PriceQuery{State: "Delhi", UseMockOnly: boolPtr(false)})
	require.NoError(t, err)
	assert.Equal(t, "Successfully fetched 1 price entries", resp.Message)
	h.agmark.AssertExpectations(t)
}

func TestGetCropPrices_RetryFailoverThenMock(t *testing.T) {
	h := newHarness(t, testConfig())

	h.agmark.On("Fetch", mock.Anything, mock.MatchedBy(func(q models.SourceQuery) bool {
		return q.State == "Delhi" && q.PriceDate.String() == "2024-01-15"
	})).Return(nil, unavailable(models.SourceAgmarknet)).Times(3)
	h.enam.On("Fetch", mock.Anything, mock.Anything).Return(nil, unavailable(models.SourceEnam)).Once()

	resp, err := h.svc.GetCropPrices(context.Background(), models.PriceQuery{State: "Delhi"})
	require.NoError(t, err)

	assert.True(t, resp.Success)
	assert.Equal(t, 5, resp.Count)
	assert.Equal(t, "Successfully fetched 5 price entries", resp.Message)

	assert.Equal(t, []time.Duration{2 * time.Second, 4 * time.Second}, h.sleeps.delays)
	assert.Equal(t, 6*time.Second, h.sleeps.total())
	h.agmark.AssertExpectations(t)
	h.enam.AssertExpectations(t)
}

func TestGetCropPrices_AllExhausted(t *testing.T) {
	h := newHarness(t, testConfig())

	h.agmark.On("Fetch", mock.Anything, mock.Anything).Return(nil, unavailable(models.SourceAgmarknet)).Times(3)
	h.enam.On("Fetch", mock.Anything, mock.Anything).Return(nil, unavailable(models.SourceEnam)).Once()

	resp, err := h.svc.GetCropPrices(context.Background(), models.PriceQuery{State: "Atlantis", CropName: "wheat"})
	require.NoError(t, err)

	assert.False(t, resp.Success)
	assert.Equal(t, 0, resp.Count)
	assert.Equal(t, "No price data found for state=Atlantis, crop=Wheat. Last error: [agmarknet] network error: HTTP 503", resp.Message)
	assert.Equal(t, 6*time.Second, h.sleeps.total())
}

func TestGetCropPrices_MockFallbackDisabled(t *testing.T) {
	h := newHarness(t, testConfig())

	h.enam.On("Fetch", mock.Anything, mock.Anything).Return(nil, models.NewDataSourceError(models.SourceEnam, "response has no data array", nil)).Times(3)
	h.agmark.On("Fetch", mock.Anything, mock.Anything).Return(nil, unavailable(models.SourceAgmarknet)).Once()

	resp, err := h.svc.GetCropPrices(context.Background(), models.PriceQuery{
		State:           "Delhi",
		DataSource:      "ENAM",
		UseMockFallback: boolPtr(false),
	})
	require.NoError(t, err)

	assert.False(t, resp.Success)
	assert.Contains(t, resp.Message, "Last error: [enam] response has no data array")
	h.enam.AssertExpectations(t)
	h.agmark.AssertExpectations(t)
}

func TestGetCropPrices_SucceedsOnRetry(t *testing.T) {
	h := newHarness(t, testConfig())

	h.agmark.On("Fetch", mock.Anything, mock.Anything).Return(nil, unavailable(models.SourceAgmarknet)).Once()
	h.agmark.On("Fetch", mock.Anything, mock.Anything).Return([]models.PriceRecord{
		record(t, "Wheat", "North Delhi", 2200),
		record(t, "Wheat", "Shahdara", 2250),
	}, nil).Once()

	resp, err := h.svc.GetCropPrices(context.Background(), models.PriceQuery{State: "Delhi", District: "north delhi"})
	require.NoError(t, err)

	require.Equal(t, 1, resp.Count)
	assert.Equal(t, "North Delhi", resp.Data[0].District)
	assert.Equal(t, []time.Duration{2 * time.Second}, h.sleeps.delays)
	h.agmark.AssertNumberOfCalls(t, "Fetch", 2)
	h.enam.AssertNotCalled(t, "Fetch", mock.Anything, mock.Anything)
}

func TestGetCropPrices_EmptyResultsSkipFailover(t *testing.T) {
	h := newHarness(t, testConfig())

	h.agmark.On("Fetch", mock.Anything, mock.Anything).Return([]models.PriceRecord{}, nil).Times(3)

	resp, err := h.svc.GetCropPrices(context.Background(), models.PriceQuery{State: "Delhi", CropName: "onion"})
	require.NoError(t, err)

	assert.True(t, resp.Success)
	require.Equal(t, 1, resp.Count)
	assert.Equal(t, "Onion", resp.Data[0].CropName)
	assert.Empty(t, h.sleeps.delays)
	h.agmark.AssertExpectations(t)
	h.enam.AssertNotCalled(t, "Fetch", mock.Anything, mock.Anything)
}

func TestGetCropPrices_EmptyResultsWithoutFallback(t *testing.T) {
	h := newHarness(t, testConfig())

	h.agmark.On("Fetch", mock.Anything, mock.Anything).Return([]models.PriceRecord{}, nil).Times(3)

	resp, err := h.svc.GetCropPrices(context.Background(), models.PriceQuery{State: "Delhi", UseMockFallback: boolPtr(false)})
	require.NoError(t, err)

	assert.False(t, resp.Success)
	assert.Equal(t, "No price data found for state=Delhi", resp.Message)
}

func TestGetCropPrices_ErrorThenEmptyStillFailsOver(t *testing.T) {
	h := newHarness(t, testConfig())

	h.agmark.On("Fetch", mock.Anything, mock.Anything).Return(nil, unavailable(models.SourceAgmarknet)).Once()
	h.agmark.On("Fetch", mock.Anything, mock.Anything).Return([]models.PriceRecord{}, nil).Twice()
	h.enam.On("Fetch", mock.Anything, mock.Anything).Return([]models.PriceRecord{
		record(t, "Tomato", "North Delhi", 1350),
	}, nil).Once()

	resp, err := h.svc.GetCropPrices(context.Background(), models.PriceQuery{State: "Delhi"})
	require.NoError(t, err)

	require.Equal(t, 1, resp.Count)
	assert.Equal(t, "Tomato", resp.Data[0].CropName)
	assert.Equal(t, []time.Duration{2 * time.Second}, h.sleeps.delays)
	h.agmark.AssertExpectations(t)
	h.enam.AssertExpectations(t)
}

func TestGetCropPrices_UnexpectedErrorAborts(t *testing.T) {
	h := newHarness(t, testConfig())

	h.agmark.On("Fetch", mock.Anything, mock.Anything).Return(nil, errors.New("boom")).Once()

	resp, err := h.svc.GetCropPrices(context.Background(), models.PriceQuery{State: "Delhi"})
	assert.Nil(t, resp)

	var orchErr *models.OrchestrationError
	require.True(t, errors.As(err, &orchErr))
	assert.Contains(t, err.Error(), "boom")
	h.agmark.AssertNumberOfCalls(t, "Fetch", 1)
	h.enam.AssertNotCalled(t, "Fetch", mock.Anything, mock.Anything)
	assert.Empty(t, h.sleeps.delays)
}

func TestGetCropPrices_PanicBecomesOrchestrationError(t *testing.T) {
	h := newHarness(t, testConfig())

	h.agmark.On("Fetch", mock.Anything, mock.Anything).Run(func(mock.Arguments) {
		panic("nil map")
	}).Return(nil, nil).Once()

	_, err := h.svc.GetCropPrices(context.Background(), models.PriceQuery{State: "Delhi"})
	var orchErr *models.OrchestrationError
	require.True(t, errors.As(err, &orchErr))
	assert.Contains(t, err.Error(), "nil map")
}

func TestGetCropPrices_FailoverPanicIsSwallowed(t *testing.T) {
	h := newHarness(t, testConfig())

	h.agmark.On("Fetch", mock.Anything, mock.Anything).Return(nil, unavailable(models.SourceAgmarknet)).Times(3)
	h.enam.On("Fetch", mock.Anything, mock.Anything).Run(func(mock.Arguments) {
		panic("bad json")
	}).Return(nil, nil).Once()

	resp, err := h.svc.GetCropPrices(context.Background(), models.PriceQuery{State: "Punjab"})
	require.NoError(t, err)
	assert.Equal(t, 2, resp.Count)
}

func TestGetCropPrices_CancelledDuringBackoff(t *testing.T) {
	h := newHarness(t, testConfig())
	h.sleeps.err = context.Canceled

	h.agmark.On("Fetch", mock.Anything, mock.Anything).Return(nil, unavailable(models.SourceAgmarknet)).Once()

	_, err := h.svc.GetCropPrices(context.Background(), models.PriceQuery{State: "Delhi"})
	var orchErr *models.OrchestrationError
	require.True(t, errors.As(err, &orchErr))
	assert.ErrorIs(t, err, context.Canceled)
	h.enam.AssertNotCalled(t, "Fetch", mock.Anything, mock.Anything)
}

func TestGetCropPrices_CachesLiveResponses(t *testing.T) {
	h := newHarness(t, testConfig())
	c := &memoryCache{store: make(map[string]*models.PriceResponse)}
	h.svc.WithCache(c)

	h.agmark.On("Fetch", mock.Anything, mock.Anything).Return([]models.PriceRecord{
		record(t, "Wheat", "North Delhi", 2200),
	}, nil).Once()

	q := models.PriceQuery{State: "Delhi", CropName: "Wheat"}
	first, err := h.svc.GetCropPrices(context.Background(), q)
	require.NoError(t, err)
	second, err := h.svc.GetCropPrices(context.Background(), q)
	require.NoError(t, err)

	assert.Equal(t, 1, c.sets)
	assert.Equal(t, first, second)
	h.agmark.AssertNumberOfCalls(t, "Fetch", 1)
}

func TestGetCropPrices_DoesNotCacheMockFallback(t *testing.T) {
	h := newHarness(t, testConfig())
	c := &memoryCache{store: make(map[string]*models.PriceResponse)}
	h.svc.WithCache(c)

	h.agmark.On("Fetch", mock.Anything, mock.Anything).Return([]models.PriceRecord{}, nil).Times(3)

	resp, err := h.svc.GetCropPrices(context.Background(), models.PriceQuery{State: "Delhi"})
	require.NoError(t, err)
	assert.True(t, resp.Success)
	assert.Zero(t, c.sets)
}

func TestFetchOne(t *testing.T) {
	h := newHarness(t, testConfig())

	h.enam.On("Fetch", mock.Anything, mock.MatchedBy(func(q models.SourceQuery) bool {
		return q.State == "Tamil Nadu" && q.CropName == "Turmeric"
	})).Return(nil, unavailable(models.SourceEnam)).Once()

	_, err := h.svc.FetchOne(context.Background(), "enam", models.PriceQuery{State: "tamil nadu", CropName: "turmeric"})
	var netErr *models.NetworkError
	require.True(t, errors.As(err, &netErr))
	h.enam.AssertExpectations(t)
	assert.Empty(t, h.sleeps.delays)

	_, err = h.svc.FetchOne(context.Background(), "amazon", models.PriceQuery{State: "Delhi"})
	var inputErr *models.InputError
	assert.True(t, errors.As(err, &inputErr))
}

func TestBackoffDelay(t *testing.T) {
	tests := []struct {
		base    time.Duration
		attempt int
		want    time.Duration
	}{
		{2 * time.Second, 1, 2 * time.Second},
		{2 * time.Second, 2, 4 * time.Second},
		{2 * time.Second, 3, 6 * time.Second},
		{0, 2, 0},
		{500 * time.Millisecond, 4, 2 * time.Second},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, backoffDelay(tt.base, tt.attempt))
	}
}

func TestSleepContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, sleepContext(ctx, time.Hour), context.Canceled)
	assert.NoError(t, sleepContext(context.Background(), time.Millisecond))
}
