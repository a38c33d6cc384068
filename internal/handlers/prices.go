package handlers

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"mandi-price-api/internal/models"
	"mandi-price-api/internal/services"
	"mandi-price-api/pkg/export"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

var knownStates = []string{
	"Delhi", "Punjab", "Maharashtra", "Tamil Nadu", "Karnataka",
	"Gujarat", "Rajasthan", "Uttar Pradesh", "Haryana", "West Bengal",
}

var knownCrops = []string{
	"Wheat", "Rice", "Tomato", "Potato", "Onion",
	"Cotton", "Sugarcane", "Turmeric", "Maize", "Soybean",
}

type priceParams struct {
	State           string `form:"state" binding:"required"`
	District        string `form:"district"`
	CropName        string `form:"crop_name"`
	PriceDate       string `form:"price_date"`
	DataSource      string `form:"data_source"`
	UseMockFallback *bool  `form:"use_mock_fallback"`
	UseMockOnly     *bool  `form:"use_mock_only"`
}

func parsePriceQuery(c *gin.Context) (models.PriceQuery, error) {
	var p priceParams
	if err := c.ShouldBindQuery(&p); err != nil {
		return models.PriceQuery{}, models.NewInputError("query", err.Error())
	}

	q := models.PriceQuery{
		State:           p.State,
		District:        p.District,
		CropName:        p.CropName,
		DataSource:      p.DataSource,
		UseMockFallback: p.UseMockFallback,
		UseMockOnly:     p.UseMockOnly,
	}
	if p.PriceDate != "" {
		d, err := time.Parse(models.DateLayout, p.PriceDate)
		if err != nil {
			return models.PriceQuery{}, models.NewInputError("price_date", "expected YYYY-MM-DD")
		}
		q.PriceDate = d
	}
	return q, nil
}

func (h *Handler) GetCropPrices(c *gin.Context) {
	q, err := parsePriceQuery(c)
	if err != nil {
		h.writeError(c, err)
		return
	}

	resp, err := h.prices.GetCropPrices(c.Request.Context(), q)
	if err != nil {
		h.writeError(c, err)
		return
	}
	if !resp.Success || resp.Count == 0 {
		notFound(c, resp.Message)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) GetSummary(c *gin.Context) {
	q, err := parsePriceQuery(c)
	if err != nil {
		h.writeError(c, err)
		return
	}

	resp, err := h.prices.Summary(c.Request.Context(), q)
	if err != nil {
		h.writeError(c, err)
		return
	}
	if !resp.Success {
		notFound(c, resp.Message)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) Export(c *gin.Context) {
	q, err := parsePriceQuery(c)
	if err != nil {
		h.writeError(c, err)
		return
	}

	resp, err := h.prices.GetCropPrices(c.Request.Context(), q)
	if err != nil {
		h.writeError(c, err)
		return
	}
	if !resp.Success {
		notFound(c, resp.Message)
		return
	}

	summaries, err := services.Summarize(resp.Data)
	if err != nil {
		h.writeError(c, err)
		return
	}

	var buf bytes.Buffer
	if err := export.WritePriceWorkbook(&buf, resp, summaries); err != nil {
		h.writeError(c, err)
		return
	}

	filename := fmt.Sprintf("crop-prices-%s-%s.xlsx",
		strings.ToLower(strings.ReplaceAll(resp.State, " ", "-")),
		resp.FetchedAt.Format(models.DateLayout))
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, xlsxContentType, buf.Bytes())
}

func (h *Handler) ListStates(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"states": knownStates,
		"count":  len(knownStates),
	})
}

func (h *Handler) ListCrops(c *gin.Context) {
	var state *string
	if s := c.Query("state"); s != "" {
		state = &s
	}
	c.JSON(http.StatusOK, gin.H{
		"crops": knownCrops,
		"count": len(knownCrops),
		"state": state,
	})
}

// TestSource runs one live source once, bypassing retry and fallback.
func (h *Handler) TestSource(c *gin.Context) {
	source := c.Param("source")
	q, err := parsePriceQuery(c)
	if err != nil {
		h.writeError(c, err)
		return
	}

	start := time.Now()
	records, err := h.prices.FetchOne(c.Request.Context(), source, q)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"source":   source,
		"count":    len(records),
		"data":     records,
		"duration": time.Since(start).String(),
	})
}

// writeError maps the error taxonomy onto HTTP statuses.
func (h *Handler) writeError(c *gin.Context, err error) {
	var (
		inputErr *models.InputError
		netErr   *models.NetworkError
		orchErr  *models.OrchestrationError
	)
	status, code := http.StatusInternalServerError, "internal_error"
	message := fmt.Sprintf("Unexpected error: %v", err)

	switch {
	case errors.As(err, &inputErr):
		status, code, message = http.StatusBadRequest, "invalid_input", err.Error()
	case errors.As(err, &netErr):
		status, code, message = http.StatusServiceUnavailable, "network_error", fmt.Sprintf("Network error: %v", err)
	case errors.As(err, &orchErr):
		code, message = "fetch_failed", fmt.Sprintf("Error fetching prices: %v", err)
	}

	entry := h.log.WithError(err).WithField("path", c.Request.URL.Path)
	if status >= http.StatusInternalServerError {
		entry.Error("Request failed")
	} else {
		entry.Warn("Request rejected")
	}

	c.JSON(status, models.ErrorResponse{
		Error:   code,
		Code:    status,
		Message: message,
	})
}

func notFound(c *gin.Context, message string) {
	if message == "" {
		message = "No price data found for the given parameters"
	}
	c.JSON(http.StatusNotFound, models.ErrorResponse{
		Error:   "not_found",
		Code:    http.StatusNotFound,
		Message: message,
	})
}
