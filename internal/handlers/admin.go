package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"mandi-price-api/internal/models"
)

func (h *Handler) Health(c *gin.Context) {
	health := gin.H{
		"status":  "healthy",
		"service": serviceName,
		"version": serviceVersion,
	}

	if h.cache.IsAvailable() {
		health["cache"] = "redis connected"
	} else {
		health["cache"] = "redis unavailable"
	}
	c.JSON(http.StatusOK, health)
}

func (h *Handler) APIInfo(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"name":        "Mandi Crop Prices API",
		"version":     serviceVersion,
		"description": "Live mandi crop prices from AGMARKNET and e-NAM with retry, failover and mock fallback",
		"endpoints": map[string]string{
			"GET /api/v1/crop-prices":         "Fetch crop prices",
			"GET /api/v1/crop-prices/summary": "Per-crop modal price statistics",
			"GET /api/v1/crop-prices/export":  "Download prices as xlsx",
			"GET /api/v1/crop-prices/states":  "List states",
			"GET /api/v1/crop-prices/crops":   "List crops",
			"GET /test/:source":               "Run one source once",
			"GET /health":                     "Health check",
			"GET /cache/stats":                "Cache statistics",
			"GET /metrics":                    "Prometheus metrics",
		},
		"supported_sources": []string{models.SourceAgmarknet, models.SourceEnam},
		"config":            h.cfg.Summary(),
	})
}

func (h *Handler) RateLimitStatus(c *gin.Context) {
	ip := c.ClientIP()
	limiter := h.limiter.Get(ip)

	c.JSON(http.StatusOK, gin.H{
		"ip":               ip,
		"limit_per_second": float64(limiter.Limit()),
		"burst_capacity":   limiter.Burst(),
		"tokens_available": limiter.Tokens(),
		"next_token_at":    time.Now().Add(time.Duration(float64(time.Second) / float64(limiter.Limit()))),
	})
}

func (h *Handler) CacheStats(c *gin.Context) {
	if !h.cache.IsAvailable() {
		cacheUnavailable(c)
		return
	}
	c.JSON(http.StatusOK, h.cache.GetStats(c.Request.Context()))
}

func (h *Handler) CacheDebug(c *gin.Context) {
	if !h.cache.IsAvailable() {
		cacheUnavailable(c)
		return
	}

	ctx := c.Request.Context()
	keys := h.cache.GetAllKeys(ctx)
	keyDetails := make([]gin.H, 0, len(keys))
	for _, key := range keys {
		ttl := h.cache.GetKeyTTL(ctx, key)
		keyDetails = append(keyDetails, gin.H{
			"key":         key,
			"ttl_seconds": int(ttl.Seconds()),
			"expires_in":  ttl.String(),
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"total_keys": len(keys),
		"cache_keys": keyDetails,
		"timestamp":  time.Now().Format(time.RFC3339),
	})
}

func (h *Handler) FlushCache(c *gin.Context) {
	if !h.cache.IsAvailable() {
		cacheUnavailable(c)
		return
	}

	removed, err := h.cache.FlushCache(c.Request.Context())
	if err != nil {
		h.log.WithError(err).Error("Failed to flush cache")
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Error:   "flush_failed",
			Code:    http.StatusInternalServerError,
			Message: "failed to flush cache",
			Details: err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":   "cache flushed successfully",
		"removed":   removed,
		"timestamp": time.Now().Format(time.RFC3339),
	})
}

func cacheUnavailable(c *gin.Context) {
	c.JSON(http.StatusServiceUnavailable, models.ErrorResponse{
		Error:   "cache_unavailable",
		Code:    http.StatusServiceUnavailable,
		Message: "cache not available",
	})
}
