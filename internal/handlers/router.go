package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"mandi-price-api/internal/config"
	"mandi-price-api/internal/services"
	"mandi-price-api/pkg/cache"
)

const (
	serviceName    = "mandi-price-api"
	serviceVersion = "1.0.0"
)

// Handler serves the crop price API. cache may be nil.
type Handler struct {
	cfg     *config.Config
	prices  *services.PriceService
	cache   *cache.RedisCache
	limiter *RateLimiter
	log     logrus.FieldLogger
}

func New(cfg *config.Config, prices *services.PriceService, redisCache *cache.RedisCache, log logrus.FieldLogger) *Handler {
	return &Handler{
		cfg:     cfg,
		prices:  prices,
		cache:   redisCache,
		limiter: NewRateLimiter(cfg.Server.RateLimitRPS, cfg.Server.RateLimitBurst),
		log:     log,
	}
}

func (h *Handler) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(CORSMiddleware())
	r.Use(RequestIDMiddleware(h.log))
	r.Use(h.limiter.Middleware())

	r.GET("/", h.Health)
	r.GET("/health", h.Health)
	r.GET("/api/info", h.APIInfo)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := r.Group("/api/v1/crop-prices")
	{
		v1.GET("", h.GetCropPrices)
		v1.GET("/summary", h.GetSummary)
		v1.GET("/export", h.Export)
		v1.GET("/states", h.ListStates)
		v1.GET("/crops", h.ListCrops)
	}

	r.GET("/test/:source", h.TestSource)

	r.GET("/rate-limit/status", h.RateLimitStatus)
	r.GET("/cache/stats", h.CacheStats)
	r.GET("/cache/debug", h.CacheDebug)
	r.DELETE("/cache/flush", h.FlushCache)

	return r
}
