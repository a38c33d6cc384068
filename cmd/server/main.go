package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"mandi-price-api/internal/config"
	"mandi-price-api/internal/handlers"
	"mandi-price-api/internal/logger"
	"mandi-price-api/internal/mockdata"
	"mandi-price-api/internal/scrapers"
	"mandi-price-api/internal/services"
	"mandi-price-api/pkg/browser"
	"mandi-price-api/pkg/cache"
)

func main() {
	log := logger.GetLogger()

	if err := godotenv.Load(); err != nil {
		log.Info("No .env file found")
	}

	cfg, err := config.Load()
	if err != nil {
		log.WithError(err).Fatal("Failed to load configuration")
	}
	log = logger.New(cfg.Log.Level)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var renderer scrapers.PageRenderer
	if cfg.Sources.AgmarknetUseBrowser {
		r := browser.NewRenderer(cfg.Sources.ChromePath, cfg.Fetch.RequestTimeout, log)
		defer r.Close()
		renderer = r
	}

	sources := scrapers.NewSources(cfg.Sources, cfg.Fetch.RequestTimeout, renderer, log)
	priceService := services.NewPriceService(cfg.Fetch, mockdata.NewProvider(), log, sources...)

	redisCache := cache.NewRedisCache(ctx, cfg.Cache, log)
	if redisCache != nil {
		defer redisCache.Close()
		priceService.WithCache(redisCache)
	}

	if cfg.Log.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := handlers.New(cfg, priceService, redisCache, log).Router()

	srv := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: router,
	}

	go func() {
		log.WithField("config", cfg.Summary()).Infof("Starting server on :%s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("Failed to start server")
		}
	}()

	<-ctx.Done()
	log.Info("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("Server shutdown failed")
	}
}
