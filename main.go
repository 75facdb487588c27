package main

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"neuro-news/config"
	"neuro-news/models"
	"neuro-news/providers/anthropic"
	"neuro-news/providers/europepmc"
	"neuro-news/providers/openalex"
	"neuro-news/providers/pubmed"
	"neuro-news/services"
)

var (
	newArticlesCounter      prometheus.Counter
	enrichedArticlesCounter prometheus.Counter
)

func init() {
	newArticlesCounter = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "new_articles_added_total",
			Help: "Total number of new articles added to the database.",
		},
	)
	enrichedArticlesCounter = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "articles_enriched_total",
			Help: "Total number of articles enriched with an AI summary.",
		},
	)
	prometheus.MustRegister(newArticlesCounter, enrichedArticlesCounter)
}

// bearerAuthMiddleware prüft das Shared-Secret der Cron-Trigger per exaktem
// Vergleich. Abgelehnte Requests lösen keinerlei externe Calls aus.
func bearerAuthMiddleware(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header != "Bearer "+cfg.CronSecret {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}
		c.Next()
	}
}

func main() {
	logging, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("can't initialize zap logger: %v", err)
	}
	defer logging.Sync()

	cfg, err := config.Load()
	if err != nil {
		logging.Fatal("Config load error", zap.Error(err))
	}

	db, err := gorm.Open(postgres.Open(cfg.DSN()), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		logging.Fatal("Failed to connect to database", zap.Error(err))
	}
	logging.Info("Successfully connected to database.")

	logging.Info("Running database auto-migration...")
	if err := db.AutoMigrate(&models.Article{}, &models.Journal{}); err != nil {
		logging.Fatal("Auto-migration failed", zap.Error(err))
	}

	// Setup Services
	pubmedClient := pubmed.NewFetcher(cfg, logging)
	citationClient := europepmc.NewClient(cfg, logging)
	openalexClient := openalex.NewClient(cfg, logging)
	llmClient := anthropic.NewClient(cfg, logging)

	ingestService := services.NewIngestService(cfg, db, logging, pubmedClient, citationClient, openalexClient)
	enrichService := services.NewEnrichService(cfg, db, logging, llmClient)

	// Setup Router
	router := gin.Default()
	router.Use(gin.Recovery())
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy", "service": "neuro-news"})
	})

	setupCronRoutes(router, cfg, ingestService, enrichService)

	// Setup Cron
	cronScheduler := cron.New()
	cronScheduler.AddFunc(cfg.FetchCronSchedule, func() {
		logging.Info("Running scheduled ingestion job...")
		res := ingestService.Run(context.Background())
		if !res.OK {
			logging.Error("Scheduled ingestion failed", zap.String("error", res.Error))
			return
		}
		newArticlesCounter.Add(float64(res.NewArticles))
		logging.Info("Scheduled ingestion completed", zap.Int("new_articles", res.NewArticles))
	})
	cronScheduler.AddFunc(cfg.EnrichCronSchedule, func() {
		logging.Info("Running scheduled enrichment job...")
		res := enrichService.Run(context.Background())
		if !res.OK {
			logging.Error("Scheduled enrichment failed", zap.String("error", res.Error))
			return
		}
		enrichedArticlesCounter.Add(float64(res.Enriched))
		logging.Info("Scheduled enrichment completed", zap.Int("enriched", res.Enriched))
	})
	cronScheduler.Start()

	logging.Info("Starting server", zap.String("port", cfg.HTTPPort))
	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadTimeout:       30 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      120 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	if err := srv.ListenAndServe(); err != nil {
		logging.Fatal("Failed to run server", zap.Error(err))
	}
}

// setupCronRoutes konfiguriert die authentifizierten Batch-Trigger. Die
// Läufe laufen synchron; der Aufrufer erhält das Ergebnis samt Log.
func setupCronRoutes(router *gin.Engine, cfg *config.Config,
	ingestService *services.IngestService, enrichService *services.EnrichService) {
	rg := router.Group("/cron")
	rg.Use(bearerAuthMiddleware(cfg))

	ingestHandler := func(c *gin.Context) {
		res := ingestService.Run(c.Request.Context())
		if !res.OK {
			c.JSON(http.StatusInternalServerError, res)
			return
		}
		newArticlesCounter.Add(float64(res.NewArticles))
		c.JSON(http.StatusOK, res)
	}
	enrichHandler := func(c *gin.Context) {
		res := enrichService.Run(c.Request.Context())
		if !res.OK {
			c.JSON(http.StatusInternalServerError, res)
			return
		}
		enrichedArticlesCounter.Add(float64(res.Enriched))
		c.JSON(http.StatusOK, res)
	}
	backfillHandler := func(c *gin.Context) {
		res := ingestService.BackfillISSNs(c.Request.Context())
		if !res.OK {
			c.JSON(http.StatusInternalServerError, res)
			return
		}
		c.JSON(http.StatusOK, res)
	}

	// GET zusätzlich zu POST, weil externe Cron-Dienste oft nur GET können.
	rg.GET("/fetch-articles", ingestHandler)
	rg.POST("/fetch-articles", ingestHandler)
	rg.GET("/enrich-articles", enrichHandler)
	rg.POST("/enrich-articles", enrichHandler)
	rg.GET("/backfill-issn", backfillHandler)
	rg.POST("/backfill-issn", backfillHandler)
}
