package main

import (
	"fmt"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/noah-isme/starboard-api/api/swagger"
	"github.com/noah-isme/starboard-api/internal/handler"
	"github.com/noah-isme/starboard-api/internal/middleware"
	"github.com/noah-isme/starboard-api/internal/models"
	"github.com/noah-isme/starboard-api/internal/repository"
	"github.com/noah-isme/starboard-api/internal/service"
	"github.com/noah-isme/starboard-api/pkg/cache"
	"github.com/noah-isme/starboard-api/pkg/config"
	"github.com/noah-isme/starboard-api/pkg/database"
	"github.com/noah-isme/starboard-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/starboard-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/starboard-api/pkg/middleware/requestid"
	"github.com/noah-isme/starboard-api/pkg/txn"
)

// @title Starboard API
// @version 0.1.0
// @description Classroom star gamification backend
// @BasePath /api/v1
// @schemes http

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect postgres", "error", err)
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Warnw("redis unavailable, caching and viewed flags degraded", "error", err)
		redisClient = nil
	}

	metricsSvc := service.NewMetricsService()

	runner := txn.NewRunner(db, logr,
		txn.WithAttempts(cfg.Ledger.TxAttempts),
		txn.WithBaseDelay(cfg.Ledger.TxBaseDelay),
		txn.WithRetryHook(metricsSvc.RecordTxRetry),
	)

	studentRepo := repository.NewStudentRepository(db)
	classRepo := repository.NewClassRepository(db)
	scoreRepo := repository.NewScoreRepository(db)
	draftRepo := repository.NewDraftRepository(db)
	awardRepo := repository.NewAwardLogRepository(db)
	snapshotRepo := repository.NewSnapshotRepository(db)
	eventRepo := repository.NewEventRepository(db)
	viewedRepo := repository.NewViewedRepository(redisClient)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)

	cacheSvc := service.NewCacheService(cacheRepo, metricsSvc, cfg.Standings.CacheTTL, logr, cfg.Standings.CacheEnabled && redisClient != nil)
	rolloverSvc := service.NewRolloverService(scoreRepo, snapshotRepo, classRepo, runner, logr)
	rankingSvc := service.NewRankingService(classRepo, scoreRepo, snapshotRepo, rolloverSvc, cacheSvc, metricsSvc, logr)
	ledgerSvc := service.NewLedgerService(studentRepo, scoreRepo, draftRepo, awardRepo, eventRepo, rankingSvc, rolloverSvc, runner, cacheSvc, metricsSvc, nil, logr)
	rosterSvc := service.NewRosterService(studentRepo, classRepo, nil, logr)
	authSvc := service.NewAuthService(service.AuthConfig{Secret: cfg.JWT.Secret}, logr)
	ceremonySvc := service.NewCeremonyService(rankingSvc, viewedRepo, nil, metricsSvc, nil, logr, service.CeremonyConfig{SessionTTL: cfg.Ceremony.SessionTTL})
	exportSvc := service.NewExportService(rankingSvc, nil, nil, logr)

	awardHandler := handler.NewAwardHandler(ledgerSvc)
	standingsHandler := handler.NewStandingsHandler(rankingSvc)
	ceremonyHandler := handler.NewCeremonyHandler(ceremonySvc)
	rosterHandler := handler.NewRosterHandler(rosterSvc)
	exportHandler := handler.NewExportHandler(exportSvc)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	r.GET("/ready", func(c *gin.Context) {
		if err := db.Ping(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})

	r.GET("/metrics", gin.WrapH(metricsSvc.Handler()))

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	api.Use(middleware.JWT(authSvc))

	staff := middleware.RequireRoles(models.RoleAdmin, models.RoleTeacher)
	adminOnly := middleware.RequireRoles(models.RoleAdmin)

	awards := api.Group("/awards", staff)
	{
		awards.POST("", awardHandler.Award)
		awards.GET("", awardHandler.List)
		awards.DELETE("/:id", awardHandler.Revoke)
		awards.PATCH("/:id/note", awardHandler.UpdateNote)
	}

	standings := api.Group("/standings", staff)
	{
		standings.GET("/classes", standingsHandler.Classes)
		standings.GET("/classes/history", standingsHandler.ClassHistory)
		standings.GET("/students", standingsHandler.Students)
		standings.GET("/students/history", standingsHandler.StudentHistory)
	}

	students := api.Group("/students", staff)
	{
		students.GET("", rosterHandler.ListStudents)
		students.POST("", adminOnly, rosterHandler.CreateStudent)
		students.GET("/:id", rosterHandler.GetStudent)
		students.GET("/:id/score", awardHandler.Score)
	}

	classes := api.Group("/classes", staff)
	{
		classes.GET("", rosterHandler.ListClasses)
		classes.POST("", adminOnly, rosterHandler.CreateClass)
		classes.GET("/:id", rosterHandler.GetClass)
		classes.GET("/:id/milestones", standingsHandler.Milestones)
	}

	if cfg.Ceremony.Enabled {
		ceremonies := api.Group("/ceremonies", staff)
		{
			ceremonies.POST("", ceremonyHandler.Start)
			ceremonies.GET("/:id", ceremonyHandler.Get)
			ceremonies.POST("/:id/advance", ceremonyHandler.Advance)
			ceremonies.POST("/:id/reveal-winner", ceremonyHandler.RevealWinner)
			ceremonies.POST("/:id/skip", ceremonyHandler.Skip)
			ceremonies.POST("/:id/retry", ceremonyHandler.Retry)
			ceremonies.POST("/:id/end", ceremonyHandler.End)
		}
	}

	if cfg.Exports.Enabled {
		exports := api.Group("/exports", staff)
		{
			exports.GET("/standings/classes", exportHandler.ClassStandings)
			exports.GET("/standings/students", exportHandler.StudentStandings)
		}
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
	if err := r.Run(addr); err != nil {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}
