package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"parishledger/internal/attendance"
	"parishledger/internal/auth"
	"parishledger/internal/config"
	"parishledger/internal/finance"
	"parishledger/internal/handler"
	"parishledger/internal/httpmiddleware"
	"parishledger/internal/payment"
	"parishledger/internal/queue"
	"parishledger/internal/registry"
	"parishledger/internal/scan"
	"parishledger/internal/status"
	"parishledger/internal/store"
)

func main() {
	cfg := config.Load()

	log, err := buildLogger(cfg.Env)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	if cfg.Env == "production" || cfg.Env == "prod" {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := runHTTP(cfg, log); err != nil {
		log.Fatal("http server failed", zap.Error(err))
	}
}

func buildLogger(env string) (*zap.Logger, error) {
	if env == "production" || env == "prod" {
		return zap.NewProduction()
	}
	return zap.NewDevelopment()
}

func runHTTP(cfg config.App, log *zap.Logger) error {
	db, err := store.NewDB(cfg.DatabaseURL, cfg.DBMaxOpenConns, cfg.DBMaxIdleConns)
	if err != nil {
		return err
	}
	defer db.Close()

	ctx := context.Background()
	if err := store.Migrate(ctx, db.Client); err != nil {
		return err
	}

	redisClient := store.NewRedis(cfg.RedisAddr)

	var bus queue.Queue
	if cfg.QueueBackend == "memory" {
		bus = queue.NewInMemory(64)
	} else {
		bus = queue.NewRedisQueue(redisClient.Client, "parishledger:events")
	}

	reg := registry.NewPGRegistry(db.Client)
	att := attendance.NewService(attendance.NewPGRepository(db.Client), reg)
	pay := payment.NewService(payment.NewPGRepository(db.Client), reg)
	resolver := status.NewResolver(reg, att, pay)
	agg := finance.NewAggregator(finance.NewPGRepository(db.Client))
	scans := scan.NewPool(att, reg, cfg.ScanDedupWindow)
	defer scans.CloseAll()

	h := handler.New(log, reg, att, pay, resolver, agg, scans, bus, cfg.OrgName)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gin.LoggerWithConfig(gin.LoggerConfig{
		SkipPaths: []string{"/healthz", "/metrics"},
	}))
	r.Use(corsMiddleware())
	r.Use(securityHeaders())
	r.Use(httpmiddleware.NewTokenBucket(cfg.RateLimitPerMin, cfg.RateLimitPerMin).GinMiddleware())

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.GET("/healthz", func(c *gin.Context) {
		redisHealthy := redisClient.Healthy(c.Request.Context())
		dbHealthy := db.Client.PingContext(c.Request.Context()) == nil
		code := http.StatusOK
		if !redisHealthy || !dbHealthy {
			code = http.StatusServiceUnavailable
		}
		c.JSON(code, gin.H{"status": "ok", "redis": redisHealthy, "db": dbHealthy})
	})

	// Scanner devices onboard here and use the returned token on /scan.
	r.POST("/v1/scanners/register", func(c *gin.Context) {
		var req struct {
			DeviceID string `json:"device_id" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if err := db.UpsertDevice(c.Request.Context(), req.DeviceID); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		tokens, err := auth.Issue(req.DeviceID, auth.RoleScanner, cfg.JWTIssuer, cfg.JWTSigningKey, cfg.AccessTTL, cfg.RefreshTTL)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "token issue failed"})
			return
		}
		c.JSON(http.StatusCreated, gin.H{
			"access_token":  tokens.AccessToken,
			"refresh_token": tokens.RefreshToken,
			"expires_at":    tokens.AccessExp.Unix(),
		})
	})

	authed := r.Group("/v1", auth.Bearer(cfg.JWTSigningKey, cfg.JWTIssuer))

	staff := authed.Group("", auth.RequireRole(auth.RoleStaff))
	staff.POST("/activities/:activityId/attendance", h.RecordAttendance)
	staff.POST("/activities/:activityId/payments", h.RecordPayment)

	device := authed.Group("", auth.RequireRole(auth.RoleScanner))
	device.POST("/activities/:activityId/scan", h.Scan)
	device.DELETE("/activities/:activityId/scan", h.EndScan)

	authed.GET("/activities/:activityId/attendance", h.Roster)
	authed.GET("/activities/:activityId/participants/:participantId/status", h.ParticipantStatus)
	authed.GET("/activities/:activityId/participants/:participantId/payments", h.PaymentHistory)
	authed.GET("/payments/:receiptId/receipt.pdf", h.ReceiptPDF)
	authed.GET("/finance/balance", h.Balance)
	authed.GET("/finance/balance/export", h.BalanceExport)

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info("starting server", zap.String("port", cfg.HTTPPort))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("server error", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn("server forced shutdown", zap.Error(err))
	}

	log.Info("server exited")
	return nil
}

// CORS middleware for browser requests.
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if origin == "" {
			origin = "*"
		}

		c.Header("Access-Control-Allow-Origin", origin)
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization")
		c.Header("Access-Control-Allow-Credentials", "true")
		c.Header("Access-Control-Max-Age", "86400")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// Security headers middleware.
func securityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("X-XSS-Protection", "1; mode=block")
		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")

		if gin.Mode() == gin.ReleaseMode {
			c.Header("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}

		c.Next()
	}
}
