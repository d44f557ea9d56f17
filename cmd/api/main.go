package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "approvalflow/api/swagger" // swagger docs
	"approvalflow/internal/app"
	"approvalflow/internal/config"
	"approvalflow/internal/handler"
	"approvalflow/internal/logger"
	"approvalflow/internal/metrics"
	"approvalflow/internal/middleware"
	"approvalflow/internal/tracing"
	"approvalflow/internal/websocket"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

const version = "1.0.0"

// @title           Approval Workflow API
// @version         1.0
// @description     Multi-level approval requests with sequential approver chains, decision cancellation and overdue monitoring.
// @host            localhost:8080
// @BasePath        /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	cfg, err := config.Load("configs/.env")
	if err != nil {
		logger.Global().Fatal().Err(err).Msg("invalid configuration")
	}

	log := logger.InitGlobal(logger.Config{Level: cfg.LogLevel, Pretty: cfg.LogPretty})

	if cfg.TraceEnabled {
		if err := tracing.Init("approvalflow", version, cfg.TraceOutput); err != nil {
			log.Warn().Err(err).Msg("tracing disabled")
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Set up WebSocket Hub
	wsHub := websocket.NewHub(log)
	go wsHub.Run()

	application, err := app.New(ctx, cfg, log, wsHub, true)
	if err != nil {
		log.Fatal().Err(err).Msg("startup failed")
	}
	middleware.Init([]byte(cfg.JWTSecret), application.Roles)

	// Overdue monitor runs until shutdown
	monitorDone := make(chan struct{})
	go func() {
		application.Monitor.Run(ctx)
		close(monitorDone)
	}()

	if cfg.GinMode != "" {
		gin.SetMode(cfg.GinMode)
	}
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(log))

	// CORS configuration
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = cfg.CORSOrigins
	corsConfig.AllowCredentials = true
	corsConfig.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization", "Accept"}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	router.Use(cors.New(corsConfig))

	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	router.GET("/metrics", gin.WrapH(metrics.Handler()))
	router.GET("/health", func(c *gin.Context) {
		sqlDB, err := application.DB.DB()
		if err == nil {
			err = sqlDB.PingContext(c.Request.Context())
		}
		if err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "DOWN", "error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "OK"})
	})
	router.GET("/ws", func(c *gin.Context) {
		websocket.ServeWs(wsHub, c, []byte(cfg.JWTSecret))
	})

	// API Routing
	handler.NewApprovalHandler(application.Approvals, application.Comments).RegisterRoutes(router.Group(""))
	handler.NewMonitorHandler(application.Monitor).RegisterRoutes(router.Group(""))
	handler.NewAuditHandler(application.Audit).RegisterRoutes(router.Group(""))
	handler.NewUserHandler(application.Users).RegisterRoutes(router.Group(""))

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().Str("port", cfg.Port).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http shutdown failed")
	}
	<-monitorDone
	wsHub.Stop()
	if err := tracing.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("tracing shutdown failed")
	}
	if err := application.Close(); err != nil {
		log.Error().Err(err).Msg("database close failed")
	}
}

// requestLogger writes one structured line per request
func requestLogger(log *logger.Logger) gin.HandlerFunc {
	httpLog := log.Component("http")
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		ev := httpLog.Info()
		if c.Writer.Status() >= http.StatusInternalServerError {
			ev = httpLog.Error().Strs("errors", c.Errors.Errors())
		}
		ev.Str("method", c.Request.Method).
			Str("path", c.FullPath()).
			Int("status", c.Writer.Status()).
			Dur("latency", time.Since(start)).
			Str("user_id", c.GetString(middleware.ContextUserID)).
			Msg("request handled")
	}
}
