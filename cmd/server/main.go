package main

import (
	"collaborative-docs/internal/auth"
	"collaborative-docs/internal/config"
	"collaborative-docs/internal/db"
	"collaborative-docs/internal/document"
	"collaborative-docs/internal/health"
	"collaborative-docs/internal/logger"
	"collaborative-docs/internal/middleware"
	"collaborative-docs/internal/realtime"
	"collaborative-docs/internal/session"
	"collaborative-docs/internal/user"
	"collaborative-docs/internal/worker"
	"collaborative-docs/redis"
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"google.golang.org/grpc"
)

func main() {
	// Load configuration
	config.LoadConfig()
	cfg := config.AppConfig

	log := logger.New(cfg.Environment)
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Connect to database
	database, err := db.Connect(cfg, log)
	if err != nil {
		log.Fatal("error connecting to db", zap.Error(err))
	}
	defer db.Close(database, log)

	// Migrate database schema
	if err := db.Migrate(database, log); err != nil {
		log.Fatal("migration failed", zap.Error(err))
	}

	// Initialize Redis; a nil client disables caching
	redisClient := redis.NewClient(ctx, cfg.RedisAddress, log)
	if redisClient != nil {
		defer redisClient.Close()
	}
	cache := redis.NewCache(redisClient, log.Named("cache"))

	verifier, err := newVerifier(cfg)
	if err != nil {
		log.Fatal("identity verifier", zap.Error(err))
	}
	defer verifier.Close()

	realtimeClient := realtime.NewClient(cfg.RealtimeBaseURL, cfg.RealtimeSecretKey, cfg.SessionTimeout)

	pool := worker.NewWorkerPool(cfg.WorkerCount, 256, 10*time.Second, log.Named("worker"))
	defer pool.Shutdown()

	// Initialize repository
	userRepo := user.NewRepository(database)
	docRepo := document.NewRepository(database)
	// Initialize service
	userService := user.NewService(userRepo, cache, cfg.ProfileSyncInterval, cfg.ListCacheTTL, log.Named("user"))
	docService := document.NewService(docRepo, cache, cfg.ListCacheTTL, realtimeClient, pool, log.Named("document"))
	gate := session.NewGate(docRepo, realtimeClient, cfg.SessionTimeout, log.Named("session"))
	// Initialize handler
	docHandler := document.NewHandler(docService)
	userHandler := user.NewHandler(userService)
	sessionHandler := session.NewHandler(gate)

	authMiddleware := &middleware.Auth{Verifier: verifier, Profiles: userService, Pool: pool}

	checker := health.NewChecker(2*time.Second, log.Named("health"))
	checker.Register("database", func(ctx context.Context) error {
		sqlDB, err := database.DB()
		if err != nil {
			return err
		}
		return sqlDB.PingContext(ctx)
	})
	checker.Register("cache", cache.Ping)
	go checker.Run(ctx, cfg.HealthInterval)

	// Initialize Gin router
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(middleware.Recovery(log), middleware.RequestLogger(log.Named("http")))

	// cors setting
	corsConfig := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: false,
	}

	if cfg.Environment == "development" {
		// Allow all origins in development
		corsConfig.AllowAllOrigins = true
	} else {
		// Restrict origins in production
		corsConfig.AllowOrigins = []string{cfg.FrontendAddress}
	}
	router.Use(cors.New(corsConfig))
	router.Use(middleware.ErrorHandler(log))

	router.GET("/healthz", checker.Handler)

	api := router.Group("/api")
	// realtime client auth endpoint; every refusal is a bodiless 401
	api.POST("/realtime-auth", authMiddleware.SessionAuthMiddleWare(), sessionHandler.Authorize)

	protected := api.Group("", authMiddleware.AuthMiddleWare())
	protected.GET("/profile", userHandler.GetProfile)
	protected.GET("/users", userHandler.SearchUsers)
	protected.POST("/documents", docHandler.Create)
	protected.GET("/documents", docHandler.ShowUserDocuments)
	protected.GET("/documents/:id", docHandler.ShowDocument)
	protected.PATCH("/documents/:id", docHandler.Rename)
	protected.DELETE("/documents/:id", docHandler.DeleteDocument)
	protected.GET("/rooms", docHandler.ShowRoomsInfo)

	// Server configuration
	server := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.ServerPort),
		Handler:           router.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	grpcServer := grpc.NewServer()
	checker.RegisterGRPC(grpcServer)
	grpcListener, err := net.Listen("tcp", fmt.Sprintf(":%s", cfg.GRPCPort))
	if err != nil {
		log.Fatal("grpc listen", zap.String("port", cfg.GRPCPort), zap.Error(err))
	}

	// Start servers
	go func() {
		log.Info("Server listening", zap.String("port", cfg.ServerPort))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("Server failed", zap.Error(err))
			stop()
		}
	}()
	go func() {
		log.Info("gRPC health listening", zap.String("port", cfg.GRPCPort))
		if err := grpcServer.Serve(grpcListener); err != nil {
			log.Error("gRPC server failed", zap.Error(err))
			stop()
		}
	}()

	// Graceful shutdown
	<-ctx.Done()
	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("Server shutdown error", zap.Error(err))
	}
	grpcServer.GracefulStop()

	log.Info("Server shutdown complete", zap.Int64("dropped_tasks", pool.Dropped()))
}

// newVerifier prefers the identity provider's published keys over a shared
// secret.
func newVerifier(cfg config.Config) (auth.Verifier, error) {
	if cfg.JWKSURL != "" {
		return auth.NewJWKSVerifier(cfg.JWKSURL)
	}
	if cfg.JWTSecret == "" {
		return nil, errors.New("no identity verification configured")
	}
	return auth.NewHMACVerifier(cfg.JWTSecret)
}
