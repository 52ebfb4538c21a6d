package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"visitordesk/internal/auth"
	"visitordesk/internal/broadcast"
	"visitordesk/internal/cloudinary"
	"visitordesk/internal/config"
	"visitordesk/internal/handler"
	"visitordesk/internal/httpmiddleware"
	"visitordesk/internal/mailer"
	"visitordesk/internal/photo"
	"visitordesk/internal/store"
	"visitordesk/internal/visitor"
)

func main() {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	// Set Gin mode based on environment
	if cfg.Production() {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := runHTTP(cfg); err != nil {
		log.Fatalf("http server failed: %v", err)
	}
}

func runHTTP(cfg config.App) error {
	ctx := context.Background()

	var (
		repo visitor.Repository
		db   *store.DB
	)
	switch cfg.StoreBackend {
	case "memory":
		log.Println("using in-memory visitor store; entries are lost on restart")
		repo = visitor.NewMemoryRepository()
	default:
		if cfg.AutoMigrate {
			if err := store.Migrate("up", cfg.DatabaseURL); err != nil {
				return fmt.Errorf("migrate: %w", err)
			}
		}
		var err error
		db, err = store.NewDB(ctx, cfg.DatabaseURL)
		if err != nil {
			return err
		}
		defer db.Close()
		repo = visitor.NewPostgresRepository(db.Pool)
	}

	photos, err := newPhotoStore(ctx, cfg)
	if err != nil {
		return err
	}

	sender, err := mailer.New(mailer.Config{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.EmailUser,
		Password: cfg.EmailPass,
		From:     cfg.EmailFrom,
		Timeout:  cfg.SMTPTimeout,
	}, photos)
	if err != nil {
		return err
	}

	hub := broadcast.NewHub()
	defer hub.Close()

	tokens := auth.NewTokens(cfg.DecisionTokenKey, cfg.DecisionTokenIssuer, cfg.DecisionTokenTTL)
	svc := visitor.NewService(repo, photos, sender, hub, cfg.PublicBaseURL, visitor.WithTokens(tokens))

	var redisClient *store.Redis
	if cfg.RateLimitBackend == "redis" {
		redisClient = store.NewRedis(cfg.RedisAddr)
		defer redisClient.Close()
	}

	r := gin.New()

	// Recovery middleware
	r.Use(gin.Recovery())

	// Custom logger
	r.Use(gin.LoggerWithConfig(gin.LoggerConfig{
		SkipPaths: []string{"/healthz", "/metrics"},
	}))

	corsCfg := cors.DefaultConfig()
	corsCfg.AllowAllOrigins = true
	corsCfg.AllowHeaders = append(corsCfg.AllowHeaders, "Authorization")
	r.Use(cors.New(corsCfg))

	// Security headers
	r.Use(securityHeaders())

	// Rate limiting
	switch cfg.RateLimitBackend {
	case "redis":
		r.Use(httpmiddleware.RateLimit(httpmiddleware.NewRedisLimiter(redisClient.Client, cfg.RateLimitPerMin)))
	case "memory":
		r.Use(httpmiddleware.RateLimit(httpmiddleware.NewSimpleTokenBucket(cfg.RateLimitPerMin, cfg.RateLimitPerMin)))
	}

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.GET("/healthz", func(c *gin.Context) {
		status := http.StatusOK
		body := gin.H{"status": "ok", "store": cfg.StoreBackend, "viewers": hub.Count()}
		if db != nil {
			dbHealthy := db.Healthy(c.Request.Context())
			body["db"] = dbHealthy
			if !dbHealthy {
				status = http.StatusServiceUnavailable
			}
		}
		if redisClient != nil {
			body["redis"] = redisClient.Healthy(c.Request.Context())
		}
		if status != http.StatusOK {
			body["status"] = "degraded"
		}
		c.JSON(status, body)
	})

	r.GET("/ws", gin.WrapF(hub.ServeWS))

	if local, ok := photos.(*photo.LocalStore); ok {
		r.Static("/uploads", local.Dir)
	}

	handler.New(svc, cfg.FrontendURL, cfg.MaxUploadBytes).Register(r.Group("/api"), tokens)

	// Graceful shutdown
	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Printf("Starting server on :%s", cfg.HTTPPort)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	// Give outstanding requests 10 seconds to complete
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced shutdown: %v", err)
	}

	log.Println("Server exited")
	return nil
}

func newPhotoStore(ctx context.Context, cfg config.App) (photo.Store, error) {
	switch cfg.PhotoBackend {
	case "s3":
		client, err := photo.NewS3Client(ctx, photo.S3Options{
			Region:    cfg.S3Region,
			Endpoint:  cfg.S3Endpoint,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
		})
		if err != nil {
			return nil, err
		}
		log.Println("S3 photo storage configured:", cfg.S3Bucket)
		return photo.NewS3Store(client, cfg.S3Bucket, cfg.S3Prefix), nil
	case "cloudinary":
		log.Println("Cloudinary configured:", cfg.CloudinaryCloudName)
		client := cloudinary.New(cfg.CloudinaryCloudName, cfg.CloudinaryAPIKey, cfg.CloudinaryAPISecret, cfg.CloudinaryFolder)
		return photo.NewCloudinaryStore(client), nil
	default:
		return photo.NewLocalStore(cfg.UploadDir)
	}
}

// Security headers middleware
func securityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("X-XSS-Protection", "1; mode=block")
		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")

		// Only add HSTS in production
		if gin.Mode() == gin.ReleaseMode {
			c.Header("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}

		c.Next()
	}
}
