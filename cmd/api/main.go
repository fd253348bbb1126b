// main.go
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"

	"github.com/sreesaivardhan/SecureGov-sub000/internal/api/handlers"
	"github.com/sreesaivardhan/SecureGov-sub000/internal/api/middleware"
	"github.com/sreesaivardhan/SecureGov-sub000/internal/blob"
	"github.com/sreesaivardhan/SecureGov-sub000/internal/config"
	"github.com/sreesaivardhan/SecureGov-sub000/internal/cron"
	"github.com/sreesaivardhan/SecureGov-sub000/internal/db"
	"github.com/sreesaivardhan/SecureGov-sub000/internal/email"
	"github.com/sreesaivardhan/SecureGov-sub000/internal/repository"
	"github.com/sreesaivardhan/SecureGov-sub000/internal/service"
)

func main() {
	// ============================================
	// Load environment variables
	// ============================================
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	// ============================================
	// Load configuration
	// ============================================
	cfg := config.Load()

	// ============================================
	// Set Gin mode
	// ============================================
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	// ============================================
	// Run Database Migrations FIRST
	// ============================================
	log.Println("🔄 Running database migrations...")
	migrationsPath := "./internal/db/migrations"
	if err := db.RunMigrations(cfg.StorageURI, migrationsPath); err != nil {
		log.Fatalf("❌ Migration failed: %v", err)
	}
	log.Println("✅ Database migrations completed")

	// ============================================
	// Initialize PostgreSQL (pgxpool + sqlx)
	// ============================================
	pg, err := db.NewPostgresDB(cfg.StorageURI)
	if err != nil {
		log.Fatalf("❌ Failed to create pgx pool: %v", err)
	}
	defer pg.Close()

	sqlDB, err := sqlx.Open("pgx", cfg.StorageURI)
	if err != nil {
		log.Fatalf("❌ Failed to open sql DB: %v", err)
	}
	defer sqlDB.Close()

	if err := sqlDB.Ping(); err != nil {
		log.Fatalf("❌ Failed to ping sql DB: %v", err)
	}

	log.Println("✅ Connected to PostgreSQL")

	// ============================================
	// Initialize Repositories
	// ============================================
	repos := repository.NewRepositories(pg.Pool, sqlDB)
	log.Println("📦 Repositories initialized")

	// ============================================
	// Initialize Redis (optional, backs rate limiting)
	// ============================================
	var redisDB *db.RedisDB
	if cfg.RedisURL != "" {
		redisDB, err = db.NewRedisDB(cfg.RedisURL)
		if err != nil {
			log.Printf("⚠️ Failed to connect to Redis: %v (continuing without rate limiting)", err)
			redisDB = nil
		} else {
			defer redisDB.Close()
			log.Println("⚡ Redis enabled")
		}
	}

	// ============================================
	// Initialize Email Service (optional)
	// ============================================
	var emailSvc *email.Service
	if cfg.SMTPHost != "" {
		emailSvc = email.NewService(&email.Config{
			Host:        cfg.SMTPHost,
			Port:        cfg.SMTPPort,
			User:        cfg.SMTPUser,
			Password:    cfg.SMTPPassword,
			From:        cfg.SMTPFrom,
			FromName:    cfg.SMTPFromName,
			UseTLS:      cfg.SMTPUseTLS,
			FrontendURL: cfg.FrontendURL,
		})
		log.Println("📧 Email service initialized")
	} else {
		log.Println("⚠️  Email not configured (SMTP_HOST not set)")
	}

	// ============================================
	// Initialize Blob Storage
	// ============================================
	blobs, err := blob.NewFSStore(cfg.BlobDir)
	if err != nil {
		log.Fatalf("❌ Failed to initialize blob storage: %v", err)
	}
	log.Printf("🗄️  Blob storage at %s", cfg.BlobDir)

	// ============================================
	// Initialize All Services
	// ============================================
	services := service.NewServices(service.ServiceDeps{
		Config:   cfg,
		Repos:    repos,
		EmailSvc: emailSvc,
		Blobs:    blobs,
		Cache:    redisDB,
	})
	log.Println("✨ All services initialized")

	// ============================================
	// Initialize Handlers
	// ============================================
	h := handlers.NewHandlers(services, cfg)

	// ============================================
	// Initialize Cron Scheduler
	// ============================================
	cronScheduler := cron.NewScheduler(services, repos.Families)
	cronScheduler.Start()
	defer cronScheduler.Stop()

	// ============================================
	// Create Gin Router
	// ============================================
	r := gin.Default()

	// Configure CORS
	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{cfg.FrontendURL, "http://localhost:3000", "http://localhost:5173"},
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:    []string{"Content-Length", "Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	limiter := middleware.NewRateLimiter(redisDB)

	// Health check
	r.GET("/health", func(c *gin.Context) {
		status := "healthy"
		if services.Families.Degraded() {
			status = "degraded"
		}
		c.JSON(http.StatusOK, gin.H{
			"status":    status,
			"timestamp": time.Now(),
			"database":  "connected",
			"cache":     getCacheStatus(redisDB),
			"email":     getEmailStatus(emailSvc),
			"degraded":  services.Families.Degraded(),
		})
	})

	// API routes
	api := r.Group("/api")
	api.Use(middleware.AuthMiddleware(services.Auth, services.Users, limiter))
	api.Use(middleware.RateLimitMiddleware(limiter))
	{
		// User routes
		users := api.Group("/users")
		{
			users.POST("/sync", h.User.Sync)
			users.GET("/lookup", h.User.Lookup)
		}

		// Family group routes
		family := api.Group("/family")
		{
			family.POST("/create", h.Family.Create)
			family.GET("/my-groups", h.Family.MyGroups)
			family.GET("/invitations/pending", h.Family.PendingInvitations)
			family.POST("/accept-invitation/:token", h.Family.Accept)
			family.POST("/reject-invitation/:token", h.Family.Reject)

			family.GET("/:group_id", h.Family.Get)
			family.PUT("/:group_id", h.Family.Update)
			family.DELETE("/:group_id", h.Family.Archive)
			family.POST("/:group_id/invite", h.Family.Invite)
			family.DELETE("/:group_id/invitations/:invitation_id", h.Family.CancelInvitation)
			family.POST("/:group_id/invitations/:invitation_id/resend", h.Family.ResendInvitation)
			family.DELETE("/:group_id/members/:user_id", h.Family.RemoveMember)
			family.PUT("/:group_id/members/:user_id/role", h.Family.UpdateRole)
		}

		// Document routes
		documents := api.Group("/documents")
		{
			documents.POST("", h.Document.Create)
			documents.GET("", h.Document.List)
			documents.GET("/:id", h.Document.Get)
			documents.PUT("/:id", h.Document.Update)
			documents.DELETE("/:id", h.Document.Delete)
			documents.POST("/:id/restore", h.Document.Restore)
			documents.GET("/:id/download", h.Document.Download)
			documents.POST("/:id/share", h.Document.Share)
			documents.DELETE("/:id/share", h.Document.Unshare)
			documents.GET("/:id/sharing", h.Document.Sharing)
		}
	}

	// ============================================
	// Start Server with Graceful Shutdown
	// ============================================
	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: r,
	}

	go func() {
		log.Printf("🚀 Server starting on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("❌ Server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("🛑 Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("❌ Server forced to shutdown: %v", err)
	}

	log.Println("👋 Server exited")
}

func getCacheStatus(redisDB *db.RedisDB) string {
	if redisDB == nil {
		return "disabled"
	}
	return "connected"
}

func getEmailStatus(emailSvc *email.Service) string {
	if emailSvc == nil {
		return "disabled"
	}
	return "configured"
}
