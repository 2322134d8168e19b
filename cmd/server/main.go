package main

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/spf13/viper"
	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/vamo-app/backend/docs"
	"github.com/vamo-app/backend/internal/ai"
	"github.com/vamo-app/backend/internal/database"
	"github.com/vamo-app/backend/internal/handlers"
	mW "github.com/vamo-app/backend/internal/middleware"
	"github.com/vamo-app/backend/internal/services"
)

// @title Vamo Backend API
// @version 1.0
// @description API for the Vamo builder platform: projects, builder chat and the pineapple reward ledger
// @host localhost:8080
// @BasePath /api/v1
// @schemes http https

func main() {
	// Initialize config
	viper.SetConfigFile(".env")
	viper.AutomaticEnv()
	viper.ReadInConfig()

	viper.SetEnvPrefix("")

	viper.BindEnv("database.host", "DATABASE_HOST")
	viper.BindEnv("database.port", "DATABASE_PORT")
	viper.BindEnv("database.user", "DATABASE_USER")
	viper.BindEnv("database.password", "DATABASE_PASSWORD")
	viper.BindEnv("database.name", "DATABASE_NAME")
	viper.BindEnv("database.ssl_mode", "DATABASE_SSL_MODE")

	viper.BindEnv("redis.host", "REDIS_HOST")
	viper.BindEnv("redis.port", "REDIS_PORT")
	viper.BindEnv("redis.password", "REDIS_PASSWORD")
	viper.BindEnv("redis.db", "REDIS_DB")

	viper.BindEnv("jwt.secret_key", "JWT_SECRET_KEY")
	viper.BindEnv("jwt.expiry_hours", "JWT_EXPIRY_HOURS")
	viper.BindEnv("argon2.time", "ARGON2_TIME")
	viper.BindEnv("argon2.memory", "ARGON2_MEMORY")
	viper.BindEnv("argon2.threads", "ARGON2_THREADS")
	viper.BindEnv("argon2.key_length", "ARGON2_KEY_LENGTH")
	viper.BindEnv("argon2.salt_length", "ARGON2_SALT_LENGTH")

	viper.BindEnv("gemini.api_key", "GEMINI_API_KEY")
	viper.BindEnv("rewards.max_per_hour", "REWARDS_MAX_PER_HOUR")
	viper.BindEnv("rewards.minimum_redemption", "REWARDS_MINIMUM_REDEMPTION")

	if err := viper.ReadInConfig(); err != nil {
		log.Printf("Config file not found, using defaults: %v", err)
	}

	// Initialize Swagger docs
	docs.SwaggerInfo.Title = "Vamo Backend API"
	docs.SwaggerInfo.Description = "API for the Vamo builder platform"
	docs.SwaggerInfo.Version = "1.0"
	docs.SwaggerInfo.Host = "localhost:8080"
	docs.SwaggerInfo.BasePath = "/api/v1"
	docs.SwaggerInfo.Schemes = []string{"http", "https"}

	// Initialize services
	db := database.InitDatabase()
	defer db.Close()

	redisClient := database.InitRedis()
	if redisClient != nil {
		defer redisClient.Close()
	}

	aiClient, err := ai.NewGeminiClient(context.Background())
	if err != nil {
		log.Fatalf("Failed to initialize Gemini client: %v", err)
	}
	defer aiClient.Close()

	rewardService := services.NewRewardService(db)
	redemptionService := services.NewRedemptionService(db)
	authService := services.NewAuthService(db, redisClient)
	projectService := services.NewProjectService(db, rewardService)
	chatService := services.NewChatService(db, rewardService, aiClient)
	offerService := services.NewOfferService(db, aiClient)
	listingService := services.NewListingService(db, aiClient)
	previewService := services.NewPreviewService(redisClient)
	voiceService := services.NewVoiceNoteService()
	defer voiceService.Close()

	rewardHandler := handlers.NewRewardHandler(rewardService)
	redeemHandler := handlers.NewRedeemHandler(redemptionService)

	// Initialize auth middleware with Redis
	mW.InitAuthMiddleware(redisClient)

	// Setup router
	r := chi.NewRouter()

	// Middleware
	r.Use(mW.SecurityHeaders)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(middleware.Timeout(60 * time.Second))

	// CORS
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Access-Control-Allow-Origin"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           86400,
	}))

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"status": "healthy"})
	})

	// Swagger documentation
	r.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("http://localhost:8080/swagger/doc.json"),
	))

	// Static file server for project screenshots
	r.Handle("/static/screenshots/*", http.StripPrefix("/static/screenshots/",
		mW.StaticFileServer("./static/screenshots")))

	// API routes
	r.Route("/api/v1", func(r chi.Router) {
		// Public endpoints (no auth required)
		r.Post("/auth/register", authService.Register)
		r.Post("/auth/login", authService.Login)
		r.Post("/auth/logout", authService.Logout)

		// Protected endpoints (auth required)
		r.Group(func(r chi.Router) {
			r.Use(mW.AuthMiddleware)

			r.Get("/auth/profile", authService.GetProfile)
			r.Put("/auth/profile", authService.UpdateProfile)

			// Reward ledger
			r.Post("/rewards", rewardHandler.GrantReward)
			r.Post("/redeem", redeemHandler.Redeem)
			r.Get("/wallet", rewardHandler.GetWallet)
			r.Get("/wallet/redemptions/{redemptionId}/voucher", redeemHandler.GetVoucher)

			// Projects
			r.Post("/projects", projectService.CreateProject)
			r.Get("/projects", projectService.ListProjects)
			r.Get("/projects/{projectId}", projectService.GetProject)
			r.Put("/projects/{projectId}", projectService.UpdateProject)

			// Builder chat
			r.Post("/chat", chatService.Chat)
			r.Post("/chat/transcribe", voiceService.TranscribeVoiceNote)

			// Valuation offers
			r.Post("/offers", offerService.CreateOffer)

			// Marketplace listings
			r.Post("/listings", listingService.CreateListing)
			r.Get("/listings", listingService.ListActive)
			r.Post("/listings/description", listingService.GenerateDescription)

			// Link preview
			r.Get("/preview", previewService.CheckEmbeddability)

			// Admin redemption lifecycle
			r.Get("/admin/redemptions", redeemHandler.ListPending)
			r.Put("/admin/redemptions/{redemptionId}/fulfill", redeemHandler.Fulfill)
			r.Put("/admin/redemptions/{redemptionId}/fail", redeemHandler.Fail)
		})
	})

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	// Start server
	server := &http.Server{
		Addr:         ":" + port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	go func() {
		log.Printf("Server starting on :%s", port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Server shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	log.Println("Server stopped")
}
