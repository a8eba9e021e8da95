package main

import (
	"fmt"
	"net/http"
	"os"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"ahorrito/internal/config"
	"ahorrito/internal/database"
	"ahorrito/internal/handlers"
	"ahorrito/internal/logger"
	"ahorrito/internal/middleware"
	"ahorrito/internal/providers"
	"ahorrito/internal/services"
	"ahorrito/internal/validator"
)

// @title           Ahorrito API
// @version         1.0
// @description     Ahorrito is a personal finance application with savings challenges, gamified progression, and cached external market data.
// @termsOfService  http://swagger.io/terms/

// @host      localhost:8080
// @BasePath  /api/v1

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.

func main() {
	// Initialize logger (use ENV var if available, default to development)
	logger.Init(os.Getenv("ENV"))
	defer logger.Sync()

	if err := run(); err != nil {
		logger.Get().Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	log := logger.Get()

	// Load configuration
	appConfig, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	// Register custom request validators
	validator.Register()

	// Initialize database configuration
	dbConfig, err := database.NewConfig()
	if err != nil {
		return fmt.Errorf("failed to load database configuration: %w", err)
	}

	// Create database manager
	dbManager, err := database.NewManager(dbConfig)
	if err != nil {
		return fmt.Errorf("failed to create database manager: %w", err)
	}

	// Run migrations
	if err := dbManager.RunMigrations(); err != nil {
		return fmt.Errorf("failed to run database migrations: %w", err)
	}

	// Initialize services
	db := dbManager.DB()
	forex := providers.NewFrankfurterClient(&http.Client{Timeout: appConfig.ProviderTimeout})
	userService := services.NewUserService(db)
	accountService := services.NewAccountService(db)
	currencyService := services.NewCurrencyService(db, forex)
	transactionService := services.NewTransactionService(db, accountService, currencyService)
	goalService := services.NewGoalService(db)
	seriesService := services.NewSeriesCacheService(db)
	streakService := services.NewStreakService(db)
	gamificationService := services.NewGamificationService(db)
	generatorService := services.NewChallengeGeneratorService(db, currencyService)
	progressService := services.NewChallengeProgressService(db, currencyService, gamificationService, streakService)

	// Initialize handlers
	authHandler := handlers.NewAuthHandler(userService)
	accountHandler := handlers.NewAccountHandler(accountService)
	transactionHandler := handlers.NewTransactionHandler(transactionService, progressService)
	goalHandler := handlers.NewGoalHandler(goalService)
	challengeHandler := handlers.NewChallengeHandler(generatorService, progressService)
	gamificationHandler := handlers.NewGamificationHandler(gamificationService, progressService)
	seriesHandler := handlers.NewSeriesHandler(seriesService)

	// Initialize Gin router
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogging())
	router.Use(middleware.ErrorHandler())

	// CORS middleware
	router.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	})

	// Swagger documentation
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// Health check endpoint
	router.GET("/api/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// API v1 group
	v1 := router.Group("/api/v1")

	// Public routes
	auth := v1.Group("/auth")
	auth.POST("/register", authHandler.Register)
	auth.POST("/login", authHandler.Login)
	auth.POST("/refresh", authHandler.Refresh)

	// Protected routes
	protected := v1.Group("/")
	protected.Use(middleware.AuthMiddleware())

	// User profile
	protected.GET("/profile", authHandler.GetProfile)

	// Account routes
	accounts := protected.Group("/accounts")
	accounts.POST("", accountHandler.CreateAccount)
	accounts.GET("", accountHandler.GetAccounts)
	accounts.GET("/:id", accountHandler.GetAccount)

	// Transaction routes
	transactions := protected.Group("/transactions")
	transactions.POST("", transactionHandler.CreateTransaction)
	transactions.GET("", transactionHandler.GetTransactions)

	// Goal routes
	goals := protected.Group("/goals")
	goals.POST("", goalHandler.CreateGoal)
	goals.GET("", goalHandler.GetGoals)
	goals.GET("/:id", goalHandler.GetGoal)

	// Challenge routes
	challenges := protected.Group("/challenges")
	challenges.GET("", challengeHandler.GetChallenges)
	challenges.GET("/suggestions", challengeHandler.GetSuggestions)
	challenges.POST("/:id/accept", challengeHandler.AcceptChallenge)
	challenges.POST("/recompute", challengeHandler.RecomputeChallenges)

	// Gamification routes
	protected.GET("/gamification/profile", gamificationHandler.GetProfile)

	// Cached series routes
	series := protected.Group("/series")
	series.GET("/:name", seriesHandler.GetCurrent)
	series.GET("/:name/history", seriesHandler.GetHistory)

	log.Infof("Starting Ahorrito backend server on port %s", appConfig.Port)
	log.Infof("Swagger documentation available at http://localhost:%s/swagger/index.html", appConfig.Port)
	return router.Run(":" + appConfig.Port)
}
