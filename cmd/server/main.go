package main

import (
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/freedesk/freedesk/internal/handlers"
	"github.com/freedesk/freedesk/internal/helpscout"
	"github.com/freedesk/freedesk/internal/middleware"
	"github.com/freedesk/freedesk/internal/repositories"
	"github.com/freedesk/freedesk/internal/services"
	"github.com/freedesk/freedesk/pkg/config"
	"github.com/freedesk/freedesk/pkg/database"
	"github.com/gin-gonic/gin"
)

func main() {
	// Load configuration
	if err := config.Load(); err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	gin.SetMode(config.AppConfig.Server.Mode)

	// Initialize database
	if err := database.Init(config.AppConfig.Database.Path); err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer database.Close()

	// Initialize dependencies
	jobRepo := repositories.NewImportJobRepository(database.DB)
	inboxRepo := repositories.NewInboxRepository(database.DB)
	customerRepo := repositories.NewCustomerRepository(database.DB)
	conversationRepo := repositories.NewConversationRepository(database.DB)
	messageRepo := repositories.NewMessageRepository(database.DB)

	helpScoutConfig := config.AppConfig.HelpScout
	newClient := func() *helpscout.Client {
		return helpscout.NewClient(
			helpScoutConfig.BaseURL,
			helpScoutConfig.TokenURL,
			helpScoutConfig.AppID,
			helpScoutConfig.AppSecret,
		)
	}

	importService := services.NewImportService(jobRepo, inboxRepo, customerRepo, conversationRepo, messageRepo, newClient)
	reportService := services.NewReportService(jobRepo)

	// Initialize router
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogger())

	setupRoutes(router, importService, reportService, jobRepo)

	// Setup server
	server := &http.Server{
		Addr:         ":" + config.AppConfig.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(config.AppConfig.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(config.AppConfig.Server.WriteTimeout) * time.Second,
	}

	// Graceful shutdown
	go func() {
		log.Printf("Server starting on :%s", config.AppConfig.Server.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed to start: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")
	log.Println("Server stopped")
}

func setupRoutes(router *gin.Engine, importService *services.ImportService, reportService *services.ReportService, jobRepo *repositories.ImportJobRepository) {
	// Initialize handlers
	importHandler := handlers.NewImportHandler(importService, reportService, jobRepo)
	healthHandler := handlers.NewHealthHandler()

	api := router.Group("/api")
	{
		api.POST("/imports/helpscout", importHandler.StartImport)
		api.GET("/imports/jobs", importHandler.ListJobs)
		api.GET("/imports/jobs/:id", importHandler.GetJob)
		api.GET("/imports/jobs/:id/report", importHandler.GetJobReport)
	}

	// Health check endpoint
	router.GET("/health", healthHandler.HealthCheck)
}
