package http

import (
	"time"

	"github.com/gin-gonic/gin"

	"exmora-backend/internal/ai"
	appsvc "exmora-backend/internal/app"
	"exmora-backend/internal/bootstrap"
	"exmora-backend/internal/platform/rabbitmq"
	"exmora-backend/internal/quota"
	"exmora-backend/internal/repository"
	"exmora-backend/internal/transport/http/handler"
	"exmora-backend/internal/transport/http/middleware"
)

func NewRouter(app *bootstrap.App) *gin.Engine {
	gin.SetMode(app.Config.App.GinMode)
	router := gin.New()
	router.Use(gin.Logger(), gin.Recovery())

	healthHandler := handler.NewHealthHandler(app)
	router.GET("/healthz", healthHandler.Check)

	sessionRepo := repository.NewSessionRepository(app.MySQL)
	usageRepo := repository.NewUsageRepository(app.MySQL)
	usagePublisher := rabbitmq.NewUsagePublisher(app.MQConn, app.Config.RabbitMQ.UsageEventQueue)
	limiter := quota.NewLimiter(app.Redis, app.Config.Quota.DailyAskLimit)

	chatConfig := ai.ChatConfig{
		BaseURL:     app.Config.LLM.BaseURL,
		APIKey:      app.Config.LLM.APIKey,
		Model:       app.Config.LLM.Model,
		Temperature: app.Config.Ask.Temperature,
		Referer:     app.Config.LLM.Referer,
		Title:       app.Config.LLM.Title,
	}
	policy := appsvc.ContextPolicy{
		PerDocumentChars: app.Config.Ask.PerDocumentChars,
		LegacyTextChars:  app.Config.Ask.LegacyTextChars,
		HistoryWindow:    app.Config.Ask.HistoryWindow,
	}

	askService := appsvc.NewAskService(
		sessionRepo,
		ai.NewOpenAICompatibleClient(),
		usagePublisher,
		chatConfig,
		policy,
		time.Duration(app.Config.Ask.TimeoutSeconds)*time.Second,
	)
	sessionService := appsvc.NewSessionService(sessionRepo)

	// A nil *s3.BlobStore must stay a nil interface inside the service.
	var blob appsvc.BlobStore
	if app.Blob != nil {
		blob = app.Blob
	}
	uploadService := appsvc.NewUploadService(
		sessionRepo,
		blob,
		usagePublisher,
		app.Config.Upload.MaxFiles,
		int64(app.Config.Upload.MaxFileSizeMB)<<20,
	)

	askHandler := handler.NewAskHandler(askService)
	sessionHandler := handler.NewSessionHandler(sessionService)
	uploadHandler := handler.NewUploadHandler(uploadService)
	usageHandler := handler.NewUsageHandler(limiter, usageRepo)

	v1 := router.Group("/api/v1")
	v1.Use(middleware.AuthJWT(app.Config.Auth.JWTSecret))
	v1.GET("/sessions", sessionHandler.List)
	v1.GET("/sessions/:id", sessionHandler.Get)
	v1.DELETE("/sessions/:id", sessionHandler.Delete)
	v1.POST("/upload", uploadHandler.Upload)
	v1.POST("/ask", middleware.AskQuota(limiter), askHandler.Ask)
	v1.GET("/usage", usageHandler.Today)

	return router
}
