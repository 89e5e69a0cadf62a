package api

import (
	"alcyxob/video-catalog/internal/domain"
	"alcyxob/video-catalog/internal/service"
	"alcyxob/video-catalog/internal/storage"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// Deps carries everything the HTTP layer needs.
type Deps struct {
	Auth           service.AuthService
	Catalog        service.CatalogService
	Engagement     service.EngagementService
	Ingest         service.IngestService
	LocalMedia     *storage.LocalStorage // nil unless the local backend is in use
	MetricsHandler http.Handler
	MaxUploadBytes int64
	Logger         logrus.FieldLogger
}

func SetupRoutes(router *gin.Engine, deps Deps) {
	authHandler := NewAuthHandler(deps.Auth, deps.Logger)
	videoHandler := NewVideoHandler(deps.Catalog, deps.Engagement, deps.Ingest, deps.MaxUploadBytes, deps.Logger)
	authMiddleware := AuthMiddleware(deps.Auth)

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if deps.MetricsHandler != nil {
		router.GET("/metrics", gin.WrapH(deps.MetricsHandler))
	}
	if deps.LocalMedia != nil {
		router.GET("/media/:key", NewMediaHandler(deps.LocalMedia, deps.Logger).Serve)
	}

	apiGroup := router.Group("/api")
	{
		authGroup := apiGroup.Group("/auth")
		{
			authGroup.POST("/signup", authHandler.Signup)
			authGroup.POST("/login", authHandler.Login)
		}

		videos := apiGroup.Group("/videos")
		{
			videos.GET("", videoHandler.ListVideos)
			videos.GET("/:id", videoHandler.GetVideo)

			videos.POST("/upload", authMiddleware, RoleMiddleware(domain.RoleCreator), videoHandler.Upload)
			videos.POST("/:id/comment", authMiddleware, videoHandler.AddComment)
			videos.POST("/:id/rating", authMiddleware, videoHandler.AddRating)
		}
	}
}
