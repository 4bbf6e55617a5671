package handler

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/harshkolte01/tutor-bot/internal/middleware"
)

type RouterDeps struct {
	Auth      *AuthHandler
	Documents *DocumentHandler
	Dev       *DevHandler
	JWTSecret []byte
}

func RegisterRoutes(api *gin.RouterGroup, deps RouterDeps) {
	api.Use(middleware.RequestID())

	authLimit := middleware.RateLimit(time.Second)
	api.POST("/auth/register", authLimit, deps.Auth.Register)
	api.POST("/auth/login", authLimit, deps.Auth.Login)

	authGroup := api.Group("")
	authGroup.Use(middleware.JWTAuth(deps.JWTSecret))

	authGroup.POST("/documents/upload", deps.Documents.Upload)
	authGroup.POST("/documents/text", deps.Documents.CreateText)
	authGroup.GET("/documents", deps.Documents.List)
	authGroup.GET("/documents/:id", deps.Documents.Get)
	authGroup.DELETE("/documents/:id", deps.Documents.Delete)
	authGroup.GET("/documents/:id/ingestions/:ingestion_id/status", deps.Documents.Status)

	authGroup.GET("/dev/wrapper-smoke", deps.Dev.WrapperSmoke)
}
