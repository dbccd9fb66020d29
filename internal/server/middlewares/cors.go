package middlewares

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

func CORS() gin.HandlerFunc {
	return cors.New(cors.Config{
		AllowAllOrigins:  true,
		AllowMethods:     []string{"GET", "PUT", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type", "X-Skywriter-Version", "X-Skywriter-Device"},
		ExposeHeaders:    []string{"X-Skywriter-Digest", "X-Skywriter-Seconds"},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	})
}
