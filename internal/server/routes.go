package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/openmined/skywriter/internal/auth"
	"github.com/openmined/skywriter/internal/server/handlers/files"
	"github.com/openmined/skywriter/internal/server/middlewares"
	"github.com/openmined/skywriter/internal/server/store"
	"github.com/openmined/skywriter/internal/version"
)

func SetupRoutes(config *Config, st store.Store, verifier *auth.Verifier) (http.Handler, error) {
	r := gin.New()
	r.MaxMultipartMemory = 8 << 20 // 8 MiB, larger uploads spill to disk

	filesH := files.New(st)

	r.Use(middlewares.Logger())
	r.Use(gin.Recovery())
	r.Use(middlewares.GZIP())
	r.Use(middlewares.CORS())
	if config.HTTP.TLS() {
		r.Use(middlewares.HSTS())
	}

	r.GET("/", IndexHandler)
	r.GET("/healthz", HealthHandler)

	v1 := r.Group("/api/v1")
	if config.HTTP.RateLimit != "" {
		limiter, err := middlewares.RateLimiter(config.HTTP.RateLimit)
		if err != nil {
			return nil, err
		}
		v1.Use(limiter)
	}
	v1.Use(middlewares.TokenAuth(verifier))
	{
		v1.GET("/info/file/*identity", filesH.FileInfo)
		v1.GET("/info/dir/*identity", filesH.DirInfo)
		v1.GET("/file/*identity", filesH.Download)
		v1.PUT("/file/*identity", filesH.Upload)
	}

	r.NoRoute(func(c *gin.Context) {
		c.PureJSON(http.StatusNotFound, gin.H{
			"error": "not found",
		})
	})

	r.HandleMethodNotAllowed = true
	r.NoMethod(func(c *gin.Context) {
		c.PureJSON(http.StatusMethodNotAllowed, gin.H{
			"error": "method not allowed",
		})
	})

	return r.Handler(), nil
}

func IndexHandler(ctx *gin.Context) {
	ctx.String(http.StatusOK, version.DetailedWithApp())
}

func HealthHandler(ctx *gin.Context) {
	ctx.PureJSON(http.StatusOK, gin.H{
		"status": "ok",
	})
}

func init() {
	gin.SetMode(gin.ReleaseMode)
}
