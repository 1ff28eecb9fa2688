package router

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/psds-microservice/helpy/paths"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/psds-microservice/problem-portal/api"
	"github.com/psds-microservice/problem-portal/internal/handler"
	"github.com/psds-microservice/problem-portal/internal/logger"
)

// New wires the HTTP API. corsOrigins lists the hosting UI origins; empty
// allows none.
func New(problems *handler.ProblemHandler, corsOrigins []string, log *logger.Logger) http.Handler {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(requestLog(log))
	if len(corsOrigins) > 0 {
		r.Use(cors.New(cors.Config{
			AllowOrigins: corsOrigins,
			AllowMethods: []string{"GET", "POST", "OPTIONS"},
			AllowHeaders: []string{"Content-Type", "X-Requested-With", "X-UserToken"},
			MaxAge:       12 * time.Hour,
		}))
	}

	r.GET(paths.PathHealth, handler.Health)
	r.GET(paths.PathReady, handler.Ready)
	r.GET(paths.PathSwagger, func(c *gin.Context) { c.Redirect(http.StatusFound, paths.PathSwagger+"/") })
	r.GET(paths.PathSwagger+"/*any", func(c *gin.Context) {
		if strings.TrimPrefix(c.Param("any"), "/") == "openapi.json" {
			c.Data(http.StatusOK, "application/json", api.OpenAPISpec)
			return
		}
		if strings.TrimPrefix(c.Param("any"), "/") == "" {
			c.Request.URL.Path = paths.PathSwagger + "/index.html"
			c.Request.RequestURI = paths.PathSwagger + "/index.html"
		}
		ginSwagger.WrapHandler(swaggerFiles.Handler, ginSwagger.URL(paths.PathSwagger+"/openapi.json"))(c)
	})

	v1 := r.Group("/api/v1")
	{
		v1.GET("/problems", problems.List)
		v1.GET("/problems/stats", problems.Stats)
		v1.GET("/problems/:id/solutions", problems.Solutions)
		v1.POST("/problems/:id/solutions", problems.SubmitSolution)
		v1.POST("/solutions/:id/votes", problems.Vote)
		v1.GET("/choices/:entity/:field", problems.Choices)
	}

	return r
}

func requestLog(log *logger.Logger) gin.HandlerFunc {
	if log == nil {
		log = logger.Nop()
	}
	log = log.With("component", "http")
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		status := c.Writer.Status()
		kv := []interface{}{
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", status,
			"took", time.Since(start),
		}
		if status >= http.StatusInternalServerError {
			log.Error("request", kv...)
			return
		}
		log.Debug("request", kv...)
	}
}
