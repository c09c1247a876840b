package server

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"forwardlab/internal/platform/logger"
	"forwardlab/internal/session"
)

var defaultAllowOrigins = []string{
	"http://localhost:3000",
	"http://localhost:5173",
}

type RouterConfig struct {
	Sessions     *session.Manager
	Logger       *logger.Logger
	AllowOrigins []string
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	log := cfg.Logger
	if log == nil {
		log = logger.Nop()
	}
	origins := cfg.AllowOrigins
	if len(origins) == 0 {
		origins = defaultAllowOrigins
	}

	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(log))
	router.Use(cors.New(cors.Config{
		AllowOrigins: origins,
		AllowMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowHeaders: []string{"Content-Type", "X-Requested-With"},
	}))

	h := NewLessonHandler(cfg.Sessions, log)

	router.GET("/healthz", h.Health)
	api := router.Group("/api")
	{
		api.GET("/lesson", h.Lesson)
		api.POST("/sessions", h.CreateSession)
		api.GET("/sessions", h.ListSessions)
		api.GET("/sessions/:id", h.GetSession)
		api.DELETE("/sessions/:id", h.DeleteSession)
		api.POST("/sessions/:id/steps/:step/validate", h.Validate)
		api.POST("/sessions/:id/reset", h.Reset)
	}

	return router
}

func requestLogger(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		log.Debug("request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
		)
	}
}
