package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/dev1d123/CyberDOJO/internal/common"
	"github.com/dev1d123/CyberDOJO/internal/config"
	"github.com/dev1d123/CyberDOJO/internal/game"
	"github.com/dev1d123/CyberDOJO/internal/httpapi/handlers"
	"github.com/dev1d123/CyberDOJO/internal/httpapi/middleware"
	"github.com/dev1d123/CyberDOJO/internal/store/redisstore"
)

func NewRouter(db *gorm.DB, cfg config.Config, cache *redisstore.Store, events game.OutcomePublisher) *gin.Engine {
	r := gin.New()
	r.HandleMethodNotAllowed = true
	r.Use(gin.Logger())
	r.Use(middleware.Recovery())
	r.Use(middleware.RequestID())

	r.NoRoute(func(c *gin.Context) {
		common.Fail(c, http.StatusNotFound, 40400, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		common.Fail(c, http.StatusMethodNotAllowed, 40500, "method not allowed")
	})

	h := handlers.NewHandler(db, cfg, cache, events)

	r.GET("/ping", h.Ping)

	r.POST("/users", h.Register)
	r.POST("/login", h.Login)

	authGroup := r.Group("/")
	authGroup.Use(middleware.AuthRequired(cfg.JWTSecret))

	authGroup.GET("/me", h.Me)
	authGroup.GET("/scenarios", h.ListScenarios)
	authGroup.GET("/transactions", h.ListTransactions)

	sim := authGroup.Group("/simulation")
	sim.POST("/session/start", h.StartSession)
	sim.POST("/chat", h.Chat)
	sim.GET("/session/resume", h.ResumeSession)
	sim.GET("/session/:session_id/messages", h.SessionMessages)

	return r
}
