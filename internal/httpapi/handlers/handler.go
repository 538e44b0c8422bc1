package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/dev1d123/CyberDOJO/internal/catalog"
	"github.com/dev1d123/CyberDOJO/internal/classifier"
	"github.com/dev1d123/CyberDOJO/internal/common"
	"github.com/dev1d123/CyberDOJO/internal/config"
	"github.com/dev1d123/CyberDOJO/internal/game"
	"github.com/dev1d123/CyberDOJO/internal/httpapi/middleware"
	"github.com/dev1d123/CyberDOJO/internal/ledger"
	"github.com/dev1d123/CyberDOJO/internal/models"
	"github.com/dev1d123/CyberDOJO/internal/scanner"
	"github.com/dev1d123/CyberDOJO/internal/store/redisstore"
)

type Handler struct {
	DB      *gorm.DB
	Cfg     config.Config
	Catalog *catalog.Repo
	Ledger  *ledger.Ledger
	GameSvc *game.Service
}

func NewHandler(db *gorm.DB, cfg config.Config, cache *redisstore.Store, events game.OutcomePublisher) *Handler {
	cat := catalog.NewRepo(db, cache)
	rules := scanner.NewRepo(db, cache)
	lg := ledger.New(db)

	reg := classifier.NewRegistry()
	reg.Register("openrouter", func(ctx context.Context, model string) (classifier.Classifier, error) {
		m := strings.TrimSpace(model)
		if m == "" {
			m = cfg.ClassifierModel
		}
		return classifier.NewOpenRouterClassifier(cfg.ClassifierBaseURL, cfg.ClassifierAPIKey, m, cfg.ClassifierTimeout), nil
	})
	cls, err := reg.Get(context.Background(), "openrouter", cfg.ClassifierModel)
	if err != nil {
		panic(err)
	}

	svc := game.NewService(game.NewRepo(db), cat, rules, cls, lg, events, cfg.MaxAttempts)

	return &Handler{
		DB:      db,
		Cfg:     cfg,
		Catalog: cat,
		Ledger:  lg,
		GameSvc: svc,
	}
}

func (h *Handler) Ping(c *gin.Context) {
	common.OK(c, gin.H{"pong": true})
}

// currentUser loads the authenticated principal set by the auth middleware.
func (h *Handler) currentUser(c *gin.Context) (*models.User, bool) {
	v, ok := c.Get(middleware.UserIDKey)
	if !ok {
		common.Fail(c, http.StatusUnauthorized, 40100, "authentication required")
		return nil, false
	}
	uid, ok := v.(uint64)
	if !ok {
		common.Fail(c, http.StatusUnauthorized, 40100, "authentication required")
		return nil, false
	}

	var user models.User
	if err := h.DB.WithContext(c.Request.Context()).First(&user, uid).Error; err != nil {
		common.Fail(c, http.StatusUnauthorized, 40102, "unknown user")
		return nil, false
	}
	if !user.IsActive {
		common.Fail(c, http.StatusUnauthorized, 40103, "account disabled")
		return nil, false
	}
	return &user, true
}
