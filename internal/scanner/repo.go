package scanner

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/dev1d123/CyberDOJO/internal/store/redisstore"
)

const (
	cacheKeyActive = "scanner:rules:active"
	cacheTTL       = 5 * time.Minute
)

type Repo struct {
	db    *gorm.DB
	cache *redisstore.Store // optional
}

func NewRepo(db *gorm.DB, cache *redisstore.Store) *Repo {
	return &Repo{db: db, cache: cache}
}

// ListActive returns active rules in catalog order (id ascending); Scan's
// first-match semantics depend on that ordering.
func (r *Repo) ListActive(ctx context.Context) ([]DetectionRule, error) {
	if r.cache != nil {
		var cached []DetectionRule
		if err := r.cache.GetJSON(ctx, cacheKeyActive, &cached); err == nil {
			return cached, nil
		}
	}

	var rules []DetectionRule
	if err := r.db.WithContext(ctx).
		Where("is_active = ?", true).
		Order("id ASC").
		Find(&rules).Error; err != nil {
		return nil, err
	}

	if r.cache != nil {
		_ = r.cache.SetJSON(ctx, cacheKeyActive, rules, cacheTTL)
	}
	return rules, nil
}
