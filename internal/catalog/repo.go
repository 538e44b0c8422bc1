package catalog

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/dev1d123/CyberDOJO/internal/store/redisstore"
)

var (
	ErrNoActiveScenario = errors.New("catalog: no active scenario")
	ErrScenarioNotFound = errors.New("catalog: scenario not found or inactive")
)

const (
	cacheKeyActive = "catalog:scenarios:active"
	cacheTTL       = 5 * time.Minute
)

type Repo struct {
	db    *gorm.DB
	cache *redisstore.Store // optional
}

func NewRepo(db *gorm.DB, cache *redisstore.Store) *Repo {
	return &Repo{db: db, cache: cache}
}

// ListActive returns active scenarios ordered by difficulty then id.
// Served from the redis cache when available; the DB is the source of truth.
func (r *Repo) ListActive(ctx context.Context) ([]Scenario, error) {
	if r.cache != nil {
		var cached []Scenario
		if err := r.cache.GetJSON(ctx, cacheKeyActive, &cached); err == nil {
			return cached, nil
		}
	}

	var scenarios []Scenario
	if err := r.db.WithContext(ctx).
		Where("is_active = ?", true).
		Order("difficulty_level ASC, id ASC").
		Find(&scenarios).Error; err != nil {
		return nil, err
	}

	if r.cache != nil {
		_ = r.cache.SetJSON(ctx, cacheKeyActive, scenarios, cacheTTL)
	}
	return scenarios, nil
}

// GetActive resolves an explicitly requested scenario id. Inactive and
// missing scenarios are both reported as not found.
func (r *Repo) GetActive(ctx context.Context, id uint64) (*Scenario, error) {
	var s Scenario
	err := r.db.WithContext(ctx).
		Where("id = ? AND is_active = ?", id, true).
		First(&s).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrScenarioNotFound
		}
		return nil, err
	}
	return &s, nil
}

// PickNext selects the scenario for a new session: among active scenarios,
// skip those the user has already won and take the lowest difficulty
// (tie-break: lowest id). When the user has won everything, fall back to the
// globally easiest active scenario.
func (r *Repo) PickNext(ctx context.Context, userID uint64) (*Scenario, error) {
	scenarios, err := r.ListActive(ctx)
	if err != nil {
		return nil, err
	}
	if len(scenarios) == 0 {
		return nil, ErrNoActiveScenario
	}

	var wonIDs []uint64
	if err := r.db.WithContext(ctx).
		Table("game_sessions").
		Where("user_id = ? AND outcome = ?", userID, "won").
		Pluck("scenario_id", &wonIDs).Error; err != nil {
		return nil, err
	}

	won := make(map[uint64]bool, len(wonIDs))
	for _, id := range wonIDs {
		won[id] = true
	}

	// ListActive is already ordered by (difficulty, id).
	for i := range scenarios {
		if !won[scenarios[i].ID] {
			return &scenarios[i], nil
		}
	}
	return &scenarios[0], nil
}
