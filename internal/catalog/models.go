package catalog

import "time"

// Scenario is administrator-managed reference data. The game engine never
// mutates it; in-progress sessions read their frozen Snapshot instead.
type Scenario struct {
	ID              uint64    `gorm:"primaryKey;autoIncrement" json:"scenario_id"`
	Name            string    `gorm:"type:varchar(120);uniqueIndex;not null" json:"name"`
	Description     string    `gorm:"type:text" json:"description"`
	AntagonistGoal  string    `gorm:"type:text;not null" json:"antagonist_goal"`
	DifficultyLevel int       `gorm:"not null;default:1;index" json:"difficulty_level"`
	BasePoints      int64     `gorm:"not null;default:100" json:"base_points"`
	ThreatType      string    `gorm:"type:varchar(50)" json:"threat_type"`
	IsActive        bool      `gorm:"not null;default:true;index" json:"is_active"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

func (Scenario) TableName() string { return "scenarios" }

// Snapshot is the immutable projection of a scenario frozen into a session at
// start time, so later catalog edits cannot change an in-progress session's
// stakes.
type Snapshot struct {
	ScenarioID      uint64 `json:"id"`
	Name            string `json:"name"`
	Description     string `json:"description"`
	AntagonistGoal  string `json:"antagonist_goal"`
	DifficultyLevel int    `json:"difficulty"`
	BasePoints      int64  `json:"base_points"`
	ThreatType      string `json:"threat_type"`
}

// Freeze projects the fields a session needs for later prompt construction
// and scoring.
func Freeze(s *Scenario) Snapshot {
	return Snapshot{
		ScenarioID:      s.ID,
		Name:            s.Name,
		Description:     s.Description,
		AntagonistGoal:  s.AntagonistGoal,
		DifficultyLevel: s.DifficultyLevel,
		BasePoints:      s.BasePoints,
		ThreatType:      s.ThreatType,
	}
}
