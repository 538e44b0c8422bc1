package scanner

import "time"

// DetectionRule is an administrator-managed regex rule that flags sensitive
// data in user messages, independent of the remote classifier's verdict.
type DetectionRule struct {
	ID           uint64    `gorm:"primaryKey;autoIncrement" json:"pattern_id"`
	Name         string    `gorm:"type:varchar(100);uniqueIndex;not null" json:"name"`
	RegexPattern string    `gorm:"type:varchar(512);not null" json:"regex_pattern"`
	DataType     string    `gorm:"type:varchar(50);not null" json:"data_type"`
	Severity     int       `gorm:"not null;default:1" json:"severity"`
	AlertMessage string    `gorm:"type:text" json:"alert_message"`
	IsActive     bool      `gorm:"not null;default:true;index" json:"is_active"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func (DetectionRule) TableName() string { return "sensitive_patterns" }
