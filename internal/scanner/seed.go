package scanner

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// DefaultRules is the starter rule set. Admins extend it at runtime.
var DefaultRules = []DetectionRule{
	{
		Name:         "phone_number",
		RegexPattern: `\+?\d[\d\s.-]{6,14}\d`,
		DataType:     "phone",
		Severity:     3,
		AlertMessage: "Looks like a phone number was shared.",
		IsActive:     true,
	},
	{
		Name:         "email_address",
		RegexPattern: `[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`,
		DataType:     "email",
		Severity:     2,
		AlertMessage: "Looks like an email address was shared.",
		IsActive:     true,
	},
	{
		Name:         "password_disclosure",
		RegexPattern: `(?i)(password|passwd|contraseña|pin)\s*(is|es|:)\s*\S+`,
		DataType:     "credential",
		Severity:     5,
		AlertMessage: "Looks like a password or PIN was shared.",
		IsActive:     true,
	},
	{
		Name:         "card_number",
		RegexPattern: `\b(?:\d[ -]?){13,16}\b`,
		DataType:     "financial",
		Severity:     5,
		AlertMessage: "Looks like a card number was shared.",
		IsActive:     true,
	},
	{
		Name:         "home_address",
		RegexPattern: `(?i)\b(calle|avenida|av\.|street|st\.|avenue)\b.{3,60}\d`,
		DataType:     "address",
		Severity:     3,
		AlertMessage: "Looks like a street address was shared.",
		IsActive:     true,
	},
}

// Seed upserts the default detection rules keyed by name.
func Seed(ctx context.Context, db *gorm.DB) error {
	for i := range DefaultRules {
		r := DefaultRules[i]
		err := db.WithContext(ctx).
			Clauses(clause.OnConflict{
				Columns: []clause.Column{{Name: "name"}},
				DoUpdates: clause.AssignmentColumns([]string{
					"regex_pattern", "data_type", "severity", "alert_message", "is_active",
				}),
			}).
			Create(&r).Error
		if err != nil {
			return err
		}
	}
	return nil
}
