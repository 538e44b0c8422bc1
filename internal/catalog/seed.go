package catalog

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// DefaultScenarios mirrors the launch catalog: a difficulty ladder across the
// common social-engineering threat types.
var DefaultScenarios = []Scenario{
	{
		Name:            "Reward Survey",
		Description:     "A reward is offered for completing a survey that keeps asking for personal details.",
		AntagonistGoal:  "Collect PII usable for impersonation",
		DifficultyLevel: 1,
		BasePoints:      75,
		ThreatType:      "data_collection",
		IsActive:        true,
	},
	{
		Name:            "Friendly Stranger",
		Description:     "A stranger strikes up a friendly chat to build trust and slowly steer toward personal information.",
		AntagonistGoal:  "phone number",
		DifficultyLevel: 1,
		BasePoints:      180,
		ThreatType:      "social_engineering",
		IsActive:        true,
	},
	{
		Name:            "Fake Tech Support",
		Description:     "The antagonist poses as bank tech support and asks for information to 'verify the account'.",
		AntagonistGoal:  "Obtain banking credentials or sensitive account data",
		DifficultyLevel: 2,
		BasePoints:      100,
		ThreatType:      "phishing",
		IsActive:        true,
	},
	{
		Name:            "Digital Impersonation",
		Description:     "Someone pretends to be a trusted company or support agent and pushes suspicious links and credential requests.",
		AntagonistGoal:  "email address",
		DifficultyLevel: 2,
		BasePoints:      220,
		ThreatType:      "phishing",
		IsActive:        true,
	},
	{
		Name:            "Too-Easy Job Offer",
		Description:     "An unsolicited job offer that requires personal details and an upfront payment.",
		AntagonistGoal:  "Obtain a transfer or personal data",
		DifficultyLevel: 3,
		BasePoints:      150,
		ThreatType:      "social_engineering",
		IsActive:        true,
	},
	{
		Name:            "Data Leak",
		Description:     "The attacker probes for sensitive details during a casual conversation: location, address, family, finances.",
		AntagonistGoal:  "home address",
		DifficultyLevel: 3,
		BasePoints:      240,
		ThreatType:      "data_leakage",
		IsActive:        true,
	},
	{
		Name:            "Urgent Coworker",
		Description:     "An urgent message from a supposed coworker asking for help, a file, or a password.",
		AntagonistGoal:  "Access to internal resources or credentials",
		DifficultyLevel: 4,
		BasePoints:      200,
		ThreatType:      "impersonation",
		IsActive:        true,
	},
	{
		Name:            "False Pretext",
		Description:     "An elaborate fake emergency engineered to rush the user into sharing information.",
		AntagonistGoal:  "full name and age",
		DifficultyLevel: 4,
		BasePoints:      260,
		ThreatType:      "pretexting",
		IsActive:        true,
	},
	{
		Name:            "Digital Bait",
		Description:     "Free prizes, exclusive discounts, premium access: all they need is one small detail to verify you.",
		AntagonistGoal:  "password or verification code",
		DifficultyLevel: 5,
		BasePoints:      280,
		ThreatType:      "baiting",
		IsActive:        true,
	},
	{
		Name:            "Identity Theft",
		Description:     "The attacker impersonates someone specific the user knows, using public information to appear legitimate.",
		AntagonistGoal:  "account username and password",
		DifficultyLevel: 6,
		BasePoints:      300,
		ThreatType:      "impersonation",
		IsActive:        true,
	},
}

// Seed upserts the default scenarios keyed by name.
func Seed(ctx context.Context, db *gorm.DB) error {
	for i := range DefaultScenarios {
		s := DefaultScenarios[i]
		err := db.WithContext(ctx).
			Clauses(clause.OnConflict{
				Columns: []clause.Column{{Name: "name"}},
				DoUpdates: clause.AssignmentColumns([]string{
					"description", "antagonist_goal", "difficulty_level",
					"base_points", "threat_type", "is_active",
				}),
			}).
			Create(&s).Error
		if err != nil {
			return err
		}
	}
	return nil
}
