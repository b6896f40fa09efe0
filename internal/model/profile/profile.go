package profile

import "time"

// UserProfile is the slowly evolving picture of the user that is fed into every prompt.
// Insights only ever grow.
type UserProfile struct {
	Traits                   map[string]float64 `json:"traits"`
	Goals                    []string           `json:"goals"`
	Values                   []string           `json:"values"`
	CommunicationPreferences map[string]string  `json:"communicationPreferences"`
	WorkPatterns             map[string]string  `json:"workPatterns"`
	Insights                 []string           `json:"insights"`
	InteractionCount         int                `json:"interactionCount"`
	LastAnalyzedAt           time.Time          `json:"lastAnalyzedAt,omitempty"`
	UpdatedAt                time.Time          `json:"updatedAt,omitempty"`
}

// Neutral returns the profile used before any analysis has run.
func Neutral() UserProfile {
	return UserProfile{
		Traits: map[string]float64{
			"openness":          0.5,
			"conscientiousness": 0.5,
			"extraversion":      0.5,
			"agreeableness":     0.5,
			"neuroticism":       0.5,
		},
		Goals:                    []string{},
		Values:                   []string{},
		CommunicationPreferences: map[string]string{},
		WorkPatterns:             map[string]string{},
		Insights:                 []string{},
	}
}
