package models

import (
	"maps"
	"time"
)

// MealLogEntry is one scanned meal.
type MealLogEntry struct {
	// ID is assigned by the data service. Client-supplied values are discarded.
	ID string `json:"id,omitempty"`

	// UserID references the owning Profile.
	UserID string `json:"user_id"`

	// ScannedAt is set at insertion time. Logs are ordered by it, newest first.
	ScannedAt time.Time `json:"scanned_at"`

	Name     string  `json:"name"`
	Calories float64 `json:"calories"`
	Protein  float64 `json:"protein,omitempty"`
	Carbs    float64 `json:"carbs,omitempty"`
	Fat      float64 `json:"fat,omitempty"`

	// Extra holds any other nutritional fields (fiber, sugar, serving size...).
	Extra map[string]any `json:"extra,omitempty"`
}

// Clone returns a copy that shares no mutable state with e.
func (e MealLogEntry) Clone() MealLogEntry {
	e.Extra = maps.Clone(e.Extra)
	return e
}

// SessionUser is a profile together with its meal log, newest entry first.
type SessionUser struct {
	Profile
	MealLog []MealLogEntry `json:"meal_log"`
}

// Clone returns a deep copy of u.
func (u *SessionUser) Clone() *SessionUser {
	if u == nil {
		return nil
	}
	c := &SessionUser{Profile: *u.Profile.Clone()}
	c.MealLog = make([]MealLogEntry, len(u.MealLog))
	for i, entry := range u.MealLog {
		c.MealLog[i] = entry.Clone()
	}
	return c
}
