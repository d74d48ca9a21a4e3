package models

import (
	"errors"
	"maps"
	"time"
)

// ErrInvalidPatch is returned when a profile patch would break a profile invariant.
var ErrInvalidPatch = errors.New("invalid profile patch")

// Profile is the per-user entitlement record.
type Profile struct {
	// ID is the profile's primary key. It equals the owning User's ID.
	ID string `json:"id"`

	// IsPremium marks a subscriber. Premium users are never rate limited.
	IsPremium bool `json:"is_premium"`

	// Credits is the number of purchased scans left. Never negative.
	Credits int `json:"credits"`

	// TrackCaloriesUsage counts free scans used so far. Never negative.
	TrackCaloriesUsage int `json:"track_calories_usage"`

	// UpdatedAt is when the profile was last written.
	UpdatedAt time.Time `json:"updated_at"`

	// Extra holds fields the app stores but does not interpret
	// (display preferences, goals, and so on).
	Extra map[string]any `json:"extra,omitempty"`
}

// Clone returns a copy that shares no mutable state with p.
func (p *Profile) Clone() *Profile {
	if p == nil {
		return nil
	}
	c := *p
	c.Extra = maps.Clone(p.Extra)
	return &c
}

// ProfilePatch is a partial profile update. Nil fields are left untouched;
// Extra keys are merged into the stored extras.
type ProfilePatch struct {
	IsPremium          *bool          `json:"is_premium,omitempty"`
	Credits            *int           `json:"credits,omitempty"`
	TrackCaloriesUsage *int           `json:"track_calories_usage,omitempty"`
	Extra              map[string]any `json:"extra,omitempty"`

	// UpdatedAt is stamped by the writer. Zero means "now" at the data service.
	UpdatedAt time.Time `json:"updated_at,omitzero"`
}

// Validate rejects patches that would make a counter negative.
func (p ProfilePatch) Validate() error {
	if p.Credits != nil && *p.Credits < 0 {
		return errors.Join(ErrInvalidPatch, errors.New("credits must not be negative"))
	}
	if p.TrackCaloriesUsage != nil && *p.TrackCaloriesUsage < 0 {
		return errors.Join(ErrInvalidPatch, errors.New("track_calories_usage must not be negative"))
	}
	return nil
}

// Apply merges the patch into p in place.
func (p ProfilePatch) Apply(profile *Profile) {
	if p.IsPremium != nil {
		profile.IsPremium = *p.IsPremium
	}
	if p.Credits != nil {
		profile.Credits = *p.Credits
	}
	if p.TrackCaloriesUsage != nil {
		profile.TrackCaloriesUsage = *p.TrackCaloriesUsage
	}
	if len(p.Extra) > 0 {
		if profile.Extra == nil {
			profile.Extra = make(map[string]any, len(p.Extra))
		}
		maps.Copy(profile.Extra, p.Extra)
	}
	if !p.UpdatedAt.IsZero() {
		profile.UpdatedAt = p.UpdatedAt
	}
}
