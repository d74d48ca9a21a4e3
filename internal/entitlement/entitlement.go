// Package entitlement decides how a user may pay for a meal scan.
//
// Rules, in precedence order:
//   - Premium users scan without limits
//   - Non-premium users holding credits spend one credit per scan
//   - Everyone else gets MaxFreeScans free scans, counted on the profile
//
// The three usage modes are mutually exclusive: a profile is in exactly one of
// ModePremium, ModeCredits, ModeFree or ModeNone.
package entitlement

import "github.com/mmynk/mealscan/internal/models"

// MaxFreeScans is the number of free scans a non-premium user without credits gets.
const MaxFreeScans = 10

// Mode is the way the next scan will be paid for.
type Mode int

const (
	// ModeNone means the user cannot scan: no user, or free quota exhausted.
	ModeNone Mode = iota
	ModeFree
	ModeCredits
	ModePremium
)

func (m Mode) String() string {
	switch m {
	case ModeFree:
		return "free"
	case ModeCredits:
		return "credits"
	case ModePremium:
		return "premium"
	default:
		return "none"
	}
}

// Flags are the derived entitlement values exposed to the UI.
type Flags struct {
	RemainingFreeScans int  `json:"remaining_free_scans"`
	CanUseForFree      bool `json:"can_use_for_free"`
	CanUseWithCredits  bool `json:"can_use_with_credits"`
	CanUseAsPremium    bool `json:"can_use_as_premium"`
}

// RemainingFreeScans returns max(0, MaxFreeScans - usage). Zero for a nil profile.
func RemainingFreeScans(p *models.Profile) int {
	if p == nil {
		return 0
	}
	return max(0, MaxFreeScans-p.TrackCaloriesUsage)
}

// Compute derives all flags from p. A nil profile yields the zero Flags.
func Compute(p *models.Profile) Flags {
	if p == nil {
		return Flags{}
	}
	remaining := RemainingFreeScans(p)
	return Flags{
		RemainingFreeScans: remaining,
		CanUseForFree:      !p.IsPremium && p.Credits == 0 && remaining > 0,
		CanUseWithCredits:  !p.IsPremium && p.Credits > 0,
		CanUseAsPremium:    p.IsPremium,
	}
}

// Mode reports the usage mode the flags select.
func (f Flags) Mode() Mode {
	switch {
	case f.CanUseAsPremium:
		return ModePremium
	case f.CanUseWithCredits:
		return ModeCredits
	case f.CanUseForFree:
		return ModeFree
	default:
		return ModeNone
	}
}

// ModeOf is shorthand for Compute(p).Mode().
func ModeOf(p *models.Profile) Mode {
	return Compute(p).Mode()
}

// NextFreeUsage returns the usage counter after counting one free scan, and
// whether the counter should be written at all. Premium users and credit
// holders are not metered; at the cap nothing changes.
func NextFreeUsage(p *models.Profile) (int, bool) {
	if p == nil || p.IsPremium || p.Credits > 0 {
		return 0, false
	}
	if p.TrackCaloriesUsage >= MaxFreeScans {
		return p.TrackCaloriesUsage, false
	}
	return p.TrackCaloriesUsage + 1, true
}
