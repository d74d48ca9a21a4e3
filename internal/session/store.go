// Package session holds the signed-in user's profile and meal log for a
// client application, and routes every change to them through the data
// service.
//
// A Store follows the auth provider: it loads the profile on sign-in and
// forgets it on sign-out. Each profile fetch carries a generation number;
// results from a fetch that was overtaken by a sign-out or a newer fetch are
// dropped, so a slow response can never resurrect a signed-out user.
//
// Errors from the data service are returned to the caller and also kept in
// State.Error for display. The recorded error is cleared when a fetch starts
// and after any successful mutation.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/mmynk/mealscan/internal/auth"
	"github.com/mmynk/mealscan/internal/entitlement"
	"github.com/mmynk/mealscan/internal/models"
	"github.com/mmynk/mealscan/internal/storage"
	"github.com/mmynk/mealscan/internal/telemetry"
)

var (
	ErrAlreadyStarted = errors.New("session store already started")
	ErrNoSession      = errors.New("no signed-in user")
	ErrNoScansLeft    = errors.New("no free scans or credits left")
)

// AuthProvider reports who is signed in and announces changes.
type AuthProvider interface {
	CurrentUser(ctx context.Context) (*auth.Identity, error)
	OnSessionChange(fn auth.Listener) auth.Subscription
}

// State is a read-only snapshot of the store.
type State struct {
	User    *models.SessionUser
	Loading bool
	Error   string
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the store's logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) { s.logger = logger }
}

// WithClock sets the time source used for updated_at and scanned_at stamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// Store owns the session state of one signed-in user.
type Store struct {
	auth   AuthProvider
	data   storage.DataService
	logger *slog.Logger
	now    func() time.Time

	// lifecycle serializes Start and Stop.
	lifecycle sync.Mutex
	sub       auth.Subscription

	mu         sync.Mutex
	user       *models.SessionUser
	loading    bool
	err        string
	generation uint64
	running    bool
	baseCtx    context.Context
	cancel     context.CancelFunc
	inflight   sync.WaitGroup
}

// New creates a store. It does nothing until Start is called.
func New(authProvider AuthProvider, data storage.DataService, opts ...Option) *Store {
	s := &Store{
		auth:    authProvider,
		data:    data,
		logger:  slog.Default(),
		now:     time.Now,
		loading: true,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start subscribes to session changes and loads the current user, if any.
// The initial load has finished when Start returns.
func (s *Store) Start(ctx context.Context) error {
	s.lifecycle.Lock()
	defer s.lifecycle.Unlock()

	if s.sub != nil {
		return ErrAlreadyStarted
	}

	baseCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.mu.Lock()
	s.running = true
	s.baseCtx = baseCtx
	s.cancel = cancel
	s.mu.Unlock()

	// Subscribe before reading the current user so a sign-in between the two
	// is not missed.
	s.sub = s.auth.OnSessionChange(s.handleSessionChange)

	identity, err := s.auth.CurrentUser(ctx)
	if err != nil {
		s.teardown()
		return fmt.Errorf("failed to get current user: %w", err)
	}

	if identity == nil {
		s.mu.Lock()
		s.user = nil
		s.loading = false
		s.mu.Unlock()
		s.logger.Debug("Session store started without a user")
		return nil
	}

	s.logger.Debug("Session store started", "user_id", identity.ID)
	_ = s.FetchUserProfile(ctx, identity.ID)
	return nil
}

// Stop releases the session subscription and waits for in-flight event
// handlers. Results of fetches still running are discarded. Stop on a
// stopped store does nothing; a stopped store may be started again.
func (s *Store) Stop() {
	s.lifecycle.Lock()
	defer s.lifecycle.Unlock()

	if s.sub == nil {
		return
	}
	s.teardown()
}

// teardown must be called with lifecycle held.
func (s *Store) teardown() {
	s.sub.Unsubscribe()
	s.sub = nil

	s.mu.Lock()
	s.running = false
	s.generation++
	s.loading = false
	cancel := s.cancel
	s.mu.Unlock()

	cancel()
	s.inflight.Wait()
}

func (s *Store) handleSessionChange(event auth.Event, session *auth.Session) {
	switch event {
	case auth.EventSignedIn:
		if session == nil || session.User.ID == "" {
			return
		}
		s.mu.Lock()
		if !s.running {
			s.mu.Unlock()
			return
		}
		ctx := s.baseCtx
		s.inflight.Add(1)
		s.mu.Unlock()

		userID := session.User.ID
		go func() {
			defer s.inflight.Done()
			_ = s.FetchUserProfile(ctx, userID)
		}()

	case auth.EventSignedOut:
		s.mu.Lock()
		s.generation++
		s.user = nil
		s.loading = false
		s.mu.Unlock()
		s.logger.Debug("Session cleared on sign-out")

	default:
		s.logger.Debug("Ignoring session event", "event", event)
	}
}

// FetchUserProfile loads the profile and meal log of userID and makes them
// the current user. A missing profile is not an error: the store ends up
// with no user. Any other failure clears the user and records the error.
func (s *Store) FetchUserProfile(ctx context.Context, userID string) (err error) {
	defer func() { telemetry.ObserveSessionOperation("fetch_user_profile", err) }()

	s.mu.Lock()
	s.generation++
	gen := s.generation
	s.loading = true
	s.err = ""
	s.mu.Unlock()

	profile, err := s.data.GetProfile(ctx, userID)
	if errors.Is(err, storage.ErrNotFound) {
		s.logger.Info("No profile for user", "user_id", userID)
		s.finishFetch(gen, nil, "")
		return nil
	}
	if err != nil {
		s.logger.Error("Failed to fetch profile", "user_id", userID, "error", err)
		s.finishFetch(gen, nil, err.Error())
		return fmt.Errorf("failed to fetch profile: %w", err)
	}

	entries, err := s.data.ListMealLogs(ctx, userID)
	if err != nil {
		s.logger.Error("Failed to fetch meal log", "user_id", userID, "error", err)
		s.finishFetch(gen, nil, err.Error())
		return fmt.Errorf("failed to fetch meal log: %w", err)
	}
	if entries == nil {
		entries = []models.MealLogEntry{}
	}

	s.finishFetch(gen, &models.SessionUser{Profile: *profile, MealLog: entries}, "")
	return nil
}

// finishFetch publishes a fetch result unless a newer fetch or a sign-out
// has happened since generation gen started.
func (s *Store) finishFetch(gen uint64, user *models.SessionUser, errMsg string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if gen != s.generation {
		s.logger.Debug("Discarding stale profile fetch", "generation", gen, "current", s.generation)
		return
	}
	s.user = user
	s.err = errMsg
	s.loading = false
}

// Refresh re-reads the signed-in identity from the auth provider and
// fetches its profile again.
func (s *Store) Refresh(ctx context.Context) error {
	identity, err := s.auth.CurrentUser(ctx)
	if err != nil {
		return fmt.Errorf("failed to get current user: %w", err)
	}
	if identity == nil {
		s.handleSessionChange(auth.EventSignedOut, nil)
		return nil
	}
	return s.FetchUserProfile(ctx, identity.ID)
}

// UpdateProfile writes patch, stamped with the current time, and merges the
// stored profile into the current user. The meal log is kept. Nothing
// changes locally until the data service confirms the write.
func (s *Store) UpdateProfile(ctx context.Context, userID string, patch models.ProfilePatch) (profile *models.Profile, err error) {
	defer func() { telemetry.ObserveSessionOperation("update_profile", err) }()

	patch.UpdatedAt = s.now()
	profile, err = s.data.UpdateProfile(ctx, userID, patch)
	if err != nil {
		s.fail("Failed to update profile", userID, err)
		return nil, fmt.Errorf("failed to update profile: %w", err)
	}

	s.mu.Lock()
	if s.user != nil && s.user.ID == userID {
		s.user.Profile = *profile.Clone()
	}
	s.err = ""
	s.mu.Unlock()

	return profile, nil
}

// IncrementTrackCaloriesUsage counts one free scan. Premium users and credit
// holders are not metered, and a user at MaxFreeScans is left unchanged;
// callers check Flags before scanning.
func (s *Store) IncrementTrackCaloriesUsage(ctx context.Context) error {
	user := s.current()
	if user == nil {
		return nil
	}
	next, ok := entitlement.NextFreeUsage(&user.Profile)
	if !ok {
		return nil
	}
	_, err := s.UpdateProfile(ctx, user.ID, models.ProfilePatch{TrackCaloriesUsage: &next})
	return err
}

// AddCredits adds amount to the user's credits. A result below zero is
// rejected by the data service.
func (s *Store) AddCredits(ctx context.Context, amount int) error {
	user := s.current()
	if user == nil {
		return nil
	}
	credits := user.Credits + amount
	_, err := s.UpdateProfile(ctx, user.ID, models.ProfilePatch{Credits: &credits})
	return err
}

// UseCreditForScan spends one credit. It reports true only once the data
// service has confirmed the new balance; with no credits it returns false
// without writing anything.
func (s *Store) UseCreditForScan(ctx context.Context) (bool, error) {
	user := s.current()
	if user == nil || user.Credits <= 0 {
		return false, nil
	}
	credits := user.Credits - 1
	if _, err := s.UpdateProfile(ctx, user.ID, models.ProfilePatch{Credits: &credits}); err != nil {
		return false, err
	}
	return true, nil
}

// SetPremium sets the user's premium flag.
func (s *Store) SetPremium(ctx context.Context, premium bool) error {
	user := s.current()
	if user == nil {
		return nil
	}
	_, err := s.UpdateProfile(ctx, user.ID, models.ProfilePatch{IsPremium: &premium})
	return err
}

// AddMealToLog stores a copy of entry for the current user, stamped now, and
// puts the stored entry at the front of the meal log. Any ID on entry is
// dropped; the data service assigns one. Returns nil when nobody is signed in.
func (s *Store) AddMealToLog(ctx context.Context, entry models.MealLogEntry) (inserted *models.MealLogEntry, err error) {
	user := s.current()
	if user == nil {
		return nil, nil
	}
	defer func() { telemetry.ObserveSessionOperation("add_meal_to_log", err) }()

	entry = entry.Clone()
	entry.ID = ""
	entry.UserID = user.ID
	entry.ScannedAt = s.now()

	inserted, err = s.data.InsertMealLog(ctx, entry)
	if err != nil {
		s.fail("Failed to add meal to log", user.ID, err)
		return nil, fmt.Errorf("failed to add meal to log: %w", err)
	}

	s.mu.Lock()
	if s.user != nil && s.user.ID == user.ID {
		s.user.MealLog = append([]models.MealLogEntry{inserted.Clone()}, s.user.MealLog...)
	}
	s.err = ""
	s.mu.Unlock()

	return inserted, nil
}

// ConsumeScan charges one scan to the user in whatever mode applies and
// reports that mode. Premium scans cost nothing.
func (s *Store) ConsumeScan(ctx context.Context) (entitlement.Mode, error) {
	user := s.current()
	if user == nil {
		return entitlement.ModeNone, ErrNoSession
	}

	switch mode := entitlement.ModeOf(&user.Profile); mode {
	case entitlement.ModePremium:
		return mode, nil
	case entitlement.ModeCredits:
		ok, err := s.UseCreditForScan(ctx)
		if err != nil {
			return mode, err
		}
		if !ok {
			return entitlement.ModeNone, ErrNoScansLeft
		}
		return mode, nil
	case entitlement.ModeFree:
		return mode, s.IncrementTrackCaloriesUsage(ctx)
	default:
		return entitlement.ModeNone, ErrNoScansLeft
	}
}

// ClearError forgets the recorded error.
func (s *Store) ClearError() {
	s.mu.Lock()
	s.err = ""
	s.mu.Unlock()
}

// Snapshot returns a copy of the whole state.
func (s *Store) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return State{
		User:    s.user.Clone(),
		Loading: s.loading,
		Error:   s.err,
	}
}

// User returns a copy of the current user, or nil.
func (s *Store) User() *models.SessionUser {
	return s.current()
}

// Loading reports whether a profile fetch is in progress.
func (s *Store) Loading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loading
}

// Error returns the last recorded failure message, or "".
func (s *Store) Error() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Flags derives the entitlement flags of the current user.
// All are false and RemainingFreeScans is zero when nobody is signed in.
func (s *Store) Flags() entitlement.Flags {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.user == nil {
		return entitlement.Flags{}
	}
	return entitlement.Compute(&s.user.Profile)
}

func (s *Store) current() *models.SessionUser {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.user.Clone()
}

func (s *Store) fail(msg, userID string, err error) {
	s.logger.Error(msg, "user_id", userID, "error", err)
	s.mu.Lock()
	s.err = err.Error()
	s.mu.Unlock()
}
