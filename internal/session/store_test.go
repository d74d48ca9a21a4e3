package session

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/mmynk/mealscan/internal/auth"
	"github.com/mmynk/mealscan/internal/entitlement"
	"github.com/mmynk/mealscan/internal/models"
	"github.com/mmynk/mealscan/internal/storage"
	"github.com/mmynk/mealscan/internal/storage/sqlite"
)

var testClock = time.Date(2026, 5, 1, 8, 30, 0, 0, time.UTC)

// faultyData wraps a real DataService and injects failures or delays.
// Fields must be set before the store starts using it from other goroutines.
type faultyData struct {
	storage.DataService

	getProfileErr error
	listErr       error
	updateErr     error
	insertErr     error

	// getProfileStarted is signalled when GetProfile is entered;
	// GetProfile then blocks until getProfileGate is closed.
	getProfileStarted chan struct{}
	getProfileGate    chan struct{}

	updates int
}

func (f *faultyData) GetProfile(ctx context.Context, id string) (*models.Profile, error) {
	if f.getProfileStarted != nil {
		f.getProfileStarted <- struct{}{}
	}
	if f.getProfileGate != nil {
		select {
		case <-f.getProfileGate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.getProfileErr != nil {
		return nil, f.getProfileErr
	}
	return f.DataService.GetProfile(ctx, id)
}

func (f *faultyData) ListMealLogs(ctx context.Context, userID string) ([]models.MealLogEntry, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.DataService.ListMealLogs(ctx, userID)
}

func (f *faultyData) UpdateProfile(ctx context.Context, id string, patch models.ProfilePatch) (*models.Profile, error) {
	f.updates++
	if f.updateErr != nil {
		return nil, f.updateErr
	}
	return f.DataService.UpdateProfile(ctx, id, patch)
}

func (f *faultyData) InsertMealLog(ctx context.Context, entry models.MealLogEntry) (*models.MealLogEntry, error) {
	if f.insertErr != nil {
		return nil, f.insertErr
	}
	return f.DataService.InsertMealLog(ctx, entry)
}

type testEnv struct {
	db       *sqlite.SQLiteStore
	data     *faultyData
	provider *auth.Provider
	store    *Store
}

// newTestEnv creates a sqlite-backed store with user "u1" registered but
// nobody signed in.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db, err := sqlite.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	user := &models.User{ID: "u1", Email: "u1@example.com", DisplayName: "U1", PasswordHash: "x", CreatedAt: 1, UpdatedAt: 1}
	if err := db.CreateUser(context.Background(), user); err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	data := &faultyData{DataService: db}
	provider := auth.NewProvider(nil, logger)
	store := New(provider, data, WithLogger(logger), WithClock(func() time.Time { return testClock }))
	t.Cleanup(store.Stop)

	return &testEnv{db: db, data: data, provider: provider, store: store}
}

func (e *testEnv) setProfile(t *testing.T, patch models.ProfilePatch) {
	t.Helper()
	if _, err := e.db.UpdateProfile(context.Background(), "u1", patch); err != nil {
		t.Fatalf("UpdateProfile failed: %v", err)
	}
}

// signIn starts the store with u1 already signed in.
func (e *testEnv) signIn(t *testing.T) {
	t.Helper()
	e.provider.SetSession(&auth.Session{User: auth.Identity{ID: "u1"}, Token: "token"})
	if err := e.store.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if e.store.User() == nil {
		t.Fatalf("expected user after start, error=%q", e.store.Error())
	}
}

func intPtr(v int) *int    { return &v }
func boolPtr(v bool) *bool { return &v }

func TestStartWithoutUser(t *testing.T) {
	env := newTestEnv(t)

	if !env.store.Loading() {
		t.Error("expected Loading before Start")
	}
	if err := env.store.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	state := env.store.Snapshot()
	if state.User != nil || state.Loading || state.Error != "" {
		t.Errorf("unexpected state: %+v", state)
	}
	if env.store.Flags() != (entitlement.Flags{}) {
		t.Errorf("expected zero flags, got %+v", env.store.Flags())
	}
}

func TestStartWithUserLoadsProfileAndMeals(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.setProfile(t, models.ProfilePatch{Credits: intPtr(2)})
	for i, name := range []string{"Oats", "Soup"} {
		_, err := env.db.InsertMealLog(ctx, models.MealLogEntry{
			UserID:    "u1",
			Name:      name,
			ScannedAt: testClock.Add(-time.Duration(2-i) * time.Hour),
		})
		if err != nil {
			t.Fatalf("InsertMealLog failed: %v", err)
		}
	}

	env.signIn(t)

	user := env.store.User()
	if user.ID != "u1" || user.Credits != 2 {
		t.Errorf("unexpected profile: %+v", user.Profile)
	}
	if len(user.MealLog) != 2 || user.MealLog[0].Name != "Soup" || user.MealLog[1].Name != "Oats" {
		t.Errorf("expected newest-first meal log, got %+v", user.MealLog)
	}
	if env.store.Loading() {
		t.Error("expected Loading to be false after fetch")
	}
}

func TestStartWithoutMealsHasEmptyLog(t *testing.T) {
	env := newTestEnv(t)
	env.signIn(t)

	user := env.store.User()
	if user.MealLog == nil || len(user.MealLog) != 0 {
		t.Errorf("expected empty non-nil meal log, got %#v", user.MealLog)
	}
}

func TestSessionEvents(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	if err := env.store.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	t.Run("SIGNED_IN fetches the profile", func(t *testing.T) {
		env.provider.SetSession(&auth.Session{User: auth.Identity{ID: "u1"}, Token: "token"})
		env.store.inflight.Wait()

		if user := env.store.User(); user == nil || user.ID != "u1" {
			t.Errorf("expected u1 after sign-in, got %+v", user)
		}
	})

	t.Run("TOKEN_REFRESHED is ignored", func(t *testing.T) {
		before := env.store.User()
		env.provider.SetSession(&auth.Session{User: auth.Identity{ID: "u1"}, Token: "token-2"})
		env.store.inflight.Wait()

		if user := env.store.User(); user == nil || user.ID != before.ID {
			t.Errorf("expected user unchanged, got %+v", user)
		}
	})

	t.Run("SIGNED_OUT clears the user", func(t *testing.T) {
		env.provider.SignOut(ctx)

		if user := env.store.User(); user != nil {
			t.Errorf("expected no user after sign-out, got %+v", user)
		}
		if env.store.Loading() {
			t.Error("expected Loading false after sign-out")
		}
	})
}

func TestFetchUserProfile(t *testing.T) {
	t.Run("missing profile is not an error", func(t *testing.T) {
		env := newTestEnv(t)
		if err := env.store.FetchUserProfile(context.Background(), "nobody"); err != nil {
			t.Fatalf("FetchUserProfile failed: %v", err)
		}
		state := env.store.Snapshot()
		if state.User != nil || state.Error != "" || state.Loading {
			t.Errorf("unexpected state: %+v", state)
		}
	})

	t.Run("profile failure clears user and records error", func(t *testing.T) {
		env := newTestEnv(t)
		env.signIn(t)
		env.data.getProfileErr = errors.New("connection reset")

		if err := env.store.FetchUserProfile(context.Background(), "u1"); err == nil {
			t.Fatal("expected error")
		}
		state := env.store.Snapshot()
		if state.User != nil || state.Error != "connection reset" || state.Loading {
			t.Errorf("unexpected state: %+v", state)
		}
	})

	t.Run("meal log failure fails the whole fetch", func(t *testing.T) {
		env := newTestEnv(t)
		env.signIn(t)
		env.data.listErr = errors.New("timeout")

		if err := env.store.FetchUserProfile(context.Background(), "u1"); err == nil {
			t.Fatal("expected error")
		}
		state := env.store.Snapshot()
		if state.User != nil || state.Error != "timeout" {
			t.Errorf("unexpected state: %+v", state)
		}
	})

	t.Run("next fetch clears the recorded error", func(t *testing.T) {
		env := newTestEnv(t)
		env.data.getProfileErr = errors.New("boom")
		_ = env.store.FetchUserProfile(context.Background(), "u1")
		env.data.getProfileErr = nil

		if err := env.store.FetchUserProfile(context.Background(), "u1"); err != nil {
			t.Fatalf("FetchUserProfile failed: %v", err)
		}
		if env.store.Error() != "" || env.store.User() == nil {
			t.Errorf("unexpected state: %+v", env.store.Snapshot())
		}
	})
}

// A fetch still waiting on the data service when the user signs out must
// not repopulate the store once it completes.
func TestSignOutDuringPendingFetch(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.data.getProfileStarted = make(chan struct{}, 1)
	env.data.getProfileGate = make(chan struct{})

	if err := env.store.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	env.provider.SetSession(&auth.Session{User: auth.Identity{ID: "u1"}, Token: "token"})
	<-env.data.getProfileStarted
	if !env.store.Loading() {
		t.Error("expected Loading while fetch is pending")
	}

	env.provider.SignOut(ctx)
	close(env.data.getProfileGate)
	env.store.inflight.Wait()

	state := env.store.Snapshot()
	if state.User != nil {
		t.Errorf("stale fetch resurrected user: %+v", state.User)
	}
	if state.Loading {
		t.Error("expected Loading false after sign-out")
	}
}

// The opposite ordering: the fetch completes first, then the sign-out
// clears it.
func TestSignOutAfterCompletedFetch(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	if err := env.store.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	env.provider.SetSession(&auth.Session{User: auth.Identity{ID: "u1"}, Token: "token"})
	env.store.inflight.Wait()
	if env.store.User() == nil {
		t.Fatal("expected user after completed fetch")
	}

	env.provider.SignOut(ctx)
	if env.store.User() != nil {
		t.Error("expected no user after sign-out")
	}
}

func TestOverlappingFetchesKeepTheNewest(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.data.getProfileStarted = make(chan struct{}, 1)
	env.data.getProfileGate = make(chan struct{})

	done := make(chan error, 1)
	go func() { done <- env.store.FetchUserProfile(ctx, "u1") }()
	<-env.data.getProfileStarted

	// A newer fetch overtakes the pending one.
	env.store.mu.Lock()
	env.store.generation++
	env.store.user = &models.SessionUser{Profile: models.Profile{ID: "newer"}}
	env.store.loading = false
	env.store.mu.Unlock()

	close(env.data.getProfileGate)
	if err := <-done; err != nil {
		t.Fatalf("FetchUserProfile failed: %v", err)
	}

	if user := env.store.User(); user == nil || user.ID != "newer" {
		t.Errorf("older fetch overwrote newer state: %+v", user)
	}
}

func TestLifecycle(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	if err := env.store.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if err := env.store.Start(ctx); !errors.Is(err, ErrAlreadyStarted) {
		t.Errorf("expected ErrAlreadyStarted, got %v", err)
	}

	env.store.Stop()
	env.store.Stop()

	env.provider.SetSession(&auth.Session{User: auth.Identity{ID: "u1"}, Token: "token"})
	env.store.inflight.Wait()
	if env.store.User() != nil {
		t.Error("stopped store reacted to sign-in")
	}

	// Restart picks up the signed-in user and a fresh subscription.
	if err := env.store.Start(ctx); err != nil {
		t.Fatalf("restart failed: %v", err)
	}
	if env.store.User() == nil {
		t.Fatal("expected user after restart")
	}
	env.provider.SignOut(ctx)
	if env.store.User() != nil {
		t.Error("restarted store did not react to sign-out")
	}
}

type failingAuth struct{}

func (failingAuth) CurrentUser(ctx context.Context) (*auth.Identity, error) {
	return nil, errors.New("keychain locked")
}

func (failingAuth) OnSessionChange(fn auth.Listener) auth.Subscription {
	return noopSubscription{}
}

type noopSubscription struct{}

func (noopSubscription) Unsubscribe() {}

func TestStartFailsWhenCurrentUserFails(t *testing.T) {
	store := New(failingAuth{}, &faultyData{})
	if err := store.Start(context.Background()); err == nil {
		t.Fatal("expected Start to fail")
	}
	// The failed start left the store stopped, so it can be started again.
	if err := store.Start(context.Background()); errors.Is(err, ErrAlreadyStarted) {
		t.Error("failed Start left the store marked as started")
	}
}

func TestIncrementTrackCaloriesUsage(t *testing.T) {
	ctx := context.Background()

	t.Run("counts up to the cap and then stops", func(t *testing.T) {
		env := newTestEnv(t)
		env.setProfile(t, models.ProfilePatch{TrackCaloriesUsage: intPtr(9)})
		env.signIn(t)

		if err := env.store.IncrementTrackCaloriesUsage(ctx); err != nil {
			t.Fatalf("Increment failed: %v", err)
		}
		if got := env.store.User().TrackCaloriesUsage; got != 10 {
			t.Errorf("usage = %d, want 10", got)
		}

		updates := env.data.updates
		if err := env.store.IncrementTrackCaloriesUsage(ctx); err != nil {
			t.Fatalf("Increment failed: %v", err)
		}
		if got := env.store.User().TrackCaloriesUsage; got != 10 {
			t.Errorf("usage = %d, want 10", got)
		}
		if env.data.updates != updates {
			t.Error("expected no write at the cap")
		}
		if flags := env.store.Flags(); flags.CanUseForFree || flags.RemainingFreeScans != 0 {
			t.Errorf("unexpected flags at cap: %+v", flags)
		}
	})

	t.Run("premium and credit holders are not metered", func(t *testing.T) {
		for name, patch := range map[string]models.ProfilePatch{
			"premium": {IsPremium: boolPtr(true)},
			"credits": {Credits: intPtr(1)},
		} {
			env := newTestEnv(t)
			env.setProfile(t, patch)
			env.signIn(t)

			if err := env.store.IncrementTrackCaloriesUsage(ctx); err != nil {
				t.Fatalf("%s: Increment failed: %v", name, err)
			}
			if env.data.updates != 0 {
				t.Errorf("%s: expected no write, got %d", name, env.data.updates)
			}
		}
	})

	t.Run("persists the new counter", func(t *testing.T) {
		env := newTestEnv(t)
		env.signIn(t)
		if err := env.store.IncrementTrackCaloriesUsage(ctx); err != nil {
			t.Fatalf("Increment failed: %v", err)
		}
		stored, err := env.db.GetProfile(ctx, "u1")
		if err != nil {
			t.Fatalf("GetProfile failed: %v", err)
		}
		if stored.TrackCaloriesUsage != 1 {
			t.Errorf("stored usage = %d, want 1", stored.TrackCaloriesUsage)
		}
		if !stored.UpdatedAt.Equal(testClock) {
			t.Errorf("stored updated_at = %v, want %v", stored.UpdatedAt, testClock)
		}
	})
}

func TestUseCreditForScan(t *testing.T) {
	ctx := context.Background()

	t.Run("no credits returns false without writing", func(t *testing.T) {
		env := newTestEnv(t)
		env.signIn(t)
		before := env.store.User()

		ok, err := env.store.UseCreditForScan(ctx)
		if err != nil || ok {
			t.Errorf("UseCreditForScan() = (%v, %v), want (false, nil)", ok, err)
		}
		if env.data.updates != 0 {
			t.Error("expected no write")
		}
		if after := env.store.User(); after.Credits != before.Credits || !after.UpdatedAt.Equal(before.UpdatedAt) {
			t.Errorf("state changed: before %+v, after %+v", before.Profile, after.Profile)
		}
	})

	t.Run("spends one credit", func(t *testing.T) {
		env := newTestEnv(t)
		env.setProfile(t, models.ProfilePatch{Credits: intPtr(2)})
		env.signIn(t)

		ok, err := env.store.UseCreditForScan(ctx)
		if err != nil || !ok {
			t.Fatalf("UseCreditForScan() = (%v, %v), want (true, nil)", ok, err)
		}
		if got := env.store.User().Credits; got != 1 {
			t.Errorf("credits = %d, want 1", got)
		}
	})

	t.Run("failed write reports false", func(t *testing.T) {
		env := newTestEnv(t)
		env.setProfile(t, models.ProfilePatch{Credits: intPtr(2)})
		env.signIn(t)
		env.data.updateErr = errors.New("write failed")

		ok, err := env.store.UseCreditForScan(ctx)
		if err == nil || ok {
			t.Errorf("UseCreditForScan() = (%v, %v), want (false, error)", ok, err)
		}
		if got := env.store.User().Credits; got != 2 {
			t.Errorf("credits = %d, want 2", got)
		}
	})
}

func TestAddCreditsAndSetPremium(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	env.signIn(t)

	if err := env.store.AddCredits(ctx, 5); err != nil {
		t.Fatalf("AddCredits failed: %v", err)
	}
	if err := env.store.AddCredits(ctx, 3); err != nil {
		t.Fatalf("AddCredits failed: %v", err)
	}
	if got := env.store.User().Credits; got != 8 {
		t.Errorf("credits = %d, want 8", got)
	}
	if flags := env.store.Flags(); !flags.CanUseWithCredits || flags.CanUseForFree {
		t.Errorf("unexpected flags with credits: %+v", flags)
	}

	if err := env.store.AddCredits(ctx, -20); err == nil {
		t.Error("expected negative balance to be rejected")
	}
	if got := env.store.User().Credits; got != 8 {
		t.Errorf("credits = %d after rejected write, want 8", got)
	}

	if err := env.store.SetPremium(ctx, true); err != nil {
		t.Fatalf("SetPremium failed: %v", err)
	}
	flags := env.store.Flags()
	if !flags.CanUseAsPremium || flags.CanUseWithCredits || flags.CanUseForFree {
		t.Errorf("unexpected premium flags: %+v", flags)
	}
}

func TestAddMealToLog(t *testing.T) {
	ctx := context.Background()

	t.Run("prepends the stored entry", func(t *testing.T) {
		env := newTestEnv(t)
		env.signIn(t)
		if _, err := env.store.AddMealToLog(ctx, models.MealLogEntry{Name: "Oats", Calories: 150}); err != nil {
			t.Fatalf("AddMealToLog failed: %v", err)
		}

		inserted, err := env.store.AddMealToLog(ctx, models.MealLogEntry{
			ID:       "client-id",
			UserID:   "someone-else",
			Name:     "Apple",
			Calories: 95,
		})
		if err != nil {
			t.Fatalf("AddMealToLog failed: %v", err)
		}
		if inserted.ID == "" || inserted.ID == "client-id" {
			t.Errorf("expected service-assigned ID, got %q", inserted.ID)
		}

		log := env.store.User().MealLog
		if len(log) != 2 {
			t.Fatalf("expected 2 entries, got %d", len(log))
		}
		first := log[0]
		if first.Name != "Apple" || first.UserID != "u1" || first.ID != inserted.ID {
			t.Errorf("unexpected first entry: %+v", first)
		}
		if !first.ScannedAt.Equal(testClock) {
			t.Errorf("ScannedAt = %v, want %v", first.ScannedAt, testClock)
		}
	})

	t.Run("failed insert leaves the log unchanged", func(t *testing.T) {
		env := newTestEnv(t)
		env.signIn(t)
		env.data.insertErr = errors.New("insert failed")

		inserted, err := env.store.AddMealToLog(ctx, models.MealLogEntry{Name: "Apple"})
		if err == nil || inserted != nil {
			t.Errorf("AddMealToLog() = (%v, %v), want (nil, error)", inserted, err)
		}
		if len(env.store.User().MealLog) != 0 {
			t.Error("expected meal log unchanged")
		}
		if env.store.Error() != "insert failed" {
			t.Errorf("Error() = %q, want %q", env.store.Error(), "insert failed")
		}
	})
}

func TestUpdateProfileErrorPolicy(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	env.signIn(t)
	if _, err := env.store.AddMealToLog(ctx, models.MealLogEntry{Name: "Soup"}); err != nil {
		t.Fatalf("AddMealToLog failed: %v", err)
	}
	before := env.store.User()

	env.data.updateErr = errors.New("service unavailable")
	profile, err := env.store.UpdateProfile(ctx, "u1", models.ProfilePatch{Credits: intPtr(4)})
	if err == nil || profile != nil {
		t.Fatalf("UpdateProfile() = (%v, %v), want (nil, error)", profile, err)
	}
	after := env.store.User()
	if after.Credits != before.Credits || len(after.MealLog) != len(before.MealLog) {
		t.Errorf("failed update changed the user: %+v", after)
	}
	if env.store.Error() != "service unavailable" {
		t.Errorf("Error() = %q", env.store.Error())
	}

	env.data.updateErr = nil
	profile, err = env.store.UpdateProfile(ctx, "u1", models.ProfilePatch{
		Credits: intPtr(4),
		Extra:   map[string]any{"theme": "dark"},
	})
	if err != nil {
		t.Fatalf("UpdateProfile failed: %v", err)
	}
	if profile.Credits != 4 || !profile.UpdatedAt.Equal(testClock) {
		t.Errorf("unexpected returned profile: %+v", profile)
	}
	after = env.store.User()
	if after.Credits != 4 || after.Extra["theme"] != "dark" {
		t.Errorf("update not merged: %+v", after.Profile)
	}
	if len(after.MealLog) != 1 {
		t.Error("update dropped the meal log")
	}
	if env.store.Error() != "" {
		t.Errorf("expected error cleared after success, got %q", env.store.Error())
	}

	env.data.updateErr = errors.New("again")
	_, _ = env.store.UpdateProfile(ctx, "u1", models.ProfilePatch{})
	env.store.ClearError()
	if env.store.Error() != "" {
		t.Error("ClearError did not clear the error")
	}
}

func TestOperationsWithoutUserAreNoOps(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	if err := env.store.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	if err := env.store.IncrementTrackCaloriesUsage(ctx); err != nil {
		t.Errorf("Increment: %v", err)
	}
	if err := env.store.AddCredits(ctx, 3); err != nil {
		t.Errorf("AddCredits: %v", err)
	}
	if ok, err := env.store.UseCreditForScan(ctx); ok || err != nil {
		t.Errorf("UseCreditForScan() = (%v, %v)", ok, err)
	}
	if err := env.store.SetPremium(ctx, true); err != nil {
		t.Errorf("SetPremium: %v", err)
	}
	if entry, err := env.store.AddMealToLog(ctx, models.MealLogEntry{Name: "Apple"}); entry != nil || err != nil {
		t.Errorf("AddMealToLog() = (%v, %v)", entry, err)
	}
	if _, err := env.store.ConsumeScan(ctx); !errors.Is(err, ErrNoSession) {
		t.Errorf("ConsumeScan: expected ErrNoSession, got %v", err)
	}
	if env.data.updates != 0 {
		t.Errorf("expected no writes, got %d", env.data.updates)
	}
}

func TestConsumeScan(t *testing.T) {
	ctx := context.Background()
	tests := []struct {
		name        string
		patch       models.ProfilePatch
		wantMode    entitlement.Mode
		wantErr     error
		wantCredits int
		wantUsage   int
	}{
		{"free", models.ProfilePatch{}, entitlement.ModeFree, nil, 0, 1},
		{"credits", models.ProfilePatch{Credits: intPtr(2)}, entitlement.ModeCredits, nil, 1, 0},
		{"premium", models.ProfilePatch{IsPremium: boolPtr(true), Credits: intPtr(2)}, entitlement.ModePremium, nil, 2, 0},
		{"exhausted", models.ProfilePatch{TrackCaloriesUsage: intPtr(10)}, entitlement.ModeNone, ErrNoScansLeft, 0, 10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			env.setProfile(t, tt.patch)
			env.signIn(t)

			mode, err := env.store.ConsumeScan(ctx)
			if mode != tt.wantMode {
				t.Errorf("mode = %v, want %v", mode, tt.wantMode)
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("err = %v, want %v", err, tt.wantErr)
			}
			user := env.store.User()
			if user.Credits != tt.wantCredits || user.TrackCaloriesUsage != tt.wantUsage {
				t.Errorf("credits/usage = %d/%d, want %d/%d", user.Credits, user.TrackCaloriesUsage, tt.wantCredits, tt.wantUsage)
			}
		})
	}
}

func TestRefresh(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	env.signIn(t)

	env.setProfile(t, models.ProfilePatch{Credits: intPtr(7)})
	if err := env.store.Refresh(ctx); err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}
	if got := env.store.User().Credits; got != 7 {
		t.Errorf("credits = %d, want 7", got)
	}
}

func TestSnapshotIsACopy(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	env.signIn(t)
	if _, err := env.store.AddMealToLog(ctx, models.MealLogEntry{Name: "Apple", Extra: map[string]any{"fiber": 4.4}}); err != nil {
		t.Fatalf("AddMealToLog failed: %v", err)
	}

	state := env.store.Snapshot()
	state.User.Credits = 99
	state.User.MealLog[0].Name = "Changed"
	state.User.MealLog[0].Extra["fiber"] = 0.0

	user := env.store.User()
	if user.Credits == 99 || user.MealLog[0].Name != "Apple" || user.MealLog[0].Extra["fiber"] != 4.4 {
		t.Errorf("snapshot shares state with the store: %+v", user)
	}
}
