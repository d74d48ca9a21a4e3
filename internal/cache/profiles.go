package cache

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/mmynk/mealscan/internal/models"
	"github.com/mmynk/mealscan/internal/storage"
	"github.com/mmynk/mealscan/internal/telemetry"
)

// Ensure ProfileCache implements storage.DataService
var _ storage.DataService = (*ProfileCache)(nil)

// ProfileCache serves GetProfile from a KV store. Misses fill the cache and
// updates invalidate it. Meal logs pass straight to the backing service.
// Cache failures never fail a call; they fall back to the backing service.
type ProfileCache struct {
	next   storage.DataService
	kv     KV
	ttl    time.Duration
	logger *slog.Logger
	group  singleflight.Group

	// mu orders cache fills against invalidations. writes counts profile
	// updates; a fill that began before an update must not be stored.
	mu     sync.Mutex
	writes uint64
}

// NewProfileCache wraps next with a profile cache whose entries live for ttl.
func NewProfileCache(next storage.DataService, kv KV, ttl time.Duration, logger *slog.Logger) *ProfileCache {
	if logger == nil {
		logger = slog.Default()
	}
	return &ProfileCache{next: next, kv: kv, ttl: ttl, logger: logger}
}

func profileKey(id string) string {
	return "mealscan:profile:" + id
}

// GetProfile returns the cached profile or loads it. Concurrent misses for
// the same id share one backing read. Missing profiles are not cached.
func (c *ProfileCache) GetProfile(ctx context.Context, id string) (*models.Profile, error) {
	key := profileKey(id)

	data, err := c.kv.Get(ctx, key)
	switch {
	case err == nil:
		var profile models.Profile
		if err := json.Unmarshal(data, &profile); err == nil {
			telemetry.ObserveCacheLookup("hit")
			return &profile, nil
		}
		c.logger.Warn("Dropping undecodable cached profile", "user_id", id)
		c.delete(ctx, key)
	case errors.Is(err, ErrMiss):
		telemetry.ObserveCacheLookup("miss")
	default:
		telemetry.ObserveCacheLookup("error")
		c.logger.Warn("Profile cache read failed", "user_id", id, "error", err)
	}

	ch := c.group.DoChan(key, func() (any, error) {
		c.mu.Lock()
		writes := c.writes
		c.mu.Unlock()

		// Shared by every waiting caller.
		profile, err := c.next.GetProfile(context.WithoutCancel(ctx), id)
		if err != nil {
			return nil, err
		}
		c.fill(ctx, profile, writes)
		return profile, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*models.Profile).Clone(), nil
	}
}

// UpdateProfile writes through the backing service and drops the cached
// profile. The next read fills it again.
func (c *ProfileCache) UpdateProfile(ctx context.Context, id string, patch models.ProfilePatch) (*models.Profile, error) {
	profile, err := c.next.UpdateProfile(ctx, id, patch)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.writes++
	c.delete(context.WithoutCancel(ctx), profileKey(id))
	c.mu.Unlock()

	return profile, nil
}

func (c *ProfileCache) ListMealLogs(ctx context.Context, userID string) ([]models.MealLogEntry, error) {
	return c.next.ListMealLogs(ctx, userID)
}

func (c *ProfileCache) InsertMealLog(ctx context.Context, entry models.MealLogEntry) (*models.MealLogEntry, error) {
	return c.next.InsertMealLog(ctx, entry)
}

// fill caches profile unless an update has happened since the read that
// produced it started. If the write fails the entry is deleted instead.
func (c *ProfileCache) fill(ctx context.Context, profile *models.Profile, writes uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.writes != writes {
		c.logger.Debug("Skipping cache fill after concurrent update", "user_id", profile.ID)
		return
	}

	ctx = context.WithoutCancel(ctx)
	key := profileKey(profile.ID)
	data, err := json.Marshal(profile)
	if err == nil {
		err = c.kv.Set(ctx, key, data, c.ttl)
	}
	if err != nil {
		c.logger.Warn("Profile cache write failed", "user_id", profile.ID, "error", err)
		c.delete(ctx, key)
	}
}

func (c *ProfileCache) delete(ctx context.Context, key string) {
	if err := c.kv.Del(ctx, key); err != nil {
		c.logger.Warn("Profile cache delete failed", "key", key, "error", err)
	}
}
