package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"connectrpc.com/connect"
	"github.com/mmynk/mealscan/internal/middleware"
	"github.com/mmynk/mealscan/internal/models"
	"github.com/mmynk/mealscan/internal/rpc"
	"github.com/mmynk/mealscan/internal/storage"
)

var errForeignRecord = errors.New("records belong to another user")

// Ensure DataService implements rpc.DataServiceHandler
var _ rpc.DataServiceHandler = (*DataService)(nil)

// DataService serves the profile and meal-log collections over Connect.
// Every call must be authenticated, and callers only reach their own records.
type DataService struct {
	store  storage.DataService
	logger *slog.Logger
}

// NewDataService creates a new DataService with the given storage backend.
func NewDataService(store storage.DataService, logger *slog.Logger) *DataService {
	if logger == nil {
		logger = slog.Default()
	}
	return &DataService{store: store, logger: logger}
}

// GetProfile returns the caller's profile.
func (s *DataService) GetProfile(ctx context.Context, req *connect.Request[rpc.GetProfileRequest]) (*connect.Response[rpc.GetProfileResponse], error) {
	if err := authorize(ctx, req.Msg.ID); err != nil {
		return nil, err
	}

	profile, err := s.store.GetProfile(ctx, req.Msg.ID)
	if err != nil {
		return nil, s.toConnectError("GetProfile", req.Msg.ID, err)
	}

	return connect.NewResponse(&rpc.GetProfileResponse{Profile: profile}), nil
}

// UpdateProfile applies a partial update to the caller's profile.
func (s *DataService) UpdateProfile(ctx context.Context, req *connect.Request[rpc.UpdateProfileRequest]) (*connect.Response[rpc.UpdateProfileResponse], error) {
	if err := authorize(ctx, req.Msg.ID); err != nil {
		return nil, err
	}

	profile, err := s.store.UpdateProfile(ctx, req.Msg.ID, req.Msg.Patch)
	if err != nil {
		return nil, s.toConnectError("UpdateProfile", req.Msg.ID, err)
	}

	s.logger.Info("Profile updated",
		"user_id", profile.ID,
		"is_premium", profile.IsPremium,
		"credits", profile.Credits,
		"track_calories_usage", profile.TrackCaloriesUsage,
	)

	return connect.NewResponse(&rpc.UpdateProfileResponse{Profile: profile}), nil
}

// ListMealLogs returns the caller's meal log, newest first.
func (s *DataService) ListMealLogs(ctx context.Context, req *connect.Request[rpc.ListMealLogsRequest]) (*connect.Response[rpc.ListMealLogsResponse], error) {
	if err := authorize(ctx, req.Msg.UserID); err != nil {
		return nil, err
	}

	entries, err := s.store.ListMealLogs(ctx, req.Msg.UserID)
	if err != nil {
		return nil, s.toConnectError("ListMealLogs", req.Msg.UserID, err)
	}

	return connect.NewResponse(&rpc.ListMealLogsResponse{Entries: entries}), nil
}

// InsertMealLog stores a meal for the caller. An empty user_id defaults to
// the caller.
func (s *DataService) InsertMealLog(ctx context.Context, req *connect.Request[rpc.InsertMealLogRequest]) (*connect.Response[rpc.InsertMealLogResponse], error) {
	entry := req.Msg.Entry
	if entry.UserID == "" {
		entry.UserID = middleware.GetUserID(ctx)
	}
	if err := authorize(ctx, entry.UserID); err != nil {
		return nil, err
	}
	if entry.Name == "" {
		return nil, connect.NewError(connect.CodeInvalidArgument, errors.New("meal name is required"))
	}

	inserted, err := s.store.InsertMealLog(ctx, entry)
	if err != nil {
		return nil, s.toConnectError("InsertMealLog", entry.UserID, err)
	}

	s.logger.Info("Meal logged", "user_id", inserted.UserID, "meal_id", inserted.ID, "name", inserted.Name)

	return connect.NewResponse(&rpc.InsertMealLogResponse{Entry: inserted}), nil
}

// authorize checks that the authenticated caller owns userID.
func authorize(ctx context.Context, userID string) error {
	caller := middleware.GetUserID(ctx)
	if caller == "" {
		return connect.NewError(connect.CodeUnauthenticated, errors.New("authentication required"))
	}
	if userID != caller {
		return connect.NewError(connect.CodePermissionDenied, errForeignRecord)
	}
	return nil
}

func (s *DataService) toConnectError(op, userID string, err error) error {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return connect.NewError(connect.CodeNotFound, err)
	case errors.Is(err, models.ErrInvalidPatch):
		return connect.NewError(connect.CodeInvalidArgument, err)
	default:
		s.logger.Error(op+" failed", "user_id", userID, "error", err)
		return connect.NewError(connect.CodeInternal, fmt.Errorf("%s failed", op))
	}
}
