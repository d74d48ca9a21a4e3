package rpc

import (
	"time"

	"github.com/mmynk/mealscan/internal/models"
)

type GetProfileRequest struct {
	ID string `json:"id"`
}

type GetProfileResponse struct {
	Profile *models.Profile `json:"profile"`
}

type UpdateProfileRequest struct {
	ID    string              `json:"id"`
	Patch models.ProfilePatch `json:"patch"`
}

type UpdateProfileResponse struct {
	Profile *models.Profile `json:"profile"`
}

type ListMealLogsRequest struct {
	UserID string `json:"user_id"`
}

type ListMealLogsResponse struct {
	Entries []models.MealLogEntry `json:"entries"`
}

type InsertMealLogRequest struct {
	Entry models.MealLogEntry `json:"entry"`
}

type InsertMealLogResponse struct {
	Entry *models.MealLogEntry `json:"entry"`
}

// User is the public view of an account.
type User struct {
	ID          string `json:"id"`
	Email       string `json:"email"`
	DisplayName string `json:"display_name"`
	CreatedAt   int64  `json:"created_at"`
}

type RegisterRequest struct {
	Email       string `json:"email"`
	DisplayName string `json:"display_name"`
	Password    string `json:"password"`
}

type RegisterResponse struct {
	User      User      `json:"user"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginResponse struct {
	User      User      `json:"user"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

type LogoutRequest struct{}

type LogoutResponse struct{}

type GetCurrentUserRequest struct{}

type GetCurrentUserResponse struct {
	User User `json:"user"`
}
