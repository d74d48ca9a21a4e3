package service

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"connectrpc.com/connect"
	"github.com/mmynk/mealscan/internal/auth"
	"github.com/mmynk/mealscan/internal/middleware"
	"github.com/mmynk/mealscan/internal/models"
	"github.com/mmynk/mealscan/internal/rpc"
	"github.com/mmynk/mealscan/internal/storage/sqlite"
)

type testServer struct {
	url  string
	auth *rpc.AuthServiceClient
}

// setupTestServer creates a test server with both services mounted.
func setupTestServer(t *testing.T) *testServer {
	t.Helper()

	tmpFile, err := os.CreateTemp("", "test-*.db")
	if err != nil {
		t.Fatalf("failed to create temp file: %v", err)
	}
	tmpFile.Close()

	store, err := sqlite.New(tmpFile.Name())
	if err != nil {
		os.Remove(tmpFile.Name())
		t.Fatalf("failed to create store: %v", err)
	}

	jwtManager := auth.NewJWTManager("test-secret", time.Hour)
	authenticator := auth.NewPasswordAuthenticator(store)

	mux := http.NewServeMux()
	Mount(mux,
		NewDataService(store, nil),
		NewAuthService(authenticator, jwtManager, store, nil),
		jwtManager,
		nil,
	)
	server := httptest.NewServer(mux)

	t.Cleanup(func() {
		server.Close()
		store.Close()
		os.Remove(tmpFile.Name())
	})

	return &testServer{
		url:  server.URL,
		auth: rpc.NewAuthServiceClient(http.DefaultClient, server.URL),
	}
}

// dataClient returns a DataService client that sends token.
func (s *testServer) dataClient(token string) *rpc.DataServiceClient {
	return rpc.NewDataServiceClient(http.DefaultClient, s.url,
		connect.WithInterceptors(middleware.BearerToken(func() string { return token })),
	)
}

func (s *testServer) register(t *testing.T, email string) *rpc.RegisterResponse {
	t.Helper()
	resp, err := s.auth.Register(context.Background(), connect.NewRequest(&rpc.RegisterRequest{
		Email:       email,
		DisplayName: "Tester",
		Password:    "password123",
	}))
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	return resp.Msg
}

func expectCode(t *testing.T, err error, code connect.Code) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %v error, got nil", code)
	}
	var connectErr *connect.Error
	if !errors.As(err, &connectErr) {
		t.Fatalf("expected connect.Error, got %T", err)
	}
	if connectErr.Code() != code {
		t.Errorf("expected %v, got %v", code, connectErr.Code())
	}
}

func TestAuthService(t *testing.T) {
	server := setupTestServer(t)
	ctx := context.Background()

	registered := server.register(t, "alice@example.com")
	if registered.User.ID == "" || registered.Token == "" {
		t.Fatalf("unexpected register response: %+v", registered)
	}

	t.Run("duplicate email", func(t *testing.T) {
		_, err := server.auth.Register(ctx, connect.NewRequest(&rpc.RegisterRequest{
			Email: "alice@example.com", DisplayName: "Alice", Password: "password123",
		}))
		expectCode(t, err, connect.CodeAlreadyExists)
	})

	t.Run("weak password", func(t *testing.T) {
		_, err := server.auth.Register(ctx, connect.NewRequest(&rpc.RegisterRequest{
			Email: "bob@example.com", DisplayName: "Bob", Password: "short",
		}))
		expectCode(t, err, connect.CodeInvalidArgument)
	})

	t.Run("malformed email", func(t *testing.T) {
		_, err := server.auth.Register(ctx, connect.NewRequest(&rpc.RegisterRequest{
			Email: "bob-at-example.com", DisplayName: "Bob", Password: "password123",
		}))
		expectCode(t, err, connect.CodeInvalidArgument)
	})

	t.Run("login", func(t *testing.T) {
		resp, err := server.auth.Login(ctx, connect.NewRequest(&rpc.LoginRequest{
			Email: "alice@example.com", Password: "password123",
		}))
		if err != nil {
			t.Fatalf("Login failed: %v", err)
		}
		if resp.Msg.User.ID != registered.User.ID {
			t.Errorf("user ID: expected %s, got %s", registered.User.ID, resp.Msg.User.ID)
		}
	})

	t.Run("login with wrong password", func(t *testing.T) {
		_, err := server.auth.Login(ctx, connect.NewRequest(&rpc.LoginRequest{
			Email: "alice@example.com", Password: "wrong-password",
		}))
		expectCode(t, err, connect.CodeUnauthenticated)
	})

	t.Run("current user requires a token", func(t *testing.T) {
		_, err := server.auth.GetCurrentUser(ctx, connect.NewRequest(&rpc.GetCurrentUserRequest{}))
		expectCode(t, err, connect.CodeUnauthenticated)
	})

	t.Run("current user with token", func(t *testing.T) {
		req := connect.NewRequest(&rpc.GetCurrentUserRequest{})
		req.Header().Set("Authorization", "Bearer "+registered.Token)
		resp, err := server.auth.GetCurrentUser(ctx, req)
		if err != nil {
			t.Fatalf("GetCurrentUser failed: %v", err)
		}
		if resp.Msg.User.Email != "alice@example.com" || resp.Msg.User.DisplayName != "Tester" {
			t.Errorf("unexpected user: %+v", resp.Msg.User)
		}
	})
}

func TestDataService(t *testing.T) {
	server := setupTestServer(t)
	ctx := context.Background()

	alice := server.register(t, "alice@example.com")
	bob := server.register(t, "bob@example.com")
	client := server.dataClient(alice.Token)

	t.Run("requires authentication", func(t *testing.T) {
		_, err := server.dataClient("").GetProfile(ctx, connect.NewRequest(&rpc.GetProfileRequest{ID: alice.User.ID}))
		expectCode(t, err, connect.CodeUnauthenticated)

		_, err = server.dataClient("garbage").GetProfile(ctx, connect.NewRequest(&rpc.GetProfileRequest{ID: alice.User.ID}))
		expectCode(t, err, connect.CodeUnauthenticated)
	})

	t.Run("new account has a default profile", func(t *testing.T) {
		resp, err := client.GetProfile(ctx, connect.NewRequest(&rpc.GetProfileRequest{ID: alice.User.ID}))
		if err != nil {
			t.Fatalf("GetProfile failed: %v", err)
		}
		p := resp.Msg.Profile
		if p.ID != alice.User.ID || p.IsPremium || p.Credits != 0 || p.TrackCaloriesUsage != 0 {
			t.Errorf("unexpected profile: %+v", p)
		}
	})

	t.Run("other users' records are denied", func(t *testing.T) {
		_, err := client.GetProfile(ctx, connect.NewRequest(&rpc.GetProfileRequest{ID: bob.User.ID}))
		expectCode(t, err, connect.CodePermissionDenied)

		_, err = client.ListMealLogs(ctx, connect.NewRequest(&rpc.ListMealLogsRequest{UserID: bob.User.ID}))
		expectCode(t, err, connect.CodePermissionDenied)

		_, err = client.InsertMealLog(ctx, connect.NewRequest(&rpc.InsertMealLogRequest{
			Entry: models.MealLogEntry{UserID: bob.User.ID, Name: "Apple"},
		}))
		expectCode(t, err, connect.CodePermissionDenied)
	})

	t.Run("update profile", func(t *testing.T) {
		credits := 3
		resp, err := client.UpdateProfile(ctx, connect.NewRequest(&rpc.UpdateProfileRequest{
			ID:    alice.User.ID,
			Patch: models.ProfilePatch{Credits: &credits},
		}))
		if err != nil {
			t.Fatalf("UpdateProfile failed: %v", err)
		}
		if resp.Msg.Profile.Credits != 3 {
			t.Errorf("credits: expected 3, got %d", resp.Msg.Profile.Credits)
		}
	})

	t.Run("negative credits are invalid", func(t *testing.T) {
		credits := -1
		_, err := client.UpdateProfile(ctx, connect.NewRequest(&rpc.UpdateProfileRequest{
			ID:    alice.User.ID,
			Patch: models.ProfilePatch{Credits: &credits},
		}))
		expectCode(t, err, connect.CodeInvalidArgument)
	})

	t.Run("insert and list meals", func(t *testing.T) {
		insert, err := client.InsertMealLog(ctx, connect.NewRequest(&rpc.InsertMealLogRequest{
			Entry: models.MealLogEntry{ID: "client-id", Name: "Apple", Calories: 95},
		}))
		if err != nil {
			t.Fatalf("InsertMealLog failed: %v", err)
		}
		if insert.Msg.Entry.ID == "" || insert.Msg.Entry.ID == "client-id" {
			t.Errorf("expected server-assigned ID, got %q", insert.Msg.Entry.ID)
		}
		if insert.Msg.Entry.UserID != alice.User.ID {
			t.Errorf("user_id: expected %s, got %s", alice.User.ID, insert.Msg.Entry.UserID)
		}

		list, err := client.ListMealLogs(ctx, connect.NewRequest(&rpc.ListMealLogsRequest{UserID: alice.User.ID}))
		if err != nil {
			t.Fatalf("ListMealLogs failed: %v", err)
		}
		if len(list.Msg.Entries) != 1 || list.Msg.Entries[0].Name != "Apple" {
			t.Errorf("unexpected entries: %+v", list.Msg.Entries)
		}
	})

	t.Run("meal name is required", func(t *testing.T) {
		_, err := client.InsertMealLog(ctx, connect.NewRequest(&rpc.InsertMealLogRequest{
			Entry: models.MealLogEntry{Calories: 10},
		}))
		expectCode(t, err, connect.CodeInvalidArgument)
	})
}
