// Package remote implements storage.DataService and auth.SessionIssuer
// against a mealscan server over Connect.
package remote

import (
	"context"
	"fmt"

	"connectrpc.com/connect"

	"github.com/mmynk/mealscan/internal/auth"
	"github.com/mmynk/mealscan/internal/middleware"
	"github.com/mmynk/mealscan/internal/models"
	"github.com/mmynk/mealscan/internal/rpc"
	"github.com/mmynk/mealscan/internal/storage"
)

var (
	_ storage.DataService = (*DataService)(nil)
	_ auth.SessionIssuer  = (*Client)(nil)
)

// TokenSource supplies the bearer token for data calls.
// *auth.Provider implements it.
type TokenSource interface {
	Token() string
}

// Client talks to one mealscan server.
type Client struct {
	httpClient connect.HTTPClient
	baseURL    string
	auth       *rpc.AuthServiceClient
}

// New creates a client for the server at baseURL.
func New(httpClient connect.HTTPClient, baseURL string) *Client {
	return &Client{
		httpClient: httpClient,
		baseURL:    baseURL,
		auth:       rpc.NewAuthServiceClient(httpClient, baseURL),
	}
}

// Register creates an account and returns its first session.
func (c *Client) Register(ctx context.Context, email, displayName, password string) (*auth.Session, error) {
	resp, err := c.auth.Register(ctx, connect.NewRequest(&rpc.RegisterRequest{
		Email:       email,
		DisplayName: displayName,
		Password:    password,
	}))
	if err != nil {
		return nil, fmt.Errorf("register: %w", err)
	}
	return &auth.Session{
		User:      auth.Identity{ID: resp.Msg.User.ID, Email: resp.Msg.User.Email},
		Token:     resp.Msg.Token,
		ExpiresAt: resp.Msg.ExpiresAt,
	}, nil
}

// Login exchanges credentials for a session.
func (c *Client) Login(ctx context.Context, email, password string) (*auth.Session, error) {
	resp, err := c.auth.Login(ctx, connect.NewRequest(&rpc.LoginRequest{
		Email:    email,
		Password: password,
	}))
	if connect.CodeOf(err) == connect.CodeUnauthenticated {
		return nil, auth.ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("login: %w", err)
	}
	return &auth.Session{
		User:      auth.Identity{ID: resp.Msg.User.ID, Email: resp.Msg.User.Email},
		Token:     resp.Msg.Token,
		ExpiresAt: resp.Msg.ExpiresAt,
	}, nil
}

// DataService returns a data service that authenticates with tokens.
func (c *Client) DataService(tokens TokenSource) *DataService {
	return &DataService{
		client: rpc.NewDataServiceClient(c.httpClient, c.baseURL,
			connect.WithInterceptors(middleware.BearerToken(tokens.Token)),
		),
	}
}

// DataService is a storage.DataService backed by the server's DataService.
type DataService struct {
	client *rpc.DataServiceClient
}

func (d *DataService) GetProfile(ctx context.Context, id string) (*models.Profile, error) {
	resp, err := d.client.GetProfile(ctx, connect.NewRequest(&rpc.GetProfileRequest{ID: id}))
	if err != nil {
		return nil, fromConnectError("get profile", err)
	}
	return resp.Msg.Profile, nil
}

func (d *DataService) UpdateProfile(ctx context.Context, id string, patch models.ProfilePatch) (*models.Profile, error) {
	resp, err := d.client.UpdateProfile(ctx, connect.NewRequest(&rpc.UpdateProfileRequest{ID: id, Patch: patch}))
	if connect.CodeOf(err) == connect.CodeInvalidArgument {
		return nil, fmt.Errorf("update profile: %w: %v", models.ErrInvalidPatch, err)
	}
	if err != nil {
		return nil, fromConnectError("update profile", err)
	}
	return resp.Msg.Profile, nil
}

func (d *DataService) ListMealLogs(ctx context.Context, userID string) ([]models.MealLogEntry, error) {
	resp, err := d.client.ListMealLogs(ctx, connect.NewRequest(&rpc.ListMealLogsRequest{UserID: userID}))
	if err != nil {
		return nil, fromConnectError("list meal logs", err)
	}
	return resp.Msg.Entries, nil
}

func (d *DataService) InsertMealLog(ctx context.Context, entry models.MealLogEntry) (*models.MealLogEntry, error) {
	entry.ID = ""
	resp, err := d.client.InsertMealLog(ctx, connect.NewRequest(&rpc.InsertMealLogRequest{Entry: entry}))
	if err != nil {
		return nil, fromConnectError("insert meal log", err)
	}
	return resp.Msg.Entry, nil
}

// fromConnectError maps CodeNotFound back onto storage.ErrNotFound.
func fromConnectError(op string, err error) error {
	if connect.CodeOf(err) == connect.CodeNotFound {
		return fmt.Errorf("%s: %w", op, storage.ErrNotFound)
	}
	return fmt.Errorf("%s: %w", op, err)
}
