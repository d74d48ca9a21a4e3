package rpc

import (
	"context"
	"net/http"
	"strings"

	"connectrpc.com/connect"
)

const (
	DataServiceName = "mealscan.v1.DataService"
	AuthServiceName = "mealscan.v1.AuthService"
)

const (
	DataServiceGetProfileProcedure    = "/" + DataServiceName + "/GetProfile"
	DataServiceUpdateProfileProcedure = "/" + DataServiceName + "/UpdateProfile"
	DataServiceListMealLogsProcedure  = "/" + DataServiceName + "/ListMealLogs"
	DataServiceInsertMealLogProcedure = "/" + DataServiceName + "/InsertMealLog"

	AuthServiceRegisterProcedure       = "/" + AuthServiceName + "/Register"
	AuthServiceLoginProcedure          = "/" + AuthServiceName + "/Login"
	AuthServiceLogoutProcedure         = "/" + AuthServiceName + "/Logout"
	AuthServiceGetCurrentUserProcedure = "/" + AuthServiceName + "/GetCurrentUser"
)

// DataServiceHandler serves the profile and meal-log collections.
type DataServiceHandler interface {
	GetProfile(context.Context, *connect.Request[GetProfileRequest]) (*connect.Response[GetProfileResponse], error)
	UpdateProfile(context.Context, *connect.Request[UpdateProfileRequest]) (*connect.Response[UpdateProfileResponse], error)
	ListMealLogs(context.Context, *connect.Request[ListMealLogsRequest]) (*connect.Response[ListMealLogsResponse], error)
	InsertMealLog(context.Context, *connect.Request[InsertMealLogRequest]) (*connect.Response[InsertMealLogResponse], error)
}

// AuthServiceHandler serves account registration and sign-in.
type AuthServiceHandler interface {
	Register(context.Context, *connect.Request[RegisterRequest]) (*connect.Response[RegisterResponse], error)
	Login(context.Context, *connect.Request[LoginRequest]) (*connect.Response[LoginResponse], error)
	Logout(context.Context, *connect.Request[LogoutRequest]) (*connect.Response[LogoutResponse], error)
	GetCurrentUser(context.Context, *connect.Request[GetCurrentUserRequest]) (*connect.Response[GetCurrentUserResponse], error)
}

// NewDataServiceHandler builds an HTTP handler for svc and returns the path
// prefix to mount it on.
func NewDataServiceHandler(svc DataServiceHandler, opts ...connect.HandlerOption) (string, http.Handler) {
	opts = append([]connect.HandlerOption{WithJSON()}, opts...)
	mux := http.NewServeMux()
	mux.Handle(DataServiceGetProfileProcedure, connect.NewUnaryHandler(DataServiceGetProfileProcedure, svc.GetProfile, opts...))
	mux.Handle(DataServiceUpdateProfileProcedure, connect.NewUnaryHandler(DataServiceUpdateProfileProcedure, svc.UpdateProfile, opts...))
	mux.Handle(DataServiceListMealLogsProcedure, connect.NewUnaryHandler(DataServiceListMealLogsProcedure, svc.ListMealLogs, opts...))
	mux.Handle(DataServiceInsertMealLogProcedure, connect.NewUnaryHandler(DataServiceInsertMealLogProcedure, svc.InsertMealLog, opts...))
	return "/" + DataServiceName + "/", mux
}

// NewAuthServiceHandler builds an HTTP handler for svc and returns the path
// prefix to mount it on.
func NewAuthServiceHandler(svc AuthServiceHandler, opts ...connect.HandlerOption) (string, http.Handler) {
	opts = append([]connect.HandlerOption{WithJSON()}, opts...)
	mux := http.NewServeMux()
	mux.Handle(AuthServiceRegisterProcedure, connect.NewUnaryHandler(AuthServiceRegisterProcedure, svc.Register, opts...))
	mux.Handle(AuthServiceLoginProcedure, connect.NewUnaryHandler(AuthServiceLoginProcedure, svc.Login, opts...))
	mux.Handle(AuthServiceLogoutProcedure, connect.NewUnaryHandler(AuthServiceLogoutProcedure, svc.Logout, opts...))
	mux.Handle(AuthServiceGetCurrentUserProcedure, connect.NewUnaryHandler(AuthServiceGetCurrentUserProcedure, svc.GetCurrentUser, opts...))
	return "/" + AuthServiceName + "/", mux
}

// DataServiceClient calls a remote DataService.
type DataServiceClient struct {
	getProfile    *connect.Client[GetProfileRequest, GetProfileResponse]
	updateProfile *connect.Client[UpdateProfileRequest, UpdateProfileResponse]
	listMealLogs  *connect.Client[ListMealLogsRequest, ListMealLogsResponse]
	insertMealLog *connect.Client[InsertMealLogRequest, InsertMealLogResponse]
}

// NewDataServiceClient creates a client for the DataService at baseURL
// (e.g. "http://localhost:8080").
func NewDataServiceClient(httpClient connect.HTTPClient, baseURL string, opts ...connect.ClientOption) *DataServiceClient {
	baseURL = strings.TrimRight(baseURL, "/")
	opts = append([]connect.ClientOption{WithJSON()}, opts...)
	return &DataServiceClient{
		getProfile:    connect.NewClient[GetProfileRequest, GetProfileResponse](httpClient, baseURL+DataServiceGetProfileProcedure, opts...),
		updateProfile: connect.NewClient[UpdateProfileRequest, UpdateProfileResponse](httpClient, baseURL+DataServiceUpdateProfileProcedure, opts...),
		listMealLogs:  connect.NewClient[ListMealLogsRequest, ListMealLogsResponse](httpClient, baseURL+DataServiceListMealLogsProcedure, opts...),
		insertMealLog: connect.NewClient[InsertMealLogRequest, InsertMealLogResponse](httpClient, baseURL+DataServiceInsertMealLogProcedure, opts...),
	}
}

func (c *DataServiceClient) GetProfile(ctx context.Context, req *connect.Request[GetProfileRequest]) (*connect.Response[GetProfileResponse], error) {
	return c.getProfile.CallUnary(ctx, req)
}

func (c *DataServiceClient) UpdateProfile(ctx context.Context, req *connect.Request[UpdateProfileRequest]) (*connect.Response[UpdateProfileResponse], error) {
	return c.updateProfile.CallUnary(ctx, req)
}

func (c *DataServiceClient) ListMealLogs(ctx context.Context, req *connect.Request[ListMealLogsRequest]) (*connect.Response[ListMealLogsResponse], error) {
	return c.listMealLogs.CallUnary(ctx, req)
}

func (c *DataServiceClient) InsertMealLog(ctx context.Context, req *connect.Request[InsertMealLogRequest]) (*connect.Response[InsertMealLogResponse], error) {
	return c.insertMealLog.CallUnary(ctx, req)
}

// AuthServiceClient calls a remote AuthService.
type AuthServiceClient struct {
	register       *connect.Client[RegisterRequest, RegisterResponse]
	login          *connect.Client[LoginRequest, LoginResponse]
	logout         *connect.Client[LogoutRequest, LogoutResponse]
	getCurrentUser *connect.Client[GetCurrentUserRequest, GetCurrentUserResponse]
}

// NewAuthServiceClient creates a client for the AuthService at baseURL.
func NewAuthServiceClient(httpClient connect.HTTPClient, baseURL string, opts ...connect.ClientOption) *AuthServiceClient {
	baseURL = strings.TrimRight(baseURL, "/")
	opts = append([]connect.ClientOption{WithJSON()}, opts...)
	return &AuthServiceClient{
		register:       connect.NewClient[RegisterRequest, RegisterResponse](httpClient, baseURL+AuthServiceRegisterProcedure, opts...),
		login:          connect.NewClient[LoginRequest, LoginResponse](httpClient, baseURL+AuthServiceLoginProcedure, opts...),
		logout:         connect.NewClient[LogoutRequest, LogoutResponse](httpClient, baseURL+AuthServiceLogoutProcedure, opts...),
		getCurrentUser: connect.NewClient[GetCurrentUserRequest, GetCurrentUserResponse](httpClient, baseURL+AuthServiceGetCurrentUserProcedure, opts...),
	}
}

func (c *AuthServiceClient) Register(ctx context.Context, req *connect.Request[RegisterRequest]) (*connect.Response[RegisterResponse], error) {
	return c.register.CallUnary(ctx, req)
}

func (c *AuthServiceClient) Login(ctx context.Context, req *connect.Request[LoginRequest]) (*connect.Response[LoginResponse], error) {
	return c.login.CallUnary(ctx, req)
}

func (c *AuthServiceClient) Logout(ctx context.Context, req *connect.Request[LogoutRequest]) (*connect.Response[LogoutResponse], error) {
	return c.logout.CallUnary(ctx, req)
}

func (c *AuthServiceClient) GetCurrentUser(ctx context.Context, req *connect.Request[GetCurrentUserRequest]) (*connect.Response[GetCurrentUserResponse], error) {
	return c.getCurrentUser.CallUnary(ctx, req)
}
