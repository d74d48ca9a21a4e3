package service

import (
	"log/slog"
	"net/http"

	"connectrpc.com/connect"
	"github.com/mmynk/mealscan/internal/auth"
	"github.com/mmynk/mealscan/internal/middleware"
	"github.com/mmynk/mealscan/internal/rpc"
	"github.com/mmynk/mealscan/internal/telemetry"
)

// Mount registers both services on mux. Data procedures require a bearer
// token; auth procedures accept one when present.
func Mount(mux *http.ServeMux, data *DataService, authSvc *AuthService, jwtManager *auth.JWTManager, logger *slog.Logger) {
	dataPath, dataHandler := rpc.NewDataServiceHandler(data, connect.WithInterceptors(
		telemetry.MetricsInterceptor(),
		middleware.RequireAuth(jwtManager),
		middleware.LoggingInterceptor(logger),
	))
	mux.Handle(dataPath, dataHandler)

	authPath, authHandler := rpc.NewAuthServiceHandler(authSvc, connect.WithInterceptors(
		telemetry.MetricsInterceptor(),
		middleware.OptionalAuth(jwtManager),
		middleware.LoggingInterceptor(logger),
	))
	mux.Handle(authPath, authHandler)
}
