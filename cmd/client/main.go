// Command client signs in, records one scanned meal against the signed-in
// user's entitlement, and prints the resulting state.
//
//	MEALSCAN_EMAIL=a@b.c MEALSCAN_PASSWORD=... client "Greek salad" 320
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/mmynk/mealscan/internal/auth"
	"github.com/mmynk/mealscan/internal/config"
	"github.com/mmynk/mealscan/internal/models"
	"github.com/mmynk/mealscan/internal/session"
	"github.com/mmynk/mealscan/internal/storage/remote"
	"github.com/mmynk/mealscan/pkg/logging"
)

func main() {
	if err := run(); err != nil {
		slog.Error("Client failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.LoadClient()
	if err != nil {
		return err
	}
	logger := logging.Setup(cfg.LogLevel)

	meal, err := parseMeal(os.Args[1:])
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	client := remote.New(http.DefaultClient, cfg.ServerURL)
	provider := auth.NewProvider(client, logger)
	store := session.New(provider, client.DataService(provider), session.WithLogger(logger))

	if err := store.Start(ctx); err != nil {
		return err
	}
	defer store.Stop()

	if _, err := provider.SignIn(ctx, cfg.Email, cfg.Password); err != nil {
		return fmt.Errorf("sign in: %w", err)
	}
	defer provider.SignOut(context.Background())

	if err := waitLoaded(ctx, store); err != nil {
		return err
	}

	mode, err := store.ConsumeScan(ctx)
	if err != nil {
		return fmt.Errorf("consume scan: %w", err)
	}
	entry, err := store.AddMealToLog(ctx, meal)
	if err != nil {
		return fmt.Errorf("log meal: %w", err)
	}

	flags := store.Flags()
	fmt.Printf("logged %q (%.0f kcal) as %s scan\n", entry.Name, entry.Calories, mode)
	fmt.Printf("free scans left: %d, credits: %d, premium: %t\n",
		flags.RemainingFreeScans, store.User().Credits, store.User().IsPremium)
	return nil
}

// parseMeal reads "<meal name> <calories>" from the command line.
func parseMeal(args []string) (models.MealLogEntry, error) {
	if len(args) < 2 {
		return models.MealLogEntry{}, errors.New("usage: client <meal name> <calories>")
	}
	calories, err := strconv.ParseFloat(args[1], 64)
	if err != nil {
		return models.MealLogEntry{}, fmt.Errorf("calories: %w", err)
	}
	if calories < 0 {
		return models.MealLogEntry{}, fmt.Errorf("calories must not be negative, got %g", calories)
	}
	return models.MealLogEntry{Name: args[0], Calories: calories}, nil
}

// waitLoaded blocks until the signed-in user's profile has been fetched.
func waitLoaded(ctx context.Context, store *session.Store) error {
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

	for {
		state := store.Snapshot()
		if !state.Loading && state.User != nil {
			return nil
		}
		if !state.Loading && state.Error != "" {
			return errors.New(state.Error)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
