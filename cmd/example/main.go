package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"os"
	"time"

	fitbyte "github.com/jamesprial/go-fitbyte"
	pkgerrs "github.com/jamesprial/go-fitbyte/pkg/errors"
	"github.com/jamesprial/go-fitbyte/pkg/value"
)

func main() {
	// Get credentials from environment variables
	clientID := os.Getenv("FITBIT_CLIENT_ID")
	clientSecret := os.Getenv("FITBIT_CLIENT_SECRET")
	refreshToken := os.Getenv("FITBIT_REFRESH_TOKEN")

	if clientID == "" || clientSecret == "" || refreshToken == "" {
		log.Fatal("FITBIT_CLIENT_ID, FITBIT_CLIENT_SECRET and FITBIT_REFRESH_TOKEN environment variables are required")
	}

	// Route structured logs to stdout; adjust the level as needed.
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))

	config := &fitbyte.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RefreshToken: refreshToken,
		UnitSystem:   "METRIC",
		SnakeCase:    fitbyte.Bool(true),
		Logger:       logger,
	}

	// The saved refresh token is exchanged during construction.
	ctx := context.Background()
	client, err := fitbyte.NewClient(ctx, config)
	if err != nil {
		log.Fatalf("Failed to create client: %v", err)
	}

	fmt.Printf("Authenticated as user: %s\n", client.UserID())

	profile, err := client.Profile(ctx, nil)
	if err != nil {
		log.Printf("Failed to get profile: %v", err)
	} else if user, ok := profile.Lookup("user"); ok {
		name, _ := user.Lookup("display_name")
		text, _ := name.Text()
		fmt.Printf("Display name: %s\n", text)
	}

	// Summary for yesterday
	yesterday := time.Now().AddDate(0, 0, -1)
	summary, err := client.DailyActivitySummary(ctx, yesterday, nil)
	if err != nil {
		log.Printf("Failed to get activity summary: %v", err)
	} else if s, ok := summary.Lookup("summary"); ok {
		steps, _ := s.Lookup("steps")
		text, _ := steps.Text()
		fmt.Printf("Steps on %s: %s\n", fitbyte.FormatDate(yesterday), text)
	}

	// Same call with raw Fitbit keys
	raw, err := client.SleepGoal(ctx, &fitbyte.RequestOptions{SnakeCase: fitbyte.Bool(false)})
	if err != nil {
		log.Printf("Failed to get sleep goal: %v", err)
	} else {
		data, _ := raw.MarshalJSON()
		fmt.Printf("Sleep goal: %s\n", data)
	}

	updated, err := client.Post(ctx, "user/-/sleep/goal.json",
		value.NewObject(value.Member{Key: value.StringKey("min_duration"), Value: value.Int(450)}), nil)
	var apiErr *pkgerrs.APIError
	switch {
	case errors.As(err, &apiErr):
		log.Printf("Fitbit rejected the sleep goal (status %d): %s", apiErr.StatusCode, apiErr.Message)
	case err != nil:
		log.Printf("Failed to update sleep goal: %v", err)
	default:
		data, _ := updated.MarshalJSON()
		fmt.Printf("Updated sleep goal: %s\n", data)
	}

	// Fitbit rotates refresh tokens; persist the new one.
	if cred, ok := client.Credential(); ok {
		fmt.Printf("Save this refresh token for the next run: %s\n", cred.RefreshToken)
	}
}
