package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"os"
	"strings"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"

	"github.com/apiaryhq/hive"
	"github.com/apiaryhq/hive/adapters/events"
	"github.com/apiaryhq/hive/api"
	"github.com/apiaryhq/hive/core"
)

func main() {
	ctx := context.Background()

	username := os.Getenv("HIVE_USERNAME")
	password := os.Getenv("HIVE_PASSWORD")
	if username == "" || password == "" {
		log.Fatal("HIVE_USERNAME and HIVE_PASSWORD must be set")
	}

	// A previously confirmed device shortens re-authentication; all three
	// variables must be set together.
	var device *core.TrustedDevice
	if os.Getenv("HIVE_DEVICE_KEY") != "" {
		d, err := core.NewTrustedDevice(
			os.Getenv("HIVE_DEVICE_KEY"),
			os.Getenv("HIVE_DEVICE_GROUP_KEY"),
			os.Getenv("HIVE_DEVICE_PASSWORD"),
		)
		if err != nil {
			log.Fatalf("Invalid device configuration: %v", err)
		}
		device = d
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	// In-process pub/sub for auth lifecycle events.
	pubSub := gochannel.NewGoChannel(gochannel.Config{}, watermill.NewStdLogger(false, false))
	eventPub := events.NewWatermillPublisher(pubSub)

	client, err := hive.NewClient(ctx, hive.Config{
		Events: eventPub,
		Logger: logger,
	})
	if err != nil {
		log.Fatalf("Failed to create client: %v", err)
	}

	session, err := client.Login(ctx, username, password, device)
	if err != nil {
		var mfa *core.MFARequiredError
		if !errors.As(err, &mfa) {
			log.Fatalf("Login failed: %v", err)
		}

		fmt.Print("Enter the one-time code sent to your phone: ")
		reader := bufio.NewReader(os.Stdin)
		code, _ := reader.ReadString('\n')

		session, err = client.RespondToMFACode(ctx, strings.TrimSpace(code))
		if err != nil {
			log.Fatalf("Code rejected: %v", err)
		}
	}

	fmt.Printf("Logged in as %s, session expires at %s\n",
		session.Username(), session.Tokens().ExpiresAt().Format("15:04:05"))

	if session.Tokens().NewDevice != nil {
		trusted, err := client.ConfirmDevice(ctx)
		if err != nil {
			log.Fatalf("Device confirmation failed: %v", err)
		}
		fmt.Println("Device confirmed. Set these for future logins:")
		fmt.Printf("  HIVE_DEVICE_KEY=%s\n", trusted.DeviceKey)
		fmt.Printf("  HIVE_DEVICE_GROUP_KEY=%s\n", trusted.DeviceGroupKey)
		fmt.Printf("  HIVE_DEVICE_PASSWORD=%s\n", trusted.DevicePassword)
	}

	apiClient := api.NewClient(hive.DefaultAPIURL, hive.DefaultWeatherURL, client, logger)

	actions, err := apiClient.Actions(ctx)
	if err != nil {
		log.Fatalf("Failed to list quick actions: %v", err)
	}
	for _, action := range actions {
		fmt.Printf("Quick action %s (%s, enabled=%t)\n", action.Name, action.ID, action.Enabled)
	}

	if postcode := os.Getenv("HIVE_POSTCODE"); postcode != "" {
		weather, err := apiClient.Weather(ctx, postcode)
		if err != nil {
			log.Fatalf("Failed to fetch weather: %v", err)
		}
		fmt.Printf("Weather in %s: %s, %s%s\n",
			postcode, weather.Description,
			weather.Temperature.Value, weather.Temperature.Unit)
	}

	if err := client.Logout(ctx); err != nil {
		log.Fatalf("Logout failed: %v", err)
	}
	fmt.Println("Signed out.")
}
