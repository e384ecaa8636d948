// Package hive is a client SDK for the Hive cloud home-automation
// platform. It authenticates against the platform's identity provider
// with SRP, manages the resulting session, and exposes the handful of
// REST endpoints that consume it.
package hive

import (
	"log/slog"

	"github.com/apiaryhq/hive/ports"
)

// Defaults for the Hive SSO user pool and API endpoints. They are fixed
// for the production platform; overriding them only makes sense against a
// test double.
const (
	DefaultRegion   = "eu-west-1"
	DefaultPoolID   = "eu-west-1_SamNfoWtf"
	DefaultClientID = "3rl4i0ajrmtdm8sbre54p9dvd9"

	DefaultAPIURL     = "https://beekeeper-uk.hivehome.com/1.0"
	DefaultWeatherURL = "https://weather.prod.bgchprod.info/weather"

	// DefaultDeviceName labels devices registered through ConfirmDevice.
	DefaultDeviceName = "hive-go"
)

// Config carries the client's construction-time settings. It is consumed
// once by NewClient and treated as immutable for the process lifetime.
type Config struct {
	// Region, PoolID and ClientID identify the identity provider's user
	// pool. Empty fields take the production defaults.
	Region   string
	PoolID   string
	ClientID string

	// APIURL and WeatherURL are the REST endpoint bases.
	APIURL     string
	WeatherURL string

	// DeviceName is the label attached to devices registered through
	// ConfirmDevice.
	DeviceName string

	// Provider overrides the identity-provider adapter. Nil means the
	// real pool for the configured region and client.
	Provider ports.IdentityProvider

	// Events receives auth lifecycle events. May be nil.
	Events ports.EventPublisher

	// Logger is the structured logger. Nil means slog.Default.
	Logger *slog.Logger
}

func (c Config) withDefaults() Config {
	if c.Region == "" {
		c.Region = DefaultRegion
	}
	if c.PoolID == "" {
		c.PoolID = DefaultPoolID
	}
	if c.ClientID == "" {
		c.ClientID = DefaultClientID
	}
	if c.APIURL == "" {
		c.APIURL = DefaultAPIURL
	}
	if c.WeatherURL == "" {
		c.WeatherURL = DefaultWeatherURL
	}
	if c.DeviceName == "" {
		c.DeviceName = DefaultDeviceName
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	return c
}
