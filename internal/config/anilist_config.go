package config

import (
	"errors"
	"fmt"
	"time"
)

// DefaultAniListEndpoint is the public AniList GraphQL endpoint.
const DefaultAniListEndpoint = "https://graphql.anilist.co"

// AniListConfig holds the AniList client and its outbound scheduler settings.
type AniListConfig struct {
	Endpoint string

	// AniList allows 90 requests per minute, currently degraded to 30.
	RequestsPerWindow int
	Window            time.Duration
	MaxInFlight       int

	MaxRetries     int
	DefaultBackoff time.Duration
	MaxBackoff     time.Duration

	RequestTimeout time.Duration
}

// DefaultAniListConfig returns the defaults used when no overrides are set.
func DefaultAniListConfig() AniListConfig {
	return AniListConfig{
		Endpoint:          DefaultAniListEndpoint,
		RequestsPerWindow: 30,
		Window:            time.Minute,
		MaxInFlight:       4,
		MaxRetries:        3,
		DefaultBackoff:    2 * time.Second,
		MaxBackoff:        time.Minute,
		RequestTimeout:    UpstreamRequest,
	}
}

// Validate checks the AniList settings.
func (c AniListConfig) Validate() error {
	var errs []error

	if c.Endpoint == "" {
		errs = append(errs, errors.New("ANILIST_ENDPOINT is required"))
	}
	if c.RequestsPerWindow < 1 {
		errs = append(errs, fmt.Errorf("ANILIST_REQUESTS_PER_WINDOW must be positive, got %d", c.RequestsPerWindow))
	}
	if c.Window <= 0 {
		errs = append(errs, fmt.Errorf("ANILIST_WINDOW must be positive, got %v", c.Window))
	}
	if c.MaxInFlight < 1 {
		errs = append(errs, fmt.Errorf("ANILIST_MAX_IN_FLIGHT must be positive, got %d", c.MaxInFlight))
	}
	if c.MaxRetries < 0 {
		errs = append(errs, fmt.Errorf("ANILIST_MAX_RETRIES cannot be negative, got %d", c.MaxRetries))
	}
	if c.DefaultBackoff <= 0 {
		errs = append(errs, fmt.Errorf("ANILIST_DEFAULT_BACKOFF must be positive, got %v", c.DefaultBackoff))
	}
	if c.MaxBackoff < c.DefaultBackoff {
		errs = append(errs, fmt.Errorf("max backoff %v is below default backoff %v", c.MaxBackoff, c.DefaultBackoff))
	}

	return errors.Join(errs...)
}
