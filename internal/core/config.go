package core

import (
	"time"
)

const (
	// DefaultServerPort is the HTTP port for metrics and the control API.
	DefaultServerPort = 8080
	// DefaultProviderBaseURL points at a local ytmusicapi proxy.
	DefaultProviderBaseURL = "http://localhost:9863"
	// DefaultProviderRateLimit is the provider request budget per second.
	DefaultProviderRateLimit = 5.0
	// DefaultProviderTimeoutSecs bounds a single HTTP request to the provider.
	DefaultProviderTimeoutSecs = 10

	DefaultMinQueueSize    = 3
	DefaultRefillBatchSize = 10
	DefaultPrimaryFloor    = 6
	// DefaultCandidateMultiplier caps the interleaved candidate list at this multiple of the limit.
	DefaultCandidateMultiplier = 4
	DefaultTrackingCapacity    = 100
	// MaxRelatedLimit caps how many tracks a single recommendation call may ask for.
	MaxRelatedLimit = 100

	DefaultCacheTTL        = 90 * time.Second
	DefaultCacheMaxEntries = 32

	DefaultFetchTimeout          = 3 * time.Second
	DefaultInstantTimeout        = 1500 * time.Millisecond
	DefaultDebounceSameSeed      = 2 * time.Second
	DefaultDebounceDifferentSeed = 350 * time.Millisecond

	DefaultAPILimitPerMinute      = 120
	// DefaultAPIRadioLimitPerMinute is tighter because every radio start fans
	// out to several provider calls.
	DefaultAPIRadioLimitPerMinute = 20
	DefaultStorePath              = "./ytqueue.db"
)

type Config struct {
	Provider ProviderConfig
	Engine   EngineConfig
	Server   ServerConfig
	Store    StoreConfig
	API      APIConfig
	Log      LogConfig
	Taste    TasteProfile
}

type ProviderConfig struct {
	BaseURL     string
	AuthFile    string
	RateLimit   float64 // requests per second
	TimeoutSecs int
	// OEmbedFallback enables the public oEmbed lookup when song details fail.
	OEmbedFallback bool
}

// EngineConfig holds the queue engine tuning constants.
type EngineConfig struct {
	InfiniteMode          bool
	MinQueueSize          int
	RefillBatchSize       int
	PrimaryFloor          int
	CandidateMultiplier   int
	TrackingCapacity      int
	CacheTTL              time.Duration
	CacheMaxEntries       int
	FetchTimeout          time.Duration
	InstantTimeout        time.Duration
	DebounceSameSeed      time.Duration
	DebounceDifferentSeed time.Duration
	// RefillCheckInterval enables a safety-net ticker in the session loop. Zero disables it.
	RefillCheckInterval time.Duration
}

type ServerConfig struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

type StoreConfig struct {
	Enabled bool
	Path    string
}

type APIConfig struct {
	LimitPerMinute      int
	RadioLimitPerMinute int
}

type LogConfig struct {
	Level  string
	Format string
}

func DefaultConfig() *Config {
	return &Config{
		Provider: ProviderConfig{
			BaseURL:        DefaultProviderBaseURL,
			RateLimit:      DefaultProviderRateLimit,
			TimeoutSecs:    DefaultProviderTimeoutSecs,
			OEmbedFallback: true,
		},
		Engine: DefaultEngineConfig(),
		Server: ServerConfig{
			Host:         "0.0.0.0",
			Port:         DefaultServerPort,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 15 * time.Second,
		},
		Store: StoreConfig{
			Enabled: true,
			Path:    DefaultStorePath,
		},
		API: APIConfig{
			LimitPerMinute:      DefaultAPILimitPerMinute,
			RadioLimitPerMinute: DefaultAPIRadioLimitPerMinute,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// DefaultEngineConfig returns the engine constants on their own, for tests and embedding.
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		InfiniteMode:          true,
		MinQueueSize:          DefaultMinQueueSize,
		RefillBatchSize:       DefaultRefillBatchSize,
		PrimaryFloor:          DefaultPrimaryFloor,
		CandidateMultiplier:   DefaultCandidateMultiplier,
		TrackingCapacity:      DefaultTrackingCapacity,
		CacheTTL:              DefaultCacheTTL,
		CacheMaxEntries:       DefaultCacheMaxEntries,
		FetchTimeout:          DefaultFetchTimeout,
		InstantTimeout:        DefaultInstantTimeout,
		DebounceSameSeed:      DefaultDebounceSameSeed,
		DebounceDifferentSeed: DefaultDebounceDifferentSeed,
	}
}
