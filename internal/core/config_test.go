package core

import (
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()

	if config.Provider.BaseURL != DefaultProviderBaseURL {
		t.Errorf("Expected default provider URL %s, got %s", DefaultProviderBaseURL, config.Provider.BaseURL)
	}
	if !config.Provider.OEmbedFallback {
		t.Error("Expected oEmbed fallback to be enabled by default")
	}
	if !config.Engine.InfiniteMode {
		t.Error("Expected infinite mode to be enabled by default")
	}
	if !config.Store.Enabled {
		t.Error("Expected the queue store to be enabled by default")
	}
	if config.API.LimitPerMinute != DefaultAPILimitPerMinute {
		t.Errorf("Expected API limit %d, got %d", DefaultAPILimitPerMinute, config.API.LimitPerMinute)
	}
	if config.API.RadioLimitPerMinute != DefaultAPIRadioLimitPerMinute {
		t.Errorf("Expected radio limit %d, got %d", DefaultAPIRadioLimitPerMinute, config.API.RadioLimitPerMinute)
	}
	if !config.Taste.IsEmpty() {
		t.Error("Expected no taste profile by default")
	}
}

func TestDefaultEngineConfig(t *testing.T) {
	cfg := DefaultEngineConfig()

	tests := []struct {
		name string
		got  any
		want any
	}{
		{"MinQueueSize", cfg.MinQueueSize, 3},
		{"RefillBatchSize", cfg.RefillBatchSize, 10},
		{"PrimaryFloor", cfg.PrimaryFloor, 6},
		{"TrackingCapacity", cfg.TrackingCapacity, 100},
		{"CacheTTL", cfg.CacheTTL.Seconds(), 90.0},
		{"FetchTimeout", cfg.FetchTimeout.Seconds(), 3.0},
		{"InstantTimeout", cfg.InstantTimeout.Seconds(), 1.5},
		{"DebounceSameSeed", cfg.DebounceSameSeed.Seconds(), 2.0},
		{"DebounceDifferentSeed", cfg.DebounceDifferentSeed.Milliseconds(), int64(350)},
		{"RefillCheckInterval", cfg.RefillCheckInterval.Seconds(), 0.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("%s = %v, expected %v", tt.name, tt.got, tt.want)
			}
		})
	}
}

func TestConfigConstants(t *testing.T) {
	if DefaultMinQueueSize >= DefaultRefillBatchSize {
		t.Error("A refill batch should be larger than the low watermark")
	}
	if DefaultPrimaryFloor > DefaultRefillBatchSize {
		t.Error("The primary floor should not exceed the refill batch")
	}
	if DefaultInstantTimeout >= DefaultFetchTimeout {
		t.Error("The instant radio deadline should be shorter than the regular fetch deadline")
	}
	if DefaultDebounceDifferentSeed >= DefaultDebounceSameSeed {
		t.Error("A new seed should be debounced for less time than a repeated seed")
	}
}
