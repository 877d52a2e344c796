package main

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"ytqueue/internal/core"
	"ytqueue/internal/queue"
	"ytqueue/internal/store"
)

func TestFlagToEnvVar(t *testing.T) {
	tests := []struct {
		flag string
		want string
	}{
		{"provider-base-url", "YTQUEUE_PROVIDER_BASE_URL"},
		{"log-level", "YTQUEUE_LOG_LEVEL"},
		{"infinite-mode", "YTQUEUE_INFINITE_MODE"},
	}

	for _, tt := range tests {
		if got := flagToEnvVar(tt.flag); got != tt.want {
			t.Errorf("flagToEnvVar(%q) = %q, expected %q", tt.flag, got, tt.want)
		}
	}
}

func TestSplitList(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{"Empty", "", []string{}},
		{"Single", "Daft Punk", []string{"Daft Punk"}},
		{"Trims and drops blanks", " Björk , ,Massive Attack,", []string{"Björk", "Massive Attack"}},
		{"Drops repeats", "house,techno,house", []string{"house", "techno"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := splitList(tt.input)
			if len(got) != len(tt.want) {
				t.Fatalf("splitList(%q) = %v, expected %v", tt.input, got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("splitList(%q)[%d] = %q, expected %q", tt.input, i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestBuildConfig_Defaults(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)
	if err := viper.BindPFlags(rootCmd.PersistentFlags()); err != nil {
		t.Fatalf("Failed to bind flags: %v", err)
	}

	cfg := buildConfig()

	if cfg.Provider.BaseURL != core.DefaultProviderBaseURL {
		t.Errorf("Provider.BaseURL = %q, expected %q", cfg.Provider.BaseURL, core.DefaultProviderBaseURL)
	}
	if !cfg.Engine.InfiniteMode {
		t.Error("Expected infinite mode to be on by default")
	}
	if cfg.Engine.FetchTimeout != core.DefaultFetchTimeout {
		t.Errorf("Engine.FetchTimeout = %v, expected %v", cfg.Engine.FetchTimeout, core.DefaultFetchTimeout)
	}
	if cfg.Engine.InstantTimeout != core.DefaultInstantTimeout {
		t.Errorf("Engine.InstantTimeout = %v, expected %v", cfg.Engine.InstantTimeout, core.DefaultInstantTimeout)
	}
	if cfg.Engine.CacheTTL != core.DefaultCacheTTL {
		t.Errorf("Engine.CacheTTL = %v, expected %v", cfg.Engine.CacheTTL, core.DefaultCacheTTL)
	}
	if cfg.Engine.RefillCheckInterval != 0 {
		t.Errorf("Expected the safety-net ticker to be disabled, got %v", cfg.Engine.RefillCheckInterval)
	}
	if cfg.Server.Port != core.DefaultServerPort {
		t.Errorf("Server.Port = %d, expected %d", cfg.Server.Port, core.DefaultServerPort)
	}
	if !cfg.Taste.IsEmpty() {
		t.Errorf("Expected empty taste profile, got %+v", cfg.Taste)
	}
}

func TestBuildConfig_Overrides(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	viper.Set("provider-base-url", "http://proxy:9000/")
	viper.Set("min-queue-size", 0)
	viper.Set("fetch-timeout-ms", 500)
	viper.Set("refill-check-interval-secs", 30)
	viper.Set("taste-artists", "Daft Punk, Justice")
	viper.Set("taste-genres", "french house")
	viper.Set("api-limit-per-minute", -5)
	viper.Set("api-radio-limit-per-minute", 3)

	cfg := buildConfig()

	if cfg.Provider.BaseURL != "http://proxy:9000" {
		t.Errorf("Expected trailing slash to be trimmed, got %q", cfg.Provider.BaseURL)
	}
	if cfg.Engine.MinQueueSize != core.DefaultMinQueueSize {
		t.Errorf("Expected invalid min queue size to fall back to %d, got %d", core.DefaultMinQueueSize, cfg.Engine.MinQueueSize)
	}
	if cfg.Engine.FetchTimeout != 500*time.Millisecond {
		t.Errorf("Engine.FetchTimeout = %v, expected 500ms", cfg.Engine.FetchTimeout)
	}
	if cfg.Engine.RefillCheckInterval != 30*time.Second {
		t.Errorf("Engine.RefillCheckInterval = %v, expected 30s", cfg.Engine.RefillCheckInterval)
	}
	if len(cfg.Taste.TopArtists) != 2 || cfg.Taste.TopArtists[1] != "Justice" {
		t.Errorf("Unexpected taste artists %v", cfg.Taste.TopArtists)
	}
	if cfg.API.LimitPerMinute != core.DefaultAPILimitPerMinute {
		t.Errorf("Expected negative API limit to fall back, got %d", cfg.API.LimitPerMinute)
	}
	if cfg.API.RadioLimitPerMinute != 3 {
		t.Errorf("API.RadioLimitPerMinute = %d, expected 3", cfg.API.RadioLimitPerMinute)
	}
}

func TestGenerateEnvExampleContent(t *testing.T) {
	content := generateEnvExampleContent(rootCmd)

	for _, expected := range []string{
		"YTQUEUE_PROVIDER_BASE_URL=" + core.DefaultProviderBaseURL,
		"YTQUEUE_INFINITE_MODE=true",
		"YTQUEUE_REFILL_CHECK_INTERVAL_SECS=0",
		"YTQUEUE_STORE_PATH=" + core.DefaultStorePath,
		"YTQUEUE_LOG_LEVEL=info",
		"# Queue engine",
	} {
		if !strings.Contains(content, expected) {
			t.Errorf("Expected .env.example to contain %q", expected)
		}
	}
}

func TestFormatDuration(t *testing.T) {
	tests := map[int]string{0: "?:??", 59: "0:59", 61: "1:01", 3725: "62:05"}
	for secs, want := range tests {
		if got := formatDuration(secs); got != want {
			t.Errorf("formatDuration(%d) = %q, expected %q", secs, got, want)
		}
	}
}

func TestCheckRelatedLimit(t *testing.T) {
	tests := []struct {
		limit   int
		wantErr bool
	}{
		{0, true},
		{-1, true},
		{1, false},
		{core.MaxRelatedLimit, false},
		{core.MaxRelatedLimit + 1, true},
		{1 << 40, true},
	}

	for _, tt := range tests {
		err := checkRelatedLimit(tt.limit)
		if (err != nil) != tt.wantErr {
			t.Errorf("checkRelatedLimit(%d) error = %v, wantErr %v", tt.limit, err, tt.wantErr)
		}
	}
}

func TestRunRelated_RejectsOversizedLimit(t *testing.T) {
	cmd := &cobra.Command{Use: "related"}
	cmd.Flags().Int("limit", core.DefaultRefillBatchSize, "")
	if err := cmd.Flags().Set("limit", "100000"); err != nil {
		t.Fatalf("Failed to set limit: %v", err)
	}

	err := runRelated(cmd, []string{"dQw4w9WgXcQ"})
	if err == nil || !strings.Contains(err.Error(), "limit must be between") {
		t.Errorf("Expected limit error, got %v", err)
	}
}

func TestPrintTracks(t *testing.T) {
	var buf bytes.Buffer
	printTracks(&buf, nil)
	if !strings.Contains(buf.String(), "No related tracks") {
		t.Errorf("Unexpected output for empty result: %q", buf.String())
	}

	buf.Reset()
	printTracks(&buf, []core.Track{{ID: "abc", Title: "Song", Artist: "Band", DurationSecs: 185}})
	if got := buf.String(); !strings.Contains(got, "abc\tBand - Song (3:05)") {
		t.Errorf("Unexpected track line: %q", got)
	}
}

func TestRestoreAndPersistQueue(t *testing.T) {
	logger = zap.NewNop()

	queueStore, err := store.OpenQueueStore(":memory:", zap.NewNop())
	if err != nil {
		t.Fatalf("Failed to open store: %v", err)
	}
	defer queueStore.Close()

	saved := core.QueueSnapshot{
		Tracks: []core.Track{
			{ID: "a", Title: "A", Artist: "X", DurationSecs: 200, Kind: core.KindSong},
			{ID: "b", Title: "B", Artist: "X", DurationSecs: 200, Kind: core.KindSong},
		},
		Index:        1,
		InfiniteMode: false,
	}
	if err := queueStore.SaveSnapshot(context.Background(), saved); err != nil {
		t.Fatalf("Failed to save snapshot: %v", err)
	}

	engine := queue.NewEngine(nil, core.DefaultEngineConfig(), nil, zap.NewNop())
	if err := restoreQueue(context.Background(), engine, queueStore); err != nil {
		t.Fatalf("restoreQueue failed: %v", err)
	}

	snap := engine.Snapshot()
	if len(snap.Tracks) != 2 || snap.Index != 1 || snap.InfiniteMode {
		t.Fatalf("Unexpected restored snapshot %+v", snap)
	}
	if !engine.IsQueued("a") || !engine.IsQueued("b") {
		t.Error("Restored tracks should be tracked as queued")
	}

	ctx, cancel := context.WithCancel(context.Background())
	sub := engine.Subscribe()
	done := make(chan error, 1)
	go func() {
		done <- persistQueue(ctx, sub, engine, queueStore)
	}()

	engine.AddToQueue([]core.Track{{ID: "c", Title: "C", Artist: "Y", DurationSecs: 200, Kind: core.KindSong}})
	cancel()
	if err := <-done; err != nil {
		t.Fatalf("persistQueue returned %v", err)
	}
	engine.Unsubscribe(sub)

	loaded, err := queueStore.LoadSnapshot(context.Background())
	if err != nil {
		t.Fatalf("LoadSnapshot failed: %v", err)
	}
	if len(loaded.Tracks) != 3 || loaded.Tracks[2].ID != "c" {
		t.Errorf("Expected the appended track to be persisted, got %+v", loaded.Tracks)
	}
}

func TestStoreSchemaCommands(t *testing.T) {
	queueStore, err := store.OpenQueueStore(":memory:", zap.NewNop())
	if err != nil {
		t.Fatalf("Failed to open store: %v", err)
	}
	defer queueStore.Close()

	var buf bytes.Buffer
	if err := printSchemaVersion(&buf, queueStore); err != nil {
		t.Fatalf("printSchemaVersion failed: %v", err)
	}
	if got := buf.String(); got != "schema version 1\n" {
		t.Errorf("Unexpected version output %q", got)
	}

	buf.Reset()
	if err := rollbackSchema(&buf, queueStore); err != nil {
		t.Fatalf("rollbackSchema failed: %v", err)
	}
	if got := buf.String(); got != "rolled back migration 1\n" {
		t.Errorf("Unexpected rollback output %q", got)
	}

	if err := rollbackSchema(&buf, queueStore); err == nil {
		t.Error("Expected a second rollback to fail")
	}
}
