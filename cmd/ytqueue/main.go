// Package main provides the ytqueue CLI application entry point.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/samber/lo"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/subosito/gotenv"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"

	"ytqueue/internal/core"
	"ytqueue/internal/flood"
	httpserver "ytqueue/internal/http"
	"ytqueue/internal/queue"
	"ytqueue/internal/store"
	"ytqueue/internal/ytmusic"
)

const (
	defaultServerHost = "0.0.0.0"
	envPrefix         = "YTQUEUE"
	persistTimeout    = 5 * time.Second
)

var (
	cfgFile string
	config  *core.Config
	logger  *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "ytqueue",
	Short: "ytqueue - infinite YouTube Music queue engine",
	Long: `ytqueue keeps a player's queue supplied with related, non-repeating YouTube Music
tracks. It races several recommendation sources against timeouts, ranks the merged
results and exposes the live queue over a small HTTP control API.`,
	RunE: runServe,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the queue engine, control API and metrics server (default)",
	RunE:  runServe,
}

var relatedCmd = &cobra.Command{
	Use:   "related <video id | link | search text>",
	Short: "Print tracks related to a seed and exit",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runRelated,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (default is .env)")
	flags.String("log-level", "info", "log level (debug, info, warn, error)")
	flags.String("provider-base-url", core.DefaultProviderBaseURL, "Base URL of the YouTube Music API proxy")
	flags.String("provider-auth-file", "", "Auth file forwarded to the proxy for personalised results")
	flags.Float64("provider-rate-limit", core.DefaultProviderRateLimit, "Provider requests per second (0 disables limiting)")
	flags.Int("provider-timeout-secs", core.DefaultProviderTimeoutSecs, "Timeout for a single provider HTTP request")
	flags.Bool("provider-oembed-fallback", true, "Fall back to YouTube oEmbed when song details fail")
	flags.Bool("infinite-mode", true, "Keep the queue topped up with recommendations")
	flags.Int("min-queue-size", core.DefaultMinQueueSize, "Refill when fewer upcoming tracks remain")
	flags.Int("refill-batch-size", core.DefaultRefillBatchSize, "Tracks fetched per refill")
	flags.Int("primary-floor", core.DefaultPrimaryFloor, "Primary results needed before the fallback chain is skipped")
	flags.Int("tracking-capacity", core.DefaultTrackingCapacity, "Queued and played ids remembered for de-duplication")
	flags.Int("cache-ttl-secs", int(core.DefaultCacheTTL.Seconds()), "Recommendation cache lifetime in seconds")
	flags.Int("fetch-timeout-ms", int(core.DefaultFetchTimeout.Milliseconds()), "Deadline per provider call in milliseconds")
	flags.Int("instant-timeout-ms", int(core.DefaultInstantTimeout.Milliseconds()), "Deadline for the instant radio fan-out in milliseconds")
	flags.Int("refill-check-interval-secs", 0, "Safety-net refill check interval in seconds (0 disables)")
	flags.String("taste-artists", "", "Comma-separated favourite artists for taste searches")
	flags.String("taste-genres", "", "Comma-separated favourite genres for taste searches")
	flags.String("server-host", defaultServerHost, "HTTP server host")
	flags.Int("server-port", core.DefaultServerPort, "HTTP server port")
	flags.Bool("store-enabled", true, "Persist the queue to SQLite so restarts resume the session")
	flags.String("store-path", core.DefaultStorePath, "SQLite database path")
	flags.Int("api-limit-per-minute", core.DefaultAPILimitPerMinute, "Maximum mutating API calls per client and route per minute (0 disables)")
	flags.Int("api-radio-limit-per-minute", core.DefaultAPIRadioLimitPerMinute, "Maximum radio starts per client per minute (0 disables)")
	flags.Bool("generate-env-example", false, "Generate .env.example file from current configuration and exit")

	relatedCmd.Flags().Int("limit", core.DefaultRefillBatchSize, "Number of related tracks to print")

	if err := viper.BindPFlags(flags); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to bind flags: %v\n", err)
		os.Exit(1)
	}

	rootCmd.AddCommand(serveCmd, relatedCmd, storeCmd)
}

func initConfig() {
	envFile := ".env"
	if cfgFile != "" {
		envFile = cfgFile
	}

	if err := gotenv.Load(envFile); err != nil {
		if !os.IsNotExist(err) {
			fmt.Fprintf(os.Stderr, "Error loading .env file: %v\n", err)
		}
	}

	viper.SetEnvPrefix(envPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	config = buildConfig()
	logger = buildLogger(config.Log.Level)
}

func buildConfig() *core.Config {
	cfg := core.DefaultConfig()

	configureProvider(cfg)
	configureEngine(cfg)
	configureTaste(cfg)
	configureServer(cfg)
	configureStore(cfg)
	configureAPI(cfg)

	return cfg
}

func configureProvider(cfg *core.Config) {
	cfg.Provider.BaseURL = strings.TrimRight(viper.GetString("provider-base-url"), "/")
	cfg.Provider.AuthFile = viper.GetString("provider-auth-file")
	cfg.Provider.RateLimit = viper.GetFloat64("provider-rate-limit")
	if cfg.Provider.RateLimit < 0 {
		fmt.Printf("Warning: Invalid provider rate limit (%v), using default (%v)\n",
			cfg.Provider.RateLimit, core.DefaultProviderRateLimit)
		cfg.Provider.RateLimit = core.DefaultProviderRateLimit
	}
	cfg.Provider.TimeoutSecs = viper.GetInt("provider-timeout-secs")
	if cfg.Provider.TimeoutSecs <= 0 {
		cfg.Provider.TimeoutSecs = core.DefaultProviderTimeoutSecs
	}
	cfg.Provider.OEmbedFallback = viper.GetBool("provider-oembed-fallback")
}

func configureEngine(cfg *core.Config) {
	e := &cfg.Engine

	e.InfiniteMode = viper.GetBool("infinite-mode")
	e.MinQueueSize = positiveOr(viper.GetInt("min-queue-size"), core.DefaultMinQueueSize, "min queue size")
	e.RefillBatchSize = positiveOr(viper.GetInt("refill-batch-size"), core.DefaultRefillBatchSize, "refill batch size")
	e.PrimaryFloor = positiveOr(viper.GetInt("primary-floor"), core.DefaultPrimaryFloor, "primary floor")
	e.TrackingCapacity = positiveOr(viper.GetInt("tracking-capacity"), core.DefaultTrackingCapacity, "tracking capacity")

	e.CacheTTL = time.Duration(positiveOr(viper.GetInt("cache-ttl-secs"),
		int(core.DefaultCacheTTL.Seconds()), "cache TTL")) * time.Second
	e.FetchTimeout = time.Duration(positiveOr(viper.GetInt("fetch-timeout-ms"),
		int(core.DefaultFetchTimeout.Milliseconds()), "fetch timeout")) * time.Millisecond
	e.InstantTimeout = time.Duration(positiveOr(viper.GetInt("instant-timeout-ms"),
		int(core.DefaultInstantTimeout.Milliseconds()), "instant timeout")) * time.Millisecond

	if interval := viper.GetInt("refill-check-interval-secs"); interval > 0 {
		e.RefillCheckInterval = time.Duration(interval) * time.Second
	}
}

func configureTaste(cfg *core.Config) {
	cfg.Taste = core.TasteProfile{
		TopArtists: splitList(viper.GetString("taste-artists")),
		TopGenres:  splitList(viper.GetString("taste-genres")),
	}
}

func configureServer(cfg *core.Config) {
	cfg.Server.Host = viper.GetString("server-host")
	if cfg.Server.Host == "" {
		cfg.Server.Host = defaultServerHost
	}
	cfg.Server.Port = viper.GetInt("server-port")
	cfg.Log.Level = viper.GetString("log-level")
}

func configureStore(cfg *core.Config) {
	cfg.Store.Enabled = viper.GetBool("store-enabled")
	cfg.Store.Path = viper.GetString("store-path")
	if cfg.Store.Path == "" {
		cfg.Store.Path = core.DefaultStorePath
	}
}

func configureAPI(cfg *core.Config) {
	cfg.API.LimitPerMinute = viper.GetInt("api-limit-per-minute")
	if cfg.API.LimitPerMinute < 0 {
		cfg.API.LimitPerMinute = core.DefaultAPILimitPerMinute
	}
	cfg.API.RadioLimitPerMinute = viper.GetInt("api-radio-limit-per-minute")
	if cfg.API.RadioLimitPerMinute < 0 {
		cfg.API.RadioLimitPerMinute = core.DefaultAPIRadioLimitPerMinute
	}
}

func positiveOr(value, fallback int, name string) int {
	if value > 0 {
		return value
	}
	fmt.Printf("Warning: Invalid %s (%d), using default (%d)\n", name, value, fallback)
	return fallback
}

// splitList parses a comma-separated flag, dropping blanks and repeats.
func splitList(raw string) []string {
	items := lo.Map(strings.Split(raw, ","), func(s string, _ int) string {
		return strings.TrimSpace(s)
	})
	return lo.Uniq(lo.Compact(items))
}

func buildLogger(level string) *zap.Logger {
	var zapLevel zapcore.Level
	switch strings.ToLower(level) {
	case "debug":
		zapLevel = zapcore.DebugLevel
	case "info":
		zapLevel = zapcore.InfoLevel
	case "warn":
		zapLevel = zapcore.WarnLevel
	case "error":
		zapLevel = zapcore.ErrorLevel
	default:
		zapLevel = zapcore.InfoLevel
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(zapLevel)

	builtLogger, err := cfg.Build()
	if err != nil {
		panic(fmt.Sprintf("Failed to build logger: %v", err))
	}

	return builtLogger
}

func runServe(cmd *cobra.Command, _ []string) error {
	if viper.GetBool("generate-env-example") {
		return generateEnvExample(cmd)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger.Info("Starting ytqueue",
		zap.String("provider", config.Provider.BaseURL),
		zap.Bool("infinite_mode", config.Engine.InfiniteMode),
		zap.Bool("store_enabled", config.Store.Enabled))

	if err := validateConfig(); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}

	svcs, err := initializeServices(ctx)
	if err != nil {
		return err
	}

	return runServices(ctx, svcs)
}

type services struct {
	provider   *ytmusic.Client
	engine     *queue.Engine
	session    *queue.Session
	store      *store.QueueStore
	gate       *flood.Floodgate
	httpServer *httpserver.Server
}

func initializeServices(ctx context.Context) (*services, error) {
	metrics := httpserver.NewMetrics()
	provider := ytmusic.NewClient(&config.Provider, logger.Named("ytmusic"))

	engine := queue.NewEngine(provider, config.Engine, metrics, logger.Named("engine"))
	engine.SetTasteProfile(config.Taste)

	var queueStore *store.QueueStore
	if config.Store.Enabled {
		var err error
		queueStore, err = store.OpenQueueStore(config.Store.Path, logger.Named("store"))
		if err != nil {
			return nil, fmt.Errorf("failed to open queue store: %w", err)
		}
		if err := restoreQueue(ctx, engine, queueStore); err != nil {
			logger.Warn("Failed to restore saved queue, starting empty", zap.Error(err))
		}
	}

	session := engine.StartSession(ctx)
	gate := flood.New(config.API.LimitPerMinute)
	gate.SetRouteLimit(httpserver.RouteRadio, config.API.RadioLimitPerMinute)
	api := httpserver.NewAPI(engine, session, provider, gate, metrics, logger.Named("api"))
	httpServer := httpserver.NewServer(&config.Server, api, metrics, logger.Named("http"))

	return &services{
		provider:   provider,
		engine:     engine,
		session:    session,
		store:      queueStore,
		gate:       gate,
		httpServer: httpServer,
	}, nil
}

// restoreQueue resumes the last saved session. An empty store leaves the
// configured defaults untouched.
func restoreQueue(ctx context.Context, engine *queue.Engine, queueStore *store.QueueStore) error {
	snap, err := queueStore.LoadSnapshot(ctx)
	if err != nil {
		return err
	}
	if len(snap.Tracks) == 0 {
		return nil
	}

	engine.SyncQueueState(snap.Tracks, snap.Index)
	engine.SetInfiniteMode(snap.InfiniteMode)

	logger.Info("Restored saved queue",
		zap.Int("tracks", len(snap.Tracks)),
		zap.Int("index", snap.Index),
		zap.Bool("infinite_mode", snap.InfiniteMode))
	return nil
}

func runServices(ctx context.Context, svcs *services) error {
	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return svcs.httpServer.Start(gCtx)
	})

	g.Go(func() error {
		<-gCtx.Done()
		svcs.session.Stop()
		return nil
	})

	if svcs.store != nil {
		// Subscribe before the group starts so no change between now and the
		// first receive is missed.
		sub := svcs.engine.Subscribe()
		g.Go(func() error {
			defer svcs.engine.Unsubscribe(sub)
			return persistQueue(gCtx, sub, svcs.engine, svcs.store)
		})
	}

	logger.Info("ytqueue started successfully",
		zap.String("http_addr", fmt.Sprintf("%s:%d", config.Server.Host, config.Server.Port)))

	err := g.Wait()

	svcs.engine.Close()
	svcs.gate.Stop()
	if svcs.store != nil {
		if closeErr := svcs.store.Close(); closeErr != nil {
			logger.Debug("Failed to close queue store", zap.Error(closeErr))
		}
	}

	if err != nil {
		logger.Error("ytqueue stopped with error", zap.Error(err))
		return err
	}

	logger.Info("ytqueue stopped gracefully")
	return nil
}

// persistQueue writes every queue change to the store, and the final state on shutdown.
func persistQueue(ctx context.Context, sub *queue.Subscription, engine *queue.Engine, queueStore *store.QueueStore) error {
	save := func(snap core.QueueSnapshot) {
		saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
		defer cancel()
		if err := queueStore.SaveSnapshot(saveCtx, snap); err != nil {
			logger.Warn("Failed to persist queue", zap.Error(err))
		}
	}

	for {
		select {
		case <-ctx.Done():
			save(engine.Snapshot())
			return nil
		case change, ok := <-sub.Changes():
			if !ok {
				return nil
			}
			logger.Debug("Persisting queue change",
				zap.String("reason", string(change.Reason)),
				zap.Int("tracks", len(change.Snapshot.Tracks)))
			save(change.Snapshot)
		}
	}
}

func validateConfig() error {
	if config.Provider.BaseURL == "" {
		return fmt.Errorf("provider base URL is required")
	}
	if config.Server.Port < 0 || config.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", config.Server.Port)
	}
	if config.Engine.MinQueueSize > config.Engine.RefillBatchSize {
		return fmt.Errorf("min queue size (%d) must not exceed refill batch size (%d)",
			config.Engine.MinQueueSize, config.Engine.RefillBatchSize)
	}
	return nil
}
