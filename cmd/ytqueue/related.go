package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"ytqueue/internal/core"
	"ytqueue/internal/queue"
	"ytqueue/internal/ytmusic"
	"ytqueue/pkg/text"
)

func runRelated(cmd *cobra.Command, args []string) error {
	limit, err := cmd.Flags().GetInt("limit")
	if err != nil {
		return err
	}
	if err := checkRelatedLimit(limit); err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	provider := ytmusic.NewClient(&config.Provider, logger.Named("ytmusic"))
	engine := queue.NewEngine(provider, config.Engine, nil, logger.Named("engine"))
	engine.SetTasteProfile(config.Taste)

	seedID, err := resolveSeedID(ctx, provider, strings.Join(args, " "))
	if err != nil {
		return err
	}

	logger.Debug("Fetching related tracks", zap.String("seedID", seedID), zap.Int("limit", limit))

	tracks, err := engine.GetRelatedSongs(ctx, seedID, limit)
	if err != nil {
		return fmt.Errorf("failed to fetch related tracks: %w", err)
	}

	printTracks(os.Stdout, tracks)
	return nil
}

func checkRelatedLimit(limit int) error {
	if limit <= 0 || limit > core.MaxRelatedLimit {
		return fmt.Errorf("limit must be between 1 and %d, got %d", core.MaxRelatedLimit, limit)
	}
	return nil
}

// resolveSeedID turns a video id, link or search text into a video id.
func resolveSeedID(ctx context.Context, provider core.MusicSearchProvider, input string) (string, error) {
	seed, err := text.NewParser().ParseSeed(input)
	if err != nil {
		return "", err
	}
	if seed.Kind != text.SeedQuery {
		return seed.VideoID, nil
	}

	results, err := provider.SearchByText(ctx, seed.Query, 1)
	if err != nil {
		return "", fmt.Errorf("failed to search for seed: %w", err)
	}
	if len(results) == 0 {
		return "", fmt.Errorf("%w: no result for %q", core.ErrTrackNotFound, seed.Query)
	}
	return results[0].ID, nil
}

func printTracks(w io.Writer, tracks []core.Track) {
	if len(tracks) == 0 {
		fmt.Fprintln(w, "No related tracks found, try again in a few seconds.")
		return
	}
	for i, t := range tracks {
		fmt.Fprintf(w, "%2d. %s\t%s - %s (%s)\n", i+1, t.ID, t.Artist, t.Title, formatDuration(t.DurationSecs))
	}
}

func formatDuration(secs int) string {
	if secs <= 0 {
		return "?:??"
	}
	return fmt.Sprintf("%d:%02d", secs/60, secs%60)
}
