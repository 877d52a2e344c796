package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"ytqueue/internal/core"
	"ytqueue/internal/flood"
	"ytqueue/pkg/text"
)

const (
	maxBodyBytes        = 1 << 20
	defaultRelatedLimit = core.DefaultRefillBatchSize
	maxRelatedLimit     = core.MaxRelatedLimit
	clientIDHeader      = "X-Client-ID"
)

// RouteRadio is the flood gate route for radio starts.
const RouteRadio = "radio"

var errBadRequest = errors.New("bad request")

// QueueEngine is the part of the queue engine the control API drives.
type QueueEngine interface {
	Snapshot() core.QueueSnapshot
	SyncQueueState(tracks []core.Track, index int)
	AddToQueue(tracks []core.Track) int
	AddToPlayNext(tracks []core.Track) int
	RemoveFromQueue(index int) bool
	MoveSong(from, to int) bool
	MarkSongAsPlayed(id string)
	ClearQueue()
	SetInfiniteMode(enabled bool)
	TasteProfile() core.TasteProfile
	SetTasteProfile(p core.TasteProfile)
	GetRelatedSongs(ctx context.Context, seedID string, limit int) ([]core.Track, error)
	InstantRadio(ctx context.Context, seed core.Track, limit int) ([]core.Track, error)
}

// SessionSignals are the player callbacks a queue session accepts.
type SessionSignals interface {
	QueueLow()
	SongAdvanced(index int) int
	Refresh()
}

// API serves the player-facing control endpoints under /api/.
type API struct {
	engine   QueueEngine
	session  SessionSignals
	provider core.MusicSearchProvider
	parser   *text.Parser
	gate     *flood.Floodgate
	metrics  *Metrics
	logger   *zap.Logger
}

// apiFunc returns the status and payload to encode, or an error to map.
type apiFunc func(r *http.Request) (int, any, error)

func NewAPI(
	engine QueueEngine,
	session SessionSignals,
	provider core.MusicSearchProvider,
	gate *flood.Floodgate,
	metrics *Metrics,
	logger *zap.Logger,
) *API {
	return &API{
		engine:   engine,
		session:  session,
		provider: provider,
		parser:   text.NewParser(),
		gate:     gate,
		metrics:  metrics,
		logger:   logger,
	}
}

func (a *API) register(mux *http.ServeMux) {
	a.handle(mux, "GET /api/queue", "queue_get", false, a.getQueue)
	a.handle(mux, "PUT /api/queue", "queue_sync", true, a.syncQueue)
	a.handle(mux, "DELETE /api/queue", "queue_clear", true, a.clearQueue)
	a.handle(mux, "POST /api/queue/tracks", "queue_add", true, a.addTracks)
	a.handle(mux, "DELETE /api/queue/tracks/{index}", "queue_remove", true, a.removeTrack)
	a.handle(mux, "POST /api/queue/move", "queue_move", true, a.moveTrack)
	a.handle(mux, "POST /api/queue/index", "queue_index", true, a.updateIndex)
	a.handle(mux, "POST /api/queue/played", "queue_played", true, a.markPlayed)
	a.handle(mux, "POST /api/queue/low", "queue_low", true, a.queueLow)
	a.handle(mux, "POST /api/queue/refresh", "queue_refresh", true, a.refresh)
	a.handle(mux, "PUT /api/infinite", "infinite", true, a.setInfinite)
	a.handle(mux, "GET /api/taste", "taste_get", false, a.getTaste)
	a.handle(mux, "PUT /api/taste", "taste_set", true, a.setTaste)
	a.handle(mux, "POST /api/radio", RouteRadio, true, a.startRadio)
	a.handle(mux, "GET /api/related/{id}", "related", false, a.related)
	a.handle(mux, "GET /api/status", "status", false, a.status)
}

func (a *API) handle(mux *http.ServeMux, pattern, route string, mutating bool, fn apiFunc) {
	mux.HandleFunc(pattern, func(w http.ResponseWriter, r *http.Request) {
		if mutating && a.gate != nil {
			client := clientID(r)
			if !a.gate.Allow(route, client) {
				retry := a.gate.RetryAfter(route, client)
				w.Header().Set("Retry-After", strconv.Itoa(int(retry.Seconds())+1))
				a.logger.Debug("API request rate limited",
					zap.String("route", route),
					zap.String("client", client))
				a.writeJSON(w, route, http.StatusTooManyRequests, errorBody("too many requests"))
				return
			}
		}

		status, payload, err := fn(r)
		if err != nil {
			status = statusFor(err)
			if status >= http.StatusInternalServerError {
				a.logger.Warn("API request failed",
					zap.String("route", route),
					zap.Int("status", status),
					zap.Error(err))
			}
			payload = errorBody(err.Error())
		}
		a.writeJSON(w, route, status, payload)
	})
}

func (a *API) writeJSON(w http.ResponseWriter, route string, status int, payload any) {
	if a.metrics != nil {
		a.metrics.RecordAPIRequest(route, status)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		a.logger.Debug("Failed to write API response", zap.String("route", route), zap.Error(err))
	}
}

func errorBody(msg string) map[string]string {
	return map[string]string{"error": msg}
}

// statusFor maps engine and provider errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, errBadRequest), errors.Is(err, core.ErrInvalidSeed):
		return http.StatusBadRequest
	case errors.Is(err, core.ErrInvalidIndex), errors.Is(err, core.ErrTrackNotFound):
		return http.StatusNotFound
	case errors.Is(err, core.ErrProviderUnavailable):
		return http.StatusBadGateway
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// clientID prefers an explicit header so players behind one proxy are told apart.
func clientID(r *http.Request) string {
	if id := strings.TrimSpace(r.Header.Get(clientIDHeader)); id != "" {
		return id
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func decodeBody(r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("%w: %v", errBadRequest, err)
	}
	return nil
}

func (a *API) getQueue(*http.Request) (int, any, error) {
	return http.StatusOK, a.engine.Snapshot(), nil
}

type syncRequest struct {
	Tracks []core.Track `json:"tracks"`
	Index  int          `json:"index"`
}

func (a *API) syncQueue(r *http.Request) (int, any, error) {
	var req syncRequest
	if err := decodeBody(r, &req); err != nil {
		return 0, nil, err
	}
	a.engine.SyncQueueState(req.Tracks, req.Index)
	return http.StatusOK, a.engine.Snapshot(), nil
}

func (a *API) clearQueue(*http.Request) (int, any, error) {
	a.engine.ClearQueue()
	return http.StatusOK, a.engine.Snapshot(), nil
}

type addRequest struct {
	Tracks []core.Track `json:"tracks"`
	Next   bool         `json:"next"`
}

type addResponse struct {
	Added int                `json:"added"`
	Queue core.QueueSnapshot `json:"queue"`
}

func (a *API) addTracks(r *http.Request) (int, any, error) {
	var req addRequest
	if err := decodeBody(r, &req); err != nil {
		return 0, nil, err
	}
	if len(req.Tracks) == 0 {
		return 0, nil, fmt.Errorf("%w: no tracks", errBadRequest)
	}

	var added int
	if req.Next {
		added = a.engine.AddToPlayNext(req.Tracks)
	} else {
		added = a.engine.AddToQueue(req.Tracks)
	}
	return http.StatusOK, addResponse{Added: added, Queue: a.engine.Snapshot()}, nil
}

func (a *API) removeTrack(r *http.Request) (int, any, error) {
	index, err := strconv.Atoi(r.PathValue("index"))
	if err != nil {
		return 0, nil, fmt.Errorf("%w: index must be an integer", errBadRequest)
	}
	if !a.engine.RemoveFromQueue(index) {
		return 0, nil, fmt.Errorf("%w: %d", core.ErrInvalidIndex, index)
	}
	return http.StatusOK, a.engine.Snapshot(), nil
}

type moveRequest struct {
	From int `json:"from"`
	To   int `json:"to"`
}

func (a *API) moveTrack(r *http.Request) (int, any, error) {
	var req moveRequest
	if err := decodeBody(r, &req); err != nil {
		return 0, nil, err
	}
	if !a.engine.MoveSong(req.From, req.To) {
		return 0, nil, fmt.Errorf("%w: move %d to %d", core.ErrInvalidIndex, req.From, req.To)
	}
	return http.StatusOK, a.engine.Snapshot(), nil
}

type indexRequest struct {
	Index int `json:"index"`
}

func (a *API) updateIndex(r *http.Request) (int, any, error) {
	var req indexRequest
	if err := decodeBody(r, &req); err != nil {
		return 0, nil, err
	}
	index := a.session.SongAdvanced(req.Index)
	return http.StatusOK, map[string]int{"index": index}, nil
}

type playedRequest struct {
	ID string `json:"id"`
}

func (a *API) markPlayed(r *http.Request) (int, any, error) {
	var req playedRequest
	if err := decodeBody(r, &req); err != nil {
		return 0, nil, err
	}
	if strings.TrimSpace(req.ID) == "" {
		return 0, nil, fmt.Errorf("%w: id is required", errBadRequest)
	}
	a.engine.MarkSongAsPlayed(req.ID)
	return http.StatusNoContent, nil, nil
}

func (a *API) queueLow(*http.Request) (int, any, error) {
	a.session.QueueLow()
	return http.StatusAccepted, nil, nil
}

func (a *API) refresh(*http.Request) (int, any, error) {
	a.session.Refresh()
	return http.StatusAccepted, nil, nil
}

type infiniteRequest struct {
	Enabled bool `json:"enabled"`
}

func (a *API) setInfinite(r *http.Request) (int, any, error) {
	var req infiniteRequest
	if err := decodeBody(r, &req); err != nil {
		return 0, nil, err
	}
	a.engine.SetInfiniteMode(req.Enabled)
	return http.StatusOK, a.engine.Snapshot(), nil
}

func (a *API) getTaste(*http.Request) (int, any, error) {
	return http.StatusOK, a.engine.TasteProfile(), nil
}

func (a *API) setTaste(r *http.Request) (int, any, error) {
	var req core.TasteProfile
	if err := decodeBody(r, &req); err != nil {
		return 0, nil, err
	}
	a.engine.SetTasteProfile(req)
	return http.StatusOK, a.engine.TasteProfile(), nil
}

type radioRequest struct {
	Seed  string `json:"seed"`
	Limit int    `json:"limit"`
}

type radioResponse struct {
	Seed   core.Track   `json:"seed"`
	Tracks []core.Track `json:"tracks"`
}

func (a *API) startRadio(r *http.Request) (int, any, error) {
	var req radioRequest
	if err := decodeBody(r, &req); err != nil {
		return 0, nil, err
	}
	if req.Limit < 0 || req.Limit > maxRelatedLimit {
		return 0, nil, fmt.Errorf("%w: limit must be between 0 and %d", errBadRequest, maxRelatedLimit)
	}

	seed, err := a.resolveSeed(r.Context(), req.Seed)
	if err != nil {
		return 0, nil, err
	}

	tracks, err := a.engine.InstantRadio(r.Context(), seed, req.Limit)
	if err != nil {
		return 0, nil, err
	}
	return http.StatusOK, radioResponse{Seed: seed, Tracks: tracks}, nil
}

// resolveSeed turns a video id, a link or free text into a seed track. Details
// are best effort; the engine fills in metadata when they are missing.
func (a *API) resolveSeed(ctx context.Context, input string) (core.Track, error) {
	parsed, err := a.parser.ParseSeed(input)
	if err != nil {
		return core.Track{}, err
	}

	if parsed.Kind == text.SeedQuery {
		results, err := a.provider.SearchByText(ctx, parsed.Query, 1)
		if err != nil {
			return core.Track{}, err
		}
		if len(results) == 0 {
			return core.Track{}, fmt.Errorf("%w: no result for %q", core.ErrTrackNotFound, parsed.Query)
		}
		return results[0], nil
	}

	details, err := a.provider.SongDetails(ctx, parsed.VideoID)
	switch {
	case errors.Is(err, core.ErrProviderUnavailable):
		return core.Track{}, err
	case err != nil || details == nil:
		a.logger.Debug("Seed details unavailable, starting radio from id only",
			zap.String("videoID", parsed.VideoID),
			zap.Error(err))
		return core.Track{ID: parsed.VideoID, Kind: core.KindSong}, nil
	}

	seed := *details
	seed.ID = parsed.VideoID
	return seed, nil
}

func (a *API) related(r *http.Request) (int, any, error) {
	limit := defaultRelatedLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 || n > maxRelatedLimit {
			return 0, nil, fmt.Errorf("%w: limit must be between 0 and %d", errBadRequest, maxRelatedLimit)
		}
		limit = n
	}

	tracks, err := a.engine.GetRelatedSongs(r.Context(), r.PathValue("id"), limit)
	if err != nil {
		return 0, nil, err
	}
	return http.StatusOK, map[string][]core.Track{"tracks": tracks}, nil
}

type statusResponse struct {
	QueueLength  int         `json:"queue_length"`
	Index        int         `json:"index"`
	Upcoming     int         `json:"upcoming"`
	InfiniteMode bool        `json:"infinite_mode"`
	Flood        flood.Stats `json:"flood"`
}

func (a *API) status(*http.Request) (int, any, error) {
	snap := a.engine.Snapshot()
	resp := statusResponse{
		QueueLength:  len(snap.Tracks),
		Index:        snap.Index,
		Upcoming:     max(snap.Upcoming(), 0),
		InfiniteMode: snap.InfiniteMode,
	}
	if a.gate != nil {
		resp.Flood = a.gate.GetStats()
	}
	return http.StatusOK, resp, nil
}
