// Package engine adapts the external RecommendationEngine collaborator
// (spec.md §6) to an outbound HTTP/JSON client. Model training, audio
// feature extraction, and vector index construction are out of scope;
// this package only speaks the request/response contract at the boundary.
package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"net/http"
	"time"

	"github.com/pannpers/go-apperr/apperr"
	"github.com/pannpers/go-apperr/apperr/codes"
	"github.com/tunetrail/backend/internal/entity"
)

// retryBaseDelay is the backoff window for the single internal retry on
// entity.ErrUpstreamUnavailable (spec.md §7); the actual delay is jittered
// uniformly within [0, retryBaseDelay) so concurrent callers retrying at
// once don't all land on the engine in the same instant.
const retryBaseDelay = 200 * time.Millisecond

// requestBody is the JSON shape POSTed to the engine endpoint.
type requestBody struct {
	Kind          string `json:"kind"`
	UserID        string `json:"user_id"`
	Seed          string `json:"seed,omitempty"`
	Limit         int    `json:"limit"`
	ModelTierHint string `json:"model_tier_hint,omitempty"`
}

// trackBody is one ranked result as returned by the engine.
type trackBody struct {
	TrackID string  `json:"track_id"`
	Score   float64 `json:"score"`
	Reason  string  `json:"reason"`
}

// responseBody is the JSON shape returned by the engine endpoint.
type responseBody struct {
	Tracks       []trackBody `json:"tracks"`
	ModelType    string      `json:"model_type"`
	ModelVersion string      `json:"model_version"`
}

// HTTPClient is the only shipped RecommendationEngine implementation: it
// POSTs the request JSON to a configured endpoint and parses the ranked
// track list back. The engine is assumed stateless from the caller's
// perspective — no connection affinity, no session state.
type HTTPClient struct {
	endpoint string
	http     *http.Client
}

// NewHTTPClient builds an HTTPClient targeting endpoint. httpClient may be
// nil, in which case http.DefaultClient is used; callers typically supply
// one with a connection pool tuned for the engine's expected concurrency.
func NewHTTPClient(endpoint string, httpClient *http.Client) *HTTPClient {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &HTTPClient{endpoint: endpoint, http: httpClient}
}

// Close satisfies io.Closer for the shutdown package's External phase.
// http.Client has no explicit close; Close drops the client's idle
// keep-alive connections and always returns nil.
func (c *HTTPClient) Close() error {
	c.http.CloseIdleConnections()
	return nil
}

// Recommend submits req to the engine and returns its ranked response.
// ctx's deadline governs the outbound call; a deadline exceeded or
// connection failure surfaces as entity.ErrUpstreamUnavailable so callers
// can uniformly apply the stale-while-error fallback. On an
// ErrUpstreamUnavailable it retries once after a jittered backoff before
// giving up, per spec.md §7.
func (c *HTTPClient) Recommend(ctx context.Context, req *entity.RecommendationRequest) (*entity.RecommendationResult, error) {
	result, err := c.recommendOnce(ctx, req)
	if err == nil || !errors.Is(err, entity.ErrUpstreamUnavailable) {
		return result, err
	}

	delay := time.Duration(rand.Int64N(int64(retryBaseDelay)))
	select {
	case <-ctx.Done():
		return nil, err
	case <-time.After(delay):
	}

	return c.recommendOnce(ctx, req)
}

// recommendOnce makes a single POST/decode attempt against the engine.
func (c *HTTPClient) recommendOnce(ctx context.Context, req *entity.RecommendationRequest) (*entity.RecommendationResult, error) {
	body, err := json.Marshal(requestBody{
		Kind:          string(req.Kind),
		UserID:        req.UserID,
		Seed:          req.Seed,
		Limit:         req.Limit,
		ModelTierHint: req.ModelTierHint,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal recommendation request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build recommendation request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json; charset=utf-8")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return nil, apperr.Wrap(entity.ErrUpstreamUnavailable, codes.DeadlineExceeded, "recommendation engine call timed out")
		}
		return nil, apperr.Wrap(entity.ErrUpstreamUnavailable, codes.Unavailable, "recommendation engine unreachable")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, apperr.Wrap(entity.ErrUpstreamUnavailable, codes.Unavailable,
			fmt.Sprintf("recommendation engine returned status %d", resp.StatusCode))
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apperr.Wrap(entity.ErrUpstreamUnavailable, codes.Unavailable, "failed to read engine response")
	}

	var out responseBody
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, apperr.Wrap(entity.ErrUpstreamUnavailable, codes.Unavailable, "malformed engine response")
	}

	tracks := make([]entity.RecommendedTrack, 0, len(out.Tracks))
	for _, t := range out.Tracks {
		tracks = append(tracks, entity.RecommendedTrack{TrackID: t.TrackID, Score: t.Score, Reason: t.Reason})
	}

	return &entity.RecommendationResult{Tracks: tracks, ModelType: out.ModelType, ModelVersion: out.ModelVersion}, nil
}

var _ entity.RecommendationEngine = (*HTTPClient)(nil)
