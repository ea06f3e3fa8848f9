// Package routing provides clients for the external multimodal routing
// service that computes origin-destination travel time matrices, one per
// departure timestamp.
package routing

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/datasciencecampus/transport-network-performance/internal/model"
	"github.com/datasciencecampus/transport-network-performance/internal/resilience"
)

// Client fetches one travel time matrix per departure timestamp. The
// engine treats this as an opaque, possibly slow call; it is the only
// blocking operation in a run.
type Client interface {
	Matrix(ctx context.Context, departure time.Time) (*model.TravelTimeSample, error)
}

// MatrixRequest is the wire request for a travel time matrix.
type MatrixRequest struct {
	Departure    time.Time `json:"departure"`
	Origins      []int     `json:"origins"`
	Destinations []int     `json:"destinations"`
	MaxMinutes   float64   `json:"max_minutes,omitempty"`
}

// matrixEntry is one origin-destination pair in the wire response. A null
// minutes value is an explicit unreachable marker.
type matrixEntry struct {
	From    int      `json:"from"`
	To      int      `json:"to"`
	Minutes *float64 `json:"minutes"`
}

type matrixResponse struct {
	Times []matrixEntry `json:"times"`
}

// Service is an HTTP Client implementation. Requests are rate limited,
// retried on transient failures, and circuit-broken when the routing
// service is down.
type Service struct {
	baseURL    string
	req        MatrixRequest
	httpClient *http.Client
	limiter    *rate.Limiter
	retry      resilience.RetryConfig
	breaker    *resilience.CircuitBreaker
}

// Option configures a Service.
type Option func(*Service)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(s *Service) { s.httpClient = hc }
}

// WithRateLimit sets the requests-per-second limit toward the service.
func WithRateLimit(rps float64) Option {
	return func(s *Service) {
		burst := int(rps)
		if burst < 1 {
			burst = 1
		}
		s.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// WithRetry overrides the default retry policy.
func WithRetry(cfg resilience.RetryConfig) Option {
	return func(s *Service) { s.retry = cfg }
}

// WithCircuitBreaker overrides the default breaker.
func WithCircuitBreaker(cb *resilience.CircuitBreaker) Option {
	return func(s *Service) { s.breaker = cb }
}

// NewService creates an HTTP routing client. Origins and destinations are
// fixed for a run, so they are bound at construction; each Matrix call
// varies only the departure.
func NewService(baseURL string, origins, destinations []int, maxMinutes float64, opts ...Option) *Service {
	s := &Service{
		baseURL: baseURL,
		req: MatrixRequest{
			Origins:      origins,
			Destinations: destinations,
			MaxMinutes:   maxMinutes,
		},
		httpClient: &http.Client{Timeout: 5 * time.Minute},
		retry:      resilience.DefaultRetryConfig(),
		breaker:    resilience.NewCircuitBreaker(resilience.CircuitConfig{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Matrix requests the travel time matrix for one departure.
func (s *Service) Matrix(ctx context.Context, departure time.Time) (*model.TravelTimeSample, error) {
	if s.limiter != nil {
		if err := s.limiter.Wait(ctx); err != nil {
			return nil, eris.Wrap(err, "routing: rate limit wait")
		}
	}

	return resilience.DoVal(ctx, s.retry, func(ctx context.Context) (*model.TravelTimeSample, error) {
		var sample *model.TravelTimeSample
		err := s.breaker.Execute(ctx, func(ctx context.Context) error {
			var callErr error
			sample, callErr = s.fetch(ctx, departure)
			return callErr
		})
		return sample, err
	})
}

func (s *Service) fetch(ctx context.Context, departure time.Time) (*model.TravelTimeSample, error) {
	req := s.req
	req.Departure = departure

	body, err := json.Marshal(req)
	if err != nil {
		return nil, eris.Wrap(err, "routing: marshal request")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/matrix", bytes.NewReader(body))
	if err != nil {
		return nil, eris.Wrap(err, "routing: build request")
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(httpReq)
	if err != nil {
		return nil, eris.Wrap(err, "routing: request matrix")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, &resilience.TransientError{
			Err: fmt.Errorf("routing: matrix request returned %d", resp.StatusCode),
		}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, eris.Errorf("routing: matrix request returned %d", resp.StatusCode)
	}

	var decoded matrixResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, eris.Wrap(err, "routing: decode matrix response")
	}

	sample := model.NewTravelTimeSample(departure)
	for _, e := range decoded.Times {
		if e.Minutes == nil || *e.Minutes < 0 {
			sample.Set(e.From, e.To, model.Unreachable())
			continue
		}
		sample.SetMinutes(e.From, e.To, *e.Minutes)
	}

	zap.L().Debug("matrix fetched",
		zap.String("component", "routing"),
		zap.Time("departure", departure),
		zap.Int("entries", sample.Len()),
	)
	return sample, nil
}
