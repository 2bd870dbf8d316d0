package ml

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/geocoder89/herapt/internal/actorctx"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

// ErrUpstream wraps every transport failure, timeout, non-2xx status and undecodable body.
var ErrUpstream = errors.New("ml service error")

const (
	predictCareerPath = "/predict-career"
	matchMentorPath   = "/match-mentor"

	userIDHeader = "X-User-ID"

	// cap on upstream error bodies kept for logs
	maxErrorBody = 4 << 10
)

type UpstreamError struct {
	Op     string
	Status int
	Body   string
	Err    error
}

func (e *UpstreamError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s: upstream status %d: %s", e.Op, e.Status, e.Body)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *UpstreamError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrUpstream, e.Err}
	}
	return []error{ErrUpstream}
}

// Observer times each upstream call.
type Observer interface {
	ObserveUpstream(op string, fn func() error) error
}

type noopObserver struct{}

func (noopObserver) ObserveUpstream(_ string, fn func() error) error { return fn() }

type Client struct {
	httpClient *http.Client
	baseURL    string
	tracer     trace.Tracer
	obs        Observer
}

// NewClient builds a client whose every call is bounded by timeout. No retries are made.
func NewClient(baseURL string, timeout time.Duration, obs Observer) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if obs == nil {
		obs = noopObserver{}
	}

	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    baseURL,
		tracer:     otel.Tracer("github.com/geocoder89/herapt/internal/ml"),
		obs:        obs,
	}
}

func (c *Client) PredictCareer(ctx context.Context, in CareerInput) ([]Prediction, error) {
	var out predictResponse

	if err := c.postJSON(ctx, "predict_career", predictCareerPath, in, &out); err != nil {
		return nil, err
	}

	return out.Predictions, nil
}

func (c *Client) MatchMentors(ctx context.Context, req MatchRequest) ([]Match, error) {
	var out matchResponse

	if err := c.postJSON(ctx, "match_mentor", matchMentorPath, req, &out); err != nil {
		return nil, err
	}

	if out.Matches == nil {
		return []Match{}, nil
	}
	return out.Matches, nil
}

func (c *Client) postJSON(ctx context.Context, op, path string, body, result any) error {
	ctx, span := c.tracer.Start(ctx, "ml."+op, trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	err := c.obs.ObserveUpstream(op, func() error {
		return c.do(ctx, op, path, body, result)
	})

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "ml call failed")
	}
	return err
}

func (c *Client) do(ctx context.Context, op, path string, body, result any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode %s request: %w", op, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return &UpstreamError{Op: op, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	if userID, ok := actorctx.UserIDFrom(ctx); ok {
		req.Header.Set(userIDHeader, userID)
	}

	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &UpstreamError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	trace.SpanFromContext(ctx).SetAttributes(attribute.Int("http.response.status_code", resp.StatusCode))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &UpstreamError{Op: op, Status: resp.StatusCode, Body: string(raw)}
	}

	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return &UpstreamError{Op: op, Err: fmt.Errorf("decode response: %w", err)}
	}

	return nil
}
