package extraction

import (
	"context"
	"log/slog"
	"strings"
	"time"
)

const (
	// MaxRequestsPerMinute is the outbound request quota for the default
	// slot limiter.
	MaxRequestsPerMinute = 15
	// RateWindow is the sliding window the quota applies to.
	RateWindow = time.Minute

	maxRetries = 2
)

var retryDelays = [maxRetries]time.Duration{1 * time.Second, 2 * time.Second}

// Model generates a free-text reply for a prepared receipt image.
type Model interface {
	// Generate sends the payload to the backing vision model and returns
	// its raw text reply.
	Generate(ctx context.Context, payload PreparedPayload) (string, error)
	// Close releases the model's resources.
	Close() error
}

// PrepareFunc turns raw image bytes into a transport payload.
type PrepareFunc func(data []byte, contentType string) (PreparedPayload, error)

// Service orchestrates one extraction: credential check, rate-limit slot,
// image preparation, retried model call, and response validation. It has
// no persistence side effects; callers own what happens with the Result.
type Service struct {
	credential string
	limiter    Limiter
	model      Model
	prepare    PrepareFunc
	sleep      func(context.Context, time.Duration) error
}

// NewService creates a Service with the default image preparator.
func NewService(credential string, limiter Limiter, model Model) *Service {
	return &Service{
		credential: credential,
		limiter:    limiter,
		model:      model,
		prepare:    Prepare,
		sleep:      sleepContext,
	}
}

// NewServiceWithDeps creates a Service with custom dependencies for testing.
func NewServiceWithDeps(credential string, limiter Limiter, model Model, prepare PrepareFunc, sleep func(context.Context, time.Duration) error) *Service {
	return &Service{
		credential: credential,
		limiter:    limiter,
		model:      model,
		prepare:    prepare,
		sleep:      sleep,
	}
}

// Extract runs the full pipeline for one captured image. One rate-limit
// slot is consumed per call; retries reuse it. Failures come back as
// *Error with a Kind from the closed taxonomy.
func (s *Service) Extract(ctx context.Context, data []byte, contentType string) (Result, error) {
	// Checked before any rate-limiter or network activity so a request
	// that cannot succeed never consumes a slot.
	if strings.TrimSpace(s.credential) == "" {
		return Result{}, &Error{Kind: KindMissingCredential}
	}

	if err := s.limiter.Acquire(ctx); err != nil {
		return Result{}, &Error{Kind: KindOther, cause: err}
	}

	payload, err := s.prepare(data, contentType)
	if err != nil {
		return Result{}, &Error{Kind: KindImageLoad, cause: err}
	}

	raw, err := s.generateWithRetry(ctx, payload)
	if err != nil {
		return Result{}, classify(err)
	}

	result, ok := Validate(raw)
	if !ok {
		slog.Warn("Model reply failed validation", "reply_length", len(raw))
		return Result{}, &Error{Kind: KindInvalidResponse}
	}
	return result, nil
}

// generateWithRetry retries transient failures with fixed escalating
// backoff. Non-transient failures surface immediately; exhausting all
// attempts surfaces the last observed failure.
func (s *Service) generateWithRetry(ctx context.Context, payload PreparedPayload) (string, error) {
	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		raw, err := s.model.Generate(ctx, payload)
		if err == nil {
			return raw, nil
		}
		lastErr = err

		if attempt < maxRetries && classify(err).Retryable() {
			slog.Warn("Retrying model call", "attempt", attempt+1, "error", err)
			if sleepErr := s.sleep(ctx, retryDelays[attempt]); sleepErr != nil {
				return "", sleepErr
			}
			continue
		}
		return "", err
	}
	return "", lastErr
}
