package scorer

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/storysize/storysize/pkg/platform"
)

// Failure is returned once every attempt for a platform has failed. The
// platform is then reported as unavailable; no factors are invented for it.
type Failure struct {
	Platform platform.Platform
	Attempts int
	Err      error
}

func (f *Failure) Error() string {
	return fmt.Sprintf("scoring %s failed after %d attempt(s): %v", f.Platform, f.Attempts, f.Err)
}

func (f *Failure) Unwrap() error { return f.Err }

// Reason classifies the last error for reports.
func (f *Failure) Reason() string {
	switch {
	case errors.Is(f.Err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(f.Err, context.Canceled):
		return "cancelled"
	case errors.Is(f.Err, ErrFactorOutOfRange):
		return "factor out of range"
	case errors.Is(f.Err, ErrMalformedResponse):
		return "malformed response"
	default:
		return "scorer error"
	}
}

// RetryPolicy controls per-call timeouts and retries.
type RetryPolicy struct {
	Timeout       time.Duration
	MaxAttempts   int
	InitialDelay  time.Duration
	MaxDelay      time.Duration
	BackoffFactor float64
	JitterEnabled bool
}

// DefaultRetryPolicy allows one retry after a 500ms backoff, 30s per call.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		Timeout:       30 * time.Second,
		MaxAttempts:   2,
		InitialDelay:  500 * time.Millisecond,
		MaxDelay:      5 * time.Second,
		BackoffFactor: 2.0,
		JitterEnabled: true,
	}
}

func (p RetryPolicy) delay(attempt int) time.Duration {
	d := time.Duration(float64(p.InitialDelay) * math.Pow(p.BackoffFactor, float64(attempt)))
	if p.MaxDelay > 0 && d > p.MaxDelay {
		d = p.MaxDelay
	}
	if p.JitterEnabled && d >= 10 {
		d += time.Duration(rand.Int63n(int64(d / 10)))
	}
	return d
}

// Resilient decorates a Scorer with per-attempt timeouts, validation,
// retries and an optional rate limit.
type Resilient struct {
	next    Scorer
	policy  RetryPolicy
	limiter *rate.Limiter
	logger  *zap.Logger
}

// NewResilient wraps next. limiter may be nil for no throttling.
func NewResilient(next Scorer, policy RetryPolicy, limiter *rate.Limiter, logger *zap.Logger) *Resilient {
	if logger == nil {
		logger = zap.NewNop()
	}
	if policy.MaxAttempts < 1 {
		policy.MaxAttempts = 1
	}
	return &Resilient{next: next, policy: policy, limiter: limiter, logger: logger}
}

// Score implements Scorer. Any error it returns is a *Failure.
func (r *Resilient) Score(ctx context.Context, req Request) (*Response, error) {
	log := r.logger.With(zap.String("platform", string(req.Platform)))
	var lastErr error
	attempts := 0

	for attempt := 0; attempt < r.policy.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			lastErr = err
			break
		}
		if r.limiter != nil {
			if err := r.limiter.Wait(ctx); err != nil {
				lastErr = err
				break
			}
		}

		attempts++
		start := time.Now()
		resp, err := r.attempt(ctx, req)
		if err == nil {
			log.Debug("scored", zap.Int("attempt", attempts), zap.Duration("elapsed", time.Since(start)))
			return resp, nil
		}
		lastErr = err
		log.Warn("scoring attempt failed",
			zap.Int("attempt", attempts),
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err),
		)

		if attempt == r.policy.MaxAttempts-1 {
			break
		}
		select {
		case <-ctx.Done():
			return nil, &Failure{Platform: req.Platform, Attempts: attempts, Err: ctx.Err()}
		case <-time.After(r.policy.delay(attempt)):
		}
	}

	return nil, &Failure{Platform: req.Platform, Attempts: attempts, Err: lastErr}
}

func (r *Resilient) attempt(ctx context.Context, req Request) (*Response, error) {
	callCtx := ctx
	if r.policy.Timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, r.policy.Timeout)
		defer cancel()
	}

	resp, err := r.next.Score(callCtx, req)
	if err != nil {
		if callCtx.Err() == context.DeadlineExceeded && !errors.Is(err, context.DeadlineExceeded) {
			err = fmt.Errorf("%w: %v", context.DeadlineExceeded, err)
		}
		return nil, err
	}
	if err := Validate(resp); err != nil {
		return nil, err
	}
	resp.Platform = req.Platform
	return resp, nil
}
