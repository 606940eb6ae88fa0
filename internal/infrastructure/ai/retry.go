package ai

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/time/rate"

	"github.com/doeshing/aish/internal/domain"
	"github.com/doeshing/aish/internal/ports"
)

type retryOptions struct {
	maxRetries        int
	timeout           time.Duration
	requestsPerSecond float64
	logger            ports.Logger
	// newBackOff is swapped in tests to avoid real sleeps.
	newBackOff func() backoff.BackOff
}

// retryingProvider bounds every call with a timeout and retries transient
// failures with exponential backoff.
type retryingProvider struct {
	inner   ports.Provider
	opts    retryOptions
	limiter *rate.Limiter
}

func newRetryingProvider(inner ports.Provider, opts retryOptions) *retryingProvider {
	if opts.maxRetries < 0 {
		opts.maxRetries = 0
	}
	if opts.timeout <= 0 {
		opts.timeout = domain.DefaultRequestTimeout
	}
	if opts.newBackOff == nil {
		opts.newBackOff = func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = 500 * time.Millisecond
			b.MaxInterval = 8 * time.Second
			b.MaxElapsedTime = 0
			return b
		}
	}

	p := &retryingProvider{inner: inner, opts: opts}
	if opts.requestsPerSecond > 0 {
		p.limiter = rate.NewLimiter(rate.Limit(opts.requestsPerSecond), 1)
	}
	return p
}

func (p *retryingProvider) Name() string {
	return p.inner.Name()
}

func (p *retryingProvider) Model() domain.ModelDefinition {
	return p.inner.Model()
}

func (p *retryingProvider) Complete(ctx context.Context, req ports.CompletionRequest) (ports.CompletionResponse, error) {
	var (
		out      ports.CompletionResponse
		attempts int
	)

	operation := func() error {
		attempts++
		if p.limiter != nil {
			if err := p.limiter.Wait(ctx); err != nil {
				return backoff.Permanent(err)
			}
		}

		callCtx, cancel := context.WithTimeout(ctx, p.opts.timeout)
		defer cancel()

		resp, err := p.inner.Complete(callCtx, req)
		if err == nil {
			out = resp
			return nil
		}
		if ctx.Err() != nil {
			return backoff.Permanent(ctx.Err())
		}
		if !retryable(err) {
			return backoff.Permanent(err)
		}
		if p.opts.logger != nil {
			p.opts.logger.Warn("reasoning request failed, retrying", map[string]interface{}{
				"backend": p.inner.Name(),
				"purpose": string(req.Purpose),
				"attempt": attempts,
				"error":   err.Error(),
			})
		}
		return err
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(p.opts.newBackOff(), uint64(p.opts.maxRetries)), ctx)
	if err := backoff.Retry(operation, policy); err != nil {
		return ports.CompletionResponse{}, fmt.Errorf("%s request failed after %d attempt(s): %w", p.inner.Name(), attempts, err)
	}
	return out, nil
}

// retryable separates transient failures (rate limits, 5xx, timeouts, network)
// from ones that will fail the same way again.
func retryable(err error) bool {
	if errors.Is(err, errMissingKey) || errors.Is(err, context.Canceled) {
		return false
	}
	var status *StatusError
	if errors.As(err, &status) {
		return status.Temporary()
	}
	return true
}

func parseTimeout(raw string) time.Duration {
	if raw == "" {
		return domain.DefaultRequestTimeout
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return domain.DefaultRequestTimeout
	}
	return d
}

var _ ports.Provider = (*retryingProvider)(nil)
