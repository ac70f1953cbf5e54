package llm

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Middleware decorates a Client to inject cross-cutting concerns
// (retries, logging, metrics).
type Middleware func(Client) Client

// Wrap applies middlewares in left-to-right order.
// Example: Wrap(inner, A, B) => A(B(inner))
func Wrap(inner Client, mws ...Middleware) Client {
	out := inner
	for i := len(mws) - 1; i >= 0; i-- {
		out = mws[i](out)
	}
	return out
}

// -------- Retry with exponential backoff --------

// Retry retries Complete up to maxAttempts with exponential backoff
// starting at baseDelay. Permanent errors and context cancellation stop it.
func Retry(maxAttempts int, baseDelay time.Duration) Middleware {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	if baseDelay <= 0 {
		baseDelay = 300 * time.Millisecond
	}
	return func(next Client) Client {
		return &retrying{next: next, max: maxAttempts, base: baseDelay}
	}
}

type retrying struct {
	next Client
	max  int
	base time.Duration
}

func (r *retrying) Name() string { return r.next.Name() }
func (r *retrying) Close() error { return r.next.Close() }

func (r *retrying) Complete(ctx context.Context, system, user string) (string, error) {
	var last error
	for i := 0; i < r.max; i++ {
		out, err := r.next.Complete(ctx, system, user)
		if err == nil {
			return out, nil
		}
		if IsPermanent(err) {
			return "", err
		}
		last = err
		if i == r.max-1 {
			break
		}
		t := time.NewTimer(r.base * time.Duration(1<<i))
		select {
		case <-ctx.Done():
			t.Stop()
			return "", ctx.Err()
		case <-t.C:
		}
	}
	return "", last
}

// -------- Logging --------

// WithLogging logs request size, latency and errors per stage.
func WithLogging(logger *zap.Logger) Middleware {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(next Client) Client {
		return &logging{next: next, log: logger}
	}
}

type logging struct {
	next Client
	log  *zap.Logger
}

func (l *logging) Name() string { return l.next.Name() }
func (l *logging) Close() error { return l.next.Close() }

func (l *logging) Complete(ctx context.Context, system, user string) (string, error) {
	fields := []zap.Field{
		zap.String("backend", l.next.Name()),
		zap.String("stage", PhaseFrom(ctx)),
	}
	l.log.Debug("llm request", append(fields, zap.Int("bytes", len(system)+len(user)))...)
	start := time.Now()
	out, err := l.next.Complete(ctx, system, user)
	if err != nil {
		l.log.Warn("llm error", append(fields, zap.Error(err))...)
		return out, err
	}
	l.log.Debug("llm response", append(fields, zap.Int("bytes", len(out)), zap.Duration("took", time.Since(start)))...)
	return out, nil
}

// -------- Metrics --------

// Observer receives one record per completed exchange.
type Observer interface {
	ObserveCompletion(backend, stage string, took time.Duration, err error)
}

// WithObserver reports every exchange to obs.
func WithObserver(obs Observer) Middleware {
	return func(next Client) Client {
		if obs == nil {
			return next
		}
		return &observed{next: next, obs: obs}
	}
}

type observed struct {
	next Client
	obs  Observer
}

func (o *observed) Name() string { return o.next.Name() }
func (o *observed) Close() error { return o.next.Close() }

func (o *observed) Complete(ctx context.Context, system, user string) (string, error) {
	start := time.Now()
	out, err := o.next.Complete(ctx, system, user)
	o.obs.ObserveCompletion(o.next.Name(), PhaseFrom(ctx), time.Since(start), err)
	return out, err
}
