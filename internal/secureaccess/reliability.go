package secureaccess

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/avast/retry-go/v5"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/xela07ax/secure-access-dashboard/internal/infra"
)

// reliability оборачивает вызовы API: лимитер, повторы с экспоненциальной паузой, предохранитель.
type reliability struct {
	cb       *gobreaker.CircuitBreaker
	limiter  *rate.Limiter
	attempts uint
	delay    time.Duration
	metrics  *infra.Metrics
	logger   *zap.Logger
}

func newReliability(cfg infra.SecureAccessConfig, metrics *infra.Metrics, logger *zap.Logger) *reliability {
	maxFailures := uint32(cfg.BreakerMaxFailure)
	if maxFailures == 0 {
		maxFailures = 5
	}

	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "secure-access",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second, // Время, через которое CB попробует "закрыться"
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		// Ошибки клиента (404, плохие ключи) не говорят о том, что API лежит
		IsSuccessful: func(err error) bool {
			return err == nil || !countsAsOutage(err)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			metrics.CircuitBreakerState.Set(float64(to))
			logger.Warn("circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	})

	limit := rate.Inf
	if cfg.RateLimit > 0 {
		limit = rate.Limit(cfg.RateLimit)
	}
	burst := cfg.RateBurst
	if burst <= 0 {
		burst = 1
	}

	return &reliability{
		cb:       cb,
		limiter:  rate.NewLimiter(limit, burst),
		attempts: uint(cfg.MaxRetries),
		delay:    cfg.RetryDelay,
		metrics:  metrics,
		logger:   logger,
	}
}

// do выполняет call с повторами. call получает контекст одной попытки.
func (r *reliability) do(ctx context.Context, endpoint string, call func(ctx context.Context) error) error {
	_, err := r.cb.Execute(func() (interface{}, error) {
		rt := retry.New(
			retry.Context(ctx),
			retry.Attempts(r.attempts),
			retry.Delay(r.delay),
			retry.LastErrorOnly(true),
			retry.RetryIf(retryable),
			retry.OnRetry(func(n uint, err error) {
				r.logger.Warn("secure access request failed, retrying",
					zap.String("endpoint", endpoint),
					zap.Uint("attempt", n+1),
					zap.String("trace_id", infra.TraceID(ctx)),
					zap.Error(err))
			}),
			retry.DelayType(func(n uint, err error, config retry.DelayContext) time.Duration {
				// Если API вернул Retry-After — ждем ровно столько
				var tErr *ThrottleError
				if errors.As(err, &tErr) && tErr.RetryAfter > 0 {
					return tErr.RetryAfter
				}
				// В остальных случаях — экспоненциальный бэкофф 1s, 2s, 4s...
				return retry.BackOffDelay(n, err, config)
			}),
		)

		return nil, rt.Do(func() error {
			if err := r.limiter.Wait(ctx); err != nil {
				return fmt.Errorf("rate limiter: %w", err)
			}
			return call(ctx)
		})
	})

	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		r.metrics.UpstreamErrors.WithLabelValues(endpoint, "breaker_open").Inc()
		return fmt.Errorf("secure access %s: %w", endpoint, err)
	}
	return err
}

// retryable решает, есть ли смысл повторять запрос.
func retryable(err error) bool {
	if errors.Is(err, ErrMissingCredentials) || errors.Is(err, context.Canceled) {
		return false
	}

	var dErr *decodeError
	if errors.As(err, &dErr) {
		return false
	}

	var tErr *ThrottleError
	if errors.As(err, &tErr) {
		return true
	}

	var sErr *StatusError
	if errors.As(err, &sErr) {
		switch {
		case sErr.StatusCode >= 500:
			return true
		case sErr.Endpoint == endpointToken:
			// Неверные ключи не исправятся повтором
			return false
		case sErr.StatusCode == http.StatusUnauthorized, sErr.StatusCode == http.StatusRequestTimeout:
			return true
		default:
			return false
		}
	}

	// Сетевые ошибки, таймауты попытки
	return true
}

// countsAsOutage — ошибки, которые считаются отказом API для предохранителя.
func countsAsOutage(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, ErrMissingCredentials) {
		return false
	}
	var sErr *StatusError
	if errors.As(err, &sErr) {
		return sErr.StatusCode >= 500
	}
	var dErr *decodeError
	return !errors.As(err, &dErr)
}
