package ai

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"github.com/hugohenrick/whatsapp-commerce/pkg/logger"
)

// ErrUnavailable is returned while the breaker for a credential is open.
var ErrUnavailable = errors.New("ai: provider temporarily unavailable")

// GuardConfig tunes the breaker and the rate limiter of a Guard.
type GuardConfig struct {
	// RequestsPerSecond is the sustained rate per credential; zero disables limiting.
	RequestsPerSecond float64
	Burst             int

	// ConsecutiveFailures trips the breaker.
	ConsecutiveFailures uint32
	OpenTimeout         time.Duration
}

// DefaultGuardConfig returns the production defaults.
func DefaultGuardConfig() GuardConfig {
	return GuardConfig{
		RequestsPerSecond:   5,
		Burst:               10,
		ConsecutiveFailures: 5,
		OpenTimeout:         30 * time.Second,
	}
}

type guarded struct {
	breaker *gobreaker.CircuitBreaker[string]
	limiter *rate.Limiter
}

// Guard wraps a Client with one circuit breaker and one limiter per API key,
// so a tenant with a broken or throttled key does not affect the others.
type Guard struct {
	next   Client
	cfg    GuardConfig
	logger logger.Logger

	mu     sync.Mutex
	guards map[string]*guarded
}

// NewGuard creates a Guard around next.
func NewGuard(next Client, cfg GuardConfig, log logger.Logger) *Guard {
	if log == nil {
		log = logger.NewNop()
	}
	if cfg.ConsecutiveFailures == 0 {
		cfg.ConsecutiveFailures = DefaultGuardConfig().ConsecutiveFailures
	}
	if cfg.OpenTimeout <= 0 {
		cfg.OpenTimeout = DefaultGuardConfig().OpenTimeout
	}
	return &Guard{
		next:   next,
		cfg:    cfg,
		logger: log,
		guards: make(map[string]*guarded),
	}
}

// Complete implements Client.
func (g *Guard) Complete(ctx context.Context, req Request) (string, error) {
	gd := g.forKey(req.Options.APIKey)

	if gd.limiter != nil {
		if err := gd.limiter.Wait(ctx); err != nil {
			return "", fmt.Errorf("ai: rate limit wait: %w", err)
		}
	}

	out, err := gd.breaker.Execute(func() (string, error) {
		return g.next.Complete(ctx, req)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return out, err
}

func (g *Guard) forKey(apiKey string) *guarded {
	key := credentialHash(apiKey)

	g.mu.Lock()
	defer g.mu.Unlock()

	if gd, ok := g.guards[key]; ok {
		return gd
	}

	gd := &guarded{
		breaker: gobreaker.NewCircuitBreaker[string](gobreaker.Settings{
			Name:        "ai-" + key[:8],
			MaxRequests: 1,
			Timeout:     g.cfg.OpenTimeout,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= g.cfg.ConsecutiveFailures
			},
			IsSuccessful: func(err error) bool {
				// caller cancellations and missing keys say nothing about provider health
				return err == nil ||
					errors.Is(err, context.Canceled) ||
					errors.Is(err, ErrMissingAPIKey)
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				g.logger.Warn("AI circuit breaker state changed", "breaker", name, "from", from.String(), "to", to.String())
			},
		}),
	}
	if g.cfg.RequestsPerSecond > 0 {
		burst := g.cfg.Burst
		if burst < 1 {
			burst = 1
		}
		gd.limiter = rate.NewLimiter(rate.Limit(g.cfg.RequestsPerSecond), burst)
	}

	g.guards[key] = gd
	return gd
}

func credentialHash(apiKey string) string {
	sum := sha256.Sum256([]byte(apiKey))
	return hex.EncodeToString(sum[:])
}
