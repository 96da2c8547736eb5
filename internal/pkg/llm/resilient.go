package llm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/felixgeelhaar/fortify/bulkhead"
	"github.com/felixgeelhaar/fortify/circuitbreaker"
	"github.com/felixgeelhaar/fortify/retry"
	openai "github.com/sashabaranov/go-openai"
	"github.com/sirupsen/logrus"
	"google.golang.org/genai"
)

const consecutiveFailuresToTrip = 3

// ResilientConfig holds the resilience settings applied around a generator.
type ResilientConfig struct {
	// MaxAttempts for retryable failures (default: 3)
	MaxAttempts int

	// InitialDelay before the first retry (default: 1s)
	InitialDelay time.Duration

	// MaxConcurrent calls to the provider (default: 4)
	MaxConcurrent int

	// OpenTimeout is how long the circuit stays open (default: 60s)
	OpenTimeout time.Duration

	Log logrus.FieldLogger
}

// Resilient wraps a TextGenerator with a bulkhead, a circuit breaker and
// retry with exponential backoff.
type Resilient struct {
	generator      TextGenerator
	circuitBreaker circuitbreaker.CircuitBreaker[string]
	retrier        retry.Retry[string]
	bulkhead       bulkhead.Bulkhead[string]
	log            logrus.FieldLogger
}

func NewResilient(generator TextGenerator, cfg ResilientConfig) *Resilient {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.InitialDelay <= 0 {
		cfg.InitialDelay = time.Second
	}
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = 4
	}
	if cfg.OpenTimeout <= 0 {
		cfg.OpenTimeout = 60 * time.Second
	}
	log := cfg.Log
	if log == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		log = l
	}

	r := &Resilient{
		generator: generator,
		log:       log.WithField("provider", generator.Name()),
	}

	r.circuitBreaker = circuitbreaker.New[string](circuitbreaker.Config{
		MaxRequests: 2,
		Interval:    10 * time.Second,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(counts circuitbreaker.Counts) bool {
			return counts.ConsecutiveFailures >= consecutiveFailuresToTrip
		},
		OnStateChange: func(from, to circuitbreaker.State) {
			r.log.WithFields(logrus.Fields{
				"from": from.String(),
				"to":   to.String(),
			}).Warn("circuit breaker state change")
		},
	})

	r.retrier = retry.New[string](retry.Config{
		MaxAttempts:   cfg.MaxAttempts,
		InitialDelay:  cfg.InitialDelay,
		MaxDelay:      30 * time.Second,
		Multiplier:    2.0,
		BackoffPolicy: retry.BackoffExponential,
		Jitter:        true,
		IsRetryable:   IsRetryable,
	})

	r.bulkhead = bulkhead.New[string](bulkhead.Config{
		MaxConcurrent: cfg.MaxConcurrent,
		MaxQueue:      cfg.MaxConcurrent * 4,
		QueueTimeout:  30 * time.Second,
	})

	return r
}

func (r *Resilient) Name() string {
	return r.generator.Name()
}

func (r *Resilient) GenerateText(ctx context.Context, prompt string) (string, error) {
	operation := func(ctx context.Context) (string, error) {
		return r.bulkhead.Execute(ctx, func(ctx context.Context) (string, error) {
			return r.generator.GenerateText(ctx, prompt)
		})
	}

	text, err := r.circuitBreaker.Execute(ctx, func(ctx context.Context) (string, error) {
		return r.retrier.Do(ctx, operation)
	})
	if err != nil {
		return "", fmt.Errorf("%s: %w", r.generator.Name(), err)
	}
	return text, nil
}

var retryableCodes = []int{
	http.StatusTooManyRequests,
	http.StatusInternalServerError,
	http.StatusBadGateway,
	http.StatusServiceUnavailable,
	http.StatusGatewayTimeout,
}

// IsRetryable reports whether err is a transient provider failure.
func IsRetryable(err error) bool {
	if err == nil || errors.Is(err, ErrDisabled) {
		return false
	}
	code := StatusCode(err)
	for _, rc := range retryableCodes {
		if code == rc {
			return true
		}
	}
	return false
}

// StatusCode extracts the HTTP status of a provider error, 0 when unknown.
func StatusCode(err error) int {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode
	}
	var genaiErr genai.APIError
	if errors.As(err, &genaiErr) {
		return genaiErr.Code
	}

	msg := err.Error()
	for _, code := range retryableCodes {
		for _, pattern := range []string{"status %d", "Error %d", "status code: %d"} {
			if strings.Contains(msg, fmt.Sprintf(pattern, code)) {
				return code
			}
		}
	}
	return 0
}
