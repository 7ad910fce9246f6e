package evidence

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/vietddude/pushwatch/internal/core/domain"
)

// RetryPolicy bounds how long the live service is polled. A pending result
// is retried every Interval until Timeout elapses; transport and server
// failures are bounded separately by MaxAttempts.
type RetryPolicy struct {
	MaxAttempts int
	Interval    time.Duration
	Timeout     time.Duration
}

// DefaultRetryPolicy matches how long a scheduling run is worth waiting for.
var DefaultRetryPolicy = RetryPolicy{
	MaxAttempts: 3,
	Interval:    10 * time.Second,
	Timeout:     9 * time.Minute,
}

// ServiceSource asks the live model service to compute the selection
// payload on demand. The service answers 202 while the computation runs,
// so a fetch is a polling loop rather than a single request.
type ServiceSource struct {
	base   string
	client *http.Client
	policy RetryPolicy
	log    *slog.Logger
}

func NewServiceSource(base string, client *http.Client, policy RetryPolicy, log *slog.Logger) *ServiceSource {
	if client == nil {
		client = http.DefaultClient
	}
	if log == nil {
		log = slog.Default()
	}
	return &ServiceSource{base: base, client: client, policy: policy, log: log}
}

func (s *ServiceSource) Name() string { return "bugbug-http-service" }

func (s *ServiceSource) FetchSelection(ctx context.Context, branch, rev string) (*domain.SelectionData, error) {
	url := fmt.Sprintf("%s/push/%s/%s/schedules", s.base, branch, rev)

	start := time.Now()
	failures := 0
	for {
		data, status, err := s.get(ctx, url)
		switch {
		case err == nil && status == http.StatusOK:
			return data, nil

		case status == http.StatusNotFound:
			return nil, ErrMiss

		case status == http.StatusAccepted:
			// Still computing. The elapsed check runs after the sleep so
			// the budget is spent waiting, not cut short mid-interval.
			if err := sleep(ctx, s.policy.Interval); err != nil {
				return nil, err
			}
			if time.Since(start) >= s.policy.Timeout {
				return nil, &domain.BugbugTimeoutError{}
			}

		default:
			if err == nil {
				err = fmt.Errorf("unexpected status %d", status)
			}
			failures++
			if failures >= s.policy.MaxAttempts {
				return nil, fmt.Errorf("service unavailable after %d attempts: %w", failures, err)
			}
			s.log.Warn("selection service request failed, retrying",
				"attempt", failures, "error", err)
			if err := sleep(ctx, s.policy.Interval); err != nil {
				return nil, err
			}
		}
	}
}

func (s *ServiceSource) get(ctx context.Context, url string) (*domain.SelectionData, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, 0, err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return nil, resp.StatusCode, nil
	}
	var data domain.SelectionData
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return nil, resp.StatusCode, fmt.Errorf("decode selection payload: %w", err)
	}
	return &data, resp.StatusCode, nil
}

func sleep(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}
