// internal/common/health/checker.go
package health

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	httpclient "loangenius/internal/common/http"
	"loangenius/internal/common/logger"
)

const (
	CodeOK      = "OK"
	CodeTimeout = "TIMEOUT"
	CodeError   = "ERROR"
)

// Target is one backend whose health endpoint is probed.
type Target struct {
	Name    string
	BaseURL string
}

// Status is the outcome of a single probe.
type Status struct {
	Name    string
	Healthy bool
	Code    string // OK, HTTP <n>, TIMEOUT or ERROR
	Error   string
	Latency time.Duration
}

// Message is the sentence shown to the applicant for s.
func (s Status) Message() string {
	if s.Healthy {
		return "Server is responding normally."
	}

	detail := s.Error
	if detail == "" {
		detail = "Unknown error"
	}

	switch s.Code {
	case CodeTimeout:
		return "Server is not responding. Please try again in a few moments."
	case "HTTP 502":
		return "Server is temporarily unavailable. Please try again later."
	case "HTTP 503":
		return "Service is under maintenance. Please try again later."
	case "HTTP 504":
		return "Server is taking too long to respond. Please try again."
	case CodeError:
		return "Connection error: " + detail
	default:
		return fmt.Sprintf("Server error (%s): %s", s.Code, detail)
	}
}

// Checker probes every target concurrently.
type Checker struct {
	targets []Target
	path    string
	timeout time.Duration
	client  *httpclient.Client
	logger  logger.Logger
}

func NewChecker(targets []Target, path string, timeout time.Duration, log logger.Logger) *Checker {
	if path == "" {
		path = "/health"
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	return &Checker{
		targets: targets,
		path:    path,
		timeout: timeout,
		client:  httpclient.NewClientWith(&http.Client{}),
		logger:  log,
	}
}

// Check returns one Status per target, in target order.
func (c *Checker) Check(ctx context.Context) []Status {
	results := make([]Status, len(c.targets))

	var wg sync.WaitGroup
	for i, target := range c.targets {
		wg.Add(1)
		go func(i int, target Target) {
			defer wg.Done()
			results[i] = c.probe(ctx, target)
		}(i, target)
	}
	wg.Wait()

	for _, st := range results {
		fields := map[string]interface{}{
			"server":    st.Name,
			"status":    st.Code,
			"latencyMs": st.Latency.Milliseconds(),
		}
		if st.Healthy {
			c.logger.Info("Health check passed", fields)
		} else {
			fields["error"] = st.Error
			c.logger.Warn("Health check failed", fields)
		}
	}
	return results
}

func (c *Checker) probe(ctx context.Context, target Target) Status {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	status := Status{Name: target.Name}

	req, err := http.NewRequest(http.MethodGet, strings.TrimSuffix(target.BaseURL, "/")+c.path, nil)
	if err != nil {
		status.Code = CodeError
		status.Error = err.Error()
		return status
	}

	resp, err := c.client.DoWithContext(ctx, req)
	status.Latency = time.Since(start)
	if err != nil {
		if stderrors.Is(err, context.DeadlineExceeded) {
			status.Code = CodeTimeout
			status.Error = fmt.Sprintf("Request timed out after %d seconds", int(c.timeout.Seconds()))
			return status
		}
		status.Code = CodeError
		status.Error = err.Error()
		return status
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		status.Healthy = true
		status.Code = CodeOK
		return status
	}

	status.Code = fmt.Sprintf("HTTP %d", resp.StatusCode)
	status.Error = fmt.Sprintf("Server returned %d %s", resp.StatusCode, http.StatusText(resp.StatusCode))
	return status
}

// Healthy reports whether every status is healthy.
func Healthy(statuses []Status) bool {
	for _, s := range statuses {
		if !s.Healthy {
			return false
		}
	}
	return true
}
