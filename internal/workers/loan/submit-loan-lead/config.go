// internal/workers/loan/submit-loan-lead/config.go
package submitloanlead

import (
	"time"

	"loangenius/internal/common/config"
)

type Config struct {
	Timeout time.Duration
}

// LoadConfig reads the worker section; a zero timeout falls back to 120s.
func LoadConfig(wc config.WorkerConfig) *Config {
	timeout := config.GetDuration(wc.Timeout)
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &Config{Timeout: timeout}
}
