package core

import (
	"fmt"
	"time"
)

// RetryPolicy is the immutable per-run orchestration configuration.
type RetryPolicy struct {
	// MaxRetries bounds how many retry cycles a run may perform.
	MaxRetries int
	// SuccessRateThreshold is the fraction of successful tasks, in [0,1],
	// a batch needs before the run proceeds.
	SuccessRateThreshold float64
	// MaxConcurrency bounds how many tasks execute simultaneously.
	MaxConcurrency int
	// TaskTimeout is the per-task deadline.
	TaskTimeout time.Duration
	// RunTimeout is the whole-run deadline. Zero means unbounded.
	RunTimeout time.Duration
}

// DefaultRetryPolicy returns the default orchestration policy.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries:           2,
		SuccessRateThreshold: 0.6,
		MaxConcurrency:       2,
		TaskTimeout:          2 * time.Minute,
		RunTimeout:           10 * time.Minute,
	}
}

// Validate checks the policy for nonsensical values.
func (p RetryPolicy) Validate() error {
	if p.MaxRetries < 0 {
		return ErrValidation(CodeInvalidConfig, fmt.Sprintf("max_retries must be >= 0, got %d", p.MaxRetries))
	}
	if p.SuccessRateThreshold < 0 || p.SuccessRateThreshold > 1 {
		return ErrValidation(CodeInvalidConfig, fmt.Sprintf("success_rate_threshold must be in [0,1], got %v", p.SuccessRateThreshold))
	}
	if p.MaxConcurrency < 1 {
		return ErrValidation(CodeInvalidConfig, fmt.Sprintf("max_concurrency must be >= 1, got %d", p.MaxConcurrency))
	}
	if p.TaskTimeout <= 0 {
		return ErrValidation(CodeInvalidConfig, "task_timeout must be positive")
	}
	if p.RunTimeout < 0 {
		return ErrValidation(CodeInvalidConfig, "run_timeout must be >= 0")
	}
	return nil
}
