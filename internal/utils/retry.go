package utils

import (
	"context"
	"fmt"
	"math"
	"time"
)

// RetryConfig 配置重试参数
type RetryConfig struct {
	// MaxRetries 最大重试次数
	MaxRetries int `yaml:"max_retries"`
	// InitialDelay 初始延迟时间
	InitialDelay time.Duration `yaml:"initial_delay"`
	// MaxDelay 最大延迟时间
	MaxDelay time.Duration `yaml:"max_delay"`
	// BackoffMultiplier 退避倍数
	BackoffMultiplier float64 `yaml:"backoff_multiplier"`
	// RetryableErrors 判断错误是否值得重试，为 nil 时全部重试
	RetryableErrors func(error) bool `yaml:"-"`
}

// DefaultRetryConfig 返回默认的重试配置
func DefaultRetryConfig() *RetryConfig {
	return &RetryConfig{
		MaxRetries:        3,
		InitialDelay:      500 * time.Millisecond,
		MaxDelay:          10 * time.Second,
		BackoffMultiplier: 2.0,
	}
}

// Delay 计算第 attempt 次重试前的延迟（指数退避）
func (c *RetryConfig) Delay(attempt int) time.Duration {
	if attempt <= 0 {
		return 0
	}
	multiplier := c.BackoffMultiplier
	if multiplier <= 0 {
		multiplier = 1
	}
	delay := float64(c.InitialDelay) * math.Pow(multiplier, float64(attempt-1))

	// 限制最大延迟
	if c.MaxDelay > 0 && delay > float64(c.MaxDelay) {
		delay = float64(c.MaxDelay)
	}
	return time.Duration(delay)
}

func (c *RetryConfig) retryable(err error) bool {
	if c.RetryableErrors == nil {
		return true
	}
	return c.RetryableErrors(err)
}

// WithRetryContext 为函数添加可取消的重试机制，延迟期间上下文取消会立即返回
func WithRetryContext(ctx context.Context, fn func(context.Context) error, config *RetryConfig) error {
	if config == nil {
		config = DefaultRetryConfig()
	}

	var lastErr error
	for attempt := 0; attempt <= config.MaxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			if lastErr == nil {
				return err
			}
			return fmt.Errorf("after %d retries: %w", attempt-1, err)
		}

		if attempt > 0 {
			// 使用可取消的sleep，支持上下文取消
			timer := time.NewTimer(config.Delay(attempt))
			select {
			case <-ctx.Done():
				timer.Stop()
				return fmt.Errorf("after %d retries: %w", attempt-1, ctx.Err())
			case <-timer.C:
			}
		}

		err := fn(ctx)
		if err == nil {
			return nil
		}

		lastErr = err
		if !config.retryable(err) {
			break
		}
	}

	return fmt.Errorf("after %d retries: %w", config.MaxRetries, lastErr)
}
