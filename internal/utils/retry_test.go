package utils

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestRetryConfig_Delay(t *testing.T) {
	config := &RetryConfig{
		InitialDelay:      100 * time.Millisecond,
		MaxDelay:          350 * time.Millisecond,
		BackoffMultiplier: 2.0,
	}

	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{0, 0},
		{1, 100 * time.Millisecond},
		{2, 200 * time.Millisecond},
		{3, 350 * time.Millisecond}, // 400ms 被截断
	}
	for _, tt := range tests {
		if got := config.Delay(tt.attempt); got != tt.want {
			t.Errorf("Delay(%d) = %v, want %v", tt.attempt, got, tt.want)
		}
	}
}

func TestWithRetryContext_SucceedsAfterRetries(t *testing.T) {
	// 记录调用次数
	callCount := 0

	err := WithRetryContext(context.Background(), func(context.Context) error {
		callCount++
		if callCount <= 2 {
			return fmt.Errorf("temporary error")
		}
		return nil
	}, &RetryConfig{
		MaxRetries:        3,
		InitialDelay:      10 * time.Millisecond,
		MaxDelay:          100 * time.Millisecond,
		BackoffMultiplier: 2.0,
	})

	if err != nil {
		t.Fatalf("Expected success after retries, got error: %v", err)
	}

	if callCount != 3 {
		t.Errorf("Expected 3 calls, got %d", callCount)
	}
}

func TestWithRetryContext_FailAfterMaxRetries(t *testing.T) {
	callCount := 0
	sentinel := errors.New("host unreachable")

	err := WithRetryContext(context.Background(), func(context.Context) error {
		callCount++
		return sentinel
	}, &RetryConfig{
		MaxRetries:        2,
		InitialDelay:      time.Millisecond,
		MaxDelay:          5 * time.Millisecond,
		BackoffMultiplier: 2.0,
	})

	if !errors.Is(err, sentinel) {
		t.Fatalf("Expected wrapped sentinel error, got %v", err)
	}
	if err.Error() != "after 2 retries: host unreachable" {
		t.Errorf("Unexpected error message %q", err.Error())
	}
	if callCount != 3 {
		t.Errorf("Expected 3 calls, got %d", callCount)
	}
}

func TestWithRetryContext_NonRetryableError(t *testing.T) {
	callCount := 0
	fatal := errors.New("bad handshake")

	err := WithRetryContext(context.Background(), func(context.Context) error {
		callCount++
		return fatal
	}, &RetryConfig{
		MaxRetries:        5,
		InitialDelay:      time.Millisecond,
		BackoffMultiplier: 2.0,
		RetryableErrors: func(err error) bool {
			return !errors.Is(err, fatal)
		},
	})

	if !errors.Is(err, fatal) {
		t.Fatalf("Expected fatal error, got %v", err)
	}
	if callCount != 1 {
		t.Errorf("Expected 1 call for non-retryable error, got %d", callCount)
	}
}
