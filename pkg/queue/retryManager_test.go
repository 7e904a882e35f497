package queue

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// TestShouldRetry тестирует решение о повторе задачи
func TestShouldRetry(t *testing.T) {
	manager := NewRetryManager(3, time.Second)

	tests := []struct {
		name        string
		attempts    int
		maxRetries  int
		err         error
		shouldRetry bool
	}{
		{
			name:        "transient error retries",
			attempts:    0,
			maxRetries:  3,
			err:         errors.New("connection refused"),
			shouldRetry: true,
		},
		{
			name:        "attempts exhausted",
			attempts:    3,
			maxRetries:  3,
			err:         errors.New("connection refused"),
			shouldRetry: false,
		},
		{
			name:        "not found never retries",
			attempts:    0,
			maxRetries:  3,
			err:         errors.New("failed to expire purchase x: purchase not found"),
			shouldRetry: false,
		},
		{
			name:        "invalid task never retries",
			attempts:    1,
			maxRetries:  3,
			err:         errors.New("invalid expire_purchase task: missing purchase_id"),
			shouldRetry: false,
		},
		{
			name:        "domain rejection never retries",
			attempts:    0,
			maxRetries:  3,
			err:         errors.New("purchase p: purchase is not pending"),
			shouldRetry: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			task := &Task{Attempts: tt.attempts, MaxRetries: tt.maxRetries}

			retry, delay := manager.ShouldRetry(task, tt.err)
			assert.Equal(t, tt.shouldRetry, retry)
			if retry {
				assert.Greater(t, delay, time.Duration(0))
			} else {
				assert.Equal(t, time.Duration(0), delay)
			}
		})
	}
}

// TestCalculateBackoff тестирует экспоненциальную задержку с джиттером
func TestCalculateBackoff(t *testing.T) {
	base := time.Second
	manager := NewRetryManager(5, base)

	assert.Equal(t, base, manager.calculateBackoff(0))

	// с джиттером ±25% задержка остаётся в окрестности base * 2^(n-1)
	for attempt := 1; attempt <= 5; attempt++ {
		expected := base * time.Duration(1<<(attempt-1))
		if expected > 16*base {
			expected = 16 * base
		}

		for i := 0; i < 50; i++ {
			delay := manager.calculateBackoff(attempt)
			assert.GreaterOrEqual(t, delay, expected/2)
			assert.LessOrEqual(t, delay, 16*base)
		}
	}
}
