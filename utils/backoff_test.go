// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

package utils

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var testPolicy = RetryPolicy{
	InitialInterval: 10 * time.Millisecond,
	MaxInterval:     20 * time.Millisecond,
	Timeout:         2 * time.Second,
}

func TestWithRetriesTimeout(t *testing.T) {
	t.Run("NotEnoughRetry", func(t *testing.T) {
		retryable := newMockRetryableFn(1000)
		policy := testPolicy
		policy.Timeout = 50 * time.Millisecond
		err := WithRetriesTimeout(context.Background(), zap.NewNop(), policy,
			func() (err error) {
				_, err = retryable.Run()
				return err
			},
			nil,
		)
		require.Error(t, err)
	})
	t.Run("EnoughRetry", func(t *testing.T) {
		retryable := newMockRetryableFn(2)
		var res bool
		err := WithRetriesTimeout(context.Background(), zap.NewNop(), testPolicy,
			func() (err error) {
				res, err = retryable.Run()
				return err
			},
			nil,
		)
		require.NoError(t, err)
		require.True(t, res)
		require.Equal(t, uint64(2), retryable.counter)
	})
	t.Run("Permanent", func(t *testing.T) {
		errFatal := errors.New("fatal")
		calls := 0
		err := WithRetriesTimeout(context.Background(), zap.NewNop(), testPolicy,
			func() error {
				calls++
				return errFatal
			},
			func(err error) bool { return !errors.Is(err, errFatal) },
		)
		require.ErrorIs(t, err, errFatal)
		require.Equal(t, 1, calls)
	})
	t.Run("Cancelled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		retryable := newMockRetryableFn(1000)
		err := WithRetriesTimeout(ctx, zap.NewNop(), testPolicy,
			func() (err error) {
				_, err = retryable.Run()
				return err
			},
			nil,
		)
		require.Error(t, err)
		require.LessOrEqual(t, retryable.counter, uint64(1))
	})
}

type mockRetryableFn struct {
	counter uint64
	trigger uint64
}

func newMockRetryableFn(trigger uint64) *mockRetryableFn {
	return &mockRetryableFn{
		counter: 0,
		trigger: trigger,
	}
}

func (m *mockRetryableFn) Run() (bool, error) {
	if m.counter >= m.trigger {
		return true, nil
	}
	m.counter++
	return false, errors.New("error")
}
