// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

package utils

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
)

// RetryPolicy shapes the exponential backoff used by WithRetriesTimeout
type RetryPolicy struct {
	InitialInterval time.Duration
	MaxInterval     time.Duration
	Timeout         time.Duration
}

// DefaultRetryPolicy retries for up to a minute
var DefaultRetryPolicy = RetryPolicy{
	InitialInterval: backoff.DefaultInitialInterval,
	MaxInterval:     backoff.DefaultMaxInterval,
	Timeout:         time.Minute,
}

// WithRetriesTimeout uses an exponential backoff to run the operation until it
// succeeds, ctx is done, or the policy's timeout has been reached. Errors
// for which retryable returns false stop the loop at once. A nil retryable
// retries every error.
func WithRetriesTimeout(
	ctx context.Context,
	logger *zap.Logger,
	policy RetryPolicy,
	operation func() error,
	retryable func(error) bool,
) error {
	expBackOff := backoff.NewExponentialBackOff(
		backoff.WithInitialInterval(policy.InitialInterval),
		backoff.WithMaxInterval(policy.MaxInterval),
		backoff.WithMaxElapsedTime(policy.Timeout),
	)
	op := func() error {
		err := operation()
		if err != nil && retryable != nil && !retryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}
	notify := func(err error, next time.Duration) {
		logger.Warn("operation failed, retrying...",
			zap.Duration("next", next),
			zap.Error(err),
		)
	}
	return backoff.RetryNotify(op, backoff.WithContext(expBackOff, ctx), notify)
}
