// Copyright 2026 Teradata
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
package transport

import (
	"context"
	"math/rand"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// RetryPolicyKind selects how delay grows between attempts.
type RetryPolicyKind int

const (
	RetryConstant RetryPolicyKind = iota
	RetryLinear
	RetryExponential
)

// RetryPolicy configures the retry wrapper's attempt count and delay curve.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	Jitter      bool
	Kind        RetryPolicyKind
}

// DefaultRetryPolicy mirrors commonly-seen defaults in the corpus: a handful
// of exponential attempts capped at a sane ceiling.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 5,
		BaseDelay:   200 * time.Millisecond,
		MaxDelay:    30 * time.Second,
		Jitter:      true,
		Kind:        RetryExponential,
	}
}

// delay computes the backoff duration for the given 1-based attempt number,
// before jitter and the max-delay cap are applied.
func (p RetryPolicy) delay(attempt int) time.Duration {
	switch p.Kind {
	case RetryLinear:
		return p.BaseDelay * time.Duration(attempt)
	case RetryExponential:
		d := p.BaseDelay
		for i := 1; i < attempt; i++ {
			d *= 2
			if d > p.MaxDelay {
				return p.MaxDelay
			}
		}
		return d
	default: // RetryConstant
		return p.BaseDelay
	}
}

// backOff builds a backoff.BackOff implementing this policy, letting the
// cenkalti/backoff/v5 retry driver own attempt counting and context
// cancellation while this type keeps the delay-curve math spec-exact and
// independently testable.
func (p RetryPolicy) backOff() backoff.BackOff {
	return &policyBackOff{policy: p, attempt: 0}
}

type policyBackOff struct {
	policy  RetryPolicy
	attempt int
}

func (b *policyBackOff) NextBackOff() time.Duration {
	b.attempt++
	d := b.policy.delay(b.attempt)
	if d > b.policy.MaxDelay {
		d = b.policy.MaxDelay
	}
	if b.policy.Jitter {
		d = applyJitter(d)
	}
	return d
}

func applyJitter(d time.Duration) time.Duration {
	if d <= 0 {
		return d
	}
	// Full jitter: uniform in [0, d].
	return time.Duration(rand.Int63n(int64(d) + 1))
}

// Wait blocks for the delay associated with the given 1-based attempt
// number (jittered if configured), returning early with ctx.Err() if the
// context is cancelled first. Used by long-lived loops (e.g. the SSE
// reconnect loop) that need to pace retries without reframing the retried
// operation as a single func(ctx) error the way WithRetry expects.
func (p RetryPolicy) Wait(ctx context.Context, attempt int) error {
	d := p.delay(attempt)
	if d > p.MaxDelay {
		d = p.MaxDelay
	}
	if p.Jitter {
		d = applyJitter(d)
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// WithRetry runs op up to policy.MaxAttempts times, applying the configured
// delay between attempts, stopping early on success or context cancellation.
// It returns the last error if every attempt fails.
func WithRetry(ctx context.Context, policy RetryPolicy, op func(ctx context.Context) error) error {
	wrapped := func() (struct{}, error) {
		return struct{}{}, op(ctx)
	}
	_, err := backoff.Retry(ctx, wrapped,
		backoff.WithBackOff(policy.backOff()),
		backoff.WithMaxTries(uint(maxInt(policy.MaxAttempts, 1))),
	)
	return err
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
