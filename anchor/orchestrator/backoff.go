package orchestrator

import (
	"context"
	"strings"
	"time"

	"github.com/kasparena/anchorcore/anchorerrors"
)

// sendClassification is the taxonomy spec.md §4.5 "Error classification"
// assigns to a failed send by matching its message text.
type sendClassification int

const (
	classRetryable sendClassification = iota
	classMempoolConflict
	classInsufficientFunds
	classTerminal
)

// classifySendError inspects err's message for the substrings spec.md §4.5
// names, grounded on util/distributor/Distributor.go's errors.Is(err,
// errors.ErrTxInvalid) short-circuit for a non-retryable send failure.
func classifySendError(err error) sendClassification {
	msg := strings.ToLower(err.Error())

	switch {
	case strings.Contains(msg, "already spent"), strings.Contains(msg, "mempool"), strings.Contains(msg, "double spend"):
		return classMempoolConflict
	case strings.Contains(msg, "insufficient"), strings.Contains(msg, "not enough"):
		return classInsufficientFunds
	default:
		return classRetryable
	}
}

// backoffPolicy is the exponential-backoff schedule of spec.md §4.5:
// base * multiplier^(attempt-1), capped at max.
type backoffPolicy struct {
	base       time.Duration
	multiplier float64
	max        time.Duration
	attempts   int
}

func (b backoffPolicy) delayFor(attempt int) time.Duration {
	d := float64(b.base)
	for i := 1; i < attempt; i++ {
		d *= b.multiplier
	}

	capped := time.Duration(d)
	if capped > b.max {
		capped = b.max
	}
	return capped
}

// withRetry runs fn up to policy.attempts times, sleeping policy.delayFor
// between attempts, stopping immediately when classify marks the error
// terminal (spec.md §4.5's funds-error early exit). Each attempt runs under
// its own perAttempt deadline.
func withRetry(ctx context.Context, policy backoffPolicy, perAttempt time.Duration, fn func(ctx context.Context) error) error {
	var lastErr error

	for attempt := 1; attempt <= policy.attempts; attempt++ {
		attemptCtx, cancel := context.WithTimeout(ctx, perAttempt)
		err := fn(attemptCtx)
		cancel()

		if err == nil {
			return nil
		}

		lastErr = err

		if classifySendError(err) == classInsufficientFunds {
			return anchorerrors.New(anchorerrors.CodeInsufficientFunds, "terminal send failure", err)
		}

		if attempt == policy.attempts {
			break
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(policy.delayFor(attempt)):
		}
	}

	return anchorerrors.New(anchorerrors.CodeSendUnknown, "exhausted %d attempts", policy.attempts, lastErr)
}
