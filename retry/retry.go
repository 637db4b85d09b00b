// Package retry implements the exponential-backoff transient-fault policy
// that wraps every GSM/LSM store call (spec §4.J). A fault is transient
// when it is one of a closed set of classified SQL error numbers, or a
// wait/semaphore-expired native error; everything else propagates
// immediately.
package retry

import (
	"context"
	"errors"
	"math/rand"
	"time"

	"github.com/go-sql-driver/mysql"
)

// Policy bounds how many attempts a retryable call gets and how long it
// waits between them. Delay grows exponentially from Initial, capped at
// Max, with +/-20% jitter to avoid synchronized retries across callers.
type Policy struct {
	MaxAttempts int
	Initial     time.Duration
	Max         time.Duration
}

// DefaultPolicy is the policy used when a ShardMapManager is constructed
// without an explicit one: five attempts, starting at 100ms, capped at 30s.
func DefaultPolicy() Policy {
	return Policy{MaxAttempts: 5, Initial: 100 * time.Millisecond, Max: 30 * time.Second}
}

// classifiedTransientErrors are the MySQL server error numbers the policy
// treats as transient: connection broken, deadlock, login timeout,
// throttling/resource limits, and server-busy conditions. This mirrors the
// SQL Server error classification in spec §4.J, translated to the driver
// this library actually speaks over the wire.
var classifiedTransientErrors = map[uint16]bool{
	1040: true, // ER_CON_COUNT_ERROR (too many connections)
	1042: true, // ER_BAD_HOST_ERROR
	1053: true, // ER_SERVER_SHUTDOWN
	1158: true, // ER_NET_READ_ERROR
	1159: true, // ER_NET_READ_INTERRUPTED
	1160: true, // ER_NET_ERROR_ON_WRITE
	1161: true, // ER_NET_WRITE_INTERRUPTED
	1205: true, // ER_LOCK_WAIT_TIMEOUT
	1213: true, // ER_LOCK_DEADLOCK
	1226: true, // ER_USER_LIMIT_REACHED (throttling)
	1317: true, // ER_QUERY_INTERRUPTED
}

// IsTransient classifies err as a transient fault eligible for retry.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return false
	}
	var mysqlErr *mysql.MySQLError
	if errors.As(err, &mysqlErr) {
		return classifiedTransientErrors[mysqlErr.Number]
	}
	// A driver-agnostic wait/semaphore-expired condition, reported by some
	// backends as a plain timeout rather than a numbered server error.
	var netErr interface{ Timeout() bool }
	if errors.As(err, &netErr) {
		return netErr.Timeout()
	}
	return false
}

// Do calls fn, retrying on transient errors up to p.MaxAttempts times with
// exponential backoff. The first call always happens; subsequent calls
// happen only while the fault stays transient and attempts remain. A
// non-transient error, or exhausting attempts, returns the last error.
//
// Do does not wrap DDR connections returned to callers (spec §5): it is
// meant for the internal GSM/LSM calls the manager, mapper, and operation
// engine make, not for connections handed back to application code.
func Do(ctx context.Context, p Policy, fn func(ctx context.Context) error) error {
	if p.MaxAttempts < 1 {
		p.MaxAttempts = 1
	}
	delay := p.Initial
	var lastErr error
	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}
		if !IsTransient(lastErr) || attempt == p.MaxAttempts {
			return lastErr
		}
		sleep := jitter(delay)
		timer := time.NewTimer(sleep)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
		delay *= 2
		if delay > p.Max {
			delay = p.Max
		}
	}
	return lastErr
}

func jitter(d time.Duration) time.Duration {
	if d <= 0 {
		return 0
	}
	spread := float64(d) * 0.2
	offset := (rand.Float64()*2 - 1) * spread
	return d + time.Duration(offset)
}
