// Package croneval evaluates five-field cron expressions at minute
// resolution. All functions are pure and safe for concurrent use.
package croneval

import (
	"fmt"
	"time"

	"github.com/adhocore/gronx"
	"github.com/robfig/cron/v3"

	"errands/internal/domain"
)

// Validate checks an expression against both engines used at runtime, so a
// bad expression surfaces at registration time and never at evaluation time.
func Validate(expr string) error {
	if _, err := cron.ParseStandard(expr); err != nil {
		return fmt.Errorf("%w: %q: %v", domain.ErrInvalidCron, expr, err)
	}
	if !gronx.IsValid(expr) {
		return fmt.Errorf("%w: %q", domain.ErrInvalidCron, expr)
	}
	return nil
}

// Matches reports whether expr fires during the minute containing t.
// Standard cron day-field semantics apply: when both day-of-month and
// day-of-week are restricted, either one matching is enough.
func Matches(expr string, t time.Time) (bool, error) {
	// gronx.Gronx stores the reference instant on itself during IsDue, so a
	// shared instance is not goroutine-safe; construct one per call.
	gron := gronx.New()
	due, err := gron.IsDue(expr, t.Truncate(time.Minute))
	if err != nil {
		return false, fmt.Errorf("%w: %q: %v", domain.ErrInvalidCron, expr, err)
	}
	return due, nil
}

// Next returns the first instant strictly after from at which expr fires.
func Next(expr string, from time.Time) (time.Time, error) {
	sched, err := cron.ParseStandard(expr)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q: %v", domain.ErrInvalidCron, expr, err)
	}
	return sched.Next(from), nil
}
