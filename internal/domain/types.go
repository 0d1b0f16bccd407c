package domain

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Tier partitions errands across independent daemon processes. It is an
// isolation mechanism, not a priority ordering: each tier runs its own
// scheduler and executor and never touches another tier's queue.
type Tier string

const (
	TierShort  Tier = "SHORT"
	TierMedium Tier = "MEDIUM"
	TierLong   Tier = "LONG"
)

// Tiers lists all tiers in canonical order.
var Tiers = []Tier{TierShort, TierMedium, TierLong}

func (t Tier) Valid() bool {
	switch t {
	case TierShort, TierMedium, TierLong:
		return true
	}
	return false
}

// ParseTier accepts a tier name in any case.
func ParseTier(s string) (Tier, error) {
	t := Tier(strings.ToUpper(strings.TrimSpace(s)))
	if !t.Valid() {
		return "", fmt.Errorf("%w: unknown tier %q", ErrConfiguration, s)
	}
	return t, nil
}

// Callable is a self-contained unit of work. The context carries
// cancellation and, when the errand has a timeout, a deadline.
type Callable func(ctx context.Context) error

// ErrandDefinition is created once at registration time and owned by the
// registry for the process lifetime.
type ErrandDefinition struct {
	ID       string
	Name     string
	CronExpr string
	Tier     Tier
	Run      Callable
	Timeout  time.Duration // 0 means no execution deadline
}

// QueueEntry is one pending firing of an errand. Entries live in memory
// only, between enqueue and the start of execution.
type QueueEntry struct {
	RunID      string
	ErrandID   string
	DueMinute  time.Time
	EnqueuedAt time.Time
}

type Status string

const (
	StatusSuccess Status = "succeeded"
	StatusFailure Status = "failed"
)

// ExecutionOutcome records one finished run, for logs and the status API.
// Scheduling decisions never depend on it.
type ExecutionOutcome struct {
	RunID      string    `json:"run_id"`
	ErrandID   string    `json:"errand_id"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Status     Status    `json:"status"`
	Error      string    `json:"error,omitempty"` // set iff Status == StatusFailure
}

var (
	ErrInvalidCron     = errors.New("invalid cron expression")
	ErrDuplicateErrand = errors.New("duplicate errand id")
	ErrConfiguration   = errors.New("invalid configuration")
	ErrUnknownErrand   = errors.New("unknown errand id")
)
