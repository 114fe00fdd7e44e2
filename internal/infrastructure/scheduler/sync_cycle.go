package scheduler

import (
	"time"

	"github.com/google/uuid"

	appintegration "github.com/erp/ordersync/internal/application/integration"
	"github.com/erp/ordersync/internal/domain/integration"
)

// ---------------------------------------------------------------------------
// Sync Cycle Types
// ---------------------------------------------------------------------------

// SyncCycleStatus represents the outcome of one pass over all syncable accounts
type SyncCycleStatus string

const (
	SyncCycleStatusRunning SyncCycleStatus = "RUNNING"
	SyncCycleStatusSuccess SyncCycleStatus = "SUCCESS"
	SyncCycleStatusPartial SyncCycleStatus = "PARTIAL"
	SyncCycleStatusFailed  SyncCycleStatus = "FAILED"
)

// SyncCycle records one scheduler pass
type SyncCycle struct {
	ID          uuid.UUID
	Status      SyncCycleStatus
	Error       string
	StartedAt   time.Time
	CompletedAt *time.Time

	// Account counters
	Accounts        int
	FailedAccounts  int
	AuthFailures    int
	PartialAccounts int

	// Order counters, summed over accounts
	Orders       int
	Movements    int
	SkippedItems int
	Malformed    int
	FailedOrders int
}

// NewSyncCycle creates a running cycle
func NewSyncCycle(startedAt time.Time) *SyncCycle {
	return &SyncCycle{
		ID:        uuid.New(),
		Status:    SyncCycleStatusRunning,
		StartedAt: startedAt,
	}
}

// RecordAccount adds one account's result to the cycle counters.
// result may be nil when the account failed before fetching.
func (c *SyncCycle) RecordAccount(result *appintegration.AccountSyncResult, err error) {
	c.Accounts++
	if err != nil {
		c.FailedAccounts++
		if integration.IsAuthError(err) {
			c.AuthFailures++
		}
	}
	if result == nil {
		return
	}
	if result.Partial {
		c.PartialAccounts++
	}
	c.Orders += result.Summary.Orders
	c.Movements += result.Summary.MovementsCreated
	c.SkippedItems += result.Summary.SkippedItems()
	c.Malformed += result.Summary.Malformed
	c.FailedOrders += result.Summary.Failed
}

// Complete closes the cycle; the status follows the failed-account count
func (c *SyncCycle) Complete(at time.Time) {
	c.CompletedAt = &at
	switch {
	case c.FailedAccounts == 0:
		c.Status = SyncCycleStatusSuccess
	case c.FailedAccounts < c.Accounts:
		c.Status = SyncCycleStatusPartial
	default:
		c.Status = SyncCycleStatusFailed
	}
}

// Fail closes the cycle after an error that stopped it early
func (c *SyncCycle) Fail(at time.Time, err string) {
	c.CompletedAt = &at
	c.Status = SyncCycleStatusFailed
	c.Error = err
}

// Duration returns how long the cycle ran, or zero while it is still running
func (c *SyncCycle) Duration() time.Duration {
	if c.CompletedAt == nil {
		return 0
	}
	return c.CompletedAt.Sub(c.StartedAt)
}
