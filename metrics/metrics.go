// Package metrics defines the instrumentation interface for the chain
// and its Prometheus and no-op implementations.
package metrics

import (
	"time"
)

// Metrics collects chain instrumentation. Implementations must be safe
// for concurrent use.
type Metrics interface {
	// Block metrics
	SetHeadBlockNum(num uint32)
	SetIrreversibleBlockNum(num uint32)
	IncBlocksApplied()
	IncBlocksProduced()
	IncForkSwitches()
	ObserveBlockApplyDuration(d time.Duration)
	SetBlockSize(size int)

	// Transaction metrics
	IncTxsApplied()
	IncTxsRejected(reason string)
	SetPendingTxs(count int)

	// Market metrics
	IncOrdersFilled()
	IncOrdersCancelled()
	IncForceSettlements()

	// Maintenance metrics
	ObserveMaintenanceDuration(task string, d time.Duration)
	SetWitnessParticipation(rate float64)

	// State metrics
	SetStateRevision(rev int64)
	SetUndoStackDepth(depth int)
}
