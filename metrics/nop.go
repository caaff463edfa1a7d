package metrics

import (
	"time"
)

// NopMetrics is a no-op implementation of the Metrics interface.
// Use this when metrics collection is disabled.
type NopMetrics struct{}

// NewNopMetrics creates a new NopMetrics instance.
func NewNopMetrics() *NopMetrics {
	return &NopMetrics{}
}

// Block metrics (no-op)

func (m *NopMetrics) SetHeadBlockNum(num uint32)                {}
func (m *NopMetrics) SetIrreversibleBlockNum(num uint32)        {}
func (m *NopMetrics) IncBlocksApplied()                         {}
func (m *NopMetrics) IncBlocksProduced()                        {}
func (m *NopMetrics) IncForkSwitches()                          {}
func (m *NopMetrics) ObserveBlockApplyDuration(d time.Duration) {}
func (m *NopMetrics) SetBlockSize(size int)                     {}

// Transaction metrics (no-op)

func (m *NopMetrics) IncTxsApplied()               {}
func (m *NopMetrics) IncTxsRejected(reason string) {}
func (m *NopMetrics) SetPendingTxs(count int)      {}

// Market metrics (no-op)

func (m *NopMetrics) IncOrdersFilled()     {}
func (m *NopMetrics) IncOrdersCancelled()  {}
func (m *NopMetrics) IncForceSettlements() {}

// Maintenance metrics (no-op)

func (m *NopMetrics) ObserveMaintenanceDuration(task string, d time.Duration) {}
func (m *NopMetrics) SetWitnessParticipation(rate float64)                    {}

// State metrics (no-op)

func (m *NopMetrics) SetStateRevision(rev int64)  {}
func (m *NopMetrics) SetUndoStackDepth(depth int) {}

var _ Metrics = (*NopMetrics)(nil)
