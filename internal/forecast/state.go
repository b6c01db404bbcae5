package forecast

import "github.com/Alias1177/YieldPredictor/models"

// Status is the lifecycle stage of the most recent prediction attempt
type Status int

const (
	StatusIdle Status = iota
	StatusPending
	StatusSucceeded
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusPending:
		return "pending"
	case StatusSucceeded:
		return "succeeded"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// State is a snapshot of the orchestrator.
// Result is set only when Succeeded, Err only when Failed.
type State struct {
	Status  Status
	Backend string
	Result  *models.PredictionResponse
	Err     *models.PredictionError
	Seq     uint64 // sequence number of the attempt that produced this state
}
