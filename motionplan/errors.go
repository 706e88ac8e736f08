package motionplan

import (
	"fmt"

	"github.com/pkg/errors"
)

// FailureReason says why planning failed.
type FailureReason string

// The recoverable planning failures.
const (
	InvalidStart        FailureReason = "invalid start"
	InvalidGoal         FailureReason = "invalid goal"
	Exhausted           FailureReason = "iterations exhausted"
	Timeout             FailureReason = "timeout"
	NoFrontierReachable FailureReason = "no frontier reachable"
)

// PlanFailure is returned for every failure the caller can recover from by choosing another
// goal or trying again later.
type PlanFailure struct {
	Reason     FailureReason
	Iterations int
	Err        error
}

// NewPlanFailure creates a failure with no underlying cause.
func NewPlanFailure(reason FailureReason) *PlanFailure {
	return &PlanFailure{Reason: reason}
}

func (pf *PlanFailure) Error() string {
	msg := fmt.Sprintf("motion planner failed: %s", pf.Reason)
	if pf.Iterations > 0 {
		msg = fmt.Sprintf("%s after %d iterations", msg, pf.Iterations)
	}
	if pf.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, pf.Err)
	}
	return msg
}

func (pf *PlanFailure) Unwrap() error {
	return pf.Err
}

// IsPlanFailure reports whether err is a PlanFailure with the given reason.
func IsPlanFailure(err error, reason FailureReason) bool {
	var pf *PlanFailure
	return errors.As(err, &pf) && pf.Reason == reason
}
