package orchestrator

import "fmt"

// State names the workflow states. Transitions are logged and audited so a
// reviewer can replay exactly how a run moved.
type State string

const (
	StateAdmitted   State = "admitted"
	StateAssessing  State = "assessing_parallel"
	StateJoined     State = "joined"
	StateRiskGating State = "risk_gating"
	StateDecided    State = "decided"
	StateFailed     State = "failed"
)

// FailureCode classifies terminal failures.
type FailureCode string

const (
	// FailureContractViolation: a collaborator payload broke its schema.
	// Never retried; requires operator attention.
	FailureContractViolation FailureCode = "contract_violation"
	// FailurePartialAssessment: one assessment succeeded or was cut short
	// while the other exhausted its retry budget. The pipeline fails closed
	// rather than decide on partial data.
	FailurePartialAssessment FailureCode = "partial_assessment"
	// FailureCancelled: the caller cancelled before a decision.
	FailureCancelled FailureCode = "cancelled"
	// FailureRiskGateFault: the gate rejected its inputs. Data-integrity
	// fault, fatal to the run.
	FailureRiskGateFault FailureCode = "risk_gate_fault"
	// FailureInternal covers store bookkeeping faults that should not happen.
	FailureInternal FailureCode = "internal"
)

// FailureReason is the structured reason carried by a terminal Failed state.
type FailureReason struct {
	Code    FailureCode `json:"code"`
	Stage   string      `json:"stage,omitempty"`
	Message string      `json:"message"`
}

// FailedError surfaces a failed run to the caller. Callers always get either
// a decision or one of these, never a raw collaborator error.
type FailedError struct {
	Reason FailureReason
}

func (e *FailedError) Error() string {
	if e.Reason.Stage != "" {
		return fmt.Sprintf("pipeline failed (%s, stage=%s): %s", e.Reason.Code, e.Reason.Stage, e.Reason.Message)
	}
	return fmt.Sprintf("pipeline failed (%s): %s", e.Reason.Code, e.Reason.Message)
}
