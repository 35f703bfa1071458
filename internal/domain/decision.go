package domain

import (
	"time"
)

// Outcome is the decision reached for an application.
type Outcome string

const (
	OutcomeApproved Outcome = "Approved"
	OutcomeReview   Outcome = "Review"
	OutcomeRejected Outcome = "Rejected"
)

// Valid reports whether o is one of the three known outcomes.
func (o Outcome) Valid() bool {
	switch o {
	case OutcomeApproved, OutcomeReview, OutcomeRejected:
		return true
	}
	return false
}

// DecisionResult is the output of the decision engine.
type DecisionResult struct {
	CreditScore int      `json:"credit_score"`
	Decision    Outcome  `json:"decision"`
	Probability float64  `json:"probability"`
	LoanAmount  *float64 `json:"loan_amount,omitempty"`
	Message     string   `json:"message"`

	// Rule table trace
	MatchedRule string `json:"matched_rule,omitempty"`
	Overridden  bool   `json:"override_applied,omitempty"`
}

// Decision record status values.
const (
	DecisionPending   = "pending"
	DecisionCompleted = "completed"
	DecisionFailed    = "failed"
)

// Decision is the cached record of one decisioning request.
type Decision struct {
	ID              string          `json:"id"`
	Status          string          `json:"status"`
	Result          *DecisionResult `json:"result,omitempty"`
	RequestedAmount float64         `json:"requested_amount,omitempty"`
	SubmittedBy     string          `json:"submitted_by,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	CompletedAt     *time.Time      `json:"completed_at,omitempty"`

	// Offer used if an officer approves a Review decision
	ProspectiveAmount *float64 `json:"prospective_amount,omitempty"`

	// Set when status is failed
	ErrorKind    string `json:"error_kind,omitempty"`
	ErrorMessage string `json:"error,omitempty"`

	// Set by an officer override
	OriginalDecision Outcome    `json:"original_decision,omitempty"`
	OverriddenBy     string     `json:"overridden_by,omitempty"`
	OverriddenAt     *time.Time `json:"overridden_at,omitempty"`
	OverrideReason   string     `json:"override_reason,omitempty"`
}

// DecisionEvent is published for every issued or overridden decision.
type DecisionEvent struct {
	Type        string    `json:"type"`
	DecisionID  string    `json:"decision_id"`
	Decision    Outcome   `json:"decision"`
	CreditScore int       `json:"credit_score"`
	Probability float64   `json:"probability"`
	LoanAmount  *float64  `json:"loan_amount,omitempty"`
	Actor       string    `json:"actor,omitempty"`
	OccurredAt  time.Time `json:"occurred_at"`
}

// Decision event types.
const (
	EventDecisionIssued     = "decision.issued"
	EventDecisionOverridden = "decision.overridden"
)
