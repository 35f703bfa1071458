package domain

// DecisionRule is one row of the ordered decision table.
type DecisionRule struct {
	ID          string `json:"id" yaml:"id"`
	Description string `json:"description" yaml:"description"`

	// CEL expression over score, repayment_history, has_collateral and
	// missing_documents. Must evaluate to bool.
	Expression string `json:"expression" yaml:"expression"`

	// Outcome assigned when the expression is true
	Outcome Outcome `json:"outcome" yaml:"outcome"`
}

// RuleOutcome is the result of running the decision table.
type RuleOutcome struct {
	Decision    Outcome `json:"decision"`
	MatchedRule string  `json:"matched_rule"`
	Overridden  bool    `json:"overridden"`
}

// LoanTier maps a minimum credit score to an income multiplier.
type LoanTier struct {
	MinScore   int     `json:"min_score" yaml:"min_score"`
	Multiplier float64 `json:"multiplier" yaml:"multiplier"`
}
