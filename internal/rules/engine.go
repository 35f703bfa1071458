// Package rules provides the CEL-Go based decision table.
package rules

import (
	"fmt"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"
	"github.com/opensource-finance/kestrel/internal/domain"
)

// Rule IDs of the default decision table.
const (
	RuleApproveGoodHistory = "approve-good-history"
	RuleApproveCollateral  = "approve-collateral"
	RuleReviewBand         = "review-band"
	RuleRejectDefault      = "reject-default"
	RuleMissingDocuments   = "missing-documents"
)

// DefaultRules returns the ordered decision table. First match wins.
func DefaultRules() []domain.DecisionRule {
	return []domain.DecisionRule{
		{
			ID:          RuleApproveGoodHistory,
			Description: "strong score with good repayment history",
			Expression:  `score >= 700 && repayment_history == "good"`,
			Outcome:     domain.OutcomeApproved,
		},
		{
			ID:          RuleApproveCollateral,
			Description: "fair score, acceptable history and collateral",
			Expression:  `score >= 600 && repayment_history in ["good", "average"] && has_collateral`,
			Outcome:     domain.OutcomeApproved,
		},
		{
			ID:          RuleReviewBand,
			Description: "borderline score or average history",
			Expression:  `(score >= 500 && score < 600) || repayment_history == "average"`,
			Outcome:     domain.OutcomeReview,
		},
		{
			ID:          RuleRejectDefault,
			Description: "everything else",
			Expression:  `true`,
			Outcome:     domain.OutcomeRejected,
		},
	}
}

// DefaultOverrides returns rules applied after the table, forcing their outcome.
func DefaultOverrides() []domain.DecisionRule {
	return []domain.DecisionRule{
		{
			ID:          RuleMissingDocuments,
			Description: "incomplete documentation always goes to an officer",
			Expression:  `missing_documents`,
			Outcome:     domain.OutcomeReview,
		},
	}
}

// Engine evaluates a compiled, ordered decision table. It is immutable after
// construction and safe for concurrent use.
type Engine struct {
	env       *cel.Env
	rules     []*CompiledRule
	overrides []*CompiledRule
}

// CompiledRule holds a pre-compiled CEL program.
type CompiledRule struct {
	Config  domain.DecisionRule
	Program cel.Program
}

// Input holds the values the decision table reads.
type Input struct {
	Score            int
	RepaymentHistory string
	HasCollateral    bool
	MissingDocuments bool
}

// NewEngine compiles the table and overrides in order.
func NewEngine(table, overrides []domain.DecisionRule) (*Engine, error) {
	if len(table) == 0 {
		return nil, domain.ConfigError("decision table is empty")
	}

	env, err := cel.NewEnv(
		cel.Variable("score", cel.IntType),
		cel.Variable("repayment_history", cel.StringType),
		cel.Variable("has_collateral", cel.BoolType),
		cel.Variable("missing_documents", cel.BoolType),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}

	e := &Engine{env: env}
	seen := make(map[string]bool)
	for _, cfg := range table {
		compiled, err := e.compileRule(cfg, seen)
		if err != nil {
			return nil, err
		}
		e.rules = append(e.rules, compiled)
	}
	for _, cfg := range overrides {
		compiled, err := e.compileRule(cfg, seen)
		if err != nil {
			return nil, err
		}
		e.overrides = append(e.overrides, compiled)
	}
	return e, nil
}

// NewDefaultEngine compiles DefaultRules and DefaultOverrides.
func NewDefaultEngine() (*Engine, error) {
	return NewEngine(DefaultRules(), DefaultOverrides())
}

// Evaluate runs the table top to bottom, stops at the first match, then
// applies the overrides. An override that fires replaces the decision.
func (e *Engine) Evaluate(in Input) (domain.RuleOutcome, error) {
	activation := map[string]any{
		"score":             int64(in.Score),
		"repayment_history": in.RepaymentHistory,
		"has_collateral":    in.HasCollateral,
		"missing_documents": in.MissingDocuments,
	}

	var outcome domain.RuleOutcome
	matched := false
	for _, rule := range e.rules {
		ok, err := evalBool(rule, activation)
		if err != nil {
			return outcome, err
		}
		if ok {
			outcome.Decision = rule.Config.Outcome
			outcome.MatchedRule = rule.Config.ID
			matched = true
			break
		}
	}
	if !matched {
		return outcome, domain.ConfigError("no decision rule matched score %d", in.Score)
	}

	for _, rule := range e.overrides {
		ok, err := evalBool(rule, activation)
		if err != nil {
			return outcome, err
		}
		if ok {
			outcome.Decision = rule.Config.Outcome
			outcome.MatchedRule = rule.Config.ID
			outcome.Overridden = true
			break
		}
	}

	return outcome, nil
}

// Rules returns the table followed by the overrides.
func (e *Engine) Rules() []domain.DecisionRule {
	out := make([]domain.DecisionRule, 0, len(e.rules)+len(e.overrides))
	for _, r := range e.rules {
		out = append(out, r.Config)
	}
	for _, r := range e.overrides {
		out = append(out, r.Config)
	}
	return out
}

func evalBool(rule *CompiledRule, activation map[string]any) (bool, error) {
	out, _, err := rule.Program.Eval(activation)
	if err != nil {
		return false, fmt.Errorf("evaluate rule %s: %w", rule.Config.ID, err)
	}
	b, ok := out.(types.Bool)
	if !ok {
		return false, fmt.Errorf("rule %s returned %s, want bool", rule.Config.ID, out.Type())
	}
	return bool(b), nil
}

func (e *Engine) compileRule(cfg domain.DecisionRule, seen map[string]bool) (*CompiledRule, error) {
	if cfg.ID == "" {
		return nil, domain.ConfigError("decision rule without id")
	}
	if seen[cfg.ID] {
		return nil, domain.ConfigError("duplicate decision rule %s", cfg.ID)
	}
	seen[cfg.ID] = true

	if !cfg.Outcome.Valid() {
		return nil, domain.ConfigError("rule %s: unknown outcome %q", cfg.ID, cfg.Outcome)
	}

	ast, issues := e.env.Compile(cfg.Expression)
	if issues != nil && issues.Err() != nil {
		return nil, domain.ConfigError("compile rule %s: %v", cfg.ID, issues.Err())
	}

	if ast.OutputType() != cel.BoolType {
		return nil, domain.ConfigError("rule %s: expression must return bool, got %s", cfg.ID, ast.OutputType())
	}

	program, err := e.env.Program(ast)
	if err != nil {
		return nil, domain.ConfigError("create program for rule %s: %v", cfg.ID, err)
	}

	return &CompiledRule{
		Config:  cfg,
		Program: program,
	}, nil
}
