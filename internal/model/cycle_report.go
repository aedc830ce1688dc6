package model

import "time"

// Outcome classifies how a reaction cycle ended.
type Outcome string

const (
	OutcomeNoOpportunity Outcome = "no_opportunity"
	OutcomeNotProfitable Outcome = "not_profitable"
	OutcomeExecuted      Outcome = "executed"
	OutcomeReverted      Outcome = "reverted"
	OutcomeFailed        Outcome = "failed"
	OutcomeDryRun        Outcome = "dry_run"
	OutcomeSkipped       Outcome = "skipped"
	OutcomeError         Outcome = "error"
)

// CycleReport is emitted once per reaction.
type CycleReport struct {
	ID          string           `json:"id"`
	Trigger     *TradeEvent      `json:"trigger,omitempty"`
	Outcome     Outcome          `json:"outcome"`
	Opportunity *Opportunity     `json:"opportunity,omitempty"`
	Decision    *TradeDecision   `json:"decision,omitempty"`
	Execution   *ExecutionResult `json:"execution,omitempty"`
	Error       string           `json:"error,omitempty"`
	StartedAt   time.Time        `json:"started_at"`
	FinishedAt  time.Time        `json:"finished_at"`
}
