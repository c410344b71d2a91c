package app

// Outcome is how a scope ended.
type Outcome string

const (
	OutcomeOK          Outcome = "ok"
	OutcomeNotRun      Outcome = "not_run"
	OutcomeClaimed     Outcome = "claimed"
	OutcomeNoItem      Outcome = "no_item"
	OutcomeSkipped     Outcome = "skipped"
	OutcomeFailed      Outcome = "failed"
	OutcomeInterrupted Outcome = "interrupted"
)

// ScopeResult is the outcome of one failure scope.
type ScopeResult struct {
	Outcome Outcome
	Err     error
}

// Report summarises a run.
type Report struct {
	RunID      string
	Daily      ScopeResult
	Newsletter ScopeResult
	Global     ScopeResult
}

// Failed reports whether any scope ended with an error. An operator interruption is a
// shutdown, not a failure.
func (r Report) Failed() bool {
	for _, s := range []ScopeResult{r.Daily, r.Newsletter, r.Global} {
		if s.Outcome == OutcomeFailed {
			return true
		}
	}
	return false
}

// Interrupted reports whether the operator stopped the run.
func (r Report) Interrupted() bool {
	return r.Global.Outcome == OutcomeInterrupted
}

func (r Report) summary() map[string]any {
	return map[string]any{
		"run_id":     r.RunID,
		"daily":      r.Daily.Outcome,
		"newsletter": r.Newsletter.Outcome,
		"global":     r.Global.Outcome,
	}
}
