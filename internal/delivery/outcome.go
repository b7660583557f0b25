package delivery

// OutcomeKind tags the result of validating a delivery.
type OutcomeKind string

const (
	// OutcomeDone means the delivery completed in full.
	OutcomeDone OutcomeKind = "done"
	// OutcomeNeedsBackorderDecision means some lines are short and the
	// caller must decide between a backorder and completing now.
	OutcomeNeedsBackorderDecision OutcomeKind = "needs_backorder_decision"
)

// Outcome is the tagged result of Validate. There is no follow-up wizard to
// probe: a short delivery always comes back as NeedsBackorderDecision with
// the remaining lines attached, and the caller resolves it with one explicit
// rule.
type Outcome struct {
	Kind OutcomeKind
	// Remaining lists the lines left short; only set for
	// OutcomeNeedsBackorderDecision.
	Remaining []Line
}

// BackorderDecision resolves a NeedsBackorderDecision outcome.
type BackorderDecision string

const (
	// DecisionCompleteNow closes the delivery at the delivered quantities
	// without creating a backorder. This is the default resolution used by
	// the import automation.
	DecisionCompleteNow BackorderDecision = "complete_now"
	// DecisionBackorder closes the delivery and creates a backorder for the
	// remaining quantities.
	DecisionBackorder BackorderDecision = "backorder"
)
