package fusion

// OutcomeKind classifies what a submit did.
type OutcomeKind string

const (
	// OutcomeStored means this partial is now the pending slot, waiting
	// for its counterpart.
	OutcomeStored OutcomeKind = "stored"

	// OutcomeCombined means this partial completed the pair; the combined
	// event is in Outcome.Combined.
	OutcomeCombined OutcomeKind = "combined"

	// OutcomeDuplicate means the same side was already pending, or the
	// pair already combined. The submit mutated nothing.
	OutcomeDuplicate OutcomeKind = "duplicate"
)

// String returns the outcome name.
func (k OutcomeKind) String() string {
	return string(k)
}

// Outcome is the result of a successful submit. Failures are classified
// errors, never an outcome kind.
type Outcome struct {
	Kind OutcomeKind

	// Combined is set exactly when Kind is OutcomeCombined.
	Combined *CombinedEvent
}
