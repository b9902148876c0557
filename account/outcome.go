package account

// Outcome classifies a mutation result for the caller's redirect policy.
// The transport layer maps it to a response; the core never decides
// destinations itself.
type Outcome int

const (
	// OutcomeFailure is the zero value so an empty result reads as failed.
	OutcomeFailure Outcome = iota
	// OutcomeSuccess - the mutation was applied.
	OutcomeSuccess
	// OutcomeNeedsInput - the payload failed validation and the form
	// should be re-presented.
	OutcomeNeedsInput
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeNeedsInput:
		return "needs_input"
	default:
		return "failure"
	}
}
