package core

// OutcomeKind tags the result of one round of the authentication exchange.
type OutcomeKind int

const (
	// OutcomeSuccess means the provider issued tokens; the exchange is over.
	OutcomeSuccess OutcomeKind = iota

	// OutcomeChallenge means the provider requires another round.
	OutcomeChallenge

	// OutcomeFailed means the attempt terminated with a classified error.
	OutcomeFailed
)

// Outcome is the closed result type of a round: exactly one of Tokens,
// Challenge or Err is populated, selected by Kind. Intermediate rounds
// produce OutcomeChallenge; only the final round produces OutcomeSuccess
// or OutcomeFailed.
type Outcome struct {
	Kind      OutcomeKind
	Tokens    *Tokens
	Challenge *ChallengeParameters
	Err       error
}

// Succeeded creates a terminal success outcome.
func Succeeded(tokens *Tokens) Outcome {
	return Outcome{Kind: OutcomeSuccess, Tokens: tokens}
}

// ChallengeRequired creates an intermediate outcome carrying the next
// round's parameters.
func ChallengeRequired(params *ChallengeParameters) Outcome {
	return Outcome{Kind: OutcomeChallenge, Challenge: params}
}

// Failed creates a terminal failure outcome.
func Failed(err error) Outcome {
	return Outcome{Kind: OutcomeFailed, Err: err}
}
