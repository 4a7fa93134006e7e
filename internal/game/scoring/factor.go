package scoring

// Neutral is the value an unknown Factor contributes.
const Neutral = 0.5

// Factor is a normalised evaluator input that may be unknown. Unknown factors
// contribute Neutral instead of failing the evaluation.
type Factor struct {
	value float64
	known bool
}

// Known returns a Factor holding v clamped to [0, 1].
func Known(v float64) Factor { return Factor{value: clamp01(v), known: true} }

// Unknown returns a Factor that evaluates to Neutral.
func Unknown() Factor { return Factor{} }

// Value returns the factor's value, or Neutral when unknown.
func (f Factor) Value() float64 {
	if !f.known {
		return Neutral
	}
	return f.value
}

// IsKnown reports whether the factor carries a real value.
func (f Factor) IsKnown() bool { return f.known }

// Score is an evaluator's result.
type Score struct {
	Value float64
	// Vetoed is true when a hard rule rejected the option; Value is then 0.
	Vetoed bool
	Reason string
}

func veto(reason string) Score { return Score{Vetoed: true, Reason: reason} }

// Better reports whether s should be preferred over o. A vetoed score never wins.
func (s Score) Better(o Score) bool {
	if s.Vetoed != o.Vetoed {
		return !s.Vetoed
	}
	return s.Value > o.Value
}
