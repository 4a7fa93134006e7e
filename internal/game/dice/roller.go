package dice

import "go.uber.org/zap"

// Roller wraps a Source and logger to provide logged rolling.
// All rolls are logged at debug level with expression, dice values, modifier, and total.
type Roller struct {
	src    Source
	logger *zap.Logger
}

// NewLoggedRoller creates a Roller that rolls with src and logs each roll to logger.
//
// Precondition: src must be non-nil. A nil logger is replaced with a no-op logger.
func NewLoggedRoller(src Source, logger *zap.Logger) *Roller {
	if src == nil {
		panic("dice.NewLoggedRoller: src must not be nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Roller{src: src, logger: logger.Named("dice")}
}

// Roll evaluates expr and logs the result at debug level.
func (r *Roller) Roll(expr Expression) RollResult {
	result := expr.Roll(r.src)
	r.logger.Debug("roll",
		zap.String("expression", result.Expression),
		zap.Ints("dice", result.Dice),
		zap.Int("modifier", result.Modifier),
		zap.Int("total", result.Total()),
	)
	return result
}

// Chance reports whether a roll succeeds with probability p, resolved to whole percent.
func (r *Roller) Chance(p float64) bool {
	return float64(r.src.Intn(100)) < p*100
}

// Intn exposes the underlying Source for initiative and tie-breaks.
func (r *Roller) Intn(n int) int { return r.src.Intn(n) }
