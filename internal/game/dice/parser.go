package dice

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Expression is a parsed roll: Count dice of Sides faces plus Modifier.
// A Count of zero is a flat value ("5").
//
// Invariant: Sides >= 2 whenever Count > 0.
type Expression struct {
	Raw      string
	Count    int
	Sides    int
	Modifier int
}

var exprPattern = regexp.MustCompile(`^(?:(\d*)d(\d+))?([+-]?\d+)?$`)

// Parse parses "d20", "2d6", "2d6+3", "4d8-2" or a flat "7".
//
// Postcondition: Returns a valid Expression or a descriptive error.
func Parse(expr string) (Expression, error) {
	s := strings.ToLower(strings.ReplaceAll(expr, " ", ""))
	m := exprPattern.FindStringSubmatch(s)
	if s == "" || m == nil {
		return Expression{}, fmt.Errorf("dice: invalid expression %q", expr)
	}
	e := Expression{Raw: expr}
	if m[2] != "" {
		e.Count = 1
		if m[1] != "" {
			n, err := strconv.Atoi(m[1])
			if err != nil || n < 1 {
				return Expression{}, fmt.Errorf("dice: invalid die count in %q", expr)
			}
			e.Count = n
		}
		sides, err := strconv.Atoi(m[2])
		if err != nil || sides < 2 {
			return Expression{}, fmt.Errorf("dice: invalid die sides in %q: must be >= 2", expr)
		}
		e.Sides = sides
	}
	if m[3] != "" {
		if m[2] != "" && !strings.ContainsAny(m[3][:1], "+-") {
			return Expression{}, fmt.Errorf("dice: modifier in %q needs a sign", expr)
		}
		mod, err := strconv.Atoi(m[3])
		if err != nil {
			return Expression{}, fmt.Errorf("dice: invalid modifier in %q: %w", expr, err)
		}
		e.Modifier = mod
	}
	return e, nil
}

// MustParse parses expr and panics on error.
func MustParse(expr string) Expression {
	e, err := Parse(expr)
	if err != nil {
		panic(err.Error())
	}
	return e
}

// Min returns the lowest possible total.
func (e Expression) Min() int { return e.Count + e.Modifier }

// Max returns the highest possible total.
func (e Expression) Max() int { return e.Count*e.Sides + e.Modifier }

// Roll evaluates e using src.
//
// Postcondition: Min() <= result.Total() <= Max().
func (e Expression) Roll(src Source) RollResult {
	rolled := make([]int, e.Count)
	for i := range rolled {
		rolled[i] = src.Intn(e.Sides) + 1
	}
	return RollResult{Expression: e.Raw, Dice: rolled, Modifier: e.Modifier}
}
