package dice_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
	"pgregory.net/rapid"

	"github.com/cory-johannsen/tactician/internal/game/dice"
)

func TestRollResult_TotalAndString(t *testing.T) {
	r := dice.RollResult{Expression: "2d6+3", Dice: []int{4, 5}, Modifier: 3}
	assert.Equal(t, 12, r.Total())
	assert.Equal(t, "2d6+3: [4 5] +3 = 12", r.String())
}

func TestParse(t *testing.T) {
	cases := map[string]dice.Expression{
		"d20":   {Raw: "d20", Count: 1, Sides: 20},
		"2d6":   {Raw: "2d6", Count: 2, Sides: 6},
		"2d6+3": {Raw: "2d6+3", Count: 2, Sides: 6, Modifier: 3},
		"4D8-2": {Raw: "4D8-2", Count: 4, Sides: 8, Modifier: -2},
		"7":     {Raw: "7", Modifier: 7},
	}
	for in, want := range cases {
		got, err := dice.Parse(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
}

func TestParse_Rejects(t *testing.T) {
	for _, in := range []string{"", "d", "0d6", "2d1", "2x6", "d6+"} {
		_, err := dice.Parse(in)
		assert.Error(t, err, in)
	}
	assert.Panics(t, func() { dice.MustParse("nope") })
}

func TestExpression_MinMax(t *testing.T) {
	e := dice.MustParse("3d4+2")
	assert.Equal(t, 5, e.Min())
	assert.Equal(t, 14, e.Max())
}

func TestSeededSource_Deterministic(t *testing.T) {
	a, b := dice.NewSeededSource(42), dice.NewSeededSource(42)
	for i := 0; i < 100; i++ {
		assert.Equal(t, a.Intn(1000), b.Intn(1000))
	}
	assert.Panics(t, func() { a.Intn(0) })
}

func TestRoller_LogsRolls(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	r := dice.NewLoggedRoller(dice.NewSeededSource(1), zap.New(core))
	res := r.Roll(dice.MustParse("2d6"))
	assert.Len(t, res.Dice, 2)
	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "roll", logs.All()[0].Message)
	assert.Panics(t, func() { dice.NewLoggedRoller(nil, nil) })
}

func TestRoller_ChanceExtremes(t *testing.T) {
	r := dice.NewLoggedRoller(dice.NewSeededSource(3), nil)
	for i := 0; i < 50; i++ {
		assert.True(t, r.Chance(1))
		assert.False(t, r.Chance(0))
	}
}

func TestProperty_RollWithinMinMax(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		e := dice.Expression{
			Raw:      "x",
			Count:    rapid.IntRange(1, 10).Draw(rt, "count"),
			Sides:    rapid.IntRange(2, 20).Draw(rt, "sides"),
			Modifier: rapid.IntRange(-5, 5).Draw(rt, "mod"),
		}
		res := e.Roll(dice.NewSeededSource(rapid.Uint64().Draw(rt, "seed")))
		if res.Total() < e.Min() || res.Total() > e.Max() {
			rt.Fatalf("total %d outside [%d, %d]", res.Total(), e.Min(), e.Max())
		}
	})
}
