package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRollExpressions(t *testing.T) {
	tcs := []struct {
		name  string
		expr  string
		faces []int
		want  int
	}{
		{name: "raw int", expr: "7", want: 7},
		{name: "empty", expr: "  ", want: 0},
		{name: "single die", expr: "d6", faces: []int{4}, want: 4},
		{name: "count", expr: "2d6", faces: []int{3, 5}, want: 8},
		{name: "plus", expr: "1d8+2", faces: []int{8}, want: 10},
		{name: "minus floors at zero", expr: "1d4-6", faces: []int{2}, want: 0},
		{name: "multiply", expr: "2d3 x 2", faces: []int{1, 3}, want: 8},
		{name: "garbage", expr: "fireball", want: 0},
		{name: "negative raw", expr: "-3", want: 0},
	}
	for _, tc := range tcs {
		t.Run(tc.name, func(t *testing.T) {
			r := NewSequenceRoller(tc.faces...)
			assert.Equal(t, tc.want, Roll(r, tc.expr))
		})
	}
}

func TestValidExpr(t *testing.T) {
	for _, expr := range []string{"7", "d6", "1d6+2", " 2d3 x 2 ", "3D8-1"} {
		assert.True(t, ValidExpr(expr), expr)
	}
	for _, expr := range []string{"", "fireball", "2d", "d6+", "1d6/2"} {
		assert.False(t, ValidExpr(expr), expr)
	}
}

func TestSequenceRollerClampsAndRepeats(t *testing.T) {
	r := NewSequenceRoller(1, 25)
	assert.Equal(t, 1, D20(r))
	assert.Equal(t, 20, D20(r), "faces above the die size clamp to the max face")
	assert.Equal(t, 20, D20(r), "last face repeats once the script is exhausted")
	assert.Equal(t, 0, r.Remaining())
}

func TestSeededRollerIsDeterministic(t *testing.T) {
	a := NewRoller(42)
	b := NewRoller(42)
	for i := 0; i < 50; i++ {
		require.Equal(t, D20(a), D20(b))
	}
}

func TestD20StaysInRange(t *testing.T) {
	r := NewRoller(7)
	for i := 0; i < 1000; i++ {
		v := D20(r)
		require.GreaterOrEqual(t, v, 1)
		require.LessOrEqual(t, v, 20)
	}
}

func TestShufflePermutes(t *testing.T) {
	xs := []int{1, 2, 3, 4, 5, 6}
	Shuffle(NewRoller(3), len(xs), func(i, j int) { xs[i], xs[j] = xs[j], xs[i] })
	assert.ElementsMatch(t, []int{1, 2, 3, 4, 5, 6}, xs)
}

func TestNewSeed(t *testing.T) {
	_, err := NewSeed()
	require.NoError(t, err)
}
