package dice

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestJudgeBand(t *testing.T) {
	testCases := []struct {
		roll     int
		delta    int
		critical Critical
	}{
		{roll: 1, delta: 5, critical: CriticalSuccess},
		{roll: 5, delta: 5, critical: CriticalSuccess},
		{roll: 6, delta: 2},
		{roll: 23, delta: 2},
		{roll: 24, delta: 1},
		{roll: 41, delta: 1},
		{roll: 42, delta: 0},
		{roll: 50, delta: 0},
		{roll: 59, delta: 0},
		{roll: 60, delta: -1},
		{roll: 77, delta: -1},
		{roll: 78, delta: -2},
		{roll: 95, delta: -2},
		{roll: 96, delta: -5, critical: CriticalFailure},
		{roll: 100, delta: -5, critical: CriticalFailure},
	}
	for _, testCase := range testCases {
		band := JudgeBand(testCase.roll)
		assert.Equal(t, testCase.delta, band.Delta, "roll %d", testCase.roll)
		assert.Equal(t, testCase.critical, band.Critical, "roll %d", testCase.roll)
	}
}

func TestEvalLabel(t *testing.T) {
	assert.Equal(t, "Fatal failure", EvalLabel(0))
	assert.Equal(t, "Fatal failure", EvalLabel(-3))
	assert.Equal(t, "Clumsy", EvalLabel(1))
	assert.Equal(t, "Godlike", EvalLabel(10))
	assert.Equal(t, "Revolutionary success", EvalLabel(11))
}

func TestRollerRange(t *testing.T) {
	roller := NewRoller()
	for range 1000 {
		roll := roller.D100()
		assert.GreaterOrEqual(t, roll, 1)
		assert.LessOrEqual(t, roll, 100)
	}
	assert.Equal(t, 1, ClampRoll(-20))
	assert.Equal(t, 100, ClampRoll(130))
	assert.Equal(t, 42, RollerFunc(func() int { return 42 }).D100())
}
