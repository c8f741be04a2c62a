// Package dice rolls percentile dice and grades the result.
package dice

import (
	"math/rand/v2"
	"strconv"
)

// Roller produces percentile rolls.
type Roller interface {
	D100() int
}

type randomRoller struct{}

// NewRoller returns a Roller backed by math/rand/v2.
func NewRoller() Roller {
	return randomRoller{}
}

func (randomRoller) D100() int {
	return rand.IntN(100) + 1
}

// RollerFunc adapts a function to Roller.
type RollerFunc func() int

func (f RollerFunc) D100() int {
	return f()
}

// Critical flags the two extreme bands.
type Critical uint8

const (
	CriticalNone Critical = iota
	CriticalSuccess
	CriticalFailure
)

// Band is the success-degree adjustment for one roll.
type Band struct {
	Delta    int
	Label    string
	Critical Critical
}

// JudgeBand grades an effective roll of 1..100.
//
//	01-05 +5 critical success
//	06-23 +2
//	24-41 +1
//	42-59  0
//	60-77 -1
//	78-95 -2
//	96-00 -5 critical failure
func JudgeBand(roll int) Band {
	switch {
	case roll >= 96:
		return Band{Delta: -5, Label: "Fatal blunder", Critical: CriticalFailure}
	case roll <= 5:
		return Band{Delta: 5, Label: "Revolutionary success", Critical: CriticalSuccess}
	case roll <= 23:
		return Band{Delta: 2, Label: "+2"}
	case roll <= 41:
		return Band{Delta: 1, Label: "+1"}
	case roll <= 59:
		return Band{Delta: 0, Label: "±0"}
	case roll <= 77:
		return Band{Delta: -1, Label: "-1"}
	default:
		return Band{Delta: -2, Label: "-2"}
	}
}

var levelLabels = [...]string{
	"", "Clumsy", "Unskilled", "Awkward", "Ordinary", "Good",
	"Refined", "Excellent", "Transcendent", "Supreme", "Godlike",
}

// EvalLabel names the quality of a final skill level.
func EvalLabel(level int) string {
	switch {
	case level <= 0:
		return "Fatal failure"
	case level >= 11:
		return "Revolutionary success"
	case level < len(levelLabels):
		return levelLabels[level]
	default:
		return strconv.Itoa(level)
	}
}

// ClampRoll limits an adjusted roll to 1..100.
func ClampRoll(roll int) int {
	return max(1, min(100, roll))
}
