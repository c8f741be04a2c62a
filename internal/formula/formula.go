// Package formula computes the combat indices players ask the bot for.
package formula

import (
	"fmt"
	"math"
	"strings"

	"github.com/MarcoPoloResearchLab/sortie/internal/mechs"
)

const (
	justRangeBonus  = 20.0
	overRangeStep   = 10.0
	DefaultAvoidLv  = 10
	evasionPerPoint = 10.0
)

// AccuracyInput holds the /acc options plus the selected mech's sync rank.
type AccuracyInput struct {
	Level     int
	BaseRate  float64
	Range     int
	Distance  int
	SyncLevel int
}

// Accuracy is the accuracy index with its intermediate values.
type Accuracy struct {
	Input      AccuracyInput
	Delta      int
	RangeBonus float64
	Rate       float64
	Raw        float64
	Multiplier float64
	Final      float64
}

// ComputeAccuracy applies the range correction and the sync multiplier.
// Only an exact range hit earns the bonus; every point of surplus range
// costs ten percent.
func ComputeAccuracy(input AccuracyInput) Accuracy {
	delta := input.Range - input.Distance
	bonus := 0.0
	if delta == 0 {
		bonus = justRangeBonus
	}
	rate := input.BaseRate - float64(max(0, delta))*overRangeStep + bonus
	raw := float64(input.Level) * (rate / 100)
	multiplier := mechs.SyncMultiplier(float64(input.SyncLevel))
	return Accuracy{
		Input:      input,
		Delta:      delta,
		RangeBonus: bonus,
		Rate:       rate,
		Raw:        raw,
		Multiplier: multiplier,
		Final:      raw * multiplier,
	}
}

// Text renders the monospaced breakdown.
func (a Accuracy) Text() string {
	sign := "−"
	if a.Delta < 0 {
		sign = "＋"
	}
	lines := []string{
		"[Accuracy index]",
		fmt.Sprintf("Skill Lv   : %d", a.Input.Level),
		fmt.Sprintf("Base rate  : %.1f%%", a.Input.BaseRate),
		fmt.Sprintf("Range      : %d", a.Input.Range),
		fmt.Sprintf("Distance   : %d", a.Input.Distance),
		fmt.Sprintf("Sync       : %s", mechs.FormatSync(a.Input.SyncLevel)),
		"Breakdown",
		fmt.Sprintf("(rate)  = %.1f%% %s (%.1f×10%%) ＋ %.1f%%", a.Input.BaseRate, sign, math.Abs(float64(a.Delta)), a.RangeBonus),
		fmt.Sprintf("        = %.1f%%", a.Rate),
		fmt.Sprintf(" %d × %.2f = %.2f", a.Input.Level, a.Rate/100, a.Raw),
		fmt.Sprintf("(index) = %.2f × %.2f = %.2f", a.Raw, a.Multiplier, a.Final),
	}
	return fenced(lines)
}

// EvasionInput holds the /avoid options.
type EvasionInput struct {
	Mobility float64
	Accuracy float64
	Level    int
}

// Evasion is the evasion and hit index pair.
type Evasion struct {
	Input EvasionInput
	Diff  float64
	Rate  float64
	Index float64
	Hit   float64
}

// ComputeEvasion derives the evasion rate from mobility against accuracy. A
// zero level means the default.
func ComputeEvasion(input EvasionInput) Evasion {
	if input.Level == 0 {
		input.Level = DefaultAvoidLv
	}
	diff := round2(input.Mobility - input.Accuracy)
	rate := 100 + evasionPerPoint*diff
	index := float64(input.Level) * (rate / 100)
	return Evasion{
		Input: input,
		Diff:  diff,
		Rate:  rate,
		Index: index,
		Hit:   input.Accuracy - index,
	}
}

// round2 rounds half up to two decimals.
func round2(value float64) float64 {
	return math.Floor(value*100+0.5) / 100
}

func (e Evasion) Text() string {
	sign := "+"
	if e.Diff < 0 {
		sign = "-"
	}
	lines := []string{
		"[Evasion / hit index]",
		fmt.Sprintf("【機動制御】Lv: %d", e.Input.Level),
		fmt.Sprintf("Mobility: %s", trimFloat(e.Input.Mobility)),
		fmt.Sprintf("Accuracy: %s", trimFloat(e.Input.Accuracy)),
		fmt.Sprintf("(evasion rate)  = 100%% %s (10%%×%.1f) = %.1f%%", sign, math.Abs(e.Diff), e.Rate),
		fmt.Sprintf("(evasion index) = %d (%.1f%%) = %.1f", e.Input.Level, e.Rate, e.Index),
		fmt.Sprintf("(hit index)     = %s − %.1f = %.1f", trimFloat(e.Input.Accuracy), e.Index, e.Hit),
	}
	return fenced(lines)
}

// Speed is the initiative index.
type Speed struct {
	MechName string
	Mobility int
	Level    int
	Index    int
}

// ComputeSpeed multiplies the skill level by the mech's mobility.
func ComputeSpeed(level int, mech mechs.Mech) Speed {
	return Speed{MechName: mech.Name, Mobility: mech.Mobility, Level: level, Index: level * mech.Mobility}
}

func (s Speed) Text() string {
	return fenced([]string{
		"[Speed index]",
		"Mech: " + s.MechName,
		fmt.Sprintf("Mobility: %d", s.Mobility),
		fmt.Sprintf("【機動制御】Lv: %d", s.Level),
		fmt.Sprintf("(speed index) = %d × %d = %d", s.Level, s.Mobility, s.Index),
	})
}

func fenced(lines []string) string {
	return "```\n" + strings.Join(lines, "\n") + "\n```"
}

func trimFloat(value float64) string {
	return strings.TrimSuffix(strings.TrimRight(fmt.Sprintf("%.4f", value), "0"), ".")
}
