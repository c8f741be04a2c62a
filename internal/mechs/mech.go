// Package mechs manages mech sheets: armor, synchronization rank and the
// property lookups players type in chat.
package mechs

import (
	"errors"
	"fmt"
	"math"
)

// Mech is one owned mech sheet.
type Mech struct {
	ID           string `json:"id"`
	OwnerID      string `json:"ownerId"`
	Name         string `json:"name"`
	Type         string `json:"type"`
	TLv          int    `json:"TLv"`
	Mobility     int    `json:"mobility"`
	ArmorMax     int    `json:"armorMax"`
	ArmorCurrent int    `json:"armorCurrent"`
	Load         int    `json:"load"`
	SyncLevel    int    `json:"syncLevel"`
	CreatedAt    int64  `json:"createdAt"`
}

func (m Mech) RecordID() string       { return m.ID }
func (m Mech) RecordName() string     { return m.Name }
func (m Mech) CreatedAtMillis() int64 { return m.CreatedAt }

// Types lists the accepted mech types.
var Types = []string{"F", "S", "E"}

const (
	MinSync = -6
	MaxSync = 6
)

var syncTable = map[int]float64{
	6: 4.0, 5: 3.5, 4: 3.0, 3: 2.5, 2: 2.0, 1: 1.5, 0: 1.0,
	-1: 2.0 / 3, -2: 0.5, -3: 0.4, -4: 2.0 / 6, -5: 2.0 / 7, -6: 0.25,
}

// SyncMultiplier maps a synchronization rank to its multiplier. The rank is
// truncated and clamped to MinSync..MaxSync.
func SyncMultiplier(rank float64) float64 {
	clamped := ClampSync(int(math.Trunc(rank)))
	return syncTable[clamped]
}

// ClampSync limits rank to MinSync..MaxSync.
func ClampSync(rank int) int {
	return max(MinSync, min(MaxSync, rank))
}

// FormatSync renders a rank as "+N (P%)".
func FormatSync(rank int) string {
	sign := fmt.Sprintf("%d", rank)
	if rank > 0 {
		sign = "+" + sign
	}
	return fmt.Sprintf("%s (%.0f%%)", sign, SyncMultiplier(float64(rank))*100)
}

// Operation is an armor or sync adjustment.
type Operation string

const (
	OpAdd Operation = "add"
	OpSub Operation = "sub"
	OpSet Operation = "set"
)

var ErrInvalidOperation = errors.New("invalid adjustment operation")

// ParseOperation accepts add, sub or set.
func ParseOperation(raw string) (Operation, error) {
	switch Operation(raw) {
	case OpAdd, OpSub, OpSet:
		return Operation(raw), nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidOperation, raw)
}

func (o Operation) apply(current, value int) int {
	switch o {
	case OpAdd:
		return current + value
	case OpSub:
		return current - value
	default:
		return value
	}
}
