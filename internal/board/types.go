// Package board owns the per-channel positional board and its two-phase
// battle commit: staged moves are hidden until every participant is ready,
// then revealed and applied together.
package board

import (
	"errors"
	"fmt"
	"strings"
)

// Mode governs whether moves apply immediately or are staged.
type Mode string

const (
	ModeFree   Mode = "free"
	ModeBattle Mode = "battle"
)

const (
	MinSize = 1
	MaxSize = 25
)

var (
	ErrBoardNotFound       = errors.New("board not found")
	ErrParticipantNotFound = errors.New("participant not found")
	ErrInvalidMode         = errors.New("invalid board mode")
	ErrInvalidPosition     = errors.New("position outside the board")
	ErrEmptyName           = errors.New("participant name is required")
)

// ParseMode accepts "free" or "battle" in any case; empty input means free.
func ParseMode(raw string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(raw))) {
	case "", ModeFree:
		return ModeFree, nil
	case ModeBattle:
		return ModeBattle, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidMode, raw)
	}
}

func (m Mode) valid() bool {
	return m == ModeFree || m == ModeBattle
}

// ClampSize limits a requested board size to MinSize..MaxSize.
func ClampSize(size int) int {
	return max(MinSize, min(MaxSize, size))
}

// Participant is one piece on the board. Fields prefixed Tmp are staged for
// the in-progress battle turn.
type Participant struct {
	ID          string           `json:"id"`
	Name        string           `json:"name"`
	Pos         *int             `json:"pos"`
	Tmp         *int             `json:"tmp"`
	TmpArtsNo   Tristate[int]    `json:"tmpArtsNo,omitzero"`
	TmpTargetID Tristate[string] `json:"tmpTargetId,omitzero"`
	TmpUlt      bool             `json:"tmpUlt,omitempty"`
}

// Staged reports whether the participant has a staged position.
func (p Participant) Staged() bool {
	return p.Tmp != nil
}

func (p *Participant) clearStaged() {
	p.Tmp = nil
	p.TmpArtsNo = Unset[int]()
	p.TmpTargetID = Unset[string]()
	p.TmpUlt = false
}

// State is the whole board of one channel.
type State struct {
	ChannelID     string        `json:"channelId"`
	OwnerID       string        `json:"ownerId"`
	Size          int           `json:"size"`
	Mode          Mode          `json:"mode"`
	Members       []Participant `json:"members"`
	LastMessageID string        `json:"lastMessageId,omitempty"`
	CreatedAt     int64         `json:"createdAt"`
}

// ReservationFields carries the staged action inputs. Unset fields leave the
// participant's current staging untouched.
type ReservationFields struct {
	ArtsNo   Tristate[int]
	TargetID Tristate[string]
	Ult      *bool
}

func intPtr(value int) *int {
	return &value
}
