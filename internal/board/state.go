package board

import (
	"fmt"
	"strconv"
	"strings"
)

func (s *State) normalize() {
	if s.Members == nil {
		s.Members = []Participant{}
	}
	if s.Mode == "" {
		s.Mode = ModeFree
	}
}

// Clone returns a deep copy so callers can hold a snapshot past later mutations.
func (s State) Clone() State {
	clone := s
	clone.Members = make([]Participant, len(s.Members))
	for index, member := range s.Members {
		if member.Pos != nil {
			member.Pos = intPtr(*member.Pos)
		}
		if member.Tmp != nil {
			member.Tmp = intPtr(*member.Tmp)
		}
		clone.Members[index] = member
	}
	return clone
}

// Participant looks a member up by id.
func (s State) Participant(id string) (Participant, bool) {
	for _, member := range s.Members {
		if member.ID == id {
			return member, true
		}
	}
	return Participant{}, false
}

func (s *State) participant(id string) (*Participant, error) {
	for index := range s.Members {
		if s.Members[index].ID == id {
			return &s.Members[index], nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrParticipantNotFound, id)
}

func (s State) findByName(name string) (Participant, bool) {
	for _, member := range s.Members {
		if member.Name == name {
			return member, true
		}
	}
	return Participant{}, false
}

// removeMatching drops every member whose id or name equals idOrName.
func (s *State) removeMatching(idOrName string) bool {
	kept := s.Members[:0]
	for _, member := range s.Members {
		if member.ID == idOrName || member.Name == idOrName {
			continue
		}
		kept = append(kept, member)
	}
	removed := len(kept) != len(s.Members)
	s.Members = kept
	return removed
}

func (s *State) stageMove(participantID string, pos int) error {
	if pos < 1 || pos > s.Size {
		return fmt.Errorf("%w: %d (size %d)", ErrInvalidPosition, pos, s.Size)
	}
	member, err := s.participant(participantID)
	if err != nil {
		return err
	}
	if s.Mode == ModeBattle {
		member.Tmp = intPtr(pos)
	} else {
		member.Pos = intPtr(pos)
	}
	return nil
}

func (s *State) applyFields(participantID string, fields ReservationFields) error {
	member, err := s.participant(participantID)
	if err != nil {
		return err
	}
	if fields.ArtsNo.Provided() {
		member.TmpArtsNo = fields.ArtsNo
	}
	if fields.TargetID.Provided() {
		member.TmpTargetID = fields.TargetID
	}
	if fields.Ult != nil {
		member.TmpUlt = *fields.Ult
	}
	return nil
}

// ReadyCount counts members with a staged position.
func (s State) ReadyCount() int {
	ready := 0
	for _, member := range s.Members {
		if member.Staged() {
			ready++
		}
	}
	return ready
}

// Ready reports whether the board has members and every one of them has a
// staged position.
func (s State) Ready() bool {
	return len(s.Members) > 0 && s.ReadyCount() == len(s.Members)
}

// commit copies every staged position into pos and clears all staging.
// Members that never staged a position keep their previous pos.
func (s *State) commit() {
	for index := range s.Members {
		member := &s.Members[index]
		if member.Tmp != nil {
			member.Pos = intPtr(*member.Tmp)
		}
		member.clearStaged()
	}
}

// TargetLabel resolves a staged target to a display name: "none" for no
// target and "(unknown)" when the id no longer matches a member.
func (s State) TargetLabel(target Tristate[string]) string {
	id, ok := target.Get()
	if !ok {
		return "none"
	}
	if member, found := s.Participant(id); found {
		return member.Name
	}
	return "(unknown)"
}

// RevealLine is one participant's staged turn as shown at reveal time.
type RevealLine struct {
	ParticipantID string `json:"participantId"`
	Name          string `json:"name"`
	From          *int   `json:"from"`
	To            int    `json:"to"`
	ArtsNo        int    `json:"artsNo"`
	Target        string `json:"target"`
	Ult           bool   `json:"ult"`
}

func (l RevealLine) String() string {
	from := "-"
	if l.From != nil {
		from = strconv.Itoa(*l.From)
	}
	line := fmt.Sprintf("%s: %s → %d / ARTS.No.%d / target %s", l.Name, from, l.To, l.ArtsNo, l.Target)
	if l.Ult {
		line += " / ULT ON"
	}
	return line
}

// Reveal is the transcript published when a battle turn completes.
type Reveal struct {
	ChannelID string       `json:"channelId"`
	Lines     []RevealLine `json:"lines"`
}

// Text renders one line per participant.
func (r Reveal) Text() string {
	lines := make([]string, 0, len(r.Lines))
	for _, line := range r.Lines {
		lines = append(lines, line.String())
	}
	return strings.Join(lines, "\n")
}

// BuildReveal summarizes every member with a staged position. Members
// without one are left out. ok is false when nobody staged anything.
func (s State) BuildReveal() (Reveal, bool) {
	reveal := Reveal{ChannelID: s.ChannelID}
	for _, member := range s.Members {
		if member.Tmp == nil {
			continue
		}
		line := RevealLine{
			ParticipantID: member.ID,
			Name:          member.Name,
			To:            *member.Tmp,
			ArtsNo:        member.TmpArtsNo.ValueOr(0),
			Target:        s.TargetLabel(member.TmpTargetID),
			Ult:           member.TmpUlt,
		}
		if member.Pos != nil {
			line.From = intPtr(*member.Pos)
		}
		reveal.Lines = append(reveal.Lines, line)
	}
	return reveal, len(reveal.Lines) > 0
}
