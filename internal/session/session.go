// Package session holds the in-progress board control choices of each player
// until they confirm. Entries expire after a period of inactivity.
package session

import (
	"sync"
	"time"

	"github.com/MarcoPoloResearchLab/sortie/internal/board"
	"github.com/MarcoPoloResearchLab/sortie/internal/selection"
)

// DefaultTTL is used when no positive TTL is configured.
const DefaultTTL = 15 * time.Minute

// BoardSelection is one player's partially filled board controls.
type BoardSelection struct {
	MemberID string
	Pos      *int
	ArtsNo   *int
	Target   board.Tristate[string]
}

// Ready reports whether a member and a position have been chosen.
func (s BoardSelection) Ready() bool {
	return s.MemberID != "" && s.Pos != nil
}

type entry struct {
	selection  BoardSelection
	lastActive time.Time
}

// Store keeps selections per channel and player.
type Store struct {
	mu        sync.Mutex
	entries   map[selection.Key]*entry
	ttl       time.Duration
	clock     func() time.Time
	lastSweep time.Time
}

// NewStore builds a Store. A nil clock means time.Now.
func NewStore(ttl time.Duration, clock func() time.Time) *Store {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if clock == nil {
		clock = time.Now
	}
	return &Store{entries: make(map[selection.Key]*entry), ttl: ttl, clock: clock}
}

// Get returns the player's current selection; expired entries read as empty.
func (s *Store) Get(key selection.Key) BoardSelection {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.entries[key]
	if !ok || s.expired(current, s.clock()) {
		return BoardSelection{}
	}
	return current.selection
}

// Update applies fn to the player's selection and refreshes its expiry.
func (s *Store) Update(key selection.Key, fn func(*BoardSelection)) BoardSelection {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.clock()
	s.sweepLocked(now)
	current, ok := s.entries[key]
	if !ok || s.expired(current, now) {
		current = &entry{}
		s.entries[key] = current
	}
	fn(&current.selection)
	current.lastActive = now
	return current.selection
}

// Clear drops the player's selection.
func (s *Store) Clear(key selection.Key) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, key)
}

// ClearMember forgets only the chosen member, keeping the position.
func (s *Store) ClearMember(key selection.Key) {
	s.Update(key, func(current *BoardSelection) {
		*current = BoardSelection{Pos: current.Pos}
	})
}

// Len counts live entries.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sweepLocked(s.clock())
	return len(s.entries)
}

func (s *Store) expired(current *entry, now time.Time) bool {
	return now.Sub(current.lastActive) > s.ttl
}

// sweepLocked evicts expired entries at most once per TTL.
func (s *Store) sweepLocked(now time.Time) {
	if now.Sub(s.lastSweep) < s.ttl {
		return
	}
	s.lastSweep = now
	for key, current := range s.entries {
		if s.expired(current, now) {
			delete(s.entries, key)
		}
	}
}
