// Package parts records which parts of a mech have been destroyed.
package parts

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"slices"
	"strings"

	"github.com/MarcoPoloResearchLab/sortie/internal/apperr"
	"github.com/MarcoPoloResearchLab/sortie/internal/mechs"
	"github.com/MarcoPoloResearchLab/sortie/internal/selection"
	"github.com/MarcoPoloResearchLab/sortie/internal/store"
	"go.uber.org/zap"
)

// Namespace holds one document per mech id.
const Namespace = "parts"

const (
	FirstPart = 1
	LastPart  = 8
)

var names = map[int]string{
	1: "【頭部】",
	2: "【左腕】",
	3: "【右腕】",
	4: "【左脚】",
	5: "【右脚】",
	6: "【左翼】",
	7: "【右翼】",
	8: "【コックピット】",
}

// Name returns the display name of a part number.
func Name(part int) string {
	return names[part]
}

var (
	ErrInvalidPart = errors.New("part number must be 1-8")

	errMissingStore = errors.New("document store is required")
	errMissingMechs = errors.New("mech service is required")
)

// MechResolver finds the player's selected mech.
type MechResolver interface {
	Current(ctx context.Context, key selection.Key) (mechs.Mech, error)
}

type record struct {
	Destroyed []int `json:"destroyed"`
}

type ServiceConfig struct {
	Store  store.Store
	Mechs  MechResolver
	IntN   func(n int) int
	Logger *zap.Logger
}

type Service struct {
	records *store.Collection[record]
	mechs   MechResolver
	intN    func(n int) int
	logger  *zap.Logger
}

func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Store == nil {
		return nil, apperr.NewServiceError("parts.service.new", "missing_store", errMissingStore)
	}
	if cfg.Mechs == nil {
		return nil, apperr.NewServiceError("parts.service.new", "missing_mechs", errMissingMechs)
	}
	intN := cfg.IntN
	if intN == nil {
		intN = rand.IntN
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		records: store.NewCollection[record](cfg.Store, Namespace),
		mechs:   cfg.Mechs,
		intN:    intN,
		logger:  logger,
	}, nil
}

// Status is the destroyed set of one mech.
type Status struct {
	Mech      mechs.Mech
	Destroyed []int
	Hit       []int
}

// IsDestroyed reports whether part is in the destroyed set.
func (s Status) IsDestroyed(part int) bool {
	return slices.Contains(s.Destroyed, part)
}

// Text renders every part with ○ for intact and × for destroyed.
func (s Status) Text() string {
	lines := []string{fmt.Sprintf("**Parts: %s**", s.Mech.Name), "```"}
	for part := FirstPart; part <= LastPart; part++ {
		mark := "○"
		if s.IsDestroyed(part) {
			mark = "×"
		}
		lines = append(lines, fmt.Sprintf("%d. %s … %s", part, Name(part), mark))
	}
	lines = append(lines, "```")
	return strings.Join(lines, "\n")
}

// Show returns the selected mech's parts.
func (s *Service) Show(ctx context.Context, key selection.Key) (Status, error) {
	mech, err := s.mechs.Current(ctx, key)
	if err != nil {
		return Status{}, err
	}
	current, err := s.records.Get(ctx, mech.ID)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return Status{}, s.fail("parts.show", err)
	}
	return Status{Mech: mech, Destroyed: Normalize(current.Destroyed)}, nil
}

// Destroy marks one part destroyed. Destroying it again changes nothing.
func (s *Service) Destroy(ctx context.Context, key selection.Key, part int) (Status, error) {
	if part < FirstPart || part > LastPart {
		return Status{}, apperr.WrapUser(ErrInvalidPart, "Part number must be between 1 and 8.")
	}
	return s.update(ctx, "parts.destroy", key, func(_ []int) []int {
		return []int{part}
	})
}

// DestroyRandom destroys up to count intact parts drawn without replacement.
func (s *Service) DestroyRandom(ctx context.Context, key selection.Key, count int) (Status, error) {
	return s.update(ctx, "parts.destroy_random", key, func(destroyed []int) []int {
		candidates := make([]int, 0, LastPart)
		for part := FirstPart; part <= LastPart; part++ {
			if !slices.Contains(destroyed, part) {
				candidates = append(candidates, part)
			}
		}
		hit := make([]int, 0, count)
		for range count {
			if len(candidates) == 0 {
				break
			}
			index := s.intN(len(candidates))
			hit = append(hit, candidates[index])
			candidates = slices.Delete(candidates, index, index+1)
		}
		return hit
	})
}

// Reset clears the destroyed set.
func (s *Service) Reset(ctx context.Context, key selection.Key) (Status, error) {
	mech, err := s.mechs.Current(ctx, key)
	if err != nil {
		return Status{}, err
	}
	if err := s.records.Put(ctx, mech.ID, record{Destroyed: []int{}}); err != nil {
		return Status{}, s.fail("parts.reset", err)
	}
	return Status{Mech: mech, Destroyed: []int{}}, nil
}

// Restore writes a destroyed set as-is. Used by the legacy importer.
func (s *Service) Restore(ctx context.Context, mechID string, destroyed []int) error {
	if err := s.records.Put(ctx, mechID, record{Destroyed: Normalize(destroyed)}); err != nil {
		return s.fail("parts.restore", err)
	}
	return nil
}

func (s *Service) update(ctx context.Context, operation string, key selection.Key, pick func(destroyed []int) []int) (Status, error) {
	mech, err := s.mechs.Current(ctx, key)
	if err != nil {
		return Status{}, err
	}
	var hit []int
	stored, err := s.records.Update(ctx, mech.ID, func(current *record, _ bool) error {
		current.Destroyed = Normalize(current.Destroyed)
		hit = pick(current.Destroyed)
		current.Destroyed = Normalize(append(current.Destroyed, hit...))
		return nil
	})
	if err != nil {
		return Status{}, s.fail(operation, err)
	}
	return Status{Mech: mech, Destroyed: stored.Destroyed, Hit: hit}, nil
}

// Normalize returns the valid part numbers of destroyed as a sorted set.
func Normalize(destroyed []int) []int {
	result := make([]int, 0, len(destroyed))
	for _, part := range destroyed {
		if part >= FirstPart && part <= LastPart {
			result = append(result, part)
		}
	}
	slices.Sort(result)
	return slices.Compact(result)
}

func (s *Service) fail(operation string, err error) error {
	s.logger.Error("parts operation failed", zap.String("operation", operation), zap.Error(err))
	return apperr.NewServiceError(operation, "store_failed", err)
}
