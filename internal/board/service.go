package board

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/MarcoPoloResearchLab/sortie/internal/apperr"
	"github.com/MarcoPoloResearchLab/sortie/internal/ids"
	"github.com/MarcoPoloResearchLab/sortie/internal/store"
	"go.uber.org/zap"
)

// Namespace is the document namespace holding boards keyed by channel id.
const Namespace = "boards"

const (
	opServiceNew       = "board.service.new"
	opCreate           = "board.create"
	opGet              = "board.get"
	opAddParticipant   = "board.add_participant"
	opRemove           = "board.remove_participant"
	opSetMode          = "board.set_mode"
	opSetLastMessageID = "board.set_last_message_id"
	opSetMove          = "board.set_move"
	opSetFields        = "board.set_reservation_fields"
	opSetUlt           = "board.set_ult"
	opToggleUlt        = "board.toggle_ult"
	opCommitAll        = "board.commit_all"
	opConfirm          = "board.confirm"
	opRestore          = "board.restore"
)

var (
	errMissingStore      = errors.New("document store is required")
	errMissingIDProvider = errors.New("id provider is required")
)

// ServiceConfig describes the dependencies of a Service.
type ServiceConfig struct {
	Store      store.Store
	IDProvider ids.Provider
	Clock      func() time.Time
	Observer   Observer
	Logger     *zap.Logger
}

// Service runs every board mutation as one serialized load, mutate and save
// per channel.
type Service struct {
	boards     *store.Collection[State]
	idProvider ids.Provider
	clock      func() time.Time
	observer   Observer
	logger     *zap.Logger
}

func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Store == nil {
		return nil, apperr.NewServiceError(opServiceNew, "missing_store", errMissingStore)
	}
	if cfg.IDProvider == nil {
		return nil, apperr.NewServiceError(opServiceNew, "missing_id_provider", errMissingIDProvider)
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		boards:     store.NewCollection[State](cfg.Store, Namespace),
		idProvider: cfg.IDProvider,
		clock:      clock,
		observer:   cfg.Observer,
		logger:     logger,
	}, nil
}

// SetObserver replaces the event observer. Call before serving traffic.
func (s *Service) SetObserver(observer Observer) {
	s.observer = observer
}

// Create replaces any board in the channel with an empty one. The caller
// clamps size.
func (s *Service) Create(ctx context.Context, channelID, ownerID string, size int, mode Mode) (State, error) {
	if !mode.valid() {
		return State{}, ErrInvalidMode
	}
	state := State{
		ChannelID: channelID,
		OwnerID:   ownerID,
		Size:      size,
		Mode:      mode,
		Members:   []Participant{},
		CreatedAt: s.clock().UnixMilli(),
	}
	if err := s.boards.Put(ctx, channelID, state); err != nil {
		return State{}, s.wrap(opCreate, channelID, err)
	}
	s.logger.Info("board created",
		zap.String("channel_id", channelID),
		zap.Int("size", size),
		zap.String("mode", string(mode)))
	s.notify(EventBoardUpdate, state, nil)
	return state, nil
}

// Get loads the channel's board.
func (s *Service) Get(ctx context.Context, channelID string) (State, error) {
	state, err := s.boards.Get(ctx, channelID)
	if errors.Is(err, store.ErrNotFound) {
		return State{}, ErrBoardNotFound
	}
	if err != nil {
		return State{}, s.wrap(opGet, channelID, err)
	}
	state.normalize()
	return state, nil
}

// AddParticipant appends a participant named name, or returns the existing
// one unchanged if the name is already on the board.
func (s *Service) AddParticipant(ctx context.Context, channelID, name string) (Participant, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Participant{}, ErrEmptyName
	}
	var result Participant
	_, err := s.update(ctx, opAddParticipant, channelID, func(state *State) error {
		if existing, ok := state.findByName(name); ok {
			result = existing
			return store.ErrNoChange
		}
		id, err := s.idProvider.NewID()
		if err != nil {
			return err
		}
		result = Participant{ID: id, Name: name}
		state.Members = append(state.Members, result)
		return nil
	})
	if err != nil {
		return Participant{}, err
	}
	return result, nil
}

// RemoveParticipant removes every member whose id or name equals idOrName
// and reports whether anything was removed.
func (s *Service) RemoveParticipant(ctx context.Context, channelID, idOrName string) (bool, error) {
	removed := false
	_, err := s.update(ctx, opRemove, channelID, func(state *State) error {
		removed = state.removeMatching(idOrName)
		if !removed {
			return store.ErrNoChange
		}
		return nil
	})
	return removed, err
}

func (s *Service) SetMode(ctx context.Context, channelID string, mode Mode) (State, error) {
	if !mode.valid() {
		return State{}, ErrInvalidMode
	}
	return s.update(ctx, opSetMode, channelID, func(state *State) error {
		state.Mode = mode
		return nil
	})
}

// SetLastMessageID records the chat message currently showing the board.
// Viewers are not notified since nothing they see changed.
func (s *Service) SetLastMessageID(ctx context.Context, channelID, messageID string) (State, error) {
	state, _, err := s.mutate(ctx, opSetLastMessageID, channelID, func(state *State) error {
		state.LastMessageID = messageID
		return nil
	})
	return state, err
}

// SetMove moves a participant: immediately in free mode, staged in battle mode.
func (s *Service) SetMove(ctx context.Context, channelID, participantID string, pos int) (State, error) {
	return s.update(ctx, opSetMove, channelID, func(state *State) error {
		return state.stageMove(participantID, pos)
	})
}

// SetReservationFields updates only the staged fields that were provided.
func (s *Service) SetReservationFields(ctx context.Context, channelID, participantID string, fields ReservationFields) (State, error) {
	return s.update(ctx, opSetFields, channelID, func(state *State) error {
		return state.applyFields(participantID, fields)
	})
}

func (s *Service) SetUlt(ctx context.Context, channelID, participantID string, value bool) (State, error) {
	return s.update(ctx, opSetUlt, channelID, func(state *State) error {
		return state.applyFields(participantID, ReservationFields{Ult: &value})
	})
}

// ToggleUlt flips the participant's ultimate reservation and returns the new value.
func (s *Service) ToggleUlt(ctx context.Context, channelID, participantID string) (State, bool, error) {
	var next bool
	state, err := s.update(ctx, opToggleUlt, channelID, func(state *State) error {
		member, err := state.participant(participantID)
		if err != nil {
			return err
		}
		next = !member.TmpUlt
		member.TmpUlt = next
		return nil
	})
	return state, next, err
}

// CommitAll applies every staged position and clears all staging.
func (s *Service) CommitAll(ctx context.Context, channelID string) (State, error) {
	return s.update(ctx, opCommitAll, channelID, func(state *State) error {
		state.commit()
		return nil
	})
}

// ConfirmRequest is one participant's confirmed input from the board controls.
type ConfirmRequest struct {
	ChannelID     string
	ParticipantID string
	Pos           int
	Fields        ReservationFields
}

// ConfirmResult carries the stored board, the participant as staged by this
// confirm, and the reveal if the confirm completed a battle turn.
type ConfirmResult struct {
	State    State
	Staged   Participant
	Revealed *Reveal
}

// Confirm stages the move and reservation fields. In battle mode, when the
// board becomes ready, the reveal is built and the turn committed within the
// same update, so a half-applied turn is never stored.
func (s *Service) Confirm(ctx context.Context, request ConfirmRequest) (ConfirmResult, error) {
	var result ConfirmResult
	state, _, err := s.mutate(ctx, opConfirm, request.ChannelID, func(state *State) error {
		if err := state.stageMove(request.ParticipantID, request.Pos); err != nil {
			return err
		}
		if err := state.applyFields(request.ParticipantID, request.Fields); err != nil {
			return err
		}
		staged, _ := state.Participant(request.ParticipantID)
		result.Staged = staged
		if state.Mode == ModeBattle && state.Ready() {
			reveal, ok := state.BuildReveal()
			if ok {
				result.Revealed = &reveal
			}
			state.commit()
		}
		return nil
	})
	if err != nil {
		return ConfirmResult{}, err
	}
	result.State = state
	if result.Revealed != nil {
		s.logger.Info("battle turn revealed",
			zap.String("channel_id", request.ChannelID),
			zap.Int("participants", len(result.Revealed.Lines)))
		s.notify(EventBattleReveal, state, result.Revealed)
	}
	s.notify(EventBoardUpdate, state, nil)
	return result, nil
}

// Restore writes a board as-is. Used by the legacy importer.
func (s *Service) Restore(ctx context.Context, state State) error {
	state.normalize()
	if err := s.boards.Put(ctx, state.ChannelID, state); err != nil {
		return s.wrap(opRestore, state.ChannelID, err)
	}
	return nil
}

// update runs mutate and notifies the observer when something was stored.
func (s *Service) update(ctx context.Context, operation, channelID string, fn func(*State) error) (State, error) {
	state, changed, err := s.mutate(ctx, operation, channelID, fn)
	if err != nil {
		return State{}, err
	}
	if changed {
		s.notify(EventBoardUpdate, state, nil)
	}
	return state, nil
}

// mutate loads the board, applies fn and stores the result under the
// channel's lock. Returning store.ErrNoChange from fn skips the write.
func (s *Service) mutate(ctx context.Context, operation, channelID string, fn func(*State) error) (State, bool, error) {
	changed := false
	state, err := s.boards.Update(ctx, channelID, func(state *State, exists bool) error {
		if !exists {
			return ErrBoardNotFound
		}
		state.normalize()
		if err := fn(state); err != nil {
			return err
		}
		changed = true
		return nil
	})
	if err != nil {
		return State{}, false, s.classify(operation, channelID, err)
	}
	state.normalize()
	return state, changed, nil
}

// classify passes contract failures through and wraps everything else.
func (s *Service) classify(operation, channelID string, err error) error {
	switch {
	case errors.Is(err, ErrBoardNotFound),
		errors.Is(err, ErrParticipantNotFound),
		errors.Is(err, ErrInvalidPosition),
		errors.Is(err, store.ErrInvalidKey):
		return err
	}
	return s.wrap(operation, channelID, err)
}

func (s *Service) wrap(operation, channelID string, err error) error {
	s.logger.Error("board operation failed",
		zap.String("operation", operation),
		zap.String("reason", "store_failed"),
		zap.String("channel_id", channelID),
		zap.Error(err))
	return apperr.NewServiceError(operation, "store_failed", err)
}

func (s *Service) notify(eventType EventType, state State, reveal *Reveal) {
	if s.observer == nil {
		return
	}
	s.observer.BoardChanged(Event{
		Type:      eventType,
		ChannelID: state.ChannelID,
		State:     state.Clone(),
		Reveal:    reveal,
	})
}
