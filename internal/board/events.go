package board

// EventType names a board notification.
type EventType string

const (
	EventBoardUpdate  EventType = "board-update"
	EventBattleReveal EventType = "battle-reveal"
)

// Event reports a stored board change. Reveal is set only for battle-reveal.
type Event struct {
	Type      EventType
	ChannelID string
	State     State
	Reveal    *Reveal
}

// Observer receives board events after they are stored. Implementations must
// not block.
type Observer interface {
	BoardChanged(event Event)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(Event)

func (f ObserverFunc) BoardChanged(event Event) {
	f(event)
}
