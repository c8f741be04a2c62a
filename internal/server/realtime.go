package server

import (
	"context"
	"sync"
	"time"

	"github.com/MarcoPoloResearchLab/sortie/internal/board"
)

const (
	RealtimeEventBoardUpdate  = string(board.EventBoardUpdate)
	RealtimeEventBattleReveal = string(board.EventBattleReveal)
	realtimeEventHeartbeat    = "heartbeat"
	realtimeSourceBackend     = "sortie"
)

// RealtimeMessage is one event pushed to the spectators of a channel. Data is
// always a committed projection or a published reveal.
type RealtimeMessage struct {
	ChannelID string
	EventType string
	Data      any
	Timestamp time.Time
}

// RealtimeDispatcher fans board events out to per-channel subscribers. It
// implements board.Observer.
type RealtimeDispatcher struct {
	mu          sync.RWMutex
	subscribers map[string]map[int64]*realtimeSubscriber
	nextID      int64
	bufferSize  int
	clock       func() time.Time
}

type realtimeSubscriber struct {
	id     int64
	stream chan RealtimeMessage
}

func NewRealtimeDispatcher() *RealtimeDispatcher {
	return &RealtimeDispatcher{
		subscribers: make(map[string]map[int64]*realtimeSubscriber),
		bufferSize:  16,
		clock:       time.Now,
	}
}

// BoardChanged converts a board event into a realtime message.
func (d *RealtimeDispatcher) BoardChanged(event board.Event) {
	message := RealtimeMessage{
		ChannelID: event.ChannelID,
		EventType: string(event.Type),
		Timestamp: d.clock().UTC(),
	}
	switch event.Type {
	case board.EventBattleReveal:
		if event.Reveal == nil {
			return
		}
		message.Data = *event.Reveal
	default:
		message.Data = board.Render(event.State)
	}
	d.Publish(message)
}

func (d *RealtimeDispatcher) Subscribe(ctx context.Context, channelID string) (<-chan RealtimeMessage, func()) {
	if channelID == "" {
		ch := make(chan RealtimeMessage)
		close(ch)
		return ch, func() {}
	}
	subscriber := &realtimeSubscriber{
		id:     d.nextSequence(),
		stream: make(chan RealtimeMessage, d.bufferSize),
	}
	d.registerSubscriber(channelID, subscriber)
	var once sync.Once
	cleanup := func() {
		once.Do(func() {
			d.unregisterSubscriber(channelID, subscriber.id)
		})
	}
	go func() {
		<-ctx.Done()
		cleanup()
	}()
	return subscriber.stream, cleanup
}

// Publish delivers without blocking; a subscriber with a full buffer misses
// the message.
func (d *RealtimeDispatcher) Publish(message RealtimeMessage) {
	if message.ChannelID == "" || message.EventType == "" {
		return
	}
	d.mu.RLock()
	subscribers := d.subscribers[message.ChannelID]
	if len(subscribers) == 0 {
		d.mu.RUnlock()
		return
	}
	copies := make([]*realtimeSubscriber, 0, len(subscribers))
	for _, subscriber := range subscribers {
		copies = append(copies, subscriber)
	}
	d.mu.RUnlock()
	for _, subscriber := range copies {
		select {
		case subscriber.stream <- message:
		default:
		}
	}
}

// SubscriberCount reports the number of live subscribers for a channel.
func (d *RealtimeDispatcher) SubscriberCount(channelID string) int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.subscribers[channelID])
}

func (d *RealtimeDispatcher) nextSequence() int64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.nextID++
	return d.nextID
}

func (d *RealtimeDispatcher) registerSubscriber(channelID string, subscriber *realtimeSubscriber) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.subscribers[channelID]; !ok {
		d.subscribers[channelID] = make(map[int64]*realtimeSubscriber)
	}
	d.subscribers[channelID][subscriber.id] = subscriber
}

func (d *RealtimeDispatcher) unregisterSubscriber(channelID string, subscriberID int64) {
	d.mu.Lock()
	subscribers := d.subscribers[channelID]
	if subscribers != nil {
		delete(subscribers, subscriberID)
		if len(subscribers) == 0 {
			delete(d.subscribers, channelID)
		}
	}
	d.mu.Unlock()
}
