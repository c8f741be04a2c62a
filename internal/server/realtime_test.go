package server

import (
	"context"
	"testing"
	"time"

	"github.com/MarcoPoloResearchLab/sortie/internal/board"
)

func TestRealtimeDispatcherPublishesToSubscriber(t *testing.T) {
	dispatcher := NewRealtimeDispatcher()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stream, cleanup := dispatcher.Subscribe(ctx, "chan-1")
	defer cleanup()

	dispatcher.BoardChanged(board.Event{
		Type:      board.EventBoardUpdate,
		ChannelID: "chan-1",
		State:     board.State{ChannelID: "chan-1", Size: 2, Mode: board.ModeFree},
	})

	select {
	case received := <-stream:
		if received.EventType != RealtimeEventBoardUpdate {
			t.Fatalf("expected event type %s, got %s", RealtimeEventBoardUpdate, received.EventType)
		}
		view, ok := received.Data.(board.View)
		if !ok {
			t.Fatalf("expected board view payload, got %T", received.Data)
		}
		if len(view.Cells) != 2 {
			t.Fatalf("expected 2 cells, got %d", len(view.Cells))
		}
	case <-time.After(500 * time.Millisecond):
		t.Fatal("expected realtime message within deadline")
	}
}

func TestRealtimeDispatcherIsolatedByChannel(t *testing.T) {
	dispatcher := NewRealtimeDispatcher()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	channelStream, cleanup := dispatcher.Subscribe(ctx, "chan-2")
	defer cleanup()
	otherStream, otherCleanup := dispatcher.Subscribe(ctx, "chan-3")
	defer otherCleanup()

	dispatcher.BoardChanged(board.Event{
		Type:      board.EventBattleReveal,
		ChannelID: "chan-3",
		Reveal:    &board.Reveal{ChannelID: "chan-3"},
	})

	select {
	case <-channelStream:
		t.Fatal("did not expect message for a different channel")
	case <-time.After(100 * time.Millisecond):
	}

	select {
	case received := <-otherStream:
		if received.EventType != RealtimeEventBattleReveal {
			t.Fatalf("unexpected event type %s", received.EventType)
		}
	case <-time.After(500 * time.Millisecond):
		t.Fatal("expected reveal for subscribed channel")
	}
}

func TestRealtimeDispatcherDropsRevealWithoutTranscript(t *testing.T) {
	dispatcher := NewRealtimeDispatcher()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stream, cleanup := dispatcher.Subscribe(ctx, "chan-1")
	defer cleanup()

	dispatcher.BoardChanged(board.Event{Type: board.EventBattleReveal, ChannelID: "chan-1"})

	select {
	case <-stream:
		t.Fatal("did not expect an empty reveal")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestRealtimeDispatcherCleanupOnCancel(t *testing.T) {
	dispatcher := NewRealtimeDispatcher()
	ctx, cancel := context.WithCancel(context.Background())

	_, cleanup := dispatcher.Subscribe(ctx, "chan-1")
	if dispatcher.SubscriberCount("chan-1") != 1 {
		t.Fatalf("expected one subscriber")
	}
	cancel()

	deadline := time.Now().Add(time.Second)
	for dispatcher.SubscriberCount("chan-1") != 0 {
		if time.Now().After(deadline) {
			t.Fatal("expected subscriber to be removed after cancel")
		}
		time.Sleep(5 * time.Millisecond)
	}
	cleanup()
}
