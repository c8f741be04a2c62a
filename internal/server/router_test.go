package server

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/MarcoPoloResearchLab/sortie/internal/auth"
	"github.com/MarcoPoloResearchLab/sortie/internal/board"
	"github.com/MarcoPoloResearchLab/sortie/internal/ids"
	"github.com/MarcoPoloResearchLab/sortie/internal/store"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fixture struct {
	boards     *board.Service
	tokens     *auth.TokenIssuer
	dispatcher *RealtimeDispatcher
	handler    http.Handler
}

type staticNames map[string]string

func (n staticNames) DisplayName(_ context.Context, userID string) string {
	if name, ok := n[userID]; ok {
		return name
	}
	return userID
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dispatcher := NewRealtimeDispatcher()
	boards, err := board.NewService(board.ServiceConfig{
		Store:      store.NewMemoryStore(),
		IDProvider: ids.NewUUIDProvider(),
		Observer:   dispatcher,
	})
	require.NoError(t, err)

	tokens, err := auth.NewTokenIssuer(auth.TokenIssuerConfig{
		SigningSecret: []byte("test-signing-secret"),
		Issuer:        "sortie",
		TokenTTL:      time.Minute,
	})
	require.NoError(t, err)

	handler, err := NewHTTPHandler(Dependencies{
		Boards:            boards,
		Tokens:            tokens,
		Users:             staticNames{"owner-1": "Commander"},
		Realtime:          dispatcher,
		Logger:            zap.NewNop(),
		HeartbeatInterval: time.Hour,
	})
	require.NoError(t, err)

	return fixture{boards: boards, tokens: tokens, dispatcher: dispatcher, handler: handler}
}

func (f fixture) token(t *testing.T, channelID string) string {
	t.Helper()
	token, _, err := f.tokens.IssueSpectatorToken(context.Background(), channelID)
	require.NoError(t, err)
	return token
}

func TestNewHTTPHandlerRequiresDependencies(t *testing.T) {
	_, err := NewHTTPHandler(Dependencies{})
	require.ErrorIs(t, err, errMissingBoards)
}

func TestHealthz(t *testing.T) {
	f := newFixture(t)
	recorder := httptest.NewRecorder()
	f.handler.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/healthz", http.NoBody))
	assert.Equal(t, http.StatusOK, recorder.Code)
}

func TestBoardEndpointServesCommittedProjection(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.boards.Create(ctx, "chan-1", "owner-1", 5, board.ModeBattle)
	require.NoError(t, err)
	alpha, err := f.boards.AddParticipant(ctx, "chan-1", "Alpha")
	require.NoError(t, err)
	_, err = f.boards.AddParticipant(ctx, "chan-1", "Bravo")
	require.NoError(t, err)
	_, err = f.boards.SetMove(ctx, "chan-1", alpha.ID, 4)
	require.NoError(t, err)
	_, err = f.boards.SetReservationFields(ctx, "chan-1", alpha.ID, board.ReservationFields{ArtsNo: board.Some(3)})
	require.NoError(t, err)

	request := httptest.NewRequest(http.MethodGet, "/boards/chan-1", http.NoBody)
	request.Header.Set("Authorization", "Bearer "+f.token(t, "chan-1"))
	recorder := httptest.NewRecorder()
	f.handler.ServeHTTP(recorder, request)

	require.Equal(t, http.StatusOK, recorder.Code)
	body := recorder.Body.String()
	assert.NotContains(t, body, "tmp")
	assert.NotContains(t, body, "artsNo")

	var payload struct {
		ChannelID string `json:"channelId"`
		OwnerName string `json:"ownerName"`
		Ready     int    `json:"ready"`
		Total     int    `json:"total"`
		Cells     []struct {
			Pos   int      `json:"pos"`
			Names []string `json:"names"`
		} `json:"cells"`
	}
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &payload))
	assert.Equal(t, "chan-1", payload.ChannelID)
	assert.Equal(t, "Commander", payload.OwnerName)
	assert.Equal(t, 1, payload.Ready)
	assert.Equal(t, 2, payload.Total)
	require.Len(t, payload.Cells, 5)
	for _, cell := range payload.Cells {
		assert.Empty(t, cell.Names, "staged move must not be visible at %d", cell.Pos)
	}
}

func TestBoardEndpointAuthorization(t *testing.T) {
	f := newFixture(t)
	_, err := f.boards.Create(context.Background(), "chan-1", "owner-1", 3, board.ModeFree)
	require.NoError(t, err)

	testCases := []struct {
		name   string
		path   string
		status int
	}{
		{name: "missing token", path: "/boards/chan-1", status: http.StatusUnauthorized},
		{name: "garbage token", path: "/boards/chan-1?access_token=nope", status: http.StatusUnauthorized},
		{name: "other channel", path: "/boards/chan-1?access_token=" + f.token(t, "chan-2"), status: http.StatusForbidden},
		{name: "query token", path: "/boards/chan-1?access_token=" + f.token(t, "chan-1"), status: http.StatusOK},
		{name: "missing board", path: "/boards/chan-9?access_token=" + f.token(t, "chan-9"), status: http.StatusNotFound},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			recorder := httptest.NewRecorder()
			f.handler.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, tc.path, http.NoBody))
			assert.Equal(t, tc.status, recorder.Code)
		})
	}
}

func TestCORSPreflight(t *testing.T) {
	f := newFixture(t)
	request := httptest.NewRequest(http.MethodOptions, "/boards/chan-1", http.NoBody)
	request.Header.Set("Origin", "https://viewer.example.com")
	request.Header.Set("Access-Control-Request-Method", http.MethodGet)
	request.Header.Set("Access-Control-Request-Headers", "Authorization")

	recorder := httptest.NewRecorder()
	f.handler.ServeHTTP(recorder, request)

	assert.Equal(t, http.StatusNoContent, recorder.Code)
	assert.Contains(t, strings.ToLower(recorder.Header().Get("Access-Control-Allow-Headers")), "authorization")
}

type sseEvent struct {
	name string
	data string
}

func readEvent(t *testing.T, reader *bufio.Reader) sseEvent {
	t.Helper()
	type result struct {
		event sseEvent
		err   error
	}
	resultCh := make(chan result, 1)
	go func() {
		var event sseEvent
		for {
			line, err := reader.ReadString('\n')
			if err != nil {
				resultCh <- result{err: err}
				return
			}
			line = strings.TrimRight(line, "\r\n")
			switch {
			case line == "":
				if event.name != "" {
					resultCh <- result{event: event}
					return
				}
			case strings.HasPrefix(line, "event:"):
				event.name = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
			case strings.HasPrefix(line, "data:"):
				event.data = strings.TrimSpace(strings.TrimPrefix(line, "data:"))
			}
		}
	}()
	select {
	case res := <-resultCh:
		require.NoError(t, res.err)
		return res.event
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for stream event")
		return sseEvent{}
	}
}

func TestStreamPushesUpdatesAndReveals(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.boards.Create(ctx, "chan-1", "owner-1", 5, board.ModeBattle)
	require.NoError(t, err)
	alpha, err := f.boards.AddParticipant(ctx, "chan-1", "Alpha")
	require.NoError(t, err)

	server := httptest.NewServer(f.handler)
	t.Cleanup(server.Close)

	response, err := http.Get(server.URL + "/boards/chan-1/stream?access_token=" + f.token(t, "chan-1"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = response.Body.Close() })
	require.Equal(t, http.StatusOK, response.StatusCode)
	reader := bufio.NewReader(response.Body)

	initial := readEvent(t, reader)
	assert.Equal(t, RealtimeEventBoardUpdate, initial.name)

	require.Eventually(t, func() bool { return f.dispatcher.SubscriberCount("chan-1") == 1 }, time.Second, 10*time.Millisecond)

	_, err = f.boards.Confirm(ctx, board.ConfirmRequest{
		ChannelID:     "chan-1",
		ParticipantID: alpha.ID,
		Pos:           2,
		Fields:        board.ReservationFields{ArtsNo: board.Some(1), TargetID: board.None[string]()},
	})
	require.NoError(t, err)

	reveal := readEvent(t, reader)
	assert.Equal(t, RealtimeEventBattleReveal, reveal.name)
	assert.Contains(t, reveal.data, `"name":"Alpha"`)
	assert.Contains(t, reveal.data, `"target":"none"`)

	update := readEvent(t, reader)
	assert.Equal(t, RealtimeEventBoardUpdate, update.name)
	var envelope struct {
		ChannelID string `json:"channelId"`
		Data      struct {
			Cells []struct {
				Pos   int      `json:"pos"`
				Names []string `json:"names"`
			} `json:"cells"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(update.data), &envelope))
	assert.Equal(t, "chan-1", envelope.ChannelID)
	require.Len(t, envelope.Data.Cells, 5)
	assert.Equal(t, []string{"Alpha"}, envelope.Data.Cells[1].Names)
}

func TestWebsocketPushesBoardUpdates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.boards.Create(ctx, "chan-1", "owner-1", 3, board.ModeFree)
	require.NoError(t, err)

	server := httptest.NewServer(f.handler)
	t.Cleanup(server.Close)

	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/boards/chan-1/ws?access_token=" + f.token(t, "chan-1")
	conn, response, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	require.Equal(t, http.StatusSwitchingProtocols, response.StatusCode)

	var initial eventPayload
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	require.NoError(t, conn.ReadJSON(&initial))
	assert.Equal(t, RealtimeEventBoardUpdate, initial.Type)

	require.Eventually(t, func() bool { return f.dispatcher.SubscriberCount("chan-1") == 1 }, time.Second, 10*time.Millisecond)

	_, err = f.boards.AddParticipant(ctx, "chan-1", "Charlie")
	require.NoError(t, err)

	var update struct {
		Type string `json:"type"`
		Data struct {
			Total int `json:"total"`
		} `json:"data"`
	}
	require.NoError(t, conn.ReadJSON(&update))
	assert.Equal(t, RealtimeEventBoardUpdate, update.Type)
	assert.Equal(t, 1, update.Data.Total)
}

func TestWebsocketRejectsForeignToken(t *testing.T) {
	f := newFixture(t)
	_, err := f.boards.Create(context.Background(), "chan-1", "owner-1", 3, board.ModeFree)
	require.NoError(t, err)

	server := httptest.NewServer(f.handler)
	t.Cleanup(server.Close)

	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/boards/chan-1/ws?access_token=" + f.token(t, "chan-2")
	_, response, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, response)
	assert.Equal(t, http.StatusForbidden, response.StatusCode)
}
