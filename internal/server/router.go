// Package server exposes a read-only spectator API for coordinate boards.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/MarcoPoloResearchLab/sortie/internal/auth"
	"github.com/MarcoPoloResearchLab/sortie/internal/board"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	channelIDContextKey      = "sortie_channel_id"
	defaultHeartbeatInterval = 25 * time.Second
	websocketWriteTimeout    = 10 * time.Second
)

var (
	errMissingBoards   = errors.New("board reader dependency required")
	errMissingTokens   = errors.New("token validator dependency required")
	errMissingRealtime = errors.New("realtime dispatcher dependency required")
)

// BoardReader loads the committed board for a channel.
type BoardReader interface {
	Get(ctx context.Context, channelID string) (board.State, error)
}

// TokenValidator resolves a spectator token to the channel it grants.
type TokenValidator interface {
	ValidateToken(token string) (string, error)
}

// DisplayNamer resolves a user id to a human label.
type DisplayNamer interface {
	DisplayName(ctx context.Context, userID string) string
}

type Dependencies struct {
	Boards            BoardReader
	Tokens            TokenValidator
	Users             DisplayNamer
	Realtime          *RealtimeDispatcher
	Logger            *zap.Logger
	HeartbeatInterval time.Duration
}

func NewHTTPHandler(deps Dependencies) (http.Handler, error) {
	if deps.Boards == nil {
		return nil, errMissingBoards
	}
	if deps.Tokens == nil {
		return nil, errMissingTokens
	}
	if deps.Realtime == nil {
		return nil, errMissingRealtime
	}

	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	heartbeat := deps.HeartbeatInterval
	if heartbeat <= 0 {
		heartbeat = defaultHeartbeatInterval
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(corsMiddleware())

	handler := &httpHandler{
		boards:    deps.Boards,
		tokens:    deps.Tokens,
		users:     deps.Users,
		realtime:  deps.Realtime,
		logger:    logger,
		heartbeat: heartbeat,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}

	router.GET("/healthz", handler.handleHealth)

	boards := router.Group("/boards/:channelId")
	boards.Use(handler.authorizeChannel)
	boards.GET("", handler.handleBoard)
	boards.GET("/stream", handler.handleStream)
	boards.GET("/ws", handler.handleWebsocket)

	return router, nil
}

func corsMiddleware() gin.HandlerFunc {
	return cors.New(cors.Config{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{http.MethodGet, http.MethodOptions},
		AllowHeaders: []string{"Authorization", "Content-Type"},
		MaxAge:       12 * time.Hour,
	})
}

type httpHandler struct {
	boards    BoardReader
	tokens    TokenValidator
	users     DisplayNamer
	realtime  *RealtimeDispatcher
	logger    *zap.Logger
	heartbeat time.Duration
	upgrader  websocket.Upgrader
}

// boardResponsePayload is the committed projection of a board. Staged moves
// and reservations never appear here; only the ready count does.
type boardResponsePayload struct {
	board.View
	OwnerID   string `json:"ownerId"`
	OwnerName string `json:"ownerName"`
}

type eventPayload struct {
	Type      string `json:"type,omitempty"`
	ChannelID string `json:"channelId"`
	Source    string `json:"source"`
	Timestamp string `json:"timestamp"`
	Data      any    `json:"data,omitempty"`
}

func (h *httpHandler) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *httpHandler) handleBoard(c *gin.Context) {
	channelID := c.GetString(channelIDContextKey)
	state, ok := h.loadBoard(c, channelID)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, h.projection(c.Request.Context(), state))
}

func (h *httpHandler) handleStream(c *gin.Context) {
	channelID := c.GetString(channelIDContextKey)
	state, ok := h.loadBoard(c, channelID)
	if !ok {
		return
	}

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()
	stream, cleanup := h.realtime.Subscribe(ctx, channelID)
	defer cleanup()

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)

	c.SSEvent(RealtimeEventBoardUpdate, h.envelope("", channelID, time.Now().UTC(), board.Render(state)))
	c.Writer.Flush()

	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case message, open := <-stream:
			if !open {
				return
			}
			c.SSEvent(message.EventType, h.envelope("", channelID, message.Timestamp, message.Data))
			c.Writer.Flush()
		case tick := <-ticker.C:
			c.SSEvent(realtimeEventHeartbeat, h.envelope("", channelID, tick.UTC(), nil))
			c.Writer.Flush()
		}
	}
}

func (h *httpHandler) handleWebsocket(c *gin.Context) {
	channelID := c.GetString(channelIDContextKey)
	state, ok := h.loadBoard(c, channelID)
	if !ok {
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.String("channel_id", channelID), zap.Error(err))
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()
	stream, cleanup := h.realtime.Subscribe(ctx, channelID)
	defer cleanup()

	// Spectators never send anything meaningful; reading only detects close.
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	write := func(payload eventPayload) bool {
		_ = conn.SetWriteDeadline(time.Now().Add(websocketWriteTimeout))
		if err := conn.WriteJSON(payload); err != nil {
			h.logger.Debug("websocket write failed", zap.String("channel_id", channelID), zap.Error(err))
			return false
		}
		return true
	}

	if !write(h.envelope(RealtimeEventBoardUpdate, channelID, time.Now().UTC(), board.Render(state))) {
		return
	}

	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(time.Second))
			return
		case message, open := <-stream:
			if !open {
				return
			}
			if !write(h.envelope(message.EventType, channelID, message.Timestamp, message.Data)) {
				return
			}
		case tick := <-ticker.C:
			if !write(h.envelope(realtimeEventHeartbeat, channelID, tick.UTC(), nil)) {
				return
			}
		}
	}
}

func (h *httpHandler) authorizeChannel(c *gin.Context) {
	token := auth.TokenFromRequest(c.Request)
	if token == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	subject, err := h.tokens.ValidateToken(token)
	if err != nil {
		h.logger.Warn("token validation failed", zap.Error(err))
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	channelID := c.Param("channelId")
	if subject != channelID {
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "forbidden"})
		return
	}
	c.Set(channelIDContextKey, channelID)
	c.Next()
}

func (h *httpHandler) loadBoard(c *gin.Context, channelID string) (board.State, bool) {
	state, err := h.boards.Get(c.Request.Context(), channelID)
	if errors.Is(err, board.ErrBoardNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "board_not_found"})
		return board.State{}, false
	}
	if err != nil {
		h.logger.Error("failed to load board", zap.String("channel_id", channelID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "board_load_failed"})
		return board.State{}, false
	}
	return state, true
}

func (h *httpHandler) projection(ctx context.Context, state board.State) boardResponsePayload {
	ownerName := state.OwnerID
	if h.users != nil && state.OwnerID != "" {
		ownerName = h.users.DisplayName(ctx, state.OwnerID)
	}
	return boardResponsePayload{
		View:      board.Render(state),
		OwnerID:   state.OwnerID,
		OwnerName: ownerName,
	}
}

func (h *httpHandler) envelope(eventType, channelID string, timestamp time.Time, data any) eventPayload {
	return eventPayload{
		Type:      eventType,
		ChannelID: channelID,
		Source:    realtimeSourceBackend,
		Timestamp: timestamp.Format(time.RFC3339),
		Data:      data,
	}
}
