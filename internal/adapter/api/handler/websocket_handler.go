package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	gorillaws "github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"clipfolio/internal/adapter/api/middleware"
	"clipfolio/internal/infrastructure/realtime"
	ws "clipfolio/internal/infrastructure/websocket"
	"clipfolio/internal/usecase"
	"clipfolio/pkg/errors"
)

type WebSocketHandler struct {
	wsManager        *ws.Manager
	authMiddleware   *middleware.AuthMiddleware
	messagingUseCase *usecase.MessagingUseCase
	feed             *realtime.Feed
	pageSize         int
	rescanEvery      time.Duration
}

var upgrader = gorillaws.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // TODO: restrict to the web client's origin once it is fixed
	},
}

func NewWebSocketHandler(
	wsManager *ws.Manager,
	authMiddleware *middleware.AuthMiddleware,
	messagingUseCase *usecase.MessagingUseCase,
	feed *realtime.Feed,
	pageSize int,
	rescanEvery time.Duration,
) *WebSocketHandler {
	return &WebSocketHandler{
		wsManager:        wsManager,
		authMiddleware:   authMiddleware,
		messagingUseCase: messagingUseCase,
		feed:             feed,
		pageSize:         pageSize,
		rescanEvery:      rescanEvery,
	}
}

// HandleWebSocket authenticates, upgrades the connection, and starts the
// caller's messaging session. One session per connection; a newer connection
// replaces the old one.
func (h *WebSocketHandler) HandleWebSocket(c echo.Context) error {
	userID, err := h.authenticate(c)
	if err != nil {
		return err
	}

	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return errors.Internal("Failed to upgrade connection", err)
	}

	client := &ws.Client{
		UserID: userID,
		Conn:   conn,
		Send:   make(chan []byte, 256),
	}

	session := usecase.NewSession(
		userID,
		h.messagingUseCase,
		h.feed,
		func(payload []byte) { h.wsManager.SendToUser(userID, payload) },
		h.pageSize,
		h.rescanEvery,
	)

	sessionCtx, cancel := context.WithCancel(context.Background())
	client.OnMessage = func(data []byte) {
		session.HandleCommand(sessionCtx, data)
	}
	client.OnClose = func() {
		cancel()
		session.Close()
	}

	h.wsManager.Register <- client

	go session.Run(sessionCtx)
	go client.ReadPump(h.wsManager)
	go client.WritePump()

	return nil
}

// authenticate accepts a bearer header or a ?token= query parameter;
// browser WebSocket clients cannot set headers.
func (h *WebSocketHandler) authenticate(c echo.Context) (string, error) {
	token := c.QueryParam("token")
	if token == "" {
		authHeader := c.Request().Header.Get("Authorization")
		parts := strings.Split(authHeader, " ")
		if len(parts) == 2 && parts[0] == "Bearer" {
			token = parts[1]
		}
	}
	if token == "" {
		return "", errors.Unauthorized("Authentication required", nil)
	}

	userID, err := h.authMiddleware.GetUIDFromToken(c.Request().Context(), token)
	if err != nil {
		return "", errors.Unauthorized("Invalid or expired token", err)
	}

	return userID, nil
}
