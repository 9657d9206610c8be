package websocket

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	gws "github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"medchat/internal/models"
	"medchat/internal/utils"
)

func TestTypingFanOut(t *testing.T) {
	gin.SetMode(gin.TestMode)
	jwtManager, err := utils.NewJWTManager("secret", time.Hour)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	hub := NewHub(zap.NewNop())
	go hub.Run(ctx)

	r := gin.New()
	r.GET("/ws", NewWSHandler(hub, jwtManager, nil).HandleWebSocketConnection)
	srv := httptest.NewServer(r)
	defer srv.Close()
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"

	_, resp, err := gws.DefaultDialer.Dial(wsURL, nil)
	require.Error(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	token, err := jwtManager.GenerateJWT(&models.User{ID: 42, Role: models.RoleUser})
	require.NoError(t, err)
	conn, _, err := gws.DefaultDialer.Dial(wsURL+"?token="+token, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return hub.Connections(42) == 1 }, time.Second, 5*time.Millisecond)

	hub.NotifyUser(7, MessageTypeTypingIndicator, TypingIndicatorPayload{UserID: 1, IsTyping: true})
	hub.NotifyUser(42, MessageTypeTypingIndicator, TypingIndicatorPayload{UserID: 7, IsTyping: true})

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var got struct {
		Type    string                 `json:"type"`
		Payload TypingIndicatorPayload `json:"payload"`
	}
	require.NoError(t, conn.ReadJSON(&got))
	assert.Equal(t, MessageTypeTypingIndicator, got.Type)
	assert.Equal(t, int64(7), got.Payload.UserID)
	assert.True(t, got.Payload.IsTyping)

	conn.Close()
	require.Eventually(t, func() bool { return hub.Connections(42) == 0 }, time.Second, 5*time.Millisecond)
}

func TestStoppedHubRefusesConnections(t *testing.T) {
	gin.SetMode(gin.TestMode)
	jwtManager, err := utils.NewJWTManager("secret", time.Hour)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	hub := NewHub(zap.NewNop())
	go hub.Run(ctx)

	r := gin.New()
	r.GET("/ws", NewWSHandler(hub, jwtManager, nil).HandleWebSocketConnection)
	srv := httptest.NewServer(r)
	defer srv.Close()
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	token, err := jwtManager.GenerateJWT(&models.User{ID: 42, Role: models.RoleUser})
	require.NoError(t, err)

	open, _, err := gws.DefaultDialer.Dial(wsURL+"?token="+token, nil)
	require.NoError(t, err)
	defer open.Close()
	require.Eventually(t, func() bool { return hub.Connections(42) == 1 }, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case <-hub.Done():
	case <-time.After(time.Second):
		t.Fatal("hub did not stop")
	}

	// Open connections are closed by the stopped hub.
	require.NoError(t, open.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err = open.ReadMessage()
	require.Error(t, err)
	assert.False(t, isTimeout(err), "connection left open: %v", err)

	// A handshake after shutdown is closed instead of blocking the handler.
	late, _, err := gws.DefaultDialer.Dial(wsURL+"?token="+token, nil)
	require.NoError(t, err)
	defer late.Close()
	require.NoError(t, late.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err = late.ReadMessage()
	assert.True(t, gws.IsCloseError(err, gws.CloseGoingAway), "got %v", err)
	assert.Equal(t, 0, hub.Connections(42))
}

func isTimeout(err error) bool {
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
