package client_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"medchat/internal/chatui"
	"medchat/internal/chatview"
	"medchat/internal/client"
	"medchat/internal/config"
	"medchat/internal/models"
	"medchat/internal/notify"
	"medchat/internal/server"
	"medchat/internal/session"
)

func startAPI(t *testing.T) string {
	t.Helper()
	gin.SetMode(gin.TestMode)
	cfg := &config.ServerConfig{JWTSecret: "integration", TokenMaxAge: time.Hour, LoginRatePerMinute: 100}
	srv, err := server.New(context.Background(), cfg, zap.NewNop(), server.WithPasswordCost(bcrypt.MinCost))
	require.NoError(t, err)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		ts.Close()
		_ = srv.Shutdown(context.Background())
	})
	return ts.URL + "/api"
}

func signIn(t *testing.T, baseURL, username, password string) (*client.Transport, *session.AuthManager) {
	t.Helper()
	sess, err := session.Open("", zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = sess.Close() })

	tr := client.New(baseURL, sess)
	_, err = tr.Login(context.Background(), username, password)
	require.NoError(t, err)
	require.True(t, sess.IsAuthenticated())
	return tr, sess
}

func TestTransportAgainstServer(t *testing.T) {
	base := startAPI(t)
	ctx := context.Background()
	doctor, docSess := signIn(t, base, "dr_grey", "doctor123")
	patient, annSess := signIn(t, base, "patient_ann", "patient123")

	sent, err := doctor.SendMessage(ctx, annSess.UserID(), "How are you feeling today?")
	require.NoError(t, err)
	assert.NotZero(t, sent.ID)
	assert.Equal(t, models.StateSent, sent.State)

	msgs, err := patient.FetchMessages(ctx, docSess.UserID())
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, sent.ID, msgs[0].ID)

	require.NoError(t, patient.SendTyping(ctx, docSess.UserID(), true))

	receipt, err := patient.MarkDelivered(ctx, sent.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StateDelivered, receipt.State)

	convs, err := doctor.Conversations(ctx)
	require.NoError(t, err)
	require.Len(t, convs, 1)
	assert.Equal(t, "patient_ann", convs[0].OtherUsername)

	_, err = doctor.ChatLogs(ctx)
	var valErr *client.ValidationError
	require.True(t, errors.As(err, &valErr), "got %v", err)
	assert.Equal(t, http.StatusForbidden, valErr.StatusCode)
	assert.False(t, client.Retryable(err))

	require.NoError(t, patient.Logout(ctx))
	assert.False(t, annSess.IsAuthenticated())
	_, err = patient.FetchMessages(ctx, docSess.UserID())
	var authErr *client.AuthError
	assert.True(t, errors.As(err, &authErr))
}

func TestRejectedSendSurfacesServerText(t *testing.T) {
	base := startAPI(t)
	bob, _ := signIn(t, base, "patient_bob", "patient123")
	_, docSess := signIn(t, base, "dr_grey", "doctor123")

	_, err := bob.SendMessage(context.Background(), docSess.UserID(), "hello?")
	var valErr *client.ValidationError
	require.True(t, errors.As(err, &valErr))
	assert.Equal(t, "Invalid chat relationship", client.UserMessage(err))
}

func TestChatRoundTrip(t *testing.T) {
	base := startAPI(t)
	doctor, docSess := signIn(t, base, "dr_grey", "doctor123")
	patient, annSess := signIn(t, base, "patient_ann", "patient123")

	toasts := notify.NewToastManager(notify.WithDuration(time.Hour))
	t.Cleanup(toasts.Close)

	view := chatview.New()
	chat := chatui.New(chatui.Config{
		Transport:     patient,
		Session:       annSess,
		View:          view,
		Notifier:      toasts,
		PollInterval:  20 * time.Millisecond,
		TypingTimeout: time.Hour,
	})
	chat.OpenConversation(docSess.UserID(), "dr_grey")
	t.Cleanup(chat.CloseConversation)

	chat.InputChanged("I feel better")
	require.NoError(t, chat.SendCurrentInput(context.Background(), "I feel better"))
	assert.Equal(t, "", chat.Draft())

	_, err := doctor.SendMessage(context.Background(), annSess.UserID(), "Glad to hear it")
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		entries := view.Snapshot()
		return len(entries) == 2 && entries[0].Own && !entries[1].Own && entries[1].Body == "Glad to hear it"
	}, 2*time.Second, 10*time.Millisecond)

	for _, e := range view.Snapshot() {
		assert.NotEqual(t, chatview.StatePending, e.State)
	}
}
