package chatui

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"medchat/internal/chatview"
	"medchat/internal/client"
	"medchat/internal/metrics"
	"medchat/internal/models"
	"medchat/internal/notify"
)

const me = int64(7)

type typingCall struct {
	peer   int64
	typing bool
}

type fakeTransport struct {
	mu       sync.Mutex
	history  map[int64][]models.Message
	fetchErr error
	sendErr  error
	nextID   int64
	fetches  map[int64]int
	typing   []typingCall
	sendHook func()
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{history: map[int64][]models.Message{}, fetches: map[int64]int{}, nextID: 900}
}

func (f *fakeTransport) FetchMessages(ctx context.Context, peerID int64) ([]models.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetches[peerID]++
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	return append([]models.Message(nil), f.history[peerID]...), nil
}

func (f *fakeTransport) SendMessage(ctx context.Context, receiverID int64, body string) (*models.Message, error) {
	if f.sendHook != nil {
		f.sendHook()
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return nil, f.sendErr
	}
	f.nextID++
	m := models.Message{ID: f.nextID, SenderID: me, ReceiverID: receiverID, Body: body, State: models.StateSent,
		CreatedAt: models.JSONTime(time.Now())}
	f.history[receiverID] = append(f.history[receiverID], m)
	return &m, nil
}

func (f *fakeTransport) SendTyping(ctx context.Context, receiverID int64, isTyping bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.typing = append(f.typing, typingCall{receiverID, isTyping})
	return nil
}

func (f *fakeTransport) fetchCount(peer int64) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fetches[peer]
}

func (f *fakeTransport) typingCalls() []typingCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]typingCall(nil), f.typing...)
}

type fakeSession struct{}

func (fakeSession) UserID() int64 { return me }

type fakeNotifier struct {
	mu     sync.Mutex
	toasts []notify.Toast
}

func (n *fakeNotifier) Show(kind notify.Kind, text string) string {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.toasts = append(n.toasts, notify.Toast{Kind: kind, Text: text})
	return ""
}

func (n *fakeNotifier) all() []notify.Toast {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]notify.Toast(nil), n.toasts...)
}

type harness struct {
	chat      *Chat
	transport *fakeTransport
	notifier  *fakeNotifier
	view      *chatview.View
	metrics   *metrics.Client
}

func newHarness(t *testing.T, mutate func(*Config)) *harness {
	t.Helper()
	h := &harness{
		transport: newFakeTransport(),
		notifier:  &fakeNotifier{},
		view:      chatview.New(),
		metrics:   metrics.NewClient(prometheus.NewRegistry()),
	}
	cfg := Config{
		Transport:     h.transport,
		Session:       fakeSession{},
		View:          h.view,
		Notifier:      h.notifier,
		Metrics:       h.metrics,
		PollInterval:  time.Hour,
		TypingTimeout: 30 * time.Millisecond,
	}
	if mutate != nil {
		mutate(&cfg)
	}
	h.chat = New(cfg)
	t.Cleanup(h.chat.CloseConversation)
	return h
}

func TestOpenConversationRendersHistory(t *testing.T) {
	h := newHarness(t, nil)
	h.transport.history[42] = []models.Message{
		{ID: 1, SenderID: 42, ReceiverID: me, Body: "a"},
		{ID: 2, SenderID: me, ReceiverID: 42, Body: "b"},
		{ID: 3, SenderID: 42, ReceiverID: me, Body: "c"},
	}

	h.chat.OpenConversation(42, "Dr. Grey")
	assert.Equal(t, "Chat with Dr. Grey", h.chat.Title())
	require.Eventually(t, func() bool { return len(h.view.Snapshot()) == 3 }, time.Second, 5*time.Millisecond)

	rows := h.view.Snapshot()
	assert.False(t, rows[0].Own)
	assert.True(t, rows[1].Own)
	assert.Equal(t, int64(42), h.chat.Peer())
}

func TestPollingPicksUpNewMessage(t *testing.T) {
	h := newHarness(t, func(c *Config) { c.PollInterval = 10 * time.Millisecond })
	h.transport.mu.Lock()
	h.transport.history[42] = []models.Message{{ID: 1, SenderID: 42, Body: "a"}, {ID: 2, SenderID: 42, Body: "b"}, {ID: 3, SenderID: me, Body: "c"}}
	h.transport.mu.Unlock()

	h.chat.OpenConversation(42, "pat")
	require.Eventually(t, func() bool { return len(h.view.Snapshot()) == 3 }, time.Second, 2*time.Millisecond)

	h.transport.mu.Lock()
	h.transport.history[42] = append(h.transport.history[42], models.Message{ID: 4, SenderID: 42, Body: "d"})
	h.transport.mu.Unlock()

	require.Eventually(t, func() bool { return len(h.view.Snapshot()) == 4 }, time.Second, 2*time.Millisecond)
	assert.Equal(t, "msg-4", h.view.Snapshot()[3].ElementID)
}

func TestSendSuccess(t *testing.T) {
	h := newHarness(t, func(c *Config) { c.TypingTimeout = time.Hour })
	h.chat.OpenConversation(42, "pat")
	require.Eventually(t, func() bool { return h.view.Empty() && h.transport.fetchCount(42) == 1 }, time.Second, 5*time.Millisecond)

	var pendingSeen bool
	h.transport.sendHook = func() {
		rows := h.view.Snapshot()
		pendingSeen = len(rows) == 1 && rows[0].State == chatview.StatePending && rows[0].Meta == chatview.SendingText
	}

	h.chat.InputChanged("  hello  ")
	require.NoError(t, h.chat.SendCurrentInput(context.Background(), "  hello  "))

	assert.True(t, pendingSeen, "optimistic entry shown before the server answers")
	rows := h.view.Snapshot()
	require.Len(t, rows, 1)
	assert.Equal(t, "msg-901", rows[0].ElementID)
	assert.Equal(t, "hello", rows[0].Body)
	assert.Equal(t, chatview.StateSent, rows[0].State)
	assert.Empty(t, h.chat.Draft())

	calls := h.transport.typingCalls()
	require.Len(t, calls, 2)
	assert.Equal(t, typingCall{42, true}, calls[0])
	assert.Equal(t, typingCall{42, false}, calls[1])

	toasts := h.notifier.all()
	require.Len(t, toasts, 1)
	assert.Equal(t, notify.Success, toasts[0].Kind)
	assert.Equal(t, 1.0, testutil.ToFloat64(h.metrics.MessagesSent))
}

func TestSendRejectedKeepsDraftAndMarksFailed(t *testing.T) {
	h := newHarness(t, nil)
	h.transport.sendErr = &client.ValidationError{StatusCode: http.StatusForbidden, Message: "blocked"}
	h.chat.OpenConversation(42, "pat")

	h.chat.InputChanged("hello")
	err := h.chat.SendCurrentInput(context.Background(), "hello")

	var v *client.ValidationError
	require.True(t, errors.As(err, &v))
	assert.Equal(t, "hello", h.chat.Draft())

	rows := h.view.Snapshot()
	require.Len(t, rows, 1)
	assert.Equal(t, chatview.StateFailed, rows[0].State)

	toasts := h.notifier.all()
	require.NotEmpty(t, toasts)
	last := toasts[len(toasts)-1]
	assert.Equal(t, notify.Error, last.Kind)
	assert.Contains(t, last.Text, "blocked")
	assert.Equal(t, 1.0, testutil.ToFloat64(h.metrics.SendFailures))
}

func TestSendFailureRemovePolicy(t *testing.T) {
	h := newHarness(t, func(c *Config) { c.Rollback = RollbackRemove })
	h.transport.sendErr = &client.NetworkError{Op: "POST /chat/send", Err: errors.New("connection refused")}
	h.chat.OpenConversation(42, "pat")
	require.Eventually(t, func() bool { return h.transport.fetchCount(42) == 1 }, time.Second, 5*time.Millisecond)

	err := h.chat.SendCurrentInput(context.Background(), "hello")
	assert.True(t, client.Retryable(err))
	assert.Empty(t, h.view.Snapshot())
	assert.True(t, h.view.Empty())
	assert.Equal(t, "hello", h.chat.Draft())
}

func TestSendFailureUnknownPolicyMarksFailed(t *testing.T) {
	h := newHarness(t, func(c *Config) { c.Rollback = RollbackPolicy(99) })
	h.transport.sendErr = &client.ValidationError{StatusCode: http.StatusBadRequest, Message: "blocked"}
	h.chat.OpenConversation(42, "pat")

	require.Error(t, h.chat.SendCurrentInput(context.Background(), "hello"))
	rows := h.view.Snapshot()
	require.Len(t, rows, 1)
	assert.Equal(t, chatview.StateFailed, rows[0].State)
	assert.Contains(t, rows[0].Meta, "blocked")
}

func TestSendDroppedWhenConversationSwitches(t *testing.T) {
	var (
		h        *harness
		armed    atomic.Bool
		switched atomic.Bool
	)
	view := chatview.New(chatview.OnChange(func() {
		if !armed.Load() {
			return
		}
		for _, row := range h.view.Snapshot() {
			if row.State == chatview.StatePending && switched.CompareAndSwap(false, true) {
				h.chat.OpenConversation(43, "bob")
				return
			}
		}
	}))
	h = newHarness(t, func(c *Config) { c.View = view })
	h.view = view

	h.chat.OpenConversation(42, "ann")
	require.Eventually(t, func() bool { return h.transport.fetchCount(42) == 1 }, time.Second, 5*time.Millisecond)

	armed.Store(true)
	err := h.chat.SendCurrentInput(context.Background(), "for ann")
	require.ErrorIs(t, err, ErrConversationChanged)

	assert.Equal(t, int64(43), h.chat.Peer())
	h.transport.mu.Lock()
	assert.Empty(t, h.transport.history[42], "nothing was sent to the old peer")
	h.transport.mu.Unlock()

	require.Eventually(t, func() bool { return h.transport.fetchCount(43) == 1 }, time.Second, 5*time.Millisecond)
	assert.Empty(t, h.view.Snapshot())
}

func TestSendWithExpiredSession(t *testing.T) {
	h := newHarness(t, nil)
	h.transport.sendErr = &client.AuthError{Message: "session expired"}
	h.chat.OpenConversation(42, "pat")

	require.Error(t, h.chat.SendCurrentInput(context.Background(), "hello"))
	toasts := h.notifier.all()
	require.NotEmpty(t, toasts)
	assert.Equal(t, "Your session has expired. Please log in again.", toasts[len(toasts)-1].Text)
}

func TestSendWithoutRecipient(t *testing.T) {
	h := newHarness(t, nil)

	err := h.chat.SendCurrentInput(context.Background(), "hello")
	assert.ErrorIs(t, err, ErrNoRecipient)
	toasts := h.notifier.all()
	require.Len(t, toasts, 1)
	assert.Equal(t, notify.Info, toasts[0].Kind)
	assert.Equal(t, "Please select a recipient first.", toasts[0].Text)
	assert.True(t, h.view.Empty())
}

func TestBlankInputIsIgnored(t *testing.T) {
	h := newHarness(t, nil)
	h.chat.OpenConversation(42, "pat")

	assert.NoError(t, h.chat.SendCurrentInput(context.Background(), "   \n\t"))
	assert.Empty(t, h.view.Snapshot())
	assert.Empty(t, h.notifier.all())
}

func TestTypingClearsAfterIdle(t *testing.T) {
	h := newHarness(t, func(c *Config) { c.TypingInterval = time.Hour })
	h.chat.OpenConversation(42, "pat")

	h.chat.InputChanged("h")
	h.chat.InputChanged("he")
	h.chat.InputChanged("hel")

	require.Eventually(t, func() bool { return len(h.transport.typingCalls()) == 2 }, time.Second, 5*time.Millisecond)
	calls := h.transport.typingCalls()
	assert.Equal(t, []typingCall{{42, true}, {42, false}}, calls)
	assert.Equal(t, "hel", h.chat.Draft())
}

func TestFirstFetchErrorNotifiedOnce(t *testing.T) {
	h := newHarness(t, func(c *Config) { c.PollInterval = 10 * time.Millisecond })
	h.transport.fetchErr = &client.NetworkError{Op: "GET /chat/messages/42", Err: errors.New("timeout")}

	h.chat.OpenConversation(42, "pat")
	require.Eventually(t, func() bool { return h.transport.fetchCount(42) >= 4 }, time.Second, 5*time.Millisecond)
	h.chat.CloseConversation()

	toasts := h.notifier.all()
	require.Len(t, toasts, 1)
	assert.Equal(t, notify.Error, toasts[0].Kind)
	assert.Contains(t, toasts[0].Text, "Failed to load messages")
}

func TestCloseStopsPollingAndClearsTyping(t *testing.T) {
	h := newHarness(t, func(c *Config) { c.PollInterval = 10 * time.Millisecond })
	h.chat.OpenConversation(42, "pat")
	require.Eventually(t, func() bool { return h.transport.fetchCount(42) >= 2 }, time.Second, 2*time.Millisecond)

	h.chat.CloseConversation()
	n := h.transport.fetchCount(42)
	time.Sleep(50 * time.Millisecond)

	assert.Equal(t, n, h.transport.fetchCount(42))
	assert.Equal(t, int64(0), h.chat.Peer())
	assert.Empty(t, h.chat.Title())
	calls := h.transport.typingCalls()
	require.NotEmpty(t, calls)
	assert.Equal(t, typingCall{42, false}, calls[len(calls)-1])

	h.chat.CloseConversation()
	assert.Len(t, h.transport.typingCalls(), len(calls), "second close sends nothing")
}

func TestSwitchingConversationStopsOldPoll(t *testing.T) {
	h := newHarness(t, func(c *Config) { c.PollInterval = 10 * time.Millisecond })
	h.transport.history[1] = []models.Message{{ID: 1, SenderID: 1, Body: "from one"}}
	h.transport.history[2] = []models.Message{{ID: 2, SenderID: 2, Body: "from two"}}

	h.chat.OpenConversation(1, "one")
	require.Eventually(t, func() bool { return h.transport.fetchCount(1) >= 1 }, time.Second, 2*time.Millisecond)
	h.chat.OpenConversation(2, "two")
	n := h.transport.fetchCount(1)

	require.Eventually(t, func() bool { return h.transport.fetchCount(2) >= 3 }, time.Second, 2*time.Millisecond)
	assert.Equal(t, n, h.transport.fetchCount(1))
	rows := h.view.Snapshot()
	require.Len(t, rows, 1)
	assert.Equal(t, "from two", rows[0].Body)
	assert.Equal(t, "Chat with two", h.chat.Title())
}

func TestRefresh(t *testing.T) {
	h := newHarness(t, nil)
	assert.ErrorIs(t, h.chat.Refresh(context.Background()), ErrNoRecipient)

	h.chat.OpenConversation(42, "pat")
	require.Eventually(t, func() bool { return h.transport.fetchCount(42) == 1 }, time.Second, 5*time.Millisecond)

	h.transport.mu.Lock()
	h.transport.history[42] = []models.Message{{ID: 8, SenderID: 42, Body: "new"}}
	h.transport.mu.Unlock()

	require.NoError(t, h.chat.Refresh(context.Background()))
	rows := h.view.Snapshot()
	require.Len(t, rows, 1)
	assert.Equal(t, "new", rows[0].Body)
}
