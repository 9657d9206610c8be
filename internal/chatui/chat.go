package chatui

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"medchat/internal/chatview"
	"medchat/internal/client"
	"medchat/internal/metrics"
	"medchat/internal/models"
	"medchat/internal/notify"
	"medchat/internal/poller"
)

// ErrNoRecipient is returned by SendCurrentInput when no conversation is open.
var ErrNoRecipient = errors.New("chatui: no recipient selected")

// ErrConversationChanged is returned by SendCurrentInput when another
// conversation was opened before the message left.
var ErrConversationChanged = errors.New("chatui: conversation changed before send")

const (
	DefaultTypingTimeout  = 2 * time.Second
	DefaultTypingInterval = time.Second
	typingRequestTimeout  = 5 * time.Second
)

// Transport is the subset of the API client the chat needs.
type Transport interface {
	poller.Fetcher
	SendMessage(ctx context.Context, receiverID int64, body string) (*models.Message, error)
	SendTyping(ctx context.Context, receiverID int64, isTyping bool) error
}

// Session identifies the signed-in user.
type Session interface {
	UserID() int64
}

// RollbackPolicy decides what happens to an optimistic entry whose send failed.
type RollbackPolicy int

const (
	// RollbackMarkFailed keeps the entry, flagged as not sent.
	RollbackMarkFailed RollbackPolicy = iota
	// RollbackRemove deletes the entry.
	RollbackRemove
)

type Config struct {
	Transport Transport
	Session   Session
	View      *chatview.View
	Notifier  notify.Notifier
	Logger    *zap.Logger
	Metrics   *metrics.Client

	PollInterval   time.Duration
	TypingTimeout  time.Duration
	TypingInterval time.Duration // minimum gap between is_typing=true signals
	Rollback       RollbackPolicy
}

// Chat is the conversation panel: one open peer, its message list, the
// draft and the typing signal.
type Chat struct {
	cfg    Config
	poller *poller.Poller

	mu          sync.Mutex
	gen         uint64
	peerID      int64
	title       string
	draft       string
	typing      bool
	typingTimer *time.Timer
	limiter     *rate.Limiter
}

func New(cfg Config) *Chat {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.View == nil {
		cfg.View = chatview.New()
	}
	if cfg.TypingTimeout <= 0 {
		cfg.TypingTimeout = DefaultTypingTimeout
	}
	if cfg.TypingInterval <= 0 {
		cfg.TypingInterval = DefaultTypingInterval
	}

	c := &Chat{
		cfg:     cfg,
		limiter: rate.NewLimiter(rate.Every(cfg.TypingInterval), 1),
	}
	c.poller = poller.New(poller.Config{
		Fetcher: cfg.Transport,
		Logger:  cfg.Logger,
		Metrics: cfg.Metrics,
		OnError: c.pollFailed,
	})
	return c
}

// OpenConversation switches the panel to peerID and starts polling it.
// Any open conversation is closed first.
func (c *Chat) OpenConversation(peerID int64, displayName string) {
	c.CloseConversation()

	c.mu.Lock()
	c.gen++
	c.peerID = peerID
	c.title = "Chat with " + displayName
	c.draft = ""
	c.mu.Unlock()

	c.cfg.View.Clear()
	c.cfg.Logger.Info("conversation opened", zap.Int64("peer_id", peerID))
	c.poller.Start(peerID, c.render, c.cfg.PollInterval)
}

// CloseConversation stops polling and clears the typing signal.
func (c *Chat) CloseConversation() {
	c.mu.Lock()
	peerID := c.peerID
	c.gen++
	c.peerID = 0
	c.title = ""
	c.typing = false
	c.stopTypingTimerLocked()
	c.mu.Unlock()

	c.poller.Stop()
	if peerID == 0 {
		return
	}
	c.sendTyping(peerID, false)
	c.cfg.Logger.Info("conversation closed", zap.Int64("peer_id", peerID))
}

// SendCurrentInput sends text to the open conversation. The entry shows up
// at once and is confirmed or rolled back when the server answers. On
// failure the draft is kept so the user can retry.
func (c *Chat) SendCurrentInput(ctx context.Context, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	c.mu.Lock()
	peerID, gen := c.peerID, c.gen
	c.mu.Unlock()
	if peerID == 0 {
		c.notify(notify.Info, "Please select a recipient first.")
		return ErrNoRecipient
	}

	key := c.cfg.View.AddOptimistic(text)
	c.mu.Lock()
	switched := c.gen != gen
	c.mu.Unlock()
	if switched {
		// The view was cleared for another peer in between; the entry
		// belongs to the old conversation.
		if err := c.cfg.View.Remove(key); err != nil {
			c.cfg.Logger.Debug("placeholder already gone", zap.String("key", key), zap.Error(err))
		}
		return ErrConversationChanged
	}
	msg, err := c.cfg.Transport.SendMessage(ctx, peerID, text)
	if err != nil {
		c.sendFailed(key, peerID, gen, text, err)
		return err
	}

	c.cfg.Metrics.MessageSent()
	if err := c.cfg.View.Reconcile(key, *msg); err != nil {
		c.cfg.Logger.Debug("placeholder gone before reconcile",
			zap.String("key", key), zap.Int64("message_id", msg.ID), zap.Error(err))
	}

	c.mu.Lock()
	current := c.gen == gen
	if current {
		c.draft = ""
		c.typing = false
		c.stopTypingTimerLocked()
	}
	c.mu.Unlock()

	if current {
		c.sendTyping(peerID, false)
	}
	c.notify(notify.Success, "Message sent")
	return nil
}

func (c *Chat) sendFailed(key string, peerID int64, gen uint64, text string, err error) {
	c.cfg.Metrics.SendFailure()
	c.cfg.Logger.Warn("sending message failed", zap.Int64("peer_id", peerID), zap.Error(err))

	var rbErr error
	switch c.cfg.Rollback {
	case RollbackRemove:
		rbErr = c.cfg.View.Remove(key)
	default:
		rbErr = c.cfg.View.MarkFailed(key, client.UserMessage(err))
	}
	if rbErr != nil {
		c.cfg.Logger.Debug("placeholder gone before rollback", zap.String("key", key), zap.Error(rbErr))
	}

	c.mu.Lock()
	if c.gen == gen {
		c.draft = text
	}
	c.mu.Unlock()

	var authErr *client.AuthError
	if errors.As(err, &authErr) {
		c.notify(notify.Error, client.UserMessage(err))
		return
	}
	c.notify(notify.Error, "Failed to send message: "+client.UserMessage(err))
}

// InputChanged records the draft and signals that the user is typing.
// is_typing=false follows once the input has been idle for TypingTimeout.
func (c *Chat) InputChanged(text string) {
	c.mu.Lock()
	c.draft = text
	peerID, gen := c.peerID, c.gen
	if peerID == 0 {
		c.mu.Unlock()
		return
	}
	signal := c.limiter.Allow()
	c.typing = true
	c.stopTypingTimerLocked()
	c.typingTimer = time.AfterFunc(c.cfg.TypingTimeout, func() { c.typingIdle(gen) })
	c.mu.Unlock()

	if signal {
		c.sendTyping(peerID, true)
	}
}

func (c *Chat) typingIdle(gen uint64) {
	c.mu.Lock()
	if c.gen != gen || !c.typing {
		c.mu.Unlock()
		return
	}
	c.typing = false
	c.typingTimer = nil
	peerID := c.peerID
	c.mu.Unlock()

	c.sendTyping(peerID, false)
}

// Refresh reloads the open conversation now.
func (c *Chat) Refresh(ctx context.Context) error {
	c.mu.Lock()
	peerID, gen := c.peerID, c.gen
	c.mu.Unlock()
	if peerID == 0 {
		return ErrNoRecipient
	}

	msgs, err := c.cfg.Transport.FetchMessages(ctx, peerID)
	if err != nil {
		c.cfg.Logger.Warn("refresh failed", zap.Int64("peer_id", peerID), zap.Error(err))
		c.notify(notify.Error, "Failed to load messages: "+client.UserMessage(err))
		return err
	}

	c.mu.Lock()
	current := c.gen == gen
	c.mu.Unlock()
	if current {
		c.render(msgs)
	}
	return nil
}

// Title is the panel header, empty when no conversation is open.
func (c *Chat) Title() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.title
}

func (c *Chat) Draft() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.draft
}

// Peer returns the open conversation's peer, or 0.
func (c *Chat) Peer() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.peerID
}

func (c *Chat) View() *chatview.View {
	return c.cfg.View
}

// render runs on the poll goroutine under the poller's delivery guard.
func (c *Chat) render(msgs []models.Message) {
	c.cfg.View.RenderAll(msgs, c.cfg.Session.UserID())
}

// pollFailed surfaces only the failure of the fetch made on open; later
// tick failures are already logged and counted by the poller.
func (c *Chat) pollFailed(peerID int64, err error, first bool) {
	if !first {
		return
	}
	c.notify(notify.Error, "Failed to load messages: "+client.UserMessage(err))
}

func (c *Chat) sendTyping(peerID int64, typing bool) {
	ctx, cancel := context.WithTimeout(context.Background(), typingRequestTimeout)
	defer cancel()
	c.cfg.Metrics.TypingSignal(typing)
	// Best effort: the transport logs failures.
	_ = c.cfg.Transport.SendTyping(ctx, peerID, typing)
}

func (c *Chat) stopTypingTimerLocked() {
	if c.typingTimer != nil {
		c.typingTimer.Stop()
		c.typingTimer = nil
	}
}

func (c *Chat) notify(kind notify.Kind, text string) {
	if c.cfg.Notifier == nil {
		return
	}
	c.cfg.Notifier.Show(kind, text)
}
