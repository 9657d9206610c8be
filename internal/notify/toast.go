package notify

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type Kind string

const (
	Success Kind = "success"
	Error   Kind = "error"
	Info    Kind = "info"
	Warning Kind = "warning"
)

const DefaultDuration = 5 * time.Second

// Toast is a transient notification.
type Toast struct {
	ID        string
	Kind      Kind
	Text      string
	CreatedAt time.Time
}

// Notifier is what UI components use to surface messages to the user.
type Notifier interface {
	Show(kind Kind, text string) string
}

// ToastManager keeps the visible toasts and dismisses each one after its
// duration.
type ToastManager struct {
	mu       sync.Mutex
	toasts   []Toast
	timers   map[string]*time.Timer
	duration time.Duration
	logger   *zap.Logger
	onChange func([]Toast)
}

type Option func(*ToastManager)

// WithDuration sets the auto-dismiss delay. Zero keeps toasts until removed.
func WithDuration(d time.Duration) Option {
	return func(m *ToastManager) { m.duration = d }
}

func WithLogger(l *zap.Logger) Option {
	return func(m *ToastManager) { m.logger = l }
}

// OnChange is called with the visible toasts after every change.
func OnChange(fn func([]Toast)) Option {
	return func(m *ToastManager) { m.onChange = fn }
}

func NewToastManager(opts ...Option) *ToastManager {
	m := &ToastManager{
		timers:   map[string]*time.Timer{},
		duration: DefaultDuration,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Show displays a toast and returns its id.
func (m *ToastManager) Show(kind Kind, text string) string {
	t := Toast{ID: uuid.NewString(), Kind: kind, Text: text, CreatedAt: time.Now()}

	m.mu.Lock()
	m.toasts = append(m.toasts, t)
	if m.duration > 0 {
		id := t.ID
		m.timers[id] = time.AfterFunc(m.duration, func() { m.Remove(id) })
	}
	m.mu.Unlock()

	m.logger.Debug("toast shown", zap.String("kind", string(kind)), zap.String("text", text))
	m.changed()
	return t.ID
}

// Remove dismisses a toast. Unknown ids are ignored.
func (m *ToastManager) Remove(id string) {
	m.mu.Lock()
	found := false
	for i, t := range m.toasts {
		if t.ID == id {
			m.toasts = append(m.toasts[:i], m.toasts[i+1:]...)
			found = true
			break
		}
	}
	if timer, ok := m.timers[id]; ok {
		timer.Stop()
		delete(m.timers, id)
	}
	m.mu.Unlock()

	if found {
		m.changed()
	}
}

// Active returns the visible toasts, oldest first.
func (m *ToastManager) Active() []Toast {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Toast(nil), m.toasts...)
}

// Close dismisses everything and stops pending timers.
func (m *ToastManager) Close() {
	m.mu.Lock()
	for id, timer := range m.timers {
		timer.Stop()
		delete(m.timers, id)
	}
	m.toasts = nil
	m.mu.Unlock()
	m.changed()
}

func (m *ToastManager) changed() {
	if m.onChange != nil {
		m.onChange(m.Active())
	}
}
