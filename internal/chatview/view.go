package chatview

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"medchat/internal/models"
)

// ErrUnknownPlaceholder is returned for keys the view does not hold,
// including keys already reconciled away.
var ErrUnknownPlaceholder = errors.New("chatview: unknown placeholder key")

const (
	EmptyText   = "No messages yet."
	SendingText = "Sending..."
	FailedText  = "Failed to send"
)

// Entry states as rendered in data-state. StateFailed only exists locally.
const (
	StatePending   = string(models.StatePending)
	StateSent      = string(models.StateSent)
	StateDelivered = string(models.StateDelivered)
	StateFailed    = "failed"
)

// placeholder is an optimistic entry waiting for, or done with, its send.
type placeholder struct {
	key   string
	node  *html.Node
	state string
	msgID int64
}

// View is the message list of one conversation. All methods are safe for
// concurrent use.
type View struct {
	mu            sync.Mutex
	root          *html.Node
	empty         *html.Node
	placeholders  map[string]*placeholder
	order         []string
	currentUserID int64
	loc           *time.Location
	timeFormat    string
	onChange      func()
}

type Option func(*View)

// WithLocation sets the zone timestamps are shown in.
func WithLocation(loc *time.Location) Option {
	return func(v *View) { v.loc = loc }
}

func WithTimeFormat(layout string) Option {
	return func(v *View) { v.timeFormat = layout }
}

// OnChange registers fn to run after every change. It is called without
// the view lock held.
func OnChange(fn func()) Option {
	return func(v *View) { v.onChange = fn }
}

func New(opts ...Option) *View {
	v := &View{
		root:         element(atom.Div, "chat-messages"),
		placeholders: map[string]*placeholder{},
		loc:          time.Local,
		timeFormat:   "15:04",
	}
	for _, opt := range opts {
		opt(v)
	}
	v.showEmpty()
	return v
}

// RenderAll replaces the list with msgs, in the order given. Placeholders
// that are still pending or failed are kept after the server messages;
// reconciled ones are dropped once msgs contains their id.
func (v *View) RenderAll(msgs []models.Message, currentUserID int64) {
	v.mu.Lock()
	v.currentUserID = currentUserID
	for c := v.root.FirstChild; c != nil; c = v.root.FirstChild {
		v.root.RemoveChild(c)
	}

	ids := make(map[int64]bool, len(msgs))
	for _, m := range msgs {
		ids[m.ID] = true
		v.root.AppendChild(v.messageNode(m))
	}

	kept := v.order[:0]
	for _, key := range v.order {
		p := v.placeholders[key]
		if p.msgID != 0 && ids[p.msgID] {
			delete(v.placeholders, key)
			continue
		}
		v.root.AppendChild(p.node)
		kept = append(kept, key)
	}
	v.order = kept

	if v.root.FirstChild == nil {
		v.showEmpty()
	}
	v.mu.Unlock()
	v.changed()
}

// AddOptimistic appends an own message in the pending state and returns the
// key to reconcile it with.
func (v *View) AddOptimistic(body string) string {
	key := "temp-" + uuid.NewString()

	v.mu.Lock()
	v.hideEmpty()
	n := element(atom.Div, "message message-sent")
	setAttr(n, "data-key", key)
	setAttr(n, "data-state", StatePending)
	n.AppendChild(textElement("message-content", body))
	n.AppendChild(textElement("message-meta", SendingText))
	v.root.AppendChild(n)

	v.placeholders[key] = &placeholder{key: key, node: n, state: StatePending}
	v.order = append(v.order, key)
	v.mu.Unlock()

	v.changed()
	return key
}

// Reconcile turns the placeholder into the confirmed message, reusing the
// same node at the same position. If the message was already rendered by a
// refresh, the placeholder is dropped instead.
func (v *View) Reconcile(key string, confirmed models.Message) error {
	v.mu.Lock()
	p, ok := v.placeholders[key]
	if !ok || p.msgID != 0 {
		v.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrUnknownPlaceholder, key)
	}

	elemID := messageElementID(confirmed.ID)
	if dup := v.findByID(elemID); dup != nil && dup != p.node {
		v.dropLocked(key)
		v.mu.Unlock()
		v.changed()
		return nil
	}

	state := string(confirmed.State)
	if state == "" {
		state = StateSent
	}
	setAttr(p.node, "id", elemID)
	setAttr(p.node, "data-state", state)
	setText(p.node, "message-content", confirmed.Body)
	setText(p.node, "message-meta", v.formatTime(confirmed.CreatedAt))
	p.state = state
	p.msgID = confirmed.ID
	v.mu.Unlock()

	v.changed()
	return nil
}

// MarkFailed keeps the placeholder visible and flags it as not sent.
func (v *View) MarkFailed(key, reason string) error {
	v.mu.Lock()
	p, ok := v.placeholders[key]
	if !ok || p.msgID != 0 {
		v.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrUnknownPlaceholder, key)
	}
	meta := FailedText
	if reason != "" {
		meta += ": " + reason
	}
	setAttr(p.node, "data-state", StateFailed)
	setText(p.node, "message-meta", meta)
	p.state = StateFailed
	v.mu.Unlock()

	v.changed()
	return nil
}

// Remove deletes the placeholder from the list.
func (v *View) Remove(key string) error {
	v.mu.Lock()
	if _, ok := v.placeholders[key]; !ok {
		v.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrUnknownPlaceholder, key)
	}
	v.dropLocked(key)
	v.mu.Unlock()

	v.changed()
	return nil
}

// Clear empties the list and forgets every placeholder.
func (v *View) Clear() {
	v.mu.Lock()
	for c := v.root.FirstChild; c != nil; c = v.root.FirstChild {
		v.root.RemoveChild(c)
	}
	v.placeholders = map[string]*placeholder{}
	v.order = nil
	v.currentUserID = 0
	v.showEmpty()
	v.mu.Unlock()
	v.changed()
}

// HTML renders the list. Message text is escaped.
func (v *View) HTML() string {
	v.mu.Lock()
	defer v.mu.Unlock()
	var sb strings.Builder
	if err := html.Render(&sb, v.root); err != nil {
		// Rendering to a strings.Builder only fails on malformed trees.
		return ""
	}
	return sb.String()
}

// Entry is one rendered row, as read back from the tree.
type Entry struct {
	ElementID string
	Key       string
	Own       bool
	State     string
	Sender    string
	Body      string
	Meta      string
}

// Snapshot lists the rendered rows in display order. The empty-state
// placeholder is not a row.
func (v *View) Snapshot() []Entry {
	v.mu.Lock()
	defer v.mu.Unlock()
	var out []Entry
	for n := v.root.FirstChild; n != nil; n = n.NextSibling {
		if n == v.empty {
			continue
		}
		out = append(out, Entry{
			ElementID: attr(n, "id"),
			Key:       attr(n, "data-key"),
			Own:       hasClass(n, "message-sent"),
			State:     attr(n, "data-state"),
			Sender:    childText(n, "message-sender"),
			Body:      childText(n, "message-content"),
			Meta:      childText(n, "message-meta"),
		})
	}
	return out
}

// Empty reports whether the empty-state placeholder is showing.
func (v *View) Empty() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.empty != nil && v.empty.Parent == v.root
}

func (v *View) messageNode(m models.Message) *html.Node {
	class := "message message-received"
	own := m.SenderID == v.currentUserID
	if own {
		class = "message message-sent"
	}
	state := string(m.State)
	if state == "" {
		state = StateSent
	}

	n := element(atom.Div, class)
	setAttr(n, "id", messageElementID(m.ID))
	setAttr(n, "data-state", state)
	if !own && m.SenderName != "" {
		n.AppendChild(textElement("message-sender", m.SenderName))
	}
	n.AppendChild(textElement("message-content", m.Body))
	n.AppendChild(textElement("message-meta", v.formatTime(m.CreatedAt)))
	return n
}

func (v *View) formatTime(t models.JSONTime) string {
	if t.IsZero() {
		return time.Now().In(v.loc).Format(v.timeFormat)
	}
	return t.Time().In(v.loc).Format(v.timeFormat)
}

func (v *View) showEmpty() {
	if v.empty == nil {
		v.empty = &html.Node{Type: html.ElementNode, Data: "p", DataAtom: atom.P,
			Attr: []html.Attribute{{Key: "class", Val: "chat-empty"}}}
		v.empty.AppendChild(&html.Node{Type: html.TextNode, Data: EmptyText})
	}
	if v.empty.Parent == nil {
		v.root.AppendChild(v.empty)
	}
}

func (v *View) hideEmpty() {
	if v.empty != nil && v.empty.Parent == v.root {
		v.root.RemoveChild(v.empty)
	}
}

func (v *View) dropLocked(key string) {
	p := v.placeholders[key]
	if p.node.Parent == v.root {
		v.root.RemoveChild(p.node)
	}
	delete(v.placeholders, key)
	for i, k := range v.order {
		if k == key {
			v.order = append(v.order[:i], v.order[i+1:]...)
			break
		}
	}
	if v.root.FirstChild == nil {
		v.showEmpty()
	}
}

func (v *View) findByID(id string) *html.Node {
	for n := v.root.FirstChild; n != nil; n = n.NextSibling {
		if attr(n, "id") == id {
			return n
		}
	}
	return nil
}

func (v *View) changed() {
	if v.onChange != nil {
		v.onChange()
	}
}

func messageElementID(id int64) string {
	return fmt.Sprintf("msg-%d", id)
}
