package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"medchat/internal/models"
)

// MemoryStore keeps users, assignments and messages in process memory.
// It backs the development server when no DATABASE_URL is configured and
// implements UserStore, AssignmentStore and MessageStore.
type MemoryStore struct {
	mu          sync.RWMutex
	users       map[int64]*models.User
	byName      map[string]int64
	assignments map[[2]int64]bool
	messages    []models.Message
	nextUserID  int64
	nextMsgID   int64
	now         func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:       map[int64]*models.User{},
		byName:      map[string]int64{},
		assignments: map[[2]int64]bool{},
		now:         time.Now,
	}
}

func (s *MemoryStore) CreateUser(ctx context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byName[user.Username]; ok {
		return ErrUsernameExists
	}
	s.nextUserID++
	user.ID = s.nextUserID
	user.CreatedAt = s.now().UTC()
	u := *user
	s.users[u.ID] = &u
	s.byName[u.Username] = u.ID
	return nil
}

func (s *MemoryStore) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byName[username]
	if !ok {
		return nil, ErrUserNotFound
	}
	u := *s.users[id]
	return &u, nil
}

func (s *MemoryStore) GetUserByID(ctx context.Context, id int64) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return nil, ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

func (s *MemoryStore) Assign(ctx context.Context, doctorID, userID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.assignments[[2]int64{doctorID, userID}] = true
	return nil
}

func (s *MemoryStore) IsAssigned(ctx context.Context, doctorID, userID int64) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.assignments[[2]int64{doctorID, userID}], nil
}

func (s *MemoryStore) CreateMessage(ctx context.Context, message *models.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sender, ok := s.users[message.SenderID]
	if !ok {
		return ErrUserNotFound
	}
	s.nextMsgID++
	message.ID = s.nextMsgID
	message.CreatedAt = models.JSONTime(s.now().UTC())
	message.State = models.StateSent
	message.SenderName = sender.Username
	s.messages = append(s.messages, *message)
	return nil
}

func (s *MemoryStore) GetConversation(ctx context.Context, a, b int64) ([]models.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Message, 0)
	for _, m := range s.messages {
		if (m.SenderID == a && m.ReceiverID == b) || (m.SenderID == b && m.ReceiverID == a) {
			out = append(out, m)
		}
	}
	return out, nil
}

func (s *MemoryStore) GetMessageByID(ctx context.Context, messageID int64) (*models.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, m := range s.messages {
		if m.ID == messageID {
			cp := m
			return &cp, nil
		}
	}
	return nil, ErrMessageNotFound
}

func (s *MemoryStore) UpdateDeliveryState(ctx context.Context, messageID int64, state models.DeliveryState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.messages {
		if s.messages[i].ID == messageID {
			s.messages[i].State = state
			return nil
		}
	}
	return ErrMessageNotFound
}

func (s *MemoryStore) ListConversations(ctx context.Context, userID int64) ([]models.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	latest := map[int64]models.Message{}
	for _, m := range s.messages {
		var peer int64
		switch userID {
		case m.SenderID:
			peer = m.ReceiverID
		case m.ReceiverID:
			peer = m.SenderID
		default:
			continue
		}
		// Messages are appended in creation order, so later wins.
		latest[peer] = m
	}

	convs := make([]models.Conversation, 0, len(latest))
	for peer, m := range latest {
		c := models.Conversation{OtherUserID: peer, LastMessage: m.Body, LastMessageTime: m.CreatedAt}
		if u, ok := s.users[peer]; ok {
			c.OtherUsername = u.Username
			c.OtherRole = u.Role
		}
		convs = append(convs, c)
	}
	sortConversations(convs)
	return convs, nil
}

func (s *MemoryStore) RecentLogs(ctx context.Context, limit int) ([]models.ChatLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	logs := make([]models.ChatLog, 0, limit)
	for i := len(s.messages) - 1; i >= 0 && len(logs) < limit; i-- {
		m := s.messages[i]
		l := models.ChatLog{
			ID:         m.ID,
			SenderID:   m.SenderID,
			ReceiverID: m.ReceiverID,
			Body:       m.Body,
			CreatedAt:  m.CreatedAt,
			SenderName: m.SenderName,
		}
		if r, ok := s.users[m.ReceiverID]; ok {
			l.ReceiverName = r.Username
		}
		logs = append(logs, l)
	}
	return logs, nil
}

// sortConversations orders by last message time, newest first.
func sortConversations(convs []models.Conversation) {
	sort.SliceStable(convs, func(i, j int) bool {
		ti, tj := convs[i].LastMessageTime.Time(), convs[j].LastMessageTime.Time()
		if ti.Equal(tj) {
			return convs[i].OtherUserID < convs[j].OtherUserID
		}
		return ti.After(tj)
	})
}
