// Package memory is an in-process store used by tests, demos and
// single-node deployments without a database.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/samber/lo"

	"github.com/mahaj/commune-chat/pkg/chaterr"
	"github.com/mahaj/commune-chat/pkg/model"
	"github.com/mahaj/commune-chat/pkg/room"
	"github.com/mahaj/commune-chat/pkg/snowflake"
)

type pair struct{ low, high int64 }

type chatKey struct {
	kind model.Kind
	id   int64
}

type groupChat struct {
	communeID    int64
	name         string
	participants map[int64]bool
}

type member struct {
	role     model.Role
	approved bool
}

type activity struct {
	id   int64
	at   time.Time
	text string
}

type Store struct {
	mu sync.RWMutex

	ids   *snowflake.Node
	users map[int64]model.User

	groups      map[int64]*groupChat
	members     map[int64]map[int64]member
	individuals map[pair]int64
	messages    map[chatKey][]model.Message
	activity    map[chatKey]activity

	failure error
}

func New(ids *snowflake.Node) *Store {
	return &Store{
		ids:         ids,
		users:       make(map[int64]model.User),
		groups:      make(map[int64]*groupChat),
		members:     make(map[int64]map[int64]member),
		individuals: make(map[pair]int64),
		messages:    make(map[chatKey][]model.Message),
		activity:    make(map[chatKey]activity),
	}
}

// FailWith makes every subsequent call fail with err wrapped as a store
// error, simulating a backend outage. A nil err restores the store.
func (s *Store) FailWith(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failure = err
}

func (s *Store) check(op string) error {
	if s.failure != nil {
		return chaterr.Store(op, s.failure)
	}
	return nil
}

func (s *Store) Persist(ctx context.Context, senderID int64, conv model.Conversation, text string) (model.Message, error) {
	if err := ctx.Err(); err != nil {
		return model.Message{}, chaterr.Store("persist", err)
	}

	chatID := conv.ChatID
	if conv.Kind == model.KindIndividual {
		id, err := s.EnsureIndividual(ctx, conv.UserLow, conv.UserHigh)
		if err != nil {
			return model.Message{}, err
		}
		chatID = id
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check("persist"); err != nil {
		return model.Message{}, err
	}
	if conv.Kind == model.KindGroup {
		if _, ok := s.groups[chatID]; !ok {
			return model.Message{}, fmt.Errorf("group chat %d: %w", chatID, chaterr.ErrNotFound)
		}
	}

	id := s.ids.Generate()
	msg := model.Message{
		ID:        id,
		Kind:      conv.Kind,
		ChatID:    chatID,
		Room:      room.ID(conv),
		SenderID:  senderID,
		Text:      text,
		CreatedAt: snowflake.Time(id),
	}
	key := chatKey{conv.Kind, chatID}
	s.messages[key] = append(s.messages[key], msg)
	return msg, nil
}

func (s *Store) EnsureIndividual(_ context.Context, a, b int64) (int64, error) {
	if a == b {
		return 0, fmt.Errorf("individual chat with self: %w", chaterr.ErrInvalid)
	}
	if a > b {
		a, b = b, a
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check("ensure individual"); err != nil {
		return 0, err
	}
	if id, ok := s.individuals[pair{a, b}]; ok {
		return id, nil
	}
	id := s.ids.Generate()
	s.individuals[pair{a, b}] = id
	return id, nil
}

func (s *Store) IsGroupParticipant(_ context.Context, chatID, userID int64) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.check("group participant"); err != nil {
		return false, err
	}
	g, ok := s.groups[chatID]
	if !ok {
		return false, fmt.Errorf("group chat %d: %w", chatID, chaterr.ErrNotFound)
	}
	return s.participates(g, userID), nil
}

// participates requires both the chat row and an approved commune membership.
func (s *Store) participates(g *groupChat, userID int64) bool {
	return g.participants[userID] && s.members[g.communeID][userID].approved
}

func (s *Store) MemberRole(_ context.Context, chatID, userID int64) (model.Role, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.check("member role"); err != nil {
		return "", err
	}
	g, ok := s.groups[chatID]
	if !ok {
		return "", fmt.Errorf("group chat %d: %w", chatID, chaterr.ErrNotFound)
	}
	m, ok := s.members[g.communeID][userID]
	if !ok || !m.approved {
		return "", nil
	}
	return m.role, nil
}

func (s *Store) AddParticipants(_ context.Context, chatID int64, userIDs []int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check("add participants"); err != nil {
		return err
	}
	g, ok := s.groups[chatID]
	if !ok {
		return fmt.Errorf("group chat %d: %w", chatID, chaterr.ErrNotFound)
	}
	for _, id := range userIDs {
		g.participants[id] = true
	}
	return nil
}

func (s *Store) ListGroupChats(_ context.Context, userID int64) ([]model.GroupConversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.check("list group chats"); err != nil {
		return nil, err
	}

	var out []model.GroupConversation
	for chatID, g := range s.groups {
		if !s.participates(g, userID) {
			continue
		}
		conv := model.GroupConversation{
			ChatID:    chatID,
			CommuneID: g.communeID,
			Name:      g.name,
			Room:      room.Group(chatID),
		}
		if a, ok := s.activity[chatKey{model.KindGroup, chatID}]; ok {
			at := a.at
			conv.LastMessageAt, conv.LastMessage = &at, a.text
		}
		out = append(out, conv)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ChatID < out[j].ChatID })
	return out, nil
}

func (s *Store) ListIndividualChats(_ context.Context, userID int64) ([]model.IndividualConversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.check("list individual chats"); err != nil {
		return nil, err
	}

	var out []model.IndividualConversation
	for p, chatID := range s.individuals {
		if p.low != userID && p.high != userID {
			continue
		}
		peerID := p.low
		if peerID == userID {
			peerID = p.high
		}
		peer, ok := s.users[peerID]
		if !ok {
			peer = model.User{ID: peerID}
		}
		conv := model.IndividualConversation{
			ChatID: chatID,
			Peer:   peer,
			Room:   room.Individual(p.low, p.high),
		}
		if a, ok := s.activity[chatKey{model.KindIndividual, chatID}]; ok {
			at := a.at
			conv.LastMessageAt, conv.LastMessage = &at, a.text
		}
		out = append(out, conv)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ChatID < out[j].ChatID })
	return out, nil
}

func (s *Store) History(_ context.Context, conv model.Conversation, limit int) ([]model.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.check("history"); err != nil {
		return nil, err
	}

	chatID := conv.ChatID
	if conv.Kind == model.KindIndividual {
		id, ok := s.individuals[pair{conv.UserLow, conv.UserHigh}]
		if !ok {
			return []model.Message{}, nil
		}
		chatID = id
	} else if _, ok := s.groups[chatID]; !ok {
		return nil, fmt.Errorf("group chat %d: %w", chatID, chaterr.ErrNotFound)
	}

	all := s.messages[chatKey{conv.Kind, chatID}]
	if limit > 0 && len(all) > limit {
		all = all[len(all)-limit:]
	}
	return lo.Map(all, func(m model.Message, _ int) model.Message {
		if u, ok := s.users[m.SenderID]; ok {
			m.SenderUsername, m.SenderAvatar = u.Username, u.Avatar
		}
		return m
	}), nil
}

func (s *Store) RecordActivity(_ context.Context, msg model.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check("record activity"); err != nil {
		return err
	}
	key := chatKey{msg.Kind, msg.ChatID}
	// Events may be redelivered or arrive out of order.
	if a, ok := s.activity[key]; ok && a.id > msg.ID {
		return nil
	}
	s.activity[key] = activity{id: msg.ID, at: msg.CreatedAt, text: msg.Text}
	return nil
}

func (s *Store) GetUser(_ context.Context, userID int64) (model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.check("get user"); err != nil {
		return model.User{}, err
	}
	u, ok := s.users[userID]
	if !ok {
		return model.User{}, fmt.Errorf("user %d: %w", userID, chaterr.ErrNotFound)
	}
	return u, nil
}

func (s *Store) SearchUsers(_ context.Context, prefix string, limit int) ([]model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.check("search users"); err != nil {
		return nil, err
	}

	prefix = strings.ToLower(prefix)
	out := lo.Filter(lo.Values(s.users), func(u model.User, _ int) bool {
		return strings.HasPrefix(strings.ToLower(u.Username), prefix)
	})
	sort.Slice(out, func(i, j int) bool {
		return strings.ToLower(out[i].Username) < strings.ToLower(out[j].Username)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) PutUser(_ context.Context, u model.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[u.ID] = u
	return nil
}

func (s *Store) PutCommuneMember(_ context.Context, communeID, userID int64, role model.Role, approved bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.members[communeID] == nil {
		s.members[communeID] = make(map[int64]member)
	}
	s.members[communeID][userID] = member{role: role, approved: approved}
	return nil
}

func (s *Store) CreateGroupChat(_ context.Context, communeID, creatorID int64, name string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check("create group chat"); err != nil {
		return 0, err
	}
	id := s.ids.Generate()
	s.groups[id] = &groupChat{
		communeID:    communeID,
		name:         name,
		participants: map[int64]bool{creatorID: true},
	}
	return id, nil
}

func (s *Store) Migrate(context.Context) error { return nil }

func (s *Store) Close() error { return nil }
