// Package directory answers the read-side queries of the chat layer: which
// conversations a user has, their history, and who can be added to them.
package directory

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/samber/lo"

	"github.com/mahaj/commune-chat/pkg/chaterr"
	"github.com/mahaj/commune-chat/pkg/model"
	"github.com/mahaj/commune-chat/pkg/room"
	"github.com/mahaj/commune-chat/pkg/store"
)

const (
	DefaultHistoryLimit = 50
	MaxHistoryLimit     = 200
	DefaultSearchLimit  = 20
	MaxSearchLimit      = 50
)

// Presence reports the users connected to a room.
type Presence interface {
	Members(ctx context.Context, room string) ([]int64, error)
}

type Service struct {
	store    store.Store
	presence Presence
	log      *slog.Logger
}

// New builds the directory. presence may be nil when presence tracking is
// disabled.
func New(st store.Store, presence Presence, log *slog.Logger) *Service {
	return &Service{store: st, presence: presence, log: log}
}

// ListConversations returns the user's conversations, most recently active
// first. Conversations without activity keep store order at the end.
func (s *Service) ListConversations(ctx context.Context, userID int64) (model.Conversations, error) {
	groups, err := s.store.ListGroupChats(ctx, userID)
	if err != nil {
		return model.Conversations{}, err
	}
	individuals, err := s.store.ListIndividualChats(ctx, userID)
	if err != nil {
		return model.Conversations{}, err
	}

	sort.SliceStable(groups, func(i, j int) bool {
		return before(groups[i].LastMessageAt, groups[j].LastMessageAt, groups[i].ChatID, groups[j].ChatID)
	})
	sort.SliceStable(individuals, func(i, j int) bool {
		return before(individuals[i].LastMessageAt, individuals[j].LastMessageAt, individuals[i].ChatID, individuals[j].ChatID)
	})

	return model.Conversations{
		Groups:      lo.Ternary(groups == nil, []model.GroupConversation{}, groups),
		Individuals: lo.Ternary(individuals == nil, []model.IndividualConversation{}, individuals),
	}, nil
}

// before orders by last activity, newest first. Ties go to the newer chat.
func before(a, b *time.Time, chatA, chatB int64) bool {
	switch {
	case a == nil:
		return false
	case b == nil:
		return true
	case a.Equal(*b):
		return chatA > chatB
	default:
		return a.After(*b)
	}
}

// Authorize resolves d for userID without touching the peer's profile.
func (s *Service) Authorize(ctx context.Context, userID int64, d model.Descriptor) (model.Conversation, error) {
	if !d.Kind.Valid() || d.ID <= 0 {
		return model.Conversation{}, fmt.Errorf("conversation %s/%d: %w", d.Kind, d.ID, chaterr.ErrInvalid)
	}
	if d.Kind == model.KindIndividual {
		if d.ID == userID {
			return model.Conversation{}, fmt.Errorf("individual chat with self: %w", chaterr.ErrInvalid)
		}
		return model.Individual(userID, d.ID), nil
	}

	ok, err := s.store.IsGroupParticipant(ctx, d.ID, userID)
	if err != nil {
		return model.Conversation{}, err
	}
	if !ok {
		return model.Conversation{}, fmt.Errorf("user %d in group chat %d: %w", userID, d.ID, chaterr.ErrAuthorization)
	}
	return model.Group(d.ID), nil
}

// History returns up to limit messages, oldest first. A zero limit means the
// default; larger limits are capped.
func (s *Service) History(ctx context.Context, userID int64, d model.Descriptor, limit int) ([]model.Message, error) {
	switch {
	case limit < 0:
		return nil, fmt.Errorf("limit %d: %w", limit, chaterr.ErrInvalid)
	case limit == 0:
		limit = DefaultHistoryLimit
	case limit > MaxHistoryLimit:
		limit = MaxHistoryLimit
	}

	conv, err := s.Authorize(ctx, userID, d)
	if err != nil {
		return nil, err
	}
	return s.store.History(ctx, conv, limit)
}

// AddParticipants lets a commune admin or moderator add users to the
// commune's chat. Every user must exist and be an approved member of the
// commune, otherwise nothing is written. Repeated ids and already present
// users are ignored.
func (s *Service) AddParticipants(ctx context.Context, actorID, chatID int64, userIDs []int64) error {
	if lo.SomeBy(userIDs, func(id int64) bool { return id <= 0 }) {
		return fmt.Errorf("user ids must be positive: %w", chaterr.ErrInvalid)
	}

	role, err := s.store.MemberRole(ctx, chatID, actorID)
	if err != nil {
		return err
	}
	if !role.CanManage() {
		return fmt.Errorf("user %d cannot manage chat %d: %w", actorID, chatID, chaterr.ErrAuthorization)
	}

	ids := lo.Uniq(userIDs)
	if len(ids) == 0 {
		return nil
	}
	for _, id := range ids {
		if err := s.eligible(ctx, chatID, id); err != nil {
			return err
		}
	}
	if err := s.store.AddParticipants(ctx, chatID, ids); err != nil {
		return err
	}
	s.log.Info("Added chat participants", "chat", chatID, "actor", actorID, "count", len(ids))
	return nil
}

func (s *Service) eligible(ctx context.Context, chatID, userID int64) error {
	if _, err := s.store.GetUser(ctx, userID); err != nil {
		return err
	}
	role, err := s.store.MemberRole(ctx, chatID, userID)
	if err != nil {
		return err
	}
	if role == "" {
		return fmt.Errorf("user %d is not a member of the commune owning chat %d: %w", userID, chatID, chaterr.ErrNotFound)
	}
	return nil
}

// SearchUsers finds users whose name starts with prefix, ignoring case.
func (s *Service) SearchUsers(ctx context.Context, prefix string, limit int) ([]model.User, error) {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		return nil, fmt.Errorf("username prefix is empty: %w", chaterr.ErrInvalid)
	}
	switch {
	case limit <= 0:
		limit = DefaultSearchLimit
	case limit > MaxSearchLimit:
		limit = MaxSearchLimit
	}
	return s.store.SearchUsers(ctx, prefix, limit)
}

// Online lists the users connected to a conversation the caller takes part in.
func (s *Service) Online(ctx context.Context, userID int64, d model.Descriptor) ([]int64, error) {
	conv, err := s.Authorize(ctx, userID, d)
	if err != nil {
		return nil, err
	}
	if s.presence == nil {
		return []int64{}, nil
	}
	ids, err := s.presence.Members(ctx, room.ID(conv))
	if err != nil {
		return nil, chaterr.Store("presence", err)
	}
	return ids, nil
}
