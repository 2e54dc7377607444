// Package chat orchestrates the live operations of a connection: resolving
// conversations, joining rooms and sending messages.
package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/mahaj/commune-chat/pkg/chaterr"
	"github.com/mahaj/commune-chat/pkg/events"
	"github.com/mahaj/commune-chat/pkg/fanout"
	"github.com/mahaj/commune-chat/pkg/metrics"
	"github.com/mahaj/commune-chat/pkg/model"
	"github.com/mahaj/commune-chat/pkg/room"
	"github.com/mahaj/commune-chat/pkg/store"
)

// Conn is an authenticated connection.
type Conn interface {
	fanout.Subscriber
	User() model.User
}

type Broadcaster interface {
	Join(sub fanout.Subscriber, room string) bool
	Leave(sub fanout.Subscriber, room string) bool
	Publish(room string, payload []byte) int
}

type Options struct {
	MaxMessageLength int
	// OrderedRooms serializes persist and publish per room so every member
	// sees a room's messages in store order.
	OrderedRooms bool
	// MessageAlias, when set, is emitted as a second event type for every
	// message frame.
	MessageAlias string
}

type Service struct {
	store    store.Store
	hub      Broadcaster
	activity events.Publisher
	metrics  *metrics.Metrics
	log      *slog.Logger
	opts     Options
	seq      *sequencer
}

func NewService(st store.Store, hub Broadcaster, activity events.Publisher, m *metrics.Metrics, log *slog.Logger, opts Options) *Service {
	s := &Service{
		store:    st,
		hub:      hub,
		activity: activity,
		metrics:  m,
		log:      log,
		opts:     opts,
	}
	if opts.OrderedRooms {
		s.seq = newSequencer()
	}
	return s
}

// Resolve maps a client descriptor to a conversation userID takes part in.
func (s *Service) Resolve(ctx context.Context, userID int64, d model.Descriptor) (model.Conversation, error) {
	if !d.Kind.Valid() || d.ID <= 0 {
		return model.Conversation{}, fmt.Errorf("conversation %s/%d: %w", d.Kind, d.ID, chaterr.ErrInvalid)
	}

	if d.Kind == model.KindGroup {
		ok, err := s.store.IsGroupParticipant(ctx, d.ID, userID)
		if err != nil {
			return model.Conversation{}, err
		}
		if !ok {
			return model.Conversation{}, fmt.Errorf("user %d in group chat %d: %w", userID, d.ID, chaterr.ErrAuthorization)
		}
		return model.Group(d.ID), nil
	}

	if d.ID == userID {
		return model.Conversation{}, fmt.Errorf("individual chat with self: %w", chaterr.ErrInvalid)
	}
	if _, err := s.store.GetUser(ctx, d.ID); err != nil {
		return model.Conversation{}, err
	}
	return model.Individual(userID, d.ID), nil
}

// Join subscribes conn to the conversation's room after checking that its
// user takes part in it.
func (s *Service) Join(ctx context.Context, conn Conn, d model.Descriptor) (string, error) {
	conv, err := s.Resolve(ctx, conn.UserID(), d)
	if err != nil {
		return "", err
	}
	id := room.ID(conv)
	s.hub.Join(conn, id)
	return id, nil
}

// Leave unsubscribes conn. Leaving needs no store access.
func (s *Service) Leave(conn Conn, d model.Descriptor) (string, error) {
	var id string
	switch {
	case d.ID <= 0:
		return "", fmt.Errorf("conversation %s/%d: %w", d.Kind, d.ID, chaterr.ErrInvalid)
	case d.Kind == model.KindGroup:
		id = room.Group(d.ID)
	case d.Kind == model.KindIndividual:
		id = room.Individual(conn.UserID(), d.ID)
	default:
		return "", fmt.Errorf("conversation kind %q: %w", d.Kind, chaterr.ErrInvalid)
	}
	s.hub.Leave(conn, id)
	return id, nil
}

// Send persists text and publishes it to the conversation's room. On any
// failure the sender alone receives one sendFailed event and nothing is
// published.
func (s *Service) Send(ctx context.Context, conn Conn, d model.Descriptor, text, clientRef string) (model.Message, error) {
	msg, err := s.send(ctx, conn, d, text)
	if err != nil {
		s.fail(conn, d, clientRef, err)
		return model.Message{}, err
	}
	return msg, nil
}

func (s *Service) send(ctx context.Context, conn Conn, d model.Descriptor, text string) (model.Message, error) {
	if strings.TrimSpace(text) == "" {
		return model.Message{}, fmt.Errorf("message is empty: %w", chaterr.ErrInvalid)
	}
	if s.opts.MaxMessageLength > 0 && utf8.RuneCountInString(text) > s.opts.MaxMessageLength {
		return model.Message{}, fmt.Errorf("message longer than %d characters: %w", s.opts.MaxMessageLength, chaterr.ErrInvalid)
	}

	conv, err := s.Resolve(ctx, conn.UserID(), d)
	if err != nil {
		return model.Message{}, err
	}

	if s.seq == nil {
		return s.persistAndPublish(ctx, conn, conv, text)
	}
	var msg model.Message
	s.seq.Do(room.ID(conv), func() {
		msg, err = s.persistAndPublish(ctx, conn, conv, text)
	})
	return msg, err
}

func (s *Service) persistAndPublish(ctx context.Context, conn Conn, conv model.Conversation, text string) (model.Message, error) {
	msg, err := s.store.Persist(ctx, conn.UserID(), conv, text)
	if err != nil {
		return model.Message{}, err
	}
	s.metrics.MessagesPersisted.WithLabelValues(string(msg.Kind)).Inc()

	sender := conn.User()
	msg.SenderUsername, msg.SenderAvatar = sender.Username, sender.Avatar

	s.publish(msg, model.TypeMessage)
	if s.opts.MessageAlias != "" {
		s.publish(msg, model.EventType(s.opts.MessageAlias))
	}

	if err := s.activity.PublishStored(ctx, msg); err != nil {
		s.log.Error("Failed to publish stored message", "room", msg.Room, "id", msg.ID, "err", err)
	}
	return msg, nil
}

func (s *Service) publish(msg model.Message, typ model.EventType) {
	payload, err := json.Marshal(model.Event{Type: typ, Room: msg.Room, Message: &msg})
	if err != nil {
		s.log.Error("Failed to encode message event", "room", msg.Room, "err", err)
		return
	}
	n := s.hub.Publish(msg.Room, payload)
	s.log.Debug("Published message", "room", msg.Room, "id", msg.ID, "deliveries", n)
}

func (s *Service) fail(conn Conn, d model.Descriptor, clientRef string, err error) {
	reason := Reason(err)
	s.metrics.SendFailures.WithLabelValues(reason).Inc()
	s.log.Info("Send failed", "conn", conn.ID(), "user", conn.UserID(), "reason", reason, "err", err)

	payload, encErr := json.Marshal(model.Event{
		Type:         model.TypeSendFailed,
		Conversation: &d,
		ClientRef:    clientRef,
		Error:        PublicMessage(err),
	})
	if encErr != nil {
		s.log.Error("Failed to encode sendFailed event", "err", encErr)
		return
	}
	if !conn.Enqueue(payload) {
		s.log.Warn("Dropped sendFailed event for a full connection", "conn", conn.ID())
	}
}

// Reason classifies err for metrics.
func Reason(err error) string {
	switch {
	case errors.Is(err, chaterr.ErrInvalid):
		return "invalid"
	case errors.Is(err, chaterr.ErrAuthorization):
		return "forbidden"
	case errors.Is(err, chaterr.ErrNotFound):
		return "not_found"
	case errors.Is(err, chaterr.ErrStore):
		return "store"
	default:
		return "internal"
	}
}

// PublicMessage is the error text shown to clients. Backend details stay in
// the logs.
func PublicMessage(err error) string {
	switch {
	case errors.Is(err, chaterr.ErrInvalid):
		return err.Error()
	case errors.Is(err, chaterr.ErrAuthorization):
		return "not a participant of this conversation"
	case errors.Is(err, chaterr.ErrNotFound):
		return "conversation not found"
	case errors.Is(err, chaterr.ErrStore):
		return "message could not be stored, try again"
	default:
		return "internal error"
	}
}
