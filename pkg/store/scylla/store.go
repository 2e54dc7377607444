package scylla

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/gocql/gocql"
	"github.com/samber/lo"

	"github.com/mahaj/commune-chat/pkg/chaterr"
	"github.com/mahaj/commune-chat/pkg/model"
	"github.com/mahaj/commune-chat/pkg/room"
	"github.com/mahaj/commune-chat/pkg/snowflake"
)

type Store struct {
	session *gocql.Session
	ids     *snowflake.Node
	log     *slog.Logger
}

func Open(hosts []string, keyspace string, ids *snowflake.Node, log *slog.Logger) (*Store, error) {
	session, err := connect(hosts, keyspace, log)
	if err != nil {
		return nil, chaterr.Store("connect", err)
	}
	return &Store{session: session, ids: ids, log: log}, nil
}

func pairKey(low, high int64) string {
	return strconv.FormatInt(low, 10) + ":" + strconv.FormatInt(high, 10)
}

func (s *Store) Persist(ctx context.Context, senderID int64, conv model.Conversation, text string) (model.Message, error) {
	chatID := conv.ChatID
	if conv.Kind == model.KindIndividual {
		id, err := s.EnsureIndividual(ctx, conv.UserLow, conv.UserHigh)
		if err != nil {
			return model.Message{}, err
		}
		chatID = id
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
	err := s.session.Query(
		`INSERT INTO messages (kind, chat_id, id, sender_id, text, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		string(msg.Kind), msg.ChatID, msg.ID, msg.SenderID, msg.Text, msg.CreatedAt,
	).WithContext(ctx).Exec()
	if err != nil {
		return model.Message{}, chaterr.Store("persist", err)
	}
	return msg, nil
}

// EnsureIndividual claims the pair with a lightweight transaction. A losing
// writer reads back the winner's chat id.
func (s *Store) EnsureIndividual(ctx context.Context, a, b int64) (int64, error) {
	if a == b {
		return 0, fmt.Errorf("individual chat with self: %w", chaterr.ErrInvalid)
	}
	if a > b {
		a, b = b, a
	}
	key := pairKey(a, b)

	var chatID int64
	err := s.session.Query(`SELECT chat_id FROM individual_chats WHERE pair_key = ?`, key).
		WithContext(ctx).Scan(&chatID)
	if err == nil {
		// The creating call may have failed between the claim and the index write.
		return chatID, s.indexPair(ctx, a, b, chatID)
	}
	if !errors.Is(err, gocql.ErrNotFound) {
		return 0, chaterr.Store("ensure individual", err)
	}

	chatID = s.ids.Generate()
	previous := map[string]interface{}{}
	applied, err := s.session.Query(
		`INSERT INTO individual_chats (pair_key, chat_id, user_low, user_high) VALUES (?, ?, ?, ?) IF NOT EXISTS`,
		key, chatID, a, b,
	).WithContext(ctx).MapScanCAS(previous)
	if err != nil {
		return 0, chaterr.Store("ensure individual", err)
	}
	if !applied {
		existing, ok := previous["chat_id"].(int64)
		if !ok {
			return 0, chaterr.Store("ensure individual", fmt.Errorf("pair %s has no chat id", key))
		}
		return existing, s.indexPair(ctx, a, b, existing)
	}

	if err := s.indexPair(ctx, a, b, chatID); err != nil {
		return 0, err
	}
	s.log.Debug("Created individual chat", "chat", chatID, "pair", key)
	return chatID, nil
}

// indexPair writes both per-user index rows. Only the key columns and the
// chat id are set, so activity columns survive a repeated write.
func (s *Store) indexPair(ctx context.Context, a, b, chatID int64) error {
	batch := s.session.NewBatch(gocql.LoggedBatch).WithContext(ctx)
	batch.Query(`INSERT INTO user_individual_chats (user_id, peer_id, chat_id) VALUES (?, ?, ?)`, a, b, chatID)
	batch.Query(`INSERT INTO user_individual_chats (user_id, peer_id, chat_id) VALUES (?, ?, ?)`, b, a, chatID)
	if err := s.session.ExecuteBatch(batch); err != nil {
		return chaterr.Store("ensure individual", err)
	}
	return nil
}

func (s *Store) communeOf(ctx context.Context, chatID int64) (int64, error) {
	var communeID int64
	err := s.session.Query(`SELECT commune_id FROM commune_chats WHERE chat_id = ?`, chatID).
		WithContext(ctx).Scan(&communeID)
	if errors.Is(err, gocql.ErrNotFound) {
		return 0, fmt.Errorf("group chat %d: %w", chatID, chaterr.ErrNotFound)
	}
	return communeID, chaterr.Store("commune of chat", err)
}

func (s *Store) IsGroupParticipant(ctx context.Context, chatID, userID int64) (bool, error) {
	communeID, err := s.communeOf(ctx, chatID)
	if err != nil {
		return false, err
	}
	return s.participates(ctx, communeID, chatID, userID)
}

// participates requires an accepted participant row and an approved
// membership of the owning commune.
func (s *Store) participates(ctx context.Context, communeID, chatID, userID int64) (bool, error) {
	var accepted bool
	err := s.session.Query(`SELECT accepted FROM chat_participants WHERE chat_id = ? AND user_id = ?`, chatID, userID).
		WithContext(ctx).Scan(&accepted)
	if errors.Is(err, gocql.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, chaterr.Store("group participant", err)
	}
	if !accepted {
		return false, nil
	}
	_, approved, err := s.member(ctx, communeID, userID)
	return approved, err
}

func (s *Store) MemberRole(ctx context.Context, chatID, userID int64) (model.Role, error) {
	communeID, err := s.communeOf(ctx, chatID)
	if err != nil {
		return "", err
	}
	role, approved, err := s.member(ctx, communeID, userID)
	if err != nil || !approved {
		return "", err
	}
	return role, nil
}

func (s *Store) member(ctx context.Context, communeID, userID int64) (model.Role, bool, error) {
	var role string
	var approved bool
	err := s.session.Query(`SELECT role, approved FROM commune_members WHERE commune_id = ? AND user_id = ?`, communeID, userID).
		WithContext(ctx).Scan(&role, &approved)
	if errors.Is(err, gocql.ErrNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, chaterr.Store("commune member", err)
	}
	return model.Role(role), approved, nil
}

func (s *Store) AddParticipants(ctx context.Context, chatID int64, userIDs []int64) error {
	if _, err := s.communeOf(ctx, chatID); err != nil {
		return err
	}
	if len(userIDs) == 0 {
		return nil
	}
	batch := s.session.NewBatch(gocql.LoggedBatch).WithContext(ctx)
	for _, id := range lo.Uniq(userIDs) {
		// Inserts are upserts, so repeating the call changes nothing.
		batch.Query(`INSERT INTO chat_participants (chat_id, user_id, accepted) VALUES (?, ?, true)`, chatID, id)
		batch.Query(`INSERT INTO user_group_chats (user_id, chat_id) VALUES (?, ?)`, id, chatID)
	}
	return chaterr.Store("add participants", s.session.ExecuteBatch(batch))
}

func (s *Store) ListGroupChats(ctx context.Context, userID int64) ([]model.GroupConversation, error) {
	iter := s.session.Query(`SELECT chat_id FROM user_group_chats WHERE user_id = ?`, userID).WithContext(ctx).Iter()
	var chatIDs []int64
	var chatID int64
	for iter.Scan(&chatID) {
		chatIDs = append(chatIDs, chatID)
	}
	if err := iter.Close(); err != nil {
		return nil, chaterr.Store("list group chats", err)
	}

	var out []model.GroupConversation
	for _, id := range chatIDs {
		conv, ok, err := s.groupFor(ctx, id, userID)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, conv)
		}
	}
	return out, nil
}

func (s *Store) groupFor(ctx context.Context, chatID, userID int64) (model.GroupConversation, bool, error) {
	conv := model.GroupConversation{ChatID: chatID, Room: room.Group(chatID)}
	var lastAt time.Time
	err := s.session.Query(
		`SELECT commune_id, name, avatar, last_message_at, last_message FROM commune_chats WHERE chat_id = ?`, chatID,
	).WithContext(ctx).Scan(&conv.CommuneID, &conv.Name, &conv.Avatar, &lastAt, &conv.LastMessage)
	if errors.Is(err, gocql.ErrNotFound) {
		return conv, false, nil
	}
	if err != nil {
		return conv, false, chaterr.Store("group chat", err)
	}
	if !lastAt.IsZero() {
		conv.LastMessageAt = &lastAt
	}

	ok, err := s.participates(ctx, conv.CommuneID, chatID, userID)
	return conv, ok, err
}

func (s *Store) ListIndividualChats(ctx context.Context, userID int64) ([]model.IndividualConversation, error) {
	iter := s.session.Query(
		`SELECT peer_id, chat_id, last_message_at, last_message FROM user_individual_chats WHERE user_id = ?`, userID,
	).WithContext(ctx).Iter()

	var out []model.IndividualConversation
	var peerID, chatID int64
	var lastAt time.Time
	var last string
	for iter.Scan(&peerID, &chatID, &lastAt, &last) {
		conv := model.IndividualConversation{
			ChatID:      chatID,
			Peer:        model.User{ID: peerID},
			Room:        room.Individual(userID, peerID),
			LastMessage: last,
		}
		if !lastAt.IsZero() {
			at := lastAt
			conv.LastMessageAt = &at
		}
		out = append(out, conv)
	}
	if err := iter.Close(); err != nil {
		return nil, chaterr.Store("list individual chats", err)
	}

	for i := range out {
		peer, err := s.GetUser(ctx, out[i].Peer.ID)
		if errors.Is(err, chaterr.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out[i].Peer = peer
	}
	return out, nil
}

func (s *Store) History(ctx context.Context, conv model.Conversation, limit int) ([]model.Message, error) {
	chatID := conv.ChatID
	if conv.Kind == model.KindIndividual {
		err := s.session.Query(`SELECT chat_id FROM individual_chats WHERE pair_key = ?`, pairKey(conv.UserLow, conv.UserHigh)).
			WithContext(ctx).Scan(&chatID)
		if errors.Is(err, gocql.ErrNotFound) {
			return []model.Message{}, nil
		}
		if err != nil {
			return nil, chaterr.Store("history", err)
		}
	}

	iter := s.session.Query(
		`SELECT id, sender_id, text, created_at FROM messages WHERE kind = ? AND chat_id = ? LIMIT ?`,
		string(conv.Kind), chatID, limit,
	).WithContext(ctx).Iter()

	var newestFirst []model.Message
	var m model.Message
	for iter.Scan(&m.ID, &m.SenderID, &m.Text, &m.CreatedAt) {
		m.Kind, m.ChatID, m.Room = conv.Kind, chatID, room.ID(conv)
		newestFirst = append(newestFirst, m)
	}
	if err := iter.Close(); err != nil {
		return nil, chaterr.Store("history", err)
	}

	senders := map[int64]model.User{}
	out := make([]model.Message, 0, len(newestFirst))
	for i := len(newestFirst) - 1; i >= 0; i-- {
		msg := newestFirst[i]
		u, ok := senders[msg.SenderID]
		if !ok {
			var err error
			if u, err = s.GetUser(ctx, msg.SenderID); err != nil && !errors.Is(err, chaterr.ErrNotFound) {
				return nil, err
			}
			senders[msg.SenderID] = u
		}
		msg.SenderUsername, msg.SenderAvatar = u.Username, u.Avatar
		out = append(out, msg)
	}
	return out, nil
}

// RecordActivity writes with the message time as the cell timestamp, so a
// late or redelivered event never overwrites newer activity.
func (s *Store) RecordActivity(ctx context.Context, msg model.Message) error {
	ts := msg.CreatedAt.UnixMicro()
	if msg.Kind == model.KindGroup {
		err := s.session.Query(
			`UPDATE commune_chats USING TIMESTAMP ? SET last_message_at = ?, last_message = ? WHERE chat_id = ?`,
			ts, msg.CreatedAt, msg.Text, msg.ChatID,
		).WithContext(ctx).Exec()
		return chaterr.Store("record activity", err)
	}

	conv, err := room.Parse(msg.Room)
	if err != nil {
		return err
	}
	batch := s.session.NewBatch(gocql.UnloggedBatch).WithContext(ctx)
	for _, p := range [][2]int64{{conv.UserLow, conv.UserHigh}, {conv.UserHigh, conv.UserLow}} {
		batch.Query(
			`UPDATE user_individual_chats USING TIMESTAMP ? SET chat_id = ?, last_message_at = ?, last_message = ? WHERE user_id = ? AND peer_id = ?`,
			ts, msg.ChatID, msg.CreatedAt, msg.Text, p[0], p[1],
		)
	}
	return chaterr.Store("record activity", s.session.ExecuteBatch(batch))
}

func (s *Store) GetUser(ctx context.Context, userID int64) (model.User, error) {
	u := model.User{ID: userID}
	err := s.session.Query(`SELECT username, avatar FROM users WHERE user_id = ?`, userID).
		WithContext(ctx).Scan(&u.Username, &u.Avatar)
	if errors.Is(err, gocql.ErrNotFound) {
		return model.User{}, fmt.Errorf("user %d: %w", userID, chaterr.ErrNotFound)
	}
	if err != nil {
		return model.User{}, chaterr.Store("get user", err)
	}
	return u, nil
}

func initial(lower string) string {
	r, _ := utf8.DecodeRuneInString(lower)
	return string(r)
}

// SearchUsers scans the prefix range inside the partition of its first letter.
func (s *Store) SearchUsers(ctx context.Context, prefix string, limit int) ([]model.User, error) {
	prefix = strings.ToLower(prefix)
	if prefix == "" {
		return []model.User{}, nil
	}
	iter := s.session.Query(
		`SELECT user_id, username, avatar FROM users_by_name
		 WHERE initial = ? AND username_lower >= ? AND username_lower < ? LIMIT ?`,
		initial(prefix), prefix, prefix+string(utf8.MaxRune), limit,
	).WithContext(ctx).Iter()

	out := []model.User{}
	var u model.User
	for iter.Scan(&u.ID, &u.Username, &u.Avatar) {
		out = append(out, u)
	}
	return out, chaterr.Store("search users", iter.Close())
}

func (s *Store) PutUser(ctx context.Context, u model.User) error {
	lower := strings.ToLower(u.Username)
	batch := s.session.NewBatch(gocql.LoggedBatch).WithContext(ctx)
	batch.Query(`INSERT INTO users (user_id, username, avatar) VALUES (?, ?, ?)`, u.ID, u.Username, u.Avatar)
	if lower != "" {
		batch.Query(
			`INSERT INTO users_by_name (initial, username_lower, user_id, username, avatar) VALUES (?, ?, ?, ?, ?)`,
			initial(lower), lower, u.ID, u.Username, u.Avatar,
		)
	}
	return chaterr.Store("put user", s.session.ExecuteBatch(batch))
}

func (s *Store) PutCommuneMember(ctx context.Context, communeID, userID int64, role model.Role, approved bool) error {
	err := s.session.Query(
		`INSERT INTO commune_members (commune_id, user_id, role, approved) VALUES (?, ?, ?, ?)`,
		communeID, userID, string(role), approved,
	).WithContext(ctx).Exec()
	return chaterr.Store("put commune member", err)
}

func (s *Store) CreateGroupChat(ctx context.Context, communeID, creatorID int64, name string) (int64, error) {
	chatID := s.ids.Generate()
	batch := s.session.NewBatch(gocql.LoggedBatch).WithContext(ctx)
	batch.Query(`INSERT INTO commune_chats (chat_id, commune_id, name) VALUES (?, ?, ?)`, chatID, communeID, name)
	batch.Query(`INSERT INTO chat_participants (chat_id, user_id, accepted) VALUES (?, ?, true)`, chatID, creatorID)
	batch.Query(`INSERT INTO user_group_chats (user_id, chat_id) VALUES (?, ?)`, creatorID, chatID)
	if err := s.session.ExecuteBatch(batch); err != nil {
		return 0, chaterr.Store("create group chat", err)
	}
	return chatID, nil
}

func (s *Store) Migrate(ctx context.Context) error {
	for _, stmt := range schema {
		if err := s.session.Query(stmt).WithContext(ctx).Exec(); err != nil {
			return chaterr.Store("migrate", err)
		}
	}
	s.log.Info("Scylla schema is up to date", "tables", len(schema))
	return nil
}

func (s *Store) Close() error {
	s.session.Close()
	return nil
}
