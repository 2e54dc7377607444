// Package postgres stores chats in PostgreSQL through lib/pq.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/lib/pq"
	"github.com/samber/lo"

	"github.com/mahaj/commune-chat/pkg/chaterr"
	"github.com/mahaj/commune-chat/pkg/model"
	"github.com/mahaj/commune-chat/pkg/room"
	"github.com/mahaj/commune-chat/pkg/snowflake"
)

type Store struct {
	db  *sql.DB
	ids *snowflake.Node
	log *slog.Logger
}

func Open(ctx context.Context, dsn string, ids *snowflake.Node, log *slog.Logger) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, chaterr.Store("connect", err)
	}
	db.SetMaxOpenConns(50)
	db.SetMaxIdleConns(20)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, chaterr.Store("connect", err)
	}
	log.Info("Connected to PostgreSQL")
	return &Store{db: db, ids: ids, log: log}, nil
}

func (s *Store) tableFor(kind model.Kind) string {
	if kind == model.KindGroup {
		return "commune_chats"
	}
	return "individual_chats"
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
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO messages (id, kind, chat_id, sender_id, text, created_at) VALUES ($1, $2, $3, $4, $5, $6)`,
		msg.ID, string(msg.Kind), msg.ChatID, msg.SenderID, msg.Text, msg.CreatedAt,
	)
	if err != nil {
		return model.Message{}, chaterr.Store("persist", err)
	}
	return msg, nil
}

// EnsureIndividual upserts on the unique pair. The no-op update makes
// RETURNING yield the existing row when another writer won the race.
func (s *Store) EnsureIndividual(ctx context.Context, a, b int64) (int64, error) {
	if a == b {
		return 0, fmt.Errorf("individual chat with self: %w", chaterr.ErrInvalid)
	}
	if a > b {
		a, b = b, a
	}
	var id int64
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO individual_chats (id, user_low, user_high) VALUES ($1, $2, $3)
		 ON CONFLICT (user_low, user_high) DO UPDATE SET user_low = EXCLUDED.user_low
		 RETURNING id`,
		s.ids.Generate(), a, b,
	).Scan(&id)
	if err != nil {
		return 0, chaterr.Store("ensure individual", err)
	}
	return id, nil
}

func (s *Store) IsGroupParticipant(ctx context.Context, chatID, userID int64) (bool, error) {
	var accepted bool
	err := s.db.QueryRowContext(ctx,
		`SELECT COALESCE(p.accepted, FALSE) AND COALESCE(m.approved, FALSE)
		 FROM commune_chats c
		 LEFT JOIN chat_participants p ON p.chat_id = c.id AND p.user_id = $2
		 LEFT JOIN commune_members m ON m.commune_id = c.commune_id AND m.user_id = $2
		 WHERE c.id = $1`,
		chatID, userID,
	).Scan(&accepted)
	if errors.Is(err, sql.ErrNoRows) {
		return false, fmt.Errorf("group chat %d: %w", chatID, chaterr.ErrNotFound)
	}
	if err != nil {
		return false, chaterr.Store("group participant", err)
	}
	return accepted, nil
}

func (s *Store) MemberRole(ctx context.Context, chatID, userID int64) (model.Role, error) {
	var role string
	var approved bool
	err := s.db.QueryRowContext(ctx,
		`SELECT COALESCE(m.role, ''), COALESCE(m.approved, FALSE)
		 FROM commune_chats c
		 LEFT JOIN commune_members m ON m.commune_id = c.commune_id AND m.user_id = $2
		 WHERE c.id = $1`,
		chatID, userID,
	).Scan(&role, &approved)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("group chat %d: %w", chatID, chaterr.ErrNotFound)
	}
	if err != nil {
		return "", chaterr.Store("member role", err)
	}
	if !approved {
		return "", nil
	}
	return model.Role(role), nil
}

func (s *Store) AddParticipants(ctx context.Context, chatID int64, userIDs []int64) error {
	var exists bool
	err := s.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM commune_chats WHERE id = $1)`, chatID).Scan(&exists)
	if err != nil {
		return chaterr.Store("add participants", err)
	}
	if !exists {
		return fmt.Errorf("group chat %d: %w", chatID, chaterr.ErrNotFound)
	}
	if len(userIDs) == 0 {
		return nil
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO chat_participants (chat_id, user_id, accepted)
		 SELECT $1, unnest($2::BIGINT[]), TRUE
		 ON CONFLICT (chat_id, user_id) DO UPDATE SET accepted = TRUE`,
		chatID, pq.Array(lo.Uniq(userIDs)),
	)
	return chaterr.Store("add participants", err)
}

func (s *Store) ListGroupChats(ctx context.Context, userID int64) ([]model.GroupConversation, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT c.id, c.commune_id, c.name, c.avatar, c.last_message_at, COALESCE(c.last_message, '')
		 FROM commune_chats c
		 JOIN chat_participants p ON p.chat_id = c.id AND p.user_id = $1 AND p.accepted
		 JOIN commune_members m ON m.commune_id = c.commune_id AND m.user_id = $1 AND m.approved
		 ORDER BY c.id`,
		userID,
	)
	if err != nil {
		return nil, chaterr.Store("list group chats", err)
	}
	defer rows.Close()

	var out []model.GroupConversation
	for rows.Next() {
		var conv model.GroupConversation
		var lastAt sql.NullTime
		if err := rows.Scan(&conv.ChatID, &conv.CommuneID, &conv.Name, &conv.Avatar, &lastAt, &conv.LastMessage); err != nil {
			return nil, chaterr.Store("list group chats", err)
		}
		conv.Room = room.Group(conv.ChatID)
		if lastAt.Valid {
			conv.LastMessageAt = &lastAt.Time
		}
		out = append(out, conv)
	}
	return out, chaterr.Store("list group chats", rows.Err())
}

func (s *Store) ListIndividualChats(ctx context.Context, userID int64) ([]model.IndividualConversation, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT c.id, c.user_low, c.user_high, COALESCE(u.username, ''), COALESCE(u.avatar, ''),
		        c.last_message_at, COALESCE(c.last_message, '')
		 FROM individual_chats c
		 LEFT JOIN users u ON u.id = CASE WHEN c.user_low = $1 THEN c.user_high ELSE c.user_low END
		 WHERE c.user_low = $1 OR c.user_high = $1
		 ORDER BY c.id`,
		userID,
	)
	if err != nil {
		return nil, chaterr.Store("list individual chats", err)
	}
	defer rows.Close()

	var out []model.IndividualConversation
	for rows.Next() {
		var conv model.IndividualConversation
		var low, high int64
		var lastAt sql.NullTime
		if err := rows.Scan(&conv.ChatID, &low, &high, &conv.Peer.Username, &conv.Peer.Avatar, &lastAt, &conv.LastMessage); err != nil {
			return nil, chaterr.Store("list individual chats", err)
		}
		conv.Peer.ID = model.Individual(low, high).Peer(userID)
		conv.Room = room.Individual(low, high)
		if lastAt.Valid {
			conv.LastMessageAt = &lastAt.Time
		}
		out = append(out, conv)
	}
	return out, chaterr.Store("list individual chats", rows.Err())
}

func (s *Store) History(ctx context.Context, conv model.Conversation, limit int) ([]model.Message, error) {
	chatID := conv.ChatID
	if conv.Kind == model.KindIndividual {
		err := s.db.QueryRowContext(ctx,
			`SELECT id FROM individual_chats WHERE user_low = $1 AND user_high = $2`,
			conv.UserLow, conv.UserHigh,
		).Scan(&chatID)
		if errors.Is(err, sql.ErrNoRows) {
			return []model.Message{}, nil
		}
		if err != nil {
			return nil, chaterr.Store("history", err)
		}
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT m.id, m.sender_id, m.text, m.created_at, COALESCE(u.username, ''), COALESCE(u.avatar, '')
		 FROM (
		     SELECT id, sender_id, text, created_at FROM messages
		     WHERE kind = $1 AND chat_id = $2
		     ORDER BY id DESC LIMIT $3
		 ) m
		 LEFT JOIN users u ON u.id = m.sender_id
		 ORDER BY m.id`,
		string(conv.Kind), chatID, limit,
	)
	if err != nil {
		return nil, chaterr.Store("history", err)
	}
	defer rows.Close()

	out := []model.Message{}
	for rows.Next() {
		m := model.Message{Kind: conv.Kind, ChatID: chatID, Room: room.ID(conv)}
		if err := rows.Scan(&m.ID, &m.SenderID, &m.Text, &m.CreatedAt, &m.SenderUsername, &m.SenderAvatar); err != nil {
			return nil, chaterr.Store("history", err)
		}
		m.CreatedAt = m.CreatedAt.UTC()
		out = append(out, m)
	}
	return out, chaterr.Store("history", rows.Err())
}

// RecordActivity only moves forward, so replayed events are harmless.
func (s *Store) RecordActivity(ctx context.Context, msg model.Message) error {
	query := fmt.Sprintf(
		`UPDATE %s SET last_message_id = $1, last_message_at = $2, last_message = $3
		 WHERE id = $4 AND (last_message_id IS NULL OR last_message_id < $1)`,
		s.tableFor(msg.Kind),
	)
	_, err := s.db.ExecContext(ctx, query, msg.ID, msg.CreatedAt, msg.Text, msg.ChatID)
	return chaterr.Store("record activity", err)
}

func (s *Store) GetUser(ctx context.Context, userID int64) (model.User, error) {
	u := model.User{ID: userID}
	err := s.db.QueryRowContext(ctx, `SELECT username, avatar FROM users WHERE id = $1`, userID).
		Scan(&u.Username, &u.Avatar)
	if errors.Is(err, sql.ErrNoRows) {
		return model.User{}, fmt.Errorf("user %d: %w", userID, chaterr.ErrNotFound)
	}
	if err != nil {
		return model.User{}, chaterr.Store("get user", err)
	}
	return u, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func (s *Store) SearchUsers(ctx context.Context, prefix string, limit int) ([]model.User, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, username, avatar FROM users
		 WHERE lower(username) LIKE $1
		 ORDER BY lower(username) LIMIT $2`,
		likeEscaper.Replace(strings.ToLower(prefix))+"%", limit,
	)
	if err != nil {
		return nil, chaterr.Store("search users", err)
	}
	defer rows.Close()

	out := []model.User{}
	for rows.Next() {
		var u model.User
		if err := rows.Scan(&u.ID, &u.Username, &u.Avatar); err != nil {
			return nil, chaterr.Store("search users", err)
		}
		out = append(out, u)
	}
	return out, chaterr.Store("search users", rows.Err())
}

func (s *Store) PutUser(ctx context.Context, u model.User) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users (id, username, avatar) VALUES ($1, $2, $3)
		 ON CONFLICT (id) DO UPDATE SET username = EXCLUDED.username, avatar = EXCLUDED.avatar`,
		u.ID, u.Username, u.Avatar,
	)
	return chaterr.Store("put user", err)
}

func (s *Store) PutCommuneMember(ctx context.Context, communeID, userID int64, role model.Role, approved bool) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO commune_members (commune_id, user_id, role, approved) VALUES ($1, $2, $3, $4)
		 ON CONFLICT (commune_id, user_id) DO UPDATE SET role = EXCLUDED.role, approved = EXCLUDED.approved`,
		communeID, userID, string(role), approved,
	)
	return chaterr.Store("put commune member", err)
}

func (s *Store) CreateGroupChat(ctx context.Context, communeID, creatorID int64, name string) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, chaterr.Store("create group chat", err)
	}
	defer func() { _ = tx.Rollback() }()

	chatID := s.ids.Generate()
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO commune_chats (id, commune_id, name) VALUES ($1, $2, $3)`, chatID, communeID, name,
	); err != nil {
		return 0, chaterr.Store("create group chat", err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO chat_participants (chat_id, user_id, accepted) VALUES ($1, $2, TRUE)`, chatID, creatorID,
	); err != nil {
		return 0, chaterr.Store("create group chat", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, chaterr.Store("create group chat", err)
	}
	return chatID, nil
}

func (s *Store) Migrate(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return chaterr.Store("migrate", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, stmt := range schema {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return chaterr.Store("migrate", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return chaterr.Store("migrate", err)
	}
	s.log.Info("PostgreSQL schema is up to date", "statements", len(schema))
	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}
