package postgres

var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id BIGINT PRIMARY KEY,
		username TEXT NOT NULL,
		avatar TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE INDEX IF NOT EXISTS users_username_lower_idx ON users (lower(username) text_pattern_ops)`,
	`CREATE TABLE IF NOT EXISTS commune_members (
		commune_id BIGINT NOT NULL,
		user_id BIGINT NOT NULL,
		role TEXT NOT NULL,
		approved BOOLEAN NOT NULL DEFAULT FALSE,
		PRIMARY KEY (commune_id, user_id)
	)`,
	`CREATE TABLE IF NOT EXISTS commune_chats (
		id BIGINT PRIMARY KEY,
		commune_id BIGINT NOT NULL,
		name TEXT NOT NULL,
		avatar TEXT NOT NULL DEFAULT '',
		last_message_id BIGINT,
		last_message_at TIMESTAMPTZ,
		last_message TEXT
	)`,
	`CREATE TABLE IF NOT EXISTS chat_participants (
		chat_id BIGINT NOT NULL REFERENCES commune_chats (id) ON DELETE CASCADE,
		user_id BIGINT NOT NULL,
		accepted BOOLEAN NOT NULL DEFAULT FALSE,
		PRIMARY KEY (chat_id, user_id)
	)`,
	`CREATE TABLE IF NOT EXISTS individual_chats (
		id BIGINT PRIMARY KEY,
		user_low BIGINT NOT NULL,
		user_high BIGINT NOT NULL,
		last_message_id BIGINT,
		last_message_at TIMESTAMPTZ,
		last_message TEXT,
		UNIQUE (user_low, user_high),
		CHECK (user_low < user_high)
	)`,
	`CREATE TABLE IF NOT EXISTS messages (
		id BIGINT PRIMARY KEY,
		kind TEXT NOT NULL,
		chat_id BIGINT NOT NULL,
		sender_id BIGINT NOT NULL,
		text TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS messages_chat_idx ON messages (kind, chat_id, id DESC)`,
}
