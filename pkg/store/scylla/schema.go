package scylla

// Messages of both kinds share one table, partitioned by (kind, chat_id) and
// clustered newest first so history reads a single slice.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		user_id bigint PRIMARY KEY,
		username text,
		avatar text
	)`,
	`CREATE TABLE IF NOT EXISTS users_by_name (
		initial text,
		username_lower text,
		user_id bigint,
		username text,
		avatar text,
		PRIMARY KEY ((initial), username_lower, user_id)
	)`,
	`CREATE TABLE IF NOT EXISTS commune_members (
		commune_id bigint,
		user_id bigint,
		role text,
		approved boolean,
		PRIMARY KEY ((commune_id), user_id)
	)`,
	`CREATE TABLE IF NOT EXISTS commune_chats (
		chat_id bigint PRIMARY KEY,
		commune_id bigint,
		name text,
		avatar text,
		last_message_at timestamp,
		last_message text
	)`,
	`CREATE TABLE IF NOT EXISTS chat_participants (
		chat_id bigint,
		user_id bigint,
		accepted boolean,
		PRIMARY KEY ((chat_id), user_id)
	)`,
	`CREATE TABLE IF NOT EXISTS user_group_chats (
		user_id bigint,
		chat_id bigint,
		PRIMARY KEY ((user_id), chat_id)
	)`,
	`CREATE TABLE IF NOT EXISTS individual_chats (
		pair_key text PRIMARY KEY,
		chat_id bigint,
		user_low bigint,
		user_high bigint
	)`,
	`CREATE TABLE IF NOT EXISTS user_individual_chats (
		user_id bigint,
		peer_id bigint,
		chat_id bigint,
		last_message_at timestamp,
		last_message text,
		PRIMARY KEY ((user_id), peer_id)
	)`,
	`CREATE TABLE IF NOT EXISTS messages (
		kind text,
		chat_id bigint,
		id bigint,
		sender_id bigint,
		text text,
		created_at timestamp,
		PRIMARY KEY ((kind, chat_id), id)
	) WITH CLUSTERING ORDER BY (id DESC)`,
}
