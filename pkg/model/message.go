package model

import "time"

type Kind string

const (
	KindGroup      Kind = "group"
	KindIndividual Kind = "individual"
)

func (k Kind) Valid() bool {
	return k == KindGroup || k == KindIndividual
}

// Descriptor is the conversation reference sent by clients. For individual
// conversations ID is the other participant's user id.
type Descriptor struct {
	Kind Kind  `json:"kind"`
	ID   int64 `json:"id"`
}

// Conversation is a resolved conversation. Group conversations carry ChatID;
// individual conversations carry the normalized pair (UserLow < UserHigh) and,
// once it exists, the ChatID of the stored conversation row.
type Conversation struct {
	Kind     Kind
	ChatID   int64
	UserLow  int64
	UserHigh int64
}

func Group(chatID int64) Conversation {
	return Conversation{Kind: KindGroup, ChatID: chatID}
}

func Individual(a, b int64) Conversation {
	if a > b {
		a, b = b, a
	}
	return Conversation{Kind: KindIndividual, UserLow: a, UserHigh: b}
}

// Peer returns the participant of an individual conversation that is not userID.
func (c Conversation) Peer(userID int64) int64 {
	if c.UserLow == userID {
		return c.UserHigh
	}
	return c.UserLow
}

// Message is a stored, immutable chat message.
type Message struct {
	ID             int64     `json:"id"`
	Kind           Kind      `json:"kind"`
	ChatID         int64     `json:"chat_id"`
	Room           string    `json:"room"`
	SenderID       int64     `json:"sender_id"`
	SenderUsername string    `json:"sender_username,omitempty"`
	SenderAvatar   string    `json:"sender_avatar,omitempty"`
	Text           string    `json:"text"`
	CreatedAt      time.Time `json:"created_at"`
}
