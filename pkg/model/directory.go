package model

import "time"

type User struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Avatar   string `json:"avatar,omitempty"`
}

type Role string

const (
	RoleAdmin     Role = "admin"
	RoleModerator Role = "moderator"
	RoleMember    Role = "member"
)

// CanManage reports whether the role may change a commune chat's participants.
func (r Role) CanManage() bool {
	return r == RoleAdmin || r == RoleModerator
}

type GroupConversation struct {
	ChatID        int64      `json:"chat_id"`
	CommuneID     int64      `json:"commune_id"`
	Name          string     `json:"name"`
	Avatar        string     `json:"avatar,omitempty"`
	Room          string     `json:"room"`
	LastMessageAt *time.Time `json:"last_message_at,omitempty"`
	LastMessage   string     `json:"last_message,omitempty"`
}

type IndividualConversation struct {
	ChatID        int64      `json:"chat_id"`
	Peer          User       `json:"peer"`
	Room          string     `json:"room"`
	LastMessageAt *time.Time `json:"last_message_at,omitempty"`
	LastMessage   string     `json:"last_message,omitempty"`
}

type Conversations struct {
	Groups      []GroupConversation      `json:"groupConversations"`
	Individuals []IndividualConversation `json:"individualConversations"`
}
