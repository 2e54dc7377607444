//go:generate go run go.uber.org/mock/mockgen -source=store.go -destination=mocks/mock_store.go -package=mocks
package store

import (
	"context"

	"github.com/mahaj/commune-chat/pkg/model"
)

const (
	DriverScylla   = "scylla"
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// Store persists chat state. Implementations wrap backend failures with
// chaterr.Store so callers can match chaterr.ErrStore, and report unknown
// chats or users with chaterr.ErrNotFound.
type Store interface {
	// Persist stores a message. Individual conversations are created on
	// first use; group conversations must already exist.
	Persist(ctx context.Context, senderID int64, conv model.Conversation, text string) (model.Message, error)
	// EnsureIndividual returns the chat id of the pair, creating it if absent.
	// Concurrent callers for the same pair always get the same id.
	EnsureIndividual(ctx context.Context, a, b int64) (int64, error)

	IsGroupParticipant(ctx context.Context, chatID, userID int64) (bool, error)
	// MemberRole returns the caller's role in the commune owning chatID, or
	// an empty role when they are not an approved member.
	MemberRole(ctx context.Context, chatID, userID int64) (model.Role, error)
	// AddParticipants inserts accepted participant rows that are absent.
	AddParticipants(ctx context.Context, chatID int64, userIDs []int64) error

	ListGroupChats(ctx context.Context, userID int64) ([]model.GroupConversation, error)
	ListIndividualChats(ctx context.Context, userID int64) ([]model.IndividualConversation, error)
	// History returns at most limit of the newest messages, oldest first.
	History(ctx context.Context, conv model.Conversation, limit int) ([]model.Message, error)
	RecordActivity(ctx context.Context, msg model.Message) error

	GetUser(ctx context.Context, userID int64) (model.User, error)
	SearchUsers(ctx context.Context, prefix string, limit int) ([]model.User, error)

	// Writes owned by the user and commune services. The chat layer only
	// calls them from migrations, seeding and tests.
	PutUser(ctx context.Context, u model.User) error
	PutCommuneMember(ctx context.Context, communeID, userID int64, role model.Role, approved bool) error
	CreateGroupChat(ctx context.Context, communeID, creatorID int64, name string) (int64, error)

	Migrate(ctx context.Context) error
	Close() error
}
