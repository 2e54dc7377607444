package postgres

import (
	"context"
	"os"
	"sync"
	"testing"

	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"

	"github.com/mahaj/commune-chat/pkg/chaterr"
	"github.com/mahaj/commune-chat/pkg/model"
	"github.com/mahaj/commune-chat/pkg/snowflake"
)

func TestLikeEscaper(t *testing.T) {
	t.Run("should escape pattern characters", func(t *testing.T) {
		require.Equal(t, `a\%b\_c\\`, likeEscaper.Replace(`a%b_c\`))
	})
}

// Runs against a real database when POSTGRES_TEST_DSN is set.
func openTestStore(t *testing.T) *Store {
	t.Helper()
	dsn := os.Getenv("POSTGRES_TEST_DSN")
	if dsn == "" {
		t.Skip("POSTGRES_TEST_DSN not set")
	}
	node, err := snowflake.NewNode(2)
	require.NoError(t, err)
	s, err := Open(context.Background(), dsn, node, logs.GetLoggerFromString("ERROR"))
	require.NoError(t, err)
	require.NoError(t, s.Migrate(context.Background()))
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestStore(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	a, b := s.ids.Generate(), s.ids.Generate()

	t.Run("should converge concurrent pair creation", func(t *testing.T) {
		req := require.New(t)
		var wg sync.WaitGroup
		ids := make([]int64, 8)
		errs := make([]error, len(ids))
		for i := range ids {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				ids[i], errs[i] = s.EnsureIndividual(ctx, b, a)
			}(i)
		}
		wg.Wait()
		for i := range ids {
			req.NoError(errs[i])
			req.Equal(ids[0], ids[i])
		}
	})

	t.Run("should persist and read back history in order", func(t *testing.T) {
		req := require.New(t)
		req.NoError(s.PutUser(ctx, model.User{ID: a, Username: "pg_ada"}))
		for _, text := range []string{"one", "two", "three"} {
			_, err := s.Persist(ctx, a, model.Individual(a, b), text)
			req.NoError(err)
		}
		msgs, err := s.History(ctx, model.Individual(a, b), 2)
		req.NoError(err)
		req.Len(msgs, 2)
		req.Equal("two", msgs[0].Text)
		req.Equal("three", msgs[1].Text)
		req.Equal("pg_ada", msgs[1].SenderUsername)
	})

	t.Run("should manage group participants", func(t *testing.T) {
		req := require.New(t)
		commune := s.ids.Generate()
		req.NoError(s.PutCommuneMember(ctx, commune, a, model.RoleAdmin, true))
		req.NoError(s.PutCommuneMember(ctx, commune, b, model.RoleMember, false))
		chatID, err := s.CreateGroupChat(ctx, commune, a, "pg garden")
		req.NoError(err)

		req.NoError(s.AddParticipants(ctx, chatID, []int64{b, b}))
		req.NoError(s.AddParticipants(ctx, chatID, []int64{b}))
		ok, err := s.IsGroupParticipant(ctx, chatID, b)
		req.NoError(err)
		req.False(ok, "pending commune member")

		req.NoError(s.PutCommuneMember(ctx, commune, b, model.RoleMember, true))
		ok, err = s.IsGroupParticipant(ctx, chatID, b)
		req.NoError(err)
		req.True(ok)

		role, err := s.MemberRole(ctx, chatID, a)
		req.NoError(err)
		req.Equal(model.RoleAdmin, role)

		_, err = s.IsGroupParticipant(ctx, s.ids.Generate(), a)
		req.ErrorIs(err, chaterr.ErrNotFound)
	})
}
