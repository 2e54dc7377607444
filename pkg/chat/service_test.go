package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/mahaj/commune-chat/pkg/chaterr"
	"github.com/mahaj/commune-chat/pkg/fanout"
	"github.com/mahaj/commune-chat/pkg/metrics"
	"github.com/mahaj/commune-chat/pkg/model"
	"github.com/mahaj/commune-chat/pkg/room"
	"github.com/mahaj/commune-chat/pkg/store/mocks"
)

type fakeConn struct {
	id   string
	user model.User
	mu   sync.Mutex
	got  []model.Event
}

func newConn(userID int64) *fakeConn {
	return &fakeConn{id: fmt.Sprintf("conn-%d", userID), user: model.User{ID: userID, Username: fmt.Sprintf("user%d", userID)}}
}

func (c *fakeConn) ID() string       { return c.id }
func (c *fakeConn) UserID() int64    { return c.user.ID }
func (c *fakeConn) User() model.User { return c.user }
func (c *fakeConn) Close()           {}

func (c *fakeConn) Enqueue(p []byte) bool {
	var ev model.Event
	if err := json.Unmarshal(p, &ev); err != nil {
		panic(err)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.got = append(c.got, ev)
	return true
}

func (c *fakeConn) events() []model.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]model.Event(nil), c.got...)
}

type fakeActivity struct {
	mu   sync.Mutex
	msgs []model.Message
}

func (a *fakeActivity) PublishStored(_ context.Context, msg model.Message) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.msgs = append(a.msgs, msg)
	return nil
}

func (a *fakeActivity) Close() error { return nil }

func (a *fakeActivity) count() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.msgs)
}

type fixture struct {
	store    *mocks.MockStore
	hub      *fanout.Hub
	activity *fakeActivity
	svc      *Service
}

func newFixture(t *testing.T, opts Options) fixture {
	ctrl := gomock.NewController(t)
	log := logs.GetLoggerFromString("ERROR")
	m := metrics.NewUnregistered()
	f := fixture{
		store:    mocks.NewMockStore(ctrl),
		hub:      fanout.NewHub(log, m, nil),
		activity: &fakeActivity{},
	}
	if opts.MaxMessageLength == 0 {
		opts.MaxMessageLength = 2000
	}
	f.svc = NewService(f.store, f.hub, f.activity, m, log, opts)
	return f
}

func stored(id, sender int64, conv model.Conversation, chatID int64, text string) model.Message {
	return model.Message{
		ID:        id,
		Kind:      conv.Kind,
		ChatID:    chatID,
		Room:      room.ID(conv),
		SenderID:  sender,
		Text:      text,
		CreatedAt: time.UnixMilli(1_700_000_000_000).UTC(),
	}
}

func TestIndividualConversation(t *testing.T) {
	t.Run("should deliver hi from 7 to 9 once each", func(t *testing.T) {
		req := require.New(t)
		ctx := context.Background()
		f := newFixture(t, Options{})
		seven, nine := newConn(7), newConn(9)

		f.store.EXPECT().GetUser(gomock.Any(), int64(9)).Return(model.User{ID: 9}, nil).Times(2)
		f.store.EXPECT().GetUser(gomock.Any(), int64(7)).Return(model.User{ID: 7}, nil)
		conv := model.Individual(7, 9)
		f.store.EXPECT().Persist(gomock.Any(), int64(7), conv, "hi").Return(stored(100, 7, conv, 55, "hi"), nil)

		roomA, err := f.svc.Join(ctx, seven, model.Descriptor{Kind: model.KindIndividual, ID: 9})
		req.NoError(err)
		roomB, err := f.svc.Join(ctx, nine, model.Descriptor{Kind: model.KindIndividual, ID: 7})
		req.NoError(err)
		req.Equal("dm:7-9", roomA)
		req.Equal(roomA, roomB)

		msg, err := f.svc.Send(ctx, seven, model.Descriptor{Kind: model.KindIndividual, ID: 9}, "hi", "ref-1")
		req.NoError(err)
		req.Equal(int64(100), msg.ID)

		for _, c := range []*fakeConn{seven, nine} {
			got := c.events()
			req.Len(got, 1)
			req.Equal(model.TypeMessage, got[0].Type)
			req.Equal("dm:7-9", got[0].Room)
			req.Equal("hi", got[0].Message.Text)
			req.Equal("user7", got[0].Message.SenderUsername)
		}
		req.Equal(1, f.activity.count())
	})

	t.Run("should reject a conversation with oneself", func(t *testing.T) {
		f := newFixture(t, Options{})
		_, err := f.svc.Join(context.Background(), newConn(7), model.Descriptor{Kind: model.KindIndividual, ID: 7})
		require.ErrorIs(t, err, chaterr.ErrInvalid)
	})

	t.Run("should reject an unknown peer", func(t *testing.T) {
		f := newFixture(t, Options{})
		f.store.EXPECT().GetUser(gomock.Any(), int64(404)).Return(model.User{}, chaterr.ErrNotFound)
		_, err := f.svc.Join(context.Background(), newConn(7), model.Descriptor{Kind: model.KindIndividual, ID: 404})
		require.ErrorIs(t, err, chaterr.ErrNotFound)
	})
}

func TestGroupConversation(t *testing.T) {
	t.Run("should deliver to participants 1 2 3 and refuse 4", func(t *testing.T) {
		req := require.New(t)
		ctx := context.Background()
		f := newFixture(t, Options{})
		group := model.Descriptor{Kind: model.KindGroup, ID: 42}

		conns := map[int64]*fakeConn{}
		for _, id := range []int64{1, 2, 3} {
			conns[id] = newConn(id)
			f.store.EXPECT().IsGroupParticipant(gomock.Any(), int64(42), id).Return(true, nil)
			r, err := f.svc.Join(ctx, conns[id], group)
			req.NoError(err)
			req.Equal("group:42", r)
		}

		outsider := newConn(4)
		f.store.EXPECT().IsGroupParticipant(gomock.Any(), int64(42), int64(4)).Return(false, nil).Times(2)
		_, err := f.svc.Join(ctx, outsider, group)
		req.ErrorIs(err, chaterr.ErrAuthorization)

		f.store.EXPECT().IsGroupParticipant(gomock.Any(), int64(42), int64(2)).Return(true, nil)
		f.store.EXPECT().Persist(gomock.Any(), int64(2), model.Group(42), "hello all").
			Return(stored(7, 2, model.Group(42), 42, "hello all"), nil)
		_, err = f.svc.Send(ctx, conns[2], group, "hello all", "")
		req.NoError(err)

		for _, c := range conns {
			got := c.events()
			req.Len(got, 1)
			req.Equal("hello all", got[0].Message.Text)
		}

		_, err = f.svc.Send(ctx, outsider, group, "let me in", "x")
		req.ErrorIs(err, chaterr.ErrAuthorization)
		got := outsider.events()
		req.Len(got, 1)
		req.Equal(model.TypeSendFailed, got[0].Type)
		req.Equal("x", got[0].ClientRef)
	})
}

func TestSendFailures(t *testing.T) {
	t.Run("should not publish when the store fails", func(t *testing.T) {
		req := require.New(t)
		ctx := context.Background()
		f := newFixture(t, Options{})
		seven, nine := newConn(7), newConn(9)
		f.hub.Join(seven, "dm:7-9")
		f.hub.Join(nine, "dm:7-9")

		f.store.EXPECT().GetUser(gomock.Any(), int64(9)).Return(model.User{ID: 9}, nil)
		f.store.EXPECT().Persist(gomock.Any(), int64(7), model.Individual(7, 9), "hi").
			Return(model.Message{}, chaterr.Store("persist", errors.New("write timeout")))

		_, err := f.svc.Send(ctx, seven, model.Descriptor{Kind: model.KindIndividual, ID: 9}, "hi", "ref-9")
		req.ErrorIs(err, chaterr.ErrStore)

		got := seven.events()
		req.Len(got, 1)
		req.Equal(model.TypeSendFailed, got[0].Type)
		req.Equal("ref-9", got[0].ClientRef)
		req.Equal(&model.Descriptor{Kind: model.KindIndividual, ID: 9}, got[0].Conversation)
		req.NotContains(got[0].Error, "write timeout")
		req.Empty(nine.events())
		req.Zero(f.activity.count())
	})

	t.Run("should reject blank and oversized text before touching the store", func(t *testing.T) {
		req := require.New(t)
		f := newFixture(t, Options{MaxMessageLength: 5})
		c := newConn(7)
		d := model.Descriptor{Kind: model.KindIndividual, ID: 9}

		_, err := f.svc.Send(context.Background(), c, d, "   ", "")
		req.ErrorIs(err, chaterr.ErrInvalid)
		_, err = f.svc.Send(context.Background(), c, d, "héllo!", "")
		req.ErrorIs(err, chaterr.ErrInvalid)
		req.Len(c.events(), 2)
	})

	t.Run("should reject an unknown kind", func(t *testing.T) {
		f := newFixture(t, Options{})
		_, err := f.svc.Send(context.Background(), newConn(1), model.Descriptor{Kind: "channel", ID: 3}, "x", "")
		require.ErrorIs(t, err, chaterr.ErrInvalid)
	})
}

func TestMessageAlias(t *testing.T) {
	t.Run("should emit the alias after the message frame", func(t *testing.T) {
		req := require.New(t)
		f := newFixture(t, Options{MessageAlias: "newMessage"})
		c := newConn(1)
		f.hub.Join(c, "group:42")

		f.store.EXPECT().IsGroupParticipant(gomock.Any(), int64(42), int64(1)).Return(true, nil)
		f.store.EXPECT().Persist(gomock.Any(), int64(1), model.Group(42), "x").Return(stored(1, 1, model.Group(42), 42, "x"), nil)

		_, err := f.svc.Send(context.Background(), c, model.Descriptor{Kind: model.KindGroup, ID: 42}, "x", "")
		req.NoError(err)

		got := c.events()
		req.Len(got, 2)
		req.Equal(model.TypeMessage, got[0].Type)
		req.Equal(model.EventType("newMessage"), got[1].Type)
		req.Equal(got[0].Message, got[1].Message)
	})
}

func TestOrderedRooms(t *testing.T) {
	t.Run("should deliver a room's messages in store order", func(t *testing.T) {
		req := require.New(t)
		f := newFixture(t, Options{OrderedRooms: true})
		watcher := newConn(99)
		f.hub.Join(watcher, "group:42")

		var next atomic.Int64
		f.store.EXPECT().IsGroupParticipant(gomock.Any(), int64(42), gomock.Any()).Return(true, nil).AnyTimes()
		f.store.EXPECT().Persist(gomock.Any(), gomock.Any(), model.Group(42), gomock.Any()).
			DoAndReturn(func(_ context.Context, sender int64, conv model.Conversation, text string) (model.Message, error) {
				return stored(next.Add(1), sender, conv, 42, text), nil
			}).Times(40)

		var wg sync.WaitGroup
		for i := 0; i < 40; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				_, err := f.svc.Send(context.Background(), newConn(int64(i%4+1)), model.Descriptor{Kind: model.KindGroup, ID: 42}, "m", "")
				assert.NoError(t, err)
			}(i)
		}
		wg.Wait()

		got := watcher.events()
		req.Len(got, 40)
		for i := 1; i < len(got); i++ {
			req.Less(got[i-1].Message.ID, got[i].Message.ID)
		}
		req.Eventually(func() bool { return f.svc.seq.active() == 0 }, time.Second, 10*time.Millisecond)
	})
}

func TestLeave(t *testing.T) {
	t.Run("should leave without a store round trip", func(t *testing.T) {
		req := require.New(t)
		f := newFixture(t, Options{})
		c := newConn(9)
		f.hub.Join(c, "dm:7-9")

		r, err := f.svc.Leave(c, model.Descriptor{Kind: model.KindIndividual, ID: 7})
		req.NoError(err)
		req.Equal("dm:7-9", r)
		req.Zero(f.hub.Members("dm:7-9"))
	})
}

func TestReason(t *testing.T) {
	t.Run("should classify wrapped errors", func(t *testing.T) {
		req := require.New(t)
		req.Equal("store", Reason(chaterr.Store("persist", errors.New("boom"))))
		req.Equal("forbidden", Reason(fmt.Errorf("x: %w", chaterr.ErrAuthorization)))
		req.Equal("internal", Reason(errors.New("boom")))
	})
}
