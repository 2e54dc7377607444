// Package presence mirrors room membership into Redis sets so the read API
// can answer who is online in a conversation.
package presence

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/redis/go-redis/v9"
)

// SetClient is the subset of the Redis API the tracker needs. *redis.Client
// satisfies it.
type SetClient interface {
	SAdd(ctx context.Context, key string, members ...interface{}) *redis.IntCmd
	SRem(ctx context.Context, key string, members ...interface{}) *redis.IntCmd
	SMembers(ctx context.Context, key string) *redis.StringSliceCmd
}

func NewClient(addr string) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr: addr,
	})
}

func Key(room string) string {
	return "room:" + room + ":online"
}

type transition struct {
	room   string
	user   int64
	online bool
}

// Tracker applies membership transitions in order on a single goroutine.
type Tracker struct {
	rdb     SetClient
	updates chan transition
	log     *slog.Logger
}

func NewTracker(rdb SetClient, log *slog.Logger, buffer int) *Tracker {
	return &Tracker{
		rdb:     rdb,
		updates: make(chan transition, buffer),
		log:     log,
	}
}

func (t *Tracker) Online(room string, userID int64) {
	t.enqueue(transition{room: room, user: userID, online: true})
}

func (t *Tracker) Offline(room string, userID int64) {
	t.enqueue(transition{room: room, user: userID, online: false})
}

func (t *Tracker) enqueue(tr transition) {
	select {
	case t.updates <- tr:
	default:
		t.log.Warn("Presence queue full, dropping update", "room", tr.room, "user", tr.user, "online", tr.online)
	}
}

// Run applies queued updates until ctx is cancelled, then drains what is left.
func (t *Tracker) Run(ctx context.Context) {
	for {
		select {
		case tr := <-t.updates:
			t.apply(ctx, tr)
		case <-ctx.Done():
			for {
				select {
				case tr := <-t.updates:
					t.apply(context.Background(), tr)
				default:
					return
				}
			}
		}
	}
}

func (t *Tracker) apply(ctx context.Context, tr transition) {
	var err error
	if tr.online {
		err = t.rdb.SAdd(ctx, Key(tr.room), tr.user).Err()
	} else {
		err = t.rdb.SRem(ctx, Key(tr.room), tr.user).Err()
	}
	if err != nil {
		t.log.Error("Failed to update presence", "room", tr.room, "user", tr.user, "err", err)
	}
}

// Members returns the ids of users connected to room.
func (t *Tracker) Members(ctx context.Context, room string) ([]int64, error) {
	return Members(ctx, t.rdb, room)
}

func Members(ctx context.Context, rdb SetClient, room string) ([]int64, error) {
	raw, err := rdb.SMembers(ctx, Key(room)).Result()
	if err != nil {
		return nil, fmt.Errorf("presence of %s: %w", room, err)
	}
	ids := make([]int64, 0, len(raw))
	for _, s := range raw {
		id, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// Reader answers presence queries for processes that do not track
// connections themselves, such as the read API.
type Reader struct {
	rdb SetClient
}

func NewReader(rdb SetClient) *Reader {
	return &Reader{rdb: rdb}
}

func (r *Reader) Members(ctx context.Context, room string) ([]int64, error) {
	return Members(ctx, r.rdb, room)
}
