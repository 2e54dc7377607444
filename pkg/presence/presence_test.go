package presence

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"

	"github.com/mama165/sdk-go/logs"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

type fakeSets struct {
	mu   sync.Mutex
	sets map[string]map[string]bool
	err  error
}

func newFakeSets() *fakeSets {
	return &fakeSets{sets: map[string]map[string]bool{}}
}

func (f *fakeSets) SAdd(_ context.Context, key string, members ...interface{}) *redis.IntCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sets[key] == nil {
		f.sets[key] = map[string]bool{}
	}
	for _, m := range members {
		f.sets[key][fmt.Sprint(m)] = true
	}
	return redis.NewIntResult(int64(len(members)), f.err)
}

func (f *fakeSets) SRem(_ context.Context, key string, members ...interface{}) *redis.IntCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, m := range members {
		delete(f.sets[key], fmt.Sprint(m))
	}
	return redis.NewIntResult(int64(len(members)), f.err)
}

func (f *fakeSets) SMembers(_ context.Context, key string) *redis.StringSliceCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for m := range f.sets[key] {
		out = append(out, m)
	}
	sort.Strings(out)
	return redis.NewStringSliceResult(out, f.err)
}

func TestTracker(t *testing.T) {
	log := logs.GetLoggerFromString("ERROR")

	t.Run("should apply transitions in order", func(t *testing.T) {
		req := require.New(t)
		sets := newFakeSets()
		tr := NewTracker(sets, log, 16)

		tr.Online("dm:7-9", 7)
		tr.Online("dm:7-9", 9)
		tr.Offline("dm:7-9", 7)

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		tr.Run(ctx)

		ids, err := tr.Members(context.Background(), "dm:7-9")
		req.NoError(err)
		req.Equal([]int64{9}, ids)
	})

	t.Run("should drop updates when the queue is full", func(t *testing.T) {
		req := require.New(t)
		sets := newFakeSets()
		tr := NewTracker(sets, log, 1)

		tr.Online("group:1", 1)
		tr.Online("group:1", 2)

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		tr.Run(ctx)

		ids, err := tr.Members(context.Background(), "group:1")
		req.NoError(err)
		req.Equal([]int64{1}, ids)
	})

	t.Run("should surface read errors", func(t *testing.T) {
		sets := newFakeSets()
		sets.err = errors.New("connection refused")
		_, err := Members(context.Background(), sets, "group:1")
		require.Error(t, err)
	})

	t.Run("should key sets by room", func(t *testing.T) {
		require.Equal(t, "room:group:42:online", Key("group:42"))
	})
}

func TestReader(t *testing.T) {
	req := require.New(t)
	sets := newFakeSets()
	sets.SAdd(context.Background(), Key("group:42"), 3, 1, "junk")

	ids, err := NewReader(sets).Members(context.Background(), "group:42")
	req.NoError(err)
	req.ElementsMatch([]int64{1, 3}, ids)
}
