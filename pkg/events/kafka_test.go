package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/mama165/sdk-go/logs"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"

	"github.com/mahaj/commune-chat/pkg/chaterr"
	"github.com/mahaj/commune-chat/pkg/metrics"
	"github.com/mahaj/commune-chat/pkg/model"
)

type fakeWriter struct {
	msgs []kafka.Message
}

func (f *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	f.msgs = append(f.msgs, msgs...)
	return nil
}

func (f *fakeWriter) Close() error { return nil }

type fakeReader struct {
	mu        sync.Mutex
	queue     []kafka.Message
	committed []int64
	cancel    context.CancelFunc
}

func (f *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.queue) == 0 {
		f.cancel()
		return kafka.Message{}, context.Canceled
	}
	m := f.queue[0]
	f.queue = f.queue[1:]
	return m, nil
}

func (f *fakeReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, m := range msgs {
		f.committed = append(f.committed, m.Offset)
	}
	return nil
}

func (f *fakeReader) Close() error { return nil }

type flakyRecorder struct {
	failures int
	rejected map[string]error
	calls    int
	recorded []model.Message
}

func (r *flakyRecorder) RecordActivity(_ context.Context, msg model.Message) error {
	r.calls++
	if err, ok := r.rejected[msg.Room]; ok {
		return err
	}
	if r.failures > 0 {
		r.failures--
		return chaterr.Store("record activity", errors.New("store unavailable"))
	}
	r.recorded = append(r.recorded, msg)
	return nil
}

func TestKafkaPublisher(t *testing.T) {
	t.Run("should key events by room", func(t *testing.T) {
		req := require.New(t)
		w := &fakeWriter{}
		p := &KafkaPublisher{writer: w}

		msg := model.Message{ID: 1, Kind: model.KindIndividual, Room: "dm:7-9", SenderID: 7, Text: "hi"}
		req.NoError(p.PublishStored(context.Background(), msg))

		req.Len(w.msgs, 1)
		req.Equal("dm:7-9", string(w.msgs[0].Key))
		var decoded model.Message
		req.NoError(json.Unmarshal(w.msgs[0].Value, &decoded))
		req.Equal(msg, decoded)
	})
}

func TestConsumer(t *testing.T) {
	encode := func(t *testing.T, offset int64, msg model.Message) kafka.Message {
		value, err := json.Marshal(msg)
		require.NoError(t, err)
		return kafka.Message{Offset: offset, Value: value}
	}

	t.Run("should record every event and commit after success", func(t *testing.T) {
		req := require.New(t)
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		reader := &fakeReader{cancel: cancel, queue: []kafka.Message{
			encode(t, 1, model.Message{ID: 1, Room: "group:42", Text: "a"}),
			{Offset: 2, Value: []byte("not json")},
			encode(t, 3, model.Message{ID: 3, Room: "group:42", Text: "b"}),
		}}
		rec := &flakyRecorder{failures: 2}
		c := &Consumer{
			reader:  reader,
			rec:     rec,
			log:     logs.GetLoggerFromString("ERROR"),
			metrics: metrics.NewUnregistered(),
			backoff: time.Millisecond,
		}

		req.NoError(c.Run(ctx))

		req.Len(rec.recorded, 2)
		req.Equal("b", rec.recorded[1].Text)
		req.Equal([]int64{1, 2, 3}, reader.committed)
	})

	t.Run("should skip an event the store rejects and keep consuming", func(t *testing.T) {
		req := require.New(t)
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		reader := &fakeReader{cancel: cancel, queue: []kafka.Message{
			encode(t, 1, model.Message{ID: 1, Room: "dm:bad", Text: "a"}),
			encode(t, 2, model.Message{ID: 2, Room: "group:1", Text: "b"}),
		}}
		rec := &flakyRecorder{rejected: map[string]error{
			"dm:bad": fmt.Errorf("room dm:bad: %w", chaterr.ErrInvalid),
		}}
		c := &Consumer{
			reader:  reader,
			rec:     rec,
			log:     logs.GetLoggerFromString("ERROR"),
			metrics: metrics.NewUnregistered(),
			backoff: time.Millisecond,
		}

		req.NoError(c.Run(ctx))

		req.Equal(2, rec.calls)
		req.Len(rec.recorded, 1)
		req.Equal("b", rec.recorded[0].Text)
		req.Equal([]int64{1, 2}, reader.committed)
	})
}

func TestDirect(t *testing.T) {
	t.Run("should record synchronously", func(t *testing.T) {
		req := require.New(t)
		rec := &flakyRecorder{}
		d := NewDirect(rec)

		req.NoError(d.PublishStored(context.Background(), model.Message{ID: 5}))
		req.Len(rec.recorded, 1)
		req.NoError(d.Close())
	})
}
