package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/segmentio/kafka-go"

	"github.com/mahaj/commune-chat/pkg/chaterr"
	"github.com/mahaj/commune-chat/pkg/metrics"
	"github.com/mahaj/commune-chat/pkg/model"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher writes stored messages keyed by room, so one partition sees a
// room's messages in order.
type KafkaPublisher struct {
	writer messageWriter
}

func NewKafkaPublisher(brokers []string, topic string, log *slog.Logger) *KafkaPublisher {
	return &KafkaPublisher{writer: &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		AllowAutoTopicCreation: true,
		Async:                  true,
		BatchTimeout:           50 * time.Millisecond,
		Completion: func(msgs []kafka.Message, err error) {
			if err != nil {
				log.Error("Failed to publish stored messages", "count", len(msgs), "err", err)
			}
		},
	}}
}

func (p *KafkaPublisher) PublishStored(ctx context.Context, msg model.Message) error {
	value, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode message %d: %w", msg.ID, err)
	}
	return p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(msg.Room),
		Value: value,
		Time:  msg.CreatedAt,
	})
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// Consumer feeds stored-message events into a Recorder. Offsets are committed
// after the record succeeds, so delivery is at least once.
type Consumer struct {
	reader  messageReader
	rec     Recorder
	log     *slog.Logger
	metrics *metrics.Metrics
	backoff time.Duration
}

func NewConsumer(brokers []string, topic, groupID string, rec Recorder, log *slog.Logger, m *metrics.Metrics) *Consumer {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    topic,
		GroupID:  groupID,
		MinBytes: 10e3, // 10KB
		MaxBytes: 10e6, // 10MB
	})
	return &Consumer{reader: r, rec: rec, log: log, metrics: m, backoff: time.Second}
}

// Run consumes until ctx is cancelled. Store errors are retried with
// backoff. Events that can never be recorded are logged and skipped so they
// do not hold back the partition.
func (c *Consumer) Run(ctx context.Context) error {
	for {
		m, err := backoff.Retry(ctx, func() (kafka.Message, error) {
			return c.reader.FetchMessage(ctx)
		}, c.retryOptions("Failed to read stored message, retrying")...)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		}

		var msg model.Message
		if err := json.Unmarshal(m.Value, &msg); err != nil {
			c.log.Warn("Skipping undecodable event", "offset", m.Offset, "err", err)
			c.commit(ctx, m)
			continue
		}

		_, err = backoff.Retry(ctx, func() (struct{}, error) {
			err := c.rec.RecordActivity(ctx, msg)
			if err != nil && !errors.Is(err, chaterr.ErrStore) {
				return struct{}{}, backoff.Permanent(err)
			}
			return struct{}{}, err
		}, c.retryOptions("Failed to record activity, retrying", "room", msg.Room)...)
		switch {
		case err == nil:
			c.metrics.ActivityRecorded.Inc()
		case ctx.Err() != nil:
			return nil
		default:
			c.log.Warn("Skipping event that cannot be recorded", "offset", m.Offset, "room", msg.Room, "err", err)
		}
		c.commit(ctx, m)
	}
}

// retryOptions retry until ctx ends, backing off from c.backoff up to a minute.
func (c *Consumer) retryOptions(msg string, attrs ...any) []backoff.RetryOption {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.backoff
	b.MaxInterval = time.Minute
	return []backoff.RetryOption{
		backoff.WithBackOff(b),
		backoff.WithMaxElapsedTime(0),
		backoff.WithNotify(func(err error, next time.Duration) {
			c.log.Error(msg, append(attrs, "next", next, "err", err)...)
		}),
	}
}

func (c *Consumer) commit(ctx context.Context, m kafka.Message) {
	if err := c.reader.CommitMessages(ctx, m); err != nil {
		c.log.Error("Failed to commit offset", "offset", m.Offset, "err", err)
	}
}

func (c *Consumer) Close() error {
	return c.reader.Close()
}
