// Package events carries stored messages to the activity indexer, either
// through Kafka or directly in process.
package events

import (
	"context"

	"github.com/mahaj/commune-chat/pkg/model"
)

// Publisher announces a message that was persisted. Failures never affect
// the send that produced the message.
type Publisher interface {
	PublishStored(ctx context.Context, msg model.Message) error
	Close() error
}

// Recorder updates conversation activity from a stored message.
type Recorder interface {
	RecordActivity(ctx context.Context, msg model.Message) error
}

// Direct records activity in process. It is used when no brokers are
// configured.
type Direct struct {
	rec Recorder
}

func NewDirect(rec Recorder) *Direct {
	return &Direct{rec: rec}
}

func (d *Direct) PublishStored(ctx context.Context, msg model.Message) error {
	return d.rec.RecordActivity(ctx, msg)
}

func (d *Direct) Close() error { return nil }
