package notify

import (
	"context"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azqueue"
	"github.com/bytedance/sonic"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"studioboard/board"
	"studioboard/domain"
)

// Feed is the durable change queue the dispatcher drains.
type Feed interface {
	DequeueChange(ctx context.Context) (*azqueue.DequeuedMessage, error)
	DeleteChange(ctx context.Context, id, receipt string) error
}

// Dispatcher moves change events from the durable feed to the redis
// fan-out channel that live subscriptions listen on. Delivery is at most
// once per event: a failed publish is not retried, because watchers
// re-fetch the full snapshot on the next event anyway.
type Dispatcher struct {
	feed  Feed
	rc    *redis.Client
	board string
	idle  time.Duration
}

func New(feed Feed, rc *redis.Client, boardID string) *Dispatcher {
	return &Dispatcher{feed: feed, rc: rc, board: boardID, idle: time.Second}
}

// Run drains the feed until the context is cancelled.
func (d *Dispatcher) Run(ctx context.Context) {
	log.WithField("board", d.board).Info("change dispatcher started")
	for {
		if ctx.Err() != nil {
			return
		}
		if !d.dispatchOnce(ctx) {
			select {
			case <-ctx.Done():
				return
			case <-time.After(d.idle):
			}
		}
	}
}

// dispatchOnce handles at most one message and reports whether there was
// one. Malformed messages are dropped from the feed so they cannot wedge
// the loop.
func (d *Dispatcher) dispatchOnce(ctx context.Context) bool {
	msg, err := d.feed.DequeueChange(ctx)
	if err != nil {
		if ctx.Err() == nil {
			log.Errorf("change feed receive: %v", err)
		}
		return false
	}
	if msg == nil || msg.MessageText == nil {
		return false
	}

	payload := *msg.MessageText
	var ev domain.ChangeEvent
	if err := sonic.ConfigStd.Unmarshal([]byte(payload), &ev); err != nil {
		log.Errorf("change feed: dropping malformed message: %v", err)
	} else {
		target := ev.Board
		if target == "" {
			target = d.board
		}
		if err := d.rc.Publish(ctx, board.UpdatesChannel(target), payload).Err(); err != nil {
			log.WithField("board", target).Errorf("publish update: %v", err)
		}
	}

	if msg.MessageID != nil && msg.PopReceipt != nil {
		if err := d.feed.DeleteChange(ctx, *msg.MessageID, *msg.PopReceipt); err != nil {
			log.Errorf("change feed delete: %v", err)
		}
	}
	return true
}
