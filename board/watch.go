package board

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"studioboard/domain"
)

// Snapshots is the read slice the watcher re-fetches from.
type Snapshots interface {
	ListTasks(ctx context.Context, board string, w domain.Window) ([]domain.Task, error)
}

// UpdatesChannel names the redis channel carrying change events for a board.
func UpdatesChannel(board string) string { return "board-updates:" + board }

// Watcher turns the push-based change feed into cancellable snapshot
// streams. Each subscription is one generation: cancelling it tears the
// stream down before a caller opens the next, so snapshots from different
// windows never interleave.
type Watcher struct {
	rc    *redis.Client
	st    Snapshots
	board string
}

func NewWatcher(rc *redis.Client, st Snapshots, board string) *Watcher {
	return &Watcher{rc: rc, st: st, board: board}
}

// Subscribe opens a live view of the window. The returned channel carries
// the full current snapshot: once immediately, then again after every
// change notification. A failed fetch degrades to an empty snapshot rather
// than killing the stream. The channel closes after cancel.
func (w *Watcher) Subscribe(ctx context.Context, win domain.Window) (<-chan []domain.Task, context.CancelFunc) {
	ctx, cancel := context.WithCancel(ctx)
	out := make(chan []domain.Task, 1)

	go func() {
		defer close(out)
		sub := w.rc.Subscribe(ctx, UpdatesChannel(w.board))
		defer sub.Close()
		ch := sub.Channel()

		w.emit(ctx, out, win)
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					log.WithField("board", w.board).Error("watch channel closed")
					return
				}
				var ev domain.ChangeEvent
				if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
					log.Errorf("watch: unable to parse update: %v", err)
					continue
				}
				if ev.Board != "" && ev.Board != w.board {
					continue
				}
				w.emit(ctx, out, win)
			}
		}
	}()

	return out, cancel
}

// emit sends the latest snapshot, replacing a stale undelivered one so a
// slow consumer always wakes up to current state.
func (w *Watcher) emit(ctx context.Context, out chan []domain.Task, win domain.Window) {
	tasks, err := w.st.ListTasks(ctx, w.board, win)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		log.WithField("board", w.board).Errorf("watch fetch: %v", err)
		tasks = []domain.Task{}
	}
	for {
		select {
		case <-ctx.Done():
			return
		case out <- tasks:
			return
		default:
		}
		select {
		case <-out:
		default:
		}
	}
}
