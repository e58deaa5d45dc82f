package rollover

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	log "github.com/sirupsen/logrus"

	"studioboard/domain"
)

// Store is the persistence slice the rollover sweep drives.
type Store interface {
	ListActiveTasks(ctx context.Context, board string) ([]domain.Task, error)
	BatchReschedule(ctx context.Context, board string, ids []string, dueDate, updatedAt string) error
}

// Scheduler sweeps unfinished work forward to today on a fixed cadence.
// The sweep is idempotent: a rescheduled task is no longer overdue, so a
// repeated run against the same state performs zero writes.
type Scheduler struct {
	st    Store
	board string
	cron  *cron.Cron
	now   func() time.Time
}

func New(st Store, board string) *Scheduler {
	return &Scheduler{st: st, board: board, cron: cron.New(), now: time.Now}
}

// Start runs one sweep immediately, then keeps sweeping on the cron spec
// (e.g. "@hourly") until Stop.
func (s *Scheduler) Start(spec string) error {
	if _, err := s.cron.AddFunc(spec, func() {
		if _, err := s.Run(context.Background()); err != nil {
			log.WithField("board", s.board).Errorf("rollover sweep: %v", err)
		}
	}); err != nil {
		return err
	}
	go func() {
		if _, err := s.Run(context.Background()); err != nil {
			log.WithField("board", s.board).Errorf("rollover sweep: %v", err)
		}
	}()
	s.cron.Start()
	return nil
}

// Stop halts the cadence and waits for an in-flight sweep to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}

// Run performs a single sweep and reports how many tasks moved. Only the
// due date changes: status, rework count and every other field survive the
// rollover untouched.
func (s *Scheduler) Run(ctx context.Context) (int, error) {
	today := domain.Today(s.now())
	tasks, err := s.st.ListActiveTasks(ctx, s.board)
	if err != nil {
		return 0, err
	}
	var overdue []string
	for _, t := range tasks {
		if t.Overdue(today) {
			overdue = append(overdue, t.ID)
		}
	}
	if len(overdue) == 0 {
		return 0, nil
	}
	updatedAt := s.now().UTC().Format(time.RFC3339)
	if err := s.st.BatchReschedule(ctx, s.board, overdue, today, updatedAt); err != nil {
		return 0, err
	}
	log.WithFields(log.Fields{"board": s.board, "count": len(overdue)}).Info("rolled overdue tasks to today")
	return len(overdue), nil
}
