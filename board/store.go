package board

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"studioboard/domain"
)

// Role is the advisory access level of a signed-in user.
type Role string

const (
	RoleManager  Role = "manager"
	RoleDesigner Role = "designer"
)

// ResolveRole grants Manager to emails on the allow-list, case-insensitive
// exact match; everyone else is a Designer.
func ResolveRole(email string, managers []string) Role {
	for _, m := range managers {
		if strings.EqualFold(strings.TrimSpace(m), strings.TrimSpace(email)) {
			return RoleManager
		}
	}
	return RoleDesigner
}

// Session is the per-request identity a mutation runs under. Created from a
// validated token, never stored globally.
type Session struct {
	Email  string `json:"email"`
	Name   string `json:"name"`
	Avatar string `json:"avatar,omitempty"`
	Role   Role   `json:"role"`
}

// ErrForbidden is returned when a mutation requires the Manager role.
var ErrForbidden = errors.New("forbidden")

// ErrInvalidTask is returned when a candidate task fails basic checks.
var ErrInvalidTask = errors.New("invalid task")

// Store is the persistence slice the task store drives.
type Store interface {
	ListTasks(ctx context.Context, board string, w domain.Window) ([]domain.Task, error)
	ListActiveTasks(ctx context.Context, board string) ([]domain.Task, error)
	GetTask(ctx context.Context, board, id string) (*domain.Task, error)
	InsertTask(ctx context.Context, board string, t domain.Task) error
	UpdateTask(ctx context.Context, board, id string, fields map[string]any) error
	InsertComment(ctx context.Context, c domain.Comment) error
	ListComments(ctx context.Context, taskID string) ([]domain.Comment, error)
	EnqueueChange(ctx context.Context, ev domain.ChangeEvent) error
}

// QuotaAdjuster applies delivered-counter deltas as a side effect of status
// changes.
type QuotaAdjuster interface {
	Adjust(ctx context.Context, brand, scope, creativeType string, amount int) error
}

// Service is the single mutation broker for the board's task collection.
type Service struct {
	st     Store
	quotas QuotaAdjuster
	board  string
	now    func() time.Time
}

func NewService(st Store, quotas QuotaAdjuster, board string) *Service {
	return &Service{st: st, quotas: quotas, board: board, now: time.Now}
}

func (s *Service) timestamp() string { return s.now().UTC().Format(time.RFC3339) }

func (s *Service) today() string { return domain.Today(s.now()) }

// Snapshot returns the live tasks inside the window.
func (s *Service) Snapshot(ctx context.Context, w domain.Window) ([]domain.Task, error) {
	return s.st.ListTasks(ctx, s.board, w)
}

// Active returns every unfinished task regardless of window. Quota stats
// count in-flight work from this set.
func (s *Service) Active(ctx context.Context) ([]domain.Task, error) {
	return s.st.ListActiveTasks(ctx, s.board)
}

// AddTask persists a new task and returns it with its durable id; any
// client-chosen probe id is discarded. A candidate arriving already
// Approved credits its quota immediately.
func (s *Service) AddTask(ctx context.Context, sess Session, candidate domain.Task) (domain.Task, error) {
	if strings.TrimSpace(candidate.Title) == "" {
		return domain.Task{}, ErrInvalidTask
	}
	t := candidate
	t.ID = uuid.NewString()
	if !domain.KnownStatus(t.Status) {
		t.Status = domain.StatusPending
	}
	if t.AssignedBy == "" {
		t.AssignedBy = sess.Name
		t.AssignedByAvatar = sess.Avatar
	}
	now := s.timestamp()
	t.CreatedAt = now
	t.UpdatedAt = now
	t.Deleted = false
	t.DeletedAt = ""
	t.DeletedBy = ""

	if err := s.st.InsertTask(ctx, s.board, t); err != nil {
		log.WithFields(log.Fields{"board": s.board, "task": t.ID}).Errorf("add task: %v", err)
		return domain.Task{}, err
	}
	if t.Status == domain.StatusApproved {
		s.adjust(ctx, t.Brand, t.Scope, t.CreativeType, 1)
	}
	s.announce(ctx, sess, "task", t.ID, domain.TaskCreated)
	return t, nil
}

// UpdateTaskStatus moves a task to a new status, applying the quota delta
// and the rework side effects. Missing tasks and same-status calls are
// no-ops.
func (s *Service) UpdateTaskStatus(ctx context.Context, sess Session, id string, newStatus domain.Status) error {
	if !domain.KnownStatus(newStatus) {
		return ErrInvalidTask
	}
	task, err := s.st.GetTask(ctx, s.board, id)
	if err != nil {
		log.WithField("task", id).Errorf("status read: %v", err)
		return err
	}
	if task == nil || task.Deleted || task.Status == newStatus {
		return nil
	}
	delta := domain.QuotaDelta(task.Status, newStatus)
	if delta != 0 && sess.Role != RoleManager {
		return ErrForbidden
	}

	fields := map[string]any{
		"Status":    string(newStatus),
		"UpdatedAt": s.timestamp(),
	}
	if newStatus == domain.StatusRework {
		fields["ReworkCount"] = task.ReworkCount + 1
		fields["DueDate"] = s.today()
	}
	if err := s.st.UpdateTask(ctx, s.board, id, fields); err != nil {
		log.WithFields(log.Fields{"task": id, "status": newStatus}).Errorf("status write: %v", err)
		return err
	}
	if delta != 0 {
		s.adjust(ctx, task.Brand, task.Scope, task.CreativeType, delta)
	}
	s.announce(ctx, sess, "task", id, domain.TaskUpdated)
	return nil
}

// UpdateTask applies a general field patch. Status changes follow the same
// quota rule as UpdateTaskStatus; reclassifying an Approved task moves its
// credit from the old (brand, scope, type) triple to the new one.
func (s *Service) UpdateTask(ctx context.Context, sess Session, u domain.TaskUpdate) error {
	task, err := s.st.GetTask(ctx, s.board, u.ID)
	if err != nil {
		log.WithField("task", u.ID).Errorf("update read: %v", err)
		return err
	}
	if task == nil || task.Deleted {
		return domain.ErrNotFound
	}
	if u.Status != nil && !domain.KnownStatus(*u.Status) {
		return ErrInvalidTask
	}
	merged := u.Merge(*task)

	delta := domain.QuotaDelta(task.Status, merged.Status)
	reclassified := delta == 0 && merged.Status == domain.StatusApproved &&
		(merged.Brand != task.Brand || merged.Scope != task.Scope || merged.CreativeType != task.CreativeType)
	if (delta != 0 || reclassified) && sess.Role != RoleManager {
		return ErrForbidden
	}

	fields := updateFields(u)
	if merged.Status == domain.StatusRework && task.Status != domain.StatusRework {
		fields["ReworkCount"] = task.ReworkCount + 1
		fields["DueDate"] = s.today()
	}
	fields["UpdatedAt"] = s.timestamp()
	if err := s.st.UpdateTask(ctx, s.board, u.ID, fields); err != nil {
		log.WithField("task", u.ID).Errorf("update write: %v", err)
		return err
	}

	switch {
	case delta != 0:
		// Entering Approved counts the merged triple; leaving it releases
		// the one that was credited.
		if delta > 0 {
			s.adjust(ctx, merged.Brand, merged.Scope, merged.CreativeType, 1)
		} else {
			s.adjust(ctx, task.Brand, task.Scope, task.CreativeType, -1)
		}
	case reclassified:
		s.adjust(ctx, task.Brand, task.Scope, task.CreativeType, -1)
		s.adjust(ctx, merged.Brand, merged.Scope, merged.CreativeType, 1)
	}
	s.announce(ctx, sess, "task", u.ID, domain.TaskUpdated)
	return nil
}

// DeleteTask soft-deletes a task. Rows are never removed; the flags exclude
// it from every query and aggregate. An Approved task releases its quota
// credit first.
func (s *Service) DeleteTask(ctx context.Context, sess Session, id string) error {
	task, err := s.st.GetTask(ctx, s.board, id)
	if err != nil {
		log.WithField("task", id).Errorf("delete read: %v", err)
		return err
	}
	if task == nil || task.Deleted {
		return nil
	}
	if task.Status == domain.StatusApproved {
		s.adjust(ctx, task.Brand, task.Scope, task.CreativeType, -1)
	}
	now := s.timestamp()
	fields := map[string]any{
		"Deleted":   true,
		"DeletedAt": now,
		"DeletedBy": sess.Email,
		"UpdatedAt": now,
	}
	if err := s.st.UpdateTask(ctx, s.board, id, fields); err != nil {
		log.WithField("task", id).Errorf("delete write: %v", err)
		return err
	}
	s.announce(ctx, sess, "task", id, domain.TaskDeleted)
	return nil
}

// AddComment appends a comment under the session's identity. Appends are
// atomic inserts; nothing is ever read-modified-written.
func (s *Service) AddComment(ctx context.Context, sess Session, taskID, text string) (domain.Comment, error) {
	if strings.TrimSpace(text) == "" {
		return domain.Comment{}, ErrInvalidTask
	}
	task, err := s.st.GetTask(ctx, s.board, taskID)
	if err != nil {
		return domain.Comment{}, err
	}
	if task == nil || task.Deleted {
		return domain.Comment{}, domain.ErrNotFound
	}
	c := domain.Comment{
		ID:           uuid.NewString(),
		TaskID:       taskID,
		Text:         text,
		Author:       sess.Name,
		AuthorAvatar: sess.Avatar,
		CreatedAt:    s.timestamp(),
	}
	if err := s.st.InsertComment(ctx, c); err != nil {
		log.WithField("task", taskID).Errorf("add comment: %v", err)
		return domain.Comment{}, err
	}
	s.announce(ctx, sess, "comment", taskID, domain.CommentAdded)
	return c, nil
}

// Comments lists a task's comments, oldest first.
func (s *Service) Comments(ctx context.Context, taskID string) ([]domain.Comment, error) {
	return s.st.ListComments(ctx, taskID)
}

// adjust is best effort: a failed counter write is logged and surfaced to
// the user by the caller's notification path, while the task write stands.
// The next approval cycle or a manual edit corrects the counter.
func (s *Service) adjust(ctx context.Context, brand, scope, creativeType string, amount int) {
	if s.quotas == nil {
		return
	}
	if err := s.quotas.Adjust(ctx, brand, scope, creativeType, amount); err != nil {
		log.WithFields(log.Fields{"brand": brand, "scope": scope, "type": creativeType, "amount": amount}).
			Errorf("quota adjust: %v", err)
	}
}

func (s *Service) announce(ctx context.Context, sess Session, entityType, entityID, eventType string) {
	ev := domain.ChangeEvent{
		ID:         uuid.NewString(),
		Board:      s.board,
		EntityID:   entityID,
		EntityType: entityType,
		Type:       eventType,
		Time:       s.now().UnixNano(),
		Actor:      sess.Email,
	}
	if err := s.st.EnqueueChange(ctx, ev); err != nil {
		// Watchers miss one push; the next snapshot re-fetch catches up.
		log.WithFields(log.Fields{"entity": entityID, "type": eventType}).Errorf("change feed: %v", err)
	}
}

func updateFields(u domain.TaskUpdate) map[string]any {
	fields := map[string]any{}
	if u.Title != nil {
		fields["Title"] = *u.Title
	}
	if u.Description != nil {
		fields["Description"] = *u.Description
	}
	if u.Link != nil {
		fields["Link"] = *u.Link
	}
	if u.Status != nil {
		fields["Status"] = string(*u.Status)
	}
	if u.DueDate != nil {
		fields["DueDate"] = *u.DueDate
	}
	if u.DesignerID != nil {
		fields["DesignerId"] = *u.DesignerID
	}
	if u.Brand != nil {
		fields["Brand"] = *u.Brand
	}
	if u.CreativeType != nil {
		fields["CreativeType"] = *u.CreativeType
	}
	if u.Scope != nil {
		fields["Scope"] = *u.Scope
	}
	if u.AssignedBy != nil {
		fields["AssignedBy"] = *u.AssignedBy
		fields["AssignedByAvatar"] = ""
	}
	if u.AssignedByAvatar != nil {
		fields["AssignedByAvatar"] = *u.AssignedByAvatar
	}
	return fields
}
