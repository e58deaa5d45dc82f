package board

import (
	"context"
	"testing"
	"time"

	"studioboard/domain"
)

type fakeStore struct {
	tasks    map[string]domain.Task
	comments []domain.Comment
	events   []domain.ChangeEvent
	listErr  error
}

func newFakeStore() *fakeStore {
	return &fakeStore{tasks: map[string]domain.Task{}}
}

func (f *fakeStore) ListTasks(ctx context.Context, board string, w domain.Window) ([]domain.Task, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	out := []domain.Task{}
	for _, t := range f.tasks {
		if t.Deleted {
			continue
		}
		if t.DueDate >= w.Start && t.DueDate <= w.End {
			out = append(out, t)
		}
	}
	return out, nil
}

func (f *fakeStore) ListActiveTasks(ctx context.Context, board string) ([]domain.Task, error) {
	out := []domain.Task{}
	for _, t := range f.tasks {
		if t.Deleted || t.Status.Terminal() {
			continue
		}
		out = append(out, t)
	}
	return out, nil
}

func (f *fakeStore) GetTask(ctx context.Context, board, id string) (*domain.Task, error) {
	t, ok := f.tasks[id]
	if !ok {
		return nil, nil
	}
	return &t, nil
}

func (f *fakeStore) InsertTask(ctx context.Context, board string, t domain.Task) error {
	f.tasks[t.ID] = t
	return nil
}

func (f *fakeStore) UpdateTask(ctx context.Context, board, id string, fields map[string]any) error {
	t, ok := f.tasks[id]
	if !ok {
		return domain.ErrNotFound
	}
	for k, v := range fields {
		switch k {
		case "Title":
			t.Title = v.(string)
		case "Description":
			t.Description = v.(string)
		case "Link":
			t.Link = v.(string)
		case "Status":
			t.Status = domain.Status(v.(string))
		case "DueDate":
			t.DueDate = v.(string)
		case "DesignerId":
			t.DesignerID = v.(string)
		case "Brand":
			t.Brand = v.(string)
		case "CreativeType":
			t.CreativeType = v.(string)
		case "Scope":
			t.Scope = v.(string)
		case "AssignedBy":
			t.AssignedBy = v.(string)
		case "AssignedByAvatar":
			t.AssignedByAvatar = v.(string)
		case "ReworkCount":
			t.ReworkCount = v.(int)
		case "UpdatedAt":
			t.UpdatedAt = v.(string)
		case "Deleted":
			t.Deleted = v.(bool)
		case "DeletedAt":
			t.DeletedAt = v.(string)
		case "DeletedBy":
			t.DeletedBy = v.(string)
		}
	}
	f.tasks[id] = t
	return nil
}

func (f *fakeStore) InsertComment(ctx context.Context, c domain.Comment) error {
	f.comments = append(f.comments, c)
	return nil
}

func (f *fakeStore) ListComments(ctx context.Context, taskID string) ([]domain.Comment, error) {
	out := []domain.Comment{}
	for _, c := range f.comments {
		if c.TaskID == taskID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (f *fakeStore) EnqueueChange(ctx context.Context, ev domain.ChangeEvent) error {
	f.events = append(f.events, ev)
	return nil
}

type adjustment struct {
	brand, scope, typ string
	amount            int
}

type fakeAdjuster struct{ calls []adjustment }

func (f *fakeAdjuster) Adjust(ctx context.Context, brand, scope, typ string, amount int) error {
	f.calls = append(f.calls, adjustment{brand, scope, typ, amount})
	return nil
}

func testService(fs *fakeStore, fa *fakeAdjuster) *Service {
	s := NewService(fs, fa, "main")
	s.now = func() time.Time { return time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC) }
	return s
}

func managerSession() Session {
	return Session{Email: "lead@studio.test", Name: "Lead", Role: RoleManager}
}

func designerSession() Session {
	return Session{Email: "dana@studio.test", Name: "Dana", Avatar: "https://img/dana.png", Role: RoleDesigner}
}

func seedTask(fs *fakeStore, t domain.Task) {
	fs.tasks[t.ID] = t
}

func TestResolveRole(t *testing.T) {
	managers := []string{"Lead@Studio.Test", " boss@studio.test "}
	if ResolveRole("lead@studio.test", managers) != RoleManager {
		t.Fatal("case-insensitive match should grant manager")
	}
	if ResolveRole("dana@studio.test", managers) != RoleDesigner {
		t.Fatal("unlisted email should be designer")
	}
}

func TestAddTaskAssignsDurableID(t *testing.T) {
	fs := newFakeStore()
	fa := &fakeAdjuster{}
	svc := testService(fs, fa)

	created, err := svc.AddTask(context.Background(), designerSession(), domain.Task{ID: "probe-1", Title: "Acme banner"})
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if created.ID == "probe-1" || created.ID == "" {
		t.Fatalf("client probe id must be replaced, got %q", created.ID)
	}
	if created.Status != domain.StatusPending {
		t.Fatalf("default status = %s", created.Status)
	}
	if created.AssignedBy != "Dana" || created.AssignedByAvatar != "https://img/dana.png" {
		t.Fatalf("assigned-by not taken from session: %#v", created)
	}
	if len(fa.calls) != 0 {
		t.Fatalf("pending task must not touch quotas: %#v", fa.calls)
	}
	if len(fs.events) != 1 || fs.events[0].Type != domain.TaskCreated {
		t.Fatalf("expected one task-created event: %#v", fs.events)
	}
}

func TestAddTaskRejectsEmptyTitle(t *testing.T) {
	svc := testService(newFakeStore(), &fakeAdjuster{})
	if _, err := svc.AddTask(context.Background(), designerSession(), domain.Task{Title: "  "}); err != ErrInvalidTask {
		t.Fatalf("err = %v, want ErrInvalidTask", err)
	}
}

func TestAddTaskApprovedCandidateCreditsQuota(t *testing.T) {
	fs := newFakeStore()
	fa := &fakeAdjuster{}
	svc := testService(fs, fa)

	_, err := svc.AddTask(context.Background(), managerSession(), domain.Task{
		Title: "pre-approved", Status: domain.StatusApproved,
		Brand: "Acme", Scope: "Social Media", CreativeType: "Statics",
	})
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if len(fa.calls) != 1 || fa.calls[0] != (adjustment{"Acme", "Social Media", "Statics", 1}) {
		t.Fatalf("expected +1 credit: %#v", fa.calls)
	}
}

func TestUpdateTaskStatusNoops(t *testing.T) {
	fs := newFakeStore()
	fa := &fakeAdjuster{}
	svc := testService(fs, fa)
	ctx := context.Background()

	if err := svc.UpdateTaskStatus(ctx, managerSession(), "missing", domain.StatusApproved); err != nil {
		t.Fatalf("missing task must be a no-op: %v", err)
	}
	seedTask(fs, domain.Task{ID: "t1", Title: "x", Status: domain.StatusPending})
	if err := svc.UpdateTaskStatus(ctx, managerSession(), "t1", domain.StatusPending); err != nil {
		t.Fatalf("same status must be a no-op: %v", err)
	}
	if len(fa.calls) != 0 || len(fs.events) != 0 {
		t.Fatalf("no-ops must not write: %#v %#v", fa.calls, fs.events)
	}
}

func TestUpdateTaskStatusApprovalFlow(t *testing.T) {
	fs := newFakeStore()
	fa := &fakeAdjuster{}
	svc := testService(fs, fa)
	ctx := context.Background()
	seedTask(fs, domain.Task{
		ID: "t1", Title: "x", Status: domain.StatusSubmitted,
		Brand: "Acme", Scope: "Social Media", CreativeType: "Statics", DueDate: "2026-08-28",
	})

	if err := svc.UpdateTaskStatus(ctx, managerSession(), "t1", domain.StatusApproved); err != nil {
		t.Fatalf("approve: %v", err)
	}
	if fs.tasks["t1"].Status != domain.StatusApproved {
		t.Fatalf("status = %s", fs.tasks["t1"].Status)
	}
	if len(fa.calls) != 1 || fa.calls[0].amount != 1 {
		t.Fatalf("approve must credit +1: %#v", fa.calls)
	}
}

func TestUpdateTaskStatusReworkSideEffects(t *testing.T) {
	fs := newFakeStore()
	fa := &fakeAdjuster{}
	svc := testService(fs, fa)
	ctx := context.Background()
	seedTask(fs, domain.Task{
		ID: "t1", Title: "x", Status: domain.StatusApproved, ReworkCount: 0,
		Brand: "Acme", Scope: "Social Media", CreativeType: "Statics", DueDate: "2026-08-20",
	})

	if err := svc.UpdateTaskStatus(ctx, managerSession(), "t1", domain.StatusRework); err != nil {
		t.Fatalf("rework: %v", err)
	}
	got := fs.tasks["t1"]
	if got.ReworkCount != 1 {
		t.Fatalf("rework count = %d, want 1", got.ReworkCount)
	}
	if got.DueDate != "2026-08-31" {
		t.Fatalf("due date = %s, want today", got.DueDate)
	}
	if len(fa.calls) != 1 || fa.calls[0].amount != -1 {
		t.Fatalf("leaving Approved must debit -1: %#v", fa.calls)
	}
}

func TestUpdateTaskStatusDesignerCannotApprove(t *testing.T) {
	fs := newFakeStore()
	fa := &fakeAdjuster{}
	svc := testService(fs, fa)
	seedTask(fs, domain.Task{ID: "t1", Title: "x", Status: domain.StatusSubmitted})

	err := svc.UpdateTaskStatus(context.Background(), designerSession(), "t1", domain.StatusApproved)
	if err != ErrForbidden {
		t.Fatalf("err = %v, want ErrForbidden", err)
	}
	if fs.tasks["t1"].Status != domain.StatusSubmitted {
		t.Fatal("task must be unchanged after a forbidden transition")
	}
}

func TestUpdateTaskStatusDesignerMaySubmit(t *testing.T) {
	fs := newFakeStore()
	svc := testService(fs, &fakeAdjuster{})
	seedTask(fs, domain.Task{ID: "t1", Title: "x", Status: domain.StatusPending})

	if err := svc.UpdateTaskStatus(context.Background(), designerSession(), "t1", domain.StatusSubmitted); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if fs.tasks["t1"].Status != domain.StatusSubmitted {
		t.Fatalf("status = %s", fs.tasks["t1"].Status)
	}
}

func TestUpdateTaskReclassifiesApprovedCredit(t *testing.T) {
	fs := newFakeStore()
	fa := &fakeAdjuster{}
	svc := testService(fs, fa)
	seedTask(fs, domain.Task{
		ID: "t1", Title: "x", Status: domain.StatusApproved,
		Brand: "Acme", Scope: "Social Media", CreativeType: "Statics",
	})

	newBrand := "Globex"
	err := svc.UpdateTask(context.Background(), managerSession(), domain.TaskUpdate{ID: "t1", Brand: &newBrand})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if len(fa.calls) != 2 {
		t.Fatalf("expected debit then credit: %#v", fa.calls)
	}
	if fa.calls[0] != (adjustment{"Acme", "Social Media", "Statics", -1}) {
		t.Fatalf("old triple debit: %#v", fa.calls[0])
	}
	if fa.calls[1] != (adjustment{"Globex", "Social Media", "Statics", 1}) {
		t.Fatalf("new triple credit: %#v", fa.calls[1])
	}
}

func TestUpdateTaskRescheduleHasNoQuotaEffect(t *testing.T) {
	fs := newFakeStore()
	fa := &fakeAdjuster{}
	svc := testService(fs, fa)
	seedTask(fs, domain.Task{ID: "t1", Title: "x", Status: domain.StatusPending, DueDate: "2026-08-31"})

	due := "2026-09-02"
	err := svc.UpdateTask(context.Background(), designerSession(), domain.TaskUpdate{ID: "t1", DueDate: &due})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if fs.tasks["t1"].DueDate != due {
		t.Fatalf("due date = %s", fs.tasks["t1"].DueDate)
	}
	if len(fa.calls) != 0 {
		t.Fatalf("drag reschedule must not touch quotas: %#v", fa.calls)
	}
}

func TestUpdateTaskMissing(t *testing.T) {
	svc := testService(newFakeStore(), &fakeAdjuster{})
	title := "x"
	err := svc.UpdateTask(context.Background(), managerSession(), domain.TaskUpdate{ID: "nope", Title: &title})
	if err != domain.ErrNotFound {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestDeleteTaskSoftDeletesAndDebits(t *testing.T) {
	fs := newFakeStore()
	fa := &fakeAdjuster{}
	svc := testService(fs, fa)
	seedTask(fs, domain.Task{
		ID: "t1", Title: "x", Status: domain.StatusApproved,
		Brand: "Acme", Scope: "Social Media", CreativeType: "Statics", DueDate: "2026-08-31",
	})

	if err := svc.DeleteTask(context.Background(), managerSession(), "t1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	got := fs.tasks["t1"]
	if !got.Deleted || got.DeletedBy != "lead@studio.test" || got.DeletedAt == "" {
		t.Fatalf("soft-delete flags: %#v", got)
	}
	if len(fa.calls) != 1 || fa.calls[0].amount != -1 {
		t.Fatalf("approved delete must debit: %#v", fa.calls)
	}

	// The row survives but never surfaces again.
	tasks, err := svc.Snapshot(context.Background(), domain.Window{Start: "2026-08-31", End: "2026-08-31"})
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if len(tasks) != 0 {
		t.Fatalf("deleted task leaked into snapshot: %#v", tasks)
	}
}

func TestDeleteTaskTwiceIsNoop(t *testing.T) {
	fs := newFakeStore()
	fa := &fakeAdjuster{}
	svc := testService(fs, fa)
	seedTask(fs, domain.Task{ID: "t1", Title: "x", Status: domain.StatusApproved})
	ctx := context.Background()

	if err := svc.DeleteTask(ctx, managerSession(), "t1"); err != nil {
		t.Fatalf("first delete: %v", err)
	}
	if err := svc.DeleteTask(ctx, managerSession(), "t1"); err != nil {
		t.Fatalf("second delete: %v", err)
	}
	if len(fa.calls) != 1 {
		t.Fatalf("double delete must debit once: %#v", fa.calls)
	}
}

func TestAddCommentUsesSessionIdentity(t *testing.T) {
	fs := newFakeStore()
	svc := testService(fs, &fakeAdjuster{})
	seedTask(fs, domain.Task{ID: "t1", Title: "x", Status: domain.StatusPending})

	c, err := svc.AddComment(context.Background(), designerSession(), "t1", "looks off-brand")
	if err != nil {
		t.Fatalf("comment: %v", err)
	}
	if c.Author != "Dana" || c.AuthorAvatar != "https://img/dana.png" || c.ID == "" {
		t.Fatalf("comment identity: %#v", c)
	}
	got, _ := svc.Comments(context.Background(), "t1")
	if len(got) != 1 || got[0].Text != "looks off-brand" {
		t.Fatalf("stored comments: %#v", got)
	}
}

func TestAddCommentRejectsEmptyAndMissing(t *testing.T) {
	fs := newFakeStore()
	svc := testService(fs, &fakeAdjuster{})
	seedTask(fs, domain.Task{ID: "t1", Title: "x"})
	ctx := context.Background()

	if _, err := svc.AddComment(ctx, designerSession(), "t1", "  "); err != ErrInvalidTask {
		t.Fatalf("empty text: %v", err)
	}
	if _, err := svc.AddComment(ctx, designerSession(), "ghost", "hello"); err != domain.ErrNotFound {
		t.Fatalf("missing task: %v", err)
	}
}
