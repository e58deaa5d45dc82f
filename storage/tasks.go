package storage

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/data/aztables"

	"studioboard/domain"
)

type taskEntity struct {
	aztables.Entity
	Title            string `json:"Title"`
	Description      string `json:"Description"`
	Link             string `json:"Link"`
	Status           string `json:"Status"`
	DueDate          string `json:"DueDate"`
	DesignerID       string `json:"DesignerId"`
	Brand            string `json:"Brand"`
	CreativeType     string `json:"CreativeType"`
	Scope            string `json:"Scope"`
	AssignedBy       string `json:"AssignedBy"`
	AssignedByAvatar string `json:"AssignedByAvatar"`
	ReworkCount      int    `json:"ReworkCount"`
	CreatedAt        string `json:"CreatedAt"`
	UpdatedAt        string `json:"UpdatedAt"`
	Deleted          bool   `json:"Deleted"`
	DeletedAt        string `json:"DeletedAt"`
	DeletedBy        string `json:"DeletedBy"`
}

func (e taskEntity) toDomain() domain.Task {
	return domain.Task{
		ID:               e.RowKey,
		Title:            e.Title,
		Description:      e.Description,
		Link:             e.Link,
		Status:           domain.Status(e.Status),
		DueDate:          e.DueDate,
		DesignerID:       e.DesignerID,
		Brand:            e.Brand,
		CreativeType:     e.CreativeType,
		Scope:            e.Scope,
		AssignedBy:       e.AssignedBy,
		AssignedByAvatar: e.AssignedByAvatar,
		ReworkCount:      e.ReworkCount,
		CreatedAt:        e.CreatedAt,
		UpdatedAt:        e.UpdatedAt,
		Deleted:          e.Deleted,
		DeletedAt:        e.DeletedAt,
		DeletedBy:        e.DeletedBy,
	}
}

func taskToEntity(board string, t domain.Task) taskEntity {
	return taskEntity{
		Entity:           aztables.Entity{PartitionKey: board, RowKey: t.ID},
		Title:            t.Title,
		Description:      t.Description,
		Link:             t.Link,
		Status:           string(t.Status),
		DueDate:          t.DueDate,
		DesignerID:       t.DesignerID,
		Brand:            t.Brand,
		CreativeType:     t.CreativeType,
		Scope:            t.Scope,
		AssignedBy:       t.AssignedBy,
		AssignedByAvatar: t.AssignedByAvatar,
		ReworkCount:      t.ReworkCount,
		CreatedAt:        t.CreatedAt,
		UpdatedAt:        t.UpdatedAt,
		Deleted:          t.Deleted,
		DeletedAt:        t.DeletedAt,
		DeletedBy:        t.DeletedBy,
	}
}

func windowFilter(board string, w domain.Window) string {
	return "PartitionKey eq '" + quoteFilterValue(board) + "'" +
		" and Deleted ne true" +
		" and DueDate ge '" + quoteFilterValue(w.Start) + "'" +
		" and DueDate le '" + quoteFilterValue(w.End) + "'"
}

func activeFilter(board string) string {
	return "PartitionKey eq '" + quoteFilterValue(board) + "'" +
		" and Deleted ne true" +
		" and Status ne '" + string(domain.StatusApproved) + "'"
}

func (s *Storage) listTasks(ctx context.Context, filter string) ([]domain.Task, error) {
	pager := s.taskTable.NewListEntitiesPager(&aztables.ListEntitiesOptions{Filter: &filter})
	tasks := []domain.Task{}
	for pager.More() {
		resp, err := pager.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, raw := range resp.Entities {
			var ent taskEntity
			if err := json.Unmarshal(raw, &ent); err != nil {
				return nil, err
			}
			tasks = append(tasks, ent.toDomain())
		}
	}
	return tasks, nil
}

// ListTasks retrieves all live tasks whose due date falls inside the window,
// inclusive. Soft-deleted tasks are filtered out server-side.
func (s *Storage) ListTasks(ctx context.Context, board string, w domain.Window) ([]domain.Task, error) {
	return s.listTasks(ctx, windowFilter(board, w))
}

// ListActiveTasks retrieves every live non-Approved task on the board,
// unbounded by any window. Used by the overdue rollover scan.
func (s *Storage) ListActiveTasks(ctx context.Context, board string) ([]domain.Task, error) {
	return s.listTasks(ctx, activeFilter(board))
}

// GetTask retrieves a task if present; (nil, nil) on a 404.
func (s *Storage) GetTask(ctx context.Context, board, id string) (*domain.Task, error) {
	ent, err := s.taskTable.GetEntity(ctx, board, id, nil)
	if err != nil {
		var respErr *azcore.ResponseError
		if errors.As(err, &respErr) && respErr.StatusCode == 404 {
			return nil, nil
		}
		return nil, err
	}
	var task taskEntity
	if err := json.Unmarshal(ent.Value, &task); err != nil {
		return nil, err
	}
	t := task.toDomain()
	return &t, nil
}

// InsertTask persists a new task. The caller assigns the durable id.
func (s *Storage) InsertTask(ctx context.Context, board string, t domain.Task) error {
	payload, err := json.Marshal(taskToEntity(board, t))
	if err != nil {
		return err
	}
	_, err = s.taskTable.AddEntity(ctx, payload, nil)
	return err
}

// UpdateTask merges the given fields into an existing task. Field-level
// last-writer-wins: no version token is used on the task collection.
func (s *Storage) UpdateTask(ctx context.Context, board, id string, fields map[string]any) error {
	payload, err := mergePayload(board, id, fields)
	if err != nil {
		return err
	}
	et := azcore.ETagAny
	_, err = s.taskTable.UpdateEntity(ctx, payload, &aztables.UpdateEntityOptions{IfMatch: &et, UpdateMode: aztables.UpdateModeMerge})
	if isNotFound(err) {
		return domain.ErrNotFound
	}
	return err
}

// rolloverBatchLimit is the table-transaction action cap.
const rolloverBatchLimit = 100

// BatchReschedule rewrites the due date and updated-at stamp of the given
// tasks. Each chunk of up to 100 entities commits atomically.
func (s *Storage) BatchReschedule(ctx context.Context, board string, ids []string, dueDate, updatedAt string) error {
	for start := 0; start < len(ids); start += rolloverBatchLimit {
		end := start + rolloverBatchLimit
		if end > len(ids) {
			end = len(ids)
		}
		actions := make([]aztables.TransactionAction, 0, end-start)
		for _, id := range ids[start:end] {
			payload, err := mergePayload(board, id, map[string]any{
				"DueDate":   dueDate,
				"UpdatedAt": updatedAt,
			})
			if err != nil {
				return err
			}
			actions = append(actions, aztables.TransactionAction{
				ActionType: aztables.TransactionTypeUpdateMerge,
				Entity:     payload,
			})
		}
		if _, err := s.taskTable.SubmitTransaction(ctx, actions, nil); err != nil {
			return err
		}
	}
	return nil
}

func mergePayload(pk, rk string, fields map[string]any) ([]byte, error) {
	ent := make(map[string]any, len(fields)+2)
	for k, v := range fields {
		ent[k] = v
	}
	ent["PartitionKey"] = pk
	ent["RowKey"] = rk
	return json.Marshal(ent)
}

func isNotFound(err error) bool {
	var respErr *azcore.ResponseError
	return errors.As(err, &respErr) && respErr.StatusCode == 404
}
