package domain

import "encoding/json"

const (
	TaskCreated  = "task-created"
	TaskUpdated  = "task-updated"
	TaskDeleted  = "task-deleted"
	CommentAdded = "comment-added"
	QuotaUpdated = "quota-updated"
	CatalogEdit  = "catalog-edited"
)

// ChangeEvent is the envelope pushed through the change feed after every
// successful mutation. Watchers re-fetch their snapshot on receipt; the
// payload carries routing data only.
type ChangeEvent struct {
	ID         string          `json:"Id"`
	Board      string          `json:"Board"`
	EntityID   string          `json:"EntityId"`
	EntityType string          `json:"EntityType"`
	Type       string          `json:"Type"`
	Data       json.RawMessage `json:"Data,omitempty"`
	Time       int64           `json:"Time"`
	Actor      string          `json:"Actor,omitempty"`
}
