package domain

import "time"

// Status is the lifecycle state of a task. Transitions are linear:
// Pending -> Submitted -> Approved, with Rework sending a task back to the
// designer. Only Approved is terminal.
type Status string

const (
	StatusPending   Status = "Pending"
	StatusSubmitted Status = "Submitted"
	StatusApproved  Status = "Approved"
	StatusRework    Status = "Rework"
)

// KnownStatus reports whether s is one of the four board statuses.
func KnownStatus(s Status) bool {
	switch s {
	case StatusPending, StatusSubmitted, StatusApproved, StatusRework:
		return true
	}
	return false
}

// Terminal reports whether a task in this status is excluded from the
// overdue rollover scan.
func (s Status) Terminal() bool { return s == StatusApproved }

// QuotaDelta returns the delivered-counter adjustment implied by a status
// transition: +1 entering Approved, -1 leaving it, 0 otherwise.
func QuotaDelta(old, new Status) int {
	if old == new {
		return 0
	}
	if new == StatusApproved {
		return 1
	}
	if old == StatusApproved {
		return -1
	}
	return 0
}

// DateLayout is the calendar-date format used for due dates. Zero-padded so
// lexical comparison matches chronological order.
const DateLayout = "2006-01-02"

// Today formats now as a board due date.
func Today(now time.Time) string { return now.Format(DateLayout) }

// Task is a unit of creative work on the board.
type Task struct {
	ID               string `json:"id"`
	Title            string `json:"title"`
	Description      string `json:"description,omitempty"`
	Link             string `json:"link,omitempty"`
	Status           Status `json:"status"`
	DueDate          string `json:"dueDate"`
	DesignerID       string `json:"designerId"`
	Brand            string `json:"brand,omitempty"`
	CreativeType     string `json:"creativeType,omitempty"`
	Scope            string `json:"scope,omitempty"`
	AssignedBy       string `json:"assignedBy,omitempty"`
	AssignedByAvatar string `json:"assignedByAvatar,omitempty"`
	ReworkCount      int    `json:"reworkCount,omitempty"`
	CreatedAt        string `json:"createdAt,omitempty"`
	UpdatedAt        string `json:"updatedAt,omitempty"`
	Deleted          bool   `json:"deleted,omitempty"`
	DeletedAt        string `json:"deletedAt,omitempty"`
	DeletedBy        string `json:"deletedBy,omitempty"`
}

// Overdue reports whether the task should be rolled forward: not deleted,
// not in a terminal status, and due strictly before today.
func (t Task) Overdue(today string) bool {
	if t.Deleted || t.Status.Terminal() {
		return false
	}
	return t.DueDate != "" && t.DueDate < today
}

// TaskUpdate carries a partial task edit. Nil fields are left untouched.
type TaskUpdate struct {
	ID               string  `json:"id"`
	Title            *string `json:"title,omitempty"`
	Description      *string `json:"description,omitempty"`
	Link             *string `json:"link,omitempty"`
	Status           *Status `json:"status,omitempty"`
	DueDate          *string `json:"dueDate,omitempty"`
	DesignerID       *string `json:"designerId,omitempty"`
	Brand            *string `json:"brand,omitempty"`
	CreativeType     *string `json:"creativeType,omitempty"`
	Scope            *string `json:"scope,omitempty"`
	AssignedBy       *string `json:"assignedBy,omitempty"`
	AssignedByAvatar *string `json:"assignedByAvatar,omitempty"`
}

// Merge applies the update to a copy of t and returns it. AssignedBy edits
// clear the stored avatar unless the update carries one of its own.
func (u TaskUpdate) Merge(t Task) Task {
	if u.Title != nil {
		t.Title = *u.Title
	}
	if u.Description != nil {
		t.Description = *u.Description
	}
	if u.Link != nil {
		t.Link = *u.Link
	}
	if u.Status != nil {
		t.Status = *u.Status
	}
	if u.DueDate != nil {
		t.DueDate = *u.DueDate
	}
	if u.DesignerID != nil {
		t.DesignerID = *u.DesignerID
	}
	if u.Brand != nil {
		t.Brand = *u.Brand
	}
	if u.CreativeType != nil {
		t.CreativeType = *u.CreativeType
	}
	if u.Scope != nil {
		t.Scope = *u.Scope
	}
	if u.AssignedBy != nil {
		t.AssignedBy = *u.AssignedBy
		t.AssignedByAvatar = ""
	}
	if u.AssignedByAvatar != nil {
		t.AssignedByAvatar = *u.AssignedByAvatar
	}
	return t
}
