package domain

import "strings"

// BoardFilter narrows the visible task list without touching stored data.
type BoardFilter struct {
	DesignerID string    `json:"designerId,omitempty"`
	Statuses   []Status  `json:"statuses,omitempty"`
	Range      DateRange `json:"range,omitempty"`
	Search     string    `json:"search,omitempty"`
}

// Visible projects the stored task set through the filter: active designer,
// status set (empty set passes everything), inclusive date range, and a
// case-insensitive title/description search.
func Visible(tasks []Task, f BoardFilter) []Task {
	needle := strings.ToLower(strings.TrimSpace(f.Search))
	out := make([]Task, 0, len(tasks))
	for _, t := range tasks {
		if t.Deleted {
			continue
		}
		if f.DesignerID != "" && t.DesignerID != f.DesignerID {
			continue
		}
		if len(f.Statuses) > 0 && !statusIn(t.Status, f.Statuses) {
			continue
		}
		if !f.Range.Contains(t.DueDate) {
			continue
		}
		if needle != "" &&
			!strings.Contains(strings.ToLower(t.Title), needle) &&
			!strings.Contains(strings.ToLower(t.Description), needle) {
			continue
		}
		out = append(out, t)
	}
	return out
}

func statusIn(s Status, set []Status) bool {
	for _, v := range set {
		if v == s {
			return true
		}
	}
	return false
}
