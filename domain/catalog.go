package domain

// CatalogKind names one of the task categorization dimensions.
type CatalogKind string

const (
	CatalogBrands        CatalogKind = "brands"
	CatalogCreativeTypes CatalogKind = "creative-types"
	CatalogScopes        CatalogKind = "scopes"
)

// KnownCatalog reports whether k names a managed catalog.
func KnownCatalog(k CatalogKind) bool {
	switch k {
	case CatalogBrands, CatalogCreativeTypes, CatalogScopes:
		return true
	}
	return false
}

// CatalogEntry is one named entry in a brand/creative-type/scope list.
// Tasks reference entries by name, not id.
type CatalogEntry struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	CreatedAt string `json:"createdAt,omitempty"`
	Deleted   bool   `json:"deleted,omitempty"`
}

// Designer is a member of the creative team. The set is fixed configuration;
// designers are not created or edited at runtime.
type Designer struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Avatar string `json:"avatar,omitempty"`
}

// Comment is an append-only note on a task. Comments are never edited or
// removed.
type Comment struct {
	ID           string `json:"id"`
	TaskID       string `json:"taskId"`
	Text         string `json:"text"`
	Author       string `json:"author"`
	AuthorAvatar string `json:"authorAvatar,omitempty"`
	CreatedAt    string `json:"createdAt"`
}
