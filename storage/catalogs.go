package storage

import (
	"context"
	"encoding/json"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/data/aztables"

	"studioboard/domain"
)

type catalogEntity struct {
	aztables.Entity
	Name      string `json:"Name"`
	CreatedAt string `json:"CreatedAt"`
	Deleted   bool   `json:"Deleted"`
}

// ListCatalog retrieves the live entries of one catalog, partitioned by
// kind.
func (s *Storage) ListCatalog(ctx context.Context, kind domain.CatalogKind) ([]domain.CatalogEntry, error) {
	filter := "PartitionKey eq '" + quoteFilterValue(string(kind)) + "' and Deleted ne true"
	pager := s.catalogTable.NewListEntitiesPager(&aztables.ListEntitiesOptions{Filter: &filter})
	entries := []domain.CatalogEntry{}
	for pager.More() {
		resp, err := pager.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, raw := range resp.Entities {
			var ent catalogEntity
			if err := json.Unmarshal(raw, &ent); err != nil {
				return nil, err
			}
			entries = append(entries, domain.CatalogEntry{
				ID:        ent.RowKey,
				Name:      ent.Name,
				CreatedAt: ent.CreatedAt,
				Deleted:   ent.Deleted,
			})
		}
	}
	return entries, nil
}

// InsertCatalogEntry persists a new catalog entry.
func (s *Storage) InsertCatalogEntry(ctx context.Context, kind domain.CatalogKind, e domain.CatalogEntry) error {
	ent := catalogEntity{
		Entity:    aztables.Entity{PartitionKey: string(kind), RowKey: e.ID},
		Name:      e.Name,
		CreatedAt: e.CreatedAt,
	}
	payload, err := json.Marshal(ent)
	if err != nil {
		return err
	}
	_, err = s.catalogTable.AddEntity(ctx, payload, nil)
	return err
}

// SoftDeleteCatalogEntry flags an entry as removed without dropping the row.
func (s *Storage) SoftDeleteCatalogEntry(ctx context.Context, kind domain.CatalogKind, id string) error {
	payload, err := mergePayload(string(kind), id, map[string]any{"Deleted": true})
	if err != nil {
		return err
	}
	et := azcore.ETagAny
	_, err = s.catalogTable.UpdateEntity(ctx, payload, &aztables.UpdateEntityOptions{IfMatch: &et, UpdateMode: aztables.UpdateModeMerge})
	if isNotFound(err) {
		return domain.ErrNotFound
	}
	return err
}
