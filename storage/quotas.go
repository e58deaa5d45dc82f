package storage

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/data/aztables"

	"studioboard/domain"
)

// quotaEntity stores one aggregate row. The per-type counter maps do not fit
// flat table properties, so they are persisted as JSON strings.
type quotaEntity struct {
	aztables.Entity
	Brand            string `json:"Brand"`
	Scope            string `json:"Scope"`
	AssignedDesigner string `json:"AssignedDesigner"`
	Targets          string `json:"Targets"`
	Delivered        string `json:"Delivered"`
	Deleted          bool   `json:"Deleted"`
}

func quotaToEntity(board string, q domain.BrandQuota) (quotaEntity, error) {
	targets, err := json.Marshal(q.Targets)
	if err != nil {
		return quotaEntity{}, err
	}
	delivered, err := json.Marshal(q.Delivered)
	if err != nil {
		return quotaEntity{}, err
	}
	return quotaEntity{
		Entity:           aztables.Entity{PartitionKey: board, RowKey: q.Key},
		Brand:            q.Brand,
		Scope:            q.Scope,
		AssignedDesigner: q.AssignedDesigner,
		Targets:          string(targets),
		Delivered:        string(delivered),
		Deleted:          q.Deleted,
	}, nil
}

func (e quotaEntity) toDomain() (domain.BrandQuota, error) {
	q := domain.BrandQuota{
		Key:              e.RowKey,
		Brand:            e.Brand,
		Scope:            e.Scope,
		AssignedDesigner: e.AssignedDesigner,
		Deleted:          e.Deleted,
	}
	if e.Targets != "" {
		if err := json.Unmarshal([]byte(e.Targets), &q.Targets); err != nil {
			return q, err
		}
	}
	if e.Delivered != "" {
		if err := json.Unmarshal([]byte(e.Delivered), &q.Delivered); err != nil {
			return q, err
		}
	}
	return q, nil
}

// GetQuota retrieves an aggregate and its version tag; (nil, "", nil) when
// the key does not exist.
func (s *Storage) GetQuota(ctx context.Context, board, key string) (*domain.BrandQuota, string, error) {
	resp, err := s.quotaTable.GetEntity(ctx, board, key, nil)
	if err != nil {
		var respErr *azcore.ResponseError
		if errors.As(err, &respErr) && respErr.StatusCode == 404 {
			return nil, "", nil
		}
		return nil, "", err
	}
	var ent quotaEntity
	if err := json.Unmarshal(resp.Value, &ent); err != nil {
		return nil, "", err
	}
	q, err := ent.toDomain()
	if err != nil {
		return nil, "", err
	}
	return &q, string(resp.ETag), nil
}

// InsertQuota creates a new aggregate row. A concurrent create of the same
// key surfaces as ErrConcurrencyConflict so the caller can re-read and
// retry as an update.
func (s *Storage) InsertQuota(ctx context.Context, board string, q domain.BrandQuota) error {
	ent, err := quotaToEntity(board, q)
	if err != nil {
		return err
	}
	payload, err := json.Marshal(ent)
	if err != nil {
		return err
	}
	_, err = s.quotaTable.AddEntity(ctx, payload, nil)
	var respErr *azcore.ResponseError
	if errors.As(err, &respErr) && respErr.StatusCode == 409 {
		return domain.ErrConcurrencyConflict
	}
	return err
}

// UpdateQuota replaces an aggregate row iff its version tag still matches.
// A lost race surfaces as ErrConcurrencyConflict.
func (s *Storage) UpdateQuota(ctx context.Context, board string, q domain.BrandQuota, etag string) error {
	ent, err := quotaToEntity(board, q)
	if err != nil {
		return err
	}
	payload, err := json.Marshal(ent)
	if err != nil {
		return err
	}
	et := azcore.ETag(etag)
	_, err = s.quotaTable.UpdateEntity(ctx, payload, &aztables.UpdateEntityOptions{IfMatch: &et, UpdateMode: aztables.UpdateModeReplace})
	var respErr *azcore.ResponseError
	if errors.As(err, &respErr) && (respErr.StatusCode == 412 || respErr.StatusCode == 409) {
		return domain.ErrConcurrencyConflict
	}
	return err
}

// UpsertQuota creates or replaces an aggregate unconditionally. Manual admin
// edits take this path; the automatic adjust path uses the CAS pair above.
func (s *Storage) UpsertQuota(ctx context.Context, board string, q domain.BrandQuota) error {
	ent, err := quotaToEntity(board, q)
	if err != nil {
		return err
	}
	payload, err := json.Marshal(ent)
	if err != nil {
		return err
	}
	_, err = s.quotaTable.UpsertEntity(ctx, payload, &aztables.UpsertEntityOptions{UpdateMode: aztables.UpdateModeReplace})
	return err
}

// ListQuotas retrieves all live aggregates on the board.
func (s *Storage) ListQuotas(ctx context.Context, board string) ([]domain.BrandQuota, error) {
	filter := "PartitionKey eq '" + quoteFilterValue(board) + "' and Deleted ne true"
	pager := s.quotaTable.NewListEntitiesPager(&aztables.ListEntitiesOptions{Filter: &filter})
	quotas := []domain.BrandQuota{}
	for pager.More() {
		resp, err := pager.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, raw := range resp.Entities {
			var ent quotaEntity
			if err := json.Unmarshal(raw, &ent); err != nil {
				return nil, err
			}
			q, err := ent.toDomain()
			if err != nil {
				return nil, err
			}
			quotas = append(quotas, q)
		}
	}
	return quotas, nil
}
