package quota

import (
	"context"
	"errors"

	log "github.com/sirupsen/logrus"

	"studioboard/domain"
)

// Store is the slice of persistence the aggregator needs.
type Store interface {
	GetQuota(ctx context.Context, board, key string) (*domain.BrandQuota, string, error)
	InsertQuota(ctx context.Context, board string, q domain.BrandQuota) error
	UpdateQuota(ctx context.Context, board string, q domain.BrandQuota, etag string) error
	UpsertQuota(ctx context.Context, board string, q domain.BrandQuota) error
	ListQuotas(ctx context.Context, board string) ([]domain.BrandQuota, error)
}

// Aggregator maintains the per-brand delivered/target counters. Automatic
// adjustments go through a compare-and-swap retry loop so that concurrent
// clients crediting the same key cannot lose an update.
type Aggregator struct {
	st    Store
	board string
}

func New(st Store, board string) *Aggregator {
	return &Aggregator{st: st, board: board}
}

// Adjust credits or debits the delivered counter for one creative type.
// Uncategorized work (any empty name) never touches quotas. A debit against
// a missing aggregate is a silent no-op; a credit creates the aggregate with
// a zero target.
func (a *Aggregator) Adjust(ctx context.Context, brand, scope, creativeType string, amount int) error {
	if brand == "" || scope == "" || creativeType == "" || amount == 0 {
		return nil
	}
	key := domain.QuotaKey(brand, scope)
	for {
		current, etag, err := a.st.GetQuota(ctx, a.board, key)
		if err != nil {
			return err
		}
		if current == nil {
			if amount < 0 {
				return nil
			}
			err := a.st.InsertQuota(ctx, a.board, domain.NewBrandQuota(brand, scope, creativeType, amount))
			if errors.Is(err, domain.ErrConcurrencyConflict) {
				// Lost the create race; re-read and apply as an update.
				continue
			}
			return err
		}
		q := *current
		if !q.ApplyDelta(creativeType, amount) {
			return nil
		}
		err = a.st.UpdateQuota(ctx, a.board, q, etag)
		if errors.Is(err, domain.ErrConcurrencyConflict) {
			log.WithFields(log.Fields{"quota": key, "type": creativeType}).Debug("quota adjust lost a race, retrying")
			continue
		}
		return err
	}
}

// Edit carries a manual aggregate update. Nil maps leave the stored maps
// untouched; a nil AssignedDesigner keeps the current assignment.
type Edit struct {
	Brand            string         `json:"brand"`
	Scope            string         `json:"scope"`
	AssignedDesigner *string        `json:"assignedDesigner,omitempty"`
	Targets          map[string]int `json:"targets,omitempty"`
	Delivered        map[string]int `json:"delivered,omitempty"`
}

// Upsert applies a manual admin edit, keyed by the same normalization rule
// as the automatic path.
func (a *Aggregator) Upsert(ctx context.Context, e Edit) error {
	key := domain.QuotaKey(e.Brand, e.Scope)
	current, _, err := a.st.GetQuota(ctx, a.board, key)
	if err != nil {
		return err
	}
	q := domain.BrandQuota{Key: key, Brand: e.Brand, Scope: e.Scope}
	if current != nil {
		q = *current
		q.Brand = e.Brand
		q.Scope = e.Scope
	}
	if e.AssignedDesigner != nil {
		q.AssignedDesigner = *e.AssignedDesigner
	}
	if e.Targets != nil {
		q.Targets = clampNonNegative(e.Targets)
	}
	if e.Delivered != nil {
		q.Delivered = clampNonNegative(e.Delivered)
	}
	return a.st.UpsertQuota(ctx, a.board, q)
}

// List returns all live aggregates, optionally narrowed to one scope.
func (a *Aggregator) List(ctx context.Context, scope string) ([]domain.BrandQuota, error) {
	quotas, err := a.st.ListQuotas(ctx, a.board)
	if err != nil {
		return nil, err
	}
	if scope == "" {
		return quotas, nil
	}
	out := quotas[:0]
	for _, q := range quotas {
		if q.Scope == scope {
			out = append(out, q)
		}
	}
	return out, nil
}

// Stats derives the dashboard rows for one scope: stored delivered counts
// plus the current in-flight Submitted tasks.
func (a *Aggregator) Stats(ctx context.Context, scope string, tasks []domain.Task) ([]domain.BrandStat, error) {
	quotas, err := a.st.ListQuotas(ctx, a.board)
	if err != nil {
		return nil, err
	}
	return domain.BrandStats(quotas, tasks, scope), nil
}

func clampNonNegative(m map[string]int) map[string]int {
	out := make(map[string]int, len(m))
	for k, v := range m {
		if v < 0 {
			v = 0
		}
		out[k] = v
	}
	return out
}
