package domain

import (
	"math"
	"sort"
	"strings"
)

// QuotaKey derives the deterministic aggregate id for a brand/scope pair:
// lowercase display names with whitespace runs collapsed to underscores,
// joined by an underscore. Distinct pairs that normalize identically merge
// into one aggregate.
func QuotaKey(brand, scope string) string {
	return normalizeName(brand) + "_" + normalizeName(scope)
}

func normalizeName(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), "_")
}

// BrandQuota is the delivered-vs-target aggregate for one brand/scope pair,
// broken down by creative type. Delivered counts only durably approved work;
// tasks awaiting approval are layered on top at read time.
type BrandQuota struct {
	Key              string         `json:"key"`
	Brand            string         `json:"brand"`
	Scope            string         `json:"scope"`
	AssignedDesigner string         `json:"assignedDesigner,omitempty"`
	Targets          map[string]int `json:"targets"`
	Delivered        map[string]int `json:"delivered"`
	Deleted          bool           `json:"deleted,omitempty"`
}

// ApplyDelta adjusts the delivered count for one creative type, clamping at
// zero. Returns false when the stored value did not change.
func (q *BrandQuota) ApplyDelta(creativeType string, amount int) bool {
	if q.Delivered == nil {
		q.Delivered = map[string]int{}
	}
	cur := q.Delivered[creativeType]
	next := cur + amount
	if next < 0 {
		next = 0
	}
	if next == cur {
		return false
	}
	q.Delivered[creativeType] = next
	return true
}

// NewBrandQuota creates an aggregate seeded with a single delivered count.
func NewBrandQuota(brand, scope, creativeType string, delivered int) BrandQuota {
	if delivered < 0 {
		delivered = 0
	}
	return BrandQuota{
		Key:       QuotaKey(brand, scope),
		Brand:     brand,
		Scope:     scope,
		Targets:   map[string]int{creativeType: 0},
		Delivered: map[string]int{creativeType: delivered},
	}
}

// BrandStat is the dashboard view of one aggregate: stored delivered counts
// plus in-flight Submitted tasks, and an overall efficiency percentage.
type BrandStat struct {
	Brand            string         `json:"brand"`
	Scope            string         `json:"scope"`
	AssignedDesigner string         `json:"assignedDesigner,omitempty"`
	Targets          map[string]int `json:"targets"`
	Delivered        map[string]int `json:"delivered"`
	TotalTarget      int            `json:"totalTarget"`
	TotalDelivered   int            `json:"totalDelivered"`
	Efficiency       int            `json:"efficiency"`
}

// BrandStats derives dashboard rows for every live aggregate in the given
// scope. Delivered per type is the stored count plus the number of current
// Submitted tasks matching (brand, scope, type). Rows are sorted by total
// target, descending.
func BrandStats(quotas []BrandQuota, tasks []Task, scope string) []BrandStat {
	stats := make([]BrandStat, 0, len(quotas))
	for _, q := range quotas {
		if q.Deleted || q.Scope != scope {
			continue
		}
		st := BrandStat{
			Brand:            q.Brand,
			Scope:            q.Scope,
			AssignedDesigner: q.AssignedDesigner,
			Targets:          map[string]int{},
			Delivered:        map[string]int{},
		}
		for typ, n := range q.Targets {
			st.Targets[typ] = n
			st.TotalTarget += n
		}
		for typ, n := range q.Delivered {
			st.Delivered[typ] += n
		}
		for _, t := range tasks {
			if t.Deleted || t.Status != StatusSubmitted {
				continue
			}
			if t.Brand != q.Brand || t.Scope != q.Scope || t.CreativeType == "" {
				continue
			}
			st.Delivered[t.CreativeType]++
		}
		for _, n := range st.Delivered {
			st.TotalDelivered += n
		}
		if st.TotalTarget > 0 {
			st.Efficiency = int(math.Round(100 * float64(st.TotalDelivered) / float64(st.TotalTarget)))
		}
		stats = append(stats, st)
	}
	sort.SliceStable(stats, func(i, j int) bool { return stats[i].TotalTarget > stats[j].TotalTarget })
	return stats
}
