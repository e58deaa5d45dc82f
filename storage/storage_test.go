package storage

import (
	"encoding/json"
	"strings"
	"testing"

	"studioboard/domain"
)

func TestWindowFilter(t *testing.T) {
	got := windowFilter("main", domain.Window{Start: "2026-08-31", End: "2026-09-04"})
	want := "PartitionKey eq 'main' and Deleted ne true and DueDate ge '2026-08-31' and DueDate le '2026-09-04'"
	if got != want {
		t.Fatalf("filter = %q, want %q", got, want)
	}
}

func TestActiveFilterExcludesApproved(t *testing.T) {
	got := activeFilter("main")
	if !strings.Contains(got, "Status ne 'Approved'") || !strings.Contains(got, "Deleted ne true") {
		t.Fatalf("unexpected filter: %q", got)
	}
}

func TestQuoteFilterValue(t *testing.T) {
	if got := quoteFilterValue("o'brien"); got != "o''brien" {
		t.Fatalf("got %q", got)
	}
}

func TestTaskEntityRoundTrip(t *testing.T) {
	task := domain.Task{
		ID:           "t1",
		Title:        "Acme banner",
		Description:  "hero asset",
		Status:       domain.StatusSubmitted,
		DueDate:      "2026-09-01",
		DesignerID:   "d1",
		Brand:        "Acme",
		CreativeType: "Statics",
		Scope:        "Social Media",
		ReworkCount:  2,
		CreatedAt:    "2026-08-30T10:00:00Z",
	}
	ent := taskToEntity("main", task)
	if ent.PartitionKey != "main" || ent.RowKey != "t1" {
		t.Fatalf("unexpected keys: %s/%s", ent.PartitionKey, ent.RowKey)
	}
	got := ent.toDomain()
	if got != task {
		t.Fatalf("round trip mismatch:\n got %#v\nwant %#v", got, task)
	}
}

func TestQuotaEntityRoundTrip(t *testing.T) {
	q := domain.BrandQuota{
		Key:              "acme_social_media",
		Brand:            "Acme",
		Scope:            "Social Media",
		AssignedDesigner: "d1",
		Targets:          map[string]int{"Statics": 10, "Videos": 3},
		Delivered:        map[string]int{"Statics": 4},
	}
	ent, err := quotaToEntity("main", q)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if ent.RowKey != "acme_social_media" {
		t.Fatalf("row key = %q", ent.RowKey)
	}
	got, err := ent.toDomain()
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Targets["Statics"] != 10 || got.Targets["Videos"] != 3 || got.Delivered["Statics"] != 4 {
		t.Fatalf("round trip mismatch: %#v", got)
	}
}

func TestQuotaEntityEmptyMaps(t *testing.T) {
	ent := quotaEntity{}
	got, err := ent.toDomain()
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Targets != nil || got.Delivered != nil {
		t.Fatalf("expected nil maps: %#v", got)
	}
}

func TestMergePayloadCarriesKeys(t *testing.T) {
	payload, err := mergePayload("main", "t1", map[string]any{"DueDate": "2026-09-01"})
	if err != nil {
		t.Fatalf("payload: %v", err)
	}
	var ent map[string]any
	if err := json.Unmarshal(payload, &ent); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if ent["PartitionKey"] != "main" || ent["RowKey"] != "t1" || ent["DueDate"] != "2026-09-01" {
		t.Fatalf("unexpected payload: %#v", ent)
	}
}
