package vectorstore

import (
	"context"
	"testing"
)

func TestMemory_UpsertCountDelete(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	err := m.Upsert(ctx, []Record{
		rec("mem_0", []float32{1, 0}),
		rec("mem_1", []float32{0, 1}),
	})
	if err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if n, _ := m.Count(ctx); n != 2 {
		t.Errorf("count = %d, want 2", n)
	}

	if err := m.Delete(ctx, []string{"mem_1", "mem_404"}); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if n, _ := m.Count(ctx); n != 1 {
		t.Errorf("count after delete = %d, want 1", n)
	}
	if _, ok := m.Get("mem_1"); ok {
		t.Error("deleted record still present")
	}
}

func TestMemory_UpsertReplacesExisting(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	_ = m.Upsert(ctx, []Record{rec("mem_0", []float32{1, 0})})
	_ = m.Upsert(ctx, []Record{{ID: "mem_0", Document: "revised", Embedding: []float32{0, 1}}})

	if n, _ := m.Count(ctx); n != 1 {
		t.Fatalf("count = %d, want 1 after replace", n)
	}
	got, ok := m.Get("mem_0")
	if !ok || got.Document != "revised" {
		t.Errorf("record = %+v, want revised document", got)
	}
}

func TestMemory_QueryRanksByCosine(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	_ = m.Upsert(ctx, []Record{
		rec("mem_0", []float32{1, 0, 0}),
		rec("mem_1", []float32{0, 1, 0}),
		rec("mem_2", []float32{0.9, 0.1, 0}),
	})
	hits, err := m.Query(ctx, []float32{1, 0, 0}, 2)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(hits) != 2 {
		t.Fatalf("len(hits) = %d, want 2", len(hits))
	}
	if hits[0].ID != "mem_0" || hits[1].ID != "mem_2" {
		t.Errorf("hit order = %s, %s; want mem_0, mem_2", hits[0].ID, hits[1].ID)
	}
	if hits[0].Distance > hits[1].Distance {
		t.Errorf("distances not ascending: %v, %v", hits[0].Distance, hits[1].Distance)
	}
}

func TestMemory_QueryMoreThanStored(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	_ = m.Upsert(ctx, []Record{rec("mem_0", []float32{1, 0})})
	hits, err := m.Query(ctx, []float32{1, 0}, 10)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(hits) != 1 {
		t.Errorf("len(hits) = %d, want 1", len(hits))
	}
}
