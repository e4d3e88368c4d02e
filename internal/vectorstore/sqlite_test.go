package vectorstore

import (
	"context"
	"os"
	"testing"
)

func testStore(t *testing.T) *SQLite {
	t.Helper()
	f, err := os.CreateTemp("", "mimir-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	f.Close()
	t.Cleanup(func() { os.Remove(f.Name()) })

	s, err := Open(f.Name(), 4)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func rec(id string, v []float32) Record {
	return Record{ID: id, Document: "doc " + id, Embedding: v, Source: "s.md", Section: "Sec"}
}

func TestSQLite_UpsertAndCount(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	err := s.Upsert(ctx, []Record{
		rec("mem_0", []float32{1, 0, 0, 0}),
		rec("mem_1", []float32{0, 1, 0, 0}),
	})
	if err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	n, err := s.Count(ctx)
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if n != 2 {
		t.Errorf("count = %d, want 2", n)
	}
}

func TestSQLite_UpsertReplacesExisting(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	_ = s.Upsert(ctx, []Record{rec("mem_0", []float32{1, 0, 0, 0})})
	if err := s.Upsert(ctx, []Record{{ID: "mem_0", Document: "revised", Embedding: []float32{0, 0, 0, 1}}}); err != nil {
		t.Fatalf("second Upsert: %v", err)
	}

	n, _ := s.Count(ctx)
	if n != 1 {
		t.Fatalf("count = %d, want 1 after replace", n)
	}
	hits, err := s.Query(ctx, []float32{0, 0, 0, 1}, 1)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(hits) != 1 || hits[0].Document != "revised" {
		t.Errorf("hits = %+v, want revised document", hits)
	}
}

func TestSQLite_QueryRanksByDistance(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	_ = s.Upsert(ctx, []Record{
		rec("mem_0", []float32{1, 0, 0, 0}),
		rec("mem_1", []float32{0, 1, 0, 0}),
		rec("mem_2", []float32{0.9, 0.1, 0, 0}),
	})
	hits, err := s.Query(ctx, []float32{1, 0, 0, 0}, 2)
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

func TestSQLite_DeleteRemovesFromKNN(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	_ = s.Upsert(ctx, []Record{
		rec("mem_0", []float32{1, 0, 0, 0}),
		rec("mem_1", []float32{0, 1, 0, 0}),
	})
	if err := s.Delete(ctx, []string{"mem_0", "mem_404"}); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	n, _ := s.Count(ctx)
	if n != 1 {
		t.Errorf("count = %d, want 1", n)
	}
	hits, _ := s.Query(ctx, []float32{1, 0, 0, 0}, 5)
	for _, h := range hits {
		if h.ID == "mem_0" {
			t.Error("deleted record still queryable")
		}
	}
}

func TestSQLite_DimensionMismatch(t *testing.T) {
	s := testStore(t)
	err := s.Upsert(context.Background(), []Record{rec("mem_0", []float32{1, 0})})
	if err == nil {
		t.Error("expected dimension error")
	}
}

func TestOpen_InvalidDims(t *testing.T) {
	if _, err := Open("ignored.db", 0); err == nil {
		t.Error("expected error for zero dimensions")
	}
}
