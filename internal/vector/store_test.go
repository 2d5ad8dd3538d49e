package vector

import (
	"database/sql"
	"fmt"
	"math"
	"testing"

	_ "modernc.org/sqlite"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("opening in-memory database: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })
	return New(db)
}

func TestAddCreatesCollection(t *testing.T) {
	s := openTestStore(t)

	count, err := s.Add("notes", []Record{
		{Payload: `{"text":"hello"}`, Embedding: []float32{1, 0, 0}},
		{Payload: `{"text":"world"}`, Embedding: []float32{0, 1, 0}},
	})
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	if count != 2 {
		t.Errorf("expected 2 inserted, got %d", count)
	}

	n, err := s.Count("notes")
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if n != 2 {
		t.Errorf("expected 2 records, got %d", n)
	}
}

func TestAddGeneratesIDs(t *testing.T) {
	s := openTestStore(t)

	if _, err := s.Add("notes", []Record{
		{ID: "fixed-id", Payload: `{}`, Embedding: []float32{1, 0}},
		{Payload: `{}`, Embedding: []float32{0, 1}},
	}); err != nil {
		t.Fatalf("Add: %v", err)
	}

	results, err := s.Search("notes", []float32{1, 0}, 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}

	seen := map[string]bool{}
	for _, r := range results {
		if r.ID == "" {
			t.Error("expected generated id, got empty")
		}
		if seen[r.ID] {
			t.Errorf("duplicate id %q", r.ID)
		}
		seen[r.ID] = true
	}
	if !seen["fixed-id"] {
		t.Error("caller-provided id was not preserved")
	}
}

func TestAddInvalidCollectionName(t *testing.T) {
	s := openTestStore(t)

	for _, name := range []string{"", "1numeric", "has space", "semi;colon", "drop-table"} {
		if _, err := s.Add(name, []Record{{Payload: `{}`, Embedding: []float32{1}}}); err == nil {
			t.Errorf("expected error for collection name %q", name)
		}
	}
}

func TestSearchNearestFirst(t *testing.T) {
	s := openTestStore(t)

	if _, err := s.Add("docs", []Record{
		{ID: "x", Payload: `{"k":"x"}`, Embedding: []float32{1, 0, 0}},
		{ID: "y", Payload: `{"k":"y"}`, Embedding: []float32{0.9, 0.1, 0}},
		{ID: "z", Payload: `{"k":"z"}`, Embedding: []float32{0, 0, 1}},
	}); err != nil {
		t.Fatalf("Add: %v", err)
	}

	results, err := s.Search("docs", []float32{1, 0, 0}, 2)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0].ID != "x" || results[1].ID != "y" {
		t.Errorf("wrong order: got %s, %s", results[0].ID, results[1].ID)
	}
	if results[0].Score < results[1].Score {
		t.Errorf("scores not descending: %f < %f", results[0].Score, results[1].Score)
	}
	if math.Abs(float64(results[0].Score)-1.0) > 1e-5 {
		t.Errorf("identical vector should score ~1.0, got %f", results[0].Score)
	}
	if results[0].Payload != `{"k":"x"}` {
		t.Errorf("payload mismatch: %q", results[0].Payload)
	}
}

func TestSearchMissingCollection(t *testing.T) {
	s := openTestStore(t)

	results, err := s.Search("nonexistent", []float32{1, 0}, 5)
	if err != nil {
		t.Fatalf("expected no error for missing collection, got %v", err)
	}
	if len(results) != 0 {
		t.Errorf("expected empty result, got %d", len(results))
	}
}

func TestSearchNonPositiveLimit(t *testing.T) {
	s := openTestStore(t)

	if _, err := s.Add("docs", []Record{{Payload: `{}`, Embedding: []float32{1}}}); err != nil {
		t.Fatalf("Add: %v", err)
	}

	for _, limit := range []int{0, -3} {
		results, err := s.Search("docs", []float32{1}, limit)
		if err != nil {
			t.Fatalf("Search(limit=%d): %v", limit, err)
		}
		if len(results) != 0 {
			t.Errorf("limit %d should return no results, got %d", limit, len(results))
		}
	}
}

func TestSearchZeroVector(t *testing.T) {
	s := openTestStore(t)

	if _, err := s.Add("docs", []Record{{Payload: `{}`, Embedding: []float32{1, 0}}}); err != nil {
		t.Fatalf("Add: %v", err)
	}

	results, err := s.Search("docs", []float32{0, 0}, 5)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("zero query vector should return no results, got %d", len(results))
	}
}

func TestSearchLimitLargerThanCollection(t *testing.T) {
	s := openTestStore(t)

	if _, err := s.Add("docs", []Record{
		{ID: "a", Payload: `{}`, Embedding: []float32{1, 0}},
		{ID: "b", Payload: `{}`, Embedding: []float32{0, 1}},
	}); err != nil {
		t.Fatalf("Add: %v", err)
	}

	results, err := s.Search("docs", []float32{1, 1}, 50)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 2 {
		t.Errorf("expected all 2 records back, got %d", len(results))
	}
}

func TestListCollections(t *testing.T) {
	s := openTestStore(t)

	names, err := s.ListCollections()
	if err != nil {
		t.Fatalf("ListCollections: %v", err)
	}
	if len(names) != 0 {
		t.Errorf("expected no collections initially, got %v", names)
	}

	for _, c := range []string{"notes", "docs", "archive"} {
		if _, err := s.Add(c, []Record{{Payload: `{}`, Embedding: []float32{1}}}); err != nil {
			t.Fatalf("Add(%s): %v", c, err)
		}
	}

	names, err = s.ListCollections()
	if err != nil {
		t.Fatalf("ListCollections: %v", err)
	}
	want := []string{"archive", "docs", "notes"}
	if len(names) != len(want) {
		t.Fatalf("expected %v, got %v", want, names)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("expected %v, got %v", want, names)
			break
		}
	}
}

func TestSearchLargeCollectionTopK(t *testing.T) {
	s := openTestStore(t)

	var records []Record
	for i := 0; i < 200; i++ {
		angle := float64(i) / 200 * math.Pi / 2
		records = append(records, Record{
			ID:        fmt.Sprintf("r%03d", i),
			Payload:   fmt.Sprintf(`{"i":%d}`, i),
			Embedding: []float32{float32(math.Cos(angle)), float32(math.Sin(angle))},
		})
	}
	if _, err := s.Add("big", records); err != nil {
		t.Fatalf("Add: %v", err)
	}

	// Query along the x axis: records with the smallest angle win.
	results, err := s.Search("big", []float32{1, 0}, 3)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	wantIDs := []string{"r000", "r001", "r002"}
	for i, want := range wantIDs {
		if results[i].ID != want {
			t.Errorf("result %d: got %s, want %s", i, results[i].ID, want)
		}
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	in := []float32{0.1, -2.5, 3.14159, 0, 1e-10}
	out, err := decodeFloat32s(encodeFloat32s(in))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(out) != len(in) {
		t.Fatalf("length mismatch: %d != %d", len(out), len(in))
	}
	for i := range in {
		if in[i] != out[i] {
			t.Errorf("index %d: %f != %f", i, in[i], out[i])
		}
	}
}

func TestDecodeCorruptBlob(t *testing.T) {
	if _, err := decodeFloat32s([]byte{1, 2, 3}); err == nil {
		t.Error("expected error for blob length not divisible by 4")
	}
}
