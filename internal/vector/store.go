// Package vector provides similarity search over named collections stored in
// SQLite. Collections are lazily created tables; search is brute-force cosine
// similarity with a top-K heap, which is fine for the collection sizes a
// single-user studio produces.
package vector

import (
	"container/heap"
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

// DefaultSearchLimit is the limit callers should use when none was requested.
const DefaultSearchLimit = 5

const tablePrefix = "vec_"

// Collection names become table identifiers, so the charset is restricted.
var collectionNameRe = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9_]*$`)

// Record is a row in a collection: an opaque payload plus its embedding.
type Record struct {
	ID        string    `json:"id"`
	Payload   string    `json:"payload"`
	Embedding []float32 `json:"embedding,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// ScoredRecord is a Record with a similarity score attached.
type ScoredRecord struct {
	Record
	Score float32 `json:"score"`
}

// Store provides vector storage over an existing SQLite connection.
type Store struct {
	db *sql.DB
}

// New wraps an existing *sql.DB for vector operations. Collection tables are
// created on first insert; no migrations are required.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// Add inserts records into the named collection, creating the collection if
// it does not exist yet. Absence is decided by an explicit catalog lookup,
// never by interpreting engine errors. Records without an ID get a generated
// one; the number of inserted records is returned.
func (s *Store) Add(collection string, records []Record) (int, error) {
	table, err := tableFor(collection)
	if err != nil {
		return 0, err
	}

	exists, err := s.tableExists(table)
	if err != nil {
		return 0, err
	}
	if !exists {
		if err := s.createCollection(table); err != nil {
			return 0, fmt.Errorf("creating collection %q: %w", collection, err)
		}
	}

	tx, err := s.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("beginning insert transaction: %w", err)
	}

	stmt, err := tx.Prepare(`INSERT INTO ` + table + ` (id, payload, embedding, created_at) VALUES (?, ?, ?, ?)`)
	if err != nil {
		tx.Rollback()
		return 0, fmt.Errorf("preparing insert statement: %w", err)
	}
	defer stmt.Close()

	for _, r := range records {
		id := r.ID
		if id == "" {
			id = uuid.New().String()
		}
		createdAt := r.CreatedAt
		if createdAt.IsZero() {
			createdAt = time.Now().UTC()
		}
		blob := encodeFloat32s(r.Embedding)
		if _, err := stmt.Exec(id, r.Payload, blob, createdAt.Format(time.RFC3339)); err != nil {
			tx.Rollback()
			return 0, fmt.Errorf("inserting record %s: %w", id, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return len(records), nil
}

// idScore holds only the ID and score during the scan phase of Search.
// Full record details are fetched only for top-K winners.
type idScore struct {
	ID    string
	Score float32
}

// Search returns the limit most similar records in the collection, nearest
// first. A collection that was never added to yields an empty result, not an
// error, so callers need no existence check before searching. A non-positive
// limit also yields an empty result.
func (s *Store) Search(collection string, vector []float32, limit int) ([]ScoredRecord, error) {
	table, err := tableFor(collection)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		return nil, nil
	}

	exists, err := s.tableExists(table)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, nil
	}

	queryNorm := norm(vector)
	if queryNorm == 0 {
		return nil, nil
	}

	// Phase 1: scan only id + embedding to find top-K candidates.
	rows, err := s.db.Query(`SELECT id, embedding FROM ` + table)
	if err != nil {
		return nil, fmt.Errorf("querying vectors: %w", err)
	}
	defer rows.Close()

	h := &idScoreHeap{}
	heap.Init(h)

	// Reusable buffer for decoding embeddings to avoid per-row allocations.
	var buf []float32

	for rows.Next() {
		var id string
		var blob []byte
		if err := rows.Scan(&id, &blob); err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}

		buf, err = decodeFloat32sInto(buf, blob)
		if err != nil {
			return nil, fmt.Errorf("decoding embedding for %s: %w", id, err)
		}

		score := dotProduct(vector, buf, queryNorm)
		if h.Len() < limit {
			heap.Push(h, idScore{ID: id, Score: score})
		} else if score > (*h)[0].Score {
			(*h)[0] = idScore{ID: id, Score: score}
			heap.Fix(h, 0)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating rows: %w", err)
	}

	if h.Len() == 0 {
		return nil, nil
	}

	// Phase 2: fetch full records only for the top-K IDs.
	topIDs := make([]string, h.Len())
	scores := make(map[string]float32, h.Len())
	for i := len(topIDs) - 1; i >= 0; i-- {
		item := heap.Pop(h).(idScore)
		topIDs[i] = item.ID
		scores[item.ID] = item.Score
	}

	queryArgs := make([]interface{}, len(topIDs))
	for i, id := range topIDs {
		queryArgs[i] = id
	}
	fullQuery := `SELECT id, payload, embedding, created_at FROM ` + table +
		` WHERE id IN (?` + strings.Repeat(",?", len(topIDs)-1) + `)`

	fullRows, err := s.db.Query(fullQuery, queryArgs...)
	if err != nil {
		return nil, fmt.Errorf("fetching top-K records: %w", err)
	}
	defer fullRows.Close()

	var results []ScoredRecord
	for fullRows.Next() {
		var r Record
		var blob []byte
		var createdAt string
		if err := fullRows.Scan(&r.ID, &r.Payload, &blob, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning full record: %w", err)
		}
		embedding, err := decodeFloat32s(blob)
		if err != nil {
			return nil, fmt.Errorf("decoding embedding for %s: %w", r.ID, err)
		}
		r.Embedding = embedding
		t, err := time.Parse(time.RFC3339, createdAt)
		if err != nil {
			return nil, fmt.Errorf("parsing created_at: %w", err)
		}
		r.CreatedAt = t
		results = append(results, ScoredRecord{Record: r, Score: scores[r.ID]})
	}
	if err := fullRows.Err(); err != nil {
		return nil, fmt.Errorf("iterating full records: %w", err)
	}

	// Sort results by score descending (IN query doesn't preserve order).
	sortByScore(results)

	return results, nil
}

// ListCollections returns the names of all known collections in sorted order.
func (s *Store) ListCollections() ([]string, error) {
	rows, err := s.db.Query(`SELECT name FROM sqlite_master
		WHERE type = 'table' AND name LIKE ? ORDER BY name`, tablePrefix+"%")
	if err != nil {
		return nil, fmt.Errorf("querying collections: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, strings.TrimPrefix(name, tablePrefix))
	}
	return names, rows.Err()
}

// Count returns the number of records in the collection, 0 if it does not exist.
func (s *Store) Count(collection string) (int, error) {
	table, err := tableFor(collection)
	if err != nil {
		return 0, err
	}
	exists, err := s.tableExists(table)
	if err != nil || !exists {
		return 0, err
	}
	var count int
	err = s.db.QueryRow(`SELECT COUNT(*) FROM ` + table).Scan(&count)
	return count, err
}

func tableFor(collection string) (string, error) {
	if !collectionNameRe.MatchString(collection) {
		return "", fmt.Errorf("invalid collection name %q", collection)
	}
	return tablePrefix + collection, nil
}

func (s *Store) tableExists(table string) (bool, error) {
	var count int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?`, table).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("checking collection table: %w", err)
	}
	return count > 0, nil
}

func (s *Store) createCollection(table string) error {
	_, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS ` + table + ` (
		id TEXT PRIMARY KEY,
		payload TEXT NOT NULL,
		embedding BLOB NOT NULL,
		created_at TEXT NOT NULL
	)`)
	return err
}

// sortByScore sorts ScoredRecords by Score descending. Used for small slices (topK).
func sortByScore(results []ScoredRecord) {
	for i := 1; i < len(results); i++ {
		for j := i; j > 0 && results[j].Score > results[j-1].Score; j-- {
			results[j], results[j-1] = results[j-1], results[j]
		}
	}
}

// encodeFloat32s serializes a float32 slice to little-endian bytes.
func encodeFloat32s(v []float32) []byte {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

// decodeFloat32s deserializes little-endian bytes into a new float32 slice.
// Returns an error if the byte slice length is not a multiple of 4 (indicates data corruption).
func decodeFloat32s(b []byte) ([]float32, error) {
	if len(b)%4 != 0 {
		return nil, fmt.Errorf("byte slice length %d is not a multiple of 4", len(b))
	}
	n := len(b) / 4
	v := make([]float32, n)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return v, nil
}

// decodeFloat32sInto decodes little-endian bytes into the provided buffer,
// reusing it to avoid per-row allocations during search scans.
func decodeFloat32sInto(buf []float32, b []byte) ([]float32, error) {
	if len(b)%4 != 0 {
		return nil, fmt.Errorf("byte slice length %d is not a multiple of 4", len(b))
	}
	n := len(b) / 4
	if cap(buf) < n {
		buf = make([]float32, n)
	} else {
		buf = buf[:n]
	}
	for i := range buf {
		buf[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return buf, nil
}

// norm returns the L2 norm of a vector.
func norm(v []float32) float32 {
	var sum float64
	for _, f := range v {
		sum += float64(f) * float64(f)
	}
	return float32(math.Sqrt(sum))
}

// dotProduct computes cosine similarity as dot(a,b) / (aNorm * bNorm).
// aNorm is the precomputed L2 norm of vector a.
func dotProduct(a, b []float32, aNorm float32) float32 {
	if len(a) != len(b) {
		return 0
	}
	var dot float64
	var bNormSq float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		bNormSq += float64(b[i]) * float64(b[i])
	}
	bNorm := math.Sqrt(bNormSq)
	if bNorm == 0 {
		return 0
	}
	return float32(dot / (float64(aNorm) * bNorm))
}

// idScoreHeap is a min-heap of idScore ordered by Score.
// Used during the scan phase of Search to track top-K candidates by ID only.
type idScoreHeap []idScore

func (h idScoreHeap) Len() int            { return len(h) }
func (h idScoreHeap) Less(i, j int) bool  { return h[i].Score < h[j].Score }
func (h idScoreHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *idScoreHeap) Push(x interface{}) { *h = append(*h, x.(idScore)) }
func (h *idScoreHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}
