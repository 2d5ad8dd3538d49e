package storage

import (
	"database/sql"
	"fmt"
	"strings"
	"time"
)

const promptColumns = `id, title, framework, prompt, fields, tones, industry, role,
	quality_score, quality_score_details, provider_id, model, simple_idea, created_at, updated_at`

// SavePrompt inserts a new prompt row and returns the assigned id.
// Required columns are enforced by the schema; the store does not pre-validate.
func (s *Store) SavePrompt(p Prompt) (int64, error) {
	now := time.Now().UTC()
	res, err := s.db.Exec(`
		INSERT INTO prompts (title, framework, prompt, fields, tones, industry, role,
			quality_score, quality_score_details, provider_id, model, simple_idea, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.Title, p.Framework, p.Prompt, p.Fields, p.Tones, p.Industry, p.Role,
		p.QualityScore, p.QualityScoreDetails, p.ProviderID, p.Model, p.SimpleIdea,
		now.Format(time.RFC3339), now.Format(time.RFC3339),
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// GetPrompt returns a single prompt by id, or ErrNotFound.
func (s *Store) GetPrompt(id int64) (Prompt, error) {
	row := s.db.QueryRow(`SELECT `+promptColumns+` FROM prompts WHERE id = ?`, id)
	p, err := scanPrompt(row)
	if err == sql.ErrNoRows {
		return Prompt{}, ErrNotFound
	}
	return p, err
}

// ListPrompts returns all prompts ordered by created_at descending.
func (s *Store) ListPrompts() ([]Prompt, error) {
	return s.queryPrompts(`SELECT ` + promptColumns + ` FROM prompts ORDER BY created_at DESC, id DESC`)
}

// ListPromptsByFramework returns prompts for one framework, newest first.
func (s *Store) ListPromptsByFramework(framework string) ([]Prompt, error) {
	return s.queryPrompts(`SELECT `+promptColumns+` FROM prompts
		WHERE framework = ? ORDER BY created_at DESC, id DESC`, framework)
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// SearchPrompts returns prompts whose title or body contains query,
// case-insensitively, newest first. An empty query matches every row.
// LIKE metacharacters in the query match themselves, not wildcards.
func (s *Store) SearchPrompts(query string) ([]Prompt, error) {
	pattern := "%" + likeEscaper.Replace(query) + "%"
	return s.queryPrompts(`SELECT `+promptColumns+` FROM prompts
		WHERE title LIKE ? ESCAPE '\' OR prompt LIKE ? ESCAPE '\'
		ORDER BY created_at DESC, id DESC`, pattern, pattern)
}

// UpdatePrompt applies a partial update and stamps updated_at. The settable
// field list is closed: id and created_at are never touched. Updating a
// missing id is a no-op.
func (s *Store) UpdatePrompt(id int64, u PromptUpdate) error {
	set := []string{"updated_at = ?"}
	args := []interface{}{time.Now().UTC().Format(time.RFC3339)}

	add := func(column string, v interface{}) {
		set = append(set, column+" = ?")
		args = append(args, v)
	}
	if u.Title != nil {
		add("title", *u.Title)
	}
	if u.Framework != nil {
		add("framework", *u.Framework)
	}
	if u.Prompt != nil {
		add("prompt", *u.Prompt)
	}
	if u.Fields != nil {
		add("fields", *u.Fields)
	}
	if u.Tones != nil {
		add("tones", *u.Tones)
	}
	if u.Industry != nil {
		add("industry", *u.Industry)
	}
	if u.Role != nil {
		add("role", *u.Role)
	}
	if u.QualityScore != nil {
		add("quality_score", *u.QualityScore)
	}
	if u.QualityScoreDetails != nil {
		add("quality_score_details", *u.QualityScoreDetails)
	}
	if u.ProviderID != nil {
		add("provider_id", *u.ProviderID)
	}
	if u.Model != nil {
		add("model", *u.Model)
	}
	if u.SimpleIdea != nil {
		add("simple_idea", *u.SimpleIdea)
	}

	args = append(args, id)
	_, err := s.db.Exec(`UPDATE prompts SET `+strings.Join(set, ", ")+` WHERE id = ?`, args...)
	return err
}

// DeletePrompt removes a prompt by id. Deleting a missing id is a no-op.
func (s *Store) DeletePrompt(id int64) error {
	_, err := s.db.Exec(`DELETE FROM prompts WHERE id = ?`, id)
	return err
}

func (s *Store) queryPrompts(query string, args ...interface{}) ([]Prompt, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []Prompt
	for rows.Next() {
		p, err := scanPrompt(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, p)
	}
	return results, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanPrompt(row rowScanner) (Prompt, error) {
	var p Prompt
	var score sql.NullInt64
	var createdAt, updatedAt string
	err := row.Scan(&p.ID, &p.Title, &p.Framework, &p.Prompt, &p.Fields, &p.Tones,
		&p.Industry, &p.Role, &score, &p.QualityScoreDetails,
		&p.ProviderID, &p.Model, &p.SimpleIdea, &createdAt, &updatedAt)
	if err != nil {
		return Prompt{}, err
	}
	if score.Valid {
		v := int(score.Int64)
		p.QualityScore = &v
	}
	if p.CreatedAt, err = time.Parse(time.RFC3339, createdAt); err != nil {
		return Prompt{}, fmt.Errorf("parsing created_at: %w", err)
	}
	if p.UpdatedAt, err = time.Parse(time.RFC3339, updatedAt); err != nil {
		return Prompt{}, fmt.Errorf("parsing updated_at: %w", err)
	}
	return p, nil
}
