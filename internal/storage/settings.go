package storage

import (
	"database/sql"
	"fmt"
	"time"
)

const settingColumns = `id, provider_id, api_key, model, base_url, is_active, tested_at`

// ListSettings returns all provider configurations, most recently tested first.
func (s *Store) ListSettings() ([]Setting, error) {
	rows, err := s.db.Query(`SELECT ` + settingColumns + ` FROM settings ORDER BY tested_at DESC, id DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []Setting
	for rows.Next() {
		st, err := scanSetting(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, st)
	}
	return results, rows.Err()
}

// GetActiveSetting returns the single active configuration, or ErrNotFound
// if no row is marked active.
func (s *Store) GetActiveSetting() (Setting, error) {
	row := s.db.QueryRow(`SELECT ` + settingColumns + ` FROM settings WHERE is_active = 1`)
	st, err := scanSetting(row)
	if err == sql.ErrNoRows {
		return Setting{}, ErrNotFound
	}
	return st, err
}

// UpsertSetting inserts or updates the row keyed by (provider_id, model) and
// returns its id. When the incoming setting is active, every other row's
// active flag is cleared in the same transaction so a concurrent reader never
// observes more than one active row.
func (s *Store) UpsertSetting(in Setting) (int64, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("beginning upsert transaction: %w", err)
	}
	defer tx.Rollback()

	if in.IsActive {
		if _, err := tx.Exec(`UPDATE settings SET is_active = 0 WHERE is_active = 1`); err != nil {
			return 0, fmt.Errorf("clearing active flags: %w", err)
		}
	}

	var id int64
	err = tx.QueryRow(`SELECT id FROM settings WHERE provider_id = ? AND model = ?`,
		in.ProviderID, in.Model).Scan(&id)
	switch {
	case err == sql.ErrNoRows:
		res, err := tx.Exec(`
			INSERT INTO settings (provider_id, api_key, model, base_url, is_active, tested_at)
			VALUES (?, ?, ?, ?, ?, ?)`,
			in.ProviderID, in.APIKey, in.Model, in.BaseURL, boolToInt(in.IsActive), nullableTime(in.TestedAt),
		)
		if err != nil {
			return 0, fmt.Errorf("inserting setting: %w", err)
		}
		if id, err = res.LastInsertId(); err != nil {
			return 0, err
		}
	case err != nil:
		return 0, fmt.Errorf("looking up setting: %w", err)
	default:
		if _, err := tx.Exec(`
			UPDATE settings SET api_key = ?, base_url = ?, is_active = ?, tested_at = ?
			WHERE id = ?`,
			in.APIKey, in.BaseURL, boolToInt(in.IsActive), nullableTime(in.TestedAt), id,
		); err != nil {
			return 0, fmt.Errorf("updating setting: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing upsert: %w", err)
	}
	return id, nil
}

// DeleteSetting removes a configuration by id. Deleting a missing id is a no-op.
func (s *Store) DeleteSetting(id int64) error {
	_, err := s.db.Exec(`DELETE FROM settings WHERE id = ?`, id)
	return err
}

func scanSetting(row rowScanner) (Setting, error) {
	var st Setting
	var active int
	var testedAt sql.NullString
	err := row.Scan(&st.ID, &st.ProviderID, &st.APIKey, &st.Model, &st.BaseURL, &active, &testedAt)
	if err != nil {
		return Setting{}, err
	}
	st.IsActive = active != 0
	if testedAt.Valid {
		t, err := time.Parse(time.RFC3339, testedAt.String)
		if err != nil {
			return Setting{}, fmt.Errorf("parsing tested_at: %w", err)
		}
		st.TestedAt = &t
	}
	return st, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullableTime(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return t.UTC().Format(time.RFC3339)
}
