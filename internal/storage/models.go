package storage

import (
	"errors"
	"time"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// Prompt is a saved prompt record. Fields and Tones hold serialized JSON
// produced by the UI; the store treats them as opaque text.
type Prompt struct {
	ID                  int64      `json:"id"`
	Title               string     `json:"title"`
	Framework           string     `json:"framework"`
	Prompt              string     `json:"prompt"`
	Fields              string     `json:"fields"`
	Tones               string     `json:"tones"`
	Industry            string     `json:"industry,omitempty"`
	Role                string     `json:"role,omitempty"`
	QualityScore        *int       `json:"quality_score,omitempty"`
	QualityScoreDetails string     `json:"quality_score_details,omitempty"`
	ProviderID          string     `json:"provider_id,omitempty"`
	Model               string     `json:"model,omitempty"`
	SimpleIdea          string     `json:"simple_idea,omitempty"`
	CreatedAt           time.Time  `json:"created_at"`
	UpdatedAt           time.Time  `json:"updated_at"`
}

// PromptUpdate carries the settable fields for a partial prompt update.
// Nil pointers leave the stored value unchanged. ID and CreatedAt are not
// part of the settable set.
type PromptUpdate struct {
	Title               *string
	Framework           *string
	Prompt              *string
	Fields              *string
	Tones               *string
	Industry            *string
	Role                *string
	QualityScore        *int
	QualityScoreDetails *string
	ProviderID          *string
	Model               *string
	SimpleIdea          *string
}

// Setting is one provider credential/model configuration. At most one row
// has IsActive set at any time.
type Setting struct {
	ID         int64      `json:"id"`
	ProviderID string     `json:"provider_id"`
	APIKey     string     `json:"api_key"`
	Model      string     `json:"model"`
	BaseURL    string     `json:"base_url,omitempty"`
	IsActive   bool       `json:"is_active"`
	TestedAt   *time.Time `json:"tested_at,omitempty"`
}
