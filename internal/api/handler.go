package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/dvsaikumar/promptlab/internal/composer"
	"github.com/dvsaikumar/promptlab/internal/extract"
	"github.com/dvsaikumar/promptlab/internal/highlight"
	"github.com/dvsaikumar/promptlab/internal/storage"
	"github.com/dvsaikumar/promptlab/internal/vector"
)

const maxRequestBodySize = 1 << 20 // 1MB
const maxUploadSize = 20 << 20     // 20MB

// Deps holds the stores the facade forwards to.
type Deps struct {
	Store   *storage.Store
	Vectors *vector.Store
	Token   string
}

// NewHandler returns the HTTP facade: health is public, everything else sits
// behind bearer auth. Handlers forward to the stores without batching,
// caching, or retries; store errors pass through as a flat error body.
func NewHandler(deps Deps) http.Handler {
	r := chi.NewRouter()

	r.Get("/health", handleHealth)

	r.Group(func(r chi.Router) {
		r.Use(BearerAuth(deps.Token))

		r.Get("/prompts", handleListPrompts(deps))
		r.Post("/prompts", handleSavePrompt(deps))
		r.Get("/prompts/search", handleSearchPrompts(deps))
		r.Post("/prompts/compose", handleCompose())
		r.Get("/prompts/{id}", handleGetPrompt(deps))
		r.Patch("/prompts/{id}", handleUpdatePrompt(deps))
		r.Delete("/prompts/{id}", handleDeletePrompt(deps))

		r.Get("/frameworks", handleListFrameworks())

		r.Get("/settings", handleListSettings(deps))
		r.Get("/settings/active", handleGetActiveSetting(deps))
		r.Put("/settings", handleUpsertSetting(deps))
		r.Delete("/settings/{id}", handleDeleteSetting(deps))

		r.Get("/collections", handleListCollections(deps))
		r.Post("/collections/{name}/records", handleVectorAdd(deps))
		r.Post("/collections/{name}/search", handleVectorSearch(deps))

		r.Post("/extract", handleExtract())
	})

	return r
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

// --- prompts ---

type promptPayload struct {
	Title               string `json:"title"`
	Framework           string `json:"framework"`
	Prompt              string `json:"prompt"`
	Fields              string `json:"fields"`
	Tones               string `json:"tones"`
	Industry            string `json:"industry"`
	Role                string `json:"role"`
	QualityScore        *int   `json:"quality_score"`
	QualityScoreDetails string `json:"quality_score_details"`
	ProviderID          string `json:"provider_id"`
	Model               string `json:"model"`
	SimpleIdea          string `json:"simple_idea"`
}

func handleSavePrompt(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		defer r.Body.Close()

		var req promptPayload
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}

		id, err := deps.Store.SavePrompt(storage.Prompt{
			Title:               req.Title,
			Framework:           req.Framework,
			Prompt:              req.Prompt,
			Fields:              req.Fields,
			Tones:               req.Tones,
			Industry:            req.Industry,
			Role:                req.Role,
			QualityScore:        req.QualityScore,
			QualityScoreDetails: req.QualityScoreDetails,
			ProviderID:          req.ProviderID,
			Model:               req.Model,
			SimpleIdea:          req.SimpleIdea,
		})
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to save prompt: %v", err)
			return
		}

		writeJSON(w, http.StatusCreated, map[string]int64{"id": id})
	}
}

func handleListPrompts(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var prompts []storage.Prompt
		var err error
		if framework := r.URL.Query().Get("framework"); framework != "" {
			prompts, err = deps.Store.ListPromptsByFramework(framework)
		} else {
			prompts, err = deps.Store.ListPrompts()
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to list prompts: %v", err)
			return
		}
		if prompts == nil {
			prompts = []storage.Prompt{}
		}
		writeJSON(w, http.StatusOK, prompts)
	}
}

func handleSearchPrompts(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		prompts, err := deps.Store.SearchPrompts(r.URL.Query().Get("q"))
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to search prompts: %v", err)
			return
		}
		if prompts == nil {
			prompts = []storage.Prompt{}
		}
		writeJSON(w, http.StatusOK, prompts)
	}
}

func handleGetPrompt(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := parseID(r)
		if err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid prompt id")
			return
		}

		p, err := deps.Store.GetPrompt(id)
		if errors.Is(err, storage.ErrNotFound) {
			httpError(w, http.StatusNotFound, "not_found", "prompt not found")
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to get prompt: %v", err)
			return
		}
		writeJSON(w, http.StatusOK, p)
	}
}

type promptUpdateRequest struct {
	Title               *string `json:"title"`
	Framework           *string `json:"framework"`
	Prompt              *string `json:"prompt"`
	Fields              *string `json:"fields"`
	Tones               *string `json:"tones"`
	Industry            *string `json:"industry"`
	Role                *string `json:"role"`
	QualityScore        *int    `json:"quality_score"`
	QualityScoreDetails *string `json:"quality_score_details"`
	ProviderID          *string `json:"provider_id"`
	Model               *string `json:"model"`
	SimpleIdea          *string `json:"simple_idea"`
}

func handleUpdatePrompt(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := parseID(r)
		if err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid prompt id")
			return
		}

		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		var req promptUpdateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}

		// An id in the body is ignored: the decode target has no such field.
		err = deps.Store.UpdatePrompt(id, storage.PromptUpdate{
			Title:               req.Title,
			Framework:           req.Framework,
			Prompt:              req.Prompt,
			Fields:              req.Fields,
			Tones:               req.Tones,
			Industry:            req.Industry,
			Role:                req.Role,
			QualityScore:        req.QualityScore,
			QualityScoreDetails: req.QualityScoreDetails,
			ProviderID:          req.ProviderID,
			Model:               req.Model,
			SimpleIdea:          req.SimpleIdea,
		})
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to update prompt: %v", err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "updated"})
	}
}

func handleDeletePrompt(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := parseID(r)
		if err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid prompt id")
			return
		}

		if err := deps.Store.DeletePrompt(id); err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to delete prompt: %v", err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
	}
}

func handleCompose() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		var req composer.Request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}

		text, err := composer.Compose(req)
		if err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "%v", err)
			return
		}

		writeJSON(w, http.StatusOK, map[string]any{
			"prompt": text,
			"spans":  highlight.Spans(text),
		})
	}
}

func handleListFrameworks() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"frameworks": composer.Frameworks(),
			"tones":      composer.Tones(),
		})
	}
}

// --- settings ---

type settingPayload struct {
	ProviderID string  `json:"provider_id"`
	APIKey     string  `json:"api_key"`
	Model      string  `json:"model"`
	BaseURL    string  `json:"base_url"`
	IsActive   bool    `json:"is_active"`
	TestedAt   *string `json:"tested_at"`
}

func handleListSettings(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		settings, err := deps.Store.ListSettings()
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to list settings: %v", err)
			return
		}
		if settings == nil {
			settings = []storage.Setting{}
		}
		writeJSON(w, http.StatusOK, settings)
	}
}

func handleGetActiveSetting(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		st, err := deps.Store.GetActiveSetting()
		if errors.Is(err, storage.ErrNotFound) {
			httpError(w, http.StatusNotFound, "not_found", "no active setting")
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to get active setting: %v", err)
			return
		}
		writeJSON(w, http.StatusOK, st)
	}
}

func handleUpsertSetting(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		var req settingPayload
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}

		setting := storage.Setting{
			ProviderID: req.ProviderID,
			APIKey:     req.APIKey,
			Model:      req.Model,
			BaseURL:    req.BaseURL,
			IsActive:   req.IsActive,
		}
		if req.TestedAt != nil {
			t, err := parseTimestamp(*req.TestedAt)
			if err != nil {
				httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid tested_at: %v", err)
				return
			}
			setting.TestedAt = &t
		}

		id, err := deps.Store.UpsertSetting(setting)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to upsert setting: %v", err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]int64{"id": id})
	}
}

func handleDeleteSetting(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := parseID(r)
		if err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid setting id")
			return
		}

		if err := deps.Store.DeleteSetting(id); err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to delete setting: %v", err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
	}
}

// --- vector collections ---

type vectorRecordPayload struct {
	ID        string          `json:"id,omitempty"`
	Payload   json.RawMessage `json:"payload"`
	Embedding []float32       `json:"embedding"`
}

func handleVectorAdd(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
		var req struct {
			Records []vectorRecordPayload `json:"records"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}
		if len(req.Records) == 0 {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "records is required and must not be empty")
			return
		}

		records := make([]vector.Record, len(req.Records))
		for i, rec := range req.Records {
			payload := rec.Payload
			if len(payload) == 0 {
				payload = json.RawMessage(`null`)
			}
			records[i] = vector.Record{
				ID:        rec.ID,
				Payload:   string(payload),
				Embedding: rec.Embedding,
			}
		}

		count, err := deps.Vectors.Add(chi.URLParam(r, "name"), records)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to add records: %v", err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "count": count})
	}
}

type scoredRecordPayload struct {
	ID        string          `json:"id"`
	Payload   json.RawMessage `json:"payload"`
	Score     float32         `json:"score"`
	CreatedAt string          `json:"created_at"`
}

func handleVectorSearch(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		var req struct {
			Vector []float32 `json:"vector"`
			Limit  *int      `json:"limit"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}

		limit := vector.DefaultSearchLimit
		if req.Limit != nil {
			limit = *req.Limit
		}

		scored, err := deps.Vectors.Search(chi.URLParam(r, "name"), req.Vector, limit)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to search: %v", err)
			return
		}

		results := make([]scoredRecordPayload, len(scored))
		for i, s := range scored {
			results[i] = scoredRecordPayload{
				ID:        s.ID,
				Payload:   json.RawMessage(s.Payload),
				Score:     s.Score,
				CreatedAt: s.CreatedAt.Format(timestampLayout),
			}
		}
		writeJSON(w, http.StatusOK, results)
	}
}

func handleListCollections(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		names, err := deps.Vectors.ListCollections()
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to list collections: %v", err)
			return
		}
		if names == nil {
			names = []string{}
		}
		writeJSON(w, http.StatusOK, map[string][]string{"collections": names})
	}
}

// --- extraction ---

func handleExtract() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
		file, header, err := r.FormFile("file")
		if err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "file is required: %v", err)
			return
		}
		defer file.Close()

		text, err := extract.Reader(file, header.Filename)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "extraction failed: %v", err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{
			"filename": header.Filename,
			"text":     text,
		})
	}
}

// --- helpers ---

const timestampLayout = time.RFC3339

func parseTimestamp(s string) (time.Time, error) {
	return time.Parse(timestampLayout, s)
}

func parseID(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func httpError(w http.ResponseWriter, code int, errType string, format string, args ...any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	msg := fmt.Sprintf(format, args...)
	json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{
			"message": msg,
			"type":    errType,
		},
	})
}
