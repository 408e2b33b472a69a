package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/quickjot/quickjot/classify"
	"github.com/quickjot/quickjot/note"
	"github.com/quickjot/quickjot/store"
)

// ----------------------------------------------------------------------------
// POST /api/notes, GET /api/notes
// ----------------------------------------------------------------------------

// CreateNoteRequest is the request body for POST /api/notes.
type CreateNoteRequest struct {
	Content string `json:"content"`

	// Source is "auto" (default) or "manual".
	Source string `json:"source,omitempty"`

	// Category may accompany manual notes. Auto notes are created
	// unclassified and picked up by the classification pipeline.
	Category string `json:"category,omitempty"`
}

// handleNotes creates a note (POST) or lists notes (GET).
// Creation never classifies inline; the client calls /api/classify after,
// and the UI treats a null category as "pending".
func (s *Server) handleNotes(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		s.handleCreateNote(w, r)
	case http.MethodGet:
		s.handleListNotes(w, r)
	default:
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}

func (s *Server) handleCreateNote(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)

	var req CreateNoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if req.Content == "" {
		writeError(w, http.StatusBadRequest, "Missing content")
		return
	}

	source := note.SourceAuto
	if req.Source != "" {
		source = note.Source(req.Source)
		if source != note.SourceAuto && source != note.SourceManual {
			writeError(w, http.StatusBadRequest, "source must be auto or manual")
			return
		}
	}

	var category note.Category
	if req.Category != "" {
		category = note.Category(req.Category)
		if !category.IsValid() {
			writeError(w, http.StatusBadRequest, "Invalid category")
			return
		}
	}

	n, err := s.store.CreateNote(r.Context(), req.Content, source, category)
	if err != nil {
		s.logger.Error("Failed to create note", "error", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	writeJSON(w, http.StatusCreated, n)
}

func (s *Server) handleListNotes(w http.ResponseWriter, r *http.Request) {
	var category note.Category
	if raw := r.URL.Query().Get("category"); raw != "" {
		category = note.Category(raw)
		if !category.IsValid() {
			writeError(w, http.StatusBadRequest, "Invalid category")
			return
		}
	}

	notes, err := s.store.ListNotes(r.Context(), category, 0)
	if err != nil {
		s.logger.Error("Failed to list notes", "error", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"notes": notes})
}

// ----------------------------------------------------------------------------
// POST /api/classify
// ----------------------------------------------------------------------------

// ClassifyRequest is the request body for POST /api/classify.
type ClassifyRequest struct {
	NoteID  string `json:"note_id"`
	Content string `json:"content"`
}

// handleClassify runs the classification pipeline for one note. Internal
// failures downgrade to {category: misc, metadata: {}} with 200. Note
// capture must never be blocked by classification.
func (s *Server) handleClassify(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)

	var req ClassifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if req.NoteID == "" || req.Content == "" {
		writeError(w, http.StatusBadRequest, "Missing note_id or content")
		return
	}

	result, err := s.pipeline.Classify(r.Context(), req.NoteID, req.Content)
	if err != nil {
		var missing *classify.ErrMissingField
		if errors.As(err, &missing) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		// The pipeline downgrades internal failures itself; anything
		// else reaching here still degrades to the safe default.
		s.logger.Error("Classification error", "note_id", req.NoteID, "error", err)
		result = &classify.Result{Category: note.CategoryMisc, Metadata: note.Metadata{}}
	}

	writeJSON(w, http.StatusOK, result)
}

// ----------------------------------------------------------------------------
// POST /api/extract-metadata
// ----------------------------------------------------------------------------

// ExtractMetadataRequest is the request body for POST /api/extract-metadata
// and the "extract" action of /api/metadata.
type ExtractMetadataRequest struct {
	NoteID   string `json:"note_id"`
	Content  string `json:"content"`
	Category string `json:"category"`
}

func (s *Server) handleExtractMetadata(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)

	var req ExtractMetadataRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	s.extractMetadata(w, r, req)
}

// extractMetadata is shared between /api/extract-metadata and the
// action-dispatched /api/metadata endpoint.
func (s *Server) extractMetadata(w http.ResponseWriter, r *http.Request, req ExtractMetadataRequest) {
	if req.NoteID == "" || req.Content == "" || req.Category == "" {
		writeError(w, http.StatusBadRequest, "Missing note_id, content, or category")
		return
	}

	category := note.Category(req.Category)
	if !category.IsValid() {
		writeError(w, http.StatusBadRequest, "Invalid category")
		return
	}

	metadata, err := s.pipeline.ExtractMetadata(r.Context(), req.NoteID, req.Content, category)
	if err != nil {
		var missing *classify.ErrMissingField
		if errors.As(err, &missing) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		s.logger.Error("Metadata extraction error", "note_id", req.NoteID, "error", err)
		metadata = note.Metadata{}
	}

	writeJSON(w, http.StatusOK, map[string]any{"metadata": metadata})
}

// ----------------------------------------------------------------------------
// POST /api/search
// ----------------------------------------------------------------------------

// SearchRequest is the request body for POST /api/search.
type SearchRequest struct {
	Query string `json:"query"`
}

// handleSearch runs a case-insensitive substring search. Search has no
// fallback value, so database errors propagate as 500s.
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)

	var req SearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if strings.TrimSpace(req.Query) == "" {
		writeError(w, http.StatusBadRequest, "Missing or empty query")
		return
	}

	results, err := s.store.SearchNotes(r.Context(), req.Query)
	if err != nil {
		s.logger.Error("Search error", "error", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"results": results})
}

// ----------------------------------------------------------------------------
// GET /api/llm-costs
// ----------------------------------------------------------------------------

func (s *Server) handleLLMCosts(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	summary, err := s.store.Costs(r.Context())
	if err != nil {
		s.logger.Error("Failed to fetch cost data", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to fetch cost data")
		return
	}

	writeJSON(w, http.StatusOK, summary)
}

// errorToStatus maps store errors to HTTP statuses for point updates.
func errorToStatus(err error) int {
	if errors.Is(err, store.ErrNotFound) {
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}
