package server

import (
	"encoding/json"
	"net/http"

	"github.com/quickjot/quickjot/note"
)

// MetadataRequest is the action-dispatched request body for
// POST /api/metadata. Fields beyond action are per-action.
type MetadataRequest struct {
	Action string `json:"action"`

	// extract
	NoteID   string `json:"note_id,omitempty"`
	Content  string `json:"content,omitempty"`
	Category string `json:"category,omitempty"`

	// update
	Metadata note.Metadata `json:"metadata,omitempty"`

	// update_meeting
	NoteIDs []string `json:"note_ids,omitempty"`
	Title   string   `json:"title,omitempty"`
	Date    string   `json:"date,omitempty"`
	Time    string   `json:"time,omitempty"`

	// task_completion
	Completed bool `json:"completed,omitempty"`

	// task_due_date
	DueDate string `json:"due_date,omitempty"`
}

// handleMetadata dispatches the metadata point operations. Each action has
// its own required-field validation and response shape.
func (s *Server) handleMetadata(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)

	var req MetadataRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	switch req.Action {
	case "":
		writeError(w, http.StatusBadRequest, "Missing action")
	case "extract":
		s.extractMetadata(w, r, ExtractMetadataRequest{
			NoteID:   req.NoteID,
			Content:  req.Content,
			Category: req.Category,
		})
	case "update":
		s.handleUpdateMetadata(w, r, req)
	case "update_meeting":
		s.handleUpdateMeeting(w, r, req)
	case "task_completion":
		s.handleTaskCompletion(w, r, req)
	case "task_due_date":
		s.handleTaskDueDate(w, r, req)
	case "soft_delete":
		s.handleSoftDelete(w, r, req)
	default:
		writeError(w, http.StatusBadRequest, "Invalid action")
	}
}

// handleUpdateMetadata replaces a note's metadata wholesale.
func (s *Server) handleUpdateMetadata(w http.ResponseWriter, r *http.Request, req MetadataRequest) {
	if req.NoteID == "" {
		writeError(w, http.StatusBadRequest, "Missing note_id")
		return
	}
	if req.Metadata == nil {
		writeError(w, http.StatusBadRequest, "Missing or invalid metadata")
		return
	}

	if err := s.store.UpdateNoteMetadata(r.Context(), req.NoteID, req.Metadata); err != nil {
		s.logger.Error("Database update error", "note_id", req.NoteID, "error", err)
		writeError(w, errorToStatus(err), "Database update error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

// handleUpdateMeeting patches title/date/time onto each listed meeting
// note, preserving other metadata keys. Notes that fail to patch are
// skipped; the response reports how many succeeded.
func (s *Server) handleUpdateMeeting(w http.ResponseWriter, r *http.Request, req MetadataRequest) {
	if len(req.NoteIDs) == 0 {
		writeError(w, http.StatusBadRequest, "Missing or invalid note_ids array")
		return
	}
	if req.Title == "" || req.Date == "" || req.Time == "" {
		writeError(w, http.StatusBadRequest, "Missing title, date, or time")
		return
	}

	patch := note.Metadata{
		"title": req.Title,
		"date":  req.Date,
		"time":  req.Time,
	}

	updated := 0
	for _, id := range req.NoteIDs {
		if err := s.store.MergeNoteMetadata(r.Context(), id, patch); err != nil {
			s.logger.Error("Error updating meeting note", "note_id", id, "error", err)
			continue
		}
		updated++
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":       true,
		"updated_count": updated,
	})
}

// handleTaskCompletion toggles the completion marker for a task note.
func (s *Server) handleTaskCompletion(w http.ResponseWriter, r *http.Request, req MetadataRequest) {
	if req.NoteID == "" {
		writeError(w, http.StatusBadRequest, "Missing note_id")
		return
	}

	if err := s.store.SetTaskCompletion(r.Context(), req.NoteID, req.Completed); err != nil {
		s.logger.Error("Task completion error", "note_id", req.NoteID, "error", err)
		writeError(w, errorToStatus(err), "Internal server error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

// handleTaskDueDate patches the due date onto a task note's metadata.
func (s *Server) handleTaskDueDate(w http.ResponseWriter, r *http.Request, req MetadataRequest) {
	if req.NoteID == "" || req.DueDate == "" {
		writeError(w, http.StatusBadRequest, "Missing note_id or due_date")
		return
	}

	patch := note.Metadata{"due_date": req.DueDate}
	if err := s.store.MergeNoteMetadata(r.Context(), req.NoteID, patch); err != nil {
		s.logger.Error("Due date update error", "note_id", req.NoteID, "error", err)
		writeError(w, errorToStatus(err), "Internal server error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

// handleSoftDelete marks a note deleted. Idempotent: deleting an
// already-deleted note is a no-op success.
func (s *Server) handleSoftDelete(w http.ResponseWriter, r *http.Request, req MetadataRequest) {
	if req.NoteID == "" {
		writeError(w, http.StatusBadRequest, "Missing note_id")
		return
	}

	if err := s.store.SoftDelete(r.Context(), req.NoteID); err != nil {
		s.logger.Error("Soft delete error", "note_id", req.NoteID, "error", err)
		writeError(w, http.StatusInternalServerError, "Soft delete error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}
