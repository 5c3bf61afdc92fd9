package extraction

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nashrakhan-aithon/service1-text-extraction/progress"
)

// Service exposes the extraction coordinator and progress tracker over
// HTTP.
type Service struct {
	coord   *Coordinator
	tracker *progress.Tracker
	logger  *slog.Logger
}

// NewService creates the HTTP surface.
func NewService(coord *Coordinator, tracker *progress.Tracker, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{coord: coord, tracker: tracker, logger: logger}
}

// RegisterHTTP registers endpoints on the chi router.
func (s *Service) RegisterHTTP(r chi.Router) {
	r.Route("/document-text-extraction", func(r chi.Router) {
		r.Get("/", s.handleInfo)
		r.Get("/health", s.handleHealth)
		r.Post("/extract", s.handleExtract)
		r.Get("/progress/{batchID}", s.handleProgress)
	})
}

// ExtractRequest is the body for POST /document-text-extraction/extract.
type ExtractRequest struct {
	QueueIDs []int64 `json:"queue_ids"`
	BatchID  string  `json:"batch_id,omitempty"`
}

// ExtractResponse acknowledges an accepted batch.
type ExtractResponse struct {
	Success        bool   `json:"success"`
	Message        string `json:"message"`
	BatchID        string `json:"batch_id"`
	TotalDocuments int    `json:"total_documents"`
}

// handleExtract accepts a batch and returns its id without waiting for
// any extraction work.
func (s *Service) handleExtract(w http.ResponseWriter, r *http.Request) {
	var req ExtractRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	batchID, err := s.coord.Submit(r.Context(), req.QueueIDs, req.BatchID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	s.writeJSON(w, http.StatusOK, ExtractResponse{
		Success:        true,
		Message:        "Text extraction started",
		BatchID:        batchID,
		TotalDocuments: len(req.QueueIDs),
	})
}

// handleProgress returns the current batch snapshot. Unknown ids read as
// completed so pollers always terminate.
func (s *Service) handleProgress(w http.ResponseWriter, r *http.Request) {
	batchID := chi.URLParam(r, "batchID")
	s.writeJSON(w, http.StatusOK, s.tracker.Read(batchID))
}

func (s *Service) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"service": "document-text-extraction",
	})
}

func (s *Service) handleInfo(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{
		"service": "document-text-extraction",
		"endpoints": map[string]string{
			"extract":  "POST /document-text-extraction/extract",
			"progress": "GET /document-text-extraction/progress/{batchID}",
			"health":   "GET /document-text-extraction/health",
		},
	})
}

func (s *Service) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("write response failed", "error", err)
	}
}
