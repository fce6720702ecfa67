package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/precedex/precedex/internal/extract"
	"github.com/precedex/precedex/internal/models"
	"github.com/precedex/precedex/internal/repository"
	"github.com/precedex/precedex/internal/vectorize"
)

// multipartSlack covers form framing and metadata on top of the payload cap.
const multipartSlack = 1 << 20

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	payload, name, ok := s.readDocumentPart(w, r)
	if !ok {
		return
	}
	opts, err := s.searchOptions(r)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.logger.Debug("search request",
		zap.String("file", name), zap.Int("top_k", opts.TopK), zap.Float64("min_score", opts.MinScore))
	response, err := s.service.SimilaritySearch(r.Context(), payload, name, opts)
	if err != nil {
		s.respondPipelineError(w, "search failed", err)
		return
	}
	s.respondJSON(w, http.StatusOK, response)
}

func (s *Server) handleIngestCase(w http.ResponseWriter, r *http.Request) {
	payload, name, ok := s.readDocumentPart(w, r)
	if !ok {
		return
	}
	var input models.CaseInput
	if meta := r.FormValue("metadata"); meta != "" {
		if err := json.Unmarshal([]byte(meta), &input); err != nil {
			s.respondError(w, http.StatusBadRequest, "invalid metadata JSON")
			return
		}
	}
	if err := input.Validate(); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.logger.Debug("ingest request", zap.String("file", name), zap.String("id", input.ID))
	doc, err := s.service.IngestCase(r.Context(), payload, name, input)
	if err != nil {
		s.respondPipelineError(w, "ingest failed", err)
		return
	}
	s.respondJSON(w, http.StatusCreated, doc)
}

func (s *Server) handleGetCase(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	doc, err := s.repo.Get(r.Context(), id)
	if err != nil {
		s.respondError(w, http.StatusNotFound, "case not found")
		return
	}
	s.respondJSON(w, http.StatusOK, doc)
}

func (s *Server) handleCaseFile(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	doc, err := s.repo.Get(r.Context(), id)
	if err != nil {
		s.respondError(w, http.StatusNotFound, "case not found")
		return
	}
	payload, err := s.repo.Files().Read(doc.FileRef)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.respondError(w, http.StatusNotFound, "payload not found")
			return
		}
		s.logger.Error("payload read failed", zap.String("id", id), zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", doc.FileRef))
	_, _ = w.Write(payload)
}

func (s *Server) handleDeleteCase(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	s.logger.Debug("delete case request", zap.String("id", id))
	if err := s.repo.Remove(r.Context(), id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.respondError(w, http.StatusNotFound, "case not found")
			return
		}
		s.logger.Error("deletion failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

type visibilityRequest struct {
	Visible *bool `json:"visible"`
}

func (s *Server) handleSetVisibility(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req visibilityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Visible == nil {
		s.respondError(w, http.StatusBadRequest, "body must be {\"visible\": true|false}")
		return
	}
	if err := s.repo.SetVisibility(r.Context(), id, *req.Visible); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.respondError(w, http.StatusNotFound, "case not found")
			return
		}
		s.logger.Error("visibility update failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"id": id, "visible": *req.Visible})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	counts := s.repo.Counts()
	resp := map[string]interface{}{
		"cases": map[string]int{
			"corpus": counts[models.SourceCorpus],
			"helper": counts[models.SourceHelper],
		},
		"vector_dimension":       s.repo.Dimension(),
		"vocabulary_fingerprint": s.repo.Fingerprint(),
	}
	diskBytes, err := repository.DiskUsageBytes(
		s.config.Storage.DatabasePath,
		s.config.Storage.VectorLogPath,
		s.config.Storage.ModelPath,
		s.config.Storage.FilesDir,
	)
	if err == nil {
		resp["disk_usage_bytes"] = diskBytes
	}
	resp["config"] = map[string]interface{}{
		"database_path":   s.config.Storage.DatabasePath,
		"vector_log_path": s.config.Storage.VectorLogPath,
		"files_dir":       s.config.Storage.FilesDir,
		"default_top_k":   s.config.Search.DefaultTopK,
	}
	s.respondJSON(w, http.StatusOK, resp)
}

// readDocumentPart reads the multipart "document" file part with the payload
// cap enforced at the transport. On failure it writes the response itself and
// returns ok=false.
func (s *Server) readDocumentPart(w http.ResponseWriter, r *http.Request) (payload []byte, name string, ok bool) {
	r.Body = http.MaxBytesReader(w, r.Body, extract.MaxPayloadSize+multipartSlack)
	if err := r.ParseMultipartForm(extract.MaxPayloadSize + multipartSlack); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			s.respondError(w, http.StatusRequestEntityTooLarge, "document exceeds the size limit")
			return nil, "", false
		}
		s.respondError(w, http.StatusBadRequest, "expected multipart form with a document part")
		return nil, "", false
	}
	file, header, err := r.FormFile("document")
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "document part is required")
		return nil, "", false
	}
	defer file.Close()
	payload, err = io.ReadAll(file)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "failed to read document part")
		return nil, "", false
	}
	return payload, header.Filename, true
}

// searchOptions builds SearchOptions from query params, falling back to the
// configured defaults.
func (s *Server) searchOptions(r *http.Request) (models.SearchOptions, error) {
	opts := models.SearchOptions{
		TopK:     s.config.Search.DefaultTopK,
		MinScore: s.config.Search.DefaultMinScore,
	}
	q := r.URL.Query()
	if v := q.Get("top_k"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return opts, fmt.Errorf("top_k must be an integer")
		}
		opts.TopK = n
	}
	if opts.TopK > s.config.Search.MaxTopK {
		opts.TopK = s.config.Search.MaxTopK
	}
	if v := q.Get("min_score"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return opts, fmt.Errorf("min_score must be a number")
		}
		if f < 0 || f > 1 {
			return opts, fmt.Errorf("min_score must be in [0, 1]")
		}
		opts.MinScore = f
	}
	sources, err := models.ParseSources(q.Get("sources"))
	if err != nil {
		return opts, err
	}
	opts.Sources = sources
	return opts, nil
}

// respondPipelineError maps pipeline errors onto API status codes.
func (s *Server) respondPipelineError(w http.ResponseWriter, msg string, err error) {
	var exErr *extract.ExtractionError
	switch {
	case errors.Is(err, extract.ErrPayloadTooLarge):
		s.respondError(w, http.StatusRequestEntityTooLarge, err.Error())
	case errors.As(err, &exErr):
		s.respondError(w, http.StatusUnprocessableEntity, exErr.Error())
	case errors.Is(err, vectorize.ErrModelNotLoaded):
		s.respondError(w, http.StatusServiceUnavailable, "vocabulary model not loaded")
	case errors.Is(err, repository.ErrDuplicateID):
		s.respondError(w, http.StatusConflict, err.Error())
	case errors.Is(err, repository.ErrNotFound):
		s.respondError(w, http.StatusNotFound, err.Error())
	default:
		s.logger.Error(msg, zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
	}
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
