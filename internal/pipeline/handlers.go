package pipeline

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
)

// maxUploadBytes caps upload size at 50MB to handle high-resolution phone
// photos.
const maxUploadBytes = int64(50 << 20)

// jsonError writes a JSON error body with CORS headers set.
func jsonError(w http.ResponseWriter, message string, code int) {
	setCORSHeaders(w)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}

// handleScan accepts a multipart image upload, stores it, and runs it through
// the pipeline.
func (s *Server) handleScan(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		slog.Error("Error parsing multipart form", "error", err)
		jsonError(w, "Error parsing form", http.StatusBadRequest)
		return
	}

	f, header, err := r.FormFile("file")
	if err != nil {
		slog.Error("Error getting file from form", "error", err)
		jsonError(w, "No file provided", http.StatusBadRequest)
		return
	}
	defer f.Close()

	if header.Size > maxUploadBytes {
		jsonError(w, "File is too large. Maximum size is 50MB.", http.StatusBadRequest)
		return
	}

	data, err := io.ReadAll(f)
	if err != nil {
		slog.Error("Error reading file data", "error", err, "filename", header.Filename)
		jsonError(w, "Error reading file", http.StatusInternalServerError)
		return
	}

	savedPath, err := s.storage.Save(fmt.Sprintf("%s_%s", uuid.NewString(), header.Filename), data)
	if err != nil {
		slog.Error("Error saving upload", "error", err, "filename", header.Filename)
		jsonError(w, "Error saving file", http.StatusInternalServerError)
		return
	}

	record, err := s.service.Scan(r.Context(), savedPath)
	if err != nil {
		slog.Error("Error scanning receipt", "filename", header.Filename, "error", err)
		s.storage.Delete(savedPath)
		switch {
		case errors.Is(err, ErrQueueFull):
			jsonError(w, "Scanner is busy, try again shortly", http.StatusServiceUnavailable)
		case errors.Is(err, ErrAllExtractorsFailed):
			jsonError(w, "Could not read the receipt. Please retake the photo.", http.StatusUnprocessableEntity)
		default:
			var invalidImage *InvalidImageError
			if errors.As(err, &invalidImage) {
				jsonError(w, "Unreadable image", http.StatusBadRequest)
				return
			}
			jsonError(w, "Internal server error", http.StatusInternalServerError)
		}
		return
	}

	setCORSHeaders(w)
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(record); err != nil {
		slog.Error("Error encoding response", "error", err)
	}
}

// handleListRecords returns the offline store contents, newest first.
func (s *Server) handleListRecords(w http.ResponseWriter, r *http.Request) {
	records, err := s.service.Records()
	if err != nil {
		slog.Error("Error listing records", "error", err)
		jsonError(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	setCORSHeaders(w)
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(records); err != nil {
		slog.Error("Error encoding response", "error", err)
	}
}

// handleClearCache empties the result cache; with ?prefix= it also clears
// matching offline store keys.
func (s *Server) handleClearCache(w http.ResponseWriter, r *http.Request) {
	prefix := r.URL.Query().Get("prefix")
	if err := s.service.ClearCache(prefix); err != nil {
		slog.Error("Error clearing cache", "prefix", prefix, "error", err)
		jsonError(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	setCORSHeaders(w)
	w.WriteHeader(http.StatusNoContent)
}

// handleExtractors reports the extractor chain and its availability.
func (s *Server) handleExtractors(w http.ResponseWriter, r *http.Request) {
	setCORSHeaders(w)
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(s.service.Extractors()); err != nil {
		slog.Error("Error encoding response", "error", err)
	}
}
