package main

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/himanishpuri/landmark/pkg/landmark"
	"github.com/himanishpuri/landmark/pkg/utils"
)

// Server encapsulates the HTTP server and its dependencies
type Server struct {
	service landmark.Service
	config  *ServerConfig
	log     landmark.Logger
	started time.Time
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port           int
	DBPath         string
	StoreKind      string
	TempDir        string
	SampleRate     int
	AllowedOrigins []string

	// MaxFingerprintBody overrides MaxFingerprintBodyBytes when positive.
	MaxFingerprintBody int64
}

// NewServer creates a new server instance
func NewServer(service landmark.Service, config *ServerConfig, log landmark.Logger) *Server {
	return &Server{
		service: service,
		config:  config,
		log:     log,
		started: time.Now(),
	}
}

// respondJSON writes a JSON response
func (s *Server) respondJSON(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.log.Errorf("Failed to encode JSON response: %v", err)
	}
}

// respondError writes an error response
func (s *Server) respondError(w http.ResponseWriter, statusCode int, message string) {
	s.respondJSON(w, statusCode, ErrorResponse{
		Error:   http.StatusText(statusCode),
		Message: message,
		Code:    statusCode,
	})
}

// statusFor maps service errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, landmark.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// handleRoot handles GET /
func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]any{
		"service": "Landmark API",
		"version": "1.0.0",
		"endpoints": map[string]string{
			"health":               "GET /health",
			"metrics":              "GET /api/health/metrics",
			"tracks":               "GET /api/tracks",
			"addTrack":             "POST /api/tracks",
			"getTrack":             "GET /api/tracks/{id}",
			"identify":             "POST /api/identify",
			"identifyFingerprints": "POST /api/identify/fingerprints",
		},
	})
}

// handleHealth handles GET /health
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
		"time":   time.Now().Format(time.RFC3339),
	})
}

// handleMetrics handles GET /api/health/metrics
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	stats := s.service.Stats()
	s.respondJSON(w, http.StatusOK, MetricsResponse{
		Status:    "healthy",
		StoreKind: s.config.StoreKind,
		StorePath: s.config.DBPath,
		Catalog:   stats,
		Summary: fmt.Sprintf("%s tracks, %s hashes, %s entries",
			humanize.Comma(int64(stats.Tracks)), humanize.Comma(int64(stats.Buckets)), humanize.Comma(int64(stats.Entries))),
		SampleRate: s.config.SampleRate,
		Uptime:     time.Since(s.started).Round(time.Second).String(),
	})
}

// handleListTracks handles GET /api/tracks
func (s *Server) handleListTracks(w http.ResponseWriter, r *http.Request) {
	tracks := s.service.Tracks()
	s.respondJSON(w, http.StatusOK, ListTracksResponse{
		Tracks: tracks,
		Count:  len(tracks),
	})
}

// handleGetTrack handles GET /api/tracks/{id}
func (s *Server) handleGetTrack(w http.ResponseWriter, r *http.Request, id int) {
	track, ok := s.service.Track(id)
	if !ok {
		s.log.Warnf("Track not found: %d", id)
		s.respondError(w, http.StatusNotFound, fmt.Sprintf("Track with ID %d not found", id))
		return
	}
	s.respondJSON(w, http.StatusOK, track)
}

// saveUpload stores the request audio in a temporary file and returns its
// path and the submitted track name. Multipart forms carry the file in the
// "audio" field; JSON bodies carry a base64 data URL.
func (s *Server) saveUpload(r *http.Request, maxBytes int64) (path, name string, err error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))

	if mediaType == "application/json" {
		var req RecordingRequest
		if err := json.NewDecoder(io.LimitReader(r.Body, maxBytes)).Decode(&req); err != nil {
			return "", "", fmt.Errorf("invalid request body: %w", landmark.ErrInvalidInput)
		}
		payload := req.Audio
		if i := strings.Index(payload, ","); strings.HasPrefix(payload, "data:") && i >= 0 {
			payload = payload[i+1:]
		}
		data, err := base64.StdEncoding.DecodeString(payload)
		if err != nil || len(data) == 0 {
			return "", "", fmt.Errorf("audio must be base64 encoded: %w", landmark.ErrInvalidInput)
		}
		path = utils.TempName(s.config.TempDir, "recording_", ".wav")
		if _, err := utils.SaveStream(path, bytes.NewReader(data)); err != nil {
			return "", "", err
		}
		return path, req.Name, nil
	}

	if err := r.ParseMultipartForm(maxBytes); err != nil {
		return "", "", fmt.Errorf("failed to parse form data: %w", landmark.ErrInvalidInput)
	}
	file, header, err := r.FormFile("audio")
	if err != nil {
		return "", "", fmt.Errorf("audio file is required: %w", landmark.ErrInvalidInput)
	}
	defer file.Close()

	path = utils.TempName(s.config.TempDir, "upload_", header.Filename)
	if _, err := utils.SaveStream(path, file); err != nil {
		return "", "", err
	}
	name = r.FormValue("name")
	if name == "" {
		name = utils.TrackName(header.Filename)
	}
	return path, name, nil
}

// handleAddTrack handles POST /api/tracks
func (s *Server) handleAddTrack(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Minute)
	defer cancel()

	tempFile, name, err := s.saveUpload(r, 100<<20)
	if err != nil {
		s.log.Errorf("Failed to read upload: %v", err)
		s.respondError(w, statusFor(err), err.Error())
		return
	}
	defer utils.DeleteFile(tempFile)

	if name == "" {
		s.respondError(w, http.StatusBadRequest, "name is required")
		return
	}

	s.log.Infof("Adding track from upload: %s", name)
	id, err := s.service.IngestFile(ctx, tempFile, name)
	if err != nil {
		s.log.Errorf("Failed to add track: %v", err)
		s.respondError(w, statusFor(err), fmt.Sprintf("Failed to add track: %v", err))
		return
	}

	if strings.EqualFold(s.config.StoreKind, landmark.StoreFile) {
		if err := s.service.Persist(ctx); err != nil {
			s.log.Errorf("Failed to persist catalog: %v", err)
			s.respondError(w, http.StatusInternalServerError, "Track added but the catalog could not be saved")
			return
		}
	}

	s.respondJSON(w, http.StatusCreated, AddTrackResponse{
		Message: "Track added successfully",
		ID:      id,
		Name:    name,
	})
}

func (s *Server) identifyResponse(report *landmark.Report, top int) IdentifyResponse {
	if top <= 0 {
		top = DefaultTopCandidates
	}
	candidates := report.Candidates[:min(top, len(report.Candidates))]

	match := MatchDTO{Result: report.Result, OffsetSeconds: report.OffsetSeconds()}
	return IdentifyResponse{
		Match:        match,
		Candidates:   candidates,
		Peaks:        report.Peaks,
		Fingerprints: report.Fingerprints,
	}
}

// handleIdentify handles POST /api/identify
func (s *Server) handleIdentify(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Minute)
	defer cancel()

	tempFile, _, err := s.saveUpload(r, 50<<20)
	if err != nil {
		s.log.Errorf("Failed to read upload: %v", err)
		s.respondError(w, statusFor(err), err.Error())
		return
	}
	defer utils.DeleteFile(tempFile)

	report, err := s.service.MatchFile(ctx, tempFile)
	if err != nil {
		s.log.Errorf("Failed to identify: %v", err)
		s.respondError(w, statusFor(err), fmt.Sprintf("Failed to identify: %v", err))
		return
	}

	top, _ := strconv.Atoi(r.URL.Query().Get("top"))
	s.respondJSON(w, http.StatusOK, s.identifyResponse(report, top))
}

// handleIdentifyFingerprints handles POST /api/identify/fingerprints
func (s *Server) handleIdentifyFingerprints(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()

	limit := s.config.MaxFingerprintBody
	if limit <= 0 {
		limit = MaxFingerprintBodyBytes
	}
	r.Body = http.MaxBytesReader(w, r.Body, limit)

	var req IdentifyFingerprintsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.log.Errorf("Failed to decode request: %v", err)
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.respondError(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("Request body exceeds %d bytes", limit))
			return
		}
		s.respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := req.Validate(); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	if len(req.Fingerprints) >= FingerprintWarningThreshold {
		s.log.Warnf("Large fingerprint batch received: %d", len(req.Fingerprints))
	}

	report, err := s.service.MatchFingerprints(ctx, req.Fingerprints)
	if err != nil {
		s.log.Errorf("Failed to match fingerprints: %v", err)
		s.respondError(w, statusFor(err), fmt.Sprintf("Failed to match fingerprints: %v", err))
		return
	}
	s.respondJSON(w, http.StatusOK, s.identifyResponse(report, req.Top))
}

// handleTracks routes requests to /api/tracks
func (s *Server) handleTracks(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.handleListTracks(w, r)
	case http.MethodPost:
		s.handleAddTrack(w, r)
	default:
		s.respondError(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}

// handleTrack routes requests to /api/tracks/{id}
func (s *Server) handleTrack(w http.ResponseWriter, r *http.Request) {
	idStr := strings.TrimPrefix(r.URL.Path, "/api/tracks/")
	if idStr == "" {
		s.respondError(w, http.StatusBadRequest, "Track ID required")
		return
	}

	id, err := strconv.Atoi(idStr)
	if err != nil || id < 0 {
		s.respondError(w, http.StatusBadRequest, "Invalid track ID")
		return
	}

	if r.Method != http.MethodGet {
		s.respondError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	s.handleGetTrack(w, r, id)
}

// handleIdentifyRoute routes requests to /api/identify
func (s *Server) handleIdentifyRoute(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.respondError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	s.handleIdentify(w, r)
}

// handleIdentifyFingerprintsRoute routes requests to /api/identify/fingerprints
func (s *Server) handleIdentifyFingerprintsRoute(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.respondError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	s.handleIdentifyFingerprints(w, r)
}
