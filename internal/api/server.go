// Package api provides the HTTP server and handlers.
package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"path"
	"time"

	"go.uber.org/zap"

	"github.com/volkit/volkit/internal/auth"
	"github.com/volkit/volkit/internal/config"
	"github.com/volkit/volkit/internal/events"
	"github.com/volkit/volkit/internal/logging"
	"github.com/volkit/volkit/internal/metrics"
	"github.com/volkit/volkit/internal/quota"
	"github.com/volkit/volkit/internal/vfs"
)

// Server is the HTTP server.
type Server struct {
	volume      *vfs.Volume
	sessions    *vfs.SessionManager
	auth        *auth.Auth // nil when auth is disabled
	broadcaster *events.Broadcaster
	rateLimiter *quota.RateLimiter

	maxUploadSize  int64
	requestsPerMin int
}

// NewServer creates a new server.
func NewServer(
	volume *vfs.Volume,
	sessions *vfs.SessionManager,
	authHandler *auth.Auth,
	broadcaster *events.Broadcaster,
	rateLimiter *quota.RateLimiter,
	cfg *config.Config,
) *Server {
	return &Server{
		volume:         volume,
		sessions:       sessions,
		auth:           authHandler,
		broadcaster:    broadcaster,
		rateLimiter:    rateLimiter,
		maxUploadSize:  cfg.MaxUploadSize,
		requestsPerMin: cfg.RequestsPerMin,
	}
}

// Handler returns the HTTP handler with auth, rate-limit, logging, and
// metrics middleware applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	// Public endpoints (no auth required)
	mux.HandleFunc("GET /health", s.handleHealth)
	if s.auth != nil {
		mux.HandleFunc("POST /api/v1/auth/token", s.auth.HandleLogin)
	}

	// Protected endpoints
	protected := http.NewServeMux()

	// Read endpoints
	protected.HandleFunc("GET /api/v1/list", s.handleList)
	protected.HandleFunc("GET /api/v1/list/{path...}", s.handleList)
	protected.HandleFunc("GET /api/v1/search", s.handleSearch)

	// Upload endpoints
	protected.HandleFunc("POST /api/v1/content/{path...}", s.handleUpload)
	protected.HandleFunc("POST /api/v1/content", s.handleUpload)
	protected.HandleFunc("POST /api/v1/chunks/{path...}", s.handleUploadChunk)
	protected.HandleFunc("POST /api/v1/chunks", s.handleUploadChunk)
	protected.HandleFunc("DELETE /api/v1/chunks/{path...}", s.handleAbortUpload)
	protected.HandleFunc("DELETE /api/v1/chunks", s.handleAbortUpload)

	// Mutation endpoints
	protected.HandleFunc("POST /api/v1/folders/{path...}", s.handleCreateFolder)
	protected.HandleFunc("POST /api/v1/folders", s.handleCreateFolder)
	protected.HandleFunc("POST /api/v1/rename/{path...}", s.handleRename)
	protected.HandleFunc("POST /api/v1/rename", s.handleRename)
	protected.HandleFunc("DELETE /api/v1/item/{path...}", s.handleDelete)
	protected.HandleFunc("DELETE /api/v1/item", s.handleDelete)
	protected.HandleFunc("POST /api/v1/move", s.handleMove)
	protected.HandleFunc("POST /api/v1/bulk/move", s.handleBulkMove)

	// Volume root management
	protected.HandleFunc("PUT /api/v1/volume", s.handleChangeRoot)
	protected.HandleFunc("GET /api/v1/volume", s.handleGetRoot)

	// SSE endpoint
	protected.HandleFunc("GET /api/v1/events", s.handleEvents)

	var handler http.Handler = protected
	if s.auth != nil {
		handler = s.auth.Middleware(handler)
	}
	handler = quota.RateLimitMiddleware(s.rateLimiter, s.requestsPerMin)(handler)
	mux.Handle("/api/v1/", handler)

	return metrics.Middleware(logging.Middleware(mux))
}

// ─── Health ─────────────────────────────────────────────────────────────────

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok", "version": "1.0"})
}

// ─── List / Search ──────────────────────────────────────────────────────────

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	rel := relPathParam(r)
	opts := vfs.ListOptions{
		FolderSizes: r.URL.Query().Get("sizes") == "1",
		FileCounts:  r.URL.Query().Get("counts") == "1",
	}

	listing, err := vfs.ListDirectory(s.volume.Root(), rel, opts)
	if err != nil {
		s.sendOpError(w, err)
		return
	}
	s.sendJSON(w, http.StatusOK, listing)
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	if query == "" {
		s.sendError(w, http.StatusBadRequest, "query parameter 'q' required")
		return
	}
	foldersOnly := r.URL.Query().Get("folders") == "1"

	start := time.Now()
	result, err := vfs.Search(s.volume.Root(), query, foldersOnly)
	if err != nil {
		s.sendOpError(w, err)
		return
	}
	metrics.RecordSearch(time.Since(start))

	s.sendJSON(w, http.StatusOK, result)
}

// ─── Folders ────────────────────────────────────────────────────────────────

func (s *Server) handleCreateFolder(w http.ResponseWriter, r *http.Request) {
	rel := relPathParam(r)

	name, err := vfs.CreateFolder(s.volume.Root(), rel)
	if err != nil {
		metrics.RecordFileOp("create_folder", false)
		s.sendOpError(w, err)
		return
	}
	metrics.RecordFileOp("create_folder", true)
	s.publish(events.Event{Type: events.EventCreate, Path: joinRel(rel, name)})

	result := vfs.OK("Folder %s created successfully", name)
	result.Name = name
	s.sendJSON(w, http.StatusCreated, result)
}

// ─── Rename / Delete / Move ─────────────────────────────────────────────────

func (s *Server) handleRename(w http.ResponseWriter, r *http.Request) {
	rel := relPathParam(r)

	var req struct {
		OldName string `json:"oldName"`
		NewName string `json:"newName"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.OldName == "" || req.NewName == "" {
		s.sendError(w, http.StatusBadRequest, "oldName and newName required")
		return
	}

	if err := vfs.Rename(s.volume.Root(), rel, req.OldName, req.NewName); err != nil {
		metrics.RecordFileOp("rename", false)
		s.sendOpError(w, err)
		return
	}
	metrics.RecordFileOp("rename", true)
	s.publish(events.Event{
		Type:    events.EventRename,
		Path:    joinRel(rel, req.OldName),
		NewPath: joinRel(rel, req.NewName),
	})

	s.sendJSON(w, http.StatusOK, vfs.OK("Renamed successfully to %s", req.NewName))
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	rel := relPathParam(r)
	name := r.URL.Query().Get("name")
	if name == "" {
		s.sendError(w, http.StatusBadRequest, "query parameter 'name' required")
		return
	}

	if err := vfs.Delete(s.volume.Root(), rel, name); err != nil {
		metrics.RecordFileOp("delete", false)
		s.sendOpError(w, err)
		return
	}
	metrics.RecordFileOp("delete", true)
	s.publish(events.Event{Type: events.EventDelete, Path: joinRel(rel, name)})

	s.sendJSON(w, http.StatusOK, vfs.OK("%s deleted successfully", name))
}

func (s *Server) handleMove(w http.ResponseWriter, r *http.Request) {
	var req struct {
		SrcDir string `json:"srcDir"`
		Name   string `json:"name"`
		DstDir string `json:"dstDir"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Name == "" {
		s.sendError(w, http.StatusBadRequest, "name required")
		return
	}

	if err := vfs.Move(s.volume.Root(), req.SrcDir, req.Name, req.DstDir); err != nil {
		metrics.RecordFileOp("move", false)
		s.sendOpError(w, err)
		return
	}
	metrics.RecordFileOp("move", true)
	s.publish(events.Event{
		Type:    events.EventMove,
		Path:    joinRel(req.SrcDir, req.Name),
		NewPath: joinRel(req.DstDir, req.Name),
	})

	s.sendJSON(w, http.StatusOK, vfs.OK("%s moved successfully", req.Name))
}

func (s *Server) handleBulkMove(w http.ResponseWriter, r *http.Request) {
	var req struct {
		SrcDir string   `json:"srcDir"`
		Names  []string `json:"names"`
		DstDir string   `json:"dstDir"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req.Names) == 0 {
		s.sendError(w, http.StatusBadRequest, "names required")
		return
	}

	result := vfs.MoveMany(s.volume.Root(), req.SrcDir, req.Names, req.DstDir)
	for _, name := range result.Moved {
		metrics.RecordFileOp("move", true)
		s.publish(events.Event{
			Type:    events.EventMove,
			Path:    joinRel(req.SrcDir, name),
			NewPath: joinRel(req.DstDir, name),
		})
	}
	for range result.Failed {
		metrics.RecordFileOp("move", false)
	}

	s.sendJSON(w, http.StatusOK, result)
}

// ─── Volume root ────────────────────────────────────────────────────────────

func (s *Server) handleGetRoot(w http.ResponseWriter, r *http.Request) {
	s.sendJSON(w, http.StatusOK, map[string]string{"root": s.volume.Root()})
}

func (s *Server) handleChangeRoot(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Path string `json:"path"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Path == "" {
		s.sendError(w, http.StatusBadRequest, "path required")
		return
	}

	newRoot, err := s.volume.ChangeRoot(req.Path)
	if err != nil {
		s.sendOpError(w, err)
		return
	}
	logging.Info("volume root changed", zap.String("root", newRoot))

	result := vfs.OK("Volume root changed")
	result.Path = newRoot
	s.sendJSON(w, http.StatusOK, result)
}

// ─── SSE Events ─────────────────────────────────────────────────────────────

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		s.sendError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ch := s.broadcaster.Subscribe()
	defer s.broadcaster.Unsubscribe(ch)

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-ch:
			if !ok {
				return
			}
			data, err := events.MarshalEvent(event)
			if err != nil {
				continue
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event.Type, data)
			flusher.Flush()
		}
	}
}

// publish publishes an event to the broadcaster if available.
func (s *Server) publish(event events.Event) {
	if s.broadcaster == nil {
		return
	}
	s.broadcaster.Publish(event)
}

// ─── Helpers ────────────────────────────────────────────────────────────────

// relPathParam extracts the {path...} wildcard, defaulting to the volume
// root itself.
func relPathParam(r *http.Request) string {
	rel := r.PathValue("path")
	if rel == "" {
		return "."
	}
	return rel
}

func joinRel(rel, name string) string {
	if rel == "" || rel == "." {
		return name
	}
	return path.Join(rel, name)
}

func (s *Server) sendJSON(w http.ResponseWriter, code int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(payload)
}

// sendOpError maps a typed vfs failure to its HTTP status.
func (s *Server) sendOpError(w http.ResponseWriter, err error) {
	s.sendError(w, vfs.KindOf(err).HTTPStatus(), err.Error())
}

func (s *Server) sendError(w http.ResponseWriter, code int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"success": false,
		"message": message,
		"code":    code,
	})
}
