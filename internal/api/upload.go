package api

import (
	"net/http"
	"path/filepath"
	"strconv"

	"go.uber.org/zap"

	"github.com/volkit/volkit/internal/events"
	"github.com/volkit/volkit/internal/logging"
	"github.com/volkit/volkit/internal/metrics"
	"github.com/volkit/volkit/internal/vfs"
)

// handleUpload accepts a whole file as multipart form data under the
// "file" field and writes it atomically into the target directory.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	rel := relPathParam(r)
	root := s.volume.Root()

	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadSize)
	file, header, err := r.FormFile("file")
	if err != nil {
		metrics.RecordUpload(0, false)
		s.sendError(w, http.StatusBadRequest, "no file uploaded")
		return
	}
	defer file.Close()

	fileName := filepath.Base(header.Filename)
	if fileName == "" || fileName == "." || vfs.IsReservedName(fileName) {
		metrics.RecordUpload(0, false)
		s.sendError(w, http.StatusBadRequest, "invalid file name")
		return
	}

	dirPath, err := vfs.ResolveDir(root, rel)
	if err != nil {
		metrics.RecordUpload(0, false)
		s.sendOpError(w, err)
		return
	}

	n, err := vfs.WriteWhole(filepath.Join(dirPath, fileName), file)
	if err != nil {
		metrics.RecordUpload(0, false)
		s.sendOpError(w, err)
		return
	}
	metrics.RecordUpload(n, true)

	logging.Info("file uploaded",
		zap.String("path", joinRel(rel, fileName)),
		zap.Int64("size", n))
	s.publish(events.Event{Type: events.EventCreate, Path: joinRel(rel, fileName), Size: n})

	result := vfs.OK("File %s uploaded successfully", fileName)
	result.Name = fileName
	result.Size = n
	s.sendJSON(w, http.StatusCreated, result)
}

// handleUploadChunk accepts one chunk of a resumable upload. The request
// body is the raw chunk; filename, index, and total arrive as query
// parameters. Chunks may arrive in any order; the final missing chunk
// triggers reassembly into the destination file.
func (s *Server) handleUploadChunk(w http.ResponseWriter, r *http.Request) {
	rel := relPathParam(r)
	root := s.volume.Root()

	fileName := r.URL.Query().Get("filename")
	if fileName == "" {
		s.sendError(w, http.StatusBadRequest, "query parameter 'filename' required")
		return
	}
	index, err := strconv.Atoi(r.URL.Query().Get("index"))
	if err != nil || index < 0 {
		s.sendError(w, http.StatusBadRequest, "invalid chunk index")
		return
	}
	total, err := strconv.Atoi(r.URL.Query().Get("total"))
	if err != nil || total <= 0 || index >= total {
		s.sendError(w, http.StatusBadRequest, "invalid chunk count")
		return
	}

	dirPath, err := vfs.ResolveDir(root, rel)
	if err != nil {
		s.sendOpError(w, err)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadSize)
	result, err := s.sessions.ReceiveChunk(dirPath, fileName, index, total, r.Body)
	metrics.SetChunkSessionsActive(int64(s.sessions.Active()))
	if err != nil {
		if vfs.IsKind(err, vfs.KindCorruptSession) || vfs.IsKind(err, vfs.KindItemExists) {
			metrics.RecordReassembly(false)
		}
		s.sendOpError(w, err)
		return
	}
	metrics.RecordChunkReceived(result.Size)

	if result.Status == vfs.ChunkComplete {
		metrics.RecordReassembly(true)
		logging.Info("chunked upload completed",
			zap.String("path", joinRel(rel, fileName)),
			zap.Int64("size", result.Size),
			zap.Int("chunks", result.Total))
		s.publish(events.Event{
			Type: events.EventCreate,
			Path: joinRel(rel, fileName),
			Size: result.Size,
		})
	}

	s.sendJSON(w, http.StatusOK, result)
}

// handleAbortUpload discards an in-flight chunked upload session.
func (s *Server) handleAbortUpload(w http.ResponseWriter, r *http.Request) {
	rel := relPathParam(r)

	fileName := r.URL.Query().Get("filename")
	if fileName == "" {
		s.sendError(w, http.StatusBadRequest, "query parameter 'filename' required")
		return
	}

	dirPath, err := vfs.ResolveDir(s.volume.Root(), rel)
	if err != nil {
		s.sendOpError(w, err)
		return
	}

	if err := s.sessions.Abort(dirPath, fileName); err != nil {
		s.sendOpError(w, err)
		return
	}
	metrics.SetChunkSessionsActive(int64(s.sessions.Active()))
	logging.Info("chunked upload aborted", zap.String("path", joinRel(rel, fileName)))

	s.sendJSON(w, http.StatusOK, vfs.OK("Upload of %s aborted", fileName))
}
