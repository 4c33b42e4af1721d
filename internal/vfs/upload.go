package vfs

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"
)

// SessionState tracks a chunked upload through its lifecycle.
type SessionState int

const (
	// StateOpen: session exists, fewer than all chunks received.
	StateOpen SessionState = iota
	// StateComplete: every chunk received, reassembly not yet finished.
	StateComplete
	// StateReassembled: terminal success, destination file written.
	StateReassembled
	// StateFailed: terminal error, scratch cleaned up.
	StateFailed
)

// ChunkStatus is returned from ReceiveChunk.
type ChunkStatus string

const (
	ChunkReceived ChunkStatus = "chunk_received"
	ChunkComplete ChunkStatus = "complete"
)

// ChunkResult reports the outcome of a single chunk delivery.
type ChunkResult struct {
	Status   ChunkStatus `json:"status"`
	Received int         `json:"received"`
	Total    int         `json:"total"`
	Path     string      `json:"path,omitempty"`
	Size     int64       `json:"size,omitempty"`
}

// SessionKey identifies one chunked upload: sessions for distinct
// (directory, filename) pairs are fully independent.
type SessionKey struct {
	Dir      string
	FileName string
}

type session struct {
	mu         sync.Mutex
	state      SessionState
	total      int
	received   map[int]bool
	scratch    string
	dest       string
	lastActive time.Time
}

// SessionManager owns all in-flight chunked upload sessions. Chunk
// delivery and the completeness check that triggers reassembly are
// serialized per session, so at most one reassembly attempt happens per
// session no matter how chunks race in.
type SessionManager struct {
	mu       sync.Mutex
	sessions map[SessionKey]*session
	expiry   time.Duration
}

// DefaultSessionExpiry is how long an idle session keeps its scratch
// directory before CleanupExpired removes it.
const DefaultSessionExpiry = 24 * time.Hour

// NewSessionManager creates a session manager. A zero expiry selects
// DefaultSessionExpiry.
func NewSessionManager(expiry time.Duration) *SessionManager {
	if expiry == 0 {
		expiry = DefaultSessionExpiry
	}
	return &SessionManager{
		sessions: make(map[SessionKey]*session),
		expiry:   expiry,
	}
}

// scratchDirFor returns the per-session scratch directory, a reserved name
// inside the destination directory so the Lister filters it out.
func scratchDirFor(dir, fileName string) string {
	return filepath.Join(dir, ReservedPrefix+"chunks-"+fileName)
}

func partPath(scratch string, index int) string {
	return filepath.Join(scratch, strconv.Itoa(index))
}

// ReceiveChunk stores one chunk of fileName destined for dir (an already
// validated absolute directory). Chunks may arrive in any order and any
// index may be re-sent; the last write for an index wins. When the final
// missing chunk lands, the session is reassembled into dir/fileName before
// ReceiveChunk returns.
func (m *SessionManager) ReceiveChunk(dir, fileName string, index, total int, data io.Reader) (ChunkResult, error) {
	if total <= 0 || index < 0 || index >= total {
		return ChunkResult{}, newError(KindInternal, fileName,
			fmt.Errorf("chunk index %d out of range [0,%d)", index, total))
	}
	// The filename becomes part of both the scratch path and the
	// destination path. A separator or dot-dot here would let reassembly
	// land outside dir.
	if err := validName(fileName); err != nil {
		return ChunkResult{}, err
	}

	key := SessionKey{Dir: dir, FileName: fileName}

	m.mu.Lock()
	sess, ok := m.sessions[key]
	if !ok {
		sess = &session{
			state:    StateOpen,
			total:    total,
			received: make(map[int]bool),
			scratch:  scratchDirFor(dir, fileName),
			dest:     filepath.Join(dir, fileName),
		}
		m.sessions[key] = sess
	}
	m.mu.Unlock()

	sess.mu.Lock()
	defer sess.mu.Unlock()

	if sess.total != total {
		return ChunkResult{}, newError(KindInternal, fileName,
			fmt.Errorf("chunk count changed mid-session: session expects %d, got %d", sess.total, total))
	}
	if sess.state != StateOpen {
		return ChunkResult{}, newError(KindInternal, fileName,
			fmt.Errorf("session is not open"))
	}

	if err := os.MkdirAll(sess.scratch, 0o755); err != nil {
		return ChunkResult{}, newError(KindAccessDenied, fileName, err)
	}

	if err := writePart(partPath(sess.scratch, index), data); err != nil {
		return ChunkResult{}, newError(KindAccessDenied, fileName, err)
	}
	sess.received[index] = true
	sess.lastActive = time.Now()

	if len(sess.received) < sess.total {
		return ChunkResult{
			Status:   ChunkReceived,
			Received: len(sess.received),
			Total:    sess.total,
		}, nil
	}

	sess.state = StateComplete
	size, err := m.reassemble(key, sess)
	if err != nil {
		return ChunkResult{}, err
	}
	return ChunkResult{
		Status:   ChunkComplete,
		Received: sess.total,
		Total:    sess.total,
		Path:     sess.dest,
		Size:     size,
	}, nil
}

// writePart writes one part-file. The write goes through a temp name in
// the scratch directory so a crashed delivery never leaves a truncated
// part behind that reassembly would accept.
func writePart(path string, data io.Reader) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "part-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := io.Copy(tmp, data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	return os.Rename(tmpName, path)
}

// reassemble streams every part-file in ascending index order into a temp
// file and renames it to the destination. Caller holds sess.mu.
//
// Failure modes: destination already exists → ItemExists, session stays
// Open with its parts intact so the client can retry after resolving the
// collision; a part-file missing at read time → CorruptSession, scratch
// removed, session Failed.
func (m *SessionManager) reassemble(key SessionKey, sess *session) (int64, error) {
	if _, err := os.Stat(sess.dest); err == nil {
		sess.state = StateOpen
		return 0, newError(KindItemExists, key.FileName, nil)
	}

	tmp, err := os.CreateTemp(key.Dir, ReservedPrefix+"*.tmp")
	if err != nil {
		sess.state = StateOpen
		return 0, newError(KindAccessDenied, key.FileName, err)
	}
	tmpName := tmp.Name()

	var written int64
	for i := 0; i < sess.total; i++ {
		part, err := os.Open(partPath(sess.scratch, i))
		if err != nil {
			tmp.Close()
			os.Remove(tmpName)
			m.fail(key, sess)
			return 0, newError(KindCorruptSession, key.FileName,
				fmt.Errorf("missing part %d of %d", i, sess.total))
		}
		n, err := io.Copy(tmp, part)
		part.Close()
		if err != nil {
			tmp.Close()
			os.Remove(tmpName)
			m.fail(key, sess)
			return 0, newError(KindCorruptSession, key.FileName, err)
		}
		written += n
	}

	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		m.fail(key, sess)
		return 0, newError(KindAccessDenied, key.FileName, err)
	}
	if err := os.Rename(tmpName, sess.dest); err != nil {
		os.Remove(tmpName)
		m.fail(key, sess)
		return 0, newError(KindAccessDenied, key.FileName, err)
	}

	sess.state = StateReassembled
	os.RemoveAll(sess.scratch)
	m.drop(key)
	return written, nil
}

func (m *SessionManager) fail(key SessionKey, sess *session) {
	sess.state = StateFailed
	os.RemoveAll(sess.scratch)
	m.drop(key)
}

func (m *SessionManager) drop(key SessionKey) {
	m.mu.Lock()
	delete(m.sessions, key)
	m.mu.Unlock()
}

// Abort discards an in-flight session and its scratch directory.
// Aborting an unknown session is not an error.
func (m *SessionManager) Abort(dir, fileName string) error {
	if err := validName(fileName); err != nil {
		return err
	}

	key := SessionKey{Dir: dir, FileName: fileName}

	m.mu.Lock()
	sess, ok := m.sessions[key]
	m.mu.Unlock()
	if !ok {
		// A scratch dir may survive a restart without a live session.
		// Only ever remove a path that is still a reserved name.
		scratch := scratchDirFor(dir, fileName)
		if IsReservedName(filepath.Base(scratch)) {
			os.RemoveAll(scratch)
		}
		return nil
	}

	sess.mu.Lock()
	sess.state = StateFailed
	os.RemoveAll(sess.scratch)
	sess.mu.Unlock()
	m.drop(key)
	return nil
}

// Active returns the number of in-flight sessions.
func (m *SessionManager) Active() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// CleanupExpired removes sessions idle for longer than the manager's
// expiry, deleting their scratch directories. Returns how many were
// removed.
func (m *SessionManager) CleanupExpired() int {
	m.mu.Lock()
	var stale []*session
	var keys []SessionKey
	for key, sess := range m.sessions {
		stale = append(stale, sess)
		keys = append(keys, key)
	}
	m.mu.Unlock()

	cutoff := time.Now().Add(-m.expiry)
	removed := 0
	for i, sess := range stale {
		sess.mu.Lock()
		expired := sess.state == StateOpen && sess.lastActive.Before(cutoff)
		if expired {
			sess.state = StateFailed
			os.RemoveAll(sess.scratch)
		}
		sess.mu.Unlock()
		if expired {
			m.drop(keys[i])
			removed++
		}
	}
	return removed
}
