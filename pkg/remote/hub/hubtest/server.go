// Package hubtest provides an in-process hub serving a fixed set of files,
// for tests of code that talks to a model hub.
package hubtest

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// Server is a fake hub for one repository. Files whose name ends in
// ".safetensors" are served like LFS files: HEAD answers with a redirect to
// a separate CDN server carrying the linked etag, GETs follow it.
type Server struct {
	*httptest.Server
	CDN *httptest.Server

	Repo   string
	Commit string

	mu       sync.RWMutex
	files    map[string][]byte
	failures map[string]int

	Heads         atomic.Int64
	Gets          atomic.Int64
	RangeGets     atomic.Int64
	RevisionCalls atomic.Int64
}

// NewServer starts a hub serving repo at commit. Call Close when done.
func NewServer(repo, commit string) *Server {
	s := &Server{
		Repo:     repo,
		Commit:   commit,
		files:    make(map[string][]byte),
		failures: make(map[string]int),
	}
	s.CDN = httptest.NewServer(http.HandlerFunc(s.serveCDN))
	s.Server = httptest.NewServer(http.HandlerFunc(s.serveHub))
	return s
}

// Close shuts down the hub and CDN servers.
func (s *Server) Close() {
	s.Server.Close()
	s.CDN.Close()
}

// SetFile adds or replaces a file.
func (s *Server) SetFile(name string, data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.files[name] = data
}

// Fail makes every request for name answer with status. Status 0 clears it.
func (s *Server) Fail(name string, status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if status == 0 {
		delete(s.failures, name)
		return
	}
	s.failures[name] = status
}

// ETag returns the etag the server reports for data.
func ETag(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func (s *Server) lookup(name string) ([]byte, int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if st, ok := s.failures[name]; ok {
		return nil, st
	}
	data, ok := s.files[name]
	if !ok {
		return nil, http.StatusNotFound
	}
	return data, http.StatusOK
}

func (s *Server) serveHub(w http.ResponseWriter, r *http.Request) {
	path := r.URL.EscapedPath()

	if rest, ok := strings.CutPrefix(path, "/api/models/"+s.Repo+"/revision/"); ok {
		s.RevisionCalls.Add(1)
		if _, err := url.PathUnescape(rest); err != nil {
			http.Error(w, "bad revision", http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{"id": s.Repo, "sha": s.Commit})
		return
	}

	rest, ok := strings.CutPrefix(path, "/"+s.Repo+"/resolve/")
	if !ok {
		w.Header().Set("X-Error-Code", "RepoNotFound")
		http.Error(w, `{"error":"Repository not found"}`, http.StatusNotFound)
		return
	}
	_, escFile, ok := strings.Cut(rest, "/")
	if !ok {
		http.NotFound(w, r)
		return
	}
	name, err := url.PathUnescape(escFile)
	if err != nil {
		http.NotFound(w, r)
		return
	}

	data, status := s.lookup(name)
	if status != http.StatusOK {
		if status == http.StatusNotFound {
			w.Header().Set("X-Error-Code", "EntryNotFound")
			w.Header().Set("X-Error-Message", "Entry not found")
		}
		w.WriteHeader(status)
		return
	}

	etag := ETag(data)
	w.Header().Set("X-Repo-Commit", s.Commit)

	if strings.HasSuffix(name, ".safetensors") {
		if r.Method == http.MethodHead {
			s.Heads.Add(1)
		}
		w.Header().Set("X-Linked-Etag", `"`+etag+`"`)
		w.Header().Set("X-Linked-Size", strconv.Itoa(len(data)))
		w.Header().Set("ETag", `"git-object-id"`)
		http.Redirect(w, r, s.CDN.URL+"/"+etag, http.StatusFound)
		return
	}

	s.count(r)
	w.Header().Set("ETag", `"`+etag+`"`)
	http.ServeContent(w, r, name, time.Time{}, bytes.NewReader(data))
}

func (s *Server) serveCDN(w http.ResponseWriter, r *http.Request) {
	etag := strings.TrimPrefix(r.URL.Path, "/")

	s.mu.RLock()
	var data []byte
	for _, d := range s.files {
		if ETag(d) == etag {
			data = d
			break
		}
	}
	s.mu.RUnlock()
	if data == nil {
		http.NotFound(w, r)
		return
	}

	s.count(r)
	http.ServeContent(w, r, etag, time.Time{}, bytes.NewReader(data))
}

func (s *Server) count(r *http.Request) {
	switch {
	case r.Method == http.MethodHead:
		s.Heads.Add(1)
	case r.Header.Get("Range") != "":
		s.RangeGets.Add(1)
	default:
		s.Gets.Add(1)
	}
}
