package server

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/koustreak/hydrahub/internal/errs"
	"github.com/koustreak/hydrahub/internal/files"
)

func (s *Server) handleListFiles(w http.ResponseWriter, r *http.Request) {
	p := queryParams(r,
		"path", "recursive",
		"nameContains", "nameStartsWith", "nameEndsWith", "extensions",
		"minSize", "maxSize", "modifiedAfter", "modifiedBefore",
		"sortBy", "sortOrder",
	)

	opts := files.DefaultListOptions()
	opts.Path = p.str("path")
	opts.Recursive = p.boolean("recursive", true)

	filter := &files.Filter{
		NameContains:   p.str("nameContains"),
		NameStartsWith: p.str("nameStartsWith"),
		NameEndsWith:   p.str("nameEndsWith"),
		Extensions:     p.list("extensions"),
		MinSize:        p.nonNegative("minSize"),
		MaxSize:        p.nonNegative("maxSize"),
		ModifiedAfter:  p.date("modifiedAfter"),
		ModifiedBefore: p.date("modifiedBefore"),
	}
	if !filter.IsZero() {
		opts.Filter = filter
	}

	by := p.oneOf("sortBy", string(files.SortByName), string(files.SortBySize), string(files.SortByLastModified))
	order := p.oneOf("sortOrder", string(files.Asc), string(files.Desc))
	if by != "" {
		opts.Sort = &files.Sort{By: files.SortField(by), Order: files.SortOrder(order)}
	}

	if err := p.err(); err != nil {
		s.fail(w, r, err)
		return
	}

	entries, err := s.deps.Files.List(r.Context(), opts)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	p := queryParams(r, "key", "path", "limit", "expiry")
	key := p.str("key")
	if key == "" {
		key = p.str("path")
	}
	if key == "" {
		p.add("", "Either key or path is required")
	}
	limit := p.positive("limit", files.MaxPreviewLimit)
	expiry := p.positive("expiry", files.MaxExpirySeconds)

	if err := p.err(); err != nil {
		s.fail(w, r, err)
		return
	}

	preview, err := s.deps.Files.Preview(r.Context(), files.PreviewOptions{
		Key:           key,
		Limit:         limit,
		ExpirySeconds: expiry,
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, preview)
}

func (s *Server) handleSignedURL(w http.ResponseWriter, r *http.Request) {
	p := queryParams(r, "key", "expiry")
	key := p.str("key")
	if key == "" {
		p.add("key", "must not be empty")
	}
	expiry := p.positive("expiry", files.MaxExpirySeconds)

	if err := p.err(); err != nil {
		s.fail(w, r, err)
		return
	}

	signed, err := s.deps.Files.SignedURL(r.Context(), key, expiry)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, signed)
}

// handleProxy streams an object through the API so browsers can fetch
// it without bucket credentials.
func (s *Server) handleProxy(w http.ResponseWriter, r *http.Request) {
	key := files.SanitizeKey(chi.URLParam(r, "*"))
	if key == "" {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "Missing key"})
		return
	}

	obj, err := s.deps.Files.Open(r.Context(), key)
	if err != nil {
		status := http.StatusInternalServerError
		if errs.IsNotFound(err) {
			status = http.StatusNotFound
		}
		s.log.WarnWith("failed to proxy object", err, map[string]interface{}{"key": key})
		writeJSON(w, status, errorBody{Error: "Failed to fetch object", Key: key})
		return
	}
	defer obj.Close()

	s.extendWriteDeadline(w, key)
	w.Header().Set("Content-Type", files.ContentTypeFor(key))
	w.Header().Set("Cache-Control", "private, max-age=60")
	if _, err := io.Copy(w, obj); err != nil {
		// Headers are gone; all that is left is to note it.
		s.log.WarnWith("proxy stream interrupted", err, map[string]interface{}{"key": key})
	}
}

// extendWriteDeadline lets a proxied body outlive the server-wide write
// timeout, which is sized for JSON responses.
func (s *Server) extendWriteDeadline(w http.ResponseWriter, key string) {
	var deadline time.Time
	if s.deps.StreamTimeout > 0 {
		deadline = time.Now().Add(s.deps.StreamTimeout)
	}
	if err := http.NewResponseController(w).SetWriteDeadline(deadline); err != nil && !errors.Is(err, http.ErrNotSupported) {
		s.log.WarnWith("failed to extend proxy write deadline", err, map[string]interface{}{"key": key})
	}
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	p := queryParams(r, "path", "recursive")
	path := p.str("path")
	recursive := p.boolean("recursive", true)

	if err := p.err(); err != nil {
		s.fail(w, r, err)
		return
	}

	stats, err := s.deps.Files.Stats(r.Context(), path, recursive)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleMeta(w http.ResponseWriter, r *http.Request) {
	entries, err := s.deps.Meta.Get(r.Context(), chi.URLParam(r, "*"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}
