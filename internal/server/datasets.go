package server

import (
	"net/http"

	"github.com/koustreak/hydrahub/internal/dataset"
	"github.com/koustreak/hydrahub/internal/errs"
)

// handleGetDatasets returns one dataset when ?key= is given, otherwise
// every dataset.
func (s *Server) handleGetDatasets(w http.ResponseWriter, r *http.Request) {
	p := queryParams(r, "key")
	if err := p.err(); err != nil {
		s.fail(w, r, err)
		return
	}

	if key := p.str("key"); key != "" {
		d, err := s.deps.Datasets.Get(r.Context(), key)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, d)
		return
	}

	list, err := s.deps.Datasets.List(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

type createDatasetRequest struct {
	Key         string          `json:"key"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Queries     []dataset.Query `json:"queries"`
}

// handleCreateDataset stores a new dataset. Timestamps are always set by
// the server.
func (s *Server) handleCreateDataset(w http.ResponseWriter, r *http.Request) {
	var req createDatasetRequest
	if err := decodeBody(w, r, &req, false); err != nil {
		s.fail(w, r, err)
		return
	}

	now := s.now()
	d := &dataset.Dataset{
		Key:         req.Key,
		Name:        req.Name,
		Description: req.Description,
		CreatedAt:   now,
		UpdatedAt:   now,
		Queries:     req.Queries,
	}
	if err := s.deps.Datasets.Create(r.Context(), d); err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, d)
}

type addQueryRequest struct {
	DatasetKey string        `json:"datasetKey"`
	Query      dataset.Query `json:"query"`
}

func (s *Server) handleAddQuery(w http.ResponseWriter, r *http.Request) {
	var req addQueryRequest
	if err := decodeBody(w, r, &req, true); err != nil {
		s.fail(w, r, err)
		return
	}
	if req.DatasetKey == "" {
		s.fail(w, r, errs.Invalid(errs.Issue{Field: "datasetKey", Message: "must not be empty"}))
		return
	}

	if _, err := s.deps.Datasets.AddQuery(r.Context(), req.DatasetKey, req.Query); err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Query added successfully"})
}
