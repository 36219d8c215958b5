package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/koustreak/hydrahub/internal/asset"
)

func (s *Server) handleListAssets(w http.ResponseWriter, r *http.Request) {
	list, err := s.deps.Assets.List(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleCreateAsset(w http.ResponseWriter, r *http.Request) {
	var in asset.CreateInput
	if err := decodeBody(w, r, &in, false); err != nil {
		s.fail(w, r, err)
		return
	}
	a, err := s.deps.Assets.Create(r.Context(), in)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, a)
}

func (s *Server) handleGetAsset(w http.ResponseWriter, r *http.Request) {
	a, err := s.deps.Assets.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (s *Server) handleUpdateAsset(w http.ResponseWriter, r *http.Request) {
	var in asset.UpdateInput
	if err := decodeBody(w, r, &in, false); err != nil {
		s.fail(w, r, err)
		return
	}
	a, err := s.deps.Assets.Update(r.Context(), chi.URLParam(r, "id"), in)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (s *Server) handleDeleteAsset(w http.ResponseWriter, r *http.Request) {
	if _, err := s.deps.Assets.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Data asset deleted successfully"})
}
