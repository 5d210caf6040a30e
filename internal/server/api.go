package server

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/kapu/netfolio/internal/catalog"
	"github.com/kapu/netfolio/internal/domain"
	"github.com/kapu/netfolio/pkg/errors"
)

type searchResponse struct {
	Query   string         `json:"query"`
	Results []*domain.Card `json:"results"`
}

func (s *Server) handleProfiles(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, s.catalog.Current().Profiles())
}

// handleHero handles GET /api/hero?video=ID
func (s *Server) handleHero(w http.ResponseWriter, r *http.Request) {
	hero, err := s.catalog.Current().Hero(r.URL.Query().Get("video"))
	if err != nil {
		s.respondAppError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, hero)
}

func (s *Server) handleHeroVideos(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, s.catalog.Current().HeroVideos())
}

func (s *Server) handleAbout(w http.ResponseWriter, r *http.Request) {
	about := s.catalog.Current().AboutMe()
	if about == nil {
		s.respondAppError(w, r, errors.NewNotFoundError("profile card", ""))
		return
	}
	respondJSON(w, http.StatusOK, about)
}

func (s *Server) handleRows(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, s.catalog.Current().Rows())
}

// handleRow handles GET /api/rows/{id}
func (s *Server) handleRow(w http.ResponseWriter, r *http.Request) {
	row, err := s.catalog.Current().Row(chi.URLParam(r, "id"))
	if err != nil {
		s.respondAppError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, row)
}

// handleCard handles GET /api/cards/{id}. The modal renders straight from the detail view.
func (s *Server) handleCard(w http.ResponseWriter, r *http.Request) {
	card, err := s.catalog.Current().CardByID(chi.URLParam(r, "id"))
	if err != nil {
		s.respondAppError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, catalog.Detail(card))
}

func (s *Server) handleSkills(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, s.catalog.Current().Skills())
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	query := strings.TrimSpace(r.URL.Query().Get("q"))
	results := s.catalog.Current().Search(query)
	if results == nil {
		results = []*domain.Card{}
	}
	respondJSON(w, http.StatusOK, searchResponse{Query: query, Results: results})
}
