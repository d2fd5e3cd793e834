package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/curious-vv1/IoT-Based-Smart-Bin/internal/dashboard"
	"github.com/curious-vv1/IoT-Based-Smart-Bin/internal/realtime"
	"github.com/curious-vv1/IoT-Based-Smart-Bin/internal/view"
)

type Server struct {
	ctrl *dashboard.Controller
	hub  *realtime.Hub
}

func NewServer(ctrl *dashboard.Controller, hub *realtime.Hub) *Server {
	return &Server{ctrl: ctrl, hub: hub}
}

func (s *Server) Register(mux *http.ServeMux) {
	r := chi.NewRouter()

	if s.hub != nil {
		r.Get("/ws/bins", s.hub.ServeHTTP)
	}

	r.Route("/api/bins", func(r chi.Router) {
		r.Get("/", s.handleBinsList)
		r.Get("/{bin_id}", s.handleBinGet)
		r.Post("/{bin_id}/status/toggle", s.handleStatusToggle)
		r.Post("/{bin_id}/height/edit", s.handleHeightEditBegin)
		r.Put("/{bin_id}/height", s.handleHeightCandidate)
		r.Post("/{bin_id}/height/save", s.handleHeightSave)
		r.Post("/{bin_id}/height/cancel", s.handleHeightCancel)
	})

	mux.Handle("/", r)
}

type binsListResponse struct {
	Bins           map[string]view.Record `json:"bins"`
	LastSnapshotAt time.Time              `json:"lastSnapshotAt"`
}

func (s *Server) handleBinsList(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, binsListResponse{
		Bins:           s.ctrl.Views(),
		LastSnapshotAt: s.ctrl.LastSnapshotAt(),
	})
}

func (s *Server) handleBinGet(w http.ResponseWriter, r *http.Request) {
	binID := binIDParam(r)
	rec, ok := s.ctrl.View(binID)
	if !ok {
		writeError(w, http.StatusNotFound, "unknown bin")
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleStatusToggle(w http.ResponseWriter, r *http.Request) {
	binID := binIDParam(r)
	if err := s.ctrl.ToggleStatus(r.Context(), binID); err != nil {
		s.writeMutationError(w, err)
		return
	}
	s.writeBin(w, binID)
}

func (s *Server) handleHeightEditBegin(w http.ResponseWriter, r *http.Request) {
	binID := binIDParam(r)
	if err := s.ctrl.BeginEditHeight(binID); err != nil {
		s.writeMutationError(w, err)
		return
	}
	s.writeBin(w, binID)
}

type heightCandidateRequest struct {
	Value string `json:"value"`
}

func (s *Server) handleHeightCandidate(w http.ResponseWriter, r *http.Request) {
	binID := binIDParam(r)
	var req heightCandidateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	if err := s.ctrl.SetHeightCandidate(binID, strings.TrimSpace(req.Value)); err != nil {
		s.writeMutationError(w, err)
		return
	}
	s.writeBin(w, binID)
}

func (s *Server) handleHeightSave(w http.ResponseWriter, r *http.Request) {
	binID := binIDParam(r)
	if err := s.ctrl.SubmitHeight(r.Context(), binID); err != nil {
		s.writeMutationError(w, err)
		return
	}
	s.writeBin(w, binID)
}

func (s *Server) handleHeightCancel(w http.ResponseWriter, r *http.Request) {
	binID := binIDParam(r)
	if err := s.ctrl.CancelEditHeight(binID); err != nil {
		s.writeMutationError(w, err)
		return
	}
	s.writeBin(w, binID)
}

// writeBin responds with the bin's fresh view so callers can render the new
// edit state without waiting for the websocket frame.
func (s *Server) writeBin(w http.ResponseWriter, binID string) {
	rec, ok := s.ctrl.View(binID)
	if !ok {
		writeError(w, http.StatusNotFound, "unknown bin")
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) writeMutationError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, dashboard.ErrUnknownBin):
		writeError(w, http.StatusNotFound, "unknown bin")
	case errors.Is(err, dashboard.ErrBusy):
		writeError(w, http.StatusConflict, "a save for this field is already in flight")
	case errors.Is(err, dashboard.ErrNotEditing):
		writeError(w, http.StatusConflict, "no height edit in progress")
	case errors.Is(err, dashboard.ErrInvalidHeight):
		writeError(w, http.StatusUnprocessableEntity, dashboard.ErrInvalidHeight.Error())
	default:
		// Remote write rejected; the field already carries the error state.
		writeError(w, http.StatusBadGateway, err.Error())
	}
}

func binIDParam(r *http.Request) string {
	return strings.TrimSpace(chi.URLParam(r, "bin_id"))
}

type jsonErr struct {
	Error string `json:"error"`
	Code  int    `json:"code"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, jsonErr{Error: msg, Code: status})
}

func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}
