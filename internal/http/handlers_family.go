package http

import (
	"net/http"

	"github.com/dhishan/family-expense-tracker/internal/core"
	"github.com/dhishan/family-expense-tracker/internal/log"
)

type joinFamilyRequest struct {
	InviteCode string `json:"invite_code" validate:"required,max=64"`
}

func (s *Server) handleCreateFamily(w http.ResponseWriter, r *http.Request, user core.User) {
	var in core.FamilyInput
	if err := s.decodeJSON(w, r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	in.Name = sanitizeInput(in.Name)

	family, err := s.svc.Families.Create(r.Context(), user, in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	log.FromContext(r.Context()).InfoContext(r.Context(), "Family created",
		log.FieldFamilyID, family.ID)
	writeJSON(w, http.StatusCreated, family)
}

func (s *Server) handleGetFamily(w http.ResponseWriter, r *http.Request, user core.User) {
	family, err := s.svc.Families.Get(r.Context(), user, r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, family)
}

func (s *Server) handleFamilyMembers(w http.ResponseWriter, r *http.Request, user core.User) {
	members, err := s.svc.Families.Members(r.Context(), user, r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, members)
}

func (s *Server) handleJoinFamily(w http.ResponseWriter, r *http.Request, user core.User) {
	var req joinFamilyRequest
	if err := s.decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	family, err := s.svc.Families.Join(r.Context(), user, r.PathValue("id"), req.InviteCode)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, family)
}

func (s *Server) handleJoinByCode(w http.ResponseWriter, r *http.Request, user core.User) {
	var req joinFamilyRequest
	if err := s.decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	family, err := s.svc.Families.JoinByCode(r.Context(), user, req.InviteCode)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, family)
}

func (s *Server) handleLeaveFamily(w http.ResponseWriter, r *http.Request, user core.User) {
	if err := s.svc.Families.Leave(r.Context(), user, r.PathValue("id")); err != nil {
		writeError(w, r, err)
		return
	}
	writeMessage(w, "Successfully left the family")
}

func (s *Server) handleRegenerateInvite(w http.ResponseWriter, r *http.Request, user core.User) {
	code, err := s.svc.Families.RegenerateInvite(r.Context(), user, r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"invite_code": code})
}

func (s *Server) handleUpdateFamilySettings(w http.ResponseWriter, r *http.Request, user core.User) {
	var in core.FamilySettingsUpdate
	if err := s.decodeJSON(w, r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	family, err := s.svc.Families.UpdateSettings(r.Context(), user, r.PathValue("id"), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, family)
}
