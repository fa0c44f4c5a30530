package main

import (
	"net/http"
	"strconv"

	"github.com/mcclellann/loantracker/pkg/profile"
)

func (s *Server) getProfileHandler(w http.ResponseWriter, r *http.Request) {
	p, err := s.profiles.Get(r.Context(), identity(r).UserID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) updateProfileHandler(w http.ResponseWriter, r *http.Request) {
	var req profile.UpdateProfileRequest
	if err := decodeJSON(r, &req); err != nil {
		writeErrorMessage(w, http.StatusBadRequest, err.Error())
		return
	}
	p, err := s.profiles.Update(r.Context(), identity(r).UserID, req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) changeMPINHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		MPIN string `json:"mpin"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeErrorMessage(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.auth.ChangeMPIN(r.Context(), identity(r).UserID, req.MPIN); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeMessage(w, http.StatusOK, "MPIN updated")
}

func (s *Server) updateAvatarHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Image string `json:"image"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeErrorMessage(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.profiles.UpdateAvatar(r.Context(), identity(r).UserID, req.Image); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeMessage(w, http.StatusOK, "Avatar updated")
}

func (s *Server) getImageHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathID(w, r, "userId", "user")
	if !ok {
		return
	}
	img, err := s.profiles.Avatar(r.Context(), userID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", img.ContentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(img.Data)))
	w.Header().Set("Cache-Control", "private, max-age=300")
	w.WriteHeader(http.StatusOK)
	w.Write(img.Data)
}
