package main

import (
	"net/http"
	"strings"
)

type mobileRequest struct {
	MobileNumber string `json:"mobile_number"`
	OTP          string `json:"otp,omitempty"`
	MPIN         string `json:"mpin,omitempty"`
}

func (s *Server) decodeMobile(w http.ResponseWriter, r *http.Request) (*mobileRequest, bool) {
	var req mobileRequest
	if err := decodeJSON(r, &req); err != nil {
		writeErrorMessage(w, http.StatusBadRequest, err.Error())
		return nil, false
	}
	req.MobileNumber = strings.TrimSpace(req.MobileNumber)
	if req.MobileNumber == "" {
		writeErrorMessage(w, http.StatusBadRequest, "Mobile number is required")
		return nil, false
	}
	return &req, true
}

func (s *Server) loginHandler(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeMobile(w, r)
	if !ok {
		return
	}
	res, err := s.auth.Login(r.Context(), req.MobileNumber)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) verifyOTPHandler(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeMobile(w, r)
	if !ok {
		return
	}
	res, err := s.auth.VerifyOTP(r.Context(), req.MobileNumber, req.OTP)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) createMPINHandler(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeMobile(w, r)
	if !ok {
		return
	}
	res, err := s.auth.CreateMPIN(r.Context(), req.MobileNumber, req.OTP, req.MPIN)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) mpinLoginHandler(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeMobile(w, r)
	if !ok {
		return
	}
	res, err := s.auth.MPINLogin(r.Context(), req.MobileNumber, req.MPIN)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
