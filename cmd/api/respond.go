package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/mcclellann/loantracker/pkg/auth"
	"github.com/mcclellann/loantracker/pkg/ledger"
	"github.com/mcclellann/loantracker/pkg/profile"
	"github.com/sirupsen/logrus"
)

// errorResponse is the JSON body of every failed request.
type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Entity  string `json:"entity,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeMessage(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"message": message})
}

func writeErrorMessage(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: http.StatusText(status), Message: message})
}

// writeError maps service errors to HTTP responses. Internal causes are
// logged and never returned to the client.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, body := s.classify(err)
	if status >= http.StatusInternalServerError {
		s.log.WithFields(logrus.Fields{"method": r.Method, "path": r.URL.Path}).WithError(err).Error("request failed")
	}
	writeJSON(w, status, body)
}

func (s *Server) classify(err error) (int, errorResponse) {
	var le *ledger.Error
	if errors.As(err, &le) {
		var status int
		switch le.Kind {
		case ledger.KindNotFound:
			status = http.StatusNotFound
		case ledger.KindInvalidRequest, ledger.KindAlreadySettled, ledger.KindInvalidState:
			status = http.StatusBadRequest
		case ledger.KindForbidden:
			status = http.StatusForbidden
		default:
			return http.StatusInternalServerError, internalBody()
		}
		return status, errorResponse{Error: le.Kind.String(), Message: le.Message, Entity: le.Entity}
	}

	switch {
	case errors.Is(err, auth.ErrInvalidCredentials), errors.Is(err, auth.ErrInvalidToken):
		return http.StatusUnauthorized, errorResponse{Error: "Unauthorized", Message: err.Error()}
	case errors.Is(err, auth.ErrUserNotFound), errors.Is(err, profile.ErrUserNotFound):
		return http.StatusNotFound, errorResponse{Error: "NotFound", Message: "User not found.", Entity: "User"}
	case errors.Is(err, profile.ErrAvatarNotFound):
		return http.StatusNotFound, errorResponse{Error: "NotFound", Message: "Image not found.", Entity: "Image"}
	case errors.Is(err, auth.ErrInvalidOTP), errors.Is(err, auth.ErrMPINFormat),
		errors.Is(err, auth.ErrMPINAlreadySet), errors.Is(err, auth.ErrMPINNotSet),
		errors.Is(err, profile.ErrInvalidImage), errors.Is(err, profile.ErrInvalidProfile):
		return http.StatusBadRequest, errorResponse{Error: "InvalidRequest", Message: err.Error()}
	}
	return http.StatusInternalServerError, internalBody()
}

func internalBody() errorResponse {
	return errorResponse{Error: "Internal", Message: "An internal error occurred. Please try again later."}
}

// decodeJSON decodes the request body into v, rejecting unknown fields.
func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

// pathID parses a uuid path variable and writes a 400 when it is malformed.
func pathID(w http.ResponseWriter, r *http.Request, name, label string) (uuid.UUID, bool) {
	id, err := uuid.Parse(mux.Vars(r)[name])
	if err != nil {
		writeErrorMessage(w, http.StatusBadRequest, "Invalid "+label+" ID")
		return uuid.Nil, false
	}
	return id, true
}
