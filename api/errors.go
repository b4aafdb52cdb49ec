package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/xraph/orbit"
)

// errBadRequest marks failures of request decoding and path parsing.
var errBadRequest = errors.New("api: bad request")

// statusFor maps an engine error to an HTTP status code.
func statusFor(err error) int {
	var verrs validator.ValidationErrors
	switch {
	case errors.Is(err, errBadRequest), errors.As(err, &verrs):
		return http.StatusBadRequest
	case orbit.IsNotFound(err):
		return http.StatusNotFound
	case errors.Is(err, orbit.ErrNotAuthorized):
		return http.StatusUnauthorized
	case errors.Is(err, orbit.ErrOverflow):
		return http.StatusUnprocessableEntity
	case orbit.IsValidationError(err):
		return http.StatusBadRequest
	case orbit.IsStateError(err):
		return http.StatusConflict
	case errors.Is(err, orbit.ErrTransferFailed):
		return http.StatusBadGateway
	case errors.Is(err, orbit.ErrStoreClosed):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) sendJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Debug("api response write failed", "error", err)
	}
}

func (s *Server) sendError(w http.ResponseWriter, err error) {
	code := statusFor(err)
	if code == http.StatusInternalServerError {
		s.logger.Error("api request failed", "error", err)
	}
	s.sendJSON(w, code, ErrorResponse{
		Error:     http.StatusText(code),
		Message:   err.Error(),
		Code:      code,
		ErrorCode: orbit.Code(err),
	})
}
