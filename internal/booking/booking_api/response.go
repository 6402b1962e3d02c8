package booking_api

import (
	"encoding/json"
	"net/http"

	"terrace-booking/internal/booking"
)

type ErrorResponse struct {
	Error string `json:"error"`
}

type SuccessResponse struct {
	Success bool `json:"success"`
}

type SweepResponse struct {
	Freed interface{} `json:"freed"`
}

func sendJSONResponse(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func sendError(w http.ResponseWriter, status int, message string) {
	sendJSONResponse(w, status, ErrorResponse{Error: message})
}

// statusFor maps a booking error kind to its HTTP status.
func statusFor(err error) int {
	switch {
	case booking.IsValidationError(err):
		return http.StatusBadRequest
	case booking.IsConflictError(err):
		return http.StatusConflict
	case booking.IsNotFoundError(err):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// messageFor hides storage details from clients; they are logged instead.
func messageFor(err error, status int) string {
	if status == http.StatusInternalServerError {
		return "internal storage failure"
	}
	return err.Error()
}
