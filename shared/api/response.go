// shared/api/response.go
package api

import (
	"encoding/json"
	"net/http"
	"strings"
)

// JSONErrorResponse is the body of every bridge API error.
type JSONErrorResponse struct {
	Message string `json:"message"`
	Code    int    `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
}

// WriteJSON writes a JSON response with the given status code.
func WriteJSON(w http.ResponseWriter, status int, data interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(data)
}

// WriteError writes a JSON error response. Details, if any, are joined
// with "; ".
func WriteError(w http.ResponseWriter, status int, message string, details ...string) {
	errResp := JSONErrorResponse{
		Message: message,
		Code:    status,
		Details: strings.Join(details, "; "),
	}
	if err := WriteJSON(w, status, errResp); err != nil {
		http.Error(w, message, status)
	}
}

func WriteBadRequest(w http.ResponseWriter, message string, details ...string) {
	WriteError(w, http.StatusBadRequest, message, details...)
}

func WriteNotFound(w http.ResponseWriter, message string, details ...string) {
	WriteError(w, http.StatusNotFound, message, details...)
}

// WriteConflict reports a request that clashes with the current state of
// the resource, such as a second stream subscriber.
func WriteConflict(w http.ResponseWriter, message string, details ...string) {
	WriteError(w, http.StatusConflict, message, details...)
}

func WriteInternalServerError(w http.ResponseWriter, message string, details ...string) {
	WriteError(w, http.StatusInternalServerError, message, details...)
}
