package utils

import (
	"encoding/json"
	"net/http"
)

// APIResponse is the standard envelope for every endpoint.
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *APIError   `json:"error,omitempty"`
	Meta    *Meta       `json:"meta,omitempty"`
}

// APIError carries a stable machine code plus a human message.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

// Meta holds pagination metadata.
type Meta struct {
	Page       int `json:"page,omitempty"`
	PerPage    int `json:"per_page,omitempty"`
	Total      int `json:"total,omitempty"`
	TotalPages int `json:"total_pages,omitempty"`
}

// WriteJSONResponse writes data wrapped in the envelope.
func WriteJSONResponse(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	response := APIResponse{
		Success: statusCode >= 200 && statusCode < 300,
		Data:    data,
	}

	if err := json.NewEncoder(w).Encode(response); err != nil {
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}

// WriteSuccessResponse writes a 200 envelope.
func WriteSuccessResponse(w http.ResponseWriter, data interface{}) {
	WriteJSONResponse(w, http.StatusOK, data)
}

// WriteCreatedResponse writes a 201 envelope.
func WriteCreatedResponse(w http.ResponseWriter, data interface{}) {
	WriteJSONResponse(w, http.StatusCreated, data)
}

// WriteErrorResponseWithCode writes an error envelope with a machine code.
func WriteErrorResponseWithCode(w http.ResponseWriter, statusCode int, code, message, details string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	response := APIResponse{
		Success: false,
		Error: &APIError{
			Code:    code,
			Message: message,
			Details: details,
		},
	}

	if err := json.NewEncoder(w).Encode(response); err != nil {
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}

// WriteErrorResponse writes an error envelope with the generic ERROR code.
func WriteErrorResponse(w http.ResponseWriter, statusCode int, message string) {
	WriteErrorResponseWithCode(w, statusCode, "ERROR", message, "")
}

func WriteBadRequestResponse(w http.ResponseWriter, message string) {
	WriteErrorResponseWithCode(w, http.StatusBadRequest, "BAD_REQUEST", message, "")
}

func WriteUnauthorizedResponse(w http.ResponseWriter, message string) {
	WriteErrorResponseWithCode(w, http.StatusUnauthorized, "UNAUTHORIZED", message, "")
}

func WriteForbiddenResponse(w http.ResponseWriter, message string) {
	WriteErrorResponseWithCode(w, http.StatusForbidden, "FORBIDDEN", message, "")
}

func WriteNotFoundResponse(w http.ResponseWriter, message string) {
	WriteErrorResponseWithCode(w, http.StatusNotFound, "NOT_FOUND", message, "")
}

func WriteConflictResponse(w http.ResponseWriter, message string) {
	WriteErrorResponseWithCode(w, http.StatusConflict, "CONFLICT", message, "")
}

func WriteInternalServerErrorResponse(w http.ResponseWriter, message string) {
	WriteErrorResponseWithCode(w, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", message, "")
}

func WriteValidationErrorResponse(w http.ResponseWriter, message string, details string) {
	WriteErrorResponseWithCode(w, http.StatusBadRequest, "VALIDATION_ERROR", message, details)
}

// ParseJSONBody decodes the request body into v.
func ParseJSONBody(r *http.Request, v interface{}) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(v)
}

// GetQueryParam returns the query value or a default when absent.
func GetQueryParam(r *http.Request, key, defaultValue string) string {
	if value := r.URL.Query().Get(key); value != "" {
		return value
	}
	return defaultValue
}
