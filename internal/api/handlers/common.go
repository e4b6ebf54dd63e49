// Package handlers provides HTTP request handlers for the reconengine API.
// This file contains the response envelope and helpers shared by every handler.
package handlers

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/cyberdash/reconengine/internal/api/middleware"
	"github.com/cyberdash/reconengine/internal/errors"
	"github.com/cyberdash/reconengine/internal/logging"
)

const defaultMaxRequestSize = 64 * 1024

// Response is the envelope of every scanner endpoint.
type Response struct {
	Success   bool   `json:"success"`
	Data      any    `json:"data,omitempty"`
	Message   string `json:"message,omitempty"`
	Code      string `json:"code,omitempty"`
	RequestID string `json:"requestId,omitempty"`
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, r *http.Request, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		logging.Error("Failed to encode JSON response",
			"request_id", middleware.RequestIDFromContext(r.Context()),
			"error", err)
	}
}

// writeSuccess wraps data in a success envelope.
func writeSuccess(w http.ResponseWriter, r *http.Request, data any) {
	writeJSON(w, r, http.StatusOK, Response{Success: true, Data: data})
}

// writeFailure writes a failure envelope with an explicit status and message.
func writeFailure(w http.ResponseWriter, r *http.Request, statusCode int, code errors.ErrorCode, message string) {
	writeJSON(w, r, statusCode, Response{
		Success:   false,
		Message:   message,
		Code:      string(code),
		RequestID: middleware.RequestIDFromContext(r.Context()),
	})
}

// writeError maps err to a status and a client-safe message. Internal
// failures never expose their cause.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := errors.HTTPStatus(err)
	code := errors.GetCode(err)

	message := http.StatusText(status)
	var scanErr *errors.ScanError
	var dbErr *errors.DatabaseError
	switch {
	case status == http.StatusInternalServerError:
		message = "Internal server error"
	case stderrors.As(err, &scanErr):
		message = scanErr.Message
	case stderrors.As(err, &dbErr):
		message = dbErr.Message
	}

	writeFailure(w, r, status, code, message)
}

// parseJSON decodes the request body into dest and validates it.
func parseJSON(r *http.Request, dest any, validate *validator.Validate, maxSize int64) error {
	if r.Body == nil || r.Body == http.NoBody {
		return errors.NewScanError(errors.CodeValidation, "Request body is required")
	}
	if maxSize <= 0 {
		maxSize = defaultMaxRequestSize
	}
	r.Body = http.MaxBytesReader(nil, r.Body, maxSize)

	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()

	if err := decoder.Decode(dest); err != nil {
		var maxErr *http.MaxBytesError
		if stderrors.As(err, &maxErr) {
			return errors.WrapScanError(errors.CodeValidation,
				fmt.Sprintf("Request body too large (max %d bytes)", maxSize), err)
		}
		return errors.WrapScanError(errors.CodeValidation, "Invalid JSON body", err)
	}

	if err := validate.Struct(dest); err != nil {
		return errors.WrapScanError(errors.CodeValidation, validationMessage(err), err)
	}
	return nil
}

// validationMessage turns the first validator failure into a readable sentence.
func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !stderrors.As(err, &verrs) || len(verrs) == 0 {
		return "Invalid request"
	}

	fe := verrs[0]
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fe.Field())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", fe.Field(), fe.Param())
	default:
		return fmt.Sprintf("%s is invalid", fe.Field())
	}
}

// getQueryParamInt extracts an integer query parameter with a default value.
func getQueryParamInt(r *http.Request, key string, defaultValue int) (int, error) {
	if value := r.URL.Query().Get(key); value != "" {
		return strconv.Atoi(value)
	}
	return defaultValue, nil
}

// extractUUIDFromPath extracts the {id} path variable.
func extractUUIDFromPath(r *http.Request) (uuid.UUID, error) {
	idStr, ok := mux.Vars(r)["id"]
	if !ok {
		return uuid.Nil, fmt.Errorf("id not provided")
	}

	id, err := uuid.Parse(idStr)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid id: %s", idStr)
	}
	return id, nil
}
