package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/phrazzld/docstream/internal/api/shared"
	"github.com/phrazzld/docstream/internal/domain"
	"github.com/phrazzld/docstream/internal/generation"
	"github.com/phrazzld/docstream/internal/service/auth"
)

// MapErrorToStatusCode maps internal errors to HTTP status codes without
// leaking internal error types to clients.
func MapErrorToStatusCode(err error) int {
	switch {
	case errors.Is(err, auth.ErrInvalidToken),
		errors.Is(err, auth.ErrExpiredToken),
		errors.Is(err, auth.ErrMissingToken):
		return http.StatusUnauthorized

	case errors.Is(err, domain.ErrValidation):
		return http.StatusBadRequest

	case errors.Is(err, domain.ErrTaskNotFound),
		errors.Is(err, domain.ErrArtifactNotFound):
		return http.StatusNotFound

	case errors.Is(err, context.Canceled):
		return http.StatusConflict

	case errors.Is(err, domain.ErrTooManyTasks):
		return http.StatusTooManyRequests

	case errors.Is(err, domain.ErrJobSubmission),
		errors.Is(err, domain.ErrJobFailed),
		errors.Is(err, generation.ErrTransientFailure),
		errors.Is(err, generation.ErrInvalidResponse),
		errors.Is(err, generation.ErrContentBlocked):
		return http.StatusBadGateway

	case errors.Is(err, domain.ErrNotConfigured),
		errors.Is(err, generation.ErrInvalidConfig):
		return http.StatusServiceUnavailable

	case errors.Is(err, domain.ErrJobTimeout):
		return http.StatusGatewayTimeout

	default:
		return http.StatusInternalServerError
	}
}

// GetSafeErrorMessage returns a user-facing message for err. Validation
// errors keep their detail, which is built from request fields only.
func GetSafeErrorMessage(err error) string {
	if err == nil {
		return "An unexpected error occurred"
	}

	switch {
	case errors.Is(err, auth.ErrExpiredToken):
		return "Token expired"
	case errors.Is(err, auth.ErrInvalidToken), errors.Is(err, auth.ErrMissingToken):
		return "Invalid token"
	case errors.Is(err, domain.ErrValidation):
		return validationDetail(err)
	case errors.Is(err, domain.ErrTaskNotFound):
		return "Task not found"
	case errors.Is(err, domain.ErrArtifactNotFound):
		return "Image not found"
	case errors.Is(err, context.Canceled):
		return "Analysis was cancelled"
	case errors.Is(err, domain.ErrTooManyTasks):
		return "Too many analyses in progress, try again later"
	case errors.Is(err, domain.ErrNotConfigured):
		return "MinerU API key is not configured"
	case errors.Is(err, generation.ErrInvalidConfig):
		return "Image analysis is not configured; send a Gemini key in the " + HeaderAnalyzerKey + " header"
	case errors.Is(err, generation.ErrContentBlocked):
		return "Image analysis was blocked by the model's safety filters"
	case errors.Is(err, generation.ErrTransientFailure), errors.Is(err, generation.ErrInvalidResponse):
		return "Image analysis failed"
	case errors.Is(err, domain.ErrJobSubmission):
		return "The document could not be submitted for parsing"
	case errors.Is(err, domain.ErrJobFailed):
		return "Document parsing failed"
	case errors.Is(err, domain.ErrJobTimeout):
		return "Document parsing timed out"
	default:
		return "An unexpected error occurred"
	}
}

func validationDetail(err error) string {
	msg := err.Error()
	if i := strings.Index(msg, domain.ErrValidation.Error()+": "); i >= 0 {
		detail := msg[i+len(domain.ErrValidation.Error())+2:]
		if detail != "" {
			return detail
		}
	}
	if strings.Contains(msg, "Field validation") {
		return SanitizeValidationError(err)
	}
	return "Validation error"
}

// SanitizeValidationError turns a validator error into a short message.
func SanitizeValidationError(err error) string {
	errMsg := err.Error()

	// Example: "Key: 'analyzeForm.URL' Error:Field validation for 'URL' failed on the 'url' tag"
	if strings.Contains(errMsg, "Field validation") {
		parts := strings.Split(errMsg, "Error:")
		if len(parts) >= 2 {
			fieldParts := strings.Split(parts[1], "'")
			if len(fieldParts) >= 3 {
				field := fieldParts[1]
				var tag string
				if len(fieldParts) >= 5 {
					tag = fieldParts[3]
				}
				if tag != "" {
					return fmt.Sprintf("Invalid %s: %s", field, getValidationTagMessage(tag))
				}
				return fmt.Sprintf("Invalid %s", field)
			}
		}
	}

	return "Validation error"
}

func getValidationTagMessage(tag string) string {
	switch tag {
	case "required":
		return "required field"
	case "url", "http_url":
		return "must be an absolute URL"
	case "max":
		return "too long"
	default:
		return "validation failed"
	}
}

// HandleAPIError writes the mapped status and safe message for err, with the
// wire error code of the failure kind. fallbackMsg replaces the generic
// message for unmapped errors.
func HandleAPIError(w http.ResponseWriter, r *http.Request, err error, fallbackMsg string) {
	status := MapErrorToStatusCode(err)
	msg := GetSafeErrorMessage(err)
	if status == http.StatusInternalServerError && fallbackMsg != "" {
		msg = fallbackMsg
	}

	opts := []shared.ResponseOption{shared.WithErrorCode(domain.ErrorCode(err))}
	if status == http.StatusUnauthorized {
		opts = append(opts, shared.WithElevatedLogLevel())
	}
	shared.RespondWithErrorAndLog(w, r, status, msg, err, opts...)
}
