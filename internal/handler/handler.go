package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strings"

	"estimate-api/internal/middleware"
	"estimate-api/internal/model"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
)

// maxBodyBytes bounds JSON request bodies.
const maxBodyBytes = 1 << 20

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		// Log the error but don't expose it to the client
		return
	}
}

// writeError writes an error body carrying the request's correlation id.
func writeError(w http.ResponseWriter, r *http.Request, status int, code, message, field string) {
	writeJSON(w, status, model.ErrorResponse{
		Error:         code,
		Message:       message,
		Field:         field,
		CorrelationID: middleware.RequestIDFromContext(r.Context()),
	})
}

// writeDomainError maps err onto an HTTP status and error body.
func writeDomainError(w http.ResponseWriter, r *http.Request, err error, logger zerolog.Logger) {
	var domainErr *model.DomainError
	if errors.As(err, &domainErr) {
		status := statusFor(domainErr.Code)
		event := logger.Debug()
		if status >= http.StatusInternalServerError {
			event = logger.Error()
		}
		event.Err(err).Str("code", domainErr.Code).Int("status", status).Msg("request failed")

		if domainErr.Code == model.ErrCodeConflict {
			w.Header().Set("Retry-After", "1")
		}
		message := domainErr.Message
		if domainErr.Code == model.ErrCodePersistenceFailure {
			message = "storage temporarily unavailable, retry later"
		}
		writeError(w, r, status, domainErr.Code, message, domainErr.Field)
		return
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		logger.Warn().Err(err).Msg("request abandoned before completion")
		writeError(w, r, http.StatusServiceUnavailable, model.ErrCodeInternalError, "request did not complete in time, retry", "")
		return
	}

	logger.Error().Err(err).Msg("unexpected handler error")
	writeError(w, r, http.StatusInternalServerError, model.ErrCodeInternalError, "internal server error", "")
}

func statusFor(code string) int {
	switch code {
	case model.ErrCodeValidation, model.ErrCodeInvalidJSON:
		return http.StatusBadRequest
	case model.ErrCodeNotFound:
		return http.StatusNotFound
	case model.ErrCodeMismatch:
		return http.StatusUnprocessableEntity
	case model.ErrCodeConflict:
		return http.StatusConflict
	case model.ErrCodePersistenceFailure:
		return http.StatusServiceUnavailable
	case model.ErrCodeUnauthorised:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

// decodeJSON reads a single JSON document from the body into dst and runs
// struct validation on it.
func decodeJSON(r *http.Request, dst interface{}) error {
	if err := decodeBody(r, dst); err != nil {
		return err
	}
	return validateStruct(dst)
}

// decodeBody reads a single JSON document from the body into dst.
func decodeBody(r *http.Request, dst interface{}) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		return model.NewDomainError(model.ErrCodeInvalidJSON, fmt.Sprintf("invalid request body: %v", err))
	}
	if dec.More() {
		return model.NewDomainError(model.ErrCodeInvalidJSON, "request body must contain a single JSON object")
	}
	return nil
}

func validateStruct(v interface{}) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		fe := fieldErrs[0]
		field, _, _ := strings.Cut(fe.Field(), "[")
		return model.NewValidationError(field, validationMessage(fe))
	}
	return model.NewValidationError("", err.Error())
}

func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "gt":
		return fmt.Sprintf("must be greater than %s", fe.Param())
	default:
		return fmt.Sprintf("failed %s validation", fe.Tag())
	}
}
