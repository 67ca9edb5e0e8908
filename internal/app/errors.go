package app

import (
	"errors"
	"fmt"
	"net/http"

	"exchangedocs/internal/generate"
	"exchangedocs/internal/manifest"
)

type DomainError struct {
	Status  int
	Code    string
	Message string
	Details any
}

func (e *DomainError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func domainError(status int, code, message string, details any) *DomainError {
	return &DomainError{
		Status:  status,
		Code:    code,
		Message: message,
		Details: details,
	}
}

// generationError maps a pipeline failure onto the HTTP error envelope.
func generationError(err error) *DomainError {
	var genErr *generate.Error
	if !errors.As(err, &genErr) {
		return domainError(http.StatusInternalServerError, string(generate.KindUnexpected), "Document generation failed", nil)
	}
	code := string(genErr.Kind)
	switch genErr.Kind {
	case generate.KindTemplateNotFound:
		return domainError(http.StatusNotFound, code, fmt.Sprintf("Template %s not found", genErr.TemplateID), nil)
	case generate.KindCaseNotFound:
		return domainError(http.StatusNotFound, code, fmt.Sprintf("Case %s not found", genErr.CaseID), nil)
	case generate.KindArchiveCorrupt:
		return domainError(http.StatusUnprocessableEntity, code, "Template archive is corrupt", map[string]any{"step": genErr.Step})
	case generate.KindMissingRequiredField:
		return domainError(http.StatusUnprocessableEntity, code, "Required fields could not be resolved", map[string]any{"missing": genErr.Missing})
	case generate.KindStorageFailure:
		return domainError(http.StatusBadGateway, code, "Object storage request failed", map[string]any{"step": genErr.Step})
	default:
		return domainError(http.StatusInternalServerError, code, "Document generation failed", map[string]any{"step": genErr.Step})
	}
}

func mapError(err error) (status int, code, message string, details any) {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Status, domainErr.Code, domainErr.Message, domainErr.Details
	}
	var genErr *generate.Error
	if errors.As(err, &genErr) {
		mapped := generationError(err)
		return mapped.Status, mapped.Code, mapped.Message, mapped.Details
	}
	if errors.Is(err, manifest.ErrNotFound) {
		return http.StatusNotFound, "NOT_FOUND", "Not found", nil
	}
	return http.StatusInternalServerError, "SERVER_ERROR", "Server error", nil
}
