// Package generate runs the template generation pipeline: load, scan,
// aggregate, resolve, rewrite and persist.
package generate

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"exchangedocs/internal/records"
	"exchangedocs/internal/resolve"
)

// Template is a catalog entry. Content holds inline text or an already loaded
// payload; otherwise ObjectPath names the payload in the object store.
type Template struct {
	ID         string
	Name       string
	Content    []byte
	ObjectPath string
}

// TemplateSource looks templates up by id. Unknown ids yield ErrTemplateNotFound.
type TemplateSource interface {
	GetTemplate(ctx context.Context, templateID string) (Template, error)
}

// RecordLoader assembles the record graph for a case.
type RecordLoader interface {
	Aggregate(ctx context.Context, caseID string) (*records.Graph, error)
}

// ObjectStore downloads templates and uploads generated documents.
type ObjectStore interface {
	Download(ctx context.Context, path string) ([]byte, error)
	Upload(ctx context.Context, path string, data []byte, contentType string) (string, error)
}

// RequirementSource returns a template's required fields and fallbacks.
type RequirementSource interface {
	Requirements(ctx context.Context, templateID string) (resolve.Policy, error)
}

type Request struct {
	TemplateID string            `json:"templateId"`
	CaseID     string            `json:"caseId"`
	Overrides  map[string]string `json:"overrides,omitempty"`
}

type Result struct {
	ID            string            `json:"id"`
	TemplateID    string            `json:"templateId"`
	TemplateName  string            `json:"templateName"`
	CaseID        string            `json:"caseId"`
	DocumentRef   string            `json:"documentRef"`
	Path          string            `json:"path"`
	ContentType   string            `json:"contentType"`
	Data          []byte            `json:"-"`
	ResolvedCount int               `json:"resolvedCount"`
	Replacements  int               `json:"replacements"`
	Resolutions   resolve.Map       `json:"resolutions"`
	Warnings      []resolve.Warning `json:"warnings"`
	CreatedAt     time.Time         `json:"createdAt"`
}

// Kind classifies a generation failure.
type Kind string

const (
	KindTemplateNotFound     Kind = "TEMPLATE_NOT_FOUND"
	KindCaseNotFound         Kind = "CASE_NOT_FOUND"
	KindArchiveCorrupt       Kind = "ARCHIVE_CORRUPT"
	KindMissingRequiredField Kind = "MISSING_REQUIRED_FIELD"
	KindStorageFailure       Kind = "STORAGE_FAILURE"
	KindUnexpected           Kind = "UNEXPECTED_FAILURE"
)

// Pipeline step names carried on errors and logs.
const (
	StepLoadTemplate     = "load_template"
	StepLoadRequirements = "load_requirements"
	StepScan             = "scan"
	StepAggregate        = "aggregate"
	StepResolve          = "resolve"
	StepRewrite          = "rewrite"
	StepPersist          = "persist"
)

var (
	// ErrTemplateNotFound is returned by a TemplateSource for unknown ids.
	ErrTemplateNotFound = errors.New("template not found")
)

// Error is the single failure type returned by Generate.
type Error struct {
	Kind       Kind
	Step       string
	TemplateID string
	CaseID     string
	Missing    []string
	Err        error
}

func (e *Error) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "generate %s: %s failed (template=%s case=%s)", strings.ToLower(string(e.Kind)), e.Step, e.TemplateID, e.CaseID)
	if len(e.Missing) > 0 {
		fmt.Fprintf(&b, " missing=[%s]", strings.Join(e.Missing, ", "))
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf returns the kind of a generation error, or KindUnexpected.
func KindOf(err error) Kind {
	var genErr *Error
	if errors.As(err, &genErr) {
		return genErr.Kind
	}
	return KindUnexpected
}
