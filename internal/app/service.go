package app

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"exchangedocs/internal/archive"
	"exchangedocs/internal/generate"
	"exchangedocs/internal/manifest"
	"exchangedocs/internal/placeholder"
	"exchangedocs/internal/search"
	"exchangedocs/internal/store"
	"exchangedocs/internal/util"
)

// Generator runs the generation pipeline.
type Generator interface {
	Generate(ctx context.Context, req generate.Request) (*generate.Result, error)
	Preview(ctx context.Context, templateID string) (placeholder.Set, archive.Kind, error)
}

// ManifestStore keeps per-generation manifests.
type ManifestStore interface {
	Save(ctx context.Context, m manifest.Manifest) error
	Get(ctx context.Context, id string) (manifest.Manifest, error)
}

// DocumentLog records generated documents durably.
type DocumentLog interface {
	RecordGeneratedDocument(ctx context.Context, result *generate.Result) (store.GeneratedDocument, error)
	ListGeneratedDocuments(ctx context.Context, caseID string, limit int) ([]store.GeneratedDocument, error)
}

// SearchIndex finds generated documents.
type SearchIndex interface {
	Search(ctx context.Context, q search.Query) search.Response
	IndexGenerated(rec search.Record)
}

type Pinger interface {
	Ping(ctx context.Context) error
}

// Check is a named readiness check.
type Check struct {
	Name   string
	Pinger Pinger
}

// Deps wires the service. Only Generator is required.
type Deps struct {
	Generator Generator
	Manifests ManifestStore
	Documents DocumentLog
	Search    SearchIndex
	Checks    []Check
	Logger    *slog.Logger
}

type Service struct {
	generator Generator
	manifests ManifestStore
	documents DocumentLog
	search    SearchIndex
	checks    []Check
	logger    *slog.Logger
}

func NewService(deps Deps) *Service {
	logger := deps.Logger
	if logger == nil {
		logger = util.Logger()
	}
	return &Service{
		generator: deps.Generator,
		manifests: deps.Manifests,
		documents: deps.Documents,
		search:    deps.Search,
		checks:    deps.Checks,
		logger:    logger,
	}
}

type GenerateInput struct {
	TemplateID string            `json:"templateId"`
	CaseID     string            `json:"caseId"`
	Overrides  map[string]string `json:"overrides"`
}

// GenerateDocument runs one generation and then records it. Recording is best
// effort: the document is already stored, so those failures are only logged.
func (s *Service) GenerateDocument(ctx context.Context, input GenerateInput) (*generate.Result, error) {
	input.TemplateID = strings.TrimSpace(input.TemplateID)
	input.CaseID = strings.TrimSpace(input.CaseID)
	var missing []string
	if input.TemplateID == "" {
		missing = append(missing, "templateId")
	}
	if input.CaseID == "" {
		missing = append(missing, "caseId")
	}
	if len(missing) > 0 {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", strings.Join(missing, " and ")+" required", map[string]any{"fields": missing})
	}

	result, err := s.generator.Generate(ctx, generate.Request{
		TemplateID: input.TemplateID,
		CaseID:     input.CaseID,
		Overrides:  input.Overrides,
	})
	if err != nil {
		return nil, generationError(err)
	}

	if s.manifests != nil {
		if err := s.manifests.Save(ctx, manifest.FromResult(result)); err != nil {
			s.logger.Warn("save generation manifest", slog.String("id", result.ID), slog.String("error", err.Error()))
		}
	}
	if s.documents != nil {
		if _, err := s.documents.RecordGeneratedDocument(ctx, result); err != nil {
			s.logger.Warn("record generated document", slog.String("id", result.ID), slog.String("error", err.Error()))
		}
	}
	if s.search != nil {
		s.search.IndexGenerated(search.RecordFromResult(result))
	}
	return result, nil
}

func (s *Service) Generation(ctx context.Context, id string) (manifest.Manifest, error) {
	if s.manifests == nil {
		return manifest.Manifest{}, domainError(http.StatusServiceUnavailable, "MANIFESTS_DISABLED", "Generation manifests are not configured", nil)
	}
	m, err := s.manifests.Get(ctx, id)
	if errors.Is(err, manifest.ErrNotFound) {
		return manifest.Manifest{}, domainError(http.StatusNotFound, "NOT_FOUND", "Generation not found or expired", nil)
	}
	if err != nil {
		return manifest.Manifest{}, err
	}
	return m, nil
}

type TokenPreview struct {
	TemplateID string              `json:"templateId"`
	Kind       archive.Kind        `json:"kind"`
	Count      int                 `json:"count"`
	Tokens     []placeholder.Token `json:"tokens"`
}

// TemplateTokens lists the placeholders of a template without touching case data.
func (s *Service) TemplateTokens(ctx context.Context, templateID string) (TokenPreview, error) {
	tokens, kind, err := s.generator.Preview(ctx, templateID)
	if err != nil {
		return TokenPreview{}, generationError(err)
	}
	list := tokens.Tokens()
	if list == nil {
		list = []placeholder.Token{}
	}
	return TokenPreview{TemplateID: templateID, Kind: kind, Count: len(list), Tokens: list}, nil
}

func (s *Service) SearchDocuments(ctx context.Context, q search.Query) search.Response {
	if s.search == nil {
		return search.Response{Results: []search.Result{}, Query: q.Text}
	}
	return s.search.Search(ctx, q)
}

func (s *Service) CaseDocuments(ctx context.Context, caseID string, limit int) ([]store.GeneratedDocument, error) {
	if s.documents == nil {
		return nil, domainError(http.StatusServiceUnavailable, "DOCUMENT_LOG_DISABLED", "Document log is not configured", nil)
	}
	return s.documents.ListGeneratedDocuments(ctx, caseID, limit)
}

// Ready runs every readiness check and reports each outcome.
func (s *Service) Ready(ctx context.Context) (bool, map[string]any) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	ok := true
	checks := make(map[string]any, len(s.checks))
	for _, check := range s.checks {
		if err := check.Pinger.Ping(ctx); err != nil {
			ok = false
			checks[check.Name] = map[string]any{"status": "error", "error": err.Error()}
			continue
		}
		checks[check.Name] = map[string]any{"status": "ok"}
	}
	return ok, checks
}
