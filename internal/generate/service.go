package generate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"strings"
	"time"

	"exchangedocs/internal/archive"
	"exchangedocs/internal/placeholder"
	"exchangedocs/internal/records"
	"exchangedocs/internal/resolve"
	"exchangedocs/internal/rewrite"
	"exchangedocs/internal/util"
)

const (
	contentTypeText = "text/plain; charset=utf-8"
	contentTypePDF  = "application/pdf"
	contentTypeZip  = "application/zip"
)

var archiveContentTypes = map[string]string{
	".docx": "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	".xlsx": "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
	".pptx": "application/vnd.openxmlformats-officedocument.presentationml.presentation",
	".odt":  "application/vnd.oasis.opendocument.text",
}

// Orchestrator composes the generation pipeline. It holds no per-request
// state and is safe for concurrent use.
type Orchestrator struct {
	templates    TemplateSource
	records      RecordLoader
	objects      ObjectStore
	requirements RequirementSource
	resolver     *resolve.Resolver
	logger       *slog.Logger
	now          func() time.Time
	newID        func() string
	outputPrefix string
}

type Option func(*Orchestrator)

func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) { o.logger = logger }
}

func WithIDGenerator(newID func() string) Option {
	return func(o *Orchestrator) { o.newID = newID }
}

// WithOutputPrefix sets the object key prefix for generated documents.
func WithOutputPrefix(prefix string) Option {
	return func(o *Orchestrator) { o.outputPrefix = strings.Trim(prefix, "/") }
}

// WithRequirements sets where required fields come from. Without it no field
// is required.
func WithRequirements(source RequirementSource) Option {
	return func(o *Orchestrator) { o.requirements = source }
}

func New(templates TemplateSource, loader RecordLoader, objects ObjectStore, resolver *resolve.Resolver, opts ...Option) *Orchestrator {
	if resolver == nil {
		resolver = resolve.New()
	}
	o := &Orchestrator{
		templates:    templates,
		records:      loader,
		objects:      objects,
		resolver:     resolver,
		logger:       util.Logger(),
		now:          time.Now,
		newID:        func() string { return util.NewID("gen") },
		outputPrefix: "generated",
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Generate fills the template for one case and persists the output. Failures
// are returned as *Error.
func (o *Orchestrator) Generate(ctx context.Context, req Request) (*Result, error) {
	fail := func(kind Kind, step string, err error) error {
		genErr := &Error{Kind: kind, Step: step, TemplateID: req.TemplateID, CaseID: req.CaseID, Err: err}
		if kind == KindUnexpected {
			o.logger.Error("generation failed",
				slog.String("step", step),
				slog.String("template_id", req.TemplateID),
				slog.String("case_id", req.CaseID),
				slog.String("error", err.Error()),
			)
		}
		return genErr
	}

	tpl, content, err := o.load(ctx, req.TemplateID)
	if err != nil {
		var genErr *Error
		if errors.As(err, &genErr) {
			genErr.CaseID = req.CaseID
			return nil, fail(genErr.Kind, genErr.Step, genErr.Err)
		}
		return nil, fail(KindUnexpected, StepLoadTemplate, err)
	}

	policy, err := o.policy(ctx, req.TemplateID)
	if err != nil {
		return nil, fail(KindUnexpected, StepLoadRequirements, err)
	}

	kind := archive.Sniff(content)
	tokens, err := scan(kind, content)
	if err != nil {
		return nil, fail(KindArchiveCorrupt, StepScan, err)
	}

	graph, err := o.records.Aggregate(ctx, req.CaseID)
	if err != nil {
		if errors.Is(err, records.ErrCaseNotFound) {
			return nil, fail(KindCaseNotFound, StepAggregate, err)
		}
		return nil, fail(KindUnexpected, StepAggregate, err)
	}
	graph.Overrides = mergeOverrides(graph.Overrides, req.Overrides)

	resolutions, warnings, err := o.resolver.Resolve(tokens, graph, policy)
	if err != nil {
		var missing *resolve.MissingRequiredFieldError
		if errors.As(err, &missing) {
			genErr := fail(KindMissingRequiredField, StepResolve, err).(*Error)
			genErr.Missing = missing.Tokens
			return nil, genErr
		}
		return nil, fail(KindUnexpected, StepResolve, err)
	}

	output, replacements, err := render(kind, content, resolutions)
	if err != nil {
		if errors.Is(err, archive.ErrCorrupt) {
			return nil, fail(KindArchiveCorrupt, StepRewrite, err)
		}
		return nil, fail(KindUnexpected, StepRewrite, err)
	}

	createdAt := o.now().UTC()
	ext := outputExt(kind, tpl.ObjectPath)
	objectPath := o.outputPath(req.CaseID, tpl, createdAt, ext)
	contentType := contentTypeFor(kind, ext)
	ref, err := o.objects.Upload(ctx, objectPath, output, contentType)
	if err != nil {
		return nil, fail(KindStorageFailure, StepPersist, err)
	}

	result := &Result{
		ID:            o.newID(),
		TemplateID:    req.TemplateID,
		TemplateName:  tpl.Name,
		CaseID:        req.CaseID,
		DocumentRef:   ref,
		Path:          objectPath,
		ContentType:   contentType,
		Data:          output,
		ResolvedCount: resolutions.Resolved(),
		Replacements:  replacements,
		Resolutions:   resolutions,
		Warnings:      warnings,
		CreatedAt:     createdAt,
	}
	if result.Warnings == nil {
		result.Warnings = []resolve.Warning{}
	}
	o.logger.Info("document generated",
		slog.String("id", result.ID),
		slog.String("template_id", req.TemplateID),
		slog.String("case_id", req.CaseID),
		slog.String("path", objectPath),
		slog.Int("tokens", tokens.Len()),
		slog.Int("replacements", replacements),
		slog.Int("warnings", len(result.Warnings)),
	)
	return result, nil
}

// Preview loads and scans a template without touching any case data.
func (o *Orchestrator) Preview(ctx context.Context, templateID string) (placeholder.Set, archive.Kind, error) {
	_, content, err := o.load(ctx, templateID)
	if err != nil {
		return placeholder.Set{}, "", err
	}
	kind := archive.Sniff(content)
	tokens, err := scan(kind, content)
	if err != nil {
		return tokens, kind, &Error{Kind: KindArchiveCorrupt, Step: StepScan, TemplateID: templateID, Err: err}
	}
	return tokens, kind, nil
}

func (o *Orchestrator) load(ctx context.Context, templateID string) (Template, []byte, error) {
	tpl, err := o.templates.GetTemplate(ctx, templateID)
	if err != nil {
		if errors.Is(err, ErrTemplateNotFound) {
			return Template{}, nil, &Error{Kind: KindTemplateNotFound, Step: StepLoadTemplate, TemplateID: templateID, Err: err}
		}
		return Template{}, nil, &Error{Kind: KindUnexpected, Step: StepLoadTemplate, TemplateID: templateID, Err: err}
	}
	if len(tpl.Content) > 0 || tpl.ObjectPath == "" {
		return tpl, tpl.Content, nil
	}
	content, err := o.objects.Download(ctx, tpl.ObjectPath)
	if err != nil {
		return Template{}, nil, &Error{Kind: KindStorageFailure, Step: StepLoadTemplate, TemplateID: templateID, Err: fmt.Errorf("download %s: %w", tpl.ObjectPath, err)}
	}
	return tpl, content, nil
}

func (o *Orchestrator) policy(ctx context.Context, templateID string) (resolve.Policy, error) {
	if o.requirements == nil {
		return resolve.Policy{}, nil
	}
	return o.requirements.Requirements(ctx, templateID)
}

func (o *Orchestrator) outputPath(caseID string, tpl Template, at time.Time, ext string) string {
	name := tpl.Name
	if name == "" {
		name = tpl.ID
	}
	file := fmt.Sprintf("%s-%s%s", sanitizeFilename(name), at.Format("20060102T150405.000000000Z"), ext)
	return path.Join(o.outputPrefix, sanitizeFilename(caseID), file)
}

func scan(kind archive.Kind, content []byte) (placeholder.Set, error) {
	switch kind {
	case archive.KindArchive:
		return placeholder.Scan(content)
	case archive.KindText:
		return placeholder.ScanText(string(content)), nil
	default:
		return placeholder.NewSet(), nil
	}
}

func render(kind archive.Kind, content []byte, m resolve.Map) ([]byte, int, error) {
	switch kind {
	case archive.KindArchive:
		return rewrite.Archive(content, m)
	case archive.KindText:
		text, n := rewrite.Text(string(content), m)
		return []byte(text), n, nil
	default:
		return content, 0, nil
	}
}

// mergeOverrides layers request values over any already on the graph.
func mergeOverrides(base, extra map[string]string) map[string]string {
	if len(extra) == 0 {
		return base
	}
	merged := make(map[string]string, len(base)+len(extra))
	for key, value := range base {
		merged[key] = value
	}
	for key, value := range extra {
		merged[key] = value
	}
	return merged
}

func outputExt(kind archive.Kind, objectPath string) string {
	switch kind {
	case archive.KindPDF:
		return ".pdf"
	case archive.KindText:
		return ".txt"
	}
	if ext := strings.ToLower(path.Ext(objectPath)); ext != "" {
		return ext
	}
	return ".docx"
}

func contentTypeFor(kind archive.Kind, ext string) string {
	switch kind {
	case archive.KindPDF:
		return contentTypePDF
	case archive.KindText:
		return contentTypeText
	}
	if ct, ok := archiveContentTypes[ext]; ok {
		return ct
	}
	return contentTypeZip
}

// sanitizeFilename keeps ASCII letters, digits, '-' and '_', turns spaces
// into hyphens and caps the result at 50 bytes.
func sanitizeFilename(title string) string {
	var b strings.Builder
	for _, r := range title {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == ' ':
			b.WriteByte('-')
		case r == '-', r == '_':
			b.WriteRune(r)
		}
	}
	result := b.String()
	if len(result) > 50 {
		result = result[:50]
	}
	if result == "" {
		result = "document"
	}
	return result
}
