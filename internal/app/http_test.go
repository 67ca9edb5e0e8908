package app

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"exchangedocs/internal/archive"
	"exchangedocs/internal/generate"
	"exchangedocs/internal/manifest"
	"exchangedocs/internal/placeholder"
	"exchangedocs/internal/resolve"
	"exchangedocs/internal/search"
	"exchangedocs/internal/store"
)

type fakeGenerator struct {
	generateFn func(context.Context, generate.Request) (*generate.Result, error)
	previewFn  func(context.Context, string) (placeholder.Set, archive.Kind, error)
}

func (f *fakeGenerator) Generate(ctx context.Context, req generate.Request) (*generate.Result, error) {
	if f.generateFn != nil {
		return f.generateFn(ctx, req)
	}
	return sampleResult(req), nil
}

func (f *fakeGenerator) Preview(ctx context.Context, templateID string) (placeholder.Set, archive.Kind, error) {
	if f.previewFn != nil {
		return f.previewFn(ctx, templateID)
	}
	return placeholder.NewSet(), archive.KindText, nil
}

type fakeManifests struct {
	saved  []manifest.Manifest
	saveFn func(context.Context, manifest.Manifest) error
	getFn  func(context.Context, string) (manifest.Manifest, error)
}

func (f *fakeManifests) Save(ctx context.Context, m manifest.Manifest) error {
	f.saved = append(f.saved, m)
	if f.saveFn != nil {
		return f.saveFn(ctx, m)
	}
	return nil
}

func (f *fakeManifests) Get(ctx context.Context, id string) (manifest.Manifest, error) {
	if f.getFn != nil {
		return f.getFn(ctx, id)
	}
	return manifest.Manifest{}, manifest.ErrNotFound
}

type fakeDocuments struct {
	recorded []string
	recordFn func(context.Context, *generate.Result) (store.GeneratedDocument, error)
	listFn   func(context.Context, string, int) ([]store.GeneratedDocument, error)
}

func (f *fakeDocuments) RecordGeneratedDocument(ctx context.Context, result *generate.Result) (store.GeneratedDocument, error) {
	f.recorded = append(f.recorded, result.ID)
	if f.recordFn != nil {
		return f.recordFn(ctx, result)
	}
	return store.GeneratedDocument{ID: result.ID}, nil
}

func (f *fakeDocuments) ListGeneratedDocuments(ctx context.Context, caseID string, limit int) ([]store.GeneratedDocument, error) {
	if f.listFn != nil {
		return f.listFn(ctx, caseID, limit)
	}
	return []store.GeneratedDocument{}, nil
}

type fakeSearch struct {
	queries []search.Query
	indexed []search.Record
}

func (f *fakeSearch) Search(_ context.Context, q search.Query) search.Response {
	f.queries = append(f.queries, q)
	return search.Response{Results: []search.Result{{ID: "gen_1", CaseID: q.CaseID}}, Total: 1, Query: q.Text}
}

func (f *fakeSearch) IndexGenerated(rec search.Record) {
	f.indexed = append(f.indexed, rec)
}

type fakePinger struct {
	err error
}

func (f fakePinger) Ping(context.Context) error { return f.err }

func sampleResult(req generate.Request) *generate.Result {
	return &generate.Result{
		ID:            "gen_1",
		TemplateID:    req.TemplateID,
		TemplateName:  "Assignment Agreement",
		CaseID:        req.CaseID,
		DocumentRef:   "s3://documents/generated/" + req.CaseID + "/a.docx",
		Path:          "generated/" + req.CaseID + "/a.docx",
		ContentType:   "application/zip",
		ResolvedCount: 1,
		Replacements:  2,
		Resolutions: resolve.Map{
			"client.name":  {Text: "Jane Doe", Origin: resolve.OriginExact},
			"client.phone": {Text: "[client.phone]", Origin: resolve.OriginUnresolved},
		},
		Warnings:  []resolve.Warning{{Token: "client.phone", Origin: resolve.OriginUnresolved, Detail: "no value"}},
		CreatedAt: time.Date(2026, 3, 9, 15, 4, 5, 0, time.UTC),
	}
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type testDeps struct {
	gen       *fakeGenerator
	manifests *fakeManifests
	documents *fakeDocuments
	search    *fakeSearch
}

func newTestServer(t *testing.T, checks ...Check) (*HTTPServer, *testDeps) {
	t.Helper()
	deps := &testDeps{
		gen:       &fakeGenerator{},
		manifests: &fakeManifests{},
		documents: &fakeDocuments{},
		search:    &fakeSearch{},
	}
	svc := NewService(Deps{
		Generator: deps.gen,
		Manifests: deps.manifests,
		Documents: deps.documents,
		Search:    deps.search,
		Checks:    checks,
		Logger:    quietLogger(),
	})
	return NewHTTPServer(svc, "*"), deps
}

func do(t *testing.T, server *HTTPServer, method, target, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	rr := httptest.NewRecorder()
	server.Handler().ServeHTTP(rr, req)

	var payload map[string]any
	if rr.Body.Len() > 0 {
		if err := json.Unmarshal(rr.Body.Bytes(), &payload); err != nil {
			t.Fatalf("decode response %q: %v", rr.Body.String(), err)
		}
	}
	return rr, payload
}

func TestHealthEndpoint(t *testing.T) {
	server, _ := newTestServer(t)
	rr, payload := do(t, server, http.MethodGet, "/api/health", "")
	if rr.Code != http.StatusOK || payload["ok"] != true {
		t.Fatalf("health = %d %v", rr.Code, payload)
	}
	if rr.Header().Get("X-Request-ID") == "" {
		t.Error("expected X-Request-ID header")
	}
}

func TestReadyEndpoint(t *testing.T) {
	tests := []struct {
		name   string
		checks []Check
		status int
		ready  bool
	}{
		{name: "all ok", checks: []Check{{Name: "database", Pinger: fakePinger{}}, {Name: "redis", Pinger: fakePinger{}}}, status: http.StatusOK, ready: true},
		{name: "redis down", checks: []Check{{Name: "database", Pinger: fakePinger{}}, {Name: "redis", Pinger: fakePinger{err: errors.New("connection refused")}}}, status: http.StatusServiceUnavailable},
		{name: "no checks", status: http.StatusOK, ready: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server, _ := newTestServer(t, tt.checks...)
			rr, payload := do(t, server, http.MethodGet, "/api/ready", "")
			if rr.Code != tt.status || payload["ok"] != tt.ready {
				t.Fatalf("ready = %d %v", rr.Code, payload)
			}
			checks, _ := payload["checks"].(map[string]any)
			if len(checks) != len(tt.checks) {
				t.Fatalf("checks = %v", checks)
			}
			if !tt.ready {
				redis, _ := checks["redis"].(map[string]any)
				if redis["status"] != "error" || redis["error"] != "connection refused" {
					t.Fatalf("redis check = %v", redis)
				}
			}
		})
	}
}

func TestGenerateDocument(t *testing.T) {
	server, deps := newTestServer(t)
	var got generate.Request
	deps.gen.generateFn = func(_ context.Context, req generate.Request) (*generate.Result, error) {
		got = req
		return sampleResult(req), nil
	}

	rr, payload := do(t, server, http.MethodPost, "/api/generate-document",
		`{"templateId":" assignment ","caseId":"case-1","overrides":{"Client.Name":"Override"}}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d body = %s", rr.Code, rr.Body.String())
	}
	if got.TemplateID != "assignment" || got.CaseID != "case-1" || got.Overrides["Client.Name"] != "Override" {
		t.Fatalf("request = %+v", got)
	}
	if payload["documentRef"] != "s3://documents/generated/case-1/a.docx" {
		t.Fatalf("documentRef = %v", payload["documentRef"])
	}
	warnings, _ := payload["warnings"].([]any)
	if len(warnings) != 1 {
		t.Fatalf("warnings = %v", payload["warnings"])
	}
	if _, leaked := payload["Data"]; leaked {
		t.Fatal("output bytes must not be serialized")
	}

	if len(deps.manifests.saved) != 1 || deps.manifests.saved[0].ID != "gen_1" {
		t.Fatalf("manifests = %+v", deps.manifests.saved)
	}
	if len(deps.documents.recorded) != 1 {
		t.Fatalf("documents = %v", deps.documents.recorded)
	}
	if len(deps.search.indexed) != 1 || deps.search.indexed[0].CaseID != "case-1" {
		t.Fatalf("indexed = %+v", deps.search.indexed)
	}
}

func TestGenerateDocumentRecordingFailuresAreNotFatal(t *testing.T) {
	server, deps := newTestServer(t)
	deps.manifests.saveFn = func(context.Context, manifest.Manifest) error { return errors.New("redis down") }
	deps.documents.recordFn = func(context.Context, *generate.Result) (store.GeneratedDocument, error) {
		return store.GeneratedDocument{}, errors.New("pg down")
	}
	rr, _ := do(t, server, http.MethodPost, "/api/generate-document", `{"templateId":"t","caseId":"c"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
}

func TestGenerateDocumentValidation(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		status int
		code   string
	}{
		{name: "missing both", body: `{}`, status: http.StatusUnprocessableEntity, code: "VALIDATION_ERROR"},
		{name: "blank case", body: `{"templateId":"t","caseId":"  "}`, status: http.StatusUnprocessableEntity, code: "VALIDATION_ERROR"},
		{name: "malformed", body: `{"templateId":`, status: http.StatusBadRequest, code: "INVALID_BODY"},
		{name: "unknown field", body: `{"templateId":"t","caseId":"c","extra":1}`, status: http.StatusBadRequest, code: "INVALID_BODY"},
		{name: "empty body", body: "", status: http.StatusBadRequest, code: "INVALID_BODY"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server, deps := newTestServer(t)
			deps.gen.generateFn = func(context.Context, generate.Request) (*generate.Result, error) {
				t.Fatal("generator must not run")
				return nil, nil
			}
			rr, payload := do(t, server, http.MethodPost, "/api/generate-document", tt.body)
			if rr.Code != tt.status || payload["code"] != tt.code {
				t.Fatalf("response = %d %v", rr.Code, payload)
			}
		})
	}
}

func TestGenerateDocumentErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{name: "template", err: &generate.Error{Kind: generate.KindTemplateNotFound, TemplateID: "t"}, status: http.StatusNotFound, code: "TEMPLATE_NOT_FOUND"},
		{name: "case", err: &generate.Error{Kind: generate.KindCaseNotFound, CaseID: "c"}, status: http.StatusNotFound, code: "CASE_NOT_FOUND"},
		{name: "corrupt", err: &generate.Error{Kind: generate.KindArchiveCorrupt, Step: generate.StepScan}, status: http.StatusUnprocessableEntity, code: "ARCHIVE_CORRUPT"},
		{name: "missing", err: &generate.Error{Kind: generate.KindMissingRequiredField, Missing: []string{"client.name", "exchange.number"}}, status: http.StatusUnprocessableEntity, code: "MISSING_REQUIRED_FIELD"},
		{name: "storage", err: &generate.Error{Kind: generate.KindStorageFailure, Step: generate.StepPersist}, status: http.StatusBadGateway, code: "STORAGE_FAILURE"},
		{name: "unexpected", err: &generate.Error{Kind: generate.KindUnexpected, Step: generate.StepAggregate}, status: http.StatusInternalServerError, code: "UNEXPECTED_FAILURE"},
		{name: "untyped", err: errors.New("boom"), status: http.StatusInternalServerError, code: "UNEXPECTED_FAILURE"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server, deps := newTestServer(t)
			deps.gen.generateFn = func(context.Context, generate.Request) (*generate.Result, error) {
				return nil, tt.err
			}
			rr, payload := do(t, server, http.MethodPost, "/api/generate-document", `{"templateId":"t","caseId":"c"}`)
			if rr.Code != tt.status || payload["code"] != tt.code {
				t.Fatalf("response = %d %v", rr.Code, payload)
			}
			if tt.code == "MISSING_REQUIRED_FIELD" {
				details, _ := payload["details"].(map[string]any)
				missing, _ := details["missing"].([]any)
				if len(missing) != 2 || missing[0] != "client.name" || missing[1] != "exchange.number" {
					t.Fatalf("details = %v", payload["details"])
				}
			}
			if len(deps.manifests.saved) != 0 || len(deps.search.indexed) != 0 {
				t.Fatal("failed generations must not be recorded")
			}
		})
	}
}

func TestGenerationManifestEndpoint(t *testing.T) {
	server, deps := newTestServer(t)
	deps.manifests.getFn = func(_ context.Context, id string) (manifest.Manifest, error) {
		if id == "gen_1" {
			return manifest.FromResult(sampleResult(generate.Request{TemplateID: "t", CaseID: "case-1"})), nil
		}
		return manifest.Manifest{}, manifest.ErrNotFound
	}

	rr, payload := do(t, server, http.MethodGet, "/api/generations/gen_1", "")
	if rr.Code != http.StatusOK || payload["caseId"] != "case-1" || payload["replacements"] != float64(2) {
		t.Fatalf("manifest = %d %v", rr.Code, payload)
	}

	rr, payload = do(t, server, http.MethodGet, "/api/generations/gen_missing", "")
	if rr.Code != http.StatusNotFound || payload["code"] != "NOT_FOUND" {
		t.Fatalf("missing manifest = %d %v", rr.Code, payload)
	}
}

func TestGenerationManifestDisabled(t *testing.T) {
	server := NewHTTPServer(NewService(Deps{Generator: &fakeGenerator{}, Logger: quietLogger()}), "*")
	rr, payload := do(t, server, http.MethodGet, "/api/generations/gen_1", "")
	if rr.Code != http.StatusServiceUnavailable || payload["code"] != "MANIFESTS_DISABLED" {
		t.Fatalf("response = %d %v", rr.Code, payload)
	}
}

func TestTemplateTokensEndpoint(t *testing.T) {
	server, deps := newTestServer(t)
	deps.gen.previewFn = func(_ context.Context, id string) (placeholder.Set, archive.Kind, error) {
		if id != "assignment" {
			return placeholder.Set{}, "", &generate.Error{Kind: generate.KindTemplateNotFound, TemplateID: id}
		}
		return placeholder.ScanText("Dear #Client.Name#, re {{Exchange.Number}} and Client.Name"), archive.KindText, nil
	}

	rr, payload := do(t, server, http.MethodGet, "/api/templates/assignment/tokens", "")
	if rr.Code != http.StatusOK || payload["count"] != float64(2) || payload["kind"] != "text" {
		t.Fatalf("tokens = %d %v", rr.Code, payload)
	}
	tokens, _ := payload["tokens"].([]any)
	first, _ := tokens[0].(map[string]any)
	if first["key"] != "client.name" {
		t.Fatalf("first token = %v", first)
	}
	if syntaxes, _ := first["syntaxes"].([]any); len(syntaxes) != 2 {
		t.Fatalf("syntaxes = %v", first["syntaxes"])
	}

	rr, payload = do(t, server, http.MethodGet, "/api/templates/missing/tokens", "")
	if rr.Code != http.StatusNotFound || payload["code"] != "TEMPLATE_NOT_FOUND" {
		t.Fatalf("missing template = %d %v", rr.Code, payload)
	}
}

func TestSearchEndpoint(t *testing.T) {
	server, deps := newTestServer(t)

	rr, payload := do(t, server, http.MethodGet, "/api/documents/search?q=assignment&caseId=case-1&limit=500&offset=-1", "")
	if rr.Code != http.StatusOK || payload["total"] != float64(1) {
		t.Fatalf("search = %d %v", rr.Code, payload)
	}
	q := deps.search.queries[0]
	if q.Text != "assignment" || q.CaseID != "case-1" || q.Limit != 100 || q.Offset != 0 {
		t.Fatalf("query = %+v", q)
	}

	rr, payload = do(t, server, http.MethodGet, "/api/documents/search", "")
	if rr.Code != http.StatusUnprocessableEntity || payload["code"] != "VALIDATION_ERROR" {
		t.Fatalf("empty search = %d %v", rr.Code, payload)
	}
}

func TestCaseDocumentsEndpoint(t *testing.T) {
	server, deps := newTestServer(t)
	deps.documents.listFn = func(_ context.Context, caseID string, limit int) ([]store.GeneratedDocument, error) {
		if caseID != "case-1" || limit != 50 {
			t.Fatalf("list(%q, %d)", caseID, limit)
		}
		return []store.GeneratedDocument{{ID: "gen_1", CaseID: caseID}}, nil
	}
	rr, payload := do(t, server, http.MethodGet, "/api/cases/case-1/documents", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	if docs, _ := payload["documents"].([]any); len(docs) != 1 {
		t.Fatalf("documents = %v", payload)
	}
}

func TestCORSAndRouting(t *testing.T) {
	server, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/generate-document", nil)
	req.Header.Set("X-Request-ID", "req-123")
	rr := httptest.NewRecorder()
	server.Handler().ServeHTTP(rr, req)
	if rr.Code != http.StatusNoContent {
		t.Fatalf("preflight status = %d", rr.Code)
	}
	if rr.Header().Get("Access-Control-Allow-Origin") != "*" || rr.Header().Get("X-Request-ID") != "req-123" {
		t.Fatalf("headers = %v", rr.Header())
	}

	rr, payload := do(t, server, http.MethodGet, "/api/nope", "")
	if rr.Code != http.StatusNotFound || payload["code"] != "NOT_FOUND" {
		t.Fatalf("unknown route = %d %v", rr.Code, payload)
	}
	rr, payload = do(t, server, http.MethodDelete, "/api/health", "")
	if rr.Code != http.StatusMethodNotAllowed || payload["code"] != "METHOD_NOT_ALLOWED" {
		t.Fatalf("wrong method = %d %v", rr.Code, payload)
	}
}
