// Package search indexes generated documents in Meilisearch and queries them,
// falling back to Postgres full-text search.
package search

import (
	"context"
	"time"

	"exchangedocs/internal/generate"
)

// Result is a single search hit returned to the caller.
type Result struct {
	ID           string    `json:"id"`
	TemplateID   string    `json:"templateId"`
	TemplateName string    `json:"templateName"`
	CaseID       string    `json:"caseId"`
	DocumentRef  string    `json:"documentRef"`
	Path         string    `json:"path"`
	Snippet      string    `json:"snippet"`
	CreatedAt    time.Time `json:"createdAt"`
}

// Query describes a search request. An empty Text with a CaseID lists that
// case's documents.
type Query struct {
	Text       string
	CaseID     string
	TemplateID string
	Limit      int
	Offset     int
}

// Response is the envelope returned by the search endpoint.
type Response struct {
	Results []Result `json:"results"`
	Total   int      `json:"total"`
	Query   string   `json:"query"`
}

// Searcher can execute a full-text search.
type Searcher interface {
	Search(ctx context.Context, q Query) ([]Result, int, error)
	Healthy() bool
}

// Indexer can push generated documents into a search index.
type Indexer interface {
	IndexGenerated(rec Record) error
	IndexAll(recs []Record) error
	DeleteGenerated(id string) error
}

// Loader reads every indexable record from the system of record.
type Loader interface {
	LoadAllRecords(ctx context.Context) ([]Record, error)
}

// Record is the data we index for a generated document. CreatedAt is unix
// seconds so the index can sort on it.
type Record struct {
	ID           string `json:"id" db:"id"`
	TemplateID   string `json:"templateId" db:"template_id"`
	TemplateName string `json:"templateName" db:"template_name"`
	CaseID       string `json:"caseId" db:"case_id"`
	DocumentRef  string `json:"documentRef" db:"document_ref"`
	Path         string `json:"path" db:"path"`
	ContentType  string `json:"contentType" db:"content_type"`
	WarningCount int    `json:"warningCount" db:"warning_count"`
	CreatedAt    int64  `json:"createdAt" db:"created_at"`
}

// RecordFromResult builds the index record for a finished generation.
func RecordFromResult(r *generate.Result) Record {
	return Record{
		ID:           r.ID,
		TemplateID:   r.TemplateID,
		TemplateName: r.TemplateName,
		CaseID:       r.CaseID,
		DocumentRef:  r.DocumentRef,
		Path:         r.Path,
		ContentType:  r.ContentType,
		WarningCount: len(r.Warnings),
		CreatedAt:    r.CreatedAt.Unix(),
	}
}
