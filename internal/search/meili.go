package search

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	meili "github.com/meilisearch/meilisearch-go"
)

const idxGenerated = "exchangedocs_generated"

var errUnhealthy = errors.New("meilisearch unhealthy")

// Meili implements Searcher and Indexer via Meilisearch.
type Meili struct {
	client  meili.ServiceManager
	logger  *slog.Logger
	healthy atomic.Bool
	done    chan struct{}
}

// NewMeili creates a Meilisearch client and configures the index. An
// unreachable server leaves the client unhealthy until the health loop sees it.
func NewMeili(url, apiKey string, logger *slog.Logger) *Meili {
	m := &Meili{
		client: meili.New(url, meili.WithAPIKey(apiKey)),
		logger: logger,
		done:   make(chan struct{}),
	}

	if _, err := m.client.Health(); err != nil {
		logger.Warn("search: meilisearch unavailable", slog.String("url", url), slog.String("error", err.Error()))
		m.healthy.Store(false)
	} else {
		m.healthy.Store(true)
		m.configureIndex()
	}

	go m.healthLoop()
	return m
}

func (m *Meili) configureIndex() {
	if _, err := m.client.CreateIndex(&meili.IndexConfig{
		Uid:        idxGenerated,
		PrimaryKey: "id",
	}); err != nil {
		m.logger.Debug("search: create index (may already exist)", slog.String("index", idxGenerated), slog.String("error", err.Error()))
	}

	index := m.client.Index(idxGenerated)
	filterable := []interface{}{"caseId", "templateId", "contentType"}
	if _, err := index.UpdateFilterableAttributes(&filterable); err != nil {
		m.logger.Warn("search: update filterable attrs", slog.String("error", err.Error()))
	}
	searchable := []string{"templateName", "templateId", "caseId", "path"}
	if _, err := index.UpdateSearchableAttributes(&searchable); err != nil {
		m.logger.Warn("search: update searchable attrs", slog.String("error", err.Error()))
	}
	sortable := []string{"createdAt"}
	if _, err := index.UpdateSortableAttributes(&sortable); err != nil {
		m.logger.Warn("search: update sortable attrs", slog.String("error", err.Error()))
	}
}

func (m *Meili) healthLoop() {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-m.done:
			return
		case <-ticker.C:
			_, err := m.client.Health()
			wasHealthy := m.healthy.Load()
			m.healthy.Store(err == nil)
			if err == nil && !wasHealthy {
				m.logger.Info("search: meilisearch recovered, reconfiguring index")
				m.configureIndex()
			}
		}
	}
}

// Close stops the background health monitor.
func (m *Meili) Close() {
	close(m.done)
}

// Healthy reports whether Meilisearch is reachable.
func (m *Meili) Healthy() bool {
	return m.healthy.Load()
}

func (m *Meili) Search(_ context.Context, q Query) ([]Result, int, error) {
	if !m.healthy.Load() {
		return nil, 0, errUnhealthy
	}

	resp, err := m.client.MultiSearch(&meili.MultiSearchRequest{
		Queries: []*meili.SearchRequest{searchRequest(q)},
	})
	if err != nil {
		m.healthy.Store(false)
		return nil, 0, fmt.Errorf("meilisearch search: %w", err)
	}

	var results []Result
	total := 0
	for _, sr := range resp.Results {
		total += int(sr.EstimatedTotalHits)
		for _, hit := range sr.Hits {
			results = append(results, hitToResult(hit))
		}
	}
	return results, total, nil
}

func searchRequest(q Query) *meili.SearchRequest {
	limit := int64(q.Limit)
	if limit <= 0 {
		limit = 20
	}
	sr := &meili.SearchRequest{
		IndexUID:              idxGenerated,
		Query:                 q.Text,
		Limit:                 limit,
		Offset:                int64(max(q.Offset, 0)),
		AttributesToHighlight: []string{"templateName", "path"},
		HighlightPreTag:       "<mark>",
		HighlightPostTag:      "</mark>",
		ShowRankingScore:      true,
	}
	if strings.TrimSpace(q.Text) == "" {
		sr.Sort = []string{"createdAt:desc"}
	}

	var filters []string
	if q.CaseID != "" {
		filters = append(filters, fmt.Sprintf("caseId = %q", q.CaseID))
	}
	if q.TemplateID != "" {
		filters = append(filters, fmt.Sprintf("templateId = %q", q.TemplateID))
	}
	if len(filters) > 0 {
		sr.Filter = filters
	}
	return sr
}

func hitToResult(hit meili.Hit) Result {
	r := Result{
		ID:          decodeString(hit, "id"),
		TemplateID:  decodeString(hit, "templateId"),
		CaseID:      decodeString(hit, "caseId"),
		DocumentRef: decodeString(hit, "documentRef"),
		Path:        decodeString(hit, "path"),
	}
	r.TemplateName = decodeString(hit, "templateName")
	r.Snippet = firstNonBlank(decodeFormattedString(hit, "templateName"), decodeFormattedString(hit, "path"), r.TemplateName)
	if secs, ok := decodeInt64(hit, "createdAt"); ok {
		r.CreatedAt = time.Unix(secs, 0).UTC()
	}
	return r
}

func decodeString(hit meili.Hit, key string) string {
	raw, ok := hit[key]
	if !ok {
		return ""
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return ""
}

func decodeInt64(hit meili.Hit, key string) (int64, bool) {
	raw, ok := hit[key]
	if !ok {
		return 0, false
	}
	var n int64
	if err := json.Unmarshal(raw, &n); err != nil {
		return 0, false
	}
	return n, true
}

func decodeFormattedString(hit meili.Hit, key string) string {
	raw, ok := hit["_formatted"]
	if !ok {
		return ""
	}
	var formatted map[string]json.RawMessage
	if err := json.Unmarshal(raw, &formatted); err != nil {
		return ""
	}
	var s string
	if err := json.Unmarshal(formatted[key], &s); err != nil {
		return ""
	}
	return strings.TrimSpace(s)
}

func firstNonBlank(values ...string) string {
	for _, value := range values {
		if strings.TrimSpace(value) != "" {
			return value
		}
	}
	return ""
}

// IndexGenerated adds or updates one generated document.
func (m *Meili) IndexGenerated(rec Record) error {
	_, err := m.client.Index(idxGenerated).AddDocuments([]Record{rec}, nil)
	return err
}

// IndexAll bulk-indexes generated documents.
func (m *Meili) IndexAll(recs []Record) error {
	if len(recs) == 0 {
		return nil
	}
	_, err := m.client.Index(idxGenerated).AddDocuments(recs, nil)
	return err
}

func (m *Meili) DeleteGenerated(id string) error {
	_, err := m.client.Index(idxGenerated).DeleteDocument(id, nil)
	return err
}
