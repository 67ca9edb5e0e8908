package search

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
)

// PgFTS implements Searcher using PostgreSQL full-text search as a fallback.
type PgFTS struct {
	db *sqlx.DB
}

func NewPgFTS(db *sqlx.DB) *PgFTS {
	return &PgFTS{db: db}
}

// Healthy always returns true; if Postgres is down, the whole app is down.
func (p *PgFTS) Healthy() bool {
	return true
}

type pgHit struct {
	ID           string    `db:"id"`
	TemplateID   string    `db:"template_id"`
	TemplateName string    `db:"template_name"`
	CaseID       string    `db:"case_id"`
	DocumentRef  string    `db:"document_ref"`
	Path         string    `db:"path"`
	Snippet      string    `db:"snippet"`
	CreatedAt    time.Time `db:"created_at"`
}

// Search matches generated_documents.fts with plainto_tsquery, ranked by
// ts_rank. Without text it lists the filtered documents newest first.
func (p *PgFTS) Search(ctx context.Context, q Query) ([]Result, int, error) {
	where, args, ranked := pgWhere(q)
	if where == "" {
		return nil, 0, nil
	}

	limit := q.Limit
	if limit <= 0 {
		limit = 20
	}
	offset := max(q.Offset, 0)

	var total int
	if err := p.db.GetContext(ctx, &total, `SELECT count(*) FROM generated_documents WHERE `+where, args...); err != nil {
		return nil, 0, fmt.Errorf("pgfts count: %w", err)
	}

	snippet, order := `template_name`, `created_at DESC, id`
	if ranked {
		snippet = `ts_headline('simple', template_name || ' ' || path, plainto_tsquery('simple', $1), 'MaxFragments=1,MaxWords=30')`
		order = `ts_rank(fts, plainto_tsquery('simple', $1)) DESC, created_at DESC`
	}
	dataSQL := fmt.Sprintf(`SELECT id, template_id, template_name, case_id, document_ref, path, %s AS snippet, created_at
		FROM generated_documents
		WHERE %s
		ORDER BY %s
		LIMIT %d OFFSET %d`, snippet, where, order, limit, offset)

	var hits []pgHit
	if err := p.db.SelectContext(ctx, &hits, dataSQL, args...); err != nil {
		return nil, 0, fmt.Errorf("pgfts query: %w", err)
	}
	results := make([]Result, 0, len(hits))
	for _, h := range hits {
		results = append(results, Result{
			ID:           h.ID,
			TemplateID:   h.TemplateID,
			TemplateName: h.TemplateName,
			CaseID:       h.CaseID,
			DocumentRef:  h.DocumentRef,
			Path:         h.Path,
			Snippet:      h.Snippet,
			CreatedAt:    h.CreatedAt.UTC(),
		})
	}
	return results, total, nil
}

// pgWhere builds the filter clause. The text query, when present, is always $1.
func pgWhere(q Query) (string, []any, bool) {
	var clauses []string
	var args []any
	ranked := strings.TrimSpace(q.Text) != ""
	if ranked {
		args = append(args, q.Text)
		clauses = append(clauses, "fts @@ plainto_tsquery('simple', $1)")
	}
	if q.CaseID != "" {
		args = append(args, q.CaseID)
		clauses = append(clauses, fmt.Sprintf("case_id = $%d", len(args)))
	}
	if q.TemplateID != "" {
		args = append(args, q.TemplateID)
		clauses = append(clauses, fmt.Sprintf("template_id = $%d", len(args)))
	}
	return strings.Join(clauses, " AND "), args, ranked
}

// LoadAllRecords returns every generated document for full reindexing.
func (p *PgFTS) LoadAllRecords(ctx context.Context) ([]Record, error) {
	recs := make([]Record, 0)
	err := p.db.SelectContext(ctx, &recs, `
		SELECT id, template_id, template_name, case_id, document_ref, path, content_type, warning_count,
			EXTRACT(EPOCH FROM created_at)::bigint AS created_at
		FROM generated_documents
		ORDER BY created_at
	`)
	if err != nil {
		return nil, fmt.Errorf("load generated documents: %w", err)
	}
	return recs, nil
}
