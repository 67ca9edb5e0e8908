package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"exchangedocs/internal/generate"
	"exchangedocs/internal/records"
	"exchangedocs/internal/resolve"
)

// PostgresStore reads case records and templates and records generated
// documents.
type PostgresStore struct {
	db *sqlx.DB
}

func NewPostgresStore(db *sqlx.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) DB() *sqlx.DB {
	return s.db
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

const selectCase = `
	SELECT id, exchange_number, status, exchange_type,
		COALESCE(primary_party_id, '') AS primary_party_id,
		COALESCE(assigned_staff_id, '') AS assigned_staff_id,
		relinquished_value::float8 AS relinquished_value,
		replacement_value::float8 AS replacement_value,
		proceeds_held::float8 AS proceeds_held,
		exchange_fee::float8 AS exchange_fee,
		opened_at, sale_closed_at, identification_deadline, exchange_deadline, closed_at
	FROM cases
	WHERE id = $1
`

func (s *PostgresStore) GetCase(ctx context.Context, caseID string) (records.Case, error) {
	var row caseRow
	if err := s.db.GetContext(ctx, &row, selectCase, caseID); err != nil {
		return records.Case{}, notFound(err, "get case")
	}
	return row.toRecord(), nil
}

const partyColumns = `p.id, p.first_name, p.middle_name, p.last_name, p.company, p.email, p.phone, p.street, p.city, p.state, p.zip`

func (s *PostgresStore) GetParty(ctx context.Context, partyID string) (records.Party, error) {
	var row partyRow
	if err := s.db.GetContext(ctx, &row, `SELECT `+partyColumns+` FROM parties p WHERE p.id = $1`, partyID); err != nil {
		return records.Party{}, notFound(err, "get party")
	}
	return row.toRecord(), nil
}

func (s *PostgresStore) GetStaff(ctx context.Context, staffID string) (records.Staff, error) {
	var row staffRow
	err := s.db.GetContext(ctx, &row, `SELECT id, first_name, last_name, title, email, phone FROM staff WHERE id = $1`, staffID)
	if err != nil {
		return records.Staff{}, notFound(err, "get staff")
	}
	return row.toRecord(), nil
}

func (s *PostgresStore) ListRelatedParties(ctx context.Context, caseID string) ([]records.RelatedParty, error) {
	var rows []relatedPartyRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT cp.role, `+partyColumns+`
		FROM case_parties cp
		JOIN parties p ON p.id = cp.party_id
		WHERE cp.case_id = $1
		ORDER BY cp.position, p.id
	`, caseID)
	if err != nil {
		return nil, fmt.Errorf("list related parties: %w", err)
	}
	related := make([]records.RelatedParty, 0, len(rows))
	for _, row := range rows {
		related = append(related, records.RelatedParty{Role: records.Role(row.Role), Party: row.partyRow.toRecord()})
	}
	return related, nil
}

func (s *PostgresStore) ListProperties(ctx context.Context, caseID string) ([]records.Property, error) {
	var rows []propertyRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT id, kind, street, city, state, zip, county, apn, price::float8 AS price, closing_date
		FROM properties
		WHERE case_id = $1
		ORDER BY position, id
	`, caseID)
	if err != nil {
		return nil, fmt.Errorf("list properties: %w", err)
	}
	properties := make([]records.Property, 0, len(rows))
	for _, row := range rows {
		properties = append(properties, row.toRecord())
	}
	return properties, nil
}

// GetTemplate returns a catalog entry. Inline templates carry their content;
// others name an object store path.
func (s *PostgresStore) GetTemplate(ctx context.Context, templateID string) (generate.Template, error) {
	var row templateRow
	err := s.db.GetContext(ctx, &row, `SELECT id, name, inline_content, object_path FROM templates WHERE id = $1`, templateID)
	if errors.Is(err, sql.ErrNoRows) {
		return generate.Template{}, fmt.Errorf("%w: %s", generate.ErrTemplateNotFound, templateID)
	}
	if err != nil {
		return generate.Template{}, fmt.Errorf("get template: %w", err)
	}
	tpl := generate.Template{ID: row.ID, Name: row.Name, ObjectPath: row.ObjectPath}
	if row.InlineContent.Valid {
		tpl.Content = []byte(row.InlineContent.String)
	}
	return tpl, nil
}

func (s *PostgresStore) Requirements(ctx context.Context, templateID string) (resolve.Policy, error) {
	var row requirementsRow
	err := s.db.GetContext(ctx, &row, `SELECT required::text AS required, fallbacks::text AS fallbacks FROM templates WHERE id = $1`, templateID)
	if errors.Is(err, sql.ErrNoRows) {
		return resolve.Policy{}, fmt.Errorf("%w: %s", generate.ErrTemplateNotFound, templateID)
	}
	if err != nil {
		return resolve.Policy{}, fmt.Errorf("get requirements: %w", err)
	}
	return decodePolicy(row.Required, row.Fallbacks)
}

func decodePolicy(required, fallbacks []byte) (resolve.Policy, error) {
	var policy resolve.Policy
	if len(required) > 0 {
		if err := json.Unmarshal(required, &policy.Required); err != nil {
			return resolve.Policy{}, fmt.Errorf("decode required fields: %w", err)
		}
	}
	if len(fallbacks) > 0 {
		if err := json.Unmarshal(fallbacks, &policy.Fallbacks); err != nil {
			return resolve.Policy{}, fmt.Errorf("decode fallbacks: %w", err)
		}
	}
	return policy, nil
}

// RecordGeneratedDocument appends a successful generation to the log.
func (s *PostgresStore) RecordGeneratedDocument(ctx context.Context, result *generate.Result) (GeneratedDocument, error) {
	doc := GeneratedDocument{
		ID:            result.ID,
		TemplateID:    result.TemplateID,
		TemplateName:  result.TemplateName,
		CaseID:        result.CaseID,
		DocumentRef:   result.DocumentRef,
		Path:          result.Path,
		ContentType:   result.ContentType,
		ResolvedCount: result.ResolvedCount,
		Replacements:  result.Replacements,
		WarningCount:  len(result.Warnings),
		CreatedAt:     result.CreatedAt,
	}
	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO generated_documents (
			id, template_id, template_name, case_id, document_ref, path, content_type,
			resolved_count, replacements, warning_count, created_at
		) VALUES (
			:id, :template_id, :template_name, :case_id, :document_ref, :path, :content_type,
			:resolved_count, :replacements, :warning_count, :created_at
		)
	`, doc)
	if err != nil {
		return GeneratedDocument{}, fmt.Errorf("record generated document: %w", err)
	}
	return doc, nil
}

const generatedColumns = `id, template_id, template_name, case_id, document_ref, path, content_type, resolved_count, replacements, warning_count, created_at`

// ListGeneratedDocuments returns a case's documents, newest first.
func (s *PostgresStore) ListGeneratedDocuments(ctx context.Context, caseID string, limit int) ([]GeneratedDocument, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	docs := []GeneratedDocument{}
	err := s.db.SelectContext(ctx, &docs, `SELECT `+generatedColumns+`
		FROM generated_documents
		WHERE case_id = $1
		ORDER BY created_at DESC, id
		LIMIT $2
	`, caseID, limit)
	if err != nil {
		return nil, fmt.Errorf("list generated documents: %w", err)
	}
	return docs, nil
}

func notFound(err error, op string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return records.ErrNotFound
	}
	return fmt.Errorf("%s: %w", op, err)
}
