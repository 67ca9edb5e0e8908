package store

import (
	"database/sql"
	"time"

	"exchangedocs/internal/records"
)

type caseRow struct {
	ID                     string     `db:"id"`
	ExchangeNumber         string     `db:"exchange_number"`
	Status                 string     `db:"status"`
	ExchangeType           string     `db:"exchange_type"`
	PrimaryPartyID         string     `db:"primary_party_id"`
	AssignedStaffID        string     `db:"assigned_staff_id"`
	RelinquishedValue      *float64   `db:"relinquished_value"`
	ReplacementValue       *float64   `db:"replacement_value"`
	ProceedsHeld           *float64   `db:"proceeds_held"`
	ExchangeFee            *float64   `db:"exchange_fee"`
	OpenedAt               *time.Time `db:"opened_at"`
	SaleClosedAt           *time.Time `db:"sale_closed_at"`
	IdentificationDeadline *time.Time `db:"identification_deadline"`
	ExchangeDeadline       *time.Time `db:"exchange_deadline"`
	ClosedAt               *time.Time `db:"closed_at"`
}

func (r caseRow) toRecord() records.Case {
	return records.Case{
		ID:                     r.ID,
		ExchangeNumber:         r.ExchangeNumber,
		Status:                 r.Status,
		ExchangeType:           r.ExchangeType,
		PrimaryPartyID:         r.PrimaryPartyID,
		AssignedStaffID:        r.AssignedStaffID,
		RelinquishedValue:      r.RelinquishedValue,
		ReplacementValue:       r.ReplacementValue,
		ProceedsHeld:           r.ProceedsHeld,
		ExchangeFee:            r.ExchangeFee,
		OpenedAt:               r.OpenedAt,
		SaleClosedAt:           r.SaleClosedAt,
		IdentificationDeadline: r.IdentificationDeadline,
		ExchangeDeadline:       r.ExchangeDeadline,
		ClosedAt:               r.ClosedAt,
	}
}

type partyRow struct {
	ID         string `db:"id"`
	FirstName  string `db:"first_name"`
	MiddleName string `db:"middle_name"`
	LastName   string `db:"last_name"`
	Company    string `db:"company"`
	Email      string `db:"email"`
	Phone      string `db:"phone"`
	Street     string `db:"street"`
	City       string `db:"city"`
	State      string `db:"state"`
	Zip        string `db:"zip"`
}

func (r partyRow) toRecord() records.Party {
	return records.Party{
		ID:         r.ID,
		FirstName:  r.FirstName,
		MiddleName: r.MiddleName,
		LastName:   r.LastName,
		Company:    r.Company,
		Email:      r.Email,
		Phone:      r.Phone,
		Street:     r.Street,
		City:       r.City,
		State:      r.State,
		Zip:        r.Zip,
	}
}

type relatedPartyRow struct {
	Role string `db:"role"`
	partyRow
}

type staffRow struct {
	ID        string `db:"id"`
	FirstName string `db:"first_name"`
	LastName  string `db:"last_name"`
	Title     string `db:"title"`
	Email     string `db:"email"`
	Phone     string `db:"phone"`
}

func (r staffRow) toRecord() records.Staff {
	return records.Staff{
		ID:        r.ID,
		FirstName: r.FirstName,
		LastName:  r.LastName,
		Title:     r.Title,
		Email:     r.Email,
		Phone:     r.Phone,
	}
}

type propertyRow struct {
	ID          string     `db:"id"`
	Kind        string     `db:"kind"`
	Street      string     `db:"street"`
	City        string     `db:"city"`
	State       string     `db:"state"`
	Zip         string     `db:"zip"`
	County      string     `db:"county"`
	APN         string     `db:"apn"`
	Price       *float64   `db:"price"`
	ClosingDate *time.Time `db:"closing_date"`
}

func (r propertyRow) toRecord() records.Property {
	return records.Property{
		ID:          r.ID,
		Kind:        records.PropertyKind(r.Kind),
		Street:      r.Street,
		City:        r.City,
		State:       r.State,
		Zip:         r.Zip,
		County:      r.County,
		APN:         r.APN,
		Price:       r.Price,
		ClosingDate: r.ClosingDate,
	}
}

type templateRow struct {
	ID            string         `db:"id"`
	Name          string         `db:"name"`
	InlineContent sql.NullString `db:"inline_content"`
	ObjectPath    string         `db:"object_path"`
}

type requirementsRow struct {
	Required  []byte `db:"required"`
	Fallbacks []byte `db:"fallbacks"`
}

// GeneratedDocument is one row of the generation log.
type GeneratedDocument struct {
	ID            string    `db:"id" json:"id"`
	TemplateID    string    `db:"template_id" json:"templateId"`
	TemplateName  string    `db:"template_name" json:"templateName"`
	CaseID        string    `db:"case_id" json:"caseId"`
	DocumentRef   string    `db:"document_ref" json:"documentRef"`
	Path          string    `db:"path" json:"path"`
	ContentType   string    `db:"content_type" json:"contentType"`
	ResolvedCount int       `db:"resolved_count" json:"resolvedCount"`
	Replacements  int       `db:"replacements" json:"replacements"`
	WarningCount  int       `db:"warning_count" json:"warningCount"`
	CreatedAt     time.Time `db:"created_at" json:"createdAt"`
}
