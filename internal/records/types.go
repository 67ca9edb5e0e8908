// Package records models the case record graph that templates are filled from
// and assembles it from a data source.
package records

import (
	"errors"
	"strings"
	"time"
)

var (
	// ErrNotFound is returned by a Source when a record does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrCaseNotFound is returned by Aggregate when the case itself is missing.
	ErrCaseNotFound = errors.New("case not found")
)

type Case struct {
	ID                     string     `json:"id"`
	ExchangeNumber         string     `json:"exchangeNumber,omitempty"`
	Status                 string     `json:"status,omitempty"`
	ExchangeType           string     `json:"exchangeType,omitempty"`
	PrimaryPartyID         string     `json:"primaryPartyId,omitempty"`
	AssignedStaffID        string     `json:"assignedStaffId,omitempty"`
	RelinquishedValue      *float64   `json:"relinquishedValue,omitempty"`
	ReplacementValue       *float64   `json:"replacementValue,omitempty"`
	ProceedsHeld           *float64   `json:"proceedsHeld,omitempty"`
	ExchangeFee            *float64   `json:"exchangeFee,omitempty"`
	OpenedAt               *time.Time `json:"openedAt,omitempty"`
	SaleClosedAt           *time.Time `json:"saleClosedAt,omitempty"`
	IdentificationDeadline *time.Time `json:"identificationDeadline,omitempty"`
	ExchangeDeadline       *time.Time `json:"exchangeDeadline,omitempty"`
	ClosedAt               *time.Time `json:"closedAt,omitempty"`
}

type Party struct {
	ID         string `json:"id"`
	FirstName  string `json:"firstName,omitempty"`
	MiddleName string `json:"middleName,omitempty"`
	LastName   string `json:"lastName,omitempty"`
	Company    string `json:"company,omitempty"`
	Email      string `json:"email,omitempty"`
	Phone      string `json:"phone,omitempty"`
	Street     string `json:"street,omitempty"`
	City       string `json:"city,omitempty"`
	State      string `json:"state,omitempty"`
	Zip        string `json:"zip,omitempty"`
}

// FullName joins first and last name; the company stands in when both are empty.
func (p Party) FullName() string {
	name := joinNonEmpty(" ", p.FirstName, p.LastName)
	if name == "" {
		return p.Company
	}
	return name
}

// Address renders "street, city, state zip" skipping empty parts.
func (p Party) Address() string {
	return formatAddress(p.Street, p.City, p.State, p.Zip)
}

type Staff struct {
	ID        string `json:"id"`
	FirstName string `json:"firstName,omitempty"`
	LastName  string `json:"lastName,omitempty"`
	Title     string `json:"title,omitempty"`
	Email     string `json:"email,omitempty"`
	Phone     string `json:"phone,omitempty"`
}

func (s Staff) FullName() string {
	return joinNonEmpty(" ", s.FirstName, s.LastName)
}

// Role tags a related party's relationship to the case.
type Role string

const (
	RoleCoOwner      Role = "co-owner"
	RoleTrustee      Role = "trustee"
	RoleBeneficiary  Role = "beneficiary"
	RolePartner      Role = "partner"
	RoleAttorney     Role = "attorney"
	RoleRealtor      Role = "realtor"
	RoleTitleCompany Role = "title-company"
)

// Roles lists every known role in display order.
var Roles = []Role{RoleCoOwner, RoleTrustee, RoleBeneficiary, RolePartner, RoleAttorney, RoleRealtor, RoleTitleCompany}

type RelatedParty struct {
	Role  Role  `json:"role"`
	Party Party `json:"party"`
}

// PropertyKind distinguishes the sold property from the one acquired.
type PropertyKind string

const (
	PropertyRelinquished PropertyKind = "relinquished"
	PropertyReplacement  PropertyKind = "replacement"
)

type Property struct {
	ID          string       `json:"id"`
	Kind        PropertyKind `json:"kind"`
	Street      string       `json:"street,omitempty"`
	City        string       `json:"city,omitempty"`
	State       string       `json:"state,omitempty"`
	Zip         string       `json:"zip,omitempty"`
	County      string       `json:"county,omitempty"`
	APN         string       `json:"apn,omitempty"`
	Price       *float64     `json:"price,omitempty"`
	ClosingDate *time.Time   `json:"closingDate,omitempty"`
}

func (p Property) Address() string {
	return formatAddress(p.Street, p.City, p.State, p.Zip)
}

// Graph is everything known about one case for a single generation request.
// Any slice may be empty; Overrides are caller-supplied values keyed by token.
type Graph struct {
	Case           Case              `json:"case"`
	PrimaryParty   *Party            `json:"primaryParty,omitempty"`
	AssignedStaff  *Staff            `json:"assignedStaff,omitempty"`
	RelatedParties []RelatedParty    `json:"relatedParties,omitempty"`
	Properties     []Property        `json:"properties,omitempty"`
	Overrides      map[string]string `json:"overrides,omitempty"`
}

// FirstParty returns the first related party with the given role.
func (g *Graph) FirstParty(role Role) (Party, bool) {
	for _, related := range g.RelatedParties {
		if related.Role == role {
			return related.Party, true
		}
	}
	return Party{}, false
}

// FirstProperty returns the first property of the given kind.
func (g *Graph) FirstProperty(kind PropertyKind) (Property, bool) {
	for _, property := range g.Properties {
		if property.Kind == kind {
			return property, true
		}
	}
	return Property{}, false
}

func formatAddress(street, city, state, zip string) string {
	return joinNonEmpty(", ", street, city, joinNonEmpty(" ", state, zip))
}

func joinNonEmpty(sep string, parts ...string) string {
	kept := make([]string, 0, len(parts))
	for _, part := range parts {
		if part = strings.TrimSpace(part); part != "" {
			kept = append(kept, part)
		}
	}
	return strings.Join(kept, sep)
}
