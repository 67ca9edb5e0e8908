package resolve

import (
	"strconv"
	"strings"
	"time"

	"exchangedocs/internal/records"
)

// view is what a field reads its value from.
type view struct {
	graph  *records.Graph
	format formatter
	now    time.Time
}

func (v view) party() records.Party {
	if v.graph.PrimaryParty == nil {
		return records.Party{}
	}
	return *v.graph.PrimaryParty
}

func (v view) staff() records.Staff {
	if v.graph.AssignedStaff == nil {
		return records.Staff{}
	}
	return *v.graph.AssignedStaff
}

func (v view) property(kind records.PropertyKind) records.Property {
	p, _ := v.graph.FirstProperty(kind)
	return p
}

// field is one entry of the exact-structure table.
type field struct {
	key   string
	label string
	value func(view) string
}

var fields = buildFields()

func buildFields() []field {
	out := []field{
		{"client.name", "Client Name", func(v view) string { return v.party().FullName() }},
		{"client.fullname", "Client Name", func(v view) string {
			p := v.party()
			return joinWords(p.FirstName, p.MiddleName, p.LastName)
		}},
		{"client.firstname", "Client First Name", func(v view) string { return v.party().FirstName }},
		{"client.middlename", "Client Middle Name", func(v view) string { return v.party().MiddleName }},
		{"client.lastname", "Client Last Name", func(v view) string { return v.party().LastName }},
		{"client.company", "Client Company", func(v view) string { return v.party().Company }},
		{"client.email", "Client Email", func(v view) string { return v.party().Email }},
		{"client.phone", "Client Phone", func(v view) string { return v.party().Phone }},
		{"client.address", "Client Address", func(v view) string { return v.party().Address() }},
		{"client.street", "Client Street", func(v view) string { return v.party().Street }},
		{"client.city", "Client City", func(v view) string { return v.party().City }},
		{"client.state", "Client State", func(v view) string { return v.party().State }},
		{"client.zip", "Client Zip", func(v view) string { return v.party().Zip }},

		{"exchange.number", "Exchange Number", func(v view) string { return v.graph.Case.ExchangeNumber }},
		{"exchange.id", "Exchange ID", func(v view) string { return v.graph.Case.ID }},
		{"exchange.status", "Exchange Status", func(v view) string { return v.graph.Case.Status }},
		{"exchange.type", "Exchange Type", func(v view) string { return v.graph.Case.ExchangeType }},
		{"exchange.opened", "Exchange Open Date", func(v view) string { return v.format.date(v.graph.Case.OpenedAt) }},
		{"exchange.closed", "Exchange Close Date", func(v view) string { return v.format.date(v.graph.Case.ClosedAt) }},

		{"coordinator.name", "Coordinator Name", func(v view) string { return v.staff().FullName() }},
		{"coordinator.firstname", "Coordinator First Name", func(v view) string { return v.staff().FirstName }},
		{"coordinator.lastname", "Coordinator Last Name", func(v view) string { return v.staff().LastName }},
		{"coordinator.title", "Coordinator Title", func(v view) string { return v.staff().Title }},
		{"coordinator.email", "Coordinator Email", func(v view) string { return v.staff().Email }},
		{"coordinator.phone", "Coordinator Phone", func(v view) string { return v.staff().Phone }},

		{"financial.relinquishedvalue", "Relinquished Value", func(v view) string { return v.format.money(v.graph.Case.RelinquishedValue) }},
		{"financial.replacementvalue", "Replacement Value", func(v view) string { return v.format.money(v.graph.Case.ReplacementValue) }},
		{"financial.proceeds", "Exchange Proceeds", func(v view) string { return v.format.money(v.graph.Case.ProceedsHeld) }},
		{"financial.exchangefee", "Exchange Fee", func(v view) string { return v.format.money(v.graph.Case.ExchangeFee) }},
		{"financial.boot", "Boot", func(v view) string { return v.format.money(boot(v.graph.Case)) }},

		{"date.today", "Today's Date", func(v view) string { return v.format.date(&v.now) }},
		{"date.today.long", "Today's Date", func(v view) string { return v.format.longDate(&v.now) }},
		{"date.opened", "Open Date", func(v view) string { return v.format.date(v.graph.Case.OpenedAt) }},
		{"date.saleclosed", "Sale Closing Date", func(v view) string { return v.format.date(v.graph.Case.SaleClosedAt) }},
		{"date.identificationdeadline", "Identification Deadline", func(v view) string { return v.format.date(v.graph.Case.IdentificationDeadline) }},
		{"date.exchangedeadline", "Exchange Deadline", func(v view) string { return v.format.date(v.graph.Case.ExchangeDeadline) }},
		{"date.closed", "Close Date", func(v view) string { return v.format.date(v.graph.Case.ClosedAt) }},

		{"system.date", "Current Date", func(v view) string { return v.format.date(&v.now) }},
		{"system.date.long", "Current Date", func(v view) string { return v.format.longDate(&v.now) }},
		{"system.year", "Current Year", func(v view) string { return strconv.Itoa(v.now.Year()) }},
	}
	out = append(out, propertyFields(records.PropertyRelinquished, "Relinquished Property")...)
	out = append(out, propertyFields(records.PropertyReplacement, "Replacement Property")...)
	for _, role := range records.Roles {
		out = append(out, roleFields(role)...)
	}
	return out
}

func propertyFields(kind records.PropertyKind, label string) []field {
	prefix := "property." + string(kind) + "."
	get := func(v view) records.Property { return v.property(kind) }
	return []field{
		{prefix + "address", label + " Address", func(v view) string { return get(v).Address() }},
		{prefix + "street", label + " Street", func(v view) string { return get(v).Street }},
		{prefix + "city", label + " City", func(v view) string { return get(v).City }},
		{prefix + "state", label + " State", func(v view) string { return get(v).State }},
		{prefix + "zip", label + " Zip", func(v view) string { return get(v).Zip }},
		{prefix + "county", label + " County", func(v view) string { return get(v).County }},
		{prefix + "apn", label + " APN", func(v view) string { return get(v).APN }},
		{prefix + "price", label + " Price", func(v view) string { return v.format.money(get(v).Price) }},
		{prefix + "closingdate", label + " Closing Date", func(v view) string { return v.format.date(get(v).ClosingDate) }},
	}
}

// roleKey is the token segment for a role: "title-company" becomes "titlecompany".
func roleKey(role records.Role) string {
	return strings.ReplaceAll(string(role), "-", "")
}

func roleLabel(role records.Role) string {
	words := strings.Split(string(role), "-")
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

func roleFields(role records.Role) []field {
	prefix := roleKey(role) + "."
	label := roleLabel(role)
	get := func(v view) records.Party {
		p, _ := v.graph.FirstParty(role)
		return p
	}
	return []field{
		{prefix + "name", label + " Name", func(v view) string { return get(v).FullName() }},
		{prefix + "email", label + " Email", func(v view) string { return get(v).Email }},
		{prefix + "phone", label + " Phone", func(v view) string { return get(v).Phone }},
		{prefix + "company", label + " Company", func(v view) string { return get(v).Company }},
	}
}

// boot is the cash or value the exchanger received: relinquished minus
// replacement, when positive.
func boot(c records.Case) *float64 {
	if c.RelinquishedValue == nil || c.ReplacementValue == nil {
		return nil
	}
	diff := *c.RelinquishedValue - *c.ReplacementValue
	if diff <= 0 {
		zero := 0.0
		return &zero
	}
	return &diff
}

func joinWords(parts ...string) string {
	kept := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, " ")
}

// DefaultFallbacks maps every exact-table key to "<label> Not Available".
func DefaultFallbacks() map[string]string {
	out := make(map[string]string, len(fields))
	for _, f := range fields {
		out[f.key] = f.label + " Not Available"
	}
	return out
}

// KnownKeys lists the exact-table keys in definition order.
func KnownKeys() []string {
	keys := make([]string, 0, len(fields))
	for _, f := range fields {
		keys = append(keys, f.key)
	}
	return keys
}
