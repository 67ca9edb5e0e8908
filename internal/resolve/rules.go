package resolve

import "strings"

// rule is one row of the heuristic table. match runs against the compact key
// (normalized, with spaces, underscores and hyphens removed); target names the
// exact-table key whose value is used.
type rule struct {
	name   string
	match  func(compact string) bool
	target func(compact string) string
}

func anyOf(subs ...string) func(string) bool {
	return func(s string) bool {
		for _, sub := range subs {
			if strings.Contains(s, sub) {
				return true
			}
		}
		return false
	}
}

func both(a, b func(string) bool) func(string) bool {
	return func(s string) bool { return a(s) && b(s) }
}

func either(a, b func(string) bool) func(string) bool {
	return func(s string) bool { return a(s) || b(s) }
}

// segment matches when a whole dot-separated segment equals one of words.
func segment(words ...string) func(string) bool {
	return func(s string) bool {
		for _, seg := range strings.Split(s, ".") {
			for _, word := range words {
				if seg == word {
					return true
				}
			}
		}
		return false
	}
}

// segmentSuffix matches when a dot-separated segment ends with one of subs.
func segmentSuffix(subs ...string) func(string) bool {
	return func(s string) bool {
		for _, seg := range strings.Split(s, ".") {
			for _, sub := range subs {
				if strings.HasSuffix(seg, sub) {
					return true
				}
			}
		}
		return false
	}
}

func to(key string) func(string) string {
	return func(string) string { return key }
}

var (
	clientWords  = anyOf("client", "contact", "exchanger", "taxpayer", "customer")
	staffWords   = anyOf("coordinator", "user.", "staff", "officer", "processor")
	relinquished = anyOf("relinquished", "sold", "downleg", "sale.property")
	replacement  = anyOf("replacement", "acquired", "upleg", "purchase.property")
	priceWords   = anyOf("price", "value", "amount")

	// Short words like mail, tel and cell only count as a whole segment, so
	// mailingaddress and cancellationdate stay out of these rules.
	emailWords = either(anyOf("email"), segment("mail"))
	phoneWords = either(anyOf("phone", "mobile"), segment("tel", "cell"))
	feeWords   = either(anyOf("exchangefee", "qifee"), segmentSuffix("fee", "fees"))
)

// roleAliases are the words a related-party token may use for each role key.
var roleAliases = []struct {
	key   string
	words []string
}{
	{"coowner", []string{"coowner", "cotaxpayer", "coexchanger"}},
	{"trustee", []string{"trustee"}},
	{"beneficiary", []string{"beneficiary"}},
	{"partner", []string{"partner"}},
	{"attorney", []string{"attorney", "lawyer", "counsel"}},
	{"realtor", []string{"realtor", "broker", "agent"}},
	{"titlecompany", []string{"titlecompany", "titleco", "escrow"}},
}

// roleTarget picks the attribute of a related-party token.
func roleTarget(key string) func(string) string {
	return func(s string) string {
		switch {
		case emailWords(s):
			return key + ".email"
		case phoneWords(s):
			return key + ".phone"
		case anyOf("company", "firm", "business")(s):
			return key + ".company"
		default:
			return key + ".name"
		}
	}
}

// propertyTarget picks the attribute of a property token.
func propertyTarget(kind string) func(string) string {
	return func(s string) string {
		prefix := "property." + kind + "."
		switch {
		case anyOf("apn", "parcel")(s):
			return prefix + "apn"
		case anyOf("county")(s):
			return prefix + "county"
		case anyOf("closing", "closed", "coe")(s):
			return prefix + "closingdate"
		case anyOf("street")(s):
			return prefix + "street"
		case anyOf("city")(s):
			return prefix + "city"
		case anyOf("state")(s):
			return prefix + "state"
		case anyOf("zip", "postal")(s):
			return prefix + "zip"
		default:
			return prefix + "address"
		}
	}
}

// heuristics is evaluated top to bottom and the first matching rule wins.
// More specific rules sit above the broader ones they overlap with.
var heuristics = buildHeuristics()

func buildHeuristics() []rule {
	table := []rule{
		{"exchange-number", anyOf("matter.number", "exchange.number", "matternumber", "exchangenumber", "matter.no", "exchange.no", "case.number", "file.number", "escrow.number"), to("exchange.number")},
		{"identification-deadline", anyOf("identification", "45day", "idperiod"), to("date.identificationdeadline")},
		{"exchange-deadline", anyOf("exchangedeadline", "exchange.deadline", "180day", "exchangeperiod"), to("date.exchangedeadline")},
		{"relinquished-value", both(relinquished, priceWords), to("financial.relinquishedvalue")},
		{"replacement-value", both(replacement, priceWords), to("financial.replacementvalue")},
		{"relinquished-property", relinquished, propertyTarget("relinquished")},
		{"replacement-property", replacement, propertyTarget("replacement")},
		{"proceeds", anyOf("proceeds", "fundsheld", "balance"), to("financial.proceeds")},
		{"exchange-fee", feeWords, to("financial.exchangefee")},
		{"boot", anyOf("boot"), to("financial.boot")},
		{"staff-email", both(staffWords, emailWords), to("coordinator.email")},
		{"staff-phone", both(staffWords, phoneWords), to("coordinator.phone")},
		{"staff-title", both(staffWords, anyOf("title", "position")), to("coordinator.title")},
		{"staff-firstname", both(staffWords, anyOf("firstname", "first")), to("coordinator.firstname")},
		{"staff-lastname", both(staffWords, anyOf("lastname", "last", "surname")), to("coordinator.lastname")},
		{"staff-name", both(staffWords, anyOf("name")), to("coordinator.name")},
		{"staff", anyOf("coordinator", "exchangeofficer"), to("coordinator.name")},
	}
	for _, role := range roleAliases {
		table = append(table, rule{"role-" + role.key, anyOf(role.words...), roleTarget(role.key)})
	}
	table = append(table,
		rule{"client-mailing", both(clientWords, anyOf("mailing")), to("client.address")},
		rule{"client-email", both(clientWords, emailWords), to("client.email")},
		rule{"client-phone", both(clientWords, phoneWords), to("client.phone")},
		rule{"client-firstname", both(clientWords, anyOf("firstname", "first", "given")), to("client.firstname")},
		rule{"client-middlename", both(clientWords, anyOf("middlename", "middle")), to("client.middlename")},
		rule{"client-lastname", both(clientWords, anyOf("lastname", "last", "surname", "family")), to("client.lastname")},
		rule{"client-company", both(clientWords, anyOf("company", "entity", "business")), to("client.company")},
		rule{"client-street", both(clientWords, anyOf("street")), to("client.street")},
		rule{"client-city", both(clientWords, anyOf("city")), to("client.city")},
		rule{"client-state", both(clientWords, anyOf("state")), to("client.state")},
		rule{"client-zip", both(clientWords, anyOf("zip", "postal")), to("client.zip")},
		rule{"client-address", both(clientWords, anyOf("address")), to("client.address")},
		rule{"client-name", both(clientWords, anyOf("name")), to("client.name")},
		rule{"exchange-status", both(anyOf("matter", "exchange", "case"), anyOf("status")), to("exchange.status")},
		rule{"exchange-type", both(anyOf("matter", "exchange", "case"), anyOf("type")), to("exchange.type")},
		rule{"exchange-opened", both(anyOf("matter", "exchange", "case"), anyOf("opened", "opendate", "started")), to("date.opened")},
		rule{"sale-closed", anyOf("saleclose", "closeofsale", "saledate"), to("date.saleclosed")},
		rule{"today-long", both(anyOf("today", "currentdate", "date.now"), anyOf("long", "full")), to("date.today.long")},
		rule{"today", anyOf("today", "currentdate", "date.now"), to("date.today")},
		rule{"year", anyOf("year"), to("system.year")},
		rule{"generic-mailing", anyOf("mailingaddress"), to("client.address")},
		rule{"generic-email", emailWords, to("client.email")},
		rule{"generic-phone", phoneWords, to("client.phone")},
		rule{"generic-firstname", anyOf("firstname"), to("client.firstname")},
		rule{"generic-lastname", anyOf("lastname"), to("client.lastname")},
		rule{"generic-fullname", anyOf("fullname"), to("client.name")},
	)
	return table
}

// compact strips spaces, underscores and hyphens from a normalized key.
func compact(key string) string {
	return strings.NewReplacer(" ", "", "_", "", "-", "").Replace(key)
}

// classify returns the first heuristic rule that matches key.
func classify(key string) (rule, string, bool) {
	c := compact(key)
	for _, r := range heuristics {
		if r.match(c) {
			return r, r.target(c), true
		}
	}
	return rule{}, "", false
}
