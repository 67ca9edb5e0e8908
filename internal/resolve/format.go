package resolve

import (
	"strings"
	"time"

	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

// dateLayout is the short and long date layout for one region.
type dateLayout struct {
	short, long string
}

var usDates = dateLayout{"1/2/2006", "January 2, 2006"}

// Regions missing here use the US layouts. Long dates spell the month in
// English, so non-English regions keep a numeric long form.
var dateLayouts = map[string]dateLayout{
	"US": usDates,
	"GB": {"02/01/2006", "2 January 2006"},
	"AU": {"02/01/2006", "2 January 2006"},
	"NZ": {"02/01/2006", "2 January 2006"},
	"IE": {"02/01/2006", "2 January 2006"},
	"IN": {"02/01/2006", "2 January 2006"},
	"CA": {"2006-01-02", "January 2, 2006"},
	"DE": {"02.01.2006", "02.01.2006"},
	"AT": {"02.01.2006", "02.01.2006"},
	"CH": {"02.01.2006", "02.01.2006"},
	"FR": {"02/01/2006", "02/01/2006"},
	"ES": {"02/01/2006", "02/01/2006"},
	"IT": {"02/01/2006", "02/01/2006"},
	"JP": {"2006/01/02", "2006/01/02"},
	"CN": {"2006/01/02", "2006/01/02"},
}

var currencySymbols = map[string]string{
	"USD": "$",
	"EUR": "€",
	"GBP": "£",
	"JPY": "¥",
	"CAD": "CA$",
	"AUD": "A$",
}

// formatter renders record values as display strings for one locale.
type formatter struct {
	printer *message.Printer
	symbol  string
	dates   dateLayout
}

func newFormatter(tag language.Tag) formatter {
	unit, _ := currency.FromTag(tag)
	symbol, ok := currencySymbols[unit.String()]
	if !ok {
		symbol = unit.String() + " "
	}
	region, _ := tag.Region()
	dates, ok := dateLayouts[region.String()]
	if !ok {
		dates = usDates
	}
	return formatter{printer: message.NewPrinter(tag), symbol: symbol, dates: dates}
}

func (f formatter) money(v *float64) string {
	if v == nil {
		return ""
	}
	amount := *v
	sign := ""
	if amount < 0 {
		sign = "-"
		amount = -amount
	}
	digits := f.printer.Sprint(number.Decimal(amount, number.MinFractionDigits(2), number.MaxFractionDigits(2)))
	return sign + f.symbol + digits
}

func (f formatter) date(t *time.Time) string {
	if t == nil || t.IsZero() {
		return ""
	}
	return t.Format(f.dates.short)
}

func (f formatter) longDate(t *time.Time) string {
	if t == nil || t.IsZero() {
		return ""
	}
	return t.Format(f.dates.long)
}

var sanitizer = strings.NewReplacer("#", "＃", "{", "(", "}", ")")

// sanitize keeps a substituted value from forming a new delimited token.
func sanitize(s string) string {
	return sanitizer.Replace(s)
}
