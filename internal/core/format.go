package core

import (
	"math"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// ISOTimeLayout is the timestamp layout the API uses for transaction dates.
const ISOTimeLayout = "2006-01-02T15:04:05.000Z07:00"

// printer groups thousands the en-US way.
var printer = message.NewPrinter(language.English)

// FormatCurrency renders an amount with thousands separators and exactly two
// decimals, e.g. 1523.4 -> "1,523.40".
func FormatCurrency(amount float64) string {
	if math.IsNaN(amount) || math.IsInf(amount, 0) {
		amount = 0
	}
	cents := int64(math.Round(math.Abs(amount) * 100))
	whole, frac := cents/100, cents%100

	var b strings.Builder
	if amount < 0 && cents != 0 {
		b.WriteByte('-')
	}
	b.WriteString(printer.Sprintf("%d", whole))
	b.WriteByte('.')
	if frac < 10 {
		b.WriteByte('0')
	}
	b.WriteString(strconv.FormatInt(frac, 10))
	return b.String()
}

// FormatDate renders an API timestamp as MM/DD/YY. An empty input yields "",
// an unparsable one yields "??/??/??".
func FormatDate(iso string) string {
	if iso == "" {
		return ""
	}
	t, err := ParseDate(iso)
	if err != nil {
		return "??/??/??"
	}
	return t.Format("01/02/06")
}

// ParseDate accepts full RFC 3339 timestamps and bare YYYY-MM-DD dates.
func ParseDate(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, nil
	}
	return time.Parse(time.DateOnly, s)
}

// MonthOption is one entry of the statistics month selector.
type MonthOption struct {
	Value int
	Label string
}

// Months returns January..December.
func Months() []MonthOption {
	out := make([]MonthOption, 0, 12)
	for m := time.January; m <= time.December; m++ {
		out = append(out, MonthOption{Value: int(m), Label: m.String()})
	}
	return out
}

// Years lists years from the current one down to startYear.
func Years(startYear int, now time.Time) []int {
	var out []int
	for y := now.Year(); y >= startYear; y-- {
		out = append(out, y)
	}
	return out
}
