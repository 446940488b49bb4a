package view

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

// MoneyFormatter renders amounts with two fraction digits in a locale. This is
// the only place amounts are rounded.
type MoneyFormatter struct {
	printer    *message.Printer
	code       string
	decimalSep string
	groupSep   string
}

// NewMoneyFormatter validates the locale and ISO 4217 currency code.
func NewMoneyFormatter(locale, code string) (*MoneyFormatter, error) {
	tag, err := language.Parse(locale)
	if err != nil {
		return nil, fmt.Errorf("view: locale %q: %w", locale, err)
	}
	unit, err := currency.ParseISO(code)
	if err != nil {
		return nil, fmt.Errorf("view: currency %q: %w", code, err)
	}
	f := &MoneyFormatter{printer: message.NewPrinter(tag), code: unit.String(), decimalSep: "."}
	// "1,234.5" in en, "1.234,5" in de.
	seps := strings.FieldsFunc(f.printer.Sprint(number.Decimal(1234.5, number.Scale(1))), unicode.IsDigit)
	switch len(seps) {
	case 1:
		f.decimalSep = seps[0]
	case 2:
		f.groupSep, f.decimalSep = seps[0], seps[1]
	}
	return f, nil
}

// Currency returns the ISO code.
func (f *MoneyFormatter) Currency() string {
	return f.code
}

// Format renders e.g. "INR 1,234.50". The amount never passes through a float.
func (f *MoneyFormatter) Format(amount decimal.Decimal) string {
	fixed := amount.StringFixed(2)
	sign := ""
	if strings.HasPrefix(fixed, "-") {
		sign, fixed = "-", fixed[1:]
	}
	whole, frac, _ := strings.Cut(fixed, ".")
	return f.code + " " + sign + f.groupWhole(whole) + f.decimalSep + frac
}

// groupWhole groups the integer digits with the locale's pattern. Values past
// int64 fall back to groups of three.
func (f *MoneyFormatter) groupWhole(whole string) string {
	if n, err := strconv.ParseInt(whole, 10, 64); err == nil {
		return f.printer.Sprint(number.Decimal(n))
	}
	if f.groupSep == "" {
		return whole
	}
	var b strings.Builder
	lead := len(whole) % 3
	if lead == 0 {
		lead = 3
	}
	b.WriteString(whole[:lead])
	for i := lead; i < len(whole); i += 3 {
		b.WriteString(f.groupSep)
		b.WriteString(whole[i : i+3])
	}
	return b.String()
}
