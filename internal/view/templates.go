package view

import (
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/shopspring/decimal"

	"github.com/invoicedesk/invoicedesk/web"
)

// Engine renders HTML templates.
type Engine struct {
	templates *template.Template
	money     *MoneyFormatter
}

// NewEngine parses the embedded templates.
func NewEngine(money *MoneyFormatter) (*Engine, error) {
	if money == nil {
		return nil, fmt.Errorf("view: money formatter required")
	}
	funcMap := template.FuncMap{
		"money": func(d decimal.Decimal) string {
			return money.Format(d)
		},
		"formatDate": func(t time.Time) string {
			if t.IsZero() {
				return ""
			}
			return t.Format("02 Jan 2006")
		},
	}
	tpl, err := template.New("root").Funcs(funcMap).ParseFS(web.Templates, "templates/invoices/*.html")
	if err != nil {
		return nil, err
	}
	return &Engine{templates: tpl, money: money}, nil
}

// Money exposes the formatter used by the templates.
func (e *Engine) Money() *MoneyFormatter {
	return e.money
}

// Execute writes a named template to w.
func (e *Engine) Execute(w io.Writer, name string, data any) error {
	if e == nil {
		return fmt.Errorf("template engine not initialised")
	}
	return e.templates.ExecuteTemplate(w, name, data)
}
