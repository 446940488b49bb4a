// Package web ships the invoice print and reminder email templates.
package web

import "embed"

//go:embed templates/invoices/*.html
var Templates embed.FS
