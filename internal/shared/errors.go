package shared

import (
	"fmt"

	"github.com/invoicedesk/invoicedesk/internal/platform/httpx"
)

// Login and CSRF failures wrap the httpx sentinels so RespondError maps them
// to 401 and 403.
var (
	ErrInvalidCredentials = fmt.Errorf("%w: invalid email or password", httpx.ErrUnauthorized)
	ErrCSRFTokenMissing   = fmt.Errorf("%w: csrf token missing", httpx.ErrForbidden)
	ErrCSRFTokenMismatch  = fmt.Errorf("%w: csrf token mismatch", httpx.ErrForbidden)
)
