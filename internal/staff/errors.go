package staff

import (
	"fmt"

	"github.com/licensehub/licensehub/internal/platform/httpx"
)

var (
	// ErrNotFound is returned when no employee matches.
	ErrNotFound = fmt.Errorf("employee %w", httpx.ErrNotFound)
	// ErrInvalidCredentials indicates a failed login. Unknown email, wrong
	// password and locked accounts are indistinguishable to the caller.
	ErrInvalidCredentials = fmt.Errorf("invalid credentials: %w", httpx.ErrUnauthorized)
)

const (
	fieldEmail   = "email"
	fieldStaffNo = "staffNo"
)
