package licensing

import (
	"errors"
	"fmt"

	"github.com/licensehub/licensehub/internal/platform/httpx"
)

var (
	// ErrNotFound is returned when a company does not exist or the credential pair does not match.
	ErrNotFound = fmt.Errorf("company %w", httpx.ErrNotFound)
	// ErrUnauthenticated is returned when no credential was presented.
	ErrUnauthenticated = fmt.Errorf("login required: %w", httpx.ErrUnauthorized)
	// ErrSessionExpired is returned when the presented credential is invalid or expired.
	ErrSessionExpired = fmt.Errorf("token invalid or expired: %w", httpx.ErrSessionExpired)
	// ErrInternal hides infrastructure failures from callers.
	ErrInternal = errors.New("internal error")
)

// ValidationError names the offending input field and why it was rejected.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

// FieldName implements httpx.FieldError.
func (e *ValidationError) FieldName() string { return e.Field }

func (e *ValidationError) Unwrap() error { return httpx.ErrValidation }

func invalid(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

// ConflictError reports a uniqueness violation on Field.
type ConflictError struct {
	Field string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s already exists", e.Field)
}

// FieldName implements httpx.FieldError.
func (e *ConflictError) FieldName() string { return e.Field }

func (e *ConflictError) Unwrap() error { return httpx.ErrDuplicate }

// DenialReason explains a denied verification.
type DenialReason string

const (
	DenyNotFound            DenialReason = "not_found"
	DenyCompanyDisabled     DenialReason = "company_disabled"
	DenyDeviceNotRegistered DenialReason = "device_not_registered"
	DenyDeviceRevoked       DenialReason = "device_revoked"
	DenySubscriptionExpired DenialReason = "subscription_expired"
)

// Verdict is the outcome of a verification call.
type Verdict struct {
	Authorized bool         `json:"authorized"`
	Reason     DenialReason `json:"reason,omitempty"`
}

// Authorized is the allow verdict.
func Authorized() Verdict {
	return Verdict{Authorized: true}
}

// Denied is a deny verdict carrying only a reason code.
func Denied(reason DenialReason) Verdict {
	return Verdict{Reason: reason}
}
