// Package licensing implements the device license authorization engine: the
// company registry, fingerprint reconciliation, audit stamping and the
// verification decision used by deployed client software.
package licensing

import (
	"time"

	"cloud.google.com/go/civil"
	"github.com/google/uuid"
)

// LicenseType is the kind of license held by a registered device.
type LicenseType string

const (
	LicenseSubscription LicenseType = "subscription"
	LicenseLifetime     LicenseType = "lifetime"
)

// Valid reports whether t is a known license type.
func (t LicenseType) Valid() bool {
	return t == LicenseSubscription || t == LicenseLifetime
}

// FingerprintStatus is the lifecycle state of a registered device.
type FingerprintStatus string

const (
	StatusActive  FingerprintStatus = "active"
	StatusRevoked FingerprintStatus = "revoked"
)

// Valid reports whether s is a known status.
func (s FingerprintStatus) Valid() bool {
	return s == StatusActive || s == StatusRevoked
}

// Fingerprint is a registered device identifier plus its license terms.
type Fingerprint struct {
	Value         string            `json:"value"`
	LicenseType   LicenseType       `json:"licenseType"`
	ExpiryDate    *civil.Date       `json:"expiryDate"`
	Status        FingerprintStatus `json:"status"`
	RegisteredAt  time.Time         `json:"registeredAt"`
	RevokedReason string            `json:"revokedReason,omitempty"`
}

// Company is a licensed customer organization and its device roster.
type Company struct {
	ID           uuid.UUID     `json:"id"`
	CompanyID    string        `json:"companyId"`
	Email        string        `json:"email"`
	Name         string        `json:"name"`
	Phone        string        `json:"phone"`
	Address      string        `json:"address"`
	DeployKey    string        `json:"deployKey"`
	Active       bool          `json:"active"`
	Fingerprints []Fingerprint `json:"fingerprints"`

	CreatedAt     time.Time `json:"createdAt"`
	CreatedBy     uuid.UUID `json:"createdBy"`
	UpdatedAt     time.Time `json:"updatedAt"`
	UpdatedBy     uuid.UUID `json:"updatedBy"`
	UpdatedByName string    `json:"updatedByName,omitempty"`
}

// Actor is the authenticated staff member performing an administrative call.
type Actor struct {
	ID   uuid.UUID
	Name string
}

// fingerprint returns the entry with the given value.
func (c *Company) fingerprint(value string) (Fingerprint, bool) {
	for _, fp := range c.Fingerprints {
		if fp.Value == value {
			return fp, true
		}
	}
	return Fingerprint{}, false
}

// clone returns a deep copy so callers never share the fingerprint slice.
func (c Company) clone() Company {
	out := c
	if c.Fingerprints != nil {
		out.Fingerprints = make([]Fingerprint, len(c.Fingerprints))
		for i, fp := range c.Fingerprints {
			out.Fingerprints[i] = fp.clone()
		}
	}
	return out
}

func (f Fingerprint) clone() Fingerprint {
	out := f
	if f.ExpiryDate != nil {
		d := *f.ExpiryDate
		out.ExpiryDate = &d
	}
	return out
}
