package licensing

import (
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/civil"
)

// FingerprintInput is one device in a full registration.
type FingerprintInput struct {
	Value       string      `json:"value"`
	LicenseType LicenseType `json:"licenseType"`
	ExpiryDate  *civil.Date `json:"expiryDate"`
}

// FingerprintEdit is a partial device record keyed by Value. Only the fields
// that are Set are written to the matching roster entry.
type FingerprintEdit struct {
	Value         string                      `json:"value"`
	LicenseType   Optional[LicenseType]       `json:"licenseType"`
	ExpiryDate    Optional[*civil.Date]       `json:"expiryDate"`
	Status        Optional[FingerprintStatus] `json:"status"`
	RevokedReason Optional[string]            `json:"revokedReason"`
}

func fpField(i int, name string) string {
	return fmt.Sprintf("fingerprints[%d].%s", i, name)
}

// RegisterFingerprints validates the initial roster of a new company. Every
// entry enters active and stamped with now.
func RegisterFingerprints(inputs []FingerprintInput, now time.Time) ([]Fingerprint, error) {
	if len(inputs) == 0 {
		return nil, invalid("fingerprints", "at least one device is required")
	}
	registeredAt := now.UTC()
	seen := make(map[string]struct{}, len(inputs))
	out := make([]Fingerprint, 0, len(inputs))
	for i, in := range inputs {
		if strings.TrimSpace(in.Value) == "" {
			return nil, invalid(fpField(i, "value"), "is required")
		}
		if _, dup := seen[in.Value]; dup {
			return nil, invalid(fpField(i, "value"), "duplicate device id")
		}
		seen[in.Value] = struct{}{}
		if err := checkLicenseType(i, in.LicenseType); err != nil {
			return nil, err
		}
		fp := Fingerprint{
			Value:        in.Value,
			LicenseType:  in.LicenseType,
			Status:       StatusActive,
			RegisteredAt: registeredAt,
		}
		if in.LicenseType == LicenseSubscription {
			if in.ExpiryDate == nil {
				return nil, invalid(fpField(i, "expiryDate"), "is required for subscription licenses")
			}
			d := *in.ExpiryDate
			fp.ExpiryDate = &d
		}
		out = append(out, fp)
	}
	return out, nil
}

// MergeFingerprints applies edits to existing by Value. Matched entries are
// updated field by field, unknown values are registered as new devices and
// entries not named by any edit are carried over unchanged. existing is never
// modified; on error no roster is returned.
func MergeFingerprints(existing []Fingerprint, edits []FingerprintEdit, now time.Time) ([]Fingerprint, error) {
	out := make([]Fingerprint, len(existing), len(existing)+len(edits))
	index := make(map[string]int, len(existing)+len(edits))
	for i, fp := range existing {
		out[i] = fp.clone()
		index[fp.Value] = i
	}

	// edit position -> roster position
	affected := make([]int, len(edits))
	seen := make(map[string]struct{}, len(edits))
	for i, e := range edits {
		if strings.TrimSpace(e.Value) == "" {
			return nil, invalid(fpField(i, "value"), "is required")
		}
		if _, dup := seen[e.Value]; dup {
			return nil, invalid(fpField(i, "value"), "duplicate device id")
		}
		seen[e.Value] = struct{}{}

		if lt, ok := e.LicenseType.Get(); ok {
			if err := checkLicenseType(i, lt); err != nil {
				return nil, err
			}
		}
		if st, ok := e.Status.Get(); ok && !st.Valid() {
			return nil, invalid(fpField(i, "status"), "must be active or revoked")
		}

		pos, found := index[e.Value]
		if !found {
			if !e.LicenseType.IsSet() {
				return nil, invalid(fpField(i, "licenseType"), "is required")
			}
			out = append(out, Fingerprint{
				Value:        e.Value,
				Status:       StatusActive,
				RegisteredAt: now.UTC(),
			})
			pos = len(out) - 1
			index[e.Value] = pos
		}
		applyEdit(&out[pos], e)
		affected[i] = pos
	}

	for i, pos := range affected {
		fp := &out[pos]
		switch fp.LicenseType {
		case LicenseSubscription:
			if fp.ExpiryDate == nil {
				return nil, invalid(fpField(i, "expiryDate"), "is required for subscription licenses")
			}
		case LicenseLifetime:
			fp.ExpiryDate = nil
		}
	}
	return out, nil
}

func applyEdit(fp *Fingerprint, e FingerprintEdit) {
	if lt, ok := e.LicenseType.Get(); ok {
		fp.LicenseType = lt
	}
	if d, ok := e.ExpiryDate.Get(); ok {
		if d == nil {
			fp.ExpiryDate = nil
		} else {
			v := *d
			fp.ExpiryDate = &v
		}
	}
	if st, ok := e.Status.Get(); ok {
		fp.Status = st
	}
	if reason, ok := e.RevokedReason.Get(); ok {
		fp.RevokedReason = reason
	}
}

func checkLicenseType(i int, lt LicenseType) error {
	if lt == "" {
		return invalid(fpField(i, "licenseType"), "is required")
	}
	if !lt.Valid() {
		return invalid(fpField(i, "licenseType"), "must be subscription or lifetime")
	}
	return nil
}
