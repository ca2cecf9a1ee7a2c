package licensing

import (
	"time"

	"cloud.google.com/go/civil"
)

// Decide turns a registry lookup result into a verdict. company is nil when
// the (companyId, deployKey) pair did not match. now is compared against
// subscription expiry at day granularity in loc; the expiry day itself is
// still authorized.
func Decide(company *Company, fingerprint string, now time.Time, loc *time.Location) Verdict {
	if company == nil {
		return Denied(DenyNotFound)
	}
	if !company.Active {
		return Denied(DenyCompanyDisabled)
	}
	fp, ok := company.fingerprint(fingerprint)
	if !ok {
		return Denied(DenyDeviceNotRegistered)
	}
	if fp.Status == StatusRevoked {
		return Denied(DenyDeviceRevoked)
	}
	if fp.LicenseType == LicenseLifetime {
		return Authorized()
	}
	if fp.ExpiryDate == nil {
		return Denied(DenySubscriptionExpired)
	}
	if loc == nil {
		loc = time.UTC
	}
	today := civil.DateOf(now.In(loc))
	if fp.ExpiryDate.Before(today) {
		return Denied(DenySubscriptionExpired)
	}
	return Authorized()
}
