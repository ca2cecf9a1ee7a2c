package licensing

import (
	"sort"
	"time"

	"cloud.google.com/go/civil"
)

// ExpiringDevice is an active subscription device whose expiry date falls
// inside a reminder window.
type ExpiringDevice struct {
	CompanyID   string     `json:"companyId"`
	CompanyName string     `json:"companyName"`
	Email       string     `json:"email"`
	Fingerprint string     `json:"fingerprint"`
	ExpiryDate  civil.Date `json:"expiryDate"`
	DaysLeft    int        `json:"daysLeft"`
}

// ExpiringWithin lists devices of active companies that are still authorized
// today and expire within the next days calendar days, soonest first.
func ExpiringWithin(companies []Company, now time.Time, loc *time.Location, days int) []ExpiringDevice {
	if loc == nil {
		loc = time.UTC
	}
	today := civil.DateOf(now.In(loc))
	horizon := today.AddDays(days)

	var out []ExpiringDevice
	for _, c := range companies {
		if !c.Active {
			continue
		}
		for _, fp := range c.Fingerprints {
			if fp.Status != StatusActive || fp.LicenseType != LicenseSubscription || fp.ExpiryDate == nil {
				continue
			}
			expiry := *fp.ExpiryDate
			if expiry.Before(today) || expiry.After(horizon) {
				continue
			}
			out = append(out, ExpiringDevice{
				CompanyID:   c.CompanyID,
				CompanyName: c.Name,
				Email:       c.Email,
				Fingerprint: fp.Value,
				ExpiryDate:  expiry,
				DaysLeft:    expiry.DaysSince(today),
			})
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].DaysLeft != out[j].DaysLeft {
			return out[i].DaysLeft < out[j].DaysLeft
		}
		if out[i].CompanyID != out[j].CompanyID {
			return out[i].CompanyID < out[j].CompanyID
		}
		return out[i].Fingerprint < out[j].Fingerprint
	})
	return out
}
