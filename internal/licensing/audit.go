package licensing

import "time"

// AuditRecorder stamps actor and time on company mutations.
type AuditRecorder struct {
	now func() time.Time
}

// NewAuditRecorder builds a recorder reading time from now.
func NewAuditRecorder(now func() time.Time) *AuditRecorder {
	if now == nil {
		now = time.Now
	}
	return &AuditRecorder{now: now}
}

// StampCreate sets the creation and update trail.
func (r *AuditRecorder) StampCreate(c *Company, actor Actor) {
	at := r.now().UTC()
	c.CreatedAt = at
	c.CreatedBy = actor.ID
	c.UpdatedAt = at
	c.UpdatedBy = actor.ID
}

// StampUpdate sets the update trail.
func (r *AuditRecorder) StampUpdate(c *Company, actor Actor) {
	c.UpdatedAt = r.now().UTC()
	c.UpdatedBy = actor.ID
}
