// Package staff manages back office employee accounts.
package staff

import (
	"time"

	"cloud.google.com/go/civil"
	"github.com/google/uuid"
)

// Employee is a back office account allowed to administer companies.
type Employee struct {
	ID           uuid.UUID  `json:"id"`
	StaffNo      string     `json:"staffNo"`
	Name         string     `json:"name"`
	Email        string     `json:"email"`
	PasswordHash string     `json:"-"`
	Phone        string     `json:"phone"`
	Address      string     `json:"address"`
	Locked       bool       `json:"isLocked"`
	DateEmployed civil.Date `json:"dateEmployed"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`
	UpdatedBy    uuid.UUID  `json:"updatedBy"`
}
