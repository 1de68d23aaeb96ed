package staff

import (
	"errors"
	"time"
)

const (
	StatusActive   = "active"
	StatusInactive = "inactive"
)

var ErrNotFound = errors.New("staff member not found")

type StaffMember struct {
	ID        int64     `json:"id"`
	TenantID  string    `json:"tenantId"`
	UserID    string    `json:"userId,omitempty"`
	FirstName string    `json:"firstName"`
	LastName  string    `json:"lastName"`
	Email     string    `json:"email"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (m StaffMember) Active() bool {
	return m.Status == StatusActive
}

func (m StaffMember) FullName() string {
	switch {
	case m.FirstName == "":
		return m.LastName
	case m.LastName == "":
		return m.FirstName
	}
	return m.FirstName + " " + m.LastName
}
