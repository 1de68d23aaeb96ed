package auth

import "strings"

// Identity is the authenticated caller as seen by the leave engine.
// StaffMemberID is nil for callers without a staff record.
type Identity struct {
	UserID        string   `json:"userId"`
	TenantID      string   `json:"tenantId"`
	StaffMemberID *int64   `json:"staffMemberId,omitempty"`
	Roles         []string `json:"roles"`
}

func (i Identity) HasStaffRecord() bool {
	return i.StaffMemberID != nil
}

// Owns reports whether staffMemberID is the caller's own staff record.
func (i Identity) Owns(staffMemberID int64) bool {
	return i.StaffMemberID != nil && *i.StaffMemberID == staffMemberID
}

// Policy decides admin versus self-service access. The set of admin roles is
// configuration; role names are compared case-insensitively.
type Policy struct {
	adminRoles map[string]struct{}
}

func NewPolicy(adminRoles []string) Policy {
	roles := make(map[string]struct{}, len(adminRoles))
	for _, role := range adminRoles {
		if role = normalizeRole(role); role != "" {
			roles[role] = struct{}{}
		}
	}
	return Policy{adminRoles: roles}
}

func (p Policy) IsAdmin(id Identity) bool {
	for _, role := range id.Roles {
		if _, ok := p.adminRoles[normalizeRole(role)]; ok {
			return true
		}
	}
	return false
}

// CanActFor allows admins on any staff member and everyone else on their own.
func (p Policy) CanActFor(id Identity, staffMemberID int64) bool {
	return p.IsAdmin(id) || id.Owns(staffMemberID)
}

// ScopeStaff narrows a requested staff filter to what the caller may see.
// Admins keep the requested filter (nil meaning everyone). Self-service
// callers are always pinned to their own record; ok is false when they have
// none or asked for someone else.
func (p Policy) ScopeStaff(id Identity, requested *int64) (scoped *int64, ok bool) {
	if p.IsAdmin(id) {
		return requested, true
	}
	if id.StaffMemberID == nil {
		return nil, false
	}
	if requested != nil && *requested != *id.StaffMemberID {
		return nil, false
	}
	own := *id.StaffMemberID
	return &own, true
}

func normalizeRole(role string) string {
	return strings.ToLower(strings.TrimSpace(role))
}
