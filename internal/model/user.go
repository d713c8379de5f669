package model

// Role names carried in the access token's "role" claim.
const (
    RoleUser      = "user"
    RoleOrganizer = "organizer"
    RoleAdmin     = "admin"
)

// Principal is the authenticated actor behind a request.  It is
// resolved from a verified access token by the identity middleware
// and is read-only to the rest of the application; accounts are
// owned by the external auth service.
//
// Fields:
//  ID          – user identifier (the token subject).
//  Role        – user, organizer or admin.
//  IsSuperuser – grants admin-equivalent rights regardless of Role.
type Principal struct {
    ID          uint64
    Role        string
    IsSuperuser bool
}

// IsAuthority reports whether p may act across all events.
func (p Principal) IsAuthority() bool {
    return p.Role == RoleAdmin || p.IsSuperuser
}

// ValidRole reports whether r is a known role name.
func ValidRole(r string) bool {
    return r == RoleUser || r == RoleOrganizer || r == RoleAdmin
}
