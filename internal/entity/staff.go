package entity

type Role string

const (
	RoleAdmin   Role = "admin"
	RoleTeacher Role = "teacher"
)

// Staff is a teacher or admin who can own leads.
type Staff struct {
	ID         int64  `json:"id"`
	Name       string `json:"name"`
	Role       Role   `json:"role"`
	CanViewAll bool   `json:"can_view_all"`
}

// Caller is the identity behind a request, as resolved by the auth layer.
type Caller struct {
	StaffID    int64
	Role       Role
	CanViewAll bool
}

func (s *Staff) AsCaller() *Caller {
	return &Caller{StaffID: s.ID, Role: s.Role, CanViewAll: s.CanViewAll}
}

// Visibility is the resolved read/write scope of a caller. When All is false
// only leads currently owned by OwnerID are in scope.
type Visibility struct {
	All     bool
	OwnerID int64
}

// Allows reports whether a lead with the given current owner is in scope.
func (v Visibility) Allows(owner *int64) bool {
	if v.All {
		return true
	}
	return owner != nil && *owner == v.OwnerID
}
