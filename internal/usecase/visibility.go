package usecase

import (
	"github.com/xavierca1/leadpool/internal/entity"
)

// ResolveVisibility turns the caller into the scope every lead query and
// write is restricted to. It is evaluated per request: ownership changes
// over time, so the result must not be cached.
func ResolveVisibility(caller *entity.Caller) (entity.Visibility, error) {
	if caller == nil || caller.StaffID <= 0 {
		return entity.Visibility{}, &DomainError{Code: CodeUnauthenticated, Message: "caller identity is required"}
	}
	if caller.CanViewAll || caller.Role == entity.RoleAdmin {
		return entity.Visibility{All: true}, nil
	}
	return entity.Visibility{OwnerID: caller.StaffID}, nil
}
