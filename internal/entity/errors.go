package entity

import "errors"

var (
	ErrLeadNotFound  = errors.New("lead not found")
	ErrStaffNotFound = errors.New("staff not found")
	ErrUnavailable   = errors.New("storage unavailable")
)
