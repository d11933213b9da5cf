package listings

import "errors"

var (
	ErrNotFound  = errors.New("listing not found")
	ErrForbidden = errors.New("not allowed to modify this listing")
	ErrInvalid   = errors.New("invalid listing")
)
