package util

import "errors"

var (
	ErrUnauthorized        = errors.New("unauthorized")
	ErrNotFound            = errors.New("not found")
	ErrIdentityUnavailable = errors.New("identity provider unavailable")
	ErrCompanyUnavailable  = errors.New("company registry unavailable")
)
