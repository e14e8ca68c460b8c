package apperr

import "errors"

var (
	ErrNotFound      = errors.New("not found")
	ErrParse         = errors.New("unparseable link")
	ErrUnmappedVault = errors.New("vault not mapped")
)
