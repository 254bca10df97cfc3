package storage

import "errors"

var (
	ErrNotFound    = errors.New("storage: not found")
	ErrInvalidKey  = errors.New("storage: invalid key")
	ErrImmutable   = errors.New("storage: immutable object mismatch")
	ErrCIDMismatch = errors.New("storage: cid mismatch")
)

func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }
