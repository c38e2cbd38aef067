package storage

import "errors"

// ErrNotFound is returned when an account lookup matches no row. Callers test
// it with errors.Is; the fixture store wraps the same sentinel.
var ErrNotFound = errors.New("storage: not found")
