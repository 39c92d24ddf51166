package memory

import "errors"

var (
	ErrNilSession  = errors.New("session is nil")
	ErrDuplicateID = errors.New("session id already stored")
)
