package session

import "errors"

// ErrNotFound is returned when a key does not map to a session.
var ErrNotFound = errors.New("session not found")

// KeyError reports the key an operation failed on.
type KeyError struct {
	Op  string
	Key string
	Err error
}

func (e *KeyError) Error() string {
	return "session: " + e.Op + " " + e.Key + ": " + e.Err.Error()
}

func (e *KeyError) Unwrap() error {
	return e.Err
}

func notFound(op, key string) error {
	return &KeyError{Op: op, Key: key, Err: ErrNotFound}
}
