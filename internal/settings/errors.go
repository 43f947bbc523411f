package settings

import "errors"

var (
	// ErrEmptyKey is returned when a Get or Set is made with an empty key.
	ErrEmptyKey = errors.New("settings: empty key")
)
