package storage

import "errors"

var (
	// ErrNotFound indicates no blob exists at the key.
	ErrNotFound = errors.New("blob not found")
	// ErrExists indicates a write to a key that already holds a blob.
	ErrExists = errors.New("blob already exists")
	// ErrEmptyKey indicates an empty key.
	ErrEmptyKey = errors.New("storage key must not be empty")
	// ErrInvalidKey indicates an absolute key or one with a ".." segment.
	ErrInvalidKey = errors.New("storage key contains invalid path segment")
	// ErrNotConfigured indicates neither a connection string nor a service URL was provided.
	ErrNotConfigured = errors.New("storage not configured")
)
