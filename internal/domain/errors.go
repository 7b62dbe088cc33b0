package domain

import "errors"

var (
	// ErrConflict is returned by a non-override insert over an existing id.
	ErrConflict = errors.New("record id already exists")

	// ErrNotFound is returned by point lookups that must resolve.
	ErrNotFound = errors.New("record not found")

	// ErrPermissionDenied reports a backup directory that cannot be
	// written to. The sink keeps running; callers surface this to the UI.
	ErrPermissionDenied = errors.New("backup directory write permission denied")
)
