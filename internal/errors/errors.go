package errors

import "errors"

// Sync errors.
var (
	// ErrDecryption indicates an authentication-tag mismatch or a
	// malformed encrypted record. Never silently dropped: the value
	// it covers must not be written anywhere.
	ErrDecryption = errors.New("decryption failed")

	// ErrTransport indicates a network or remote-store failure. Retried
	// only by the next scheduled tick or trigger, never inline.
	ErrTransport = errors.New("remote request failed")

	// ErrFileIO indicates a local file read or write failure.
	ErrFileIO = errors.New("file I/O failed")
)

// Client errors.
var (
	ErrInvalidToken = errors.New("invalid or expired token")

	// ErrProjectNotFound indicates no project configuration was found
	// between the working directory and the filesystem root.
	ErrProjectNotFound = errors.New("project not found")
)
