// Package repository persists senders, beneficiaries, payment instruments and
// archived usage in PostgreSQL, with in-memory equivalents for tests and
// database-less deployments.
package repository

import "errors"

// ErrNotFound is returned when a requested record does not exist or is not owned by
// the caller.
var ErrNotFound = errors.New("record not found")
