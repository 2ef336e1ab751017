// Package repository implements the persistence layer over MySQL.  This
// file defines sentinel errors reused across repositories so handlers can
// map failures to HTTP responses without string matching.
package repository

import "errors"

// ErrEmailExists is returned when registering an email that is already
// taken.  Handlers translate this into HTTP 409.
var ErrEmailExists = errors.New("email already exists")

// ErrAlreadyMember is returned when inserting a second membership for the
// same (workspace, user) pair.  The unique index is the source of truth.
var ErrAlreadyMember = errors.New("already a member")

// ErrTokenSpent is returned when redeeming an opaque or refresh token that
// is unknown, expired, or was already consumed.  Callers must not
// distinguish those cases in responses; the split exists only for logs.
var ErrTokenSpent = errors.New("token invalid or expired")
