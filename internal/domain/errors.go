// Package domain provides shared domain-level sentinel errors.
package domain

import "errors"

// ErrNotFound indicates the requested entity does not exist.
var ErrNotFound = errors.New("not found")

// ErrConflict indicates a concurrent modification conflict (optimistic locking).
var ErrConflict = errors.New("conflict: resource was modified by another request")

// ErrValidation indicates a request failed domain validation.
var ErrValidation = errors.New("validation failed")

// ErrPolicy indicates an operation the review workflow forbids, such as
// recording a decision against a closed review or closing a review without
// any assigned decisions. Always surfaced, never silently corrected.
var ErrPolicy = errors.New("policy violation")

// ErrConfig indicates missing or inconsistent workflow configuration, such as
// an unmapped review chamber. Operations that hit it halt rather than fall
// back to a default.
var ErrConfig = errors.New("configuration error")
