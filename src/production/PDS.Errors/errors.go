// Package pdserrors defines the error kinds shared by the ingestion,
// alarm and command services. Transports map kinds to status codes.
package pdserrors

import (
	"errors"
	"fmt"
)

// Kind classifies a failure
type Kind int

const (
	KindUnknown Kind = iota
	KindValidation
	KindDeviceNotFound
	KindInvalidCredentials
	KindNotFound
	KindStore
	KindCollaborator
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindDeviceNotFound:
		return "device_not_found"
	case KindInvalidCredentials:
		return "invalid_credentials"
	case KindNotFound:
		return "not_found"
	case KindStore:
		return "store"
	case KindCollaborator:
		return "collaborator"
	default:
		return "unknown"
	}
}

// Error carries a kind, a client-safe message and an optional cause
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil && e.Message == "" {
		return e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches on kind so callers can write errors.Is(err, pdserrors.ErrDeviceNotFound)
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Message == ""
}

// Sentinels for errors.Is checks
var (
	ErrValidation         = &Error{Kind: KindValidation}
	ErrDeviceNotFound     = &Error{Kind: KindDeviceNotFound}
	ErrInvalidCredentials = &Error{Kind: KindInvalidCredentials}
	ErrNotFound           = &Error{Kind: KindNotFound}
	ErrStore              = &Error{Kind: KindStore}
	ErrCollaborator       = &Error{Kind: KindCollaborator}
)

func Validation(format string, args ...interface{}) error {
	return &Error{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

func DeviceNotFound() error {
	return &Error{Kind: KindDeviceNotFound, Message: "Device not found"}
}

func InvalidCredentials() error {
	return &Error{Kind: KindInvalidCredentials, Message: "Invalid credentials"}
}

func NotFound(what string) error {
	return &Error{Kind: KindNotFound, Message: what + " not found"}
}

// Store wraps a store failure; the message is the driver's
func Store(err error) error {
	return &Error{Kind: KindStore, Message: err.Error(), Err: err}
}

// Collaborator wraps a push-dispatch failure
func Collaborator(err error) error {
	return &Error{Kind: KindCollaborator, Message: "push dispatch failed: " + err.Error(), Err: err}
}

// KindOf returns the kind of err, or KindUnknown
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}
