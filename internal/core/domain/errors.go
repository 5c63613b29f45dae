package domain

import (
	"errors"
	"fmt"
)

// Code is a machine-readable error code.
type Code string

const (
	CodeInvalidRequest    Code = "INVALID_REQUEST"
	CodeUnknownSkill      Code = "UNKNOWN_SKILL"
	CodeSnapshotNotFound  Code = "SNAPSHOT_NOT_FOUND"
	CodeSnapshotExists    Code = "SNAPSHOT_EXISTS"
	CodeRegionNotFound    Code = "REGION_NOT_FOUND"
	CodeControlConflict   Code = "CONTROL_CONFLICT"
	CodeApprovalRequired  Code = "APPROVAL_REQUIRED"
	CodePlanNotFound      Code = "PLAN_NOT_FOUND"
	CodeActionNotFound    Code = "ACTION_NOT_FOUND"
	CodeInvalidTransition Code = "INVALID_TRANSITION"
	CodeCommandNotFound   Code = "MAINTENANCE_COMMAND_NOT_FOUND"
	CodeMaintenanceActive Code = "MAINTENANCE_ACTIVE"
	CodeNotFound          Code = "NOT_FOUND"
)

// Kind groups codes into the failure classes callers branch on.
type Kind string

const (
	KindStructural       Kind = "structural"
	KindNotFound         Kind = "not_found"
	KindConflict         Kind = "conflict"
	KindApprovalRequired Kind = "approval_required"
	KindUnavailable      Kind = "unavailable"
)

// Kind reports the failure class of the code.
func (c Code) Kind() Kind {
	switch c {
	case CodeInvalidRequest:
		return KindStructural
	case CodeUnknownSkill, CodeSnapshotNotFound, CodeRegionNotFound, CodePlanNotFound,
		CodeActionNotFound, CodeCommandNotFound, CodeNotFound:
		return KindNotFound
	case CodeSnapshotExists, CodeControlConflict, CodeInvalidTransition:
		return KindConflict
	case CodeApprovalRequired:
		return KindApprovalRequired
	case CodeMaintenanceActive:
		return KindUnavailable
	}
	return KindStructural
}

// Error is the domain error type with structured metadata.
type Error struct {
	Code     Code
	Message  string
	Metadata map[string]string
	Cause    error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error by code.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Code == t.Code
	}
	return false
}

func NewError(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

func WithMetadata(code Code, message string, metadata map[string]string) *Error {
	return &Error{Code: code, Message: message, Metadata: metadata}
}

func Wrap(code Code, message string, cause error) *Error {
	return &Error{Code: code, Message: message, Cause: cause}
}

// Sentinels for errors.Is matching. Only the code is compared.
var (
	ErrInvalidRequest    = NewError(CodeInvalidRequest, "invalid request")
	ErrUnknownSkill      = NewError(CodeUnknownSkill, "unknown skill")
	ErrSnapshotNotFound  = NewError(CodeSnapshotNotFound, "snapshot not found")
	ErrSnapshotExists    = NewError(CodeSnapshotExists, "snapshot already recorded")
	ErrRegionNotFound    = NewError(CodeRegionNotFound, "region not found")
	ErrControlConflict   = NewError(CodeControlConflict, "region control changed concurrently")
	ErrApprovalRequired  = NewError(CodeApprovalRequired, "approval required")
	ErrPlanNotFound      = NewError(CodePlanNotFound, "mitigation plan not found")
	ErrActionNotFound    = NewError(CodeActionNotFound, "mitigation action not found")
	ErrInvalidTransition = NewError(CodeInvalidTransition, "invalid state transition")
	ErrCommandNotFound   = NewError(CodeCommandNotFound, "maintenance command not found")
	ErrMaintenanceActive = NewError(CodeMaintenanceActive, "maintenance in progress")
	ErrNotFound          = NewError(CodeNotFound, "not found")
)

// Invalid builds a structural error from one or more field problems.
func Invalid(problems ...error) *Error {
	return Wrap(CodeInvalidRequest, "invalid request", errors.Join(problems...))
}

// CodeOf extracts the domain code from err, or "" when err is not a domain error.
func CodeOf(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return ""
}
