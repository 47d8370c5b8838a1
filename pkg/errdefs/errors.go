// Package errdefs defines the error taxonomy shared by every alctl
// component. Errors carry a Kind, a human-readable reason, ordered
// remediation steps, and a context map instead of relying on error
// subtypes for control flow.
package errdefs

import (
	"errors"
	"fmt"
	"strings"
)

// Kind classifies a failure into one of the disjoint categories the CLI
// reports on. Each kind maps to a distinct process exit code.
type Kind int

const (
	// KindInternal is an unclassified failure. Stack traces are shown
	// and the operator is prompted to file a report.
	KindInternal Kind = iota
	// KindValidation is bad or missing configuration. Never retried.
	KindValidation
	// KindBuild is a tool-specific compile/install failure. Fix locally
	// and retry; never retried automatically.
	KindBuild
	// KindAuthentication is a missing or expired credential.
	KindAuthentication
	// KindResource is a cloud resource-provisioning failure
	// (quota, SKU, authorization, verification timeout).
	KindResource
	// KindPermissionGrant is an identity-provider grant-step failure.
	KindPermissionGrant
	// KindRetryExhausted wraps any error after repeated transient
	// failure. Explicitly a system/infrastructure error.
	KindRetryExhausted
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindBuild:
		return "build"
	case KindAuthentication:
		return "authentication"
	case KindResource:
		return "resource"
	case KindPermissionGrant:
		return "permission-grant"
	case KindRetryExhausted:
		return "retry-exhausted"
	default:
		return "internal"
	}
}

// ExitCode returns the process exit code for the kind. Zero is reserved
// for success and never returned here.
func (k Kind) ExitCode() int {
	switch k {
	case KindValidation:
		return 2
	case KindBuild:
		return 3
	case KindAuthentication:
		return 4
	case KindResource:
		return 5
	case KindPermissionGrant:
		return 6
	case KindRetryExhausted:
		return 7
	default:
		return 1
	}
}

// UserError reports whether the kind represents an operator-fixable
// failure. Stack traces are suppressed for user errors.
func (k Kind) UserError() bool {
	switch k {
	case KindValidation, KindBuild, KindAuthentication, KindResource:
		return true
	default:
		return false
	}
}

// Error is the structured failure type surfaced to the operator.
type Error struct {
	Kind       Kind
	Op         string            // operation that failed, e.g. "provision.EnsurePlan"
	Reason     string            // short description of what went wrong
	Mitigation []string          // ordered concrete remediation steps
	Context    map[string]string // structured fields (resource name, region, ...)
	Err        error             // underlying cause
}

func (e *Error) Error() string {
	var b strings.Builder
	if e.Op != "" {
		b.WriteString(e.Op)
		b.WriteString(": ")
	}
	b.WriteString(e.Reason)
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

// Code returns the error code shown to the operator, e.g. "ERR_RESOURCE".
func (e *Error) Code() string {
	return "ERR_" + strings.ToUpper(strings.ReplaceAll(e.Kind.String(), "-", "_"))
}

// New creates an Error of the given kind.
func New(kind Kind, op, reason string) *Error {
	return &Error{Kind: kind, Op: op, Reason: reason}
}

// Wrap creates an Error of the given kind around an underlying cause.
func Wrap(kind Kind, op, reason string, err error) *Error {
	return &Error{Kind: kind, Op: op, Reason: reason, Err: err}
}

// WithMitigation appends remediation steps and returns the same error.
func (e *Error) WithMitigation(steps ...string) *Error {
	e.Mitigation = append(e.Mitigation, steps...)
	return e
}

// WithContext records a structured context field and returns the same error.
func (e *Error) WithContext(key, value string) *Error {
	if e.Context == nil {
		e.Context = make(map[string]string)
	}
	e.Context[key] = value
	return e
}

// KindOf extracts the Kind from an error chain. Unrecognized errors are
// KindInternal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// ExitCode returns the process exit code for an arbitrary error.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	return KindOf(err).ExitCode()
}

// IsKind reports whether any error in the chain has the given kind.
func IsKind(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}
