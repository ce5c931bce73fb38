package licenseapi

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNotFound marks a resource the service reported as absent. Read operations turn it
// into an absent result; it only surfaces from composite operations that need the resource.
var ErrNotFound = errors.New("resource not found")

// ServiceError is a transport failure or a non-2xx response other than 404.
type ServiceError struct {
	Op       string
	Method   string
	Endpoint string
	// Status is 0 when no response was received.
	Status  int
	Message string
	Err     error
}

func (e *ServiceError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %s %s", e.Op, e.Method, e.Endpoint)
	if e.Status != 0 {
		fmt.Fprintf(&b, " returned %d", e.Status)
	}
	if e.Message != "" {
		fmt.Fprintf(&b, ": %s", e.Message)
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}

// AuthError means no bearer token could be obtained for the request.
type AuthError struct {
	Op  string
	Err error
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("%s: authentication failed: %v", e.Op, e.Err)
}

func (e *AuthError) Unwrap() error {
	return e.Err
}

// ValidationError is a successful response whose body lacks a required field.
type ValidationError struct {
	Op    string
	Field string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: response is missing %q", e.Op, e.Field)
}

// SetLicenseError reports a SetLicense call that failed after existing licenses were
// removed. The content is left holding none of Removed and not LicenseID.
type SetLicenseError struct {
	ContentID string
	LicenseID string
	Removed   []string
	Err       error
}

func (e *SetLicenseError) Error() string {
	if len(e.Removed) == 0 {
		return fmt.Sprintf("set license %s on %s: %v", e.LicenseID, e.ContentID, e.Err)
	}
	return fmt.Sprintf("set license %s on %s after removing %s: %v",
		e.LicenseID, e.ContentID, strings.Join(e.Removed, ", "), e.Err)
}

func (e *SetLicenseError) Unwrap() error {
	return e.Err
}
