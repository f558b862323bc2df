// Package voerrors contains the typed errors the VOSpace client surfaces to
// its callers. Each kind is a distinct string type with an Is* marker method,
// so callers can test for a kind without string matching on Error().
package voerrors

import "fmt"

// NotFound is returned when a node does not exist on the server (HTTP 404).
type NotFound string

func (e NotFound) Error() string { return "vospace: node not found: " + string(e) }

// IsNotFound implements the marker interface for NotFound.
func (e NotFound) IsNotFound() {}

// PermissionDenied is returned on HTTP 401, or when the client certificate
// cannot be read.
type PermissionDenied string

func (e PermissionDenied) Error() string { return "vospace: permission denied: " + string(e) }

// IsPermissionDenied implements the marker interface for PermissionDenied.
func (e PermissionDenied) IsPermissionDenied() {}

// AlreadyExists is returned when the server reports HTTP 409 with a
// DuplicateNode body.
type AlreadyExists string

func (e AlreadyExists) Error() string { return "vospace: already exists: " + string(e) }

// IsAlreadyExists implements the marker interface for AlreadyExists.
func (e AlreadyExists) IsAlreadyExists() {}

// InvalidArgument is returned for a bad URI scheme, an illegal node name, or
// an unsupported open mode.
type InvalidArgument string

func (e InvalidArgument) Error() string { return "vospace: invalid argument: " + string(e) }

// IsInvalidArgument implements the marker interface for InvalidArgument.
func (e InvalidArgument) IsInvalidArgument() {}

// ConnectionRefused is returned when the connect loop gives up, either at
// once because the underlying error looked like an expired or invalid
// certificate rather than a transient transport failure, or after its retry
// budget runs out. pkg/vofile also returns it when a request exceeds its
// redirect limit or its 503 retry limit.
type ConnectionRefused string

func (e ConnectionRefused) Error() string { return "vospace: connection refused: " + string(e) }

// IsConnectionRefused implements the marker interface for ConnectionRefused.
func (e ConnectionRefused) IsConnectionRefused() {}

// NotConnected is returned by pkg/vofile when a redirect or a 503 retry
// would have to resend a request whose body has already been sent. It is
// not returned for a write or close on a closed stream: VOFile has no write
// method, and its Close does not check whether it was already closed.
type NotConnected string

func (e NotConnected) Error() string { return "vospace: not connected: " + string(e) }

// IsNotConnected implements the marker interface for NotConnected.
func (e NotConnected) IsNotConnected() {}

// IntegrityError is returned when a copy's MD5 or size check fails.
type IntegrityError string

func (e IntegrityError) Error() string { return "vospace: integrity error: " + string(e) }

// IsIntegrityError implements the marker interface for IntegrityError.
func (e IntegrityError) IsIntegrityError() {}

// Unexpected wraps a response status outside of the accepted set for a given
// operation, carrying the status, reason and URL, as spec'd.
type Unexpected struct {
	Status int
	Reason string
	URL    string
}

func (e *Unexpected) Error() string {
	return fmt.Sprintf("vospace: unexpected server response %s (%d) for %s", e.Reason, e.Status, e.URL)
}

// Marker interfaces, one per kind above. Callers prefer errors.As against a
// concrete kind, or one of the Is* helpers below for the common case.
type (
	// IsNotFound is implemented by errors representing a missing node.
	IsNotFound interface{ IsNotFound() }
	// IsPermissionDenied is implemented by errors representing a denied access.
	IsPermissionDenied interface{ IsPermissionDenied() }
	// IsAlreadyExists is implemented by errors representing a duplicate node.
	IsAlreadyExists interface{ IsAlreadyExists() }
	// IsInvalidArgument is implemented by errors representing a bad argument.
	IsInvalidArgument interface{ IsInvalidArgument() }
	// IsConnectionRefused is implemented by errors representing a refused connection.
	IsConnectionRefused interface{ IsConnectionRefused() }
	// IsNotConnected is implemented by errors representing use of a closed stream.
	IsNotConnected interface{ IsNotConnected() }
	// IsIntegrityError is implemented by errors representing a failed MD5/size check.
	IsIntegrityError interface{ IsIntegrityError() }
)

// IsNotFoundErr reports whether err (or something it wraps) is a NotFound.
func IsNotFoundErr(err error) bool {
	_, ok := asMarker[IsNotFound](err)
	return ok
}

// IsPermissionDeniedErr reports whether err (or something it wraps) is a PermissionDenied.
func IsPermissionDeniedErr(err error) bool {
	_, ok := asMarker[IsPermissionDenied](err)
	return ok
}

// IsAlreadyExistsErr reports whether err (or something it wraps) is an AlreadyExists.
func IsAlreadyExistsErr(err error) bool {
	_, ok := asMarker[IsAlreadyExists](err)
	return ok
}

// IsIntegrityErrorErr reports whether err (or something it wraps) is an IntegrityError.
func IsIntegrityErrorErr(err error) bool {
	_, ok := asMarker[IsIntegrityError](err)
	return ok
}

type causer interface{ Cause() error }

// asMarker walks err and its Unwrap()/Cause() chain looking for T.
func asMarker[T any](err error) (T, bool) {
	var zero T
	for err != nil {
		if m, ok := err.(T); ok {
			return m, true
		}
		switch x := err.(type) {
		case interface{ Unwrap() error }:
			err = x.Unwrap()
		case causer:
			err = x.Cause()
		default:
			return zero, false
		}
	}
	return zero, false
}
