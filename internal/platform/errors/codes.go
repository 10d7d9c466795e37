// Package errors provides structured domain errors with machine-readable codes.
package errors

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown represents an unknown error.
	CodeUnknown Code = "UNKNOWN"

	// Request errors
	CodeRequestUnreadable Code = "REQUEST_UNREADABLE"

	// Rendezvous errors
	CodeRendezvousMissingKey      Code = "RENDEZVOUS_MISSING_KEY"
	CodeRendezvousMalformedBundle Code = "RENDEZVOUS_MALFORMED_BUNDLE"
)

// Reply maps domain codes to the plain-text reply clients match on.
// Clients of the rendezvous protocol compare these strings literally.
func (c Code) Reply() string {
	switch c {
	case CodeRequestUnreadable:
		return "queryString is null"
	case CodeRendezvousMissingKey:
		return "no key"
	case CodeRendezvousMalformedBundle:
		return "no ipaddress"
	default:
		return "internal error"
	}
}

// UserFacing reports whether the code is answered with a 200 reply rather
// than treated as a server failure.
func (c Code) UserFacing() bool {
	switch c {
	case CodeRequestUnreadable, CodeRendezvousMissingKey, CodeRendezvousMalformedBundle:
		return true
	default:
		return false
	}
}
