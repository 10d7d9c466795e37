package domain

import (
	apperrors "github.com/louisbranch/rendezvous/internal/platform/errors"
)

// ErrMissingKey reports a put without a rendezvous key.
func ErrMissingKey() error {
	return apperrors.New(apperrors.CodeRendezvousMissingKey, "rendezvous key is required")
}

// ErrMalformedBundle reports a durable put whose bundle lacks the address field.
func ErrMalformedBundle(key string) error {
	return apperrors.WithMetadata(
		apperrors.CodeRendezvousMalformedBundle,
		"bundle has no "+FieldAddress+" field",
		map[string]string{"Key": key},
	)
}

// IsMalformedBundle reports whether err is a malformed bundle error.
func IsMalformedBundle(err error) bool {
	return apperrors.GetCode(err) == apperrors.CodeRendezvousMalformedBundle
}
