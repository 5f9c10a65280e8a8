package errors

import "errors"

// Kind tells a caller what it can do about a failure.
type Kind int

const (
	// KindUnknown is any error outside the cryptographic taxonomy.
	KindUnknown Kind = iota
	// KindRetry failures can be recovered by re-prompting or re-fetching.
	KindRetry
	// KindUnavailable failures make one item permanently unavailable to this user.
	KindUnavailable
	// KindSecurity failures must be surfaced as a security violation and audited.
	KindSecurity
)

func (k Kind) String() string {
	switch k {
	case KindRetry:
		return "retry"
	case KindUnavailable:
		return "unavailable"
	case KindSecurity:
		return "security"
	default:
		return "unknown"
	}
}

// Classify maps err to a Kind. Security errors take precedence, so an invite
// that failed because of a bad signature is classified as a security event.
func Classify(err error) Kind {
	switch {
	case err == nil:
		return KindUnknown
	case errors.Is(err, ErrSignatureVerification),
		errors.Is(err, ErrUntrusted),
		errors.Is(err, ErrInviteAccept):
		return KindSecurity
	case errors.Is(err, ErrDecryption),
		errors.Is(err, ErrNoUsableKey),
		errors.Is(err, ErrUnsupportedFormat),
		errors.Is(err, ErrMalformedContent):
		return KindUnavailable
	case errors.Is(err, ErrKeyUnlock),
		errors.Is(err, ErrStaleRevision):
		return KindRetry
	default:
		return KindUnknown
	}
}

// Is reports whether any error in err's tree matches target.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's tree that matches target.
func As(err error, target any) bool {
	return errors.As(err, target)
}
