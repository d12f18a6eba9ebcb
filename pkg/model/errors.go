package model

import "errors"

// Configuration errors
var (
	// ErrNoBackendRegistered is returned when no crypto function is registered for a tag
	ErrNoBackendRegistered = errors.New("NO_BACKEND_REGISTERED")

	// ErrUnsupportedAlgorithm is returned when a key tag does not match the requested operation
	ErrUnsupportedAlgorithm = errors.New("UNSUPPORTED_ALGORITHM")

	// ErrDuplicateRegistration is returned when a code or function is registered twice
	ErrDuplicateRegistration = errors.New("DUPLICATE_REGISTRATION")

	// ErrRegistryFrozen is returned when registering after the registry has been used
	ErrRegistryFrozen = errors.New("REGISTRY_FROZEN")
)

// Input validation errors
var (
	// ErrInvalidDateTimeStamp is returned for timestamps without a mandatory timezone designator
	ErrInvalidDateTimeStamp = errors.New("INVALID_DATETIMESTAMP")

	// ErrInvalidMultibase is returned for an unknown or malformed multibase string
	ErrInvalidMultibase = errors.New("INVALID_MULTIBASE")

	// ErrUnknownMulticodec is returned for an unrecognized multicodec varint prefix
	ErrUnknownMulticodec = errors.New("UNKNOWN_MULTICODEC")

	// ErrTruncatedInput is returned when a multicodec payload ends inside the varint or key bytes
	ErrTruncatedInput = errors.New("TRUNCATED_INPUT")

	// ErrInvalidJwtStructure is returned when a compact JWT does not have exactly two dots
	ErrInvalidJwtStructure = errors.New("INVALID_JWT_STRUCTURE")

	// ErrEmptySalt is returned for a disclosure with no salt
	ErrEmptySalt = errors.New("EMPTY_SALT")

	// ErrSaltTooShort is returned for a disclosure salt under 128 bits
	ErrSaltTooShort = errors.New("SALT_TOO_SHORT")

	// ErrReservedClaimName is returned when a disclosure names _sd or ...
	ErrReservedClaimName = errors.New("RESERVED_CLAIM_NAME")
)

// Cryptographic failures. These are expected outcomes and are returned, never panicked.
var (
	// ErrSignatureInvalid is returned when a signature does not verify
	ErrSignatureInvalid = errors.New("SIGNATURE_INVALID")

	// ErrCanonicalizationFailed is returned when the injected canonicalizer fails
	ErrCanonicalizationFailed = errors.New("CANONICALIZATION_FAILED")

	// ErrHashMismatch is returned when a recomputed digest differs from the carried one
	ErrHashMismatch = errors.New("HASH_MISMATCH")
)

// Proof verification errors
var (
	// ErrNoProof is returned when a credential carries no proof entry
	ErrNoProof = errors.New("NO_PROOF")

	// ErrMissingCryptosuite is returned when a proof names no known cryptosuite
	ErrMissingCryptosuite = errors.New("MISSING_CRYPTOSUITE")

	// ErrMissingVerificationMethod is returned when a proof carries no verification method
	ErrMissingVerificationMethod = errors.New("MISSING_VERIFICATION_METHOD")

	// ErrVerificationMethodNotFound is returned when the DID document has no matching method
	ErrVerificationMethodNotFound = errors.New("VERIFICATION_METHOD_NOT_FOUND")
)

// Selective disclosure errors
var (
	// ErrDisclosureDigestUnknown is returned when a disclosure digest appears nowhere in the token
	ErrDisclosureDigestUnknown = errors.New("DISCLOSURE_DIGEST_UNKNOWN")

	// ErrDescendantRevealedBeforeAncestor is returned when a reveal skips a redacted ancestor
	ErrDescendantRevealedBeforeAncestor = errors.New("DESCENDANT_REVEALED_BEFORE_ANCESTOR")

	// ErrDisclosureNotInToken is returned when a selected disclosure is not part of the token
	ErrDisclosureNotInToken = errors.New("DISCLOSURE_NOT_IN_TOKEN")

	// ErrDuplicateDigest is returned when the same digest occurs more than once in a payload
	ErrDuplicateDigest = errors.New("DUPLICATE_DIGEST")
)

// Resource errors
var (
	// ErrPoolExhaustion is returned when the sensitive memory pool cannot satisfy a request
	ErrPoolExhaustion = errors.New("POOL_EXHAUSTION")

	// ErrAlreadyReleased is returned on use of a released sensitive buffer
	ErrAlreadyReleased = errors.New("ALREADY_RELEASED")

	// ErrCancelled is returned when an operation observes context cancellation
	ErrCancelled = errors.New("CANCELLED")

	// ErrTimedOut is returned when a per-child assessor deadline is exceeded
	ErrTimedOut = errors.New("TIMED_OUT")
)
