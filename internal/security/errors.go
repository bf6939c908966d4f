package security

import "errors"

// Errors surfaced by the security envelope.
var (
	// ErrRateLimited is returned when a caller exceeded the operation
	// class's sliding-window limit. The caller must back off.
	ErrRateLimited = errors.New("rate limited")

	// ErrDecryptionFailed is returned on any ciphertext tampering or
	// corruption. The payload is unusable; never retry with the same
	// ciphertext.
	ErrDecryptionFailed = errors.New("decryption failed")

	// ErrInvalidKeySize is returned when the encryption key is not the
	// required length.
	ErrInvalidKeySize = errors.New("invalid encryption key size")
)
