package object

import "errors"

// Sentinel errors for the object envelope and, by convention, the
// object codecs built on top of it (spec.md §7). Codecs compare with
// errors.Is, never error strings.
var (
	ErrBadCommand         = errors.New("object: outer envelope command is not object")
	ErrWrongType          = errors.New("object: decoded object type does not match the codec")
	ErrUnsupportedVersion = errors.New("object: version outside the codec's allowed range")
	ErrBadLength          = errors.New("object: payload shorter than required by parsed fields")
	ErrPayloadTooLarge    = errors.New("object: object exceeds the maximum payload length")
	ErrNotInterested      = errors.New("object: no candidate key matches the recipient tag")
	ErrDecryptFailed      = errors.New("object: no candidate key could decrypt the payload")
	ErrRipeMismatch       = errors.New("object: cleartext ripe does not match the decrypting identity")
	ErrKeyMismatch        = errors.New("object: reconstructed sender ripe/tag does not match the outer value")
	ErrSignatureInvalid   = errors.New("object: ecdsa signature verification failed")
	ErrCryptoError        = errors.New("object: cryptographic primitive failed")
	ErrPowCancelled       = errors.New("object: proof-of-work search was cancelled")

	// ErrExpiryOutOfWindow is returned by DecodePayload when
	// expiresTime falls outside [now-MinExpiry, now+MaxTTL]. It is not
	// one of spec.md §7's named kinds; it is a decode-time input
	// validation the envelope performs before dispatching to a codec.
	ErrExpiryOutOfWindow = errors.New("object: expiresTime outside the acceptable window")

	// ErrTrailingBytes names an unexpected-trailing-bytes condition.
	// No function in this module returns it; the pubkey v2 decoder
	// reports trailing bytes as ErrBadLength.
	ErrTrailingBytes = errors.New("object: unexpected trailing bytes")

	// ErrInconsistentSender is returned by broadcast.Encode when the
	// declared sender's keys do not reproduce its own ripe/tag
	// (spec.md §9's asymmetry note, resolved in DESIGN.md).
	ErrInconsistentSender = errors.New("object: sender address is internally inconsistent")
)
