// Package bmcrypto implements the cryptographic primitives the object
// codecs depend on: secp256k1 ECDSA signing/verification, ECIES hybrid
// encryption, and RIPEMD-160 identity hashing. It is the concrete
// implementation of the Crypto collaborator interface spec.md §6.1
// treats as external.
package bmcrypto

import "context"

// Crypto is the signing/verification/encryption collaborator consumed
// by the object codecs. All methods accept a context so callers can
// cancel a suspended operation at the boundaries described in
// SPEC_FULL.md §5.
type Crypto interface {
	// Sign produces a DER-encoded ECDSA signature over data using the
	// secp256k1 private key priv (32 raw bytes).
	Sign(ctx context.Context, priv []byte, data []byte) ([]byte, error)

	// Verify reports whether sig is a valid DER-encoded ECDSA signature
	// over data under the uncompressed secp256k1 public key pub (65
	// bytes, leading 0x04).
	Verify(ctx context.Context, pub []byte, data []byte, sig []byte) (bool, error)

	// Encrypt produces an ECIES ciphertext of data under the
	// uncompressed secp256k1 public key pub.
	Encrypt(ctx context.Context, pub []byte, data []byte) ([]byte, error)

	// Decrypt recovers the plaintext of an ECIES ciphertext produced by
	// Encrypt, using the secp256k1 private key priv.
	Decrypt(ctx context.Context, priv []byte, blob []byte) ([]byte, error)
}

// secp256k1Crypto is the reference Crypto implementation used by the
// codecs and their tests.
type secp256k1Crypto struct{}

// New returns the reference secp256k1/ECIES Crypto implementation.
func New() Crypto {
	return secp256k1Crypto{}
}

func (secp256k1Crypto) Sign(ctx context.Context, priv []byte, data []byte) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return Sign(priv, data)
}

func (secp256k1Crypto) Verify(ctx context.Context, pub []byte, data []byte, sig []byte) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	return Verify(pub, data, sig), nil
}

func (secp256k1Crypto) Encrypt(ctx context.Context, pub []byte, data []byte) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return Encrypt(pub, data)
}

func (secp256k1Crypto) Decrypt(ctx context.Context, priv []byte, blob []byte) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return Decrypt(priv, blob)
}
