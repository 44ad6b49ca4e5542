package bmcrypto

import (
	"crypto/sha512"
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	btcecdsa "github.com/btcsuite/btcd/btcec/v2/ecdsa"
)

// secp256k1 key and signature sizes (spec.md §3.3/§3.4).
const (
	// PrivateKeySize is the size of a raw secp256k1 scalar.
	PrivateKeySize = 32

	// PublicKeySize is the size of an uncompressed secp256k1 point,
	// including the leading 0x04 marker.
	PublicKeySize = 65

	// PublicKeyPointSize is the size of an uncompressed point with the
	// leading marker stripped, as carried on the wire inside object
	// payloads (spec.md §3.4).
	PublicKeyPointSize = 64

	uncompressedMarker = 0x04
)

// Errors returned by the secp256k1 key and signature helpers.
var (
	ErrInvalidPrivateKey = errors.New("bmcrypto: invalid secp256k1 private key")
	ErrInvalidPublicKey  = errors.New("bmcrypto: invalid secp256k1 public key")
)

// KeyPair is a secp256k1 key pair.
type KeyPair struct {
	priv *btcec.PrivateKey
}

// GenerateKeyPair creates a new secp256k1 key pair.
// This implements the keypair half of Crypto_GenerateKeyPair in the
// same shape as the teacher's P256GenerateKeyPair.
func GenerateKeyPair() (*KeyPair, error) {
	priv, err := btcec.NewPrivateKey()
	if err != nil {
		return nil, fmt.Errorf("bmcrypto: generate key pair: %w", err)
	}
	return &KeyPair{priv: priv}, nil
}

// KeyPairFromPrivateKey reconstructs a key pair from a raw 32-byte
// scalar.
func KeyPairFromPrivateKey(privateKey []byte) (*KeyPair, error) {
	if len(privateKey) != PrivateKeySize {
		return nil, ErrInvalidPrivateKey
	}
	priv, _ := btcec.PrivKeyFromBytes(privateKey)
	return &KeyPair{priv: priv}, nil
}

// PrivateKeyBytes returns the raw 32-byte private scalar.
func (kp *KeyPair) PrivateKeyBytes() []byte {
	return kp.priv.Serialize()
}

// PublicKeyBytes returns the 65-byte uncompressed public key
// (0x04 || X || Y).
func (kp *KeyPair) PublicKeyBytes() []byte {
	return kp.priv.PubKey().SerializeUncompressed()
}

// StripPrefix removes the leading 0x04 marker from an uncompressed
// public key, producing the 64-byte form carried inside object
// payloads (spec.md §3.4 invariant).
func StripPrefix(pub []byte) ([]byte, error) {
	if len(pub) != PublicKeySize || pub[0] != uncompressedMarker {
		return nil, ErrInvalidPublicKey
	}
	out := make([]byte, PublicKeyPointSize)
	copy(out, pub[1:])
	return out, nil
}

// RestorePrefix prepends the 0x04 marker to a 64-byte bare point,
// reversing StripPrefix on decode.
func RestorePrefix(point []byte) ([]byte, error) {
	if len(point) != PublicKeyPointSize {
		return nil, ErrInvalidPublicKey
	}
	out := make([]byte, PublicKeySize)
	out[0] = uncompressedMarker
	copy(out[1:], point)
	return out, nil
}

func parsePublicKey(pub []byte) (*btcec.PublicKey, error) {
	if len(pub) != PublicKeySize || pub[0] != uncompressedMarker {
		return nil, ErrInvalidPublicKey
	}
	pk, err := btcec.ParsePubKey(pub)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPublicKey, err)
	}
	return pk, nil
}

// Sign produces a DER-encoded ECDSA signature over SHA-512(data) using
// a secp256k1 private key, mirroring the teacher's P256Sign but with
// Bitmessage's curve and DER (rather than fixed r||s) signature
// encoding (spec.md §3.4).
func Sign(priv []byte, data []byte) ([]byte, error) {
	if len(priv) != PrivateKeySize {
		return nil, ErrInvalidPrivateKey
	}
	pk, _ := btcec.PrivKeyFromBytes(priv)
	digest := sha512.Sum512(data)
	sig := btcecdsa.Sign(pk, digest[:32])
	return sig.Serialize(), nil
}

// Verify checks a DER-encoded ECDSA signature over SHA-512(data)
// (truncated to 32 bytes, matching Sign) under an uncompressed
// secp256k1 public key.
func Verify(pub []byte, data []byte, sig []byte) bool {
	pk, err := parsePublicKey(pub)
	if err != nil {
		return false
	}
	parsed, err := btcecdsa.ParseDERSignature(sig)
	if err != nil {
		return false
	}
	digest := sha512.Sum512(data)
	return parsed.Verify(digest[:32], pk)
}
