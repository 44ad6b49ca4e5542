package bmcrypto

import (
	"crypto/sha512"

	"golang.org/x/crypto/ripemd160" //nolint:staticcheck // ripemd160 is required by the wire format, not a choice
)

// RipeSize is the size of a Bitmessage identity hash.
const RipeSize = 20

// Ripe derives the 20-byte identity hash of a key pair: SHA-512 over
// the concatenated bare (no 0x04 marker) signing and encryption public
// keys, followed by RIPEMD-160 (spec.md GLOSSARY "RIPE").
func Ripe(signPub, encPub []byte) ([RipeSize]byte, error) {
	var out [RipeSize]byte

	signPoint, err := StripPrefix(signPub)
	if err != nil {
		return out, err
	}
	encPoint, err := StripPrefix(encPub)
	if err != nil {
		return out, err
	}

	sha := sha512.New()
	sha.Write(signPoint)
	sha.Write(encPoint)

	ripe := ripemd160.New()
	ripe.Write(sha.Sum(nil))

	copy(out[:], ripe.Sum(nil))
	return out, nil
}
