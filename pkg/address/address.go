// Package address implements the Address collaborator spec.md §3.3
// treats as external: a Bitmessage address, its Base58Check text
// form, and the tag- and ripe-derived keypairs the pubkey/broadcast
// codecs rely on.
package address

import (
	"bytes"
	"crypto/sha512"
	"errors"
	"fmt"
	"io"

	"github.com/mr-tron/base58"
	"golang.org/x/crypto/hkdf"

	"github.com/bmnet/bmobject/pkg/bmcrypto"
	"github.com/bmnet/bmobject/pkg/varint"
)

const (
	// RipeSize is the length of an address's identity hash.
	RipeSize = bmcrypto.RipeSize
	// TagSize is the length of a v4+ address's routing tag.
	TagSize = 32

	checksumSize = 4
)

var (
	ErrUnsupportedVersion = errors.New("address: unsupported version")
	ErrBadChecksum        = errors.New("address: checksum mismatch")
	ErrBadEncoding        = errors.New("address: malformed base58 text")
	ErrMissingPrefix      = errors.New("address: missing BM- prefix")
)

// Address is the collaborator interface the object codecs consume
// (spec.md §3.3, §6).
type Address interface {
	Version() uint64
	Stream() uint64
	Ripe() [RipeSize]byte
	Tag() [TagSize]byte

	SignPublicKey() []byte
	EncPublicKey() []byte
	SignPrivateKey() []byte
	EncPrivateKey() []byte

	GetPubkeyKeyPair() (priv, pub []byte)
	GetBroadcastKeyPair() (priv, pub []byte)

	Behavior() PubkeyBitfield
	NonceTrialsPerByte() uint64
	PayloadLengthExtraBytes() uint64
}

// ReferenceAddress is the reference Address implementation, grounded
// on ishbir-bitmessage-go's protocol.Address for its text codec.
type ReferenceAddress struct {
	version uint64
	stream  uint64
	ripe    [RipeSize]byte

	signPub, signPriv []byte
	encPub, encPriv   []byte

	behavior                PubkeyBitfield
	nonceTrialsPerByte      uint64
	payloadLengthExtraBytes uint64
}

// New constructs a ReferenceAddress from a key pair's 65-byte
// uncompressed public keys and their corresponding private scalars.
func New(version, stream uint64, signPriv, signPub, encPriv, encPub []byte, behavior PubkeyBitfield, nonceTrialsPerByte, payloadLengthExtraBytes uint64) (*ReferenceAddress, error) {
	if version < 2 || version > 4 {
		return nil, ErrUnsupportedVersion
	}

	ripe, err := bmcrypto.Ripe(signPub, encPub)
	if err != nil {
		return nil, fmt.Errorf("address: derive ripe: %w", err)
	}

	return &ReferenceAddress{
		version:                 version,
		stream:                  stream,
		ripe:                    ripe,
		signPub:                 append([]byte{}, signPub...),
		signPriv:                append([]byte{}, signPriv...),
		encPub:                  append([]byte{}, encPub...),
		encPriv:                 append([]byte{}, encPriv...),
		behavior:                behavior,
		nonceTrialsPerByte:      nonceTrialsPerByte,
		payloadLengthExtraBytes: payloadLengthExtraBytes,
	}, nil
}

func (a *ReferenceAddress) Version() uint64            { return a.version }
func (a *ReferenceAddress) Stream() uint64              { return a.stream }
func (a *ReferenceAddress) Ripe() [RipeSize]byte        { return a.ripe }
func (a *ReferenceAddress) SignPublicKey() []byte       { return a.signPub }
func (a *ReferenceAddress) SignPrivateKey() []byte      { return a.signPriv }
func (a *ReferenceAddress) EncPublicKey() []byte        { return a.encPub }
func (a *ReferenceAddress) EncPrivateKey() []byte       { return a.encPriv }
func (a *ReferenceAddress) Behavior() PubkeyBitfield    { return a.behavior }
func (a *ReferenceAddress) NonceTrialsPerByte() uint64  { return a.nonceTrialsPerByte }
func (a *ReferenceAddress) PayloadLengthExtraBytes() uint64 {
	return a.payloadLengthExtraBytes
}

// Tag derives the 32-octet routing tag from (version, stream, ripe),
// meaningful only for version >= 4 (spec.md §3.3, GLOSSARY "Tag").
func (a *ReferenceAddress) Tag() [TagSize]byte {
	var out [TagSize]byte
	copy(out[:], tagDoubleHash(a.version, a.stream, a.ripe[:])[32:64])
	return out
}

// GetPubkeyKeyPair returns the keypair deterministically derived from
// the address's tag, used to encrypt/decrypt pubkey v4 (spec.md §3.3).
func (a *ReferenceAddress) GetPubkeyKeyPair() (priv, pub []byte) {
	return deterministicKeyPair(tagDoubleHash(a.version, a.stream, a.ripe[:])[:32])
}

// GetBroadcastKeyPair returns the keypair deterministically derived
// from the address's ripe (v4 senders) or tag (v5 senders), used to
// encrypt/decrypt broadcast objects (spec.md §4.5).
func (a *ReferenceAddress) GetBroadcastKeyPair() (priv, pub []byte) {
	if a.version >= 4 {
		tag := a.Tag()
		return BroadcastKeyForTag(tag)
	}
	return BroadcastKeyForRipe(a.ripe)
}

// BroadcastKeyForRipe derives the broadcast keypair a v4-or-earlier
// sender's subscribers use, keyed on the sender's ripe (spec.md
// §4.5's "well-known construction").
func BroadcastKeyForRipe(ripe [RipeSize]byte) (priv, pub []byte) {
	seed := sha512.Sum512(append([]byte("bitmessage-broadcast-ripe"), ripe[:]...))
	return deterministicKeyPair(seed[:32])
}

// BroadcastKeyForTag derives the broadcast keypair a v5 sender's
// subscribers use, keyed on the sender's tag.
func BroadcastKeyForTag(tag [TagSize]byte) (priv, pub []byte) {
	seed := sha512.Sum512(append([]byte("bitmessage-broadcast-tag"), tag[:]...))
	return deterministicKeyPair(seed[:32])
}

// tagDoubleHash computes SHA512(SHA512(varint(version) || varint(stream) || ripe)),
// whose first half seeds the tag-derived keypair and whose second half
// is the tag itself.
func tagDoubleHash(version, stream uint64, ripe []byte) []byte {
	var buf bytes.Buffer
	buf.Write(varint.Encode(version))
	buf.Write(varint.Encode(stream))
	buf.Write(ripe)

	first := sha512.Sum512(buf.Bytes())
	second := sha512.Sum512(first[:])
	return second[:]
}

// deterministicKeyPair expands a 32-byte seed with HKDF-SHA512 into a
// secp256k1 private scalar and returns it alongside the corresponding
// uncompressed public key.
func deterministicKeyPair(seed []byte) (priv, pub []byte) {
	kdf := hkdf.New(sha512.New, seed, nil, []byte("bitmessage-deterministic-keypair"))
	scalar := make([]byte, bmcrypto.PrivateKeySize)
	if _, err := io.ReadFull(kdf, scalar); err != nil {
		panic("address: hkdf expand: " + err.Error())
	}

	kp, err := bmcrypto.KeyPairFromPrivateKey(scalar)
	if err != nil {
		panic("address: derive keypair: " + err.Error())
	}
	return kp.PrivateKeyBytes(), kp.PublicKeyBytes()
}

// Encode renders the address as Base58Check text, prefixed "BM-",
// following ishbir-bitmessage-go's Address.Encode: serialize
// version/stream as VarInt, trim leading-zero bytes from ripe
// according to the version's convention, append a 4-byte checksum
// from two rounds of SHA-512, and base58-encode the result.
func (a *ReferenceAddress) Encode() (string, error) {
	ripe := a.ripe[:]

	switch a.version {
	case 2, 3:
		if ripe[0] == 0x00 {
			ripe = ripe[1:]
			if ripe[0] == 0x00 {
				ripe = ripe[1:]
			}
		}
	case 4:
		ripe = bytes.TrimLeft(ripe, "\x00")
	default:
		return "", ErrUnsupportedVersion
	}

	var body bytes.Buffer
	body.Write(varint.Encode(a.version))
	body.Write(varint.Encode(a.stream))
	body.Write(ripe)

	checksum := checksumOf(body.Bytes())
	full := append(body.Bytes(), checksum...)

	return "BM-" + base58.Encode(full), nil
}

// Decode parses a Base58Check address produced by Encode.
func Decode(text string) (*ReferenceAddress, error) {
	if len(text) < 3 || text[:3] != "BM-" {
		return nil, ErrMissingPrefix
	}

	data, err := base58.Decode(text[3:])
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadEncoding, err)
	}
	if len(data) <= checksumSize {
		return nil, ErrBadEncoding
	}

	body := data[:len(data)-checksumSize]
	checksum := data[len(data)-checksumSize:]

	if !bytes.Equal(checksum, checksumOf(body)) {
		return nil, ErrBadChecksum
	}

	version, n, rest, err := varint.Decode(body)
	if err != nil {
		return nil, fmt.Errorf("address: decode version: %w", err)
	}
	body = body[n:]
	_ = rest

	stream, n, _, err := varint.Decode(body)
	if err != nil {
		return nil, fmt.Errorf("address: decode stream: %w", err)
	}
	ripe := body[n:]

	switch version {
	case 2, 3:
		if len(ripe) > RipeSize || len(ripe) < RipeSize-2 {
			return nil, ErrBadEncoding
		}
	case 4:
		if len(ripe) == 0 || ripe[0] == 0x00 || len(ripe) > RipeSize {
			return nil, ErrBadEncoding
		}
	default:
		return nil, ErrUnsupportedVersion
	}

	var full [RipeSize]byte
	copy(full[RipeSize-len(ripe):], ripe)

	return &ReferenceAddress{
		version: version,
		stream:  stream,
		ripe:    full,
	}, nil
}

// checksumOf computes the 4-byte Bitmessage address checksum: the
// first four bytes of SHA512(SHA512(body)).
func checksumOf(body []byte) []byte {
	first := sha512.Sum512(body)
	second := sha512.Sum512(first[:])
	return second[:checksumSize]
}
