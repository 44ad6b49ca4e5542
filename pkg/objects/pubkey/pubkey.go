// Package pubkey implements the pubkey object codec: publishes a
// sender's signing and encryption public keys, in three on-wire
// shapes depending on address version (spec.md §4.3).
package pubkey

import (
	"context"
	"encoding/binary"
	"time"

	"github.com/bmnet/bmobject/internal/asyncutil"
	"github.com/bmnet/bmobject/pkg/address"
	"github.com/bmnet/bmobject/pkg/bmcrypto"
	"github.com/bmnet/bmobject/pkg/candidates"
	"github.com/bmnet/bmobject/pkg/object"
	"github.com/bmnet/bmobject/pkg/pow"
	"github.com/bmnet/bmobject/pkg/varint"
	"github.com/bmnet/bmobject/pkg/wire"
)

// EncodeOptions configures Encode/EncodePayload (spec.md §6.2).
type EncodeOptions struct {
	Now     func() time.Time
	TTL     time.Duration
	From    address.Address
	SkipPow bool
}

// DecodeOptions configures Decode/DecodePayload. Needed supplies the
// candidate addresses used to resolve a v4 tag (spec.md §4.3's
// opts.needed).
type DecodeOptions struct {
	object.Options
	Needed candidates.Candidates
}

// Decoded is the result of Decode/DecodePayload.
type Decoded struct {
	Header                  object.Header
	Behavior                address.PubkeyBitfield
	SignPublicKey           []byte
	EncPublicKey            []byte
	NonceTrialsPerByte      uint64
	PayloadLengthExtraBytes uint64
	// Length reports the number of objectPayload bytes actually
	// consumed (for v4, the ciphertext is opaque past the tag, so
	// Length is the full objectPayload length).
	Length int
}

func now(fn func() time.Time) time.Time {
	if fn != nil {
		return fn()
	}
	return time.Now()
}

func unsignedV3Body(from address.Address) ([]byte, error) {
	signPoint, err := bmcrypto.StripPrefix(from.SignPublicKey())
	if err != nil {
		return nil, err
	}
	encPoint, err := bmcrypto.StripPrefix(from.EncPublicKey())
	if err != nil {
		return nil, err
	}

	buf := make([]byte, 4, object.PubkeyFixedSize)
	binary.BigEndian.PutUint32(buf, uint32(from.Behavior()))
	buf = append(buf, signPoint...)
	buf = append(buf, encPoint...)
	buf = append(buf, varint.Encode(from.NonceTrialsPerByte())...)
	buf = append(buf, varint.Encode(from.PayloadLengthExtraBytes())...)
	return buf, nil
}

// EncodePayload builds the nonce-prepended pubkey object payload for
// from.Version() (spec.md §4.3 Encode).
func EncodePayload(ctx context.Context, crypto bmcrypto.Crypto, solver pow.Solver, opts EncodeOptions) ([]byte, error) {
	if opts.From == nil {
		return nil, object.ErrBadLength
	}
	from := opts.From
	version := from.Version()

	var objectPayload []byte
	switch version {
	case 2:
		signPoint, err := bmcrypto.StripPrefix(from.SignPublicKey())
		if err != nil {
			return nil, err
		}
		encPoint, err := bmcrypto.StripPrefix(from.EncPublicKey())
		if err != nil {
			return nil, err
		}
		objectPayload = make([]byte, 4, object.PubkeyFixedSize)
		binary.BigEndian.PutUint32(objectPayload, uint32(from.Behavior()))
		objectPayload = append(objectPayload, signPoint...)
		objectPayload = append(objectPayload, encPoint...)

	case 3:
		body, err := unsignedV3Body(from)
		if err != nil {
			return nil, err
		}
		expiresTime := object.ExpiresTimeFromTTL(now(opts.Now), opts.TTL)
		headerPrefix := object.EncodeHeaderPrefix(expiresTime, object.Pubkey, version, from.Stream())

		sig, err := crypto.Sign(ctx, from.SignPrivateKey(), append(append([]byte{}, headerPrefix...), body...))
		if err != nil {
			return nil, object.ErrCryptoError
		}
		objectPayload = append(body, varint.Encode(uint64(len(sig)))...)
		objectPayload = append(objectPayload, sig...)

		return finishEncode(ctx, solver, opts, expiresTime, version, objectPayload)

	case 4:
		body, err := unsignedV3Body(from)
		if err != nil {
			return nil, err
		}
		tag := from.Tag()
		expiresTime := object.ExpiresTimeFromTTL(now(opts.Now), opts.TTL)
		headerPrefix := object.EncodeHeaderPrefix(expiresTime, object.Pubkey, version, from.Stream())

		signedRegion := append(append([]byte{}, headerPrefix...), tag[:]...)
		signedRegion = append(signedRegion, body...)

		sig, err := crypto.Sign(ctx, from.SignPrivateKey(), signedRegion)
		if err != nil {
			return nil, object.ErrCryptoError
		}

		plaintext := append(append([]byte{}, body...), varint.Encode(uint64(len(sig)))...)
		plaintext = append(plaintext, sig...)

		_, pubForTag := from.GetPubkeyKeyPair()
		ciphertext, err := crypto.Encrypt(ctx, pubForTag, plaintext)
		if err != nil {
			return nil, object.ErrCryptoError
		}

		objectPayload = append(append([]byte{}, tag[:]...), ciphertext...)
		return finishEncode(ctx, solver, opts, expiresTime, version, objectPayload)

	default:
		return nil, object.ErrUnsupportedVersion
	}

	expiresTime := object.ExpiresTimeFromTTL(now(opts.Now), opts.TTL)
	return finishEncode(ctx, solver, opts, expiresTime, version, objectPayload)
}

func finishEncode(ctx context.Context, solver pow.Solver, opts EncodeOptions, expiresTime uint64, version uint64, objectPayload []byte) ([]byte, error) {
	obj := object.EncodePayloadWithoutNonce(expiresTime, object.Pubkey, version, opts.From.Stream(), objectPayload)
	return object.PrependNonce(ctx, obj, opts.TTL, solver, opts.From.NonceTrialsPerByte(), opts.From.PayloadLengthExtraBytes(), opts.SkipPow)
}

// Encode builds the full framed network message for a pubkey
// announcement.
func Encode(ctx context.Context, crypto bmcrypto.Crypto, solver pow.Solver, opts EncodeOptions) ([]byte, error) {
	payload, err := EncodePayload(ctx, crypto, solver, opts)
	if err != nil {
		return nil, err
	}
	return wire.Encode("object", payload)
}

// EncodePayloadAsync is the asynchronous form of EncodePayload.
func EncodePayloadAsync(ctx context.Context, crypto bmcrypto.Crypto, solver pow.Solver, opts EncodeOptions) *asyncutil.Future[[]byte] {
	return asyncutil.Go(func() ([]byte, error) { return EncodePayload(ctx, crypto, solver, opts) })
}

// EncodeAsync is the asynchronous form of Encode.
func EncodeAsync(ctx context.Context, crypto bmcrypto.Crypto, solver pow.Solver, opts EncodeOptions) *asyncutil.Future[[]byte] {
	return asyncutil.Go(func() ([]byte, error) { return Encode(ctx, crypto, solver, opts) })
}

// DecodePayload parses a nonce-prepended pubkey object payload
// (spec.md §4.3 Decode).
func DecodePayload(ctx context.Context, crypto bmcrypto.Crypto, buf []byte, opts DecodeOptions) (Decoded, error) {
	if len(buf) < 8 {
		return Decoded{}, object.ErrBadLength
	}
	nonce := binary.BigEndian.Uint64(buf[:8])
	rest := buf[8:]

	envOpts := opts.Options
	envOpts.AllowTypes = []object.ObjectType{object.Pubkey}

	h, payload, err := object.DecodePayload(rest, envOpts)
	if err != nil {
		return Decoded{}, err
	}
	h.Nonce = nonce

	headerPrefix := object.EncodeHeaderPrefix(h.ExpiresTime, h.ObjectType, h.Version, h.Stream)

	switch h.Version {
	case 2:
		fixed, n, err := object.ExtractPubkey(payload)
		if err != nil {
			return Decoded{}, err
		}
		if n != len(payload) {
			return Decoded{}, object.ErrBadLength
		}
		return Decoded{
			Header:        h,
			Behavior:      fixed.Behavior,
			SignPublicKey: fixed.SignPublicKey,
			EncPublicKey:  fixed.EncPublicKey,
			Length:        n,
		}, nil

	case 3:
		ext, n, err := object.ExtractPubkeyV3(payload)
		if err != nil {
			return Decoded{}, err
		}
		sigLen, nSig, rest2, err := varint.Decode(payload[n:])
		if err != nil {
			return Decoded{}, object.ErrBadLength
		}
		if uint64(len(rest2)) < sigLen {
			return Decoded{}, object.ErrBadLength
		}
		sig := rest2[:sigLen]
		unsignedLen := n

		signedRegion := append(append([]byte{}, headerPrefix...), payload[:unsignedLen]...)
		ok, err := crypto.Verify(ctx, ext.SignPublicKey, signedRegion, sig)
		if err != nil {
			return Decoded{}, object.ErrCryptoError
		}
		if !ok {
			return Decoded{}, object.ErrSignatureInvalid
		}

		return Decoded{
			Header:                  h,
			Behavior:                ext.Behavior,
			SignPublicKey:           ext.SignPublicKey,
			EncPublicKey:            ext.EncPublicKey,
			NonceTrialsPerByte:      ext.NonceTrialsPerByte,
			PayloadLengthExtraBytes: ext.PayloadLengthExtraBytes,
			Length:                  n + nSig + int(sigLen),
		}, nil

	case 4:
		if len(payload) < 32 {
			return Decoded{}, object.ErrBadLength
		}
		var tag [32]byte
		copy(tag[:], payload[:32])
		ciphertext := payload[32:]

		matched, ok := opts.Needed.FindByTag(tag)
		if !ok {
			return Decoded{}, object.ErrNotInterested
		}

		priv, _ := matched.GetPubkeyKeyPair()
		plaintext, err := crypto.Decrypt(ctx, priv, ciphertext)
		if err != nil {
			return Decoded{}, object.ErrCryptoError
		}

		ext, n, err := object.ExtractPubkeyV3(plaintext)
		if err != nil {
			return Decoded{}, err
		}
		sigLen, nSig, rest2, err := varint.Decode(plaintext[n:])
		if err != nil {
			return Decoded{}, object.ErrBadLength
		}
		if uint64(len(rest2)) < sigLen {
			return Decoded{}, object.ErrBadLength
		}
		sig := rest2[:sigLen]

		signedRegion := append(append([]byte{}, headerPrefix...), tag[:]...)
		signedRegion = append(signedRegion, plaintext[:n]...)

		ok, err = crypto.Verify(ctx, ext.SignPublicKey, signedRegion, sig)
		if err != nil {
			return Decoded{}, object.ErrCryptoError
		}
		if !ok {
			return Decoded{}, object.ErrSignatureInvalid
		}
		_ = nSig

		return Decoded{
			Header:                  h,
			Behavior:                ext.Behavior,
			SignPublicKey:           ext.SignPublicKey,
			EncPublicKey:            ext.EncPublicKey,
			NonceTrialsPerByte:      ext.NonceTrialsPerByte,
			PayloadLengthExtraBytes: ext.PayloadLengthExtraBytes,
			Length:                  len(payload),
		}, nil

	default:
		return Decoded{}, object.ErrUnsupportedVersion
	}
}

// Decode unwraps a framed network message and parses its pubkey
// payload.
func Decode(ctx context.Context, crypto bmcrypto.Crypto, buf []byte, opts DecodeOptions) (Decoded, error) {
	command, payload, err := wire.Decode(buf)
	if err != nil {
		return Decoded{}, err
	}
	if command != "object" {
		return Decoded{}, object.ErrBadCommand
	}
	return DecodePayload(ctx, crypto, payload, opts)
}

// DecodePayloadAsync is the asynchronous form of DecodePayload.
func DecodePayloadAsync(ctx context.Context, crypto bmcrypto.Crypto, buf []byte, opts DecodeOptions) *asyncutil.Future[Decoded] {
	return asyncutil.Go(func() (Decoded, error) { return DecodePayload(ctx, crypto, buf, opts) })
}

// DecodeAsync is the asynchronous form of Decode.
func DecodeAsync(ctx context.Context, crypto bmcrypto.Crypto, buf []byte, opts DecodeOptions) *asyncutil.Future[Decoded] {
	return asyncutil.Go(func() (Decoded, error) { return Decode(ctx, crypto, buf, opts) })
}
