// Package getpubkey implements the getpubkey object codec: a request
// for an unknown public key, keyed by the recipient's ripe (v2/v3) or
// tag (v4) (spec.md §4.2).
package getpubkey

import (
	"context"
	"encoding/binary"
	"time"

	"github.com/bmnet/bmobject/internal/asyncutil"
	"github.com/bmnet/bmobject/pkg/address"
	"github.com/bmnet/bmobject/pkg/object"
	"github.com/bmnet/bmobject/pkg/pow"
	"github.com/bmnet/bmobject/pkg/wire"
)

// EncodeOptions configures Encode/EncodePayload (spec.md §6.2).
type EncodeOptions struct {
	Now     func() time.Time
	TTL     time.Duration
	To      address.Address
	SkipPow bool
}

// Decoded is the result of Decode/DecodePayload.
type Decoded struct {
	Header object.Header
	Ripe   [20]byte // valid for version 2/3
	Tag    [32]byte // valid for version 4
}

func now(fn func() time.Time) time.Time {
	if fn != nil {
		return fn()
	}
	return time.Now()
}

// EncodePayload builds the nonce-prepended getpubkey object payload
// (spec.md §4.2 Encode).
func EncodePayload(ctx context.Context, solver pow.Solver, opts EncodeOptions) ([]byte, error) {
	if opts.To == nil {
		return nil, object.ErrBadLength
	}

	version := opts.To.Version()
	var body []byte
	switch {
	case version == 2 || version == 3:
		ripe := opts.To.Ripe()
		body = ripe[:]
	case version == 4:
		tag := opts.To.Tag()
		body = tag[:]
	default:
		return nil, object.ErrUnsupportedVersion
	}

	expiresTime := object.ExpiresTimeFromTTL(now(opts.Now), opts.TTL)
	obj := object.EncodePayloadWithoutNonce(expiresTime, object.GetPubkey, version, opts.To.Stream(), body)

	return object.PrependNonce(ctx, obj, opts.TTL, solver, opts.To.NonceTrialsPerByte(), opts.To.PayloadLengthExtraBytes(), opts.SkipPow)
}

// Encode builds the full framed network message for a getpubkey
// request.
func Encode(ctx context.Context, solver pow.Solver, opts EncodeOptions) ([]byte, error) {
	payload, err := EncodePayload(ctx, solver, opts)
	if err != nil {
		return nil, err
	}
	return wire.Encode("object", payload)
}

// EncodePayloadAsync is the asynchronous form of EncodePayload.
func EncodePayloadAsync(ctx context.Context, solver pow.Solver, opts EncodeOptions) *asyncutil.Future[[]byte] {
	return asyncutil.Go(func() ([]byte, error) { return EncodePayload(ctx, solver, opts) })
}

// EncodeAsync is the asynchronous form of Encode.
func EncodeAsync(ctx context.Context, solver pow.Solver, opts EncodeOptions) *asyncutil.Future[[]byte] {
	return asyncutil.Go(func() ([]byte, error) { return Encode(ctx, solver, opts) })
}

// DecodePayload parses a nonce-prepended getpubkey object payload
// (spec.md §4.2 Decode).
func DecodePayload(buf []byte, opts object.Options) (Decoded, error) {
	if len(buf) < 8 {
		return Decoded{}, object.ErrBadLength
	}
	rest := buf[8:]

	envOpts := opts
	envOpts.AllowTypes = []object.ObjectType{object.GetPubkey}

	h, payload, err := object.DecodePayload(rest, envOpts)
	if err != nil {
		return Decoded{}, err
	}
	if h.Version < 2 || h.Version > 4 {
		return Decoded{}, object.ErrUnsupportedVersion
	}

	var d Decoded
	d.Header = h
	d.Header.Nonce = binary.BigEndian.Uint64(buf[:8])

	switch h.Version {
	case 2, 3:
		if len(payload) != 20 {
			return Decoded{}, object.ErrBadLength
		}
		copy(d.Ripe[:], payload)
	case 4:
		if len(payload) != 32 {
			return Decoded{}, object.ErrBadLength
		}
		copy(d.Tag[:], payload)
	}

	return d, nil
}

// Decode unwraps a framed network message and parses its getpubkey
// payload.
func Decode(buf []byte, opts object.Options) (Decoded, error) {
	command, payload, err := wire.Decode(buf)
	if err != nil {
		return Decoded{}, err
	}
	if command != "object" {
		return Decoded{}, object.ErrBadCommand
	}
	return DecodePayload(payload, opts)
}

// DecodePayloadAsync is the asynchronous form of DecodePayload.
func DecodePayloadAsync(buf []byte, opts object.Options) *asyncutil.Future[Decoded] {
	return asyncutil.Go(func() (Decoded, error) { return DecodePayload(buf, opts) })
}

// DecodeAsync is the asynchronous form of Decode.
func DecodeAsync(buf []byte, opts object.Options) *asyncutil.Future[Decoded] {
	return asyncutil.Go(func() (Decoded, error) { return Decode(buf, opts) })
}
