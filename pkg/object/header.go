package object

import (
	"context"
	"crypto/sha512"
	"encoding/binary"
	"fmt"
	"time"

	"github.com/bmnet/bmobject/pkg/pow"
	"github.com/bmnet/bmobject/pkg/varint"
)

// Header describes a decoded object envelope (spec.md §3.2).
type Header struct {
	Nonce       uint64
	ExpiresTime uint64
	ObjectType  ObjectType
	Version     uint64
	Stream      uint64

	// HeaderLength is the number of octets from ExpiresTime up to (but
	// not including) ObjectPayload, needed verbatim by signature
	// verification (spec.md §3.2).
	HeaderLength int
}

// TTL returns how long from now the header claims the object remains
// valid.
func (h Header) TTL(now time.Time) time.Duration {
	return time.Unix(int64(h.ExpiresTime), 0).Sub(now)
}

// EncodeHeaderPrefix serializes expiresTime ∥ objectType ∥
// VarInt(version) ∥ VarInt(stream), the "header-without-nonce" bytes
// the pubkey/msg/broadcast codecs sign over before the object payload
// exists (spec.md §4.3's "signed region").
func EncodeHeaderPrefix(expiresTime uint64, objType ObjectType, version, stream uint64) []byte {
	buf := make([]byte, 12, 12+varint.Size(version)+varint.Size(stream))
	binary.BigEndian.PutUint64(buf[0:8], expiresTime)
	binary.BigEndian.PutUint32(buf[8:12], uint32(objType))
	buf = append(buf, varint.Encode(version)...)
	buf = append(buf, varint.Encode(stream)...)
	return buf
}

// ExpiresTimeFromTTL computes the absolute expiry the encoder embeds,
// given the caller-supplied ttl (spec.md §3.2).
func ExpiresTimeFromTTL(now time.Time, ttl time.Duration) uint64 {
	return uint64(now.Add(ttl).Unix())
}

// EncodePayloadWithoutNonce produces expiresTime ∥ objectType ∥
// VarInt(version) ∥ VarInt(stream) ∥ objectPayload (spec.md §4.1).
func EncodePayloadWithoutNonce(expiresTime uint64, objType ObjectType, version, stream uint64, objectPayload []byte) []byte {
	prefix := EncodeHeaderPrefix(expiresTime, objType, version, stream)
	return append(prefix, objectPayload...)
}

// DecodePayload parses an envelope produced by EncodePayloadWithoutNonce,
// validating the expiry window and the object type filter (spec.md
// §4.1).
func DecodePayload(buf []byte, opts Options) (Header, []byte, error) {
	if len(buf) < 12 {
		return Header{}, nil, ErrBadLength
	}

	expiresTime := binary.BigEndian.Uint64(buf[0:8])
	objType := ObjectType(binary.BigEndian.Uint32(buf[8:12]))

	version, n1, rest, err := varint.Decode(buf[12:])
	if err != nil {
		return Header{}, nil, fmt.Errorf("%w: version: %v", ErrBadLength, err)
	}
	stream, n2, rest, err := varint.Decode(rest)
	if err != nil {
		return Header{}, nil, fmt.Errorf("%w: stream: %v", ErrBadLength, err)
	}

	headerLength := 12 + n1 + n2

	now := opts.now()
	expiry := time.Unix(int64(expiresTime), 0)
	if expiry.Before(now.Add(-opts.MinExpiry)) || expiry.After(now.Add(opts.MaxTTL)) {
		return Header{}, nil, ErrExpiryOutOfWindow
	}

	if !opts.typeAllowed(objType) {
		return Header{}, nil, ErrWrongType
	}

	h := Header{
		ExpiresTime:  expiresTime,
		ObjectType:   objType,
		Version:      version,
		Stream:       stream,
		HeaderLength: headerLength,
	}
	return h, rest, nil
}

// PrependNonce computes (or zeroes, if skipPow) a proof-of-work
// nonce for obj and prepends it, per spec.md §4.1. obj is the
// header-without-nonce bytes concatenated with the finished
// objectPayload; it must not exceed MaxObjectLength. The nonce search
// trials against SHA512(obj), computed once here rather than per
// candidate nonce.
func PrependNonce(ctx context.Context, obj []byte, ttl time.Duration, solver pow.Solver, nonceTrialsPerByte, payloadLengthExtraBytes uint64, skipPow bool) ([]byte, error) {
	if len(obj) > MaxObjectLength {
		return nil, ErrPayloadTooLarge
	}

	out := make([]byte, 8+len(obj))
	copy(out[8:], obj)

	if skipPow {
		return out, nil
	}

	target := solver.Target(len(out), ttl, nonceTrialsPerByte, payloadLengthExtraBytes)
	initialHash := sha512.Sum512(obj)
	nonce, err := solver.Solve(ctx, target, initialHash)
	if err != nil {
		return nil, ErrPowCancelled
	}

	binary.BigEndian.PutUint64(out[:8], nonce)
	return out, nil
}
