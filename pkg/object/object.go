// Package object implements the Bitmessage object envelope shared by
// all four object codecs: the common header (nonce, expiry,
// type/version/stream) and the proof-of-work nonce that wraps every
// encoded object. It is the concrete realization of spec.md §4.1.
package object

import "time"

// ObjectType identifies the payload carried by an object (spec.md
// §3.2).
type ObjectType uint32

const (
	GetPubkey ObjectType = 0
	Pubkey    ObjectType = 1
	Msg       ObjectType = 2
	Broadcast ObjectType = 3
)

// String names an ObjectType for logging, in the same idiom as the
// teacher's enums.go String() methods.
func (t ObjectType) String() string {
	switch t {
	case GetPubkey:
		return "getpubkey"
	case Pubkey:
		return "pubkey"
	case Msg:
		return "msg"
	case Broadcast:
		return "broadcast"
	default:
		return "unknown"
	}
}

// HeaderSize is the size in octets of the fixed-width portion of the
// object header before VarInt(version)/VarInt(stream): nonce (8) +
// expiresTime (8) + objectType (4).
const HeaderSize = 20

// Options configures envelope encode/decode behavior. It is supplied
// by the caller and consumed identically by every object codec
// (spec.md §6, SPEC_FULL.md §6).
type Options struct {
	// Now returns the current time; defaults to time.Now when nil.
	Now func() time.Time

	// MinExpiry is how far in the past expiresTime may be before
	// decodePayload rejects it as already expired.
	MinExpiry time.Duration

	// MaxTTL is how far in the future expiresTime may be.
	MaxTTL time.Duration

	// SkipPow is not read by DecodePayload or PrependNonce; PrependNonce
	// takes its own skipPow argument, which the codecs fill from their
	// EncodeOptions.SkipPow.
	SkipPow bool

	// AllowTypes restricts decodePayload to the given object types.
	// An empty slice accepts all types.
	AllowTypes []ObjectType
}

func (o Options) now() time.Time {
	if o.Now != nil {
		return o.Now()
	}
	return time.Now()
}

func (o Options) typeAllowed(t ObjectType) bool {
	if len(o.AllowTypes) == 0 {
		return true
	}
	for _, allowed := range o.AllowTypes {
		if allowed == t {
			return true
		}
	}
	return false
}

// MaxObjectLength is the largest an encoded object (excluding the
// 8-byte nonce) may be before POW, per spec.md §3.4.
const MaxObjectLength = 262136
