package object

import "encoding/binary"

// outerObjectTypeOffset is where objectType lives in a fully-framed
// outer message (magic(4)+command(12)+length(4)+checksum(4) = 24,
// plus nonce(8)+expiresTime(8) = 40).
const outerObjectTypeOffset = 40

// payloadObjectTypeOffset is where objectType lives in a bare object
// payload (nonce(8)+expiresTime(8) = 16).
const payloadObjectTypeOffset = 16

// GetType returns the object type from a fully-framed outer message
// buffer, without validating anything else. It is a fast dispatch
// hint only (spec.md §4.6).
func GetType(buf []byte) (ObjectType, bool) {
	if len(buf) < outerObjectTypeOffset+4 {
		return 0, false
	}
	return ObjectType(binary.BigEndian.Uint32(buf[outerObjectTypeOffset : outerObjectTypeOffset+4])), true
}

// GetPayloadType returns the object type from a bare object payload
// buffer (nonce ∥ expiresTime ∥ objectType ∥ ...), without validating
// anything else (spec.md §4.6).
func GetPayloadType(buf []byte) (ObjectType, bool) {
	if len(buf) < payloadObjectTypeOffset+4 {
		return 0, false
	}
	return ObjectType(binary.BigEndian.Uint32(buf[payloadObjectTypeOffset : payloadObjectTypeOffset+4])), true
}
