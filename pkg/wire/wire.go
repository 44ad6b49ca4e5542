// Package wire implements the outer network-message framing the
// object codecs treat as an opaque collaborator (spec.md §1 "the bare
// message-envelope framing ... used as an opaque wrapper", §6.1
// "message.encode/message.decode"): magic ∥ command ∥ length ∥
// checksum ∥ payload.
package wire

import (
	"crypto/sha512"
	"encoding/binary"
	"errors"
	"fmt"
)

// Magic is the 4-octet magic value every framed message starts with.
var Magic = [4]byte{0xE9, 0xBE, 0xB4, 0xD9}

const (
	commandSize  = 12
	lengthSize   = 4
	checksumSize = 4

	// HeaderSize is the size of the fixed framing prefix before
	// payload: magic ∥ command ∥ length ∥ checksum.
	HeaderSize = len(Magic) + commandSize + lengthSize + checksumSize
)

var (
	ErrTruncated    = errors.New("wire: truncated message")
	ErrBadMagic     = errors.New("wire: bad magic value")
	ErrBadChecksum  = errors.New("wire: checksum mismatch")
	ErrLengthMismatch = errors.New("wire: declared length does not match payload")
	ErrCommandTooLong = errors.New("wire: command exceeds 12 octets")
)

// Encode frames payload under command, following the real network's
// magic/command/length/checksum wrapper.
func Encode(command string, payload []byte) ([]byte, error) {
	if len(command) > commandSize {
		return nil, ErrCommandTooLong
	}

	buf := make([]byte, HeaderSize+len(payload))
	copy(buf[0:4], Magic[:])
	copy(buf[4:4+commandSize], command)

	binary.BigEndian.PutUint32(buf[4+commandSize:4+commandSize+lengthSize], uint32(len(payload)))
	copy(buf[4+commandSize+lengthSize:4+commandSize+lengthSize+checksumSize], checksumOf(payload))
	copy(buf[HeaderSize:], payload)

	return buf, nil
}

// Decode parses a message framed by Encode.
func Decode(buf []byte) (command string, payload []byte, err error) {
	if len(buf) < HeaderSize {
		return "", nil, ErrTruncated
	}
	if [4]byte(buf[0:4]) != Magic {
		return "", nil, ErrBadMagic
	}

	commandBytes := buf[4 : 4+commandSize]
	end := len(commandBytes)
	for end > 0 && commandBytes[end-1] == 0 {
		end--
	}
	command = string(commandBytes[:end])

	length := binary.BigEndian.Uint32(buf[4+commandSize : 4+commandSize+lengthSize])
	payload = buf[HeaderSize:]
	if uint32(len(payload)) != length {
		return "", nil, fmt.Errorf("%w: declared %d, got %d", ErrLengthMismatch, length, len(payload))
	}

	wantChecksum := buf[4+commandSize+lengthSize : HeaderSize]
	gotChecksum := checksumOf(payload)
	for i := range wantChecksum {
		if wantChecksum[i] != gotChecksum[i] {
			return "", nil, ErrBadChecksum
		}
	}

	return command, payload, nil
}

// checksumOf computes the 4-byte frame checksum: the first four bytes
// of SHA512(SHA512(payload)), matching the double-round checksum used
// throughout this module's wire formats (pkg/address).
func checksumOf(payload []byte) []byte {
	first := sha512.Sum512(payload)
	second := sha512.Sum512(first[:])
	return second[:checksumSize]
}
