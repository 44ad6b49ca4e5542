package object

import (
	"encoding/binary"
	"fmt"

	"github.com/bmnet/bmobject/pkg/address"
	"github.com/bmnet/bmobject/pkg/bmcrypto"
	"github.com/bmnet/bmobject/pkg/varint"
)

// PubkeyFixedSize is the size of the v2 pubkey body: behavior(4) ∥
// signPubKey[1..](64) ∥ encPubKey[1..](64) (spec.md §4.3).
const PubkeyFixedSize = 4 + bmcrypto.PublicKeyPointSize*2

// PubkeyFixed is the v2 pubkey body, restored to full 65-byte
// uncompressed keys.
type PubkeyFixed struct {
	Behavior      address.PubkeyBitfield
	SignPublicKey []byte
	EncPublicKey  []byte
}

// ExtractPubkey parses the fixed 132-octet pubkey body from the front
// of buf, restoring the stripped 0x04 prefix on each public key
// (spec.md §4.6 "extractPubkey").
func ExtractPubkey(buf []byte) (PubkeyFixed, int, error) {
	if len(buf) < PubkeyFixedSize {
		return PubkeyFixed{}, 0, ErrBadLength
	}

	behavior := address.PubkeyBitfield(binary.BigEndian.Uint32(buf[0:4]))

	signPub, err := bmcrypto.RestorePrefix(buf[4 : 4+bmcrypto.PublicKeyPointSize])
	if err != nil {
		return PubkeyFixed{}, 0, fmt.Errorf("%w: sign public key: %v", ErrBadLength, err)
	}
	encStart := 4 + bmcrypto.PublicKeyPointSize
	encPub, err := bmcrypto.RestorePrefix(buf[encStart : encStart+bmcrypto.PublicKeyPointSize])
	if err != nil {
		return PubkeyFixed{}, 0, fmt.Errorf("%w: enc public key: %v", ErrBadLength, err)
	}

	return PubkeyFixed{
		Behavior:      behavior,
		SignPublicKey: signPub,
		EncPublicKey:  encPub,
	}, PubkeyFixedSize, nil
}

// PubkeyExtended extends PubkeyFixed with the v3 difficulty
// parameters (spec.md §4.3).
type PubkeyExtended struct {
	PubkeyFixed
	NonceTrialsPerByte      uint64
	PayloadLengthExtraBytes uint64
}

// ExtractPubkeyV3 parses the fixed pubkey body followed by the two
// VarInt difficulty parameters (spec.md §4.6 "extractPubkeyV3").
func ExtractPubkeyV3(buf []byte) (PubkeyExtended, int, error) {
	fixed, n, err := ExtractPubkey(buf)
	if err != nil {
		return PubkeyExtended{}, 0, err
	}

	nonceTrialsPerByte, n1, rest, err := varint.Decode(buf[n:])
	if err != nil {
		return PubkeyExtended{}, 0, fmt.Errorf("%w: nonceTrialsPerByte: %v", ErrBadLength, err)
	}
	payloadLengthExtraBytes, n2, _, err := varint.Decode(rest)
	if err != nil {
		return PubkeyExtended{}, 0, fmt.Errorf("%w: payloadLengthExtraBytes: %v", ErrBadLength, err)
	}

	return PubkeyExtended{
		PubkeyFixed:             fixed,
		NonceTrialsPerByte:      nonceTrialsPerByte,
		PayloadLengthExtraBytes: payloadLengthExtraBytes,
	}, n + n1 + n2, nil
}
