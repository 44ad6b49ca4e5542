package pubkey

import (
	"context"
	"testing"
	"time"

	"github.com/bmnet/bmobject/pkg/address"
	"github.com/bmnet/bmobject/pkg/bmcrypto"
	"github.com/bmnet/bmobject/pkg/candidates"
	"github.com/bmnet/bmobject/pkg/object"
	"github.com/bmnet/bmobject/pkg/wire"
)

func newAddr(t *testing.T, version uint64) address.Address {
	t.Helper()
	signKP, err := bmcrypto.GenerateKeyPair()
	if err != nil {
		t.Fatal(err)
	}
	encKP, err := bmcrypto.GenerateKeyPair()
	if err != nil {
		t.Fatal(err)
	}
	a, err := address.New(version, 1, signKP.PrivateKeyBytes(), signKP.PublicKeyBytes(), encKP.PrivateKeyBytes(), encKP.PublicKeyBytes(), 0, 1000, 1000)
	if err != nil {
		t.Fatal(err)
	}
	return a
}

func fixedNow() time.Time { return time.Unix(1_700_000_000, 0) }

func decodeOpts() object.Options {
	return object.Options{Now: fixedNow, MinExpiry: 365 * 24 * time.Hour, MaxTTL: 365 * 24 * time.Hour}
}

func TestEncodeDecodePayloadV2(t *testing.T) {
	from := newAddr(t, 2)
	crypto := bmcrypto.New()
	opts := EncodeOptions{Now: fixedNow, TTL: time.Hour, From: from, SkipPow: true}

	payload, err := EncodePayload(context.Background(), crypto, nil, opts)
	if err != nil {
		t.Fatal(err)
	}

	decoded, err := DecodePayload(context.Background(), crypto, payload, DecodeOptions{Options: decodeOpts()})
	if err != nil {
		t.Fatal(err)
	}
	if decoded.Header.Version != 2 {
		t.Fatalf("version = %d", decoded.Header.Version)
	}
	if string(decoded.SignPublicKey) != string(from.SignPublicKey()) {
		t.Fatal("sign public key mismatch")
	}
}

func TestEncodeDecodePayloadV3VerifiesSignature(t *testing.T) {
	from := newAddr(t, 3)
	crypto := bmcrypto.New()
	opts := EncodeOptions{Now: fixedNow, TTL: time.Hour, From: from, SkipPow: true}

	payload, err := EncodePayload(context.Background(), crypto, nil, opts)
	if err != nil {
		t.Fatal(err)
	}

	decoded, err := DecodePayload(context.Background(), crypto, payload, DecodeOptions{Options: decodeOpts()})
	if err != nil {
		t.Fatal(err)
	}
	if string(decoded.EncPublicKey) != string(from.EncPublicKey()) {
		t.Fatal("enc public key mismatch")
	}
}

func TestEncodeDecodePayloadV3RejectsTamperedSignature(t *testing.T) {
	from := newAddr(t, 3)
	crypto := bmcrypto.New()
	opts := EncodeOptions{Now: fixedNow, TTL: time.Hour, From: from, SkipPow: true}

	payload, err := EncodePayload(context.Background(), crypto, nil, opts)
	if err != nil {
		t.Fatal(err)
	}
	payload[len(payload)-1] ^= 0xFF

	if _, err := DecodePayload(context.Background(), crypto, payload, DecodeOptions{Options: decodeOpts()}); err != object.ErrSignatureInvalid {
		t.Fatalf("err = %v, want ErrSignatureInvalid", err)
	}
}

func TestEncodeDecodePayloadV4RoundTrip(t *testing.T) {
	from := newAddr(t, 4)
	crypto := bmcrypto.New()
	opts := EncodeOptions{Now: fixedNow, TTL: time.Hour, From: from, SkipPow: true}

	payload, err := EncodePayload(context.Background(), crypto, nil, opts)
	if err != nil {
		t.Fatal(err)
	}

	decoded, err := DecodePayload(context.Background(), crypto, payload, DecodeOptions{
		Options: decodeOpts(),
		Needed:  candidates.One(from),
	})
	if err != nil {
		t.Fatal(err)
	}
	if string(decoded.SignPublicKey) != string(from.SignPublicKey()) {
		t.Fatal("sign public key mismatch")
	}
	if string(decoded.EncPublicKey) != string(from.EncPublicKey()) {
		t.Fatal("enc public key mismatch")
	}
}

func TestEncodeDecodePayloadV4WrongTagIsNotInterested(t *testing.T) {
	from := newAddr(t, 4)
	other := newAddr(t, 4)
	crypto := bmcrypto.New()
	opts := EncodeOptions{Now: fixedNow, TTL: time.Hour, From: from, SkipPow: true}

	payload, err := EncodePayload(context.Background(), crypto, nil, opts)
	if err != nil {
		t.Fatal(err)
	}

	if _, err := DecodePayload(context.Background(), crypto, payload, DecodeOptions{
		Options: decodeOpts(),
		Needed:  candidates.One(other),
	}); err != object.ErrNotInterested {
		t.Fatalf("err = %v, want ErrNotInterested", err)
	}
}

func TestEncodeDecodeFramedRoundTrip(t *testing.T) {
	from := newAddr(t, 3)
	crypto := bmcrypto.New()
	opts := EncodeOptions{Now: fixedNow, TTL: time.Hour, From: from, SkipPow: true}

	framed, err := Encode(context.Background(), crypto, nil, opts)
	if err != nil {
		t.Fatal(err)
	}

	decoded, err := Decode(context.Background(), crypto, framed, DecodeOptions{Options: decodeOpts()})
	if err != nil {
		t.Fatal(err)
	}
	if decoded.Header.Version != 3 {
		t.Fatalf("version = %d", decoded.Header.Version)
	}
}

func TestDecodeRejectsBadCommand(t *testing.T) {
	crypto := bmcrypto.New()
	framed, err := wire.Encode("notobject", []byte("x"))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := Decode(context.Background(), crypto, framed, DecodeOptions{Options: decodeOpts()}); err != object.ErrBadCommand {
		t.Fatalf("err = %v, want ErrBadCommand", err)
	}
}
