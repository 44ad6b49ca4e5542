package broadcast

import (
	"context"
	"testing"
	"time"

	"github.com/bmnet/bmobject/pkg/address"
	"github.com/bmnet/bmobject/pkg/bmcrypto"
	"github.com/bmnet/bmobject/pkg/candidates"
	"github.com/bmnet/bmobject/pkg/object"
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

func TestEncodeDecodeV4RipeKeyed(t *testing.T) {
	from := newAddr(t, 3)
	crypto := bmcrypto.New()

	opts := EncodeOptions{Now: fixedNow, TTL: time.Hour, From: from, Message: "hello", Encoding: Trivial, SkipPow: true}
	payload, err := EncodePayload(context.Background(), crypto, nil, opts)
	if err != nil {
		t.Fatal(err)
	}
	if payload == nil {
		t.Fatal("nil payload")
	}

	// The subscriber's local copy of the broadcaster's address derives
	// the same ripe-keyed broadcast key the sender encrypted under.
	decoded, err := DecodePayload(context.Background(), crypto, payload, DecodeOptions{
		Options:       decodeOpts(),
		Subscriptions: candidates.One(from),
	})
	if err != nil {
		t.Fatal(err)
	}
	if decoded.Header.Version != 4 {
		t.Fatalf("version = %d", decoded.Header.Version)
	}
	if decoded.Message != "hello" {
		t.Fatalf("message = %q", decoded.Message)
	}
}

func TestEncodeDecodeV5TagKeyed(t *testing.T) {
	from := newAddr(t, 4)
	crypto := bmcrypto.New()

	opts := EncodeOptions{Now: fixedNow, TTL: time.Hour, From: from, Message: "hi", Encoding: Trivial, SkipPow: true}
	payload, err := EncodePayload(context.Background(), crypto, nil, opts)
	if err != nil {
		t.Fatal(err)
	}

	decoded, err := DecodePayload(context.Background(), crypto, payload, DecodeOptions{
		Options:       decodeOpts(),
		Subscriptions: candidates.One(from),
	})
	if err != nil {
		t.Fatal(err)
	}
	if decoded.Header.Version != 5 {
		t.Fatalf("version = %d", decoded.Header.Version)
	}
	if decoded.Message != "hi" {
		t.Fatalf("message = %q", decoded.Message)
	}
}

func TestEncodeDecodeV5RejectsNonSubscribedTag(t *testing.T) {
	from := newAddr(t, 4)
	other := newAddr(t, 4)
	crypto := bmcrypto.New()

	opts := EncodeOptions{Now: fixedNow, TTL: time.Hour, From: from, Message: "hi", Encoding: Trivial, SkipPow: true}
	payload, err := EncodePayload(context.Background(), crypto, nil, opts)
	if err != nil {
		t.Fatal(err)
	}

	if _, err := DecodePayload(context.Background(), crypto, payload, DecodeOptions{
		Options:       decodeOpts(),
		Subscriptions: candidates.One(other),
	}); err != object.ErrNotInterested {
		t.Fatalf("err = %v, want ErrNotInterested", err)
	}
}

func TestEncodeDecodeSimpleSplitsSubjectAndBody(t *testing.T) {
	from := newAddr(t, 3)
	crypto := bmcrypto.New()

	opts := EncodeOptions{Now: fixedNow, TTL: time.Hour, From: from, Subject: "s", Message: "m", Encoding: Simple, SkipPow: true}
	payload, err := EncodePayload(context.Background(), crypto, nil, opts)
	if err != nil {
		t.Fatal(err)
	}

	decoded, err := DecodePayload(context.Background(), crypto, payload, DecodeOptions{
		Options:       decodeOpts(),
		Subscriptions: candidates.One(from),
	})
	if err != nil {
		t.Fatal(err)
	}
	if decoded.Subject != "s" || decoded.Message != "m" {
		t.Fatalf("subject/message = %q/%q", decoded.Subject, decoded.Message)
	}
}

// liarAddress wraps a real address.Address but reports a Ripe() that
// doesn't match its declared keys, modeling an Address implementation
// that violates the self-consistency invariant.
type liarAddress struct {
	address.Address
	fakeRipe [address.RipeSize]byte
}

func (l liarAddress) Ripe() [address.RipeSize]byte { return l.fakeRipe }

func TestEncodeRejectsInconsistentSender(t *testing.T) {
	good := newAddr(t, 3)
	crypto := bmcrypto.New()

	liar := liarAddress{Address: good}
	copy(liar.fakeRipe[:], "not-the-real-ripe-12")

	opts := EncodeOptions{Now: fixedNow, TTL: time.Hour, From: liar, Message: "hello", Encoding: Trivial, SkipPow: true}
	if _, err := EncodePayload(context.Background(), crypto, nil, opts); err != object.ErrInconsistentSender {
		t.Fatalf("err = %v, want ErrInconsistentSender", err)
	}
}
