package address

import (
	"testing"

	"github.com/bmnet/bmobject/pkg/bmcrypto"
)

func newTestAddress(t *testing.T, version uint64) *ReferenceAddress {
	t.Helper()
	signKP, err := bmcrypto.GenerateKeyPair()
	if err != nil {
		t.Fatal(err)
	}
	encKP, err := bmcrypto.GenerateKeyPair()
	if err != nil {
		t.Fatal(err)
	}
	a, err := New(version, 1, signKP.PrivateKeyBytes(), signKP.PublicKeyBytes(), encKP.PrivateKeyBytes(), encKP.PublicKeyBytes(), 0, 0, 0)
	if err != nil {
		t.Fatal(err)
	}
	return a
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	for _, version := range []uint64{2, 3, 4} {
		a := newTestAddress(t, version)

		text, err := a.Encode()
		if err != nil {
			t.Fatalf("version %d: %v", version, err)
		}
		if text[:3] != "BM-" {
			t.Fatalf("version %d: missing BM- prefix: %q", version, text)
		}

		decoded, err := Decode(text)
		if err != nil {
			t.Fatalf("version %d: decode: %v", version, err)
		}
		if decoded.Version() != version {
			t.Errorf("version %d: decoded version = %d", version, decoded.Version())
		}
		if decoded.Stream() != a.Stream() {
			t.Errorf("version %d: decoded stream = %d", version, decoded.Stream())
		}
		if decoded.Ripe() != a.Ripe() {
			t.Errorf("version %d: decoded ripe mismatch", version)
		}
	}
}

func TestDecodeRejectsMissingPrefix(t *testing.T) {
	if _, err := Decode("not-a-bm-address"); err != ErrMissingPrefix {
		t.Fatalf("err = %v, want ErrMissingPrefix", err)
	}
}

func TestDecodeRejectsBadChecksum(t *testing.T) {
	a := newTestAddress(t, 3)
	text, err := a.Encode()
	if err != nil {
		t.Fatal(err)
	}

	tampered := []byte(text)
	// Flip a character well past the "BM-" prefix.
	if tampered[len(tampered)-1] == 'a' {
		tampered[len(tampered)-1] = 'b'
	} else {
		tampered[len(tampered)-1] = 'a'
	}

	if _, err := Decode(string(tampered)); err == nil {
		t.Fatal("decode accepted a tampered address")
	}
}

func TestTagDistinctAndDeterministic(t *testing.T) {
	a4 := newTestAddress(t, 4)
	otherA4 := newTestAddress(t, 4)

	if a4.Tag() == otherA4.Tag() {
		t.Fatal("distinct addresses produced the same tag")
	}

	same := newTestAddress(t, 4)
	same2, err := New(4, same.Stream(), same.SignPrivateKey(), same.SignPublicKey(), same.EncPrivateKey(), same.EncPublicKey(), 0, 0, 0)
	if err != nil {
		t.Fatal(err)
	}
	if same.Tag() != same2.Tag() {
		t.Fatal("tag derivation is not deterministic")
	}
}

func TestGetPubkeyKeyPairDeterministic(t *testing.T) {
	a := newTestAddress(t, 4)

	priv1, pub1 := a.GetPubkeyKeyPair()
	priv2, pub2 := a.GetPubkeyKeyPair()

	if string(priv1) != string(priv2) || string(pub1) != string(pub2) {
		t.Fatal("GetPubkeyKeyPair is not deterministic")
	}
}

func TestGetBroadcastKeyPairMatchesVersionScheme(t *testing.T) {
	v3 := newTestAddress(t, 3)
	privRipe, pubRipe := v3.GetBroadcastKeyPair()
	privRipe2, pubRipe2 := BroadcastKeyForRipe(v3.Ripe())
	if string(privRipe) != string(privRipe2) || string(pubRipe) != string(pubRipe2) {
		t.Fatal("v3 GetBroadcastKeyPair did not use the ripe-keyed derivation")
	}

	v4 := newTestAddress(t, 4)
	privTag, pubTag := v4.GetBroadcastKeyPair()
	privTag2, pubTag2 := BroadcastKeyForTag(v4.Tag())
	if string(privTag) != string(privTag2) || string(pubTag) != string(pubTag2) {
		t.Fatal("v4 GetBroadcastKeyPair did not use the tag-keyed derivation")
	}
}
