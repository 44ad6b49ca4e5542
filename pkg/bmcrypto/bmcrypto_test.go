package bmcrypto

import (
	"context"
	"testing"
)

func TestSignVerifyRoundTrip(t *testing.T) {
	kp, err := GenerateKeyPair()
	if err != nil {
		t.Fatal(err)
	}
	data := []byte("the quick brown fox")

	sig, err := Sign(kp.PrivateKeyBytes(), data)
	if err != nil {
		t.Fatal(err)
	}
	if !Verify(kp.PublicKeyBytes(), data, sig) {
		t.Fatal("verify failed on valid signature")
	}
}

func TestVerifyRejectsTamperedSignature(t *testing.T) {
	kp, err := GenerateKeyPair()
	if err != nil {
		t.Fatal(err)
	}
	data := []byte("the quick brown fox")

	sig, err := Sign(kp.PrivateKeyBytes(), data)
	if err != nil {
		t.Fatal(err)
	}
	tampered := append([]byte{}, sig...)
	tampered[len(tampered)-1] ^= 0xFF

	if Verify(kp.PublicKeyBytes(), data, tampered) {
		t.Fatal("verify accepted tampered signature")
	}
}

func TestVerifyRejectsWrongData(t *testing.T) {
	kp, err := GenerateKeyPair()
	if err != nil {
		t.Fatal(err)
	}

	sig, err := Sign(kp.PrivateKeyBytes(), []byte("original"))
	if err != nil {
		t.Fatal(err)
	}
	if Verify(kp.PublicKeyBytes(), []byte("different"), sig) {
		t.Fatal("verify accepted signature over different data")
	}
}

func TestStripRestorePrefixRoundTrip(t *testing.T) {
	kp, err := GenerateKeyPair()
	if err != nil {
		t.Fatal(err)
	}
	pub := kp.PublicKeyBytes()

	stripped, err := StripPrefix(pub)
	if err != nil {
		t.Fatal(err)
	}
	if len(stripped) != PublicKeyPointSize {
		t.Fatalf("stripped length = %d, want %d", len(stripped), PublicKeyPointSize)
	}

	restored, err := RestorePrefix(stripped)
	if err != nil {
		t.Fatal(err)
	}
	if string(restored) != string(pub) {
		t.Fatal("restore did not reproduce original public key")
	}
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	kp, err := GenerateKeyPair()
	if err != nil {
		t.Fatal(err)
	}
	plaintext := []byte("a secret message that spans more than one AES block of data")

	blob, err := Encrypt(kp.PublicKeyBytes(), plaintext)
	if err != nil {
		t.Fatal(err)
	}
	got, err := Decrypt(kp.PrivateKeyBytes(), blob)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != string(plaintext) {
		t.Fatalf("decrypt mismatch: got %q want %q", got, plaintext)
	}
}

func TestDecryptRejectsWrongKey(t *testing.T) {
	kp, err := GenerateKeyPair()
	if err != nil {
		t.Fatal(err)
	}
	other, err := GenerateKeyPair()
	if err != nil {
		t.Fatal(err)
	}

	blob, err := Encrypt(kp.PublicKeyBytes(), []byte("hello"))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := Decrypt(other.PrivateKeyBytes(), blob); err == nil {
		t.Fatal("decrypt succeeded under the wrong private key")
	}
}

func TestDecryptRejectsTamperedCiphertext(t *testing.T) {
	kp, err := GenerateKeyPair()
	if err != nil {
		t.Fatal(err)
	}

	blob, err := Encrypt(kp.PublicKeyBytes(), []byte("hello world"))
	if err != nil {
		t.Fatal(err)
	}
	blob[len(blob)/2] ^= 0xFF

	if _, err := Decrypt(kp.PrivateKeyBytes(), blob); err == nil {
		t.Fatal("decrypt succeeded over tampered ciphertext")
	}
}

func TestRipeDeterministic(t *testing.T) {
	kp1, err := GenerateKeyPair()
	if err != nil {
		t.Fatal(err)
	}
	kp2, err := GenerateKeyPair()
	if err != nil {
		t.Fatal(err)
	}

	r1, err := Ripe(kp1.PublicKeyBytes(), kp2.PublicKeyBytes())
	if err != nil {
		t.Fatal(err)
	}
	r2, err := Ripe(kp1.PublicKeyBytes(), kp2.PublicKeyBytes())
	if err != nil {
		t.Fatal(err)
	}
	if r1 != r2 {
		t.Fatal("ripe derivation is not deterministic")
	}

	r3, err := Ripe(kp2.PublicKeyBytes(), kp1.PublicKeyBytes())
	if err != nil {
		t.Fatal(err)
	}
	if r1 == r3 {
		t.Fatal("ripe derivation ignored key order")
	}
}

func TestCryptoInterfaceRespectsContext(t *testing.T) {
	c := New()
	kp, err := GenerateKeyPair()
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := c.Sign(ctx, kp.PrivateKeyBytes(), []byte("x")); err == nil {
		t.Fatal("Sign did not honor cancelled context")
	}
	if _, err := c.Encrypt(ctx, kp.PublicKeyBytes(), []byte("x")); err == nil {
		t.Fatal("Encrypt did not honor cancelled context")
	}
}

func TestCryptoInterfaceHappyPath(t *testing.T) {
	c := New()
	kp, err := GenerateKeyPair()
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	sig, err := c.Sign(ctx, kp.PrivateKeyBytes(), []byte("payload"))
	if err != nil {
		t.Fatal(err)
	}
	ok, err := c.Verify(ctx, kp.PublicKeyBytes(), []byte("payload"), sig)
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Fatal("verify reported false for a valid signature")
	}

	blob, err := c.Encrypt(ctx, kp.PublicKeyBytes(), []byte("payload"))
	if err != nil {
		t.Fatal(err)
	}
	plain, err := c.Decrypt(ctx, kp.PrivateKeyBytes(), blob)
	if err != nil {
		t.Fatal(err)
	}
	if string(plain) != "payload" {
		t.Fatalf("decrypt mismatch: got %q", plain)
	}
}
