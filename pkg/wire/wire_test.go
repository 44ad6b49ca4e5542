package wire

import "testing"

func TestEncodeDecodeRoundTrip(t *testing.T) {
	payload := []byte("an object payload")
	encoded, err := Encode("object", payload)
	if err != nil {
		t.Fatal(err)
	}

	command, got, err := Decode(encoded)
	if err != nil {
		t.Fatal(err)
	}
	if command != "object" {
		t.Fatalf("command = %q", command)
	}
	if string(got) != string(payload) {
		t.Fatalf("payload mismatch: got %q", got)
	}
}

func TestDecodeRejectsBadMagic(t *testing.T) {
	encoded, _ := Encode("object", []byte("x"))
	encoded[0] ^= 0xFF
	if _, _, err := Decode(encoded); err != ErrBadMagic {
		t.Fatalf("err = %v, want ErrBadMagic", err)
	}
}

func TestDecodeRejectsTamperedPayload(t *testing.T) {
	encoded, _ := Encode("object", []byte("x"))
	encoded[len(encoded)-1] ^= 0xFF
	if _, _, err := Decode(encoded); err != ErrBadChecksum {
		t.Fatalf("err = %v, want ErrBadChecksum", err)
	}
}

func TestDecodeRejectsTruncated(t *testing.T) {
	if _, _, err := Decode([]byte{1, 2, 3}); err != ErrTruncated {
		t.Fatalf("err = %v, want ErrTruncated", err)
	}
}

func TestEncodeRejectsLongCommand(t *testing.T) {
	if _, err := Encode("this-command-is-too-long", []byte("x")); err != ErrCommandTooLong {
		t.Fatalf("err = %v, want ErrCommandTooLong", err)
	}
}
