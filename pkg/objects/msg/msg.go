// Package msg implements the msg object codec: a directed, encrypted,
// signed message from one address to another (spec.md §4.4).
package msg

import (
	"context"
	"encoding/binary"
	"strings"
	"time"

	"github.com/bmnet/bmobject/internal/asyncutil"
	"github.com/bmnet/bmobject/pkg/address"
	"github.com/bmnet/bmobject/pkg/bmcrypto"
	"github.com/bmnet/bmobject/pkg/candidates"
	"github.com/bmnet/bmobject/pkg/object"
	"github.com/bmnet/bmobject/pkg/pow"
	"github.com/bmnet/bmobject/pkg/varint"
	"github.com/bmnet/bmobject/pkg/wire"
)

// Encoding identifies the message body's text encoding (spec.md
// §4.4).
type Encoding uint64

const (
	Ignore  Encoding = 0
	Trivial Encoding = 1
	Simple  Encoding = 2
)

// EncodeOptions configures Encode/EncodePayload (spec.md §6.2).
type EncodeOptions struct {
	Now      func() time.Time
	TTL      time.Duration
	From     address.Address
	To       address.Address
	Message  string
	Subject  string
	Encoding Encoding
	Friend   bool
	SkipPow  bool
}

// DecodeOptions configures Decode/DecodePayload. Identities supplies
// the candidate recipient addresses the decoder tries in order
// (spec.md §4.4's opts.identities).
type DecodeOptions struct {
	object.Options
	Identities candidates.Candidates
}

// Decoded is the result of Decode/DecodePayload.
type Decoded struct {
	Header                  object.Header
	SenderVersion           uint64
	SenderStream            uint64
	Behavior                address.PubkeyBitfield
	SignPublicKey           []byte
	EncPublicKey            []byte
	NonceTrialsPerByte      uint64
	PayloadLengthExtraBytes uint64
	Encoding                Encoding
	Subject                 string
	Message                 string
	Ack                     []byte
	Identity                address.Address
}

func now(fn func() time.Time) time.Time {
	if fn != nil {
		return fn()
	}
	return time.Now()
}

func composeBody(opts EncodeOptions) []byte {
	if opts.Encoding == Simple {
		return []byte("Subject:" + opts.Subject + "\nBody:" + opts.Message)
	}
	return []byte(opts.Message)
}

func splitBody(encoding Encoding, raw []byte) (subject, message string) {
	text := string(raw)
	if encoding == Simple && strings.HasPrefix(text, "Subject:") {
		rest := text[len("Subject:"):]
		if idx := strings.Index(rest, "\nBody:"); idx >= 0 {
			return rest[:idx], rest[idx+len("\nBody:"):]
		}
	}
	return "", text
}

// unsignedBody builds msgData: senderVersion ∥ senderStream ∥ fixed
// pubkey body ∥ (v3+ difficulty params) ∥ ripe ∥ encoding ∥ message ∥
// ack (spec.md §4.4, fields 1-8).
func unsignedBody(opts EncodeOptions) ([]byte, error) {
	from := opts.From
	to := opts.To

	signPoint, err := bmcrypto.StripPrefix(from.SignPublicKey())
	if err != nil {
		return nil, err
	}
	encPoint, err := bmcrypto.StripPrefix(from.EncPublicKey())
	if err != nil {
		return nil, err
	}

	var buf []byte
	buf = append(buf, varint.Encode(from.Version())...)
	buf = append(buf, varint.Encode(from.Stream())...)

	fixed := make([]byte, 4, object.PubkeyFixedSize)
	binary.BigEndian.PutUint32(fixed, uint32(from.Behavior()))
	fixed = append(fixed, signPoint...)
	fixed = append(fixed, encPoint...)
	buf = append(buf, fixed...)

	nonceTrialsPerByte, payloadLengthExtraBytes := from.NonceTrialsPerByte(), from.PayloadLengthExtraBytes()
	if opts.Friend && from.Version() >= 3 {
		nonceTrialsPerByte = pow.DefaultNonceTrialsPerByte
		payloadLengthExtraBytes = pow.DefaultPayloadLengthExtraBytes
	}
	if from.Version() >= 3 {
		buf = append(buf, varint.Encode(nonceTrialsPerByte)...)
		buf = append(buf, varint.Encode(payloadLengthExtraBytes)...)
	}

	ripe := to.Ripe()
	buf = append(buf, ripe[:]...)

	buf = append(buf, varint.Encode(uint64(opts.Encoding))...)

	message := composeBody(opts)
	buf = append(buf, varint.Encode(uint64(len(message)))...)
	buf = append(buf, message...)

	buf = append(buf, varint.Encode(0)...) // ack is always empty (spec.md §9)

	return buf, nil
}

// EncodePayload builds the nonce-prepended msg object payload (spec.md
// §4.4 Encode).
func EncodePayload(ctx context.Context, crypto bmcrypto.Crypto, solver pow.Solver, opts EncodeOptions) ([]byte, error) {
	if opts.From == nil || opts.To == nil {
		return nil, object.ErrBadLength
	}
	if opts.Encoding == 0 && opts.Message != "" {
		opts.Encoding = Trivial
	}

	msgData, err := unsignedBody(opts)
	if err != nil {
		return nil, err
	}

	expiresTime := object.ExpiresTimeFromTTL(now(opts.Now), opts.TTL)
	headerPrefix := object.EncodeHeaderPrefix(expiresTime, object.Msg, 1, opts.From.Stream())

	sig, err := crypto.Sign(ctx, opts.From.SignPrivateKey(), append(append([]byte{}, headerPrefix...), msgData...))
	if err != nil {
		return nil, object.ErrCryptoError
	}

	cleartext := append(append([]byte{}, msgData...), varint.Encode(uint64(len(sig)))...)
	cleartext = append(cleartext, sig...)

	ciphertext, err := crypto.Encrypt(ctx, opts.To.EncPublicKey(), cleartext)
	if err != nil {
		return nil, object.ErrCryptoError
	}

	obj := object.EncodePayloadWithoutNonce(expiresTime, object.Msg, 1, opts.From.Stream(), ciphertext)
	return object.PrependNonce(ctx, obj, opts.TTL, solver, opts.From.NonceTrialsPerByte(), opts.From.PayloadLengthExtraBytes(), opts.SkipPow)
}

// Encode builds the full framed network message for a msg object.
func Encode(ctx context.Context, crypto bmcrypto.Crypto, solver pow.Solver, opts EncodeOptions) ([]byte, error) {
	payload, err := EncodePayload(ctx, crypto, solver, opts)
	if err != nil {
		return nil, err
	}
	return wire.Encode("object", payload)
}

// EncodePayloadAsync is the asynchronous form of EncodePayload.
func EncodePayloadAsync(ctx context.Context, crypto bmcrypto.Crypto, solver pow.Solver, opts EncodeOptions) *asyncutil.Future[[]byte] {
	return asyncutil.Go(func() ([]byte, error) { return EncodePayload(ctx, crypto, solver, opts) })
}

// EncodeAsync is the asynchronous form of Encode.
func EncodeAsync(ctx context.Context, crypto bmcrypto.Crypto, solver pow.Solver, opts EncodeOptions) *asyncutil.Future[[]byte] {
	return asyncutil.Go(func() ([]byte, error) { return Encode(ctx, crypto, solver, opts) })
}

// DecodePayload parses a nonce-prepended msg object payload (spec.md
// §4.4 Decode): tries each candidate identity's ECIES decryption in
// order, then verifies the ripe and the signature.
func DecodePayload(ctx context.Context, crypto bmcrypto.Crypto, buf []byte, opts DecodeOptions) (Decoded, error) {
	if len(buf) < 8 {
		return Decoded{}, object.ErrBadLength
	}
	nonce := binary.BigEndian.Uint64(buf[:8])
	rest := buf[8:]

	envOpts := opts.Options
	envOpts.AllowTypes = []object.ObjectType{object.Msg}

	h, payload, err := object.DecodePayload(rest, envOpts)
	if err != nil {
		return Decoded{}, err
	}
	h.Nonce = nonce
	if h.Version != 1 {
		return Decoded{}, object.ErrUnsupportedVersion
	}

	headerPrefix := object.EncodeHeaderPrefix(h.ExpiresTime, h.ObjectType, h.Version, h.Stream)

	var cleartext []byte
	matched, err := opts.Identities.TryEach(ctx, func(a address.Address) (bool, error) {
		out, decErr := crypto.Decrypt(ctx, a.EncPrivateKey(), payload)
		if decErr != nil {
			return false, decErr
		}
		cleartext = out
		return true, nil
	})
	if err != nil {
		return Decoded{}, object.ErrDecryptFailed
	}

	senderVersion, _, r, err := varint.Decode(cleartext)
	if err != nil {
		return Decoded{}, object.ErrBadLength
	}
	senderStream, _, r, err := varint.Decode(r)
	if err != nil {
		return Decoded{}, object.ErrBadLength
	}

	var fixed object.PubkeyFixed
	var nonceTrialsPerByte, payloadLengthExtraBytes uint64
	if senderVersion >= 3 {
		ext, n, err := object.ExtractPubkeyV3(r)
		if err != nil {
			return Decoded{}, err
		}
		fixed = ext.PubkeyFixed
		nonceTrialsPerByte = ext.NonceTrialsPerByte
		payloadLengthExtraBytes = ext.PayloadLengthExtraBytes
		r = r[n:]
	} else {
		f, n, err := object.ExtractPubkey(r)
		if err != nil {
			return Decoded{}, err
		}
		fixed = f
		r = r[n:]
	}

	if len(r) < address.RipeSize {
		return Decoded{}, object.ErrBadLength
	}
	var ripe [address.RipeSize]byte
	copy(ripe[:], r[:address.RipeSize])
	r = r[address.RipeSize:]

	if ripe != matched.Ripe() {
		return Decoded{}, object.ErrRipeMismatch
	}

	encodingVal, _, r, err := varint.Decode(r)
	if err != nil {
		return Decoded{}, object.ErrBadLength
	}
	msgLen, _, r, err := varint.Decode(r)
	if err != nil {
		return Decoded{}, object.ErrBadLength
	}
	if uint64(len(r)) < msgLen {
		return Decoded{}, object.ErrBadLength
	}
	message := r[:msgLen]
	r = r[msgLen:]

	ackLen, _, r, err := varint.Decode(r)
	if err != nil {
		return Decoded{}, object.ErrBadLength
	}
	if uint64(len(r)) < ackLen {
		return Decoded{}, object.ErrBadLength
	}
	ack := r[:ackLen]
	r = r[ackLen:]

	sigLen, n8, r, err := varint.Decode(r)
	if err != nil {
		return Decoded{}, object.ErrBadLength
	}
	if uint64(len(r)) < sigLen {
		return Decoded{}, object.ErrBadLength
	}
	sig := r[:sigLen]

	unsignedLen := len(cleartext) - len(r) - n8
	signedRegion := append(append([]byte{}, headerPrefix...), cleartext[:unsignedLen]...)

	ok, err := crypto.Verify(ctx, fixed.SignPublicKey, signedRegion, sig)
	if err != nil {
		return Decoded{}, object.ErrCryptoError
	}
	if !ok {
		return Decoded{}, object.ErrSignatureInvalid
	}

	encoding := Encoding(encodingVal)
	subject, body := splitBody(encoding, message)
	if encoding == Ignore && len(message) == 0 {
		body = ""
	}

	return Decoded{
		Header:                  h,
		SenderVersion:           senderVersion,
		SenderStream:            senderStream,
		Behavior:                fixed.Behavior,
		SignPublicKey:           fixed.SignPublicKey,
		EncPublicKey:            fixed.EncPublicKey,
		NonceTrialsPerByte:      nonceTrialsPerByte,
		PayloadLengthExtraBytes: payloadLengthExtraBytes,
		Encoding:                encoding,
		Subject:                 subject,
		Message:                 body,
		Ack:                     append([]byte{}, ack...),
		Identity:                matched,
	}, nil
}

// Decode unwraps a framed network message and parses its msg payload.
func Decode(ctx context.Context, crypto bmcrypto.Crypto, buf []byte, opts DecodeOptions) (Decoded, error) {
	command, payload, err := wire.Decode(buf)
	if err != nil {
		return Decoded{}, err
	}
	if command != "object" {
		return Decoded{}, object.ErrBadCommand
	}
	return DecodePayload(ctx, crypto, payload, opts)
}

// DecodePayloadAsync is the asynchronous form of DecodePayload.
func DecodePayloadAsync(ctx context.Context, crypto bmcrypto.Crypto, buf []byte, opts DecodeOptions) *asyncutil.Future[Decoded] {
	return asyncutil.Go(func() (Decoded, error) { return DecodePayload(ctx, crypto, buf, opts) })
}

// DecodeAsync is the asynchronous form of Decode.
func DecodeAsync(ctx context.Context, crypto bmcrypto.Crypto, buf []byte, opts DecodeOptions) *asyncutil.Future[Decoded] {
	return asyncutil.Go(func() (Decoded, error) { return Decode(ctx, crypto, buf, opts) })
}
