// Package broadcast implements the broadcast object codec: a signed
// message broadcast to subscribers, keyed by the sender's ripe (v4) or
// tag (v5) rather than directed to a single recipient (spec.md §4.5).
package broadcast

import (
	"context"
	"encoding/binary"
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

// Encoding identifies the broadcast body's text encoding, sharing the
// msg encoding space (spec.md §4.4, §4.5).
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
	Message  string
	Subject  string
	Encoding Encoding
	SkipPow  bool
}

// DecodeOptions configures Decode/DecodePayload. Subscriptions
// supplies the candidate subscription addresses (spec.md §4.5's
// opts.subscriptions).
type DecodeOptions struct {
	object.Options
	Subscriptions candidates.Candidates
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
	Subscription            address.Address
}

func now(fn func() time.Time) time.Time {
	if fn != nil {
		return fn()
	}
	return time.Now()
}

func composeBody(encoding Encoding, subject, message string) []byte {
	if encoding == Simple {
		return []byte("Subject:" + subject + "\nBody:" + message)
	}
	return []byte(message)
}

func splitBody(encoding Encoding, raw []byte) (subject, message string) {
	text := string(raw)
	if encoding == Simple && len(text) >= len("Subject:") && text[:len("Subject:")] == "Subject:" {
		rest := text[len("Subject:"):]
		for i := 0; i+len("\nBody:") <= len(rest); i++ {
			if rest[i:i+len("\nBody:")] == "\nBody:" {
				return rest[:i], rest[i+len("\nBody:"):]
			}
		}
	}
	return "", text
}

// unsignedBody builds the cleartext body: senderVersion ∥ senderStream
// ∥ fixed pubkey body ∥ (v3+ difficulty params) ∥ encoding ∥ message
// (spec.md §4.5, no ripe/ack unlike msg).
func unsignedBody(opts EncodeOptions) ([]byte, error) {
	from := opts.From

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

	if from.Version() >= 3 {
		buf = append(buf, varint.Encode(from.NonceTrialsPerByte())...)
		buf = append(buf, varint.Encode(from.PayloadLengthExtraBytes())...)
	}

	buf = append(buf, varint.Encode(uint64(opts.Encoding))...)

	message := composeBody(opts.Encoding, opts.Subject, opts.Message)
	buf = append(buf, varint.Encode(uint64(len(message)))...)
	buf = append(buf, message...)

	return buf, nil
}

// broadcastVersion returns 5 if from.version >= 4 else 4 (spec.md
// §4.5 Encode).
func broadcastVersion(from address.Address) uint64 {
	if from.Version() >= 4 {
		return 5
	}
	return 4
}

// EncodePayload builds the nonce-prepended broadcast object payload
// (spec.md §4.5 Encode). It asserts from's declared keys reconstruct
// its own ripe/tag before signing, closing the self-consistency gap
// spec.md §9 flags for KeyMismatch.
func EncodePayload(ctx context.Context, crypto bmcrypto.Crypto, solver pow.Solver, opts EncodeOptions) ([]byte, error) {
	if opts.From == nil {
		return nil, object.ErrBadLength
	}
	from := opts.From
	if opts.Encoding == 0 && opts.Message != "" {
		opts.Encoding = Trivial
	}

	reconstructed, err := address.New(from.Version(), from.Stream(), from.SignPrivateKey(), from.SignPublicKey(), from.EncPrivateKey(), from.EncPublicKey(), from.Behavior(), from.NonceTrialsPerByte(), from.PayloadLengthExtraBytes())
	if err != nil {
		return nil, object.ErrInconsistentSender
	}
	if reconstructed.Ripe() != from.Ripe() {
		return nil, object.ErrInconsistentSender
	}

	body, err := unsignedBody(opts)
	if err != nil {
		return nil, err
	}

	version := broadcastVersion(from)
	expiresTime := object.ExpiresTimeFromTTL(now(opts.Now), opts.TTL)
	headerPrefix := object.EncodeHeaderPrefix(expiresTime, object.Broadcast, version, from.Stream())

	var tag [address.TagSize]byte
	var signedRegion []byte
	var broadcastPub []byte
	if version == 5 {
		tag = from.Tag()
		if tag != reconstructed.Tag() {
			return nil, object.ErrInconsistentSender
		}
		_, broadcastPub = address.BroadcastKeyForTag(tag)
		signedRegion = append(append([]byte{}, headerPrefix...), tag[:]...)
	} else {
		_, broadcastPub = address.BroadcastKeyForRipe(from.Ripe())
		signedRegion = append([]byte{}, headerPrefix...)
	}
	signedRegion = append(signedRegion, body...)

	sig, err := crypto.Sign(ctx, from.SignPrivateKey(), signedRegion)
	if err != nil {
		return nil, object.ErrCryptoError
	}

	cleartext := append(append([]byte{}, body...), varint.Encode(uint64(len(sig)))...)
	cleartext = append(cleartext, sig...)

	ciphertext, err := crypto.Encrypt(ctx, broadcastPub, cleartext)
	if err != nil {
		return nil, object.ErrCryptoError
	}

	var objectPayload []byte
	if version == 5 {
		objectPayload = append(append([]byte{}, tag[:]...), ciphertext...)
	} else {
		objectPayload = ciphertext
	}

	obj := object.EncodePayloadWithoutNonce(expiresTime, object.Broadcast, version, from.Stream(), objectPayload)
	return object.PrependNonce(ctx, obj, opts.TTL, solver, from.NonceTrialsPerByte(), from.PayloadLengthExtraBytes(), opts.SkipPow)
}

// Encode builds the full framed network message for a broadcast.
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

// DecodePayload parses a nonce-prepended broadcast object payload
// (spec.md §4.5 Decode): tries every subscription's broadcast key
// (v4, keyed by ripe) or matches by tag (v5), then cross-checks the
// reconstructed sender identity against the matched subscription.
func DecodePayload(ctx context.Context, crypto bmcrypto.Crypto, buf []byte, opts DecodeOptions) (Decoded, error) {
	if len(buf) < 8 {
		return Decoded{}, object.ErrBadLength
	}
	nonce := binary.BigEndian.Uint64(buf[:8])
	rest := buf[8:]

	envOpts := opts.Options
	envOpts.AllowTypes = []object.ObjectType{object.Broadcast}

	h, payload, err := object.DecodePayload(rest, envOpts)
	if err != nil {
		return Decoded{}, err
	}
	h.Nonce = nonce
	if h.Version != 4 && h.Version != 5 {
		return Decoded{}, object.ErrUnsupportedVersion
	}

	headerPrefix := object.EncodeHeaderPrefix(h.ExpiresTime, h.ObjectType, h.Version, h.Stream)

	var cleartext []byte
	var matched address.Address
	var tag [address.TagSize]byte
	var signedRegion []byte

	if h.Version == 5 {
		if len(payload) < address.TagSize {
			return Decoded{}, object.ErrBadLength
		}
		copy(tag[:], payload[:address.TagSize])
		ciphertext := payload[address.TagSize:]

		m, ok := opts.Subscriptions.FindByTag(tag)
		if !ok {
			return Decoded{}, object.ErrNotInterested
		}
		matched = m

		priv, _ := address.BroadcastKeyForTag(tag)
		cleartext, err = crypto.Decrypt(ctx, priv, ciphertext)
		if err != nil {
			return Decoded{}, object.ErrDecryptFailed
		}
		signedRegion = append(append([]byte{}, headerPrefix...), tag[:]...)
	} else {
		m, err := opts.Subscriptions.TryEach(ctx, func(a address.Address) (bool, error) {
			if a.Version() >= 4 {
				return false, object.ErrNotInterested
			}
			priv, _ := address.BroadcastKeyForRipe(a.Ripe())
			out, decErr := crypto.Decrypt(ctx, priv, payload)
			if decErr != nil {
				return false, decErr
			}
			cleartext = out
			return true, nil
		})
		if err != nil {
			return Decoded{}, object.ErrDecryptFailed
		}
		matched = m
		signedRegion = append([]byte{}, headerPrefix...)
	}

	senderVersion, _, r, err := varint.Decode(cleartext)
	if err != nil {
		return Decoded{}, object.ErrBadLength
	}
	if h.Version == 4 && (senderVersion < 2 || senderVersion > 3) {
		return Decoded{}, object.ErrBadLength
	}
	if h.Version == 5 && senderVersion != 4 {
		return Decoded{}, object.ErrBadLength
	}

	senderStream, _, r, err := varint.Decode(r)
	if err != nil {
		return Decoded{}, object.ErrBadLength
	}
	if senderStream != h.Stream {
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

	reconstructed, err := address.New(senderVersion, senderStream, nil, fixed.SignPublicKey, nil, fixed.EncPublicKey, fixed.Behavior, nonceTrialsPerByte, payloadLengthExtraBytes)
	if err != nil {
		return Decoded{}, object.ErrKeyMismatch
	}
	if h.Version == 4 {
		if reconstructed.Ripe() != matched.Ripe() {
			return Decoded{}, object.ErrKeyMismatch
		}
	} else {
		if reconstructed.Tag() != tag {
			return Decoded{}, object.ErrKeyMismatch
		}
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

	sigLen, n8, r, err := varint.Decode(r)
	if err != nil {
		return Decoded{}, object.ErrBadLength
	}
	if uint64(len(r)) < sigLen {
		return Decoded{}, object.ErrBadLength
	}
	sig := r[:sigLen]

	unsignedLen := len(cleartext) - len(r) - n8
	signedRegion = append(signedRegion, cleartext[:unsignedLen]...)

	ok, err := crypto.Verify(ctx, fixed.SignPublicKey, signedRegion, sig)
	if err != nil {
		return Decoded{}, object.ErrCryptoError
	}
	if !ok {
		return Decoded{}, object.ErrSignatureInvalid
	}

	encoding := Encoding(encodingVal)
	subject, body := splitBody(encoding, message)

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
		Subscription:            matched,
	}, nil
}

// Decode unwraps a framed network message and parses its broadcast
// payload.
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
