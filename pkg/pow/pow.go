// Package pow implements the proof-of-work nonce search the object
// envelope suspends on while preparing an outbound object (spec.md
// §4.1/§5.2, GLOSSARY "POW"). The target formula and double-SHA-512
// trial loop follow the real network's difficulty scheme; the
// context-cancellation polling idiom follows the teacher's
// retransmit-timer cancellation in its backoff/retry code.
package pow

import (
	"context"
	"crypto/sha512"
	"encoding/binary"
	"errors"
	"math"
	"math/big"
	"time"
)

// Default difficulty parameters used when an Address does not declare
// its own (spec.md §3.3).
const (
	DefaultNonceTrialsPerByte      = 1000
	DefaultPayloadLengthExtraBytes = 1000
)

// ErrCancelled is returned by Solve when ctx is cancelled before a
// nonce satisfying the target is found.
var ErrCancelled = errors.New("pow: solve cancelled")

// Solver searches for a nonce whose double-SHA-512 digest, prefixed to
// a payload's hash, is numerically below a target.
type Solver interface {
	// Target computes the proof-of-work target for a payload of the
	// given length (including the eventual 8-byte nonce) and
	// time-to-live, scaled by the recipient's declared difficulty
	// parameters.
	Target(payloadLength int, ttl time.Duration, nonceTrialsPerByte, payloadLengthExtraBytes uint64) [32]byte

	// Solve searches for a nonce such that
	// SHA512(SHA512(nonce || initialHash))[:8], read as a big-endian
	// u64, is less than or equal to the big-endian u64 formed from
	// target's first 8 bytes. initialHash is SHA512(payload), computed
	// once by the caller rather than per trial. It polls ctx
	// periodically and returns ErrCancelled if ctx is done before a
	// solution is found.
	Solve(ctx context.Context, target [32]byte, initialHash [sha512.Size]byte) (uint64, error)
}

// CPUSolver is the reference Solver implementation: a single-goroutine
// incrementing nonce search.
type CPUSolver struct {
	// PollEvery controls how many trial nonces are attempted between
	// ctx.Done() checks. Zero selects a sensible default.
	PollEvery uint64
}

// NewCPUSolver returns the reference CPUSolver.
func NewCPUSolver() *CPUSolver {
	return &CPUSolver{}
}

// Target implements Solver. The formula mirrors the real network's
// difficulty target:
//
//	target = 2^64 / (nonceTrialsPerByte * (payloadLength + payloadLengthExtraBytes + ((ttlSeconds * (payloadLength + payloadLengthExtraBytes)) / 2^16)))
func (s *CPUSolver) Target(payloadLength int, ttl time.Duration, nonceTrialsPerByte, payloadLengthExtraBytes uint64) [32]byte {
	if nonceTrialsPerByte == 0 {
		nonceTrialsPerByte = DefaultNonceTrialsPerByte
	}
	if payloadLengthExtraBytes == 0 {
		payloadLengthExtraBytes = DefaultPayloadLengthExtraBytes
	}

	ttlSeconds := uint64(ttl.Seconds())
	if ttl < 0 {
		ttlSeconds = 0
	}

	length := uint64(payloadLength) + payloadLengthExtraBytes

	denominator := new(big.Int).SetUint64(nonceTrialsPerByte)
	inner := new(big.Int).SetUint64(length)
	inner.Add(inner, new(big.Int).Div(
		new(big.Int).Mul(new(big.Int).SetUint64(ttlSeconds), new(big.Int).SetUint64(length)),
		big.NewInt(1<<16),
	))
	denominator.Mul(denominator, inner)
	if denominator.Sign() == 0 {
		denominator = big.NewInt(1)
	}

	numerator := new(big.Int).Lsh(big.NewInt(1), 64)
	quotient := new(big.Int).Div(numerator, denominator)

	// The u64 target sits big-endian in the first 8 bytes, where Solve
	// reads it.
	targetValue := uint64(math.MaxUint64)
	if quotient.IsUint64() {
		targetValue = quotient.Uint64()
	}
	var target [32]byte
	binary.BigEndian.PutUint64(target[:8], targetValue)
	return target
}

// Solve implements Solver.
func (s *CPUSolver) Solve(ctx context.Context, target [32]byte, initialHash [sha512.Size]byte) (uint64, error) {
	pollEvery := s.PollEvery
	if pollEvery == 0 {
		pollEvery = 1 << 16
	}

	targetValue := binary.BigEndian.Uint64(target[:8])

	buf := make([]byte, 8+sha512.Size)
	copy(buf[8:], initialHash[:])

	for nonce := uint64(0); nonce < math.MaxUint64; nonce++ {
		if nonce%pollEvery == 0 {
			if err := ctx.Err(); err != nil {
				return 0, ErrCancelled
			}
		}

		binary.BigEndian.PutUint64(buf[:8], nonce)
		trial := trialValue(buf)
		if trial <= targetValue {
			return nonce, nil
		}
	}
	return 0, ErrCancelled
}

// trialValue computes the leading 8 bytes of double-SHA-512(nonce ||
// initialHash) as a big-endian u64, the POW trial value the network
// compares against a target.
func trialValue(buf []byte) uint64 {
	first := sha512.Sum512(buf)
	second := sha512.Sum512(first[:])
	return binary.BigEndian.Uint64(second[:8])
}
