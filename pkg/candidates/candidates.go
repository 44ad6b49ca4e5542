// Package candidates implements the tagged-variant recipient/identity
// lookup the pubkey v4, msg, and broadcast v5 decoders use: a set of
// candidate addresses expressed as a single address, an ordered
// sequence, or a tag-keyed map, with a uniform FindByTag/TryEach
// surface regardless of which shape the caller built (spec.md §4.6
// "findAddrByTag", §9's tagged-variant design note).
package candidates

import (
	"bytes"
	"context"
	"sort"

	"github.com/bmnet/bmobject/pkg/address"
)

// kind distinguishes the three candidate shapes.
type kind int

const (
	kindOne kind = iota
	kindMany
	kindByTag
)

// Candidates is the tagged variant of possible decode-time recipient
// or identity sets.
type Candidates struct {
	kind kind
	one  address.Address
	many []address.Address
	byTag map[[32]byte]address.Address
}

// One wraps a single candidate address.
func One(a address.Address) Candidates {
	return Candidates{kind: kindOne, one: a}
}

// Many wraps an ordered sequence of candidate addresses, scanned in
// order (O(n) lookup).
func Many(a []address.Address) Candidates {
	return Candidates{kind: kindMany, many: a}
}

// ByTag wraps a tag-keyed map of candidate addresses (O(1) lookup).
func ByTag(m map[[32]byte]address.Address) Candidates {
	return Candidates{kind: kindByTag, byTag: m}
}

// FindByTag returns the first candidate with version >= 4 whose tag
// matches, per spec.md §4.6's findAddrByTag.
func (c Candidates) FindByTag(tag [32]byte) (address.Address, bool) {
	switch c.kind {
	case kindOne:
		if c.one != nil && c.one.Version() >= 4 && c.one.Tag() == tag {
			return c.one, true
		}
		return nil, false
	case kindMany:
		for _, a := range c.many {
			if a != nil && a.Version() >= 4 && a.Tag() == tag {
				return a, true
			}
		}
		return nil, false
	case kindByTag:
		a, ok := c.byTag[tag]
		if !ok || a.Version() < 4 {
			return nil, false
		}
		return a, true
	default:
		return nil, false
	}
}

// each returns the candidates in a stable iteration order, regardless
// of the underlying shape. For kindByTag, which has no caller-supplied
// order to preserve, entries are sorted by tag so that TryEach's
// "first matching candidate" guarantee doesn't depend on Go's
// randomized map iteration.
func (c Candidates) each() []address.Address {
	switch c.kind {
	case kindOne:
		if c.one == nil {
			return nil
		}
		return []address.Address{c.one}
	case kindMany:
		return c.many
	case kindByTag:
		tags := make([][32]byte, 0, len(c.byTag))
		for tag := range c.byTag {
			tags = append(tags, tag)
		}
		sort.Slice(tags, func(i, j int) bool {
			return bytes.Compare(tags[i][:], tags[j][:]) < 0
		})
		out := make([]address.Address, 0, len(tags))
		for _, tag := range tags {
			out = append(out, c.byTag[tag])
		}
		return out
	default:
		return nil
	}
}

// TryEach attempts fn against every candidate in order, stopping at
// the first success. It returns the succeeding candidate, or an error
// if every attempt failed or ctx was cancelled first (spec.md §5
// "ECIES decryption attempts ... one attempt per candidate identity,
// serialized").
func (c Candidates) TryEach(ctx context.Context, fn func(address.Address) (bool, error)) (address.Address, error) {
	var lastErr error
	for _, a := range c.each() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		ok, err := fn(a)
		if err != nil {
			lastErr = err
			continue
		}
		if ok {
			return a, nil
		}
	}
	if lastErr != nil {
		return nil, lastErr
	}
	return nil, ErrNoCandidateMatched
}
