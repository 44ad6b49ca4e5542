package candidates

import (
	"context"
	"errors"
	"testing"

	"github.com/bmnet/bmobject/pkg/address"
	"github.com/bmnet/bmobject/pkg/bmcrypto"
)

func newAddr(t *testing.T, version, stream uint64) address.Address {
	t.Helper()
	signKP, err := bmcrypto.GenerateKeyPair()
	if err != nil {
		t.Fatal(err)
	}
	encKP, err := bmcrypto.GenerateKeyPair()
	if err != nil {
		t.Fatal(err)
	}
	a, err := address.New(version, stream, signKP.PrivateKeyBytes(), signKP.PublicKeyBytes(), encKP.PrivateKeyBytes(), encKP.PublicKeyBytes(), 0, 0, 0)
	if err != nil {
		t.Fatal(err)
	}
	return a
}

func TestFindByTagOne(t *testing.T) {
	a := newAddr(t, 4, 1)
	c := One(a)

	got, ok := c.FindByTag(a.Tag())
	if !ok || got != a {
		t.Fatal("One.FindByTag did not find the wrapped address")
	}

	var other [32]byte
	if _, ok := c.FindByTag(other); ok {
		t.Fatal("One.FindByTag matched an unrelated tag")
	}
}

func TestFindByTagMany(t *testing.T) {
	a1 := newAddr(t, 4, 1)
	a2 := newAddr(t, 4, 1)
	c := Many([]address.Address{a1, a2})

	got, ok := c.FindByTag(a2.Tag())
	if !ok || got != a2 {
		t.Fatal("Many.FindByTag did not find the second address")
	}
}

func TestFindByTagIgnoresPreV4(t *testing.T) {
	a := newAddr(t, 3, 1)
	c := One(a)

	if _, ok := c.FindByTag(a.Tag()); ok {
		t.Fatal("FindByTag matched a version < 4 address")
	}
}

func TestFindByTagByTagMap(t *testing.T) {
	a1 := newAddr(t, 4, 1)
	a2 := newAddr(t, 4, 1)
	m := map[[32]byte]address.Address{a1.Tag(): a1, a2.Tag(): a2}
	c := ByTag(m)

	got, ok := c.FindByTag(a1.Tag())
	if !ok || got != a1 {
		t.Fatal("ByTag.FindByTag did not find a1")
	}
}

func TestTryEachStopsAtFirstSuccess(t *testing.T) {
	a1 := newAddr(t, 4, 1)
	a2 := newAddr(t, 4, 1)
	c := Many([]address.Address{a1, a2})

	var attempted []address.Address
	got, err := c.TryEach(context.Background(), func(a address.Address) (bool, error) {
		attempted = append(attempted, a)
		return a == a2, nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if got != a2 {
		t.Fatal("TryEach did not return the succeeding candidate")
	}
	if len(attempted) != 2 {
		t.Fatalf("expected both candidates attempted in order, got %d", len(attempted))
	}
}

func TestTryEachSwallowsEarlierErrors(t *testing.T) {
	a1 := newAddr(t, 4, 1)
	a2 := newAddr(t, 4, 1)
	c := Many([]address.Address{a1, a2})

	boom := errors.New("boom")
	got, err := c.TryEach(context.Background(), func(a address.Address) (bool, error) {
		if a == a1 {
			return false, boom
		}
		return true, nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if got != a2 {
		t.Fatal("TryEach did not recover after an earlier candidate errored")
	}
}

func TestTryEachReturnsLastErrorWhenAllFail(t *testing.T) {
	a1 := newAddr(t, 4, 1)
	c := One(a1)

	boom := errors.New("boom")
	_, err := c.TryEach(context.Background(), func(address.Address) (bool, error) {
		return false, boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want boom", err)
	}
}

func TestTryEachNoCandidatesMatched(t *testing.T) {
	a1 := newAddr(t, 4, 1)
	c := One(a1)

	_, err := c.TryEach(context.Background(), func(address.Address) (bool, error) {
		return false, nil
	})
	if !errors.Is(err, ErrNoCandidateMatched) {
		t.Fatalf("err = %v, want ErrNoCandidateMatched", err)
	}
}

func TestTryEachByTagIsOrderStable(t *testing.T) {
	a1 := newAddr(t, 4, 1)
	a2 := newAddr(t, 4, 1)
	a3 := newAddr(t, 4, 1)
	m := map[[32]byte]address.Address{a1.Tag(): a1, a2.Tag(): a2, a3.Tag(): a3}
	c := ByTag(m)

	var first []address.Address
	for i := 0; i < 20; i++ {
		var attempted []address.Address
		_, err := c.TryEach(context.Background(), func(a address.Address) (bool, error) {
			attempted = append(attempted, a)
			return false, nil
		})
		if !errors.Is(err, ErrNoCandidateMatched) {
			t.Fatalf("err = %v, want ErrNoCandidateMatched", err)
		}
		if first == nil {
			first = attempted
			continue
		}
		if len(attempted) != len(first) {
			t.Fatalf("attempt order length changed across calls: got %d, want %d", len(attempted), len(first))
		}
		for pos, a := range attempted {
			if a != first[pos] {
				t.Fatalf("ByTag.TryEach order is not stable across calls: iteration %d differs at position %d", i, pos)
			}
		}
	}
}

func TestTryEachRespectsCancellation(t *testing.T) {
	a1 := newAddr(t, 4, 1)
	a2 := newAddr(t, 4, 1)
	c := Many([]address.Address{a1, a2})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.TryEach(ctx, func(address.Address) (bool, error) {
		t.Fatal("fn should not be called with an already-cancelled context")
		return false, nil
	})
	if err == nil {
		t.Fatal("expected an error from a cancelled context")
	}
}
