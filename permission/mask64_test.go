package permission

import (
	"math/rand"
	"testing"
)

func TestApplyMatchesMergeRule(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 1000; i++ {
		old := Mask64(rng.Uint64())
		grant := Mask64(rng.Uint64())
		revoke := Mask64(rng.Uint64())

		got := old.Apply(grant, revoke)
		want := (old & ^revoke) | grant
		if got != want {
			t.Fatalf("Apply(%x, %x) on %x = %x, want %x", grant, revoke, old, got, want)
		}
		if again := got.Apply(grant, revoke); again != got {
			t.Fatalf("Apply not idempotent: %x then %x", got, again)
		}
	}
}

func TestApplyGrantWinsOverRevoke(t *testing.T) {
	var m Mask64
	if got := m.Apply(ExternalPermission, ExternalPermission); got != ExternalPermission {
		t.Fatalf("expected grant to win, got %x", got)
	}
}

func TestApplyGrantThenRevokeRestoresZero(t *testing.T) {
	var m Mask64
	m = m.Apply(ExternalPermission, 0)
	m = m.Apply(0, ExternalPermission)
	if m != 0 {
		t.Fatalf("expected zero mask, got %x", m)
	}
}

func TestAbsoluteSetForm(t *testing.T) {
	m := Mask64(0xf0f0)
	desired := Mask64(0x0101)
	if got := m.Apply(desired, ^desired); got != desired {
		t.Fatalf("expected %x, got %x", desired, got)
	}
}

func TestBitHelpersIgnoreOutOfRange(t *testing.T) {
	var m Mask64
	m.Set(-1)
	m.Set(64)
	if m != 0 {
		t.Fatalf("out-of-range Set mutated mask: %x", m)
	}
	m.Set(3)
	if !m.Has(3) || m.Has(64) {
		t.Fatalf("unexpected Has results for %x", m)
	}
	m.Clear(3)
	if m.Raw() != 0 {
		t.Fatalf("expected cleared mask, got %x", m.Raw())
	}
}

func TestContains(t *testing.T) {
	m := ExternalPermission | 1<<5
	if !m.Contains(ExternalPermission) {
		t.Fatal("expected external permission to be contained")
	}
	if m.Contains(0) {
		t.Fatal("empty flag set must not be contained")
	}
	if m.Contains(1 << 6) {
		t.Fatal("unexpected containment of unset bit")
	}
}
