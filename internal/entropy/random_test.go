package entropy

import "testing"

func TestSeedIsPositive(t *testing.T) {
	for i := 0; i < 100; i++ {
		if s := Seed(); s <= 0 {
			t.Fatalf("seed %d not positive", s)
		}
	}
}

func TestResolveKeepsConfiguredSeed(t *testing.T) {
	if got := Resolve(42); got != 42 {
		t.Fatalf("Resolve(42) = %d", got)
	}
	if got := Resolve(0); got == 0 {
		t.Fatal("Resolve(0) returned zero")
	}
}
