package consensusparams

import "testing"

func TestTwoThirdsThresholdTable(t *testing.T) {
	want := map[int64]int64{0: 0, 1: 1, 2: 2, 3: 2, 4: 3, 5: 4, 6: 4, 7: 5}

	for n, expected := range want {
		cp, err := New(n)
		if err != nil {
			t.Fatalf("New(%d): %v", n, err)
		}
		if got := cp.TwoThirdsThreshold(); got != expected {
			t.Errorf("TwoThirdsThreshold(%d) = %d, want %d", n, got, expected)
		}
	}
}

func TestNewRejectsNegative(t *testing.T) {
	if _, err := New(-1); err == nil {
		t.Fatal("expected an error for a negative max_participants")
	}
}
