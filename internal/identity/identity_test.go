package identity

import "testing"

func TestFingerprint_Deterministic(t *testing.T) {
	first := Fingerprint("203.0.113.7", "Mozilla/5.0")
	second := Fingerprint("203.0.113.7", "Mozilla/5.0")
	if first != second {
		t.Fatalf("expected identical fingerprints, got %q and %q", first, second)
	}
	if len(first) != fingerprintLen {
		t.Fatalf("expected length %d, got %d", fingerprintLen, len(first))
	}
}

func TestFingerprint_VariesWithSignature(t *testing.T) {
	base := Fingerprint("203.0.113.7", "Mozilla/5.0")
	other := Fingerprint("203.0.113.7", "curl/8.0")
	if base == other {
		t.Fatalf("expected different fingerprints for different signatures, both %q", base)
	}
}

func TestFingerprint_EmptyInputs(t *testing.T) {
	id := Fingerprint("", "")
	if id == "" {
		t.Fatal("expected non-empty fingerprint for empty inputs")
	}
}

func TestShort(t *testing.T) {
	if got := Short("abcdefghij"); got != "abcdefgh" {
		t.Fatalf("expected abcdefgh, got %q", got)
	}
	if got := Short("abc"); got != "abc" {
		t.Fatalf("expected abc, got %q", got)
	}
}
