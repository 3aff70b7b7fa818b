package secretbox

import "testing"

func TestSealOpenRoundTrip(t *testing.T) {
	blob, err := Seal("correct-horse-battery-staple", "hunter2")
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}

	got, err := Open(blob, "hunter2")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if got != "correct-horse-battery-staple" {
		t.Errorf("got %q, want original plaintext", got)
	}
}

func TestOpenRejectsWrongPassword(t *testing.T) {
	blob, err := Seal("top-secret", "right-password")
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}

	if _, err := Open(blob, "wrong-password"); err == nil {
		t.Fatal("expected error decrypting with wrong password")
	}
}

func TestSealRejectsEmptyPassword(t *testing.T) {
	if _, err := Seal("value", ""); err == nil {
		t.Fatal("expected error sealing with empty password")
	}
}

func TestSealProducesDistinctSaltPerCall(t *testing.T) {
	a, err := Seal("value", "password")
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}
	b, err := Seal("value", "password")
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}
	if string(a) == string(b) {
		t.Error("two seals of the same plaintext/password should differ (random salt/nonce)")
	}
}
