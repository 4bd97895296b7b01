package security

import "testing"

func testHasher(t *testing.T) *PasswordHasher {
	t.Helper()
	h, err := NewPasswordHasher(Argon2Config{Memory: 8 * 1024, Iterations: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32})
	if err != nil {
		t.Fatalf("NewPasswordHasher: %v", err)
	}
	return h
}

func TestPasswordHasherRoundTrip(t *testing.T) {
	h := testHasher(t)

	encoded, err := h.Hash("Treasury#2024")
	if err != nil {
		t.Fatalf("Hash returned error: %v", err)
	}

	ok, err := h.Verify("Treasury#2024", encoded)
	if err != nil || !ok {
		t.Fatalf("expected password to verify, ok=%v err=%v", ok, err)
	}

	ok, err = h.Verify("treasury#2024", encoded)
	if err != nil {
		t.Fatalf("Verify returned error: %v", err)
	}
	if ok {
		t.Fatal("expected mismatch for different password")
	}
}

func TestPasswordHasherSaltsEveryHash(t *testing.T) {
	h := testHasher(t)

	first, _ := h.Hash("same-password")
	second, _ := h.Hash("same-password")
	if first == second {
		t.Fatal("expected distinct encodings for repeated hashes")
	}
}

func TestPasswordHasherRejectsMalformedHash(t *testing.T) {
	h := testHasher(t)

	for _, encoded := range []string{
		"plain",
		"argon2i$v=19$m=8192,t=1,p=1$c2FsdHNhbHQ$aGFzaA",
		"argon2id$v=18$m=8192,t=1,p=1$c2FsdHNhbHQ$aGFzaA",
		"argon2id$v=19$m=8192,t=1$c2FsdHNhbHQ$aGFzaA",
	} {
		if _, err := h.Verify("secret", encoded); err == nil {
			t.Errorf("expected error for %q", encoded)
		}
	}
}

func TestPasswordHasherNeedsRehash(t *testing.T) {
	weak := testHasher(t)
	encoded, _ := weak.Hash("secret-value")

	strong, err := NewPasswordHasher(DefaultArgon2Config())
	if err != nil {
		t.Fatalf("NewPasswordHasher: %v", err)
	}
	if !strong.NeedsRehash(encoded) {
		t.Fatal("expected rehash for weaker parameters")
	}
	if weak.NeedsRehash(encoded) {
		t.Fatal("expected no rehash for matching parameters")
	}
}

func TestNewPasswordHasherValidatesConfig(t *testing.T) {
	if _, err := NewPasswordHasher(Argon2Config{Memory: 1024, Iterations: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32}); err == nil {
		t.Fatal("expected error for too little memory")
	}
}
