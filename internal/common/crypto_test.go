package common

import "testing"

func TestHashAndVerifySecret(t *testing.T) {
	digest, err := HashSecret("cs_supersecret")
	if err != nil {
		t.Fatal(err)
	}
	if digest == "cs_supersecret" {
		t.Fatalf("digest must not equal the plain secret")
	}
	if !VerifySecret("cs_supersecret", digest) {
		t.Fatalf("correct secret did not verify")
	}
	if VerifySecret("cs_wrong", digest) {
		t.Fatalf("wrong secret verified")
	}
}

func TestGenerateSecret(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 10; i++ {
		secret, err := GenerateSecret(32)
		if err != nil {
			t.Fatal(err)
		}
		if len(secret) != 32 {
			t.Fatalf("got length %d, want 32", len(secret))
		}
		for _, c := range secret {
			if !('a' <= c && c <= 'z' || 'A' <= c && c <= 'Z' || '0' <= c && c <= '9') {
				t.Fatalf("secret contains non-alphanumeric char %q", c)
			}
		}
		if seen[secret] {
			t.Fatalf("duplicate secret generated")
		}
		seen[secret] = true
	}
}
