package webhook

import "testing"

func TestVerifyHMACValidSignature(t *testing.T) {
	body := []byte(`{"type":"Project","action":"create"}`)
	sig := ComputeHMAC(body, "topsecret")
	if err := VerifyHMAC(body, sig, "topsecret"); err != nil {
		t.Fatalf("valid signature rejected: %v", err)
	}
}

func TestVerifyHMACGitHubPrefix(t *testing.T) {
	body := []byte(`{"action":"closed"}`)
	sig := "sha256=" + ComputeHMAC(body, "topsecret")
	if err := VerifyHMAC(body, sig, "topsecret"); err != nil {
		t.Fatalf("prefixed signature rejected: %v", err)
	}
}

func TestVerifyHMACInvalidSignature(t *testing.T) {
	body := []byte(`{"a":1}`)
	if err := VerifyHMAC(body, ComputeHMAC(body, "wrong"), "topsecret"); err == nil {
		t.Fatal("signature under the wrong secret accepted")
	}
	if err := VerifyHMAC(body, "deadbeef", "topsecret"); err == nil {
		t.Fatal("garbage signature accepted")
	}
}

func TestVerifyHMACMissingHeader(t *testing.T) {
	if err := VerifyHMAC([]byte("body"), "", "topsecret"); err == nil {
		t.Fatal("missing header accepted while a secret is configured")
	}
}

func TestVerifyHMACNoSecretAcceptsAll(t *testing.T) {
	if err := VerifyHMAC([]byte("body"), "", ""); err != nil {
		t.Fatalf("no-secret verification failed: %v", err)
	}
	if err := VerifyHMAC([]byte("body"), "nonsense", ""); err != nil {
		t.Fatalf("no-secret verification failed: %v", err)
	}
}

func TestVerifyHMACTamperedBody(t *testing.T) {
	sig := ComputeHMAC([]byte("original"), "topsecret")
	if err := VerifyHMAC([]byte("tampered"), sig, "topsecret"); err == nil {
		t.Fatal("tampered body accepted")
	}
}
