package pomelo_test

import (
	"strings"
	"testing"

	"github.com/antipr000/NobaServer-sub008/internal/pomelo"
)

const (
	testSecret    = "test-shared-secret"
	testTimestamp = "1693526400"
	testPath      = "/webhooks/pomelo/transactions/authorizations"
)

func TestSignVerifyRoundTrip(t *testing.T) {
	s := pomelo.NewSigner(testSecret)
	body := []byte(`{"transaction_id":"tx-1","local_amount":"5000"}`)

	sig := s.Sign(testTimestamp, testPath, body)
	if !strings.HasPrefix(sig, "hmac-sha256 ") {
		t.Fatalf("signature missing algorithm tag: %q", sig)
	}
	if !s.Verify(testTimestamp, testPath, body, sig) {
		t.Fatal("expected valid signature to verify")
	}
}

func TestSignDeterministic(t *testing.T) {
	s := pomelo.NewSigner(testSecret)
	body := []byte("payload")

	if s.Sign(testTimestamp, testPath, body) != s.Sign(testTimestamp, testPath, body) {
		t.Fatal("same material must produce the same signature")
	}
}

func TestVerifyRejectsTamperedMaterial(t *testing.T) {
	s := pomelo.NewSigner(testSecret)
	body := []byte(`{"transaction_id":"tx-1"}`)
	sig := s.Sign(testTimestamp, testPath, body)

	// Flip one bit of the body.
	tampered := append([]byte(nil), body...)
	tampered[0] ^= 0x01
	if s.Verify(testTimestamp, testPath, tampered, sig) {
		t.Fatal("bit-flipped body must fail verification")
	}

	// One second of timestamp drift without matching bytes.
	if s.Verify("1693526401", testPath, body, sig) {
		t.Fatal("different timestamp must fail verification")
	}

	if s.Verify(testTimestamp, "/webhooks/pomelo/transactions/adjustments", body, sig) {
		t.Fatal("different endpoint path must fail verification")
	}

	if s.Verify(testTimestamp, testPath, body, pomelo.NewSigner("other-secret").Sign(testTimestamp, testPath, body)) {
		t.Fatal("signature under a different secret must fail verification")
	}
}

func TestVerifyRejectsMalformedSignatures(t *testing.T) {
	s := pomelo.NewSigner(testSecret)
	body := []byte("payload")
	valid := s.Sign(testTimestamp, testPath, body)

	cases := map[string]string{
		"empty":           "",
		"no tag":          strings.TrimPrefix(valid, "hmac-sha256 "),
		"wrong tag":       "hmac-sha512 " + strings.TrimPrefix(valid, "hmac-sha256 "),
		"not base64":      "hmac-sha256 %%%not-base64%%%",
		"truncated":       valid[:len(valid)-8],
		"trailing junk": valid + "AAAA",
	}
	for name, sig := range cases {
		if s.Verify(testTimestamp, testPath, body, sig) {
			t.Errorf("%s: malformed signature %q must fail verification", name, sig)
		}
	}
}
