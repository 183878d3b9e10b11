// Package pomelo implements the card network's symmetric webhook signature
// scheme: HMAC-SHA256 over timestamp || endpoint path || raw body, base64
// encoded and tagged with the algorithm name.
package pomelo

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"strings"
)

const algorithmPrefix = "hmac-sha256 "

// Signer signs and verifies webhook payloads with a shared secret. The
// scheme is symmetric, so the same Signer also signs outgoing responses.
type Signer struct {
	secret []byte
}

func NewSigner(secret string) *Signer {
	return &Signer{secret: []byte(secret)}
}

// Sign computes the signature for the given material. The timestamp is used
// verbatim as signed bytes, never parsed.
func (s *Signer) Sign(timestamp, endpointPath string, body []byte) string {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write([]byte(timestamp))
	mac.Write([]byte(endpointPath))
	mac.Write(body)
	return algorithmPrefix + base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// Verify reports whether received is a valid signature over the material.
// Malformed input (wrong algorithm tag, bad base64, length mismatch) is a
// verification failure, not an error. The comparison is constant-time.
func (s *Signer) Verify(timestamp, endpointPath string, body []byte, received string) bool {
	if !strings.HasPrefix(received, algorithmPrefix) {
		return false
	}
	got, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(received, algorithmPrefix))
	if err != nil {
		return false
	}

	mac := hmac.New(sha256.New, s.secret)
	mac.Write([]byte(timestamp))
	mac.Write([]byte(endpointPath))
	mac.Write(body)
	want := mac.Sum(nil)

	return subtle.ConstantTimeCompare(want, got) == 1
}
