// Package webhook hosts the inbound webhook listener: HMAC-verified Linear
// and GitHub events plus vendor alert transformers that forward into chat.
package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"strings"
)

// VerifyHMAC checks a hex-encoded HMAC-SHA256 signature over body. GitHub's
// "sha256=" prefix is stripped; Linear sends bare hex. An empty secret
// accepts everything. Comparison is constant time.
func VerifyHMAC(body []byte, headerValue, secret string) error {
	if secret == "" {
		return nil
	}
	if headerValue == "" {
		return fmt.Errorf("webhook: signature header missing")
	}

	provided := strings.TrimPrefix(headerValue, "sha256=")
	expected := ComputeHMAC(body, secret)
	if subtle.ConstantTimeCompare([]byte(expected), []byte(provided)) != 1 {
		return fmt.Errorf("webhook: signature mismatch")
	}
	return nil
}

// ComputeHMAC returns the hex HMAC-SHA256 of body under secret.
func ComputeHMAC(body []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}
