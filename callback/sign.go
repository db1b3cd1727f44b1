package callback

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// sign returns the hex-encoded HMAC-SHA256 of body keyed by secret.
func sign(secret []byte, body []byte) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// verify reports whether sig is the correct hex HMAC-SHA256 of body
// under secret, using a constant-time comparison. An empty secret
// never verifies: the ingest must not silently accept unsigned
// requests because of a misconfigured deployment.
func verify(secret []byte, body []byte, sig string) bool {
	if len(secret) == 0 {
		return false
	}
	decoded, err := hex.DecodeString(sig)
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, secret)
	mac.Write(body)
	expected := mac.Sum(nil)
	return hmac.Equal(decoded, expected)
}
