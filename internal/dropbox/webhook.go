package dropbox

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// SignatureHeader is the header Dropbox signs webhook notifications with.
const SignatureHeader = "X-Dropbox-Signature"

// VerifySignature reports whether signature is a valid HMAC-SHA256 hex digest
// of body under the app secret. The comparison is constant time.
func VerifySignature(appSecret string, body []byte, signature string) bool {
	mac := hmac.New(sha256.New, []byte(appSecret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}
