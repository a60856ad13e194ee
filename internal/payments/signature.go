package payments

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// Sign returns the checkout signature for a completed payment:
// hex(HMAC-SHA256(secret, orderID + "|" + paymentID)).
func Sign(secret, orderID, paymentID string) string {
	return hmacHex(secret, []byte(orderID+"|"+paymentID))
}

// VerifySignature checks a client-supplied checkout signature in constant time.
func VerifySignature(secret, orderID, paymentID, signature string) bool {
	if secret == "" || orderID == "" || paymentID == "" || signature == "" {
		return false
	}
	return equalHex(Sign(secret, orderID, paymentID), signature)
}

// SignWebhook returns hex(HMAC-SHA256(secret, body)) as sent in X-Razorpay-Signature.
func SignWebhook(secret string, body []byte) string {
	return hmacHex(secret, body)
}

// VerifyWebhookSignature checks a webhook body signature in constant time.
func VerifyWebhookSignature(secret string, body []byte, signature string) bool {
	if secret == "" || signature == "" {
		return false
	}
	return equalHex(SignWebhook(secret, body), signature)
}

func hmacHex(secret string, payload []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

// equalHex compares the provided signature byte for byte; only the exact lowercase hex
// digest is accepted.
func equalHex(expected, provided string) bool {
	return hmac.Equal([]byte(expected), []byte(provided))
}
