package service

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"
)

// HMACSignatureService implements ports.SignatureService using HMAC-SHA256.
type HMACSignatureService struct{}

// NewHMACSignatureService creates a new HMAC-SHA256 signature service.
func NewHMACSignatureService() *HMACSignatureService {
	return &HMACSignatureService{}
}

// Sign computes HMAC-SHA256 of payload using secretKey.
// Returns lowercase hex-encoded signature.
func (s *HMACSignatureService) Sign(secretKey string, payload string) string {
	mac := hmac.New(sha256.New, []byte(secretKey))
	mac.Write([]byte(payload))
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify checks signature in constant time.
func (s *HMACSignatureService) Verify(secretKey string, payload string, signature string) bool {
	expected := s.Sign(secretKey, payload)
	return hmac.Equal([]byte(expected), []byte(strings.ToLower(signature)))
}

// BuildCanonicalString joins the signed parts of a relay delivery.
// Format: TIMESTAMP.DELIVERY_ID.BODY
func (s *HMACSignatureService) BuildCanonicalString(timestamp int64, deliveryID string, body string) string {
	var b strings.Builder
	b.Grow(len(body) + len(deliveryID) + 24)
	b.WriteString(strconv.FormatInt(timestamp, 10))
	b.WriteByte('.')
	b.WriteString(deliveryID)
	b.WriteByte('.')
	b.WriteString(body)
	return b.String()
}
