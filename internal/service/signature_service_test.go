package service

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHMACSignatureService_SignAndVerify(t *testing.T) {
	svc := NewHMACSignatureService()
	payload := svc.BuildCanonicalString(1708092000, "dlv-1", `{"kind":"ESCROW_INVITE"}`)

	signature := svc.Sign("relay-secret", payload)

	assert.Regexp(t, `^[0-9a-f]{64}$`, signature)
	assert.True(t, svc.Verify("relay-secret", payload, signature))
	assert.True(t, svc.Verify("relay-secret", payload, strings.ToUpper(signature)), "hex case is not significant")
}

func TestHMACSignatureService_VerifyFails(t *testing.T) {
	svc := NewHMACSignatureService()
	signature := svc.Sign("key", "original payload")

	tests := []struct {
		name      string
		key       string
		payload   string
		signature string
	}{
		{"wrong key", "other-key", "original payload", signature},
		{"tampered payload", "key", "tampered payload", signature},
		{"garbage signature", "key", "original payload", "invalidsignature"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.False(t, svc.Verify(tt.key, tt.payload, tt.signature))
		})
	}
}

func TestHMACSignatureService_DeterministicSign(t *testing.T) {
	svc := NewHMACSignatureService()
	assert.Equal(t, svc.Sign("key", "data"), svc.Sign("key", "data"))
}

func TestHMACSignatureService_BuildCanonicalString(t *testing.T) {
	svc := NewHMACSignatureService()

	assert.Equal(t, `1708092000.dlv-1.{"to":"r@x.com"}`, svc.BuildCanonicalString(1708092000, "dlv-1", `{"to":"r@x.com"}`))
	assert.Equal(t, "1708092000.dlv-2.", svc.BuildCanonicalString(1708092000, "dlv-2", ""))
}
