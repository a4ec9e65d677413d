package service

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"secure-escrow/internal/core/ports"
	"secure-escrow/internal/core/ports/mocks"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

// mockHTTPClient implements HTTPClient for testing.
type mockHTTPClient struct {
	doFunc func(req *http.Request) (*http.Response, error)
}

func (m *mockHTTPClient) Do(req *http.Request) (*http.Response, error) {
	return m.doFunc(req)
}

func newTestLogger() zerolog.Logger {
	return zerolog.New(io.Discard)
}

func okResponse(status int) *http.Response {
	return &http.Response{StatusCode: status, Body: io.NopCloser(strings.NewReader(""))}
}

func TestNotificationService_Notify_DeliversSignedPayload(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	sigSvc := mocks.NewMockSignatureService(ctrl)
	escrowID := uuid.New()

	delivered := make(chan *http.Request, 1)
	var body []byte
	httpClient := &mockHTTPClient{
		doFunc: func(req *http.Request) (*http.Response, error) {
			body, _ = io.ReadAll(req.Body)
			delivered <- req
			return okResponse(http.StatusAccepted), nil
		},
	}

	sigSvc.EXPECT().BuildCanonicalString(gomock.Any(), gomock.Any(), gomock.Any()).Return("canonical")
	sigSvc.EXPECT().Sign("relay-secret", "canonical").Return("sig-hex")

	svc := NewNotificationService("https://relay.example.com/notify", "relay-secret", sigSvc, httpClient, newTestLogger())

	err := svc.Notify(context.Background(), ports.Notification{
		Kind:     ports.NotifyEscrowInvite,
		To:       "r@x.com",
		EscrowID: &escrowID,
		Data:     map[string]string{"amount": "5"},
	})
	require.NoError(t, err)

	select {
	case req := <-delivered:
		assert.Equal(t, http.MethodPost, req.Method)
		assert.Equal(t, "sig-hex", req.Header.Get(HeaderSignature))
		assert.NotEmpty(t, req.Header.Get(HeaderTimestamp))
		assert.NotEmpty(t, req.Header.Get(HeaderDeliveryID))

		var payload RelayPayload
		require.NoError(t, json.Unmarshal(body, &payload))
		assert.Equal(t, ports.NotifyEscrowInvite, payload.Kind)
		assert.Equal(t, "r@x.com", payload.To)
		assert.Equal(t, escrowID, *payload.EscrowID)
		assert.Equal(t, req.Header.Get(HeaderDeliveryID), payload.DeliveryID)
	case <-time.After(2 * time.Second):
		t.Fatal("notification delivery timed out")
	}
}

func TestNotificationService_Notify_RetriesUntilSuccess(t *testing.T) {
	sig := NewHMACSignatureService()

	var calls atomic.Int32
	done := make(chan struct{})
	httpClient := &mockHTTPClient{
		doFunc: func(req *http.Request) (*http.Response, error) {
			switch calls.Add(1) {
			case 1:
				return nil, errors.New("connection refused")
			case 2:
				return okResponse(http.StatusBadGateway), nil
			default:
				close(done)
				return okResponse(http.StatusOK), nil
			}
		},
	}

	svc := NewNotificationService("https://relay.example.com/notify", "secret", sig, httpClient, newTestLogger())
	svc.retries = []time.Duration{time.Millisecond, time.Millisecond, time.Millisecond}

	require.NoError(t, svc.Notify(context.Background(), ports.Notification{Kind: ports.NotifyPasscode, To: "a@x.com"}))

	select {
	case <-done:
		assert.Equal(t, int32(3), calls.Load())
	case <-time.After(2 * time.Second):
		t.Fatal("notification was not retried")
	}
}

func TestNotificationService_Notify_GivesUpAfterRetries(t *testing.T) {
	var calls atomic.Int32
	httpClient := &mockHTTPClient{
		doFunc: func(req *http.Request) (*http.Response, error) {
			calls.Add(1)
			return okResponse(http.StatusInternalServerError), nil
		},
	}

	svc := NewNotificationService("https://relay.example.com/notify", "secret", NewHMACSignatureService(), httpClient, newTestLogger())
	svc.retries = []time.Duration{time.Millisecond}

	require.NoError(t, svc.Notify(context.Background(), ports.Notification{Kind: ports.NotifyEscrowDisputed, To: "a@x.com"}))

	assert.Eventually(t, func() bool { return calls.Load() == 2 }, 2*time.Second, 5*time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, int32(2), calls.Load(), "one initial attempt plus one retry")
}

func TestNotificationService_Notify_NoRelayLogsOnly(t *testing.T) {
	httpClient := &mockHTTPClient{
		doFunc: func(req *http.Request) (*http.Response, error) {
			t.Fatal("relay should not be called")
			return nil, nil
		},
	}

	svc := NewNotificationService("", "", NewHMACSignatureService(), httpClient, newTestLogger())

	err := svc.Notify(context.Background(), ports.Notification{Kind: ports.NotifyPasscode, To: "a@x.com", Data: map[string]string{"code": "123456"}})
	assert.NoError(t, err)
	time.Sleep(20 * time.Millisecond)
}
