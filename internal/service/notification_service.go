package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"secure-escrow/internal/core/ports"
	"secure-escrow/internal/metrics"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// relayRetryIntervals are the waits between delivery attempts.
var relayRetryIntervals = []time.Duration{
	15 * time.Second,
	60 * time.Second,
	2 * time.Minute,
	5 * time.Minute,
	10 * time.Minute,
}

// Relay delivery headers.
const (
	HeaderSignature  = "X-Escrow-Signature"
	HeaderTimestamp  = "X-Escrow-Timestamp"
	HeaderDeliveryID = "X-Escrow-Delivery-Id"
)

// RelayPayload is the JSON body POSTed to the notification relay.
type RelayPayload struct {
	DeliveryID string                 `json:"delivery_id"`
	Kind       ports.NotificationKind `json:"kind"`
	To         string                 `json:"to"`
	EscrowID   *uuid.UUID             `json:"escrow_id,omitempty"`
	Data       map[string]string      `json:"data,omitempty"`
	Timestamp  int64                  `json:"timestamp"`
}

// HTTPClient interface for testability.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// NotificationServiceImpl implements ports.Notifier by POSTing signed
// payloads to a relay. With no relay URL it only logs.
type NotificationServiceImpl struct {
	relayURL   string
	secret     string
	sigSvc     ports.SignatureService
	httpClient HTTPClient
	retries    []time.Duration
	log        zerolog.Logger
}

// NewNotificationService creates a new relay notifier.
func NewNotificationService(
	relayURL string,
	secret string,
	sigSvc ports.SignatureService,
	httpClient HTTPClient,
	log zerolog.Logger,
) *NotificationServiceImpl {
	return &NotificationServiceImpl{
		relayURL:   relayURL,
		secret:     secret,
		sigSvc:     sigSvc,
		httpClient: httpClient,
		retries:    relayRetryIntervals,
		log:        log,
	}
}

// Notify queues n for delivery and returns immediately.
func (s *NotificationServiceImpl) Notify(_ context.Context, n ports.Notification) error {
	payload := RelayPayload{
		DeliveryID: uuid.NewString(),
		Kind:       n.Kind,
		To:         n.To,
		EscrowID:   n.EscrowID,
		Data:       n.Data,
		Timestamp:  time.Now().Unix(),
	}

	if s.relayURL == "" {
		metrics.NotificationsTotal.WithLabelValues("logged").Inc()
		s.log.Info().
			Str("kind", string(n.Kind)).
			Str("to", n.To).
			Str("delivery_id", payload.DeliveryID).
			Msg("notification relay disabled, logging only")
		s.log.Debug().Interface("data", n.Data).Str("delivery_id", payload.DeliveryID).Msg("notification data")
		return nil
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}
	signature := s.sigSvc.Sign(s.secret, s.sigSvc.BuildCanonicalString(payload.Timestamp, payload.DeliveryID, string(body)))

	go s.deliverWithRetries(payload, body, signature)
	return nil
}

// deliverWithRetries POSTs the payload until a 2xx or the retries run out.
func (s *NotificationServiceImpl) deliverWithRetries(payload RelayPayload, body []byte, signature string) {
	log := s.log.With().Str("delivery_id", payload.DeliveryID).Str("kind", string(payload.Kind)).Logger()

	for attempt := 0; attempt <= len(s.retries); attempt++ {
		if attempt > 0 {
			time.Sleep(s.retries[attempt-1])
		}

		req, err := http.NewRequest(http.MethodPost, s.relayURL, bytes.NewReader(body))
		if err != nil {
			log.Error().Err(err).Msg("notification: failed to create request")
			metrics.NotificationsTotal.WithLabelValues("failed").Inc()
			return
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set(HeaderSignature, signature)
		req.Header.Set(HeaderTimestamp, strconv.FormatInt(payload.Timestamp, 10))
		req.Header.Set(HeaderDeliveryID, payload.DeliveryID)

		resp, err := s.httpClient.Do(req)
		if err != nil {
			log.Warn().Err(err).Int("attempt", attempt+1).Msg("notification: delivery failed")
			continue
		}
		resp.Body.Close()

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			metrics.NotificationsTotal.WithLabelValues("delivered").Inc()
			log.Info().Int("attempt", attempt+1).Int("status", resp.StatusCode).Msg("notification: delivered")
			return
		}

		log.Warn().Int("attempt", attempt+1).Int("status", resp.StatusCode).Msg("notification: non-2xx response, retrying")
	}

	metrics.NotificationsTotal.WithLabelValues("failed").Inc()
	log.Error().Msg("notification: all retry attempts exhausted")
}
