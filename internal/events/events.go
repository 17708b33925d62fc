// Package events publishes transfer outcomes for downstream consumers.
package events

import (
	"context"
	"time"

	"github.com/deloabass/nigertransfert/internal/logger"
	"github.com/deloabass/nigertransfert/internal/models"
	"github.com/goccy/go-json"
)

// TransferEvent is the payload published for every submission outcome and every
// later resolution of a pending transfer.
type TransferEvent struct {
	RequestID      string                `json:"requestId"`
	Reference      string                `json:"reference"`
	Status         models.TransferStatus `json:"status"`
	Reason         string                `json:"reason,omitempty"`
	Principal      models.Money          `json:"principal"`
	Fee            models.Money          `json:"fee"`
	ReceivedAmount models.Money          `json:"receivedAmount"`
	ServiceID      string                `json:"serviceId"`
	SenderHash     string                `json:"senderHash"`
	OccurredAt     time.Time             `json:"occurredAt"`
}

// NewTransferEvent builds the event for a request and its result. The sender is
// identified only by its salted hash.
func NewTransferEvent(req models.TransferRequest, res models.TransferResult, at time.Time) TransferEvent {
	return TransferEvent{
		RequestID:      req.ID,
		Reference:      res.Reference,
		Status:         res.Status,
		Reason:         res.Reason,
		Principal:      req.Principal,
		Fee:            req.Fee,
		ReceivedAmount: req.ReceivedAmount,
		ServiceID:      req.ServiceID,
		SenderHash:     logger.HashUserID(req.SenderID),
		OccurredAt:     at.UTC(),
	}
}

// Encode serialises an event as JSON.
func Encode(ev TransferEvent) ([]byte, error) {
	return json.Marshal(ev)
}

// Decode parses an event produced by Encode.
func Decode(data []byte) (TransferEvent, error) {
	var ev TransferEvent
	err := json.Unmarshal(data, &ev)
	return ev, err
}

// Publisher sends transfer events.
type Publisher interface {
	PublishTransferEvent(ctx context.Context, ev TransferEvent) error
	Close() error
}

// NoopPublisher drops events. Used when no broker is configured.
type NoopPublisher struct{}

// PublishTransferEvent logs and discards the event.
func (NoopPublisher) PublishTransferEvent(_ context.Context, ev TransferEvent) error {
	logger.Log.Debug().
		Str("request_id", ev.RequestID).
		Str("status", string(ev.Status)).
		Msg("Transfer event publish skipped, no broker configured")
	return nil
}

// Close is a no-op.
func (NoopPublisher) Close() error { return nil }
