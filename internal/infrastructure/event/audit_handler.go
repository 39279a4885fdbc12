package event

import (
	"context"

	"github.com/facturante/backend/internal/domain/invoicing"
	"github.com/facturante/backend/internal/domain/settlement"
	"github.com/facturante/backend/internal/domain/shared"
	"go.uber.org/zap"
)

// AuditLogHandler writes every invoicing and settlement domain event to the
// structured log, giving the ledger an append-only audit trail.
type AuditLogHandler struct {
	logger *zap.Logger
}

// NewAuditLogHandler creates an audit handler backed by the given logger
func NewAuditLogHandler(logger *zap.Logger) *AuditLogHandler {
	return &AuditLogHandler{logger: logger}
}

// Handle logs the event with its aggregate identity
func (h *AuditLogHandler) Handle(ctx context.Context, event shared.DomainEvent) error {
	h.logger.Info("domain event",
		zap.String("event_type", event.EventType()),
		zap.String("event_id", event.EventID().String()),
		zap.String("aggregate_type", event.AggregateType()),
		zap.String("aggregate_id", event.AggregateID().String()),
		zap.Time("occurred_at", event.OccurredAt()),
	)
	return nil
}

// EventTypes returns every invoicing and settlement event type
func (h *AuditLogHandler) EventTypes() []string {
	return []string{
		invoicing.EventTypeInvoiceCreated,
		invoicing.EventTypeInvoiceIssued,
		invoicing.EventTypeInvoiceVoided,
		invoicing.EventTypeInvoiceSettled,
		invoicing.EventTypeCollectionApplied,
		invoicing.EventTypeCreditNoteApplied,
		invoicing.EventTypeDebitNoteApplied,
		invoicing.EventTypeCollectionReversed,
		settlement.EventTypeCollectionRegistered,
		settlement.EventTypeCollectionConfirmed,
		settlement.EventTypeCollectionAllocated,
		settlement.EventTypeCollectionCancelled,
		settlement.EventTypeNoteIssued,
		settlement.EventTypeNoteApplied,
		settlement.EventTypeNoteVoided,
	}
}

// Ensure AuditLogHandler implements EventHandler
var _ shared.EventHandler = (*AuditLogHandler)(nil)
