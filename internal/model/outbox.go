package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type OutboxStatus string

const (
	OutboxStatusPending   OutboxStatus = "PENDING"
	OutboxStatusProcessed OutboxStatus = "PROCESSED"
	OutboxStatusFailed    OutboxStatus = "FAILED"
)

// Domain event types written to the outbox
const (
	EventPatientCreated      = "PATIENT_CREATED"
	EventPatientUpdated      = "PATIENT_UPDATED"
	EventPatientDeleted      = "PATIENT_DELETED"
	EventAppointmentCreated  = "APPOINTMENT_CREATED"
	EventAppointmentUpdated  = "APPOINTMENT_UPDATED"
	EventAppointmentDeleted  = "APPOINTMENT_DELETED"
	EventConsultationCreated = "CONSULTATION_CREATED"
	EventConsultationUpdated = "CONSULTATION_UPDATED"
	EventConsultationDeleted = "CONSULTATION_DELETED"
	EventUserDeleted         = "USER_DELETED"
	EventSubscriptionChanged = "SUBSCRIPTION_CHANGED"
)

type OutboxEvent struct {
	ID           uuid.UUID    `db:"id" json:"id"`
	EventType    string       `db:"event_type" json:"event_type"`
	AggregateID  uuid.UUID    `db:"aggregate_id" json:"aggregate_id"`
	UserID       uuid.UUID    `db:"user_id" json:"user_id"`
	Payload      RawJSON      `db:"payload" json:"payload"`
	Status       OutboxStatus `db:"status" json:"status"`
	ErrorMessage *string      `db:"error_message" json:"error_message,omitempty"`
	RetryCount   int          `db:"retry_count" json:"retry_count"`
	CreatedAt    time.Time    `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time    `db:"updated_at" json:"updated_at"`
	ProcessedAt  *time.Time   `db:"processed_at" json:"processed_at,omitempty"`
}

// NewOutboxEvent builds a pending event, marshalling payload to JSON
func NewOutboxEvent(eventType string, userID, aggregateID uuid.UUID, payload interface{}) (*OutboxEvent, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	return &OutboxEvent{
		ID:          uuid.New(),
		EventType:   eventType,
		AggregateID: aggregateID,
		UserID:      userID,
		Payload:     data,
		Status:      OutboxStatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}
