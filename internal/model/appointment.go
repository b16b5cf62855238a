package model

import (
	"time"

	"github.com/google/uuid"
)

type AppointmentStatus string

const (
	AppointmentStatusWaiting   AppointmentStatus = "waiting"
	AppointmentStatusConfirmed AppointmentStatus = "confirmed"
	AppointmentStatusCompleted AppointmentStatus = "completed"
	AppointmentStatusCanceled  AppointmentStatus = "canceled"
)

type Appointment struct {
	Base
	DateTime       time.Time         `db:"date_time" json:"date_time"`
	Reason         string            `db:"reason" json:"reason,omitempty"`
	Status         AppointmentStatus `db:"status" json:"status"`
	UserID         uuid.UUID         `db:"user_id" json:"user_id"`
	PatientID      uuid.UUID         `db:"patient_id" json:"patient_id"`
	ConsultationID *uuid.UUID        `db:"consultation_id" json:"consultation_id,omitempty"`
}

type CreateAppointmentRequest struct {
	DateTime  *time.Time        `json:"date_time" validate:"required"`
	PatientID *uuid.UUID        `json:"patient_id" validate:"required"`
	Reason    string            `json:"reason"`
	Status    AppointmentStatus `json:"status" validate:"omitempty,oneof=waiting confirmed completed canceled"`
}

// UpdateAppointmentRequest is a partial update. Status may be set to any
// value of the enum; no transition rules apply.
type UpdateAppointmentRequest struct {
	DateTime  *time.Time         `json:"date_time"`
	PatientID *uuid.UUID         `json:"patient_id"`
	Reason    *string            `json:"reason"`
	Status    *AppointmentStatus `json:"status" validate:"omitempty,oneof=waiting confirmed completed canceled"`
}

// AppointmentView is an appointment with its patient resolved
type AppointmentView struct {
	*Appointment
	Patient *PatientSummary `json:"patient"`
}
